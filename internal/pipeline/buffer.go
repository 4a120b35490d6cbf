package pipeline

import (
	"sync"
	"time"

	"github.com/crimson-sun/sawmill/internal/model"
)

// streamBuffer accumulates raw logs until the batch is full or its flush
// timer fires.
type streamBuffer struct {
	window  time.Duration
	maxSize int // 0 means unlimited

	mu      sync.Mutex
	pending []model.RawLog
	timer   *time.Timer
}

func newStreamBuffer(maxSize int, window time.Duration) *streamBuffer {
	return &streamBuffer{
		window:  window,
		maxSize: maxSize,
	}
}

// add appends a raw log. The first one starts the flush timer.
// Returns true if the buffer is full and needs flushing.
func (b *streamBuffer) add(raw model.RawLog) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, raw)
	if len(b.pending) == 1 {
		b.timer = time.NewTimer(b.window)
	}
	return b.maxSize > 0 && len(b.pending) >= b.maxSize
}

// flushCh returns the timer's channel, or nil if no timer is active.
func (b *streamBuffer) flushCh() <-chan time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

// take removes and returns everything pending and stops the timer.
func (b *streamBuffer) take() []model.RawLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	raws := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return raws
}

