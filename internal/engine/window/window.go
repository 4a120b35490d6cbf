// Package window splits a document's token stream into fixed-length,
// overlapping windows that fit the classifier's input limit.
package window

import (
	"fmt"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Config sets the window geometry.
type Config struct {
	MaxLen int // L: maximum tokens per window
	Stride int // S: distance between consecutive window starts
}

// Overlap returns the number of leading tokens a window shares with its
// predecessor.
func (c Config) Overlap() int {
	return c.MaxLen - c.Stride
}

// Validate checks that 0 < Stride < MaxLen.
func (c Config) Validate() error {
	if c.MaxLen <= 0 {
		return fmt.Errorf("window: max length must be positive, got %d", c.MaxLen)
	}
	if c.Stride <= 0 || c.Stride >= c.MaxLen {
		return fmt.Errorf("window: stride must be in (0, %d), got %d", c.MaxLen, c.Stride)
	}
	return nil
}

// Split cuts ids into windows for document doc. Windows start at 0, S, 2S, …
// and stop once one reaches the end of the stream. The first window is valid
// from 0; every later one is valid from the overlap, since its leading
// L-S tokens were already valid in the previous window. Each window is valid
// through its last token. An empty stream yields no windows.
//
// Windows share ids' backing array; callers must not mutate it afterwards.
func Split(doc int, ids []int64, cfg Config) ([]model.Window, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := len(ids)
	if n == 0 {
		return nil, nil
	}

	count := 1
	if n > cfg.MaxLen {
		count += (n - cfg.MaxLen + cfg.Stride - 1) / cfg.Stride
	}

	windows := make([]model.Window, 0, count)
	for start := 0; ; start += cfg.Stride {
		end := min(start+cfg.MaxLen, n)
		validStart := 0
		if start > 0 {
			validStart = cfg.Overlap()
		}
		windows = append(windows, model.Window{
			Doc:        doc,
			Seq:        len(windows),
			Offset:     start,
			DocLen:     n,
			ValidStart: validStart,
			ValidStop:  end - start,
			TokenIDs:   ids[start:end:end],
		})
		if end == n {
			break
		}
	}
	return windows, nil
}
