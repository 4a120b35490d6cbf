package input

import (
	"context"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"
)

// collector gathers emitted lines from the tail goroutine.
type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) emit(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, s)
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *collector) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, have %v", n, c.snapshot())
	return nil
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(s); err != nil {
		t.Fatal(err)
	}
}

func startTail(t *testing.T, path string) (*collector, context.CancelFunc, <-chan error) {
	t.Helper()
	c := &collector{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Tail(ctx, path, c.emit) }()
	return c, cancel, done
}

func stopTail(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Tail() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Tail did not stop after cancel")
	}
}

func TestTailExistingAndAppended(t *testing.T) {
	path := writeTemp(t, "line 1\nline 2\n")
	c, cancel, done := startTail(t, path)

	c.waitFor(t, 2)
	appendFile(t, path, "line 3\npar")
	c.waitFor(t, 3)
	appendFile(t, path, "tial\n")
	got := c.waitFor(t, 4)

	stopTail(t, cancel, done)

	want := []string{"line 1", "line 2", "line 3", "partial"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
}

func TestTailTruncation(t *testing.T) {
	path := writeTemp(t, "old line one\nold line two\n")
	c, cancel, done := startTail(t, path)
	c.waitFor(t, 2)

	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := c.waitFor(t, 3)
	stopTail(t, cancel, done)

	if got[2] != "new" {
		t.Errorf("after truncation got %q, want %q", got[2], "new")
	}
}

func TestTailRotation(t *testing.T) {
	path := writeTemp(t, "before\n")
	c, cancel, done := startTail(t, path)
	c.waitFor(t, 1)

	if err := os.Rename(path, path+".1"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("after\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := c.waitFor(t, 2)
	stopTail(t, cancel, done)

	if got[1] != "after" {
		t.Errorf("after rotation got %q, want %q", got[1], "after")
	}
}

func TestTailMissingFile(t *testing.T) {
	if err := Tail(context.Background(), "/nonexistent/in.log", func(string) error { return nil }); err == nil {
		t.Fatal("expected error for missing file")
	}
}
