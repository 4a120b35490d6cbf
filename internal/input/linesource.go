package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/crimson-sun/sawmill/internal/model"
)

// maxLineSize caps a single log line.
const maxLineSize = 1024 * 1024

// DecodeFunc extracts the raw text from one input line. A false ok with a nil
// error skips the line.
type DecodeFunc func(line string, cfg Config) (raw string, ok bool, err error)

// LineSource is a Source over newline-delimited input. Formats differ only in
// how a line becomes a document.
type LineSource struct {
	Name   string
	Decode DecodeFunc
}

// Stream implements Source.
func (s *LineSource) Stream(ctx context.Context, cfg Config, out chan<- model.RawLog) error {
	if cfg.Follow {
		if cfg.Path == "" || cfg.Path == "-" {
			return errors.New("input: follow needs a file path")
		}
		return s.follow(ctx, cfg, out)
	}

	rc, err := Open(cfg.Path)
	if err != nil {
		return err
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		if err := s.emit(ctx, cfg, out, sc.Text(), lineNum); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("input: %s: %w", s.Name, err)
	}
	return nil
}

// follow reads the existing content, then tails the file for appended lines.
func (s *LineSource) follow(ctx context.Context, cfg Config, out chan<- model.RawLog) error {
	lineNum := 0
	err := Tail(ctx, cfg.Path, func(line string) error {
		lineNum++
		return s.emit(ctx, cfg, out, line, lineNum)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *LineSource) emit(ctx context.Context, cfg Config, out chan<- model.RawLog, line string, lineNum int) error {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	raw, ok, err := s.Decode(line, cfg)
	if err != nil {
		return fmt.Errorf("input: %s line %d: %w", s.Name, lineNum, err)
	}
	if !ok {
		return nil
	}
	return Send(ctx, out, model.RawLog{
		Timestamp: time.Now(),
		Source:    s.Name,
		Raw:       raw,
		Metadata:  map[string]any{"path": cfg.Path, "line": lineNum},
	})
}

// readLines reads complete lines from r starting at the reader's position.
// A trailing fragment with no newline is returned as partial so the caller
// can prepend it to the next read.
func readLines(r io.Reader, partial string, emit func(string) error) (consumed int64, rest string, err error) {
	br := bufio.NewReaderSize(r, 64*1024)
	rest = partial
	for {
		chunk, rerr := br.ReadString('\n')
		consumed += int64(len(chunk))
		if strings.HasSuffix(chunk, "\n") {
			line := rest + strings.TrimSuffix(chunk, "\n")
			rest = ""
			if err := emit(line); err != nil {
				return consumed, "", err
			}
		} else {
			rest += chunk
		}
		if rerr == io.EOF {
			return consumed, rest, nil
		}
		if rerr != nil {
			return consumed, rest, rerr
		}
	}
}

// statSize returns the file size, or -1 if the file is gone.
func statSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return st.Size()
}
