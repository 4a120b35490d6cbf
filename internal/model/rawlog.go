package model

import "time"

// RawLog is one input document as produced by a source and consumed by the engine.
type RawLog struct {
	Timestamp time.Time
	Source    string         // input name (e.g. "csv", "lines")
	Raw       string         // original log text
	Metadata  map[string]any // source-specific metadata
}
