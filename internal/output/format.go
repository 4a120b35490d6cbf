package output

import (
	"fmt"
	"time"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Verbosity controls how much of a record is serialized.
type Verbosity int

const (
	// Minimal emits only the field/value object, one per line.
	Minimal Verbosity = iota
	// Standard adds the document id, confidences, and any error.
	Standard
	// Full adds the raw text, source, and timestamp.
	Full
)

// ParseVerbosity maps "minimal", "standard", "full" to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	switch s {
	case "minimal":
		return Minimal, nil
	case "", "standard":
		return Standard, nil
	case "full":
		return Full, nil
	default:
		return Standard, fmt.Errorf("output: unknown verbosity %q", s)
	}
}

// Document is the JSON shape of a record at Standard and Full verbosity.
type Document struct {
	Doc        int                `json:"doc"`
	Timestamp  *time.Time         `json:"timestamp,omitempty"`
	Source     string             `json:"source,omitempty"`
	Raw        string             `json:"raw,omitempty"`
	Fields     map[string]string  `json:"fields"`
	Confidence map[string]float64 `json:"confidence,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// FormatRecord returns the value to JSON-encode for rec at the given verbosity.
// At Minimal it is the bare field map, never nil.
func FormatRecord(rec model.Record, v Verbosity) any {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	if v == Minimal {
		return fields
	}

	d := Document{
		Doc:        rec.Doc,
		Fields:     fields,
		Confidence: rec.Confidence,
	}
	if rec.Err != nil {
		d.Error = rec.Err.Error()
	}
	if v == Full {
		if !rec.Timestamp.IsZero() {
			ts := rec.Timestamp
			d.Timestamp = &ts
		}
		d.Source = rec.Source
		d.Raw = rec.Raw
	}
	return d
}
