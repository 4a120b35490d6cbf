package sawmill

import "time"

// Record holds the fields extracted from one log line.
// This is the stable public type; internal representations may evolve
// without breaking consumers.
type Record struct {
	Doc        int                `json:"doc"`                  // Position in the batch
	Timestamp  time.Time          `json:"timestamp,omitzero"`   // When the log was produced
	Source     string             `json:"source,omitempty"`     // Origin name, if known
	Raw        string             `json:"raw,omitempty"`        // Original text
	Fields     map[string]string  `json:"fields"`               // Field name to extracted text
	Confidence map[string]float64 `json:"confidence,omitempty"` // Mean token confidence per field
	Err        error              `json:"-"`                    // Set when this line alone failed
}

// Log is a raw log entry with optional metadata. Use with ParseLog when you
// have timestamp and source information.
type Log struct {
	Text      string
	Timestamp time.Time      // zero = time.Now()
	Source    string
	Metadata  map[string]any // carried along, not used for extraction
}
