package model

import "time"

// Record is sawmill's output type: one structured field record per document.
type Record struct {
	Doc        int                // position of the document in its input stream
	Timestamp  time.Time
	Source     string
	Raw        string
	Fields     map[string]string  // field name -> merged, normalized text
	Confidence map[string]float64 // field name -> mean token confidence in [0,1]
	Err        error              // per-document failure; Fields is empty when set
}

// NewRecord returns an empty record for the given document.
func NewRecord(doc int) Record {
	return Record{
		Doc:        doc,
		Fields:     map[string]string{},
		Confidence: map[string]float64{},
	}
}
