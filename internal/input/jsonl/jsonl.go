// Package jsonl reads newline-delimited JSON objects and takes each
// document's text from one string field (default "raw").
package jsonl

import (
	"encoding/json"
	"fmt"

	"github.com/crimson-sun/sawmill/internal/input"
)

const defaultField = "raw"

func init() {
	input.Register("jsonl", New)
}

// New returns the JSON-lines Source.
func New() input.Source {
	return &input.LineSource{Name: "jsonl", Decode: decode}
}

func decode(line string, cfg input.Config) (string, bool, error) {
	field := cfg.Column
	if field == "" {
		field = defaultField
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return "", false, fmt.Errorf("invalid JSON: %w", err)
	}
	v, ok := obj[field]
	if !ok {
		return "", false, fmt.Errorf("missing field %q", field)
	}
	var raw string
	if err := json.Unmarshal(v, &raw); err != nil {
		return "", false, fmt.Errorf("field %q is not a string", field)
	}
	return raw, true, nil
}
