// Package labels maps classifier label ids to BIO tags and derives the fixed
// field schema the decoder accumulates into.
package labels

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Outside is the BIO sentinel for tokens that belong to no field.
const Outside = "O"

// Kind is the BIO position of a tag.
type Kind uint8

const (
	KindOutside Kind = iota
	KindBegin
	KindInside
)

func (k Kind) String() string {
	switch k {
	case KindBegin:
		return "B"
	case KindInside:
		return "I"
	default:
		return "O"
	}
}

// Tag is a decoded label. Field indexes Map.Fields and is -1 for outside tags.
type Tag struct {
	Name  string // raw tag string, e.g. "B-host"
	Kind  Kind
	Field int
}

// Map is an immutable label-id → tag table plus the field schema derived
// from it. Safe for concurrent use.
type Map struct {
	tags   []Tag
	known  []bool
	fields []string
}

// ParseTag splits a tag string into its BIO kind and field name. Anything
// that is not "B-<field>" or "I-<field>" is outside.
func ParseTag(s string) (Kind, string) {
	switch {
	case len(s) > 2 && strings.HasPrefix(s, "B-"):
		return KindBegin, s[2:]
	case len(s) > 2 && strings.HasPrefix(s, "I-"):
		return KindInside, s[2:]
	default:
		return KindOutside, ""
	}
}

// NewMap builds a Map from an id → tag table. Fields are ordered by the
// lowest label id that mentions them.
func NewMap(id2label map[int]string) (*Map, error) {
	if len(id2label) == 0 {
		return nil, fmt.Errorf("labels: empty label map")
	}

	ids := make([]int, 0, len(id2label))
	maxID := 0
	for id := range id2label {
		if id < 0 {
			return nil, fmt.Errorf("labels: negative label id %d", id)
		}
		ids = append(ids, id)
		maxID = max(maxID, id)
	}
	slices.Sort(ids)

	m := &Map{
		tags:  make([]Tag, maxID+1),
		known: make([]bool, maxID+1),
	}
	fieldIndex := make(map[string]int)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		name := id2label[id]
		if seen[name] {
			return nil, fmt.Errorf("labels: tag %q mapped by more than one id", name)
		}
		seen[name] = true

		kind, field := ParseTag(name)
		tag := Tag{Name: name, Kind: kind, Field: -1}
		if kind != KindOutside {
			idx, ok := fieldIndex[field]
			if !ok {
				idx = len(m.fields)
				fieldIndex[field] = idx
				m.fields = append(m.fields, field)
			}
			tag.Field = idx
		}
		m.tags[id] = tag
		m.known[id] = true
	}
	return m, nil
}

// LoadMap reads the id2label table from a HuggingFace model config.json.
func LoadMap(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	var cfg struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("labels: parse %s: %w", path, err)
	}

	id2label := make(map[int]string, len(cfg.ID2Label))
	for k, v := range cfg.ID2Label {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("labels: non-integer label id %q in %s", k, path)
		}
		id2label[id] = v
	}
	return NewMap(id2label)
}

// Tag returns the tag for label id.
func (m *Map) Tag(id int) (Tag, bool) {
	if id < 0 || id >= len(m.tags) || !m.known[id] {
		return Tag{}, false
	}
	return m.tags[id], true
}

// Fields returns the field names in schema order. The slice must not be modified.
func (m *Map) Fields() []string {
	return m.fields
}

// NumLabels returns the size of the dense id space (highest id + 1).
func (m *Map) NumLabels() int {
	return len(m.tags)
}
