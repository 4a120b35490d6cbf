// Package decoder turns a document's per-token labels into a field record:
// it merges sub-word continuations, groups tokens by BIO tag, and joins the
// begin/inside spans of each field.
package decoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crimson-sun/sawmill/internal/engine/labels"
	"github.com/crimson-sun/sawmill/internal/engine/tokenizer"
	"github.com/crimson-sun/sawmill/internal/model"
)

// ErrMisaligned means a prediction's token, label, and confidence slices
// differ in length.
var ErrMisaligned = errors.New("decoder: misaligned document prediction")

// UnknownLabelError reports a label id missing from the label map.
type UnknownLabelError struct {
	Doc   int
	Label int
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("decoder: document %d: unknown label id %d", e.Doc, e.Label)
}

// UnknownTokenError reports a token id missing from the vocabulary.
type UnknownTokenError struct {
	Doc   int
	Token int64
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("decoder: document %d: unknown token id %d", e.Doc, e.Token)
}

// Vocabulary resolves token ids to their WordPiece strings.
type Vocabulary interface {
	Token(id int64) (string, bool)
}

// MergePolicy selects how a field's confidence is computed when it has both
// begin and inside tokens.
type MergePolicy int

const (
	// MergeBeginOnly averages only the begin-tagged tokens' confidences,
	// ignoring the inside tokens. This reproduces the reference decoder.
	MergeBeginOnly MergePolicy = iota
	// MergeBeginInside averages the confidences of all begin and inside tokens.
	MergeBeginInside
)

// ParseMergePolicy maps "begin" / "begin_inside" to a MergePolicy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "begin":
		return MergeBeginOnly, nil
	case "begin_inside":
		return MergeBeginInside, nil
	default:
		return 0, fmt.Errorf("decoder: unknown confidence merge policy %q", s)
	}
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMergePolicy sets the begin/inside confidence merge. Default: MergeBeginOnly.
func WithMergePolicy(p MergePolicy) Option {
	return func(d *Decoder) { d.merge = p }
}

// Decoder is immutable after construction and safe for concurrent use.
type Decoder struct {
	vocab  Vocabulary
	labels *labels.Map
	merge  MergePolicy
}

// New creates a Decoder over the given vocabulary and label map.
func New(vocab Vocabulary, m *labels.Map, opts ...Option) *Decoder {
	d := &Decoder{vocab: vocab, labels: m}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsContinuation reports whether a vocabulary string continues the previous
// token: a WordPiece sub-word, or a leading '.' as in "config . json".
func IsContinuation(piece string) bool {
	return strings.HasPrefix(piece, tokenizer.ContinuationMarker) || strings.HasPrefix(piece, ".")
}

// span accumulates the text and confidence of one (field, begin|inside) slot.
type span struct {
	text  strings.Builder
	sum   float64
	count int
}

func (s *span) add(piece string, conf float32) {
	if s.text.Len() > 0 {
		s.text.WriteByte(' ')
	}
	s.text.WriteString(piece)
	s.sum += float64(conf)
	s.count++
}

func (s *span) mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// Decode builds the field record for one document. Text is the raw
// space-joined WordPiece output; run it through the normalizer afterwards.
func (d *Decoder) Decode(p model.DocumentPrediction) (model.Record, error) {
	rec := model.NewRecord(p.Doc)
	n := p.Len()
	if len(p.Labels) != n || len(p.Confidences) != n {
		return rec, fmt.Errorf("%w: document %d has %d tokens, %d labels, %d confidences",
			ErrMisaligned, p.Doc, n, len(p.Labels), len(p.Confidences))
	}
	if n == 0 {
		return rec, nil
	}

	fields := d.labels.Fields()
	// Slot 2f is field f's begin span, 2f+1 its inside span.
	spans := make([]span, 2*len(fields))

	var (
		cur     labels.Tag
		curConf float32
	)
	for i, id := range p.TokenIDs {
		piece, ok := d.vocab.Token(id)
		if !ok {
			return model.NewRecord(p.Doc), &UnknownTokenError{Doc: p.Doc, Token: id}
		}
		own, ok := d.labels.Tag(p.Labels[i])
		if !ok {
			return model.NewRecord(p.Doc), &UnknownLabelError{Doc: p.Doc, Label: p.Labels[i]}
		}

		if i == 0 || !IsContinuation(piece) {
			cur, curConf = own, p.Confidences[i]
		}
		if cur.Kind == labels.KindOutside {
			continue
		}
		slot := 2 * cur.Field
		if cur.Kind == labels.KindInside {
			slot++
		}
		spans[slot].add(piece, curConf)
	}

	for f, name := range fields {
		begin, inside := &spans[2*f], &spans[2*f+1]
		if begin.count == 0 {
			continue
		}
		text := begin.text.String()
		conf := begin.mean()
		if inside.count > 0 {
			text += " " + inside.text.String()
			if d.merge == MergeBeginInside {
				conf = (begin.sum + inside.sum) / float64(begin.count+inside.count)
			}
		}
		rec.Fields[name] = text
		rec.Confidence[name] = conf
	}
	return rec, nil
}
