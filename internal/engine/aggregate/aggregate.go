// Package aggregate stitches predicted windows back into one ordered
// per-token prediction per document.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Error reports a window set whose valid ranges do not tile its document.
type Error struct {
	Doc    int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("aggregate: document %d: %s", e.Doc, e.Reason)
}

func errorf(doc int, format string, args ...any) *Error {
	return &Error{Doc: doc, Reason: fmt.Sprintf(format, args...)}
}

// Result is the aggregation outcome for one document.
type Result struct {
	Prediction model.DocumentPrediction
	Err        error
}

// Aggregate groups windows by document and stitches each group. Results are
// ordered by document id. Windows may arrive in any order; within a document
// only the emission sequence decides their order.
func Aggregate(windows []model.Window) []Result {
	groups := make(map[int][]model.Window)
	for _, w := range windows {
		groups[w.Doc] = append(groups[w.Doc], w)
	}

	docs := make([]int, 0, len(groups))
	for doc := range groups {
		docs = append(docs, doc)
	}
	slices.Sort(docs)

	results := make([]Result, len(docs))
	for i, doc := range docs {
		p, err := Document(doc, groups[doc])
		results[i] = Result{Prediction: p, Err: err}
	}
	return results
}

// Document stitches the windows of a single document. It sorts ws in place
// by emission sequence and verifies that the valid ranges cover the document
// with no gap and no duplicate.
func Document(doc int, ws []model.Window) (model.DocumentPrediction, error) {
	if len(ws) == 0 {
		return model.DocumentPrediction{Doc: doc}, nil
	}
	slices.SortStableFunc(ws, func(a, b model.Window) int { return cmp.Compare(a.Seq, b.Seq) })

	docLen := ws[0].DocLen
	p := model.DocumentPrediction{
		Doc:         doc,
		TokenIDs:    make([]int64, 0, docLen),
		Labels:      make([]int, 0, docLen),
		Confidences: make([]float32, 0, docLen),
	}

	for i, w := range ws {
		if w.Doc != doc {
			return model.DocumentPrediction{}, errorf(doc, "window %d belongs to document %d", w.Seq, w.Doc)
		}
		if w.Seq != i {
			return model.DocumentPrediction{}, errorf(doc, "window sequence %d at position %d (missing or duplicate window)", w.Seq, i)
		}
		if w.DocLen != docLen {
			return model.DocumentPrediction{}, errorf(doc, "window %d disagrees on document length (%d != %d)", w.Seq, w.DocLen, docLen)
		}
		n := w.Len()
		if len(w.Labels) != n || len(w.Confidences) != n {
			return model.DocumentPrediction{}, errorf(doc, "window %d has %d tokens but %d labels and %d confidences",
				w.Seq, n, len(w.Labels), len(w.Confidences))
		}
		if w.ValidStart < 0 || w.ValidStart > w.ValidStop || w.ValidStop > n {
			return model.DocumentPrediction{}, errorf(doc, "window %d has invalid range [%d:%d] for %d tokens",
				w.Seq, w.ValidStart, w.ValidStop, n)
		}
		if at := w.Offset + w.ValidStart; at != len(p.TokenIDs) {
			kind := "gap"
			if at < len(p.TokenIDs) {
				kind = "overlap"
			}
			return model.DocumentPrediction{}, errorf(doc, "%s before window %d: valid range starts at token %d, expected %d",
				kind, w.Seq, at, len(p.TokenIDs))
		}

		p.TokenIDs = append(p.TokenIDs, w.TokenIDs[w.ValidStart:w.ValidStop]...)
		p.Labels = append(p.Labels, w.Labels[w.ValidStart:w.ValidStop]...)
		p.Confidences = append(p.Confidences, w.Confidences[w.ValidStart:w.ValidStop]...)
	}

	if len(p.TokenIDs) != docLen {
		return model.DocumentPrediction{}, errorf(doc, "windows cover %d of %d tokens", len(p.TokenIDs), docLen)
	}
	return p, nil
}
