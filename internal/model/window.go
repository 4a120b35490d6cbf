package model

// Window is a bounded-length slice of one document's token stream.
//
// Offset and DocLen record where the window sits in its document so the
// aggregator can verify that valid ranges tile the stream. Labels and
// Confidences are nil until the inference adapter fills them; after that
// they are indexed exactly like TokenIDs.
type Window struct {
	Doc        int // document id (position in the engine batch)
	Seq        int // emission order within the document, starting at 0
	Offset     int // document index of TokenIDs[0]
	DocLen     int // total token count of the document
	ValidStart int
	ValidStop  int

	TokenIDs    []int64
	Labels      []int
	Confidences []float32
}

// Len returns the number of real (non-padding) tokens in the window.
func (w Window) Len() int {
	return len(w.TokenIDs)
}

// DocumentPrediction is the deduplicated, in-order token stream of one
// document with the label and confidence predicted for each token.
type DocumentPrediction struct {
	Doc         int
	TokenIDs    []int64
	Labels      []int
	Confidences []float32
}

// Len returns the number of tokens in the prediction.
func (p DocumentPrediction) Len() int {
	return len(p.TokenIDs)
}
