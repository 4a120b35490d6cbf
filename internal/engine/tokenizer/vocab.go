package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Vocab is a WordPiece vocabulary. Token IDs are line numbers (0-indexed) in
// vocab.txt. A Vocab is immutable after loading and safe for concurrent use.
type Vocab struct {
	tokenToID map[string]int64
	idToToken []string

	padID int64
	unkID int64
}

// LoadVocab reads a vocab.txt file where each line is a token and the line
// number (0-indexed) is the token ID.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	v, err := ReadVocab(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return v, nil
}

// ReadVocab reads vocab.txt content from r.
func ReadVocab(r io.Reader) (*Vocab, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// The original vocab loader keeps only the first whitespace-separated
		// field; an all-blank line still occupies its id.
		tok := scanner.Text()
		if fields := strings.Fields(tok); len(fields) > 0 {
			tok = fields[0]
		}
		tokens = append(tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read error: %w", err)
	}
	return NewVocab(tokens)
}

// NewVocab builds a vocabulary from an ordered token list. The list must
// contain [PAD] and [UNK].
func NewVocab(tokens []string) (*Vocab, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocab: empty vocabulary")
	}

	v := &Vocab{
		tokenToID: make(map[string]int64, len(tokens)),
		idToToken: tokens,
	}
	for i, tok := range tokens {
		if _, dup := v.tokenToID[tok]; !dup {
			v.tokenToID[tok] = int64(i)
		}
	}

	specials := []struct {
		name string
		dest *int64
	}{
		{"[PAD]", &v.padID},
		{"[UNK]", &v.unkID},
	}
	for _, s := range specials {
		id, ok := v.tokenToID[s.name]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", s.name)
		}
		*s.dest = id
	}
	return v, nil
}

// ID returns the token ID for the given token, or the [UNK] ID if not found.
func (v *Vocab) ID(token string) int64 {
	if id, ok := v.tokenToID[token]; ok {
		return id
	}
	return v.unkID
}

// Token returns the vocabulary string for id.
func (v *Vocab) Token(id int64) (string, bool) {
	if id < 0 || id >= int64(len(v.idToToken)) {
		return "", false
	}
	return v.idToToken[id], true
}

// Contains reports whether the token is in the vocabulary.
func (v *Vocab) Contains(token string) bool {
	_, ok := v.tokenToID[token]
	return ok
}

// PadID returns the [PAD] token ID.
func (v *Vocab) PadID() int64 { return v.padID }

// UnkID returns the [UNK] token ID.
func (v *Vocab) UnkID() int64 { return v.unkID }

// Size returns the number of tokens in the vocabulary.
func (v *Vocab) Size() int {
	return len(v.idToToken)
}
