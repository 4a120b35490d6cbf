// Package tokenizer implements BERT-style WordPiece tokenization of raw log
// text into vocabulary ids.
package tokenizer

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ContinuationMarker prefixes WordPiece sub-words that continue the previous token.
const ContinuationMarker = "##"

// maxWordRunes is the longest basic token WordPiece will try to decompose.
const maxWordRunes = 200

// ErrInvalidEncoding is returned for input that is not valid UTF-8.
var ErrInvalidEncoding = errors.New("tokenizer: input is not valid UTF-8")

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithLowerCase lowercases and strips accents before WordPiece, as uncased
// BERT vocabularies expect. The default is cased.
func WithLowerCase() Option {
	return func(t *Tokenizer) { t.lowerCase = true }
}

// Tokenizer performs BERT-style WordPiece tokenization without special
// tokens. It is stateless beyond its vocabulary and safe for concurrent use.
type Tokenizer struct {
	vocab     *Vocab
	lowerCase bool
}

// New creates a tokenizer over v.
func New(v *Vocab, opts ...Option) *Tokenizer {
	t := &Tokenizer{vocab: v}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Vocab returns the tokenizer's vocabulary.
func (t *Tokenizer) Vocab() *Vocab {
	return t.vocab
}

// Tokenize converts text into token ids. No [CLS]/[SEP] are added and the
// result is not truncated; windowing happens downstream.
func (t *Tokenizer) Tokenize(text string) ([]int64, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidEncoding
	}
	pieces := t.wordpiece(t.basicTokenize(text))
	ids := make([]int64, len(pieces))
	for i, p := range pieces {
		ids[i] = t.vocab.ID(p)
	}
	return ids, nil
}

// Pieces returns the WordPiece strings for text.
func (t *Tokenizer) Pieces(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidEncoding
	}
	return t.wordpiece(t.basicTokenize(text)), nil
}

// basicTokenize cleans the text and splits it on whitespace and around every
// punctuation character.
func (t *Tokenizer) basicTokenize(text string) []string {
	text = cleanText(text)
	text = tokenizeChineseChars(text)
	if t.lowerCase {
		text = stripAccents(strings.ToLower(text))
	}

	var tokens []string
	for _, word := range strings.Fields(text) {
		tokens = append(tokens, splitOnPunctuation(word)...)
	}
	return tokens
}

func (t *Tokenizer) wordpiece(tokens []string) []string {
	var result []string
	for _, token := range tokens {
		if token == "" {
			continue
		}
		result = append(result, t.wordpieceToken(token)...)
	}
	return result
}

// wordpieceToken greedily decomposes one basic token into the longest
// matching vocabulary sub-words. A token that cannot be fully covered
// becomes a single [UNK].
func (t *Tokenizer) wordpieceToken(token string) []string {
	runes := []rune(token)
	if len(runes) > maxWordRunes {
		return []string{"[UNK]"}
	}

	var sub []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := false
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = ContinuationMarker + piece
			}
			if t.vocab.Contains(piece) {
				sub = append(sub, piece)
				found = true
				break
			}
			end--
		}
		if !found {
			return []string{"[UNK]"}
		}
		start = end
	}
	return sub
}

// cleanText drops control characters and maps all whitespace to spaces.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == 0 || r == utf8.RuneError || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tokenizeChineseChars surrounds CJK ideographs with spaces so each one is
// its own token.
func tokenizeChineseChars(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, r := range text {
		if isChineseChar(r) {
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitOnPunctuation(word string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range word {
		if isPunctuation(r) {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			tokens = append(tokens, string(r))
		} else {
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

// isPunctuation treats all non-alphanumeric ASCII as punctuation (the set
// Python's string.punctuation covers) plus Unicode punctuation.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isChineseChar(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
