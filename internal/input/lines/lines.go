// Package lines reads one document per input line.
package lines

import (
	"github.com/crimson-sun/sawmill/internal/input"
)

func init() {
	input.Register("lines", New)
}

// New returns a Source treating every non-blank line as a document.
func New() input.Source {
	return &input.LineSource{
		Name: "lines",
		Decode: func(line string, _ input.Config) (string, bool, error) {
			return line, true, nil
		},
	}
}
