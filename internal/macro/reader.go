// Package macro rewrites card sources so every assertion call site carries its
// own line number as a literal.
//
// Card code cannot find out which line called it, so the line is baked in
// textually before compilation: Reader replaces each occurrence of the
// placeholder token (DefaultToken unless configured) with the decimal value of
// the line counter at the time the line is read, i.e. the number of lines
// consumed before it. Replacement is purely textual; a placeholder inside a
// string literal or comment is replaced too.
//
// Values past the 1024-line assertion block alias lower lines (see
// Result.Aliased). status.Line is 16 bits wide, so from line 65537 on a
// substituted literal overflows it and the card source no longer compiles;
// Preprocess reports such sites through Result.Overflowing.
package macro

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/cardcheck/internal/linesrc"
)

// DefaultToken is the placeholder replaced by the line number.
const DefaultToken = "__LINE__"

// Site is one placeholder occurrence found while reading.
type Site struct {
	// Line is the 1-based line of the input that held the placeholder.
	Line int `json:"line"`

	// Value is the number written in place of the placeholder.
	Value int `json:"value"`

	// Text is the input line before substitution, trimmed of surrounding space.
	Text string `json:"text"`
}

// Option configures a Reader.
type Option func(*Reader)

// WithToken sets the placeholder token.
func WithToken(token string) Option {
	return func(r *Reader) {
		if token != "" {
			r.token = token
		}
	}
}

// WithSiteRecorder calls record for every line that contained the placeholder.
// A line with several placeholders yields one Site.
func WithSiteRecorder(record func(Site)) Option {
	return func(r *Reader) {
		r.record = record
	}
}

// Reader is a LineReader that substitutes the placeholder in every line.
type Reader struct {
	src    linesrc.LineReader
	token  string
	record func(Site)
}

// NewReader wraps src. A source that already counts lines is used as is.
func NewReader(src linesrc.LineReader, opts ...Option) *Reader {
	r := &Reader{src: src, token: DefaultToken}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open builds a Reader over any source linesrc.New accepts.
func Open(src any, opts ...Option) (*Reader, error) {
	lr, err := linesrc.New(src)
	if err != nil {
		return nil, err
	}
	return NewReader(lr, opts...), nil
}

// ReadLine returns the next line with the placeholder replaced.
// End of input is passed through as io.EOF.
func (r *Reader) ReadLine() (string, error) {
	value := r.src.LineNumber()
	line, err := r.src.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	if !strings.Contains(line, r.token) {
		return line, nil
	}
	if r.record != nil {
		r.record(Site{
			Line:  r.src.LineNumber(),
			Value: value,
			Text:  strings.TrimSpace(line),
		})
	}
	return strings.ReplaceAll(line, r.token, strconv.Itoa(value)), nil
}

// LineNumber reports the underlying source's counter.
func (r *Reader) LineNumber() int {
	return r.src.LineNumber()
}

// Token returns the placeholder this Reader replaces.
func (r *Reader) Token() string {
	return r.token
}
