package linesrc

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// LineReader is a line-counting source of text.
type LineReader interface {
	// ReadLine returns the next line without its terminator, or io.EOF when
	// the input is exhausted. Any other error is an I/O failure.
	ReadLine() (string, error)

	// LineNumber returns the number of lines returned so far.
	LineNumber() int
}

// Reader counts lines over an io.Reader.
type Reader struct {
	br   *bufio.Reader
	line int
}

// NewReader returns a counting Reader over r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{br: br}
}

// ReadLine implements LineReader.
func (r *Reader) ReadLine() (string, error) {
	var sb strings.Builder
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				r.line++
				return sb.String(), nil
			}
			return "", err
		}
		switch b {
		case '\n':
			r.line++
			return sb.String(), nil
		case '\r':
			if next, err := r.br.Peek(1); err == nil && next[0] == '\n' {
				_, _ = r.br.ReadByte()
			}
			r.line++
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// LineNumber implements LineReader.
func (r *Reader) LineNumber() int {
	return r.line
}
