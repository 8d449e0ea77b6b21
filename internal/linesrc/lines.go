package linesrc

import (
	"errors"
	"io"
	"iter"
)

// ErrNoMoreLines is returned by Lines.Next after the sequence has ended.
var ErrNoMoreLines = errors.New("linesrc: no more lines")

// Lines is a lazy sequence over a LineReader. It always holds the next line
// before the consumer asks for it, so HasNext never blocks on the source and
// end of input is known ahead of time.
//
// A read failure during look-ahead ends the sequence just like end of input.
// Callers that must tell the two apart check Err (or Failed) once HasNext
// reports false.
type Lines struct {
	r    LineReader
	next string
	ok   bool
	err  error
}

// NewLines starts a sequence over r, reading the first line immediately.
func NewLines(r LineReader) *Lines {
	l := &Lines{r: r}
	l.prefetch()
	return l
}

func (l *Lines) prefetch() {
	line, err := l.r.ReadLine()
	if err != nil {
		l.next, l.ok = "", false
		if !errors.Is(err, io.EOF) {
			l.err = err
		}
		return
	}
	l.next, l.ok = line, true
}

// HasNext reports whether Next will return a line.
func (l *Lines) HasNext() bool {
	return l.ok
}

// Next returns the pending line and reads ahead the one after it.
func (l *Lines) Next() (string, error) {
	if !l.ok {
		return "", ErrNoMoreLines
	}
	line := l.next
	l.prefetch()
	return line, nil
}

// Err returns the read failure that ended the sequence, or nil if it ended
// at end of input (or has not ended).
func (l *Lines) Err() error {
	return l.err
}

// Failed reports whether the sequence ended because of a read failure.
func (l *Lines) Failed() bool {
	return l.err != nil
}

// All returns the remaining lines as a range-over-func iterator.
func (l *Lines) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for l.ok {
			line, _ := l.Next()
			if !yield(line) {
				return
			}
		}
	}
}
