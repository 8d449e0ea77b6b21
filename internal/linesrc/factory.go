package linesrc

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Factory tries to build a LineReader from src. It returns false when it does
// not handle src's type, letting the next factory try.
type Factory func(src any) (LineReader, bool)

var (
	factoriesMu sync.RWMutex
	factories   = []Factory{
		adoptLineReader,
		fromReader,
		fromString,
		fromBytes,
	}
)

// Register appends f to the factory table. Factories are consulted in
// registration order after the built-in ones; the first match wins.
func Register(f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories = append(factories, f)
}

// New builds a LineReader for src using the first factory that accepts it.
func New(src any) (LineReader, error) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	for _, f := range factories {
		if lr, ok := f(src); ok {
			return lr, nil
		}
	}
	return nil, fmt.Errorf("no line reader for source of type %T", src)
}

// adoptLineReader returns src itself when it already counts lines.
func adoptLineReader(src any) (LineReader, bool) {
	lr, ok := src.(LineReader)
	return lr, ok
}

func fromReader(src any) (LineReader, bool) {
	r, ok := src.(io.Reader)
	if !ok {
		return nil, false
	}
	return NewReader(r), true
}

func fromString(src any) (LineReader, bool) {
	s, ok := src.(string)
	if !ok {
		return nil, false
	}
	return NewReader(strings.NewReader(s)), true
}

func fromBytes(src any) (LineReader, bool) {
	b, ok := src.([]byte)
	if !ok {
		return nil, false
	}
	return NewReader(bytes.NewReader(b)), true
}
