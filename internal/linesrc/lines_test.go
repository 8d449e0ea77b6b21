package linesrc

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReader returns its lines, then err.
type scriptedReader struct {
	lines []string
	err   error
	n     int
	reads int
}

func (s *scriptedReader) ReadLine() (string, error) {
	s.reads++
	if s.n < len(s.lines) {
		s.n++
		return s.lines[s.n-1], nil
	}
	return "", s.err
}

func (s *scriptedReader) LineNumber() int { return s.n }

func TestLines_PrefetchesOnConstruction(t *testing.T) {
	src := &scriptedReader{lines: []string{"a"}, err: io.EOF}
	l := NewLines(src)
	assert.Equal(t, 1, src.reads)
	assert.True(t, l.HasNext())
}

func TestLines_EndIsKnownBeforeConsumerAsks(t *testing.T) {
	src := &scriptedReader{lines: []string{"a", "b"}, err: io.EOF}
	l := NewLines(src)

	line, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", line)
	assert.True(t, l.HasNext())

	line, err = l.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", line)
	assert.False(t, l.HasNext(), "EOF was read ahead with the last line")

	_, err = l.Next()
	assert.ErrorIs(t, err, ErrNoMoreLines)
	assert.False(t, l.Failed())
	assert.NoError(t, l.Err())
}

func TestLines_ReadFailureEndsSequence(t *testing.T) {
	boom := errors.New("disk on fire")
	src := &scriptedReader{lines: []string{"a"}, err: boom}
	l := NewLines(src)

	line, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", line)

	assert.False(t, l.HasNext())
	assert.True(t, l.Failed())
	assert.ErrorIs(t, l.Err(), boom)
}

func TestLines_All(t *testing.T) {
	l := NewLines(NewReader(strings.NewReader("x\ny\nz")))
	var got []string
	for line := range l.All() {
		got = append(got, line)
	}
	assert.Equal(t, []string{"x", "y", "z"}, got)
	assert.False(t, l.HasNext())
}

func TestLines_AllStopsEarly(t *testing.T) {
	l := NewLines(NewReader(strings.NewReader("x\ny\nz")))
	for line := range l.All() {
		if line == "y" {
			break
		}
	}
	line, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, "z", line)
}

func TestLines_EmptyInput(t *testing.T) {
	l := NewLines(NewReader(strings.NewReader("")))
	assert.False(t, l.HasNext())
	assert.False(t, l.Failed())
}
