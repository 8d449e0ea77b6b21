package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRunIDGenerator(t *testing.T) {
	gen := NewFixedRunIDGenerator("scenario")
	assert.Equal(t, "scenario-0001", gen.Generate())
	assert.Equal(t, "scenario-0002", gen.Generate())
}

func TestFixedRunIDGenerator_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "run-0001", NewFixedRunIDGenerator("").Generate())
}
