package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardtrace/internal/board"
)

func TestParseTargets(t *testing.T) {
	got, err := parseTargets([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, board.AllTargets(), got)

	got, err = parseTargets([]string{"assembled", "lot"})
	require.NoError(t, err)
	assert.Equal(t, board.Targets{AssembledAt: true, Lot: true}, got)

	got, err = parseTargets([]string{" BoardType "})
	require.NoError(t, err)
	assert.Equal(t, board.Targets{BoardType: true}, got)

	// Empty selection means everything.
	got, err = parseTargets(nil)
	require.NoError(t, err)
	assert.Equal(t, board.AllTargets(), got)

	_, err = parseTargets([]string{"bogus"})
	assert.ErrorContains(t, err, "bogus")
}
