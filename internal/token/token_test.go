package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupLiteral(t *testing.T) {
	for word, want := range literals {
		got, ok := LookupLiteral(word)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := LookupLiteral("True")
	require.False(t, ok)
}

func TestPosition(t *testing.T) {
	tok := Token{
		Type:    ID,
		Literal: "foo",
		StartPosition: Position{
			Line:   2,
			Column: 0,
		},
	}
	// Switches to 1-indexed
	require.Equal(t, 3, tok.StartPosition.LineNumber())
	require.Equal(t, 1, tok.StartPosition.ColumnNumber())
	require.True(t, tok.StartPosition.IsValid())
	require.False(t, NoPos.IsValid())
}

func TestIsOpen(t *testing.T) {
	require.True(t, OPEN_BLOCK.IsOpen())
	require.True(t, OPEN_RAW_BLOCK.IsOpen())
	require.False(t, CLOSE.IsOpen())
	require.False(t, ID.IsOpen())
}
