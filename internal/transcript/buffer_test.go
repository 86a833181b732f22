package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferUpdateTracksInterimThenFinal(t *testing.T) {
	b := NewBuffer(Options{})

	b.Update("i would", "")
	require.Equal(t, "i would", b.Interim())
	require.Empty(t, b.Final())

	b.Update("", "i would use two pointers")
	require.Empty(t, b.Interim())
	require.Equal(t, "i would use two pointers", b.Final())

	b.Update("and then", "")
	snap := b.Snapshot()
	require.Equal(t, "and then", snap.Interim)
	require.Equal(t, "i would use two pointers", snap.Final)
}

func TestBufferMergesCumulativeFinals(t *testing.T) {
	b := NewBuffer(Options{CapitalizeFirst: true})

	b.Update("", "first")
	b.Update("", "first answer")
	b.Update("", "second part")

	require.Equal(t, "First answer second part", b.Final())
}

func TestBufferResetClearsFinalOnly(t *testing.T) {
	b := NewBuffer(Options{})
	b.Update("", "answer")
	b.Update("still talking", "")

	b.Reset()

	require.Empty(t, b.Final())
	require.Equal(t, "still talking", b.Interim())
}

func TestBufferFinalWithInterimInSameEvent(t *testing.T) {
	b := NewBuffer(Options{})
	b.Update("next words", "done sentence")

	require.Equal(t, "done sentence", b.Final())
	require.Equal(t, "next words", b.Interim())
}
