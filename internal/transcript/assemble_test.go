package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleNormalizesWhitespaceAndCapitalizes(t *testing.T) {
	t.Parallel()

	got := Assemble([]string{" hello", "world.", "\nfrom", "the candidate"}, Options{CapitalizeFirst: true})
	require.Equal(t, "Hello world. from the candidate", got)
}

func TestAssembleWithoutCapitalization(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hello world", Assemble([]string{"hello", "world"}, Options{}))
}

func TestAssembleEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, Assemble(nil, Options{CapitalizeFirst: true}))
	require.Empty(t, Assemble([]string{"  ", "\n\t"}, Options{CapitalizeFirst: true}))
}

func TestAssembleIdempotentForNormalizedOutput(t *testing.T) {
	t.Parallel()

	first := Assemble([]string{"use a hash map. then sort"}, Options{CapitalizeFirst: true})
	second := Assemble([]string{first}, Options{CapitalizeFirst: true})
	require.Equal(t, first, second)
}

func TestAppendSegmentDedupAndPrefixMerge(t *testing.T) {
	t.Parallel()

	segments := appendSegment(nil, "use a")
	segments = appendSegment(segments, "use a hash map")
	segments = appendSegment(segments, "use a hash")
	segments = appendSegment(segments, "use a hash map")
	segments = appendSegment(segments, "then sort")
	require.Equal(t, []string{"use a hash map", "then sort"}, segments)
}
