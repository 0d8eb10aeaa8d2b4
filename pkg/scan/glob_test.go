package scan

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchGlob(t *testing.T) {
	keys := []string{"msg-1", "msg-2", "other-msg"}

	for _, testCase := range []struct {
		name     string
		glob     string
		expected []string
	}{
		{name: "match all", glob: "*", expected: []string{"msg-1", "msg-2", "other-msg"}},
		{name: "match with ?", glob: "msg-?", expected: []string{"msg-1", "msg-2"}},
		{name: "match with * at the end", glob: "msg*", expected: []string{"msg-1", "msg-2"}},
		{name: "match with * at the beginning", glob: "*msg", expected: []string{"other-msg"}},
		{name: "match with multiple *", glob: "*msg*", expected: []string{"msg-1", "msg-2", "other-msg"}},
		{name: "no match", glob: "nomatch", expected: nil},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			seq, err := MatchGlob(testCase.glob, slices.Values(keys))
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, slices.Collect(seq))
		})
	}
}

func TestMatchGlob_KeepsOrder(t *testing.T) {
	keys := []string{"k3", "k1", "k2"}
	seq, err := MatchGlob("k*", slices.Values(keys))
	require.NoError(t, err)
	assert.Equal(t, keys, slices.Collect(seq), "Keys must be streamed in the given (insertion) order")
}
