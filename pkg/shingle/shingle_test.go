package shingle

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// sortedStrings renders a set as sorted strings so it can be compared with assert.Equal.
func sortedStrings(set Set) []string {
	out := make([]string, 0, set.Len())
	for b := range set.All() {
		out = append(out, b.String())
	}
	slices.Sort(out)
	return out
}

func TestExtract(t *testing.T) {
	for _, testCase := range []struct {
		name     string
		text     string
		expected []string
	}{
		{name: "empty", text: "", expected: []string{}},
		{name: "single character", text: "a", expected: []string{}},
		{name: "two characters", text: "ab", expected: []string{"ab"}},
		{name: "sliding window", text: "abcd", expected: []string{"ab", "bc", "cd"}},
		{name: "duplicates collapse", text: "aaaa", expected: []string{"aa"}},
		{name: "repeated pair", text: "abab", expected: []string{"ab", "ba"}},
		{name: "delimiters are ordinary characters", text: "a$b", expected: []string{"$b", "a$"}},
		{name: "no normalization", text: "Aa", expected: []string{"Aa"}},
		{name: "spaces count", text: "a b", expected: []string{" b", "a "}},
		{name: "multi-byte characters", text: "héllo", expected: []string{"hé", "ll", "lo", "él"}},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, sortedStrings(Extract(testCase.text)))
		})
	}
}

func TestExtract_Palindrome(t *testing.T) {
	set := Extract("a$man$a$plan$a$canal$panama")
	// Count distinct windows straight from the definition.
	text := []rune("a$man$a$plan$a$canal$panama")
	distinct := make(map[string]struct{})
	for i := 0; i+1 < len(text); i++ {
		distinct[string(text[i:i+2])] = struct{}{}
	}
	assert.Equal(t, len(distinct), set.Len())
	for b := range distinct {
		r := []rune(b)
		assert.True(t, set.Contains(Bigram{r[0], r[1]}), "missing bigram %q", b)
	}
}

func TestExtract_IsDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 10)
	assert.Equal(t, sortedStrings(Extract(text)), sortedStrings(Extract(text)))
}

func TestSet_Common(t *testing.T) {
	a := Extract("hello")
	b := Extract("yellow")
	common := make([]string, 0)
	for bigram := range a.Common(b) {
		common = append(common, bigram.String())
	}
	slices.Sort(common)
	assert.Equal(t, []string{"el", "ll", "lo"}, common)

	// Symmetric.
	reversed := make([]string, 0)
	for bigram := range b.Common(a) {
		reversed = append(reversed, bigram.String())
	}
	slices.Sort(reversed)
	assert.Equal(t, common, reversed)

	assert.Empty(t, slices.Collect(Extract("").Common(a)))
}

func TestOf(t *testing.T) {
	set := Of(Bigram{'a', 'b'}, Bigram{'a', 'b'}, Bigram{'c', 'd'})
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(Bigram{'c', 'd'}))
	assert.False(t, set.Contains(Bigram{'d', 'c'}))
}
