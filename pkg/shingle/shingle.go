// Parrot compares texts by their bigrams ("shingles"): every pair of adjacent characters in the text. Texts are not
// normalized or tokenized; spaces, punctuation and delimiters are ordinary characters. Characters are Unicode code
// points, so "héllo" yields "hé", "él", "ll" and "lo". Invalid UTF-8 bytes decode to U+FFFD.

package shingle

import (
	"iter"
	"maps"
	"unicode/utf8"
)

// Bigram is a pair of adjacent characters.
type Bigram [2]rune

func (b Bigram) String() string {
	return string(b[:])
}

// Set is the set of distinct bigrams of a text.
type Set struct {
	bigrams map[Bigram]struct{}
}

// Extract returns the bigram set of `text`. Texts shorter than two characters give an empty set.
func Extract(text string) Set {
	set := Set{bigrams: make(map[Bigram]struct{}, max(utf8.RuneCountInString(text)-1, 0))}
	first, prev := true, rune(0)
	for _, r := range text {
		if !first {
			set.bigrams[Bigram{prev, r}] = struct{}{}
		}
		first, prev = false, r
	}
	return set
}

// Of builds a set from the given bigrams; handy in tests.
func Of(bigrams ...Bigram) Set {
	set := Set{bigrams: make(map[Bigram]struct{}, len(bigrams))}
	for _, b := range bigrams {
		set.bigrams[b] = struct{}{}
	}
	return set
}

// Len returns the number of distinct bigrams.
func (s Set) Len() int {
	return len(s.bigrams)
}

// Contains reports whether `b` is in the set.
func (s Set) Contains(b Bigram) bool {
	_, found := s.bigrams[b]
	return found
}

// All yields the bigrams in no particular order.
func (s Set) All() iter.Seq[Bigram] {
	return maps.Keys(s.bigrams)
}

// Common yields the bigrams present in both `s` and `other`, iterating over the smaller set.
func (s Set) Common(other Set) iter.Seq[Bigram] {
	small, large := s, other
	if small.Len() > large.Len() {
		small, large = large, small
	}
	return func(yield func(Bigram) bool) {
		for b := range small.bigrams {
			if large.Contains(b) && !yield(b) {
				return
			}
		}
	}
}
