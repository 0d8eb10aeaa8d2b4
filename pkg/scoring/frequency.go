// Bigrams shared by most cached entries say little about which entry a new text resembles; every candidate has them.
// Frequencies tracks, for the live entries of one cache, how many entries contain each bigram so the scorer can
// weight bigrams by their inverse document frequency (IDF):
//
//	w(b) = max(0, ln((N - n + 0.5) / (n + 0.5)))   if n > 0, else 0
//
// with N the number of live entries and n the number of entries containing b. A bigram present in more than half of
// the entries weighs nothing, so a cache full of identical texts scores 0.0 between them.

package scoring

import (
	"math"

	"github.com/nobletooth/parrot/pkg/shingle"
	"github.com/nobletooth/parrot/pkg/utils"
)

// Frequencies is the document frequency table of a set of entries. It is not thread-safe.
type Frequencies struct {
	documents int
	counts    map[shingle.Bigram]int
}

// NewFrequencies returns an empty table.
func NewFrequencies() *Frequencies {
	return &Frequencies{counts: make(map[shingle.Bigram]int)}
}

// Add accounts for a new entry with bigrams `set`.
func (f *Frequencies) Add(set shingle.Set) {
	f.documents++
	for b := range set.All() {
		f.counts[b]++
	}
}

// Remove forgets an entry previously passed to Add.
func (f *Frequencies) Remove(set shingle.Set) {
	if f.documents <= 0 {
		utils.RaiseInvariant("scoring", "remove_from_empty_frequencies",
			"Removed an entry from an empty frequency table.", "bigrams", set.Len())
		return
	}
	f.documents--
	for b := range set.All() {
		switch count := f.counts[b]; {
		case count > 1:
			f.counts[b] = count - 1
		case count == 1:
			delete(f.counts, b)
		default:
			utils.RaiseInvariant("scoring", "negative_bigram_count",
				"Removed a bigram that was never added.", "bigram", b.String())
		}
	}
}

// Documents returns the number of entries accounted for.
func (f *Frequencies) Documents() int {
	return f.documents
}

// Count returns the number of entries containing `b`.
func (f *Frequencies) Count(b shingle.Bigram) int {
	return f.counts[b]
}

// IDF returns a Weigher reading the current state of `f`. Weights follow later Add / Remove calls.
func IDF(f *Frequencies) Weigher {
	return WeigherFunc(func(b shingle.Bigram) float64 {
		count := f.Count(b)
		if count <= 0 {
			return 0
		}
		n, docs := float64(count), float64(f.documents)
		return max(0, math.Log((docs-n+0.5)/(n+0.5)))
	})
}
