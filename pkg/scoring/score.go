// Similarity between two bigram sets is a weighted Dice coefficient:
//
//	score(a, b) = 2 * w(a ∩ b) / (w(a) + w(b))
//
// where w(s) sums the weights of the bigrams in s. With uniform weights this is the plain Dice coefficient. The
// score is symmetric and, for non-negative weights, lies in [0, 1]. When both sides weigh nothing (e.g. two empty
// sets) the score is 0 rather than an undefined division.

package scoring

import "github.com/nobletooth/parrot/pkg/shingle"

// Weigher assigns a non-negative weight to a bigram.
type Weigher interface {
	Weight(b shingle.Bigram) float64
}

// WeigherFunc adapts a plain function to Weigher.
type WeigherFunc func(b shingle.Bigram) float64

func (f WeigherFunc) Weight(b shingle.Bigram) float64 { return f(b) }

// Uniform weighs every bigram as 1, which makes Score the plain Dice coefficient.
var Uniform Weigher = WeigherFunc(func(shingle.Bigram) float64 { return 1 })

// Total sums the weights of every bigram in `set`.
func Total(set shingle.Set, w Weigher) float64 {
	total := 0.0
	for b := range set.All() {
		total += w.Weight(b)
	}
	return total
}

// Score returns the weighted Dice similarity of `a` and `b`.
func Score(a, b shingle.Set, w Weigher) float64 {
	return ScoreWithTotal(a, Total(a, w), b, w)
}

// ScoreWithTotal is Score when the total weight of `a` is already known, which saves recomputing it while comparing
// one incoming set with many candidates.
func ScoreWithTotal(a shingle.Set, totalA float64, b shingle.Set, w Weigher) float64 {
	total := totalA + Total(b, w)
	if total <= 0 {
		return 0
	}
	joint := 0.0
	for common := range a.Common(b) {
		joint += w.Weight(common)
	}
	// Guard against float rounding pushing an identical pair slightly above 1.
	return min(2*joint/total, 1)
}
