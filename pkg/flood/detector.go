// Parrot's flood detector classifies every submitted text in its scope as fresh, similar to a recent text, or an
// exact repeat of a recent text.
//
// Similarity comes from the scope's bigram cache. Exact repeats need a separate signal: IDF weighting discounts
// bigrams present in most cached entries, so when a scope is flooded with the very same text every bigram ends up
// weighing nothing and the similarity score drops to 0.0. Exact repeats are therefore tracked in a Bloom filter keyed
// by scope and text. The filter is cleared after a configured number of additions so that its false positive rate
// stays bounded; this also makes "recent" mean "within the current filter generation".

package flood

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/nobletooth/parrot/pkg/cache"
	"github.com/nobletooth/parrot/pkg/scope"
)

// Verdict is the classification of a checked text.
type Verdict string

const (
	VerdictFresh   Verdict = "fresh"   // Nothing close enough was seen recently.
	VerdictSimilar Verdict = "similar" // A recent text scored at or above the threshold.
	VerdictRepeat  Verdict = "repeat"  // The very same text was seen recently in the scope.
)

// Report is the outcome of Detector.Check.
type Report struct {
	Verdict Verdict
	Match   cache.Match[string] // Best similarity match; Value holds the matched entry's payload.
}

// Options configures a Detector.
type Options struct {
	Threshold float64 // Minimum similarity score for VerdictSimilar, in (0, 1].
	// ExactCapacity is the number of texts the exact-repeat filter holds before it's cleared; 0 disables it.
	ExactCapacity          uint
	ExactFalsePositiveRate float64 // Target false positive rate of the exact-repeat filter, in (0, 1).
}

// Validate reports invalid options.
func (o Options) Validate() error {
	var errs []error
	if o.Threshold <= 0 || o.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold must be in (0, 1]; got %v", o.Threshold))
	}
	if o.ExactCapacity > 0 && (o.ExactFalsePositiveRate <= 0 || o.ExactFalsePositiveRate >= 1) {
		errs = append(errs, fmt.Errorf("false positive rate must be in (0, 1); got %v", o.ExactFalsePositiveRate))
	}
	return errors.Join(errs...)
}

// exactFilter remembers which (scope, text) pairs were seen in the current generation.
type exactFilter struct {
	mux      sync.Mutex
	filter   *bloom.BloomFilter
	capacity uint
	added    uint // Additions since the last clear.
}

// exactItem encodes a (scope, text) pair. The scope is length prefixed as any byte, NUL included, may appear in it.
func exactItem(scopeName, text string) []byte {
	item := make([]byte, 0, binary.MaxVarintLen64+len(scopeName)+len(text))
	item = binary.AppendUvarint(item, uint64(len(scopeName)))
	item = append(item, scopeName...)
	return append(item, text...)
}

// testAndAdd reports whether `scopeName` + `text` was probably seen before and records it.
func (f *exactFilter) testAndAdd(scopeName, text string) bool {
	item := exactItem(scopeName, text)

	f.mux.Lock()
	defer f.mux.Unlock()
	if f.added >= f.capacity {
		f.filter.ClearAll()
		f.added = 0
		exactFilterResets.Inc()
	}
	seen := f.filter.TestAndAdd(item)
	if !seen {
		f.added++
	}
	return seen
}

// Detector classifies texts per scope. It is safe for concurrent use.
type Detector struct {
	threshold float64
	registry  *scope.Registry[string]
	exact     *exactFilter // Nil when exact-repeat detection is disabled.
}

// NewDetector builds a detector on top of `registry`.
func NewDetector(registry *scope.Registry[string], opts Options) (*Detector, error) {
	if registry == nil {
		return nil, errors.New("expected a non-nil scope registry")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flood detector options: %w", err)
	}
	detector := &Detector{threshold: opts.Threshold, registry: registry}
	if opts.ExactCapacity > 0 {
		detector.exact = &exactFilter{
			filter:   bloom.NewWithEstimates(opts.ExactCapacity, opts.ExactFalsePositiveRate),
			capacity: opts.ExactCapacity,
		}
	}
	return detector, nil
}

// Check records `text` under `key` in `scopeName` with the optional `payload` and classifies it.
func (d *Detector) Check(scopeName, key, text string, payload *string) Report {
	var match cache.Match[string]
	if payload != nil {
		match = d.registry.Insert(scopeName, key, text, *payload)
	} else {
		match = d.registry.InsertText(scopeName, key, text)
	}

	verdict := VerdictFresh
	switch {
	// Empty keys are never stored; they don't count as having been seen either.
	case key != "" && d.exact != nil && d.exact.testAndAdd(scopeName, text):
		verdict = VerdictRepeat
	case match.Found() && match.Score >= d.threshold:
		verdict = VerdictSimilar
	}

	checks.WithLabelValues(string(verdict)).Inc()
	if match.Found() {
		similarityScores.Observe(match.Score)
	}
	return Report{Verdict: verdict, Match: match}
}

// Registry exposes the underlying scope registry.
func (d *Detector) Registry() *scope.Registry[string] {
	return d.registry
}
