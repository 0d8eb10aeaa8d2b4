// This module implements the bounded similarity cache.
//
// Storage Policy (FIFO with update-in-place):
// Entries are kept in a linked list in insertion order (oldest at the front) and indexed by key. Inserting a new key
// into a full cache evicts the front entry first. Inserting a key that is already cached overwrites its text and
// payload in place; the entry keeps its position, so a replacement never evicts anything and never delays the
// eviction of the replaced entry.
//
// Matching:
// After storing, the incoming entry is compared with every other live entry, oldest first. The entry with the highest
// score wins and ties go to the oldest entry. Storing happens first so an entry evicted by this very insertion is never
// reported as a match, and so bigram weights account for the incoming entry. When no other entry is live the result
// is the NoMatchScore sentinel. An incoming text without bigrams is still compared (it scores 0.0 against everything)
// and still stored, since it may be the closest candidate for later texts.

package cache

import (
	"fmt"
	"iter"

	"github.com/nobletooth/parrot/pkg/scoring"
	"github.com/nobletooth/parrot/pkg/shingle"
	"github.com/nobletooth/parrot/pkg/types"
	"github.com/nobletooth/parrot/pkg/utils"
)

// Weighting selects how bigrams are weighted while scoring.
type Weighting string

const (
	// WeightingIDF discounts bigrams by how many live entries contain them.
	WeightingIDF Weighting = "idf"
	// WeightingUniform weighs every bigram equally, i.e. the plain Dice coefficient.
	WeightingUniform Weighting = "uniform"
)

// ParseWeighting converts a flag / config value into a Weighting.
func ParseWeighting(name string) (Weighting, error) {
	switch weighting := Weighting(name); weighting {
	case WeightingIDF, WeightingUniform:
		return weighting, nil
	default:
		return "", fmt.Errorf("unknown weighting %q; expected %q or %q", name, WeightingIDF, WeightingUniform)
	}
}

// similarityEntry is one cached text.
type similarityEntry[V any] struct {
	key      string
	shingles shingle.Set
	value    utils.Optional[V]
}

// Similarity is a fixed-capacity cache of texts keyed by caller supplied keys. Every insertion reports the most
// similar entry already cached. It is NOT thread-safe; wrap it with Guarded when sharing it between goroutines.
type Similarity[V any] struct {
	capacity int // Maximum number of entries the cache can hold.
	// order holds the entries oldest first; the front entry is the next one to be evicted.
	order *types.LinkedList[*similarityEntry[V]]
	index map[string]*types.LinkedListNode[*similarityEntry[V]] // Provides lookup for an entry by its key.
	// frequencies counts the live entries containing each bigram; it backs the IDF weights.
	frequencies *scoring.Frequencies
	weigher     scoring.Weigher
	// evictionCallback is an optional callback function that is executed when an entry is evicted to make room for a
	// new key. It must not call back into the cache.
	evictionCallback func(key string, value utils.Optional[V])
}

var _ Layer[int] = (*Similarity[int])(nil)

// NewSimilarity is the constructor for Similarity. It holds at most `capacity` entries and scores texts with the
// given weighting. `evictionCallback` may be nil.
func NewSimilarity[V any](capacity int, weighting Weighting,
	evictionCallback func(key string, value utils.Optional[V])) *Similarity[V] {
	// Ensure capacity is at least 1.
	if capacity <= 0 {
		utils.RaiseInvariant("similarity", "non_positive_cache_capacity",
			"Invalid capacity has been given to similarity cache.", "capacity", capacity)
		capacity = 1
	}
	cache := &Similarity[V]{
		capacity:         capacity,
		order:            new(types.LinkedList[*similarityEntry[V]]),
		index:            make(map[string]*types.LinkedListNode[*similarityEntry[V]], capacity),
		frequencies:      scoring.NewFrequencies(),
		evictionCallback: evictionCallback,
	}
	switch weighting {
	case WeightingUniform:
		cache.weigher = scoring.Uniform
	case WeightingIDF:
		cache.weigher = scoring.IDF(cache.frequencies)
	default:
		utils.RaiseInvariant("similarity", "unknown_weighting",
			"Unknown weighting has been given to similarity cache.", "weighting", weighting)
		cache.weigher = scoring.IDF(cache.frequencies)
	}
	return cache
}

// Insert stores `text` and `value` under `key` and returns the most similar other entry.
// An empty key stores nothing and returns the no-match sentinel.
func (c *Similarity[V]) Insert(key, text string, value V) Match[V] {
	return c.insert(key, text, utils.Some(value))
}

// InsertText is Insert without a payload; matches against this entry report an absent value.
func (c *Similarity[V]) InsertText(key, text string) Match[V] {
	return c.insert(key, text, utils.None[V]())
}

func (c *Similarity[V]) insert(key, text string, value utils.Optional[V]) Match[V] {
	if key == "" {
		return noMatch[V]()
	}
	incoming := c.store(key, shingle.Extract(text), value)
	return c.bestMatch(incoming)
}

// store records the entry for `key`, replacing it in place or evicting the oldest entry when needed.
func (c *Similarity[V]) store(key string, shingles shingle.Set, value utils.Optional[V]) *similarityEntry[V] {
	// Update existing entry; position is unchanged.
	if node, keyExists := c.index[key]; keyExists {
		entry := node.Value
		c.frequencies.Remove(entry.shingles)
		entry.shingles = shingles
		entry.value = value
		c.frequencies.Add(shingles)
		return entry
	}

	// Make room for the new key.
	for c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	entry := &similarityEntry[V]{key: key, shingles: shingles, value: value}
	c.index[key] = c.order.PushBack(entry)
	c.frequencies.Add(shingles)
	return entry
}

// evictOldest drops the front entry.
func (c *Similarity[V]) evictOldest() {
	node := c.order.Front()
	if node == nil {
		utils.RaiseInvariant("similarity", "evict_from_empty_cache",
			"Tried to evict from an empty similarity cache.", "capacity", c.capacity)
		return
	}
	entry := node.Value
	c.order.Remove(node)
	delete(c.index, entry.key)
	c.frequencies.Remove(entry.shingles)
	if c.evictionCallback != nil {
		c.evictionCallback(entry.key, entry.value)
	}
}

// bestMatch scans every live entry but `incoming`, oldest first, and keeps the first maximum.
func (c *Similarity[V]) bestMatch(incoming *similarityEntry[V]) Match[V] {
	best := noMatch[V]()
	if c.order.Len() <= 1 { // Only the incoming entry is live.
		return best
	}
	incomingTotal := scoring.Total(incoming.shingles, c.weigher)
	for candidate := range c.order.All() {
		if candidate == incoming {
			continue
		}
		score := scoring.ScoreWithTotal(incoming.shingles, incomingTotal, candidate.shingles, c.weigher)
		// Strictly greater keeps the oldest entry on ties; any real score beats the sentinel.
		if score > best.Score {
			best = Match[V]{Score: score, Key: utils.Some(candidate.key), Value: candidate.value}
		}
	}
	return best
}

// Len returns the number of live entries.
func (c *Similarity[V]) Len() int {
	return c.order.Len()
}

// Capacity returns the maximum number of live entries.
func (c *Similarity[V]) Capacity() int {
	return c.capacity
}

// Contains reports whether `key` is live.
func (c *Similarity[V]) Contains(key string) bool {
	_, found := c.index[key]
	return found
}

// Keys returns the live keys, oldest first.
func (c *Similarity[V]) Keys() []string {
	keys := make([]string, 0, c.order.Len())
	for entry := range c.order.All() {
		keys = append(keys, entry.key)
	}
	return keys
}

// All yields the live keys and their payloads, oldest first. The cache must not be modified during iteration.
func (c *Similarity[V]) All() iter.Seq2[string, utils.Optional[V]] {
	return func(yield func(string, utils.Optional[V]) bool) {
		for entry := range c.order.All() {
			if !yield(entry.key, entry.value) {
				return
			}
		}
	}
}
