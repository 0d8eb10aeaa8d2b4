// Parrot remembers recently seen texts and tells callers how close a new text is to the closest one it remembers.
// This module provides the interface shared by every similarity cache layer, so the single-threaded cache, its
// guarded (thread-safe) form and the disabled no-op layer can be used interchangeably.

package cache

import (
	"fmt"

	"github.com/nobletooth/parrot/pkg/utils"
)

// NoMatchScore is the score reported when there was nothing to compare the incoming text with. It is not an error;
// callers should read it as "not enough information".
const NoMatchScore = -1.0

// Match is the outcome of an insertion: the best scoring entry among the other live entries.
type Match[V any] struct {
	Score float64                // In [0, 1], or NoMatchScore.
	Key   utils.Optional[string] // Key of the best entry; absent when Score is NoMatchScore.
	Value utils.Optional[V]      // Payload of the best entry; absent if none was stored with it.
}

// noMatch returns the sentinel Match.
func noMatch[V any]() Match[V] {
	return Match[V]{Score: NoMatchScore}
}

// Found reports whether a best entry was found.
func (m Match[V]) Found() bool {
	return m.Key.IsPresent()
}

func (m Match[V]) String() string {
	if !m.Found() {
		return "no match"
	}
	return fmt.Sprintf("%.4f against %s", m.Score, m.Key.OrElse(""))
}

// Layer defines the interface of a similarity cache.
type Layer[V any] interface {
	// Insert stores `text` under `key` with the payload `value` and returns the best match among the other entries.
	Insert(key, text string, value V) Match[V]
	// InsertText is Insert without a payload.
	InsertText(key, text string) Match[V]
	Len() int       // Returns the number of live entries.
	Keys() []string // Returns the live keys, oldest first.
}

// NoOp is a similarity layer that doesn't store anything and never matches.
// It is used when similarity caching is disabled.
type NoOp[V any] struct { // Implements Layer.
}

var _ Layer[int] = (*NoOp[int])(nil)

// NewNoOp returns a layer that never stores entries.
func NewNoOp[V any]() *NoOp[V] {
	return &NoOp[V]{}
}

// Insert always returns the no-match sentinel.
func (n *NoOp[V]) Insert(string, string, V) Match[V] {
	return noMatch[V]()
}

// InsertText always returns the no-match sentinel.
func (n *NoOp[V]) InsertText(string, string) Match[V] {
	return noMatch[V]()
}

// Len is always zero.
func (n *NoOp[V]) Len() int {
	return 0
}

// Keys always returns nil, as there are no keys stored.
func (n *NoOp[V]) Keys() []string {
	return nil
}
