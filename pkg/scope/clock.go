// This module bounds the number of scopes a registry shard keeps alive.
// Eviction Policy (CLOCK Algorithm):
// Scopes sit on a circular list with a "hand" sweeping over them. When the shard is full and a new scope shows up,
// the hand checks the scope it points to:
//   - If the scope's reference bit is set (it was used since the last sweep), the bit is cleared and the hand moves on.
//     This gives busy scopes a "second chance".
//   - Otherwise the scope is dropped together with its cache and the new scope takes its place in the ring.
//
// Expiration Policy (idle TTL with reaper):
// A scope nobody wrote to for longer than the idle TTL is dropped by a background reaper, so one-off scopes (a chat
// room that went quiet, a user who left) don't hold memory until the CLOCK hand reaches them.

package scope

import (
	"context"
	"sync"
	"time"

	"github.com/nobletooth/parrot/pkg/cache"
	"github.com/nobletooth/parrot/pkg/types"
	"github.com/nobletooth/parrot/pkg/utils"
)

// scopeEntry is one scope and its similarity cache.
type scopeEntry[V any] struct {
	name  string
	layer cache.Layer[V]
	// ref is the reference bit for the CLOCK algorithm. It's set whenever the scope is used and cleared by the hand.
	ref      bool
	lastUsed time.Time
}

// clockShard is a bounded set of scopes. It is thread-safe; the scopes' caches guard themselves.
type clockShard[V any] struct {
	mux      sync.Mutex
	capacity int // Maximum number of scopes the shard can hold.
	// hand points to the next candidate for eviction in the circular list.
	hand  *types.LinkedListNode[*scopeEntry[V]]
	index map[string]*types.LinkedListNode[*scopeEntry[V]] // Provides lookup for a scope by its name.
	ring  *types.LinkedList[*scopeEntry[V]]
	// newLayer creates the cache of a new scope.
	newLayer func() cache.Layer[V]
	now      func() time.Time
}

func newClockShard[V any](capacity int, newLayer func() cache.Layer[V]) *clockShard[V] {
	if capacity <= 0 {
		utils.RaiseInvariant("scope", "non_positive_shard_capacity",
			"Invalid capacity has been given to scope shard.", "capacity", capacity)
		capacity = 1
	}
	return &clockShard[V]{
		capacity: capacity,
		index:    make(map[string]*types.LinkedListNode[*scopeEntry[V]], capacity),
		ring:     new(types.LinkedList[*scopeEntry[V]]),
		newLayer: newLayer,
		now:      time.Now,
	}
}

// lookup returns the cache of `name`. With `create` set (writes), unknown scopes are created and the scope is marked
// as used; plain reads neither create scopes nor keep them alive.
func (s *clockShard[V]) lookup(name string, create bool) (cache.Layer[V], bool /*found*/) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if node, exists := s.index[name]; exists {
		if create {
			node.Value.ref = true
			node.Value.lastUsed = s.now()
		}
		return node.Value.layer, true
	}
	if !create {
		return nil, false
	}

	entry := &scopeEntry[V]{name: name, layer: s.newLayer(), lastUsed: s.now()}
	// Add new scope (if shard is not full).
	if s.ring.Len() < s.capacity {
		node := s.ring.PushBack(entry)
		s.index[name] = node
		// Initialize clock hand if it's the first element.
		if s.hand == nil {
			s.hand = node
		}
		return entry.layer, true
	}

	// Eviction loop (if shard is full). This loop implements the CLOCK (Second-Chance) algorithm.
	for {
		node := s.hand
		if !node.Value.ref {
			delete(s.index, node.Value.name)
			scopeEvictions.WithLabelValues(evictionReasonCapacity).Inc()
			// Replace the evicted scope with the new one in the same node.
			node.Value = entry
			s.index[name] = node
			s.advanceHand()
			return entry.layer, true
		}
		// Give the scope a second chance by clearing its reference bit.
		node.Value.ref = false
		s.advanceHand()
	}
}

// advanceHand moves the clock hand forward, wrapping around at the end of the ring.
func (s *clockShard[V]) advanceHand() {
	next := s.hand.Next()
	if next == nil {
		next = s.ring.Front()
	}
	s.hand = next
}

// dropIdle removes every scope unused since `cutoff` and returns how many were dropped.
func (s *clockShard[V]) dropIdle(cutoff time.Time) int {
	s.mux.Lock()
	defer s.mux.Unlock()

	dropped := 0
	for node := s.ring.Front(); node != nil; {
		next := node.Next()
		if node.Value.lastUsed.Before(cutoff) {
			// If the clock hand points at the scope we are about to drop, advance it first so it never points to a
			// removed node.
			if s.hand == node {
				s.advanceHand()
				if s.hand == node { // It was the only scope.
					s.hand = nil
				}
			}
			delete(s.index, node.Value.name)
			s.ring.Remove(node)
			dropped++
		}
		node = next
	}
	return dropped
}

// names returns the live scope names in ring order.
func (s *clockShard[V]) names() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	names := make([]string, 0, s.ring.Len())
	for entry := range s.ring.All() {
		names = append(names, entry.name)
	}
	return names
}

// reaper is a background goroutine that drops idle scopes from `shards` every `interval` until `ctx` is done.
func reaper[V any](ctx context.Context, shards []*clockShard[V], idleTTL, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dropped := 0
			for _, shard := range shards {
				dropped += shard.dropIdle(now.Add(-idleTTL))
			}
			if dropped > 0 {
				scopeEvictions.WithLabelValues(evictionReasonIdle).Add(float64(dropped))
			}
		}
	}
}
