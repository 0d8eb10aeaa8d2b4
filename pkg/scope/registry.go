// Flood control usually happens per scope: a chat room, a user, a form. Each scope gets its own similarity cache so
// that a busy scope can't push a quiet scope's entries out and texts are only compared within their scope.
//
// This module implements the scope registry. Scopes are distributed uniformly across shards by hashing their names;
// each shard has its own lock and its own CLOCK ring (see clock.go), so goroutines working on different scopes rarely
// contend. A scope's cache is guarded by its own mutex, so the shard lock is only held for the lookup.

package scope

import (
	"context"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/nobletooth/parrot/pkg/cache"
	"github.com/nobletooth/parrot/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	evictionReasonCapacity = "capacity"
	evictionReasonIdle     = "idle"
)

var (
	scopeEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scope_evictions_total",
		Help: "Total number of scopes dropped from the registry.",
	}, []string{"reason" /* capacity | idle */})
	entryEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scope_entry_evictions_total",
		Help: "Total number of entries evicted from scope caches to make room for new keys.",
	})
)

// Options configures a Registry.
type Options struct {
	ShardCount     int             // Number of independently locked shards.
	ScopesPerShard int             // Maximum number of live scopes per shard.
	CacheCapacity  int             // Entries per scope; 0 or negative disables similarity caching.
	Weighting      cache.Weighting // Bigram weighting of the scope caches.
	IdleTTL        time.Duration   // Scopes unused for this long are dropped; 0 or negative keeps them.
	TickInterval   time.Duration   // How often the reaper looks for idle scopes.
}

// Registry maps scope names to similarity caches. It is safe for concurrent use.
type Registry[V any] struct {
	shards []*clockShard[V]
}

// NewRegistry is the constructor for Registry. The idle reaper (if enabled) stops when `ctx` is done.
func NewRegistry[V any](ctx context.Context, opts Options) *Registry[V] {
	// Ensure there is at least one shard.
	if opts.ShardCount <= 0 {
		utils.RaiseInvariant("scope", "non_positive_shard_count",
			"Invalid shard count has been given to scope registry.", "shardCount", opts.ShardCount)
		opts.ShardCount = 1
	}

	newLayer := func() cache.Layer[V] {
		if opts.CacheCapacity <= 0 {
			return cache.NewNoOp[V]()
		}
		return cache.NewGuarded(cache.NewSimilarity(opts.CacheCapacity, opts.Weighting,
			func(string, utils.Optional[V]) { entryEvictions.Inc() }))
	}
	registry := &Registry[V]{shards: make([]*clockShard[V], opts.ShardCount)}
	for i := range opts.ShardCount {
		registry.shards[i] = newClockShard(opts.ScopesPerShard, newLayer)
	}

	if opts.IdleTTL > 0 {
		tickInterval := opts.TickInterval
		if tickInterval <= 0 {
			tickInterval = opts.IdleTTL
		}
		go reaper(ctx, registry.shards, opts.IdleTTL, tickInterval)
	}
	return registry
}

// getShard determines which shard a scope belongs to.
func (r *Registry[V]) getShard(scope string) *clockShard[V] {
	return r.shards[xxhash.Sum64String(scope)%uint64(len(r.shards))]
}

// Insert stores the entry in the cache of `scope`, creating the scope if needed, and returns the best match.
func (r *Registry[V]) Insert(scope, key, text string, value V) cache.Match[V] {
	if key == "" { // Stores nothing, so it must not create or refresh the scope either.
		return cache.Match[V]{Score: cache.NoMatchScore}
	}
	layer, _ := r.getShard(scope).lookup(scope, true /*create*/)
	return layer.Insert(key, text, value)
}

// InsertText is Insert without a payload.
func (r *Registry[V]) InsertText(scope, key, text string) cache.Match[V] {
	if key == "" {
		return cache.Match[V]{Score: cache.NoMatchScore}
	}
	layer, _ := r.getShard(scope).lookup(scope, true /*create*/)
	return layer.InsertText(key, text)
}

// Len returns the number of entries cached for `scope`; unknown scopes have none.
func (r *Registry[V]) Len(scope string) int {
	if layer, found := r.getShard(scope).lookup(scope, false /*create*/); found {
		return layer.Len()
	}
	return 0
}

// Keys returns the keys cached for `scope`, oldest first.
func (r *Registry[V]) Keys(scope string) []string {
	if layer, found := r.getShard(scope).lookup(scope, false /*create*/); found {
		return layer.Keys()
	}
	return nil
}

// Scopes returns the names of all live scopes, sorted.
func (r *Registry[V]) Scopes() []string {
	names := make([]string, 0)
	for _, shard := range r.shards {
		names = append(names, shard.names()...)
	}
	slices.Sort(names)
	return names
}
