package cache

import "sync"

// Guarded serializes every call to an underlying Similarity with a mutex, so one cache can be shared by several
// goroutines. Each call still runs to completion before the next one starts.
type Guarded[V any] struct {
	mux   sync.Mutex
	inner *Similarity[V]
}

var _ Layer[int] = (*Guarded[int])(nil)

// NewGuarded wraps `inner`. The caller must not use `inner` directly afterwards.
func NewGuarded[V any](inner *Similarity[V]) *Guarded[V] {
	return &Guarded[V]{inner: inner}
}

func (g *Guarded[V]) Insert(key, text string, value V) Match[V] {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.inner.Insert(key, text, value)
}

func (g *Guarded[V]) InsertText(key, text string) Match[V] {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.inner.InsertText(key, text)
}

func (g *Guarded[V]) Len() int {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.inner.Len()
}

func (g *Guarded[V]) Keys() []string {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.inner.Keys()
}
