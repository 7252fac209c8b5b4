// Package reactive is a small keyed state store with subscriptions.
//
// Values live under string keys (atoms). Writes are gated by deep equality:
// setting a value equal to the current one is a no-op that neither bumps the
// key's version nor notifies subscribers, which is what keeps derived views
// from re-rendering on identical data.
package reactive

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/vitro/internal/metrics"
)

// Atom is a typed handle on one key of a Store.
type Atom[T any] struct {
	Key     string
	Default T
}

// NewAtom returns an atom for key with the given default value.
func NewAtom[T any](key string, def T) Atom[T] {
	return Atom[T]{Key: key, Default: def}
}

// Family is a parameterized set of atoms sharing a key prefix and default.
type Family[K comparable, T any] struct {
	Prefix  string
	Default T
}

// NewFamily returns a family whose atoms are keyed "prefix(param)".
func NewFamily[K comparable, T any](prefix string, def T) Family[K, T] {
	return Family[K, T]{Prefix: prefix, Default: def}
}

// Of returns the atom for param k.
func (f Family[K, T]) Of(k K) Atom[T] {
	return Atom[T]{Key: fmt.Sprintf("%s(%v)", f.Prefix, k), Default: f.Default}
}

// Stats counts writes applied and writes skipped by the equality gate.
type Stats struct {
	Writes  uint64
	Skipped uint64
}

// Store holds atom values. It is safe for concurrent use; the last write wins.
type Store struct {
	mu       sync.RWMutex
	values   map[string]any
	versions map[string]uint64
	subs     map[string]map[int]func()
	nextSub  int

	writes  atomic.Uint64
	skipped atomic.Uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		values:   make(map[string]any),
		versions: make(map[string]uint64),
		subs:     make(map[string]map[int]func()),
	}
}

// Get returns the atom's current value, or its default when never written.
func Get[T any](s *Store, a Atom[T]) T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return current(s, a)
}

func current[T any](s *Store, a Atom[T]) T {
	v, ok := s.values[a.Key]
	if !ok {
		return a.Default
	}
	return v.(T)
}

// Set writes v unless it is deeply equal to the current value. It reports
// whether a write happened.
func Set[T any](s *Store, a Atom[T], v T) bool {
	return Update(s, a, func(T) T { return v })
}

// Update applies fn to the current value atomically and writes the result
// under the same equality gate as Set. fn runs with the store locked and must
// not call back into s. A panic in fn leaves the value unchanged.
func Update[T any](s *Store, a Atom[T], fn func(T) T) bool {
	subs, wrote := apply(s, a, fn)
	if !wrote {
		s.skipped.Add(1)
		metrics.StateWritesSkipped.Inc()
		return false
	}

	s.writes.Add(1)
	metrics.StateWrites.Inc()
	for _, notify := range subs {
		notify()
	}
	return true
}

// apply writes fn's result under the lock and returns the subscribers to
// notify once it is released.
func apply[T any](s *Store, a Atom[T], fn func(T) T) ([]func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := current(s, a)
	next := fn(old)
	if equal(old, next) {
		return nil, false
	}
	s.values[a.Key] = next
	s.versions[a.Key]++
	return s.subscribersLocked(a.Key), true
}

// Reset restores the atom's default value.
func Reset[T any](s *Store, a Atom[T]) bool {
	return Set(s, a, a.Default)
}

// Subscribe registers fn to run after every effective write to key. The
// returned function removes the subscription.
func (s *Store) Subscribe(key string, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func())
	}
	s.subs[key][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
		if len(s.subs[key]) == 0 {
			delete(s.subs, key)
		}
	}
}

func (s *Store) subscribersLocked(key string) []func() {
	m := s.subs[key]
	if len(m) == 0 {
		return nil
	}
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(), 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// Version returns how many effective writes key has seen.
func (s *Store) Version(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[key]
}

// Keys returns the written keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns the write counters.
func (s *Store) Stats() Stats {
	return Stats{Writes: s.writes.Load(), Skipped: s.skipped.Load()}
}

// equal compares with cmp.Equal. Values cmp cannot inspect (unexported
// fields) compare as different so the write goes through.
func equal(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return cmp.Equal(a, b)
}
