// Package sparse implements a dense-packed sparse store keyed by
// generational handles: O(1) get/set/remove, and iteration over the
// dense array touches only live entries with no holes to skip.
package sparse

import "github.com/gogpu/fotia/handle"

type entry struct {
	denseIndex  uint32
	denseCookie uint32
}

// Store maps Handle[T] keys to values of type V, keeping values packed
// in a dense slice so iteration is cache-friendly and removal is O(1)
// via swap-with-last.
type Store[T handle.Marker, V any] struct {
	sparse       []*entry        // indexed by handle.Index; nil means absent
	dense        []V             // packed values, no holes
	denseToSparse []uint32       // dense[i] came from sparse[denseToSparse[i]]
}

// New creates an empty store.
func New[T handle.Marker, V any]() *Store[T, V] {
	return &Store[T, V]{}
}

func (s *Store[T, V]) ensureSparse(n int) {
	for len(s.sparse) < n {
		s.sparse = append(s.sparse, nil)
	}
}

// Contains reports whether h refers to a live entry.
func (s *Store[T, V]) Contains(h handle.Handle[T]) bool {
	if int(h.Index) >= len(s.sparse) {
		return false
	}
	e := s.sparse[h.Index]
	return e != nil && e.denseCookie == h.Cookie
}

// Set inserts the value for h. If h.Index already holds a live entry
// under a different generation (denseCookie), that entry is evicted
// first — swapped out of the dense array exactly like Remove would —
// and its value is returned as evicted with ok true, so the caller can
// react to the handle it silently overwrote rather than orphaning it.
func (s *Store[T, V]) Set(h handle.Handle[T], value V) (evicted V, ok bool) {
	s.ensureSparse(int(h.Index) + 1)
	if e := s.sparse[h.Index]; e != nil {
		if e.denseCookie == h.Cookie {
			s.dense[e.denseIndex] = value
			return evicted, false
		}
		evicted, ok = s.removeEntry(h.Index, e), true
	}
	s.dense = append(s.dense, value)
	s.denseToSparse = append(s.denseToSparse, h.Index)
	s.sparse[h.Index] = &entry{denseIndex: uint32(len(s.dense) - 1), denseCookie: h.Cookie}
	return evicted, ok
}

// Get returns the value for h and whether it was present.
func (s *Store[T, V]) Get(h handle.Handle[T]) (V, bool) {
	var zero V
	if int(h.Index) >= len(s.sparse) {
		return zero, false
	}
	e := s.sparse[h.Index]
	if e == nil || e.denseCookie != h.Cookie {
		return zero, false
	}
	return s.dense[e.denseIndex], true
}

// GetPtr returns a pointer to the stored value for in-place mutation,
// or nil if h is not present.
func (s *Store[T, V]) GetPtr(h handle.Handle[T]) *V {
	if int(h.Index) >= len(s.sparse) {
		return nil
	}
	e := s.sparse[h.Index]
	if e == nil || e.denseCookie != h.Cookie {
		return nil
	}
	return &s.dense[e.denseIndex]
}

// Remove deletes h's entry, swapping the last dense element into its
// place so the dense array stays contiguous. Removing an absent handle
// is a no-op.
func (s *Store[T, V]) Remove(h handle.Handle[T]) {
	if int(h.Index) >= len(s.sparse) {
		return
	}
	e := s.sparse[h.Index]
	if e == nil || e.denseCookie != h.Cookie {
		return
	}
	s.removeEntry(h.Index, e)
}

// removeEntry swaps e's dense slot with the last live entry, patching
// up the displaced entry's backpointer, and clears sparse[index]. It
// returns the value that occupied e's slot before eviction.
func (s *Store[T, V]) removeEntry(index uint32, e *entry) V {
	removed := s.dense[e.denseIndex]
	lastIdx := uint32(len(s.dense) - 1)
	removedIdx := e.denseIndex

	if removedIdx != lastIdx {
		s.dense[removedIdx] = s.dense[lastIdx]
		movedSparseIdx := s.denseToSparse[lastIdx]
		s.denseToSparse[removedIdx] = movedSparseIdx
		s.sparse[movedSparseIdx].denseIndex = removedIdx
	}

	s.dense = s.dense[:lastIdx]
	s.denseToSparse = s.denseToSparse[:lastIdx]
	s.sparse[index] = nil
	return removed
}

// Len returns the number of live entries.
func (s *Store[T, V]) Len() int {
	return len(s.dense)
}

// Each calls fn for every live value in dense-packed order. Mutating
// the store from within fn is not supported.
func (s *Store[T, V]) Each(fn func(V)) {
	for _, v := range s.dense {
		fn(v)
	}
}
