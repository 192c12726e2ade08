package sparse

import (
	"testing"

	"github.com/gogpu/fotia/handle"
)

func TestSetGetRemove(t *testing.T) {
	s := New[handle.BufferMarker, string]()
	alloc := handle.NewAllocator[handle.BufferMarker]()

	h1 := alloc.Allocate()
	s.Set(h1, "one")

	v, ok := s.Get(h1)
	if !ok || v != "one" {
		t.Fatalf("expected (one, true), got (%v, %v)", v, ok)
	}

	s.Remove(h1)
	if _, ok := s.Get(h1); ok {
		t.Fatal("expected removed handle to be absent")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got len %d", s.Len())
	}
}

func TestSwapRemoveKeepsOthersIntact(t *testing.T) {
	s := New[handle.BufferMarker, int]()
	alloc := handle.NewAllocator[handle.BufferMarker]()

	h1 := alloc.Allocate()
	h2 := alloc.Allocate()
	h3 := alloc.Allocate()
	s.Set(h1, 1)
	s.Set(h2, 2)
	s.Set(h3, 3)

	s.Remove(h1) // forces swap-with-last (h3 moves into h1's dense slot)

	v2, ok2 := s.Get(h2)
	v3, ok3 := s.Get(h3)
	if !ok2 || v2 != 2 {
		t.Fatalf("h2 corrupted after removal: %v %v", v2, ok2)
	}
	if !ok3 || v3 != 3 {
		t.Fatalf("h3 corrupted after removal: %v %v", v3, ok3)
	}
	if s.Len() != 2 {
		t.Fatalf("expected len 2, got %d", s.Len())
	}
}

func TestStaleHandleAfterReallocation(t *testing.T) {
	s := New[handle.BufferMarker, int]()
	alloc := handle.NewAllocator[handle.BufferMarker]()

	h1 := alloc.Allocate()
	s.Set(h1, 100)
	alloc.Free(h1)
	s.Remove(h1)

	h2 := alloc.Allocate() // reuses h1's index with a bumped cookie
	if _, ok := s.Get(h1); ok {
		t.Fatal("stale handle must not resolve after reallocation")
	}
	s.Set(h2, 200)
	v, ok := s.Get(h2)
	if !ok || v != 200 {
		t.Fatalf("expected (200, true) for reallocated handle, got (%v, %v)", v, ok)
	}
}

func TestSetEvictsStaleCookieAndReturnsOldValue(t *testing.T) {
	s := New[handle.BufferMarker, int]()
	alloc := handle.NewAllocator[handle.BufferMarker]()

	h1 := alloc.Allocate()
	h2 := alloc.Allocate()
	s.Set(h1, 1)
	s.Set(h2, 2)

	// Same index as h1, a newer cookie — simulates the slot being
	// reused for a fresh resource while the store still holds an entry
	// under the old generation.
	reused := handle.Handle[handle.BufferMarker]{Index: h1.Index, Cookie: h1.Cookie + 1}
	evicted, ok := s.Set(reused, 100)
	if !ok || evicted != 1 {
		t.Fatalf("expected to evict the old value 1, got (%v, %v)", evicted, ok)
	}

	if _, ok := s.Get(h1); ok {
		t.Fatal("expected the old generation's handle to no longer resolve")
	}
	v, ok := s.Get(reused)
	if !ok || v != 100 {
		t.Fatalf("expected (100, true) for the reused handle, got (%v, %v)", v, ok)
	}
	v2, ok2 := s.Get(h2)
	if !ok2 || v2 != 2 {
		t.Fatalf("h2 corrupted by eviction: %v %v", v2, ok2)
	}
	if s.Len() != 2 {
		t.Fatalf("expected len 2 after evict-and-reinsert, got %d", s.Len())
	}
}

func TestSetOverwriteSameCookieReturnsNotOk(t *testing.T) {
	s := New[handle.BufferMarker, int]()
	alloc := handle.NewAllocator[handle.BufferMarker]()

	h1 := alloc.Allocate()
	s.Set(h1, 1)
	evicted, ok := s.Set(h1, 2)
	if ok || evicted != 0 {
		t.Fatalf("expected no eviction overwriting the same generation, got (%v, %v)", evicted, ok)
	}
	v, _ := s.Get(h1)
	if v != 2 {
		t.Fatalf("expected overwritten value 2, got %d", v)
	}
}

func TestEachVisitsAllLiveValues(t *testing.T) {
	s := New[handle.BufferMarker, int]()
	alloc := handle.NewAllocator[handle.BufferMarker]()
	sum := 0
	for i := 0; i < 5; i++ {
		h := alloc.Allocate()
		s.Set(h, i)
	}
	s.Each(func(v int) { sum += v })
	if sum != 0+1+2+3+4 {
		t.Fatalf("expected sum 10, got %d", sum)
	}
}
