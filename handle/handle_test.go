package handle

import "testing"

func TestAllocateIsValid(t *testing.T) {
	a := NewAllocator[BufferMarker]()
	h := a.Allocate()
	if !a.IsValid(h) {
		t.Fatal("freshly allocated handle must be valid")
	}
	if h.IsNil() {
		t.Fatal("allocated handle must not be nil")
	}
}

func TestFreeInvalidatesHandle(t *testing.T) {
	a := NewAllocator[BufferMarker]()
	h := a.Allocate()
	a.Free(h)
	if a.IsValid(h) {
		t.Fatal("freed handle must be invalid")
	}
}

func TestReallocationBumpsCookie(t *testing.T) {
	a := NewAllocator[BufferMarker]()
	h1 := a.Allocate()
	a.Free(h1)
	h2 := a.Allocate()

	if h2.Index != h1.Index {
		t.Fatalf("expected slot reuse: h1.Index=%d h2.Index=%d", h1.Index, h2.Index)
	}
	if h2.Cookie == h1.Cookie {
		t.Fatal("reused slot must get a new cookie")
	}
	if a.IsValid(h1) {
		t.Fatal("stale handle to a reused slot must stay invalid")
	}
	if !a.IsValid(h2) {
		t.Fatal("the new handle to the reused slot must be valid")
	}
}

func TestDoubleFreeIsNoop(t *testing.T) {
	a := NewAllocator[BufferMarker]()
	h := a.Allocate()
	a.Free(h)
	a.Free(h) // must not panic or corrupt the free list
	h2 := a.Allocate()
	if a.Count() != 1 {
		t.Fatalf("expected 1 live handle after double free + reallocate, got %d", a.Count())
	}
	if !a.IsValid(h2) {
		t.Fatal("reallocated handle must be valid")
	}
}

func TestCountTracksLiveHandles(t *testing.T) {
	a := NewAllocator[TextureMarker]()
	h1 := a.Allocate()
	h2 := a.Allocate()
	if a.Count() != 2 {
		t.Fatalf("expected count 2, got %d", a.Count())
	}
	a.Free(h1)
	if a.Count() != 1 {
		t.Fatalf("expected count 1 after free, got %d", a.Count())
	}
	_ = h2
}

func TestNilHandleIsInvalid(t *testing.T) {
	a := NewAllocator[BufferMarker]()
	var zero Handle[BufferMarker]
	if a.IsValid(zero) {
		t.Fatal("zero-value handle must never be valid")
	}
}
