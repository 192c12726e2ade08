package context

import (
	"sync"

	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/sparse"
)

// Table is a mutex-guarded handle allocator paired with the sparse
// store it backs: the generic building block every resource kind's
// device-object map is built from. Lookups take a read lock; mutation
// takes a write lock, matching the read-heavy access pattern a frame
// graph driver exhibits (many binds per frame, few creates/destroys).
type Table[T handle.Marker, V any] struct {
	mu    sync.RWMutex
	alloc *handle.Allocator[T]
	store *sparse.Store[T, V]
}

// NewTable creates an empty table.
func NewTable[T handle.Marker, V any]() *Table[T, V] {
	return &Table[T, V]{alloc: handle.NewAllocator[T](), store: sparse.New[T, V]()}
}

// Insert allocates a fresh handle for v and stores it.
func (t *Table[T, V]) Insert(v V) handle.Handle[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.alloc.Allocate()
	t.store.Set(h, v)
	return h
}

// InsertAt stores v under an externally allocated handle, bypassing
// this table's own allocator. Used when a dual-context call needs the
// same handle to resolve against both devices' tables.
func (t *Table[T, V]) InsertAt(h handle.Handle[T], v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Set(h, v)
}

// Get returns the value for h and whether it was present.
func (t *Table[T, V]) Get(h handle.Handle[T]) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Get(h)
}

// Remove deletes h's entry and frees its slot for reuse. Removing an
// absent or stale handle is a no-op.
func (t *Table[T, V]) Remove(h handle.Handle[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Remove(h)
	t.alloc.Free(h)
}

// Allocate reserves a handle without storing a value yet, for callers
// that need the handle before the device object exists (e.g. dual
// context replication).
func (t *Table[T, V]) Allocate() handle.Handle[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alloc.Allocate()
}

// Len reports the number of live entries, for telemetry.
func (t *Table[T, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Len()
}

// Resources is one device's shared resource map: every live device
// object, addressed by the handle its creator received. A Context owns
// exactly one Resources; its Graphics/Compute/Transfer/Uploader queues
// borrow a reference to it rather than the context borrowing back from
// them, avoiding a context<->queue ownership cycle.
type Resources struct {
	Buffers         *Table[handle.BufferMarker, rhi.Buffer]
	Textures        *Table[handle.TextureMarker, rhi.Texture]
	Samplers        *Table[handle.SamplerMarker, rhi.Sampler]
	ShaderArguments *Table[handle.ShaderArgumentMarker, rhi.ShaderArgument]
	PipelineLayouts *Table[handle.PipelineLayoutMarker, rhi.PipelineLayout]
	RasterPipelines *Table[handle.RasterPipelineMarker, rhi.RasterPipeline]
}

// NewResources creates empty resource tables for all six tracked kinds.
func NewResources() *Resources {
	return &Resources{
		Buffers:         NewTable[handle.BufferMarker, rhi.Buffer](),
		Textures:        NewTable[handle.TextureMarker, rhi.Texture](),
		Samplers:        NewTable[handle.SamplerMarker, rhi.Sampler](),
		ShaderArguments: NewTable[handle.ShaderArgumentMarker, rhi.ShaderArgument](),
		PipelineLayouts: NewTable[handle.PipelineLayoutMarker, rhi.PipelineLayout](),
		RasterPipelines: NewTable[handle.RasterPipelineMarker, rhi.RasterPipeline](),
	}
}
