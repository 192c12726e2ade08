package sim

import (
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/fotia/descriptor"
	"github.com/gogpu/fotia/rhi"
)

// Adapter is a simulated physical device. Two Adapters with distinct
// names stand in for the primary and secondary GPU in a dual-adapter
// build; heap, if non-nil, is shared between an adapter pair so
// CrossAdapter-flavor textures opened on one side resolve to the same
// backing allocation on the other. NewAdapter alone never populates
// heap — a lone adapter with sharesHeap set still gets its own private
// heap from Open, which is fine for exercising the CrossAdapter path in
// isolation but can never successfully OpenSharedTexture a peer's
// handle. NewAdapterPair is what actually wires two adapters together.
type Adapter struct {
	name       string
	sharesHeap bool
	heap       *sharedHeap
}

// NewAdapter creates a simulated adapter. sharesHeap should be true for
// adapters that participate in a cross-adapter shared-heap pair; false
// forces the Bound (shadow-copy) texture flavor for any cross-adapter
// request. The returned adapter has no paired peer; use NewAdapterPair
// to construct two adapters that actually share one heap.
func NewAdapter(name string, sharesHeap bool) *Adapter {
	return &Adapter{name: name, sharesHeap: sharesHeap}
}

// NewAdapterPair creates two adapters backed by one shared heap, so a
// CrossAdapter texture created on either side's Device can be opened
// from the other via Device.OpenSharedTexture. Both adapters report
// SupportsSharedHeaps() == true.
func NewAdapterPair(nameA, nameB string) (*Adapter, *Adapter) {
	heap := newSharedHeap()
	return &Adapter{name: nameA, sharesHeap: true, heap: heap},
		&Adapter{name: nameB, sharesHeap: true, heap: heap}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) SupportsSharedHeaps() bool { return a.sharesHeap }

func (a *Adapter) Open() (rhi.Device, rhi.Queue, error) {
	heap := a.heap
	if heap == nil {
		heap = newSharedHeap()
	}
	dev := &Device{adapter: a, shared: heap, descriptors: descriptor.NewDefault()}
	return dev, &Queue{device: dev}, nil
}

func (a *Adapter) Destroy() {}

// sharedHeap is the in-process stand-in for a cross-adapter shared
// memory heap: a registry of byte slices keyed by an opaque handle, so a
// texture created CrossAdapter on one simulated adapter can be opened
// by the other without copying.
type sharedHeap struct {
	entries map[uint64][]byte
	next    uint64
}

func newSharedHeap() *sharedHeap {
	return &sharedHeap{entries: make(map[uint64][]byte)}
}

func (h *sharedHeap) alloc(size uint64) (uint64, []byte) {
	h.next++
	id := h.next
	buf := make([]byte, size)
	h.entries[id] = buf
	return id, buf
}

func (h *sharedHeap) open(id uint64) ([]byte, bool) {
	buf, ok := h.entries[id]
	return buf, ok
}

// CreateShaderModule parses and lowers WGSL source with naga, surfacing
// any compile failure to the caller. Per the renderer's error policy,
// shader compile failures are fatal at startup: callers are expected to
// treat a non-nil error here as unrecoverable rather than retry.
func (d *Device) CreateShaderModule(desc *rhi.ShaderModuleDescriptor) (rhi.ShaderModule, error) {
	ast, err := naga.Parse(desc.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: parse: %v", rhi.ErrShaderCompile, desc.Label, err)
	}
	module, err := naga.LowerWithSource(ast, desc.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: lower: %v", rhi.ErrShaderCompile, desc.Label, err)
	}
	return &ShaderModule{label: desc.Label, module: module}, nil
}

// ShaderModule holds the lowered naga IR module; the simulated backend
// never translates it further since it never issues real GPU draws, but
// keeping the IR around lets validation (entry point signatures, binding
// layout) run the same way a native backend's compile step would.
type ShaderModule struct {
	label  string
	module any
}

func (s *ShaderModule) Destroy() {}
