// Package descriptor implements fixed-size range-allocated descriptor
// heaps: render-target, depth-stencil, shader-visible (CBV/SRV/UAV), and
// sampler pools. Each pool is a single contiguous range handed out by a
// free-list bump allocator; running out of slots is a fatal
// configuration error, not a runtime condition to recover from, since
// the baseline sizes are sized generously enough that exhaustion means
// the frame graph is leaking descriptors.
package descriptor

import "fmt"

// Kind identifies which heap a slot was allocated from.
type Kind uint8

const (
	KindRenderTarget Kind = iota
	KindDepthStencil
	KindShaderResource
	KindSampler
)

// Baseline pool capacities. These match what a single-pass deferred
// renderer with a handful of CSM cascades actually needs: enough RTVs
// for the G-buffer and swapchain, enough DSVs for the Z-prepass and
// cascade depth targets, a generous shader-visible heap for per-material
// and per-pass bindings, and a small sampler heap since the renderer
// only ever needs a handful of distinct filter/compare configurations.
const (
	DefaultRenderTargetCapacity   = 128
	DefaultDepthStencilCapacity   = 128
	DefaultShaderResourceCapacity = 1024
	DefaultSamplerCapacity        = 32
)

// ErrPoolExhausted is returned (and should be treated as fatal) when a
// pool's slots are fully allocated.
type ErrPoolExhausted struct {
	Kind     Kind
	Capacity int
}

func (e *ErrPoolExhausted) Error() string {
	return fmt.Sprintf("descriptor: %s pool exhausted (capacity %d)", e.Kind, e.Capacity)
}

func (k Kind) String() string {
	switch k {
	case KindRenderTarget:
		return "render-target"
	case KindDepthStencil:
		return "depth-stencil"
	case KindShaderResource:
		return "shader-resource"
	case KindSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// Slot is an index into a pool's backing range.
type Slot uint32

// pool is a single fixed-capacity free-list allocator over [0, capacity).
type pool struct {
	kind     Kind
	capacity int
	free     []Slot
	next     Slot
}

func newPool(kind Kind, capacity int) *pool {
	return &pool{kind: kind, capacity: capacity}
}

func (p *pool) allocate() (Slot, error) {
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s, nil
	}
	if int(p.next) >= p.capacity {
		return 0, &ErrPoolExhausted{Kind: p.kind, Capacity: p.capacity}
	}
	s := p.next
	p.next++
	return s, nil
}

func (p *pool) release(s Slot) {
	p.free = append(p.free, s)
}

func (p *pool) inUse() int {
	return int(p.next) - len(p.free)
}

// Pool bundles the four fixed-size descriptor heaps a device needs.
// Capacities are set once at construction; there is no dynamic growth,
// matching a real descriptor heap's fixed allocation at device creation.
type Pool struct {
	renderTarget   *pool
	depthStencil   *pool
	shaderResource *pool
	sampler        *pool
}

// Config overrides the default pool capacities; a zero field falls back
// to the corresponding Default* constant.
type Config struct {
	RenderTargetCapacity   int
	DepthStencilCapacity   int
	ShaderResourceCapacity int
	SamplerCapacity        int
}

// New creates descriptor pools sized per cfg, substituting defaults for
// any zero field.
func New(cfg Config) *Pool {
	pick := func(v, def int) int {
		if v <= 0 {
			return def
		}
		return v
	}
	return &Pool{
		renderTarget:   newPool(KindRenderTarget, pick(cfg.RenderTargetCapacity, DefaultRenderTargetCapacity)),
		depthStencil:   newPool(KindDepthStencil, pick(cfg.DepthStencilCapacity, DefaultDepthStencilCapacity)),
		shaderResource: newPool(KindShaderResource, pick(cfg.ShaderResourceCapacity, DefaultShaderResourceCapacity)),
		sampler:        newPool(KindSampler, pick(cfg.SamplerCapacity, DefaultSamplerCapacity)),
	}
}

// NewDefault creates descriptor pools at the baseline capacities.
func NewDefault() *Pool {
	return New(Config{})
}

func (p *Pool) poolFor(kind Kind) *pool {
	switch kind {
	case KindRenderTarget:
		return p.renderTarget
	case KindDepthStencil:
		return p.depthStencil
	case KindShaderResource:
		return p.shaderResource
	case KindSampler:
		return p.sampler
	default:
		panic(fmt.Sprintf("descriptor: unknown kind %d", kind))
	}
}

// Allocate reserves a slot from the given heap. A non-nil error is
// always *ErrPoolExhausted and should be treated as fatal: callers
// should not retry, since the renderer's fixed-capacity pools never
// free up space except through explicit Release.
func (p *Pool) Allocate(kind Kind) (Slot, error) {
	return p.poolFor(kind).allocate()
}

// Release returns a previously allocated slot to its heap for reuse.
func (p *Pool) Release(kind Kind, s Slot) {
	p.poolFor(kind).release(s)
}

// InUse reports the number of slots currently allocated from the given
// heap, for telemetry and pool-pressure diagnostics.
func (p *Pool) InUse(kind Kind) int {
	return p.poolFor(kind).inUse()
}
