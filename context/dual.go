package context

import (
	"fmt"
	"sync"

	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/internal/thread"
	"github.com/gogpu/fotia/rhi"
)

// DualContext holds a primary and secondary device context and
// provides the fan-out modes multi-GPU operations need: sequential,
// concurrent, or targeted at just one side. Resource creation routed
// through DualContext replicates the object on both devices under a
// single handle, so pass-authoring code never has to know which device
// backs a given resource.
type DualContext struct {
	Primary   *Context
	Secondary *Context

	primaryThread   *thread.Thread
	secondaryThread *thread.Thread

	mu           sync.Mutex
	bufferAlloc  *handle.Allocator[handle.BufferMarker]
	textureAlloc *handle.Allocator[handle.TextureMarker]
}

// NewDual pairs an already-opened primary and secondary context. The
// secondary is conventionally the adapter that renders the CSM atlas
// while the primary renders the G-buffer and composites the swapchain.
func NewDual(primary, secondary *Context) *DualContext {
	return &DualContext{
		Primary:         primary,
		Secondary:       secondary,
		primaryThread:   thread.New(),
		secondaryThread: thread.New(),
		bufferAlloc:     handle.NewAllocator[handle.BufferMarker](),
		textureAlloc:    handle.NewAllocator[handle.TextureMarker](),
	}
}

// Call runs fn against both contexts sequentially, primary first.
func (d *DualContext) Call(fn func(*Context) error) error {
	if err := fn(d.Primary); err != nil {
		return fmt.Errorf("dual context: primary: %w", err)
	}
	if err := fn(d.Secondary); err != nil {
		return fmt.Errorf("dual context: secondary: %w", err)
	}
	return nil
}

// Parallel runs fn against both contexts concurrently on the dual
// context's dedicated worker threads, joining both before returning.
// Used for symmetrical device calls where the two sides have no
// data dependency on each other within the call.
func (d *DualContext) Parallel(fn func(*Context) error) error {
	var primaryErr, secondaryErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.primaryThread.CallVoid(func() { primaryErr = fn(d.Primary) })
	}()
	go func() {
		defer wg.Done()
		d.secondaryThread.CallVoid(func() { secondaryErr = fn(d.Secondary) })
	}()
	wg.Wait()

	if primaryErr != nil {
		return fmt.Errorf("dual context: primary: %w", primaryErr)
	}
	if secondaryErr != nil {
		return fmt.Errorf("dual context: secondary: %w", secondaryErr)
	}
	return nil
}

// CallPrimary runs fn against only the primary context.
func (d *DualContext) CallPrimary(fn func(*Context) error) error {
	return fn(d.Primary)
}

// CallSecondary runs fn against only the secondary context.
func (d *DualContext) CallSecondary(fn func(*Context) error) error {
	return fn(d.Secondary)
}

// CreateSharedBuffer creates a buffer on both devices under a single
// handle allocated from the dual context's own allocator rather than
// either side's Resources table, so the handle is identical on both
// sides by construction.
func (d *DualContext) CreateSharedBuffer(desc *rhi.BufferDescriptor) (handle.BufferHandle, error) {
	d.mu.Lock()
	h := d.bufferAlloc.Allocate()
	d.mu.Unlock()

	primaryBuf, err := d.Primary.Device.CreateBuffer(desc)
	if err != nil {
		return handle.BufferHandle{}, fmt.Errorf("dual context: primary buffer: %w", err)
	}
	secondaryBuf, err := d.Secondary.Device.CreateBuffer(desc)
	if err != nil {
		return handle.BufferHandle{}, fmt.Errorf("dual context: secondary buffer: %w", err)
	}
	d.Primary.Resources.Buffers.InsertAt(h, primaryBuf)
	d.Secondary.Resources.Buffers.InsertAt(h, secondaryBuf)
	return h, nil
}

// CreateSharedTexture creates a texture on both devices under a single
// handle. Used for resources that exist locally on both sides (as
// opposed to the CSM ring's cross-adapter shared-heap textures, which
// are created directly through the owning device and opened on the
// peer via Device.OpenSharedTexture).
func (d *DualContext) CreateSharedTexture(desc *rhi.TextureDescriptor) (handle.TextureHandle, error) {
	d.mu.Lock()
	h := d.textureAlloc.Allocate()
	d.mu.Unlock()

	primaryTex, err := d.Primary.Device.CreateTexture(desc)
	if err != nil {
		return handle.TextureHandle{}, fmt.Errorf("dual context: primary texture: %w", err)
	}
	secondaryTex, err := d.Secondary.Device.CreateTexture(desc)
	if err != nil {
		return handle.TextureHandle{}, fmt.Errorf("dual context: secondary texture: %w", err)
	}
	d.Primary.Resources.Textures.InsertAt(h, primaryTex)
	d.Secondary.Resources.Textures.InsertAt(h, secondaryTex)
	return h, nil
}

// Close stops the dual context's worker threads. Callers should first
// drain both devices (wait_idle on every queue) so no in-flight work
// references a thread that is about to exit.
func (d *DualContext) Close() {
	d.primaryThread.Stop()
	d.secondaryThread.Stop()
}
