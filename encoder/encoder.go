// Package encoder wraps the low-level rhi.CommandEncoder with automatic
// barrier batching: callers declare how each handle-identified resource
// is used this pass, and the encoder resolves the minimal set of
// buffer/texture transitions against device-wide tracking state before
// the pass begins, instead of every call site hand-rolling barriers.
package encoder

import (
	"fmt"

	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/sim/track"
)

// Tracking holds the device-wide committed usage state that every
// frame's encoder merges its pass scopes into. One Tracking instance is
// shared across all encoders of a device.
type Tracking struct {
	buffers  *track.BufferTracker
	textures *track.TextureTracker
}

// NewTracking creates empty device-wide tracking state.
func NewTracking() *Tracking {
	return &Tracking{buffers: track.NewBufferTracker(), textures: track.NewTextureTracker()}
}

// Encoder batches resource-usage declarations into barrier sets around
// an underlying rhi.CommandEncoder.
type Encoder struct {
	raw      rhi.CommandEncoder
	tracking *Tracking

	bufferScope *track.BufferUsageScope
	bufferRes   map[uint32]rhi.Buffer
	textureRes  map[uint32]rhi.Texture
	textureUses map[uint32]track.TextureUses
}

// New wraps a freshly created low-level encoder, sharing tracking with
// every other encoder on the same device.
func New(raw rhi.CommandEncoder, tracking *Tracking) *Encoder {
	return &Encoder{
		raw:         raw,
		tracking:    tracking,
		bufferScope: track.NewBufferUsageScope(),
		bufferRes:   make(map[uint32]rhi.Buffer),
		textureRes:  make(map[uint32]rhi.Texture),
		textureUses: make(map[uint32]track.TextureUses),
	}
}

// Begin starts recording a fresh command buffer.
func (e *Encoder) Begin(label string) error {
	e.bufferScope.Clear()
	e.bufferRes = make(map[uint32]rhi.Buffer)
	e.textureRes = make(map[uint32]rhi.Texture)
	e.textureUses = make(map[uint32]track.TextureUses)
	return e.raw.BeginEncoding(label)
}

// UseBuffer declares that buf (identified by h) is used this pass with
// the given usage bits, merging with any prior declaration for h within
// this pass. A conflicting declaration (e.g. copy-dst and uniform in the
// same pass) is returned as an error rather than silently resolved.
func (e *Encoder) UseBuffer(h handle.BufferHandle, buf rhi.Buffer, uses track.BufferUses) error {
	if err := e.bufferScope.SetUsage(track.TrackerIndex(h.Index), uses); err != nil {
		return fmt.Errorf("encoder: buffer %v: %w", h, err)
	}
	e.bufferRes[h.Index] = buf
	return nil
}

// UseTexture declares that tex (identified by h) is used this pass with
// the given usage. Unlike buffers, texture usages are not merged into a
// conflict-checked scope: the usage is recorded per handle and resolved
// against the device tracker at the next FlushBarriers, and a later call
// for the same handle replaces the earlier usage.
func (e *Encoder) UseTexture(h handle.TextureHandle, tex rhi.Texture, uses track.TextureUses) {
	e.textureRes[h.Index] = tex
	e.textureUses[h.Index] = uses
}

// FlushBarriers resolves every UseBuffer/UseTexture declaration made
// since the last flush into the minimal set of barriers and records
// them on the underlying encoder. Callers flush once per pass,
// immediately before BeginRenderPass (or before issuing copies that
// don't run inside a render pass).
func (e *Encoder) FlushBarriers() {
	pending := e.tracking.buffers.Merge(e.bufferScope)
	if len(pending) > 0 {
		barriers := make([]rhi.BufferBarrier, 0, len(pending))
		for _, p := range pending {
			if !p.Usage.NeedsBarrier() {
				continue
			}
			buf, ok := e.bufferRes[uint32(p.Index)]
			if !ok {
				continue
			}
			barriers = append(barriers, p.IntoBarrier(buf))
		}
		if len(barriers) > 0 {
			e.raw.TransitionBuffers(barriers)
		}
	}
	e.bufferScope.Clear()

	if len(e.textureUses) > 0 {
		var barriers []rhi.TextureBarrier
		for index, uses := range e.textureUses {
			transition := e.tracking.textures.Transition(track.TrackerIndex(index), uses)
			if !transition.NeedsBarrier() {
				continue
			}
			tex, ok := e.textureRes[index]
			if !ok {
				continue
			}
			barriers = append(barriers, transition.IntoBarrier(tex))
		}
		if len(barriers) > 0 {
			e.raw.TransitionTextures(barriers)
		}
		e.textureUses = make(map[uint32]track.TextureUses)
	}
}

// BeginRenderPass flushes any pending barriers and begins a render
// pass on the underlying encoder.
func (e *Encoder) BeginRenderPass(desc *rhi.RenderPassDescriptor) rhi.RenderPassEncoder {
	e.FlushBarriers()
	return e.raw.BeginRenderPass(desc)
}

// CopyBufferToBuffer flushes pending barriers, then records the copy.
func (e *Encoder) CopyBufferToBuffer(src, dst rhi.Buffer, regions []rhi.BufferCopy) {
	e.FlushBarriers()
	e.raw.CopyBufferToBuffer(src, dst, regions)
}

// CopyBufferToTexture flushes pending barriers, then records the copy.
func (e *Encoder) CopyBufferToTexture(src rhi.Buffer, dst rhi.Texture, regions []rhi.BufferTextureCopy) {
	e.FlushBarriers()
	e.raw.CopyBufferToTexture(src, dst, regions)
}

// CopyTextureToBuffer flushes pending barriers, then records the copy.
func (e *Encoder) CopyTextureToBuffer(src rhi.Texture, dst rhi.Buffer, regions []rhi.BufferTextureCopy) {
	e.FlushBarriers()
	e.raw.CopyTextureToBuffer(src, dst, regions)
}

// CopyTextureToTexture flushes pending barriers, then records the copy.
// Used by the CSM ring's copier step to pull a cascade texture across
// adapters once the producing side's shared-heap texture is opened
// locally via rhi.Device.OpenSharedTexture.
func (e *Encoder) CopyTextureToTexture(src, dst rhi.Texture, regions []rhi.TextureCopy) {
	e.FlushBarriers()
	e.raw.CopyTextureToTexture(src, dst, regions)
}

// WriteTimestamp bookmarks the current position in the command stream
// for later resolution by the queue's timestamp-resolution path.
func (e *Encoder) WriteTimestamp(index uint32) {
	e.raw.WriteTimestamp(index)
}

// End finishes recording without submitting, handing the resulting
// command buffer back to the caller (normally passed straight to
// queue.Queue.Submit).
func (e *Encoder) End() (rhi.CommandBuffer, error) {
	return e.raw.EndEncoding()
}

// Discard abandons in-progress recording, returning the raw encoder to
// its pool without producing a command buffer.
func (e *Encoder) Discard() {
	e.raw.DiscardEncoding()
}

// Raw exposes the underlying low-level encoder for operations that
// don't need barrier batching (e.g. ClearBuffer).
func (e *Encoder) Raw() rhi.CommandEncoder { return e.raw }
