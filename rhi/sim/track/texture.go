package track

import (
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/types"
)

// TextureUses mirrors BufferUses for textures: render-attachment and
// depth-attachment writes each require exclusive access, while sampled
// reads are mutually compatible.
type TextureUses uint32

const TextureUsesNone TextureUses = 0

const (
	TextureUsesCopySrc TextureUses = 1 << iota
	TextureUsesCopyDst
	TextureUsesSampled
	TextureUsesRenderAttachment
	TextureUsesDepthStencilRead
	TextureUsesDepthStencilWrite
	TextureUsesPresent
)

func (u TextureUses) IsReadOnly() bool {
	writeUsages := TextureUsesCopyDst | TextureUsesRenderAttachment | TextureUsesDepthStencilWrite
	return u&writeUsages == 0
}

func (u TextureUses) IsCompatible(other TextureUses) bool {
	if u == TextureUsesNone || other == TextureUsesNone {
		return true
	}
	if u.IsReadOnly() && other.IsReadOnly() {
		return true
	}
	return u == other
}

func (u TextureUses) ToTextureUsage() (out types.TextureUsage) {
	if u&TextureUsesCopySrc != 0 {
		out |= types.TextureUsageCopySrc
	}
	if u&TextureUsesCopyDst != 0 {
		out |= types.TextureUsageCopyDst
	}
	if u&TextureUsesSampled != 0 {
		out |= types.TextureUsageSampled
	}
	if u&TextureUsesRenderAttachment != 0 {
		out |= types.TextureUsageRenderAttachment
	}
	if u&(TextureUsesDepthStencilRead|TextureUsesDepthStencilWrite) != 0 {
		out |= types.TextureUsageDepthStencilAttachment
	}
	return out
}

// TextureTransition is a from->to usage change for one texture.
type TextureTransition struct {
	From TextureUses
	To   TextureUses
}

func (t TextureTransition) NeedsBarrier() bool {
	if t.From == TextureUsesNone || t.From == t.To {
		return false
	}
	return !(t.From.IsReadOnly() && t.To.IsReadOnly())
}

// IntoBarrier converts a texture transition into an rhi.TextureBarrier.
func (t TextureTransition) IntoBarrier(tex rhi.Texture) rhi.TextureBarrier {
	return rhi.TextureBarrier{Texture: tex, From: t.From.ToTextureUsage(), To: t.To.ToTextureUsage()}
}

// TextureTracker tracks committed texture usage across a device's
// lifetime, indexed the same way BufferTracker is.
type TextureTracker struct {
	states   []TextureUses
	metadata ResourceMetadata
}

func NewTextureTracker() *TextureTracker {
	return &TextureTracker{states: make([]TextureUses, 0, 64), metadata: NewResourceMetadata()}
}

func (t *TextureTracker) ensureSize(n int) {
	for len(t.states) < n {
		t.states = append(t.states, TextureUsesNone)
	}
}

// Transition records a new usage for index, returning the transition
// that occurred (NeedsBarrier tells the caller whether to emit one).
func (t *TextureTracker) Transition(index TrackerIndex, usage TextureUses) TextureTransition {
	t.ensureSize(int(index) + 1)
	old := t.states[index]
	t.states[index] = usage
	t.metadata.SetOwned(index, true)
	return TextureTransition{From: old, To: usage}
}

func (t *TextureTracker) GetUsage(index TrackerIndex) TextureUses {
	if int(index) < len(t.states) && t.metadata.IsOwned(index) {
		return t.states[index]
	}
	return TextureUsesNone
}
