// Package framegraph implements the renderer's fixed pass pipeline:
// Z-prepass, G-pass, cascaded shadow maps, directional light, and
// gamma correction, wired together by a Driver that owns resize and
// per-frame submission order. The single-GPU Driver runs the CSM pass
// inline; the multi-GPU Driver offloads it to a secondary context and
// samples whatever cascade the csm.Ring has most recently delivered.
package framegraph

import (
	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/rhi/types"
)

// DrawItem is one draw call's worth of per-instance bindings, matching
// what the loader produces per submesh: a vertex/index buffer pair, an
// index range, and the shader-argument handles carrying its transform
// and (for the G-pass) material.
type DrawItem struct {
	Transform  handle.ShaderArgumentHandle
	Material   handle.ShaderArgumentHandle
	VertexBuf  handle.BufferHandle
	IndexBuf   handle.BufferHandle
	IndexFmt   types.IndexFormat
	IndexCount uint32
	StartIndex uint32
	BaseVertex int32
}

// Scene is the world iterator the driver pulls draw items from each
// frame. A real scene graph implements this over its ECS query; tests
// and the benchmark harness can implement it over a plain slice.
type Scene interface {
	// Opaque returns every opaque-geometry draw item, used by the
	// Z-prepass, G-pass, and CSM pass.
	Opaque() []DrawItem
}

// SliceScene is the trivial Scene implementation: a fixed slice of draw
// items, with no streaming or culling.
type SliceScene []DrawItem

func (s SliceScene) Opaque() []DrawItem { return s }

// Extent is a 2D pass target size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// fullscreenTriangleVertexShader draws a single oversized triangle that
// covers the viewport from 3 vertices pulled straight out of
// vertex_index, with no vertex buffer bound. Shared by every pass that
// shades a full-screen target: directional light and gamma correction.
const fullscreenTriangleVertexShader = `
@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
	let x = f32(i32(idx >> 1u) * 4 - 1);
	let y = f32(i32(idx & 1u) * 4 - 1);
	return vec4<f32>(x, y, 0.0, 1.0);
}
`
