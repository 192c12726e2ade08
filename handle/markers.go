package handle

// The marker types below exist purely to parameterize Handle[T] and
// Allocator[T]; none of them carry data or are ever constructed.

type BufferMarker struct{}

func (BufferMarker) handleMarker() {}

type TextureMarker struct{}

func (TextureMarker) handleMarker() {}

type SamplerMarker struct{}

func (SamplerMarker) handleMarker() {}

type ShaderArgumentMarker struct{}

func (ShaderArgumentMarker) handleMarker() {}

type PipelineLayoutMarker struct{}

func (PipelineLayoutMarker) handleMarker() {}

type RasterPipelineMarker struct{}

func (RasterPipelineMarker) handleMarker() {}

// Common handle aliases used across the context, csm, encoder, and
// framegraph packages so callers don't have to spell out the marker type.
type (
	BufferHandle          = Handle[BufferMarker]
	TextureHandle         = Handle[TextureMarker]
	SamplerHandle         = Handle[SamplerMarker]
	ShaderArgumentHandle  = Handle[ShaderArgumentMarker]
	PipelineLayoutHandle  = Handle[PipelineLayoutMarker]
	RasterPipelineHandle  = Handle[RasterPipelineMarker]
)
