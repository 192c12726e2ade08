package sim

import (
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/types"
)

// Queue replays each submitted CommandBuffer's recorded op list
// synchronously, then signals the fence. A real backend would hand the
// buffer to hardware and signal asynchronously; the simulated backend
// keeps the same call shape so higher layers never know the difference.
type Queue struct {
	device *Device
}

func (q *Queue) Submit(buffers []rhi.CommandBuffer, fence rhi.Fence, fenceValue uint64) error {
	for _, cb := range buffers {
		b, ok := cb.(*CommandBuffer)
		if !ok {
			continue
		}
		for _, op := range b.ops {
			op()
		}
	}
	if fence != nil {
		if f, ok := fence.(*Fence); ok {
			f.signal(fenceValue)
		}
	}
	return nil
}

func (q *Queue) WriteBuffer(buf rhi.Buffer, offset uint64, data []byte) error {
	if b, ok := buf.(*Buffer); ok {
		b.write(offset, data)
	}
	return nil
}

func (q *Queue) WriteTexture(dst rhi.Texture, data []byte, _ types.Extent3D) error {
	if t, ok := dst.(*Texture); ok {
		t.mu.Lock()
		copy(t.data, data)
		t.mu.Unlock()
	}
	return nil
}

func (q *Queue) Present(surface rhi.Surface, _ rhi.SurfaceTexture) error {
	_, ok := surface.(*Surface)
	if !ok {
		return nil
	}
	return nil
}

// GetTimestampPeriod returns 1.0: one timestamp tick is one nanosecond
// in the simulated backend, so ms = delta_ticks / 1e6 directly.
func (q *Queue) GetTimestampPeriod() float32 { return 1.0 }
