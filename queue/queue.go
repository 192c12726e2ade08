// Package queue implements the command queue: a triple-buffered pool of
// command encoders plus a monotonic fence, so the CPU can record frame
// N+1 while the GPU (or, in the simulated backend, the previous
// Submit's replay) is still consuming frame N.
package queue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/fotia/internal/logging"
	"github.com/gogpu/fotia/rhi"
)

// FramesInFlight is the number of concurrently outstanding frames the
// allocator pool supports. Three matches the renderer's default
// double-buffered-plus-one-recording slack.
const FramesInFlight = 3

// slot holds one frame-in-flight's recording resources: its own
// encoder, so recording frame N+1 never touches frame N's in-flight
// command buffer, and the sync-point value that frame's submission
// will signal.
type slot struct {
	encoder    rhi.CommandEncoder
	syncPoint  uint64
	recordedAt time.Time
}

// Queue wraps an rhi.Device/rhi.Queue pair with frame-pacing state: a
// recycled pool of command encoders and a monotonically increasing
// fence whose value identifies each submitted frame (a "sync-point").
type Queue struct {
	device rhi.Device
	rq     rhi.Queue
	fence  rhi.Fence

	slots      [FramesInFlight]slot
	current    int
	nextSync   uint64
	timestampPeriod float32
}

// New creates a command queue over an opened device/queue pair.
func New(device rhi.Device, rq rhi.Queue) (*Queue, error) {
	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("queue: create fence: %w", err)
	}
	q := &Queue{device: device, rq: rq, fence: fence, timestampPeriod: rq.GetTimestampPeriod()}
	for i := range q.slots {
		enc, err := device.CreateCommandEncoder()
		if err != nil {
			return nil, fmt.Errorf("queue: create encoder %d: %w", i, err)
		}
		q.slots[i].encoder = enc
	}
	return q, nil
}

// Acquire blocks until the frame-in-flight slot this call will reuse has
// finished its previous submission, then returns a fresh encoder ready
// for recording and the sync-point value this frame will signal on
// Submit.
func (q *Queue) Acquire(label string) (rhi.CommandEncoder, uint64, error) {
	idx := q.current % FramesInFlight
	s := &q.slots[idx]

	if s.syncPoint != 0 {
		// wait_on_cpu(s2) implies s1 complete: blocking for this slot's
		// prior sync-point also guarantees every earlier sync-point
		// already completed, since sync-points are issued in increasing
		// order on a single queue.
		done, err := q.device.Wait(q.fence, s.syncPoint, 5*time.Second)
		if err == nil && !done {
			err = rhi.ErrDeviceLost
		}
		if err != nil {
			logging.Logger().Error("queue: device lost waiting for frame-in-flight slot", slog.Int("slot", idx), slog.Uint64("sync_point", s.syncPoint), slog.Any("error", err))
			return nil, 0, fmt.Errorf("queue: wait for slot %d: %w", idx, err)
		}
	}

	q.nextSync++
	s.syncPoint = q.nextSync
	s.recordedAt = time.Now()

	if err := s.encoder.BeginEncoding(label); err != nil {
		return nil, 0, fmt.Errorf("queue: begin encoding: %w", err)
	}
	q.current++
	return s.encoder, s.syncPoint, nil
}

// Submit finishes recording the encoder returned by the most recent
// Acquire and submits it, arranging for the fence to reach syncPoint
// once the GPU has consumed it.
func (q *Queue) Submit(encoder rhi.CommandEncoder, syncPoint uint64) error {
	cb, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("queue: end encoding: %w", err)
	}
	return q.rq.Submit([]rhi.CommandBuffer{cb}, q.fence, syncPoint)
}

// Wait blocks until the given sync-point has completed, or timeout
// elapses without it completing.
func (q *Queue) Wait(syncPoint uint64, timeout time.Duration) (bool, error) {
	return q.device.Wait(q.fence, syncPoint, timeout)
}

// CompletedSyncPoint returns the highest sync-point the queue has
// confirmed complete.
func (q *Queue) CompletedSyncPoint() uint64 {
	return q.fence.Value()
}

// ResolveTimestamps converts two raw GPU timestamp ticks into an
// elapsed duration in milliseconds: ms = (end - start) * period / 1e6,
// where period is the nanoseconds-per-tick the backend reports.
func (q *Queue) ResolveTimestamps(startTicks, endTicks uint64) float64 {
	if endTicks < startTicks {
		return 0
	}
	deltaTicks := float64(endTicks - startTicks)
	return deltaTicks * float64(q.timestampPeriod) / 1e6
}

// RawQueue exposes the underlying rhi.Queue for immediate data uploads
// and surface presentation, which bypass the frame-pacing slots.
func (q *Queue) RawQueue() rhi.Queue { return q.rq }
