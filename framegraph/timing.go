package framegraph

import (
	"sync/atomic"
	"time"

	"github.com/gogpu/fotia/encoder"
	"github.com/gogpu/fotia/queue"
	"github.com/gogpu/fotia/rhi/sim"
	"github.com/gogpu/fotia/telemetry"
)

// nextTimestampIndex hands out globally unique timestamp query indices.
// The simulated backend resolves every WriteTimestamp call through one
// process-wide map keyed by index alone (see rhi/sim/encoder.go), so two
// passes sharing an index — even across the primary and secondary
// devices of a dual context — would clobber each other's result.
var nextTimestampIndex uint32

// passTimer brackets one render pass's recorded GPU work with a pair of
// timestamp queries and resolves them into a telemetry.TimingEntry once
// the pass's command buffer has been submitted.
type passTimer struct {
	name  string
	start uint32
	end   uint32
}

// newPassTimer allocates a fresh query-index pair for a pass named name.
func newPassTimer(name string) passTimer {
	return passTimer{
		name:  name,
		start: atomic.AddUint32(&nextTimestampIndex, 1),
		end:   atomic.AddUint32(&nextTimestampIndex, 1),
	}
}

// begin and finish bracket the render-pass body: call begin immediately
// before BeginRenderPass and finish immediately after the render pass's
// End(), so the resolved range covers only that pass's rasterization
// work and not queue acquisition or argument setup.
func (pt passTimer) begin(enc *encoder.Encoder)  { enc.WriteTimestamp(pt.start) }
func (pt passTimer) finish(enc *encoder.Encoder) { enc.WriteTimestamp(pt.end) }

// resolve reads back both query results through q, the queue the pass
// submitted to, and converts the elapsed tick range into a telemetry
// entry. ok is false if either query was never recorded, which only
// happens if the pass's Submit never ran.
func (pt passTimer) resolve(q *queue.Queue) (telemetry.TimingEntry, bool) {
	startTick, ok := sim.ResolveTimestamp(pt.start)
	if !ok {
		return telemetry.TimingEntry{}, false
	}
	endTick, ok := sim.ResolveTimestamp(pt.end)
	if !ok {
		return telemetry.TimingEntry{}, false
	}
	ms := q.ResolveTimestamps(startTick, endTick)
	return telemetry.TimingEntry{Name: pt.name, Duration: time.Duration(ms * float64(time.Millisecond))}, true
}
