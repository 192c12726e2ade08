package queue

import (
	"testing"
	"time"

	"github.com/gogpu/fotia/rhi/sim"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	adapter := sim.NewAdapter("test-gpu", false)
	device, rq, err := adapter.Open()
	if err != nil {
		t.Fatalf("open adapter: %v", err)
	}
	q, err := New(device, rq)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func TestAcquireSubmitWaitRoundTrip(t *testing.T) {
	q := openTestQueue(t)

	enc, sync, err := q.Acquire("frame-0")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if sync != 1 {
		t.Fatalf("expected first sync-point to be 1, got %d", sync)
	}
	if err := q.Submit(enc, sync); err != nil {
		t.Fatalf("submit: %v", err)
	}

	done, err := q.Wait(sync, time.Second)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !done {
		t.Fatal("expected empty command buffer submission to complete immediately")
	}
	if q.CompletedSyncPoint() != sync {
		t.Fatalf("expected completed sync-point %d, got %d", sync, q.CompletedSyncPoint())
	}
}

func TestAcquireRecyclesSlotsAcrossFramesInFlight(t *testing.T) {
	q := openTestQueue(t)

	var syncPoints []uint64
	for i := 0; i < FramesInFlight*2; i++ {
		enc, sync, err := q.Acquire("frame")
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if err := q.Submit(enc, sync); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		syncPoints = append(syncPoints, sync)
	}

	for i, sp := range syncPoints {
		if sp != uint64(i+1) {
			t.Fatalf("expected monotonically increasing sync-points, got %v", syncPoints)
		}
	}
	if _, err := q.Wait(syncPoints[len(syncPoints)-1], time.Second); err != nil {
		t.Fatalf("wait on final sync-point: %v", err)
	}
}

func TestResolveTimestampsOrdersCorrectly(t *testing.T) {
	q := openTestQueue(t)
	q.timestampPeriod = 1_000_000 // 1ms per tick, for a round test number

	if ms := q.ResolveTimestamps(100, 105); ms != 5 {
		t.Fatalf("expected 5ms elapsed, got %v", ms)
	}
	if ms := q.ResolveTimestamps(200, 100); ms != 0 {
		t.Fatalf("expected 0 for out-of-order ticks, got %v", ms)
	}
}
