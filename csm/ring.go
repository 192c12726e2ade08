package csm

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/internal/logging"
)

// State is a ring slot's position in the producer/copier/consumer
// pipeline. The zero value is WaitForWrite, matching a freshly created
// slot that has never been written.
type State uint8

const (
	// WaitForWrite means the secondary graphics queue may record a new
	// cascade pass into this slot.
	WaitForWrite State = iota
	// WaitForCopy means the secondary has submitted a write and the
	// primary transfer queue is waiting for SyncPoint to complete
	// before it may pull the result across adapters.
	WaitForCopy
	// WaitForRead means the primary transfer queue has submitted the
	// cross-adapter copy and the primary graphics queue is waiting for
	// SyncPoint before it may sample this slot.
	WaitForRead
)

func (s State) String() string {
	switch s {
	case WaitForWrite:
		return "WaitForWrite"
	case WaitForCopy:
		return "WaitForCopy"
	case WaitForRead:
		return "WaitForRead"
	default:
		return "unknown"
	}
}

// Slot is one shared-heap cascade texture and its pipeline state.
type Slot struct {
	Texture   handle.TextureHandle
	Argument  handle.ShaderArgumentHandle
	State     State
	SyncPoint uint64 // meaningful only when State is WaitForCopy or WaitForRead
}

// Ring is the shared-heap texture ring the CSM producer/copier/consumer
// protocol advances each frame. N is the slot count (min(frames_in_flight,
// 3) per the configuration surface); working is the slot the secondary
// is writing, copy is the slot being or about to be copied, and the
// derived sample index ((copy-1) mod N) is the most recently fully
// delivered cascade the primary may read from when copy hasn't advanced
// yet this frame.
type Ring struct {
	slots   []Slot
	working int
	copy    int
}

// NewRing creates a ring of n slots (n must be >= 1), each initialized
// to the given shared-heap texture/argument pair and WaitForWrite.
func NewRing(textures []handle.TextureHandle, arguments []handle.ShaderArgumentHandle) (*Ring, error) {
	if len(textures) == 0 {
		return nil, fmt.Errorf("csm: ring requires at least one slot")
	}
	if len(textures) != len(arguments) {
		return nil, fmt.Errorf("csm: ring textures/arguments length mismatch (%d vs %d)", len(textures), len(arguments))
	}
	slots := make([]Slot, len(textures))
	for i := range slots {
		slots[i] = Slot{Texture: textures[i], Argument: arguments[i]}
	}
	return &Ring{slots: slots}, nil
}

// Len returns the number of slots in the ring.
func (r *Ring) Len() int { return len(r.slots) }

// Working returns the slot currently eligible for a producer write.
func (r *Ring) Working() Slot { return r.slots[r.working] }

// Copy returns the slot currently eligible for a copier transfer.
func (r *Ring) Copy() Slot { return r.slots[r.copy] }

// Sample returns the most recently fully delivered slot: the one
// immediately behind copy in ring order. The consumer step falls back
// to this when copy hasn't advanced yet this frame.
func (r *Ring) Sample() Slot {
	n := len(r.slots)
	idx := (r.copy - 1 + n) % n
	return r.slots[idx]
}

// BeginWrite transitions the working slot from WaitForWrite to
// WaitForCopy(syncPoint), recording the secondary graphics queue's
// sync-point for the write+push_texture submission. It is the caller's
// responsibility to have verified slots[working].State ==
// WaitForWrite and the secondary graphics queue is idle before calling
// this (the ring itself performs no queue polling).
func (r *Ring) BeginWrite(syncPoint uint64) error {
	s := &r.slots[r.working]
	if s.State != WaitForWrite {
		return fmt.Errorf("csm: ring: working slot %d not in WaitForWrite (got %s)", r.working, s.State)
	}
	s.State = WaitForCopy
	s.SyncPoint = syncPoint
	return nil
}

// BeginCopy advances working to the next slot and transitions the copy
// slot from WaitForCopy to WaitForRead(syncPoint), recording the
// primary transfer queue's pull_texture sync-point. Callers must have
// already verified slots[copy].State == WaitForCopy and that the
// secondary graphics queue has completed the write's sync-point.
func (r *Ring) BeginCopy(syncPoint uint64) error {
	s := &r.slots[r.copy]
	if s.State != WaitForCopy {
		return fmt.Errorf("csm: ring: copy slot %d not in WaitForCopy (got %s)", r.copy, s.State)
	}
	r.working = (r.working + 1) % len(r.slots)
	s.State = WaitForRead
	s.SyncPoint = syncPoint
	return nil
}

// FinishRead advances copy to the next slot and marks the slot that
// just finished being read WaitForWrite, so the producer may reuse it.
// Callers must have already verified slots[copy].State == WaitForRead
// and that the primary transfer queue has completed that sync-point.
func (r *Ring) FinishRead() error {
	s := &r.slots[r.copy]
	if s.State != WaitForRead {
		return fmt.Errorf("csm: ring: copy slot %d not in WaitForRead (got %s)", r.copy, s.State)
	}
	s.State = WaitForWrite
	s.SyncPoint = 0
	r.copy = (r.copy + 1) % len(r.slots)
	return nil
}

// CompletionChecker reports whether a queue has completed the given
// sync-point, without blocking. Context's *queue.Queue satisfies this
// via a thin CompletedSyncPoint >= v check, kept as an interface here
// so the ring has no import-time dependency on the queue package.
type CompletionChecker interface {
	IsComplete(syncPoint uint64) bool
}

// Advance runs one frame's worth of the producer/copier/consumer
// protocol without blocking any queue, given:
//   - secondaryIdle: whether the secondary graphics queue has no
//     in-flight submission right now (so a new write can be recorded).
//   - secondaryGraphics: completion checker for the secondary graphics
//     queue, used to gate the copier step on the write's sync-point.
//   - primaryTransferIdle / primaryTransfer: the same, for the copier
//     and consumer steps.
//   - write/copyFn: callbacks that record and submit the producer's
//     write (returning its sync-point) and the copier's transfer
//     (returning its sync-point), respectively. Advance calls at most
//     one of these per invocation, matching the spec's one-step-per-
//     queue-per-frame protocol.
//
// Advance returns the slot the directional-light pass should sample
// from this frame.
func (r *Ring) Advance(
	secondaryIdle bool,
	secondaryGraphics CompletionChecker,
	primaryTransferIdle bool,
	primaryTransfer CompletionChecker,
	write func() (uint64, error),
	copyFn func() (uint64, error),
) (Slot, error) {
	// 1. Producer step: the secondary graphics queue starts a new write
	// if it's idle and the working slot is ready for one.
	if secondaryIdle && r.slots[r.working].State == WaitForWrite {
		sp, err := write()
		if err != nil {
			return Slot{}, fmt.Errorf("csm: ring: producer step: %w", err)
		}
		if err := r.BeginWrite(sp); err != nil {
			return Slot{}, err
		}
		logging.Logger().Debug("csm: ring: producer step began write", slog.Int("slot", r.working), slog.Uint64("sync_point", sp))
	}

	// 2. Copier step: the primary transfer queue pulls a finished write
	// across adapters once the secondary's write sync-point is met.
	if primaryTransferIdle && r.slots[r.copy].State == WaitForCopy && secondaryGraphics.IsComplete(r.slots[r.copy].SyncPoint) {
		sp, err := copyFn()
		if err != nil {
			return Slot{}, fmt.Errorf("csm: ring: copier step: %w", err)
		}
		if err := r.BeginCopy(sp); err != nil {
			return Slot{}, err
		}
		logging.Logger().Debug("csm: ring: copier step pulled slot across adapters", slog.Int("slot", r.copy), slog.Uint64("sync_point", sp))
	}

	// 3. Consumer step: if the copy slot's transfer has landed, sample
	// it this frame and free it for the producer; otherwise fall back
	// to the most recently fully delivered cascade.
	if r.slots[r.copy].State == WaitForRead && primaryTransfer.IsComplete(r.slots[r.copy].SyncPoint) {
		sampled := r.slots[r.copy]
		if err := r.FinishRead(); err != nil {
			return Slot{}, err
		}
		return sampled, nil
	}
	return r.Sample(), nil
}
