// Package track computes resource barriers from usage transitions. The
// renderer's simulated backend replays commands in strict program order
// on one goroutine, so it never needs the barriers this package derives
// to actually execute correctly; the tracker still runs so the frame
// graph driver is exercised the same way a hardware backend's command
// encoder would be, and so usage-conflict bugs in pass authoring are
// caught even in the simulated build.
package track

import (
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/types"
)

// TrackerIndex identifies a tracked buffer or texture by its handle
// index (see the handle package); trackers are indexed arrays, not maps,
// for O(1) lookup at barrier-insertion time.
type TrackerIndex uint32

// BufferUses is a finer-grained usage bitset than types.BufferUsage,
// distinguishing read-only from read-write storage access so
// compatible read-only usages can share a scope without a barrier.
type BufferUses uint32

const BufferUsesNone BufferUses = 0

const (
	BufferUsesCopySrc BufferUses = 1 << iota
	BufferUsesCopyDst
	BufferUsesIndex
	BufferUsesVertex
	BufferUsesUniform
	BufferUsesStorageRead
	BufferUsesStorageWrite
	BufferUsesIndirect
	BufferUsesQueryResolve
)

// IsReadOnly reports whether u contains no write-capable usage.
func (u BufferUses) IsReadOnly() bool {
	writeUsages := BufferUsesCopyDst | BufferUsesStorageWrite | BufferUsesQueryResolve
	return u&writeUsages == 0
}

func (u BufferUses) IsEmpty() bool { return u == BufferUsesNone }

func (u BufferUses) Contains(other BufferUses) bool { return u&other == other }

// IsCompatible reports whether two usages can coexist in the same scope
// without a barrier between them: read-only usages always can, writes
// only if the usage set is identical.
func (u BufferUses) IsCompatible(other BufferUses) bool {
	if u.IsEmpty() || other.IsEmpty() {
		return true
	}
	if u.IsReadOnly() && other.IsReadOnly() {
		return true
	}
	return u == other
}

// ToBufferUsage widens a tracked usage set to the rhi/types vocabulary a
// barrier descriptor carries.
func (u BufferUses) ToBufferUsage() (out types.BufferUsage) {
	if u&BufferUsesCopySrc != 0 {
		out |= types.BufferUsageCopySrc
	}
	if u&BufferUsesCopyDst != 0 {
		out |= types.BufferUsageCopyDst
	}
	if u&BufferUsesUniform != 0 {
		out |= types.BufferUsageUniform
	}
	if u&BufferUsesVertex != 0 {
		out |= types.BufferUsageVertex
	}
	if u&BufferUsesIndex != 0 {
		out |= types.BufferUsageIndex
	}
	if u&(BufferUsesStorageRead|BufferUsesStorageWrite) != 0 {
		out |= types.BufferUsageStorage
	}
	if u&BufferUsesIndirect != 0 {
		out |= types.BufferUsageIndirect
	}
	if u&BufferUsesQueryResolve != 0 {
		out |= types.BufferUsageQueryResolve
	}
	return out
}

// BufferState holds the tracked usage for a single buffer.
type BufferState struct {
	usage BufferUses
}

// BufferTracker tracks committed buffer usage across a device's
// lifetime, merging in per-pass scopes at submit time.
type BufferTracker struct {
	states   []BufferState
	metadata ResourceMetadata
}

func NewBufferTracker() *BufferTracker {
	return &BufferTracker{states: make([]BufferState, 0, 64), metadata: NewResourceMetadata()}
}

func (t *BufferTracker) ensureSize(n int) {
	for len(t.states) < n {
		t.states = append(t.states, BufferState{})
	}
}

func (t *BufferTracker) InsertSingle(index TrackerIndex, usage BufferUses) {
	t.ensureSize(int(index) + 1)
	t.states[index] = BufferState{usage: usage}
	t.metadata.SetOwned(index, true)
}

func (t *BufferTracker) Remove(index TrackerIndex) {
	if int(index) < len(t.states) {
		t.states[index] = BufferState{}
		t.metadata.SetOwned(index, false)
	}
}

func (t *BufferTracker) GetUsage(index TrackerIndex) BufferUses {
	if int(index) < len(t.states) && t.metadata.IsOwned(index) {
		return t.states[index].usage
	}
	return BufferUsesNone
}

func (t *BufferTracker) IsTracked(index TrackerIndex) bool {
	return int(index) < len(t.states) && t.metadata.IsOwned(index)
}

func (t *BufferTracker) Size() int { return t.metadata.Count() }

// Merge folds a pass scope's usages into the device tracker, returning
// the set of transitions that need a barrier before the pass runs.
func (t *BufferTracker) Merge(scope *BufferUsageScope) []PendingTransition {
	var transitions []PendingTransition
	for i := range scope.states {
		index := TrackerIndex(i)
		if !scope.metadata.IsOwned(index) {
			continue
		}
		newUsage := scope.states[i].usage
		oldUsage := t.GetUsage(index)
		if !t.IsTracked(index) {
			t.InsertSingle(index, newUsage)
			continue
		}
		if !oldUsage.IsCompatible(newUsage) || oldUsage != newUsage {
			transitions = append(transitions, PendingTransition{
				Index: index,
				Usage: StateTransition{From: oldUsage, To: newUsage},
			})
			t.states[index].usage = newUsage
		}
	}
	return transitions
}

// BufferUsageScope tracks buffer usage within a single encoded pass.
type BufferUsageScope struct {
	states   []BufferState
	metadata ResourceMetadata
}

func NewBufferUsageScope() *BufferUsageScope {
	return &BufferUsageScope{states: make([]BufferState, 0, 32), metadata: NewResourceMetadata()}
}

func (s *BufferUsageScope) ensureSize(n int) {
	for len(s.states) < n {
		s.states = append(s.states, BufferState{})
	}
}

// SetUsage records usage for a buffer in this scope, merging with any
// existing compatible usage, or returning an error on conflict.
func (s *BufferUsageScope) SetUsage(index TrackerIndex, usage BufferUses) error {
	s.ensureSize(int(index) + 1)
	if s.metadata.IsOwned(index) {
		existing := s.states[index].usage
		if !existing.IsCompatible(usage) {
			return &UsageConflictError{Index: index, Existing: existing, New: usage}
		}
		s.states[index].usage = existing | usage
	} else {
		s.states[index] = BufferState{usage: usage}
		s.metadata.SetOwned(index, true)
	}
	return nil
}

func (s *BufferUsageScope) GetUsage(index TrackerIndex) BufferUses {
	if int(index) < len(s.states) && s.metadata.IsOwned(index) {
		return s.states[index].usage
	}
	return BufferUsesNone
}

func (s *BufferUsageScope) Clear() {
	s.states = s.states[:0]
	s.metadata.Clear()
}

// PendingTransition is a usage change requiring a barrier.
type PendingTransition struct {
	Index TrackerIndex
	Usage StateTransition
}

// StateTransition is a from->to usage change.
type StateTransition struct {
	From BufferUses
	To   BufferUses
}

func (t StateTransition) NeedsBarrier() bool {
	if t.From == t.To {
		return false
	}
	return !(t.From.IsReadOnly() && t.To.IsReadOnly())
}

// IntoBarrier converts a pending transition into an rhi.BufferBarrier.
func (p PendingTransition) IntoBarrier(buf rhi.Buffer) rhi.BufferBarrier {
	return rhi.BufferBarrier{
		Buffer: buf,
		From:   p.Usage.From.ToBufferUsage(),
		To:     p.Usage.To.ToBufferUsage(),
	}
}

// UsageConflictError reports an unresolvable usage conflict within a
// single scope, e.g. a buffer bound both as a copy destination and a
// uniform in the same pass.
type UsageConflictError struct {
	Index    TrackerIndex
	Existing BufferUses
	New      BufferUses
}

func (e *UsageConflictError) Error() string {
	return "track: incompatible buffer usages in same scope"
}

// ResourceMetadata tracks which tracker indices currently hold state.
type ResourceMetadata struct {
	owned []bool
	count int
}

func NewResourceMetadata() ResourceMetadata {
	return ResourceMetadata{owned: make([]bool, 0, 64)}
}

func (m *ResourceMetadata) SetOwned(index TrackerIndex, owned bool) {
	for int(index) >= len(m.owned) {
		m.owned = append(m.owned, false)
	}
	was := m.owned[index]
	m.owned[index] = owned
	if owned && !was {
		m.count++
	} else if !owned && was {
		m.count--
	}
}

func (m *ResourceMetadata) IsOwned(index TrackerIndex) bool {
	if int(index) >= len(m.owned) {
		return false
	}
	return m.owned[index]
}

func (m *ResourceMetadata) Count() int { return m.count }

func (m *ResourceMetadata) Clear() {
	for i := range m.owned {
		m.owned[i] = false
	}
	m.count = 0
}
