package context

import (
	"testing"

	"github.com/gogpu/fotia/rhi/sim"
	"github.com/gogpu/fotia/rhi/types"
)

func openTestContext(t *testing.T, name string, sharesHeap bool) *Context {
	t.Helper()
	adapter := sim.NewAdapter(name, sharesHeap)
	ctx, err := Open(adapter)
	if err != nil {
		t.Fatalf("open context: %v", err)
	}
	return ctx
}

func TestCreateBufferRegistersUnderHandle(t *testing.T) {
	ctx := openTestContext(t, "gpu0", false)
	h, err := ctx.CreateBuffer(&types.BufferDescriptor{Size: 64, Usage: types.BufferUsageUniform})
	if err != nil {
		t.Fatalf("create buffer: %v", err)
	}
	buf, ok := ctx.Resources.Buffers.Get(h)
	if !ok {
		t.Fatal("expected buffer to be registered under its handle")
	}
	if buf.Size() != 64 {
		t.Fatalf("expected size 64, got %d", buf.Size())
	}
}

func TestDestroyBufferFreesHandle(t *testing.T) {
	ctx := openTestContext(t, "gpu0", false)
	h, err := ctx.CreateBuffer(&types.BufferDescriptor{Size: 64, Usage: types.BufferUsageUniform})
	if err != nil {
		t.Fatalf("create buffer: %v", err)
	}
	ctx.DestroyBuffer(h)
	if _, ok := ctx.Resources.Buffers.Get(h); ok {
		t.Fatal("expected buffer to be gone after destroy")
	}
}

func TestFourIndependentQueuesHaveIndependentFences(t *testing.T) {
	ctx := openTestContext(t, "gpu0", false)

	gEnc, gSync, err := ctx.Graphics.Acquire("graphics")
	if err != nil {
		t.Fatalf("acquire graphics: %v", err)
	}
	if err := ctx.Graphics.Submit(gEnc, gSync); err != nil {
		t.Fatalf("submit graphics: %v", err)
	}

	// The other three queues' own fences should still be at zero; their
	// sync-points are independent of the graphics queue's.
	if ctx.Transfer.CompletedSyncPoint() != 0 {
		t.Fatalf("expected transfer queue untouched, got completed=%d", ctx.Transfer.CompletedSyncPoint())
	}
	if ctx.Compute.CompletedSyncPoint() != 0 {
		t.Fatalf("expected compute queue untouched, got completed=%d", ctx.Compute.CompletedSyncPoint())
	}
	if ctx.Uploader.CompletedSyncPoint() != 0 {
		t.Fatalf("expected uploader queue untouched, got completed=%d", ctx.Uploader.CompletedSyncPoint())
	}
	if ctx.Graphics.CompletedSyncPoint() != gSync {
		t.Fatalf("expected graphics queue completed=%d, got %d", gSync, ctx.Graphics.CompletedSyncPoint())
	}
}

func TestDualContextCallRunsPrimaryThenSecondary(t *testing.T) {
	primary := openTestContext(t, "primary", true)
	secondary := openTestContext(t, "secondary", true)
	dual := NewDual(primary, secondary)
	defer dual.Close()

	var order []string
	err := dual.Call(func(c *Context) error {
		if c == primary {
			order = append(order, "primary")
		} else {
			order = append(order, "secondary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(order) != 2 || order[0] != "primary" || order[1] != "secondary" {
		t.Fatalf("expected [primary secondary], got %v", order)
	}
}

func TestDualContextParallelRunsBothAndJoins(t *testing.T) {
	primary := openTestContext(t, "primary", true)
	secondary := openTestContext(t, "secondary", true)
	dual := NewDual(primary, secondary)
	defer dual.Close()

	var touched [2]bool
	err := dual.Parallel(func(c *Context) error {
		if c == primary {
			touched[0] = true
		} else {
			touched[1] = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if !touched[0] || !touched[1] {
		t.Fatalf("expected both sides touched, got %v", touched)
	}
}

func TestCreateSharedBufferUsesSameHandleOnBothSides(t *testing.T) {
	primary := openTestContext(t, "primary", true)
	secondary := openTestContext(t, "secondary", true)
	dual := NewDual(primary, secondary)
	defer dual.Close()

	h, err := dual.CreateSharedBuffer(&types.BufferDescriptor{Size: 128, Usage: types.BufferUsageUniform})
	if err != nil {
		t.Fatalf("create shared buffer: %v", err)
	}
	if _, ok := primary.Resources.Buffers.Get(h); !ok {
		t.Fatal("expected handle to resolve on primary")
	}
	if _, ok := secondary.Resources.Buffers.Get(h); !ok {
		t.Fatal("expected handle to resolve on secondary")
	}
}
