package mem

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	nativert "github.com/wippyai/native-runtime"
)

// GuestHeap is a memory subsystem whose per-instance state is a wazero
// module instance: Init instantiates the compiled guest, giving each runtime
// instance its own linear memory, and Deinit closes it. Suspend and Resume
// are passthroughs; wasm linear memory survives rescheduling as-is.
type GuestHeap struct {
	ctx      context.Context
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	n        atomic.Uint64
}

// NewGuestHeap compiles the guest binary once; every Init instantiates it.
// The guest's start functions are not run; the core owns initialization
// ordering through the initializer chain.
func NewGuestHeap(ctx context.Context, guest []byte) (*GuestHeap, error) {
	rt := wazero.NewRuntime(ctx)
	compiled, err := rt.CompileModule(ctx, guest)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("compile guest: %w", err)
	}
	return &GuestHeap{ctx: ctx, rt: rt, compiled: compiled}, nil
}

func (g *GuestHeap) Init() (nativert.MemoryHandle, error) {
	name := fmt.Sprintf("instance-%d", g.n.Add(1))
	mod, err := g.rt.InstantiateModule(g.ctx, g.compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("instantiate guest: %w", err)
	}
	return mod, nil
}

func (g *GuestHeap) Deinit(h nativert.MemoryHandle) {
	if mod, ok := h.(api.Module); ok {
		_ = mod.Close(g.ctx)
	}
}

func (g *GuestHeap) Suspend(h nativert.MemoryHandle) nativert.MemoryHandle {
	return h
}

func (g *GuestHeap) Resume(nativert.MemoryHandle) {}

// Close releases the wazero runtime and every module still instantiated.
func (g *GuestHeap) Close() error {
	return g.rt.Close(g.ctx)
}
