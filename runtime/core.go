package runtime

import (
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	nativert "github.com/wippyai/native-runtime"
	"github.com/wippyai/native-runtime/errors"
	"github.com/wippyai/native-runtime/initchain"
	"github.com/wippyai/native-runtime/interrupt"
	"github.com/wippyai/native-runtime/mem"
	"github.com/wippyai/native-runtime/platform"
	"github.com/wippyai/native-runtime/registry"
)

// Config carries the core's collaborators. The zero value selects working
// defaults: a tracked in-memory subsystem, the OS platform, the panic-based
// fatal checker, and the package logger.
type Config struct {
	// Memory is the external memory/GC subsystem.
	Memory nativert.MemorySubsystem

	// Platform supplies thread ids, thread-exit hooks, interrupt handler
	// installation, and console setup.
	Platform nativert.Platform

	// Check is the fatal invariant checker. It must not return when the
	// condition is false.
	Check nativert.CheckFunc

	// Logger receives lifecycle logging. Defaults to the package logger.
	Logger *zap.Logger
}

// Core owns the live-instance registry, the initializer chain, the alive
// counter, and the per-thread binding table. One Core per process is the
// normal arrangement; independent Cores exist mainly for tests.
type Core struct {
	memory nativert.MemorySubsystem
	plat   nativert.Platform
	check  nativert.CheckFunc
	log    *zap.Logger

	chain    initchain.Chain
	reg      *registry.Registry[*State]
	dispatch *interrupt.Dispatcher[*State]

	bind       sync.Map // thread id -> *State
	exitHooked sync.Map // thread id -> struct{}

	alive  atomic.Int32
	nextID atomic.Uint64

	mainSet    atomic.Bool
	mainThread atomic.Uint64
}

// New creates a Core with cfg's collaborators, filling in defaults for any
// left nil.
func New(cfg Config) *Core {
	if cfg.Memory == nil {
		cfg.Memory = mem.NewTracked()
	}
	if cfg.Platform == nil {
		cfg.Platform = platform.Default()
	}
	if cfg.Check == nil {
		cfg.Check = nativert.Check
	}
	if cfg.Logger == nil {
		cfg.Logger = nativert.Logger()
	}

	c := &Core{
		memory: cfg.Memory,
		plat:   cfg.Platform,
		check:  cfg.Check,
		log:    cfg.Logger,
	}
	c.reg = registry.New[*State](cfg.Check)
	c.dispatch = interrupt.New[*State](c.bound, c.reg.Snapshot)
	return c
}

// RegisterInitializer appends fn to the initializer chain. Must be called
// before any instance is created; registration is a single-threaded phase
// with no concurrency guard.
func (c *Core) RegisterInitializer(fn initchain.Func) {
	c.chain.Register(fn)
}

// CreateDetached creates a new instance in SUSPENDED state, not bound to any
// thread. The creation that brings the alive-count from zero to one installs
// the interrupt dispatcher, marks the calling thread as main, runs console
// setup, and runs INIT_GLOBALS; every creation runs
// INIT_THREAD_LOCAL_GLOBALS. The only recoverable failure is memory
// subsystem allocation.
func (c *Core) CreateDetached() (*State, error) {
	tid := c.plat.ThreadID()

	h, err := c.memory.Init()
	if err != nil {
		return nil, errors.Allocation(err)
	}

	s := newState(c, c.nextID.Add(1), tid, h)
	first := c.alive.Add(1) == 1
	if first {
		c.plat.InstallInterruptHandler(c.Interrupt)
		c.mainThread.Store(tid)
		c.mainSet.Store(true)
		c.plat.ConsoleSetup()
		c.chain.Run(initchain.InitGlobals)
	}
	c.chain.Run(initchain.InitThreadLocalGlobals)
	c.reg.Insert(s.id, s)

	c.log.Debug("instance created",
		zap.Uint64("instance", s.id),
		zap.Uint64("thread", tid),
		zap.Bool("first", first))
	return s, nil
}

// AttachOrCreate creates an instance on the calling thread and binds it.
// The thread must be unbound; attaching twice without a detach is fatal.
// The implicit-detach function is registered as a thread-exit callback the
// first time a given thread attaches.
func (c *Core) AttachOrCreate() *State {
	tid := c.plat.ThreadID()
	_, bound := c.bind.Load(tid)
	c.check(!bound, "runtime must not be active on the current thread for attach")

	s, err := c.CreateDetached()
	c.check(err == nil, "memory subsystem init failed during attach")
	c.check(s.transition(StatusSuspended, StatusRunning), "cannot transition state to RUNNING for attach")
	c.bind.Store(tid, s)

	// The platform consumes a thread's hooks at exit, so the marker must be
	// cleared there too: a reused thread id needs the hook registered again.
	if _, hooked := c.exitHooked.LoadOrStore(tid, struct{}{}); !hooked {
		c.plat.OnThreadExit(tid, func() {
			c.DetachIfAttached()
			c.exitHooked.Delete(tid)
		})
	}
	return s
}

// DetachIfAttached destroys the instance bound to the calling thread, if
// any. This is the implicit destroy path run at thread exit; it is a no-op
// on an unbound thread.
func (c *Core) DetachIfAttached() {
	tid := c.plat.ThreadID()
	v, ok := c.bind.Load(tid)
	if !ok {
		return
	}
	s := v.(*State)
	c.check(s.transition(StatusRunning, StatusDestroying), "cannot transition state to DESTROYING for detach")
	c.bind.Delete(tid)
	c.teardown(s)
}

// Destroy tears down a detached instance. The instance must be SUSPENDED;
// destroying a RUNNING instance explicitly is fatal (the implicit path at
// thread exit handles RUNNING).
func (c *Core) Destroy(s *State) {
	c.check(s != nil, "destroy of nil instance")
	c.check(s.transition(StatusSuspended, StatusDestroying), "cannot transition state to DESTROYING")
	c.teardown(s)
}

// Suspend detaches the calling thread's instance, returning its handle for
// a later Resume on any thread. The memory subsystem may replace the stored
// memory handle during suspension.
func (c *Core) Suspend() *State {
	tid := c.plat.ThreadID()
	v, ok := c.bind.Load(tid)
	c.check(ok, "runtime must be active on the current thread for suspend")
	s := v.(*State)
	c.check(s.transition(StatusRunning, StatusSuspended), "cannot transition state to SUSPENDED for suspend")
	s.mem = c.memory.Suspend(s.mem)
	c.bind.Delete(tid)

	c.log.Debug("instance suspended",
		zap.Uint64("instance", s.id),
		zap.Uint64("thread", tid))
	return s
}

// Resume binds a SUSPENDED instance to the calling thread, which must be
// unbound, and reactivates its memory state.
func (c *Core) Resume(s *State) {
	tid := c.plat.ThreadID()
	_, bound := c.bind.Load(tid)
	c.check(!bound, "runtime must not be active on the current thread for resume")
	c.check(s != nil, "resume of nil instance")
	c.check(s.transition(StatusSuspended, StatusRunning), "cannot transition state to RUNNING for resume")
	c.bind.Store(tid, s)
	c.memory.Resume(s.mem)

	c.log.Debug("instance resumed",
		zap.Uint64("instance", s.id),
		zap.Uint64("thread", tid))
}

// Current returns the instance bound to the calling thread. Fatal if the
// thread is unbound.
func (c *Core) Current() *State {
	tid := c.plat.ThreadID()
	v, ok := c.bind.Load(tid)
	c.check(ok, "runtime must be active on the current thread")
	return v.(*State)
}

// Interrupt dispatches an asynchronous interrupt to the instance of thread
// tid. It is the routine installed as the process-wide interrupt handler and
// is safe to call from signal-handler context: no locks, no allocation. An
// interrupt that finds no instance is silently dropped.
func (c *Core) Interrupt(tid uint64) {
	c.dispatch.Dispatch(tid)
}

// AliveCount returns the number of created-but-not-destroyed instances.
func (c *Core) AliveCount() int {
	return int(c.alive.Load())
}

// IsMainThread reports whether the calling thread created the process's
// first instance.
func (c *Core) IsMainThread() bool {
	return c.mainSet.Load() && c.plat.ThreadID() == c.mainThread.Load()
}

// CheckMainThread returns an error when the calling thread is not the main
// thread. Used by generated code guarding main-thread-only dereferences.
func (c *Core) CheckMainThread() error {
	if c.IsMainThread() {
		return nil
	}
	return errors.WrongThread(c.plat.ThreadID())
}

// LockRegistry takes the registry lock. Instances cannot appear or
// disappear while it is held.
func (c *Core) LockRegistry() {
	c.reg.Lock()
}

// UnlockRegistry releases the registry lock.
func (c *Core) UnlockRegistry() {
	c.reg.Unlock()
}

// IterateRegistry visits live instances, most recently created first,
// stopping early when fn returns true. The caller must hold the registry
// lock for the duration.
func (c *Core) IterateRegistry(fn func(*State) bool) {
	c.reg.Iterate(fn)
}

// Snapshot returns the live instances at a point in time, most recently
// created first, without taking the registry lock.
func (c *Core) Snapshot() []*State {
	return c.reg.Snapshot()
}

// Close destroys every remaining SUSPENDED instance and reports instances
// still attached to a thread. It is a convenience for embedder teardown,
// not part of the per-instance lifecycle.
func (c *Core) Close() error {
	var err error
	for _, s := range c.reg.Snapshot() {
		if s.transition(StatusSuspended, StatusDestroying) {
			c.teardown(s)
			continue
		}
		if s.Status() == StatusRunning {
			c.log.Warn("instance still attached at close",
				zap.Uint64("instance", s.id),
				zap.Uint64("thread", s.creatingThread))
			err = multierr.Append(err, errors.StillRunning(s.id, s.creatingThread))
		}
	}
	return err
}

// teardown runs the destruction sequence after a successful transition to
// DESTROYING: decrement alive-count, thread-local deinit, global deinit on
// the last instance, registry removal, memory deinit.
func (c *Core) teardown(s *State) {
	last := c.alive.Add(-1) == 0
	c.chain.Run(initchain.DeinitThreadLocalGlobals)
	if last {
		c.chain.Run(initchain.DeinitGlobals)
	}
	c.reg.Remove(s)
	c.memory.Deinit(s.mem)

	c.log.Debug("instance destroyed",
		zap.Uint64("instance", s.id),
		zap.Bool("last", last))
}

// bound is the dispatcher's binding probe. sync.Map loads stay on the
// lock-free read path, which keeps this usable in signal-handler context.
func (c *Core) bound(tid uint64) (*State, bool) {
	v, ok := c.bind.Load(tid)
	if !ok {
		return nil, false
	}
	return v.(*State), true
}
