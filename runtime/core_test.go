package runtime

import (
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wippyai/native-runtime/errors"
	"github.com/wippyai/native-runtime/initchain"
	"github.com/wippyai/native-runtime/mem"
)

// fakePlatform simulates OS threads: the test switches the current thread
// id explicitly between operations, which models running on different
// threads without real pinning.
type fakePlatform struct {
	tid atomic.Uint64

	mu       sync.Mutex
	hooks    map[uint64][]func()
	installs int
	handler  func(uint64)
	consoles int
}

func newFakePlatform() *fakePlatform {
	p := &fakePlatform{hooks: make(map[uint64][]func())}
	p.tid.Store(1)
	return p
}

func (p *fakePlatform) ThreadID() uint64 { return p.tid.Load() }

func (p *fakePlatform) onThread(tid uint64) { p.tid.Store(tid) }

func (p *fakePlatform) OnThreadExit(tid uint64, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[tid] = append(p.hooks[tid], fn)
}

func (p *fakePlatform) InstallInterruptHandler(fn func(uint64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.installs++
	p.handler = fn
}

func (p *fakePlatform) ConsoleSetup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consoles++
}

// exitThread simulates OS teardown of thread tid: the registered exit hooks
// run on that thread.
func (p *fakePlatform) exitThread(tid uint64) {
	p.mu.Lock()
	hooks := p.hooks[tid]
	delete(p.hooks, tid)
	p.mu.Unlock()

	p.onThread(tid)
	for _, fn := range hooks {
		fn()
	}
}

func newTestCore() (*Core, *fakePlatform, *mem.Tracked) {
	plat := newFakePlatform()
	memory := mem.NewTracked()
	core := New(Config{Memory: memory, Platform: plat})
	return core, plat, memory
}

// expectFatal asserts that fn trips the fatal checker and returns the
// violated invariant.
func expectFatal(t *testing.T, fn func()) string {
	t.Helper()
	var msg string
	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected a fatal invariant violation")
			}
			f, ok := r.(*errors.Fatal)
			if !ok {
				panic(r)
			}
			msg = f.Check
		}()
		fn()
	}()
	return msg
}

func TestAttachDetachLifecycle(t *testing.T) {
	core, plat, memory := newTestCore()
	plat.onThread(1)

	st := core.AttachOrCreate()
	if st.Status() != StatusRunning {
		t.Fatalf("attached instance is %v, want running", st.Status())
	}
	if core.Current() != st {
		t.Error("Current should return the attached instance")
	}
	if core.AliveCount() != 1 {
		t.Errorf("alive count = %d, want 1", core.AliveCount())
	}

	core.DetachIfAttached()
	if core.AliveCount() != 0 {
		t.Errorf("alive count after detach = %d, want 0", core.AliveCount())
	}
	if memory.LiveCount() != 0 {
		t.Errorf("live heaps after detach = %d, want 0", memory.LiveCount())
	}

	// Idempotent on an unbound thread.
	core.DetachIfAttached()
}

func TestAttachTwiceIsFatal(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)
	core.AttachOrCreate()

	msg := expectFatal(t, func() {
		core.AttachOrCreate()
	})
	if msg != "runtime must not be active on the current thread for attach" {
		t.Errorf("unexpected invariant: %q", msg)
	}
}

func TestCurrentUnattachedIsFatal(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)

	expectFatal(t, func() {
		core.Current()
	})
}

func TestSuspendResumeAcrossThreads(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)
	st := core.AttachOrCreate()
	before := st.MemoryHandle()

	got := core.Suspend()
	if got != st {
		t.Fatal("Suspend should return the attached instance")
	}
	if st.Status() != StatusSuspended {
		t.Fatalf("suspended instance is %v", st.Status())
	}
	if st.MemoryHandle() == before {
		t.Error("memory subsystem replacement handle was not stored")
	}
	expectFatal(t, func() {
		core.Current() // binding slot must be clear
	})

	plat.onThread(2)
	core.Resume(st)
	if st.Status() != StatusRunning {
		t.Fatalf("resumed instance is %v", st.Status())
	}
	if core.Current() != st {
		t.Error("Current on the resuming thread should return the instance")
	}

	core.DetachIfAttached()
}

func TestSuspendThenResumeSameThread(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)
	st := core.AttachOrCreate()

	got := core.Suspend()
	core.Resume(got)

	if core.Current() != st {
		t.Error("binding slot should point at the same instance after suspend+resume")
	}
	core.DetachIfAttached()
}

func TestSuspendUnattachedIsFatal(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)

	expectFatal(t, func() {
		core.Suspend()
	})
}

func TestResumeWhileAttachedIsFatal(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)
	core.AttachOrCreate()

	plat.onThread(2)
	detached, err := core.CreateDetached()
	if err != nil {
		t.Fatalf("create detached: %v", err)
	}

	plat.onThread(1)
	msg := expectFatal(t, func() {
		core.Resume(detached)
	})
	if msg != "runtime must not be active on the current thread for resume" {
		t.Errorf("unexpected invariant: %q", msg)
	}
}

func TestDestroyRunningIsFatal(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)
	st := core.AttachOrCreate()

	expectFatal(t, func() {
		core.Destroy(st)
	})
}

func TestDoubleDestroyIsFatal(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)
	st, err := core.CreateDetached()
	if err != nil {
		t.Fatalf("create detached: %v", err)
	}
	core.Destroy(st)

	expectFatal(t, func() {
		core.Destroy(st)
	})
}

func TestAllocationFailureIsRecoverable(t *testing.T) {
	core, plat, memory := newTestCore()
	plat.onThread(1)

	memory.FailNextInit(stderrors.New("out of memory"))
	st, err := core.CreateDetached()
	if st != nil {
		t.Fatal("failed creation must not return an instance")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindAllocation {
		t.Fatalf("expected an allocation error, got %v", err)
	}
	if errors.IsFatal(err) {
		t.Error("allocation failure is the recoverable class")
	}
	if core.AliveCount() != 0 {
		t.Errorf("alive count after failed create = %d, want 0", core.AliveCount())
	}

	// The failure is one-shot and the core is unharmed.
	st, err = core.CreateDetached()
	if err != nil {
		t.Fatalf("second create should succeed: %v", err)
	}
	core.Destroy(st)
}

func TestGlobalPhasesFireOnCountEdges(t *testing.T) {
	core, plat, _ := newTestCore()

	var initGlobals, deinitGlobals, initTL, deinitTL atomic.Int32
	core.RegisterInitializer(func(p initchain.Phase) {
		switch p {
		case initchain.InitGlobals:
			initGlobals.Add(1)
		case initchain.InitThreadLocalGlobals:
			initTL.Add(1)
		case initchain.DeinitThreadLocalGlobals:
			deinitTL.Add(1)
		case initchain.DeinitGlobals:
			deinitGlobals.Add(1)
		}
	})

	// Create R1 (alive 0 -> 1): INIT_GLOBALS fires once.
	plat.onThread(1)
	r1, err := core.CreateDetached()
	if err != nil {
		t.Fatalf("create r1: %v", err)
	}
	if initGlobals.Load() != 1 {
		t.Fatalf("INIT_GLOBALS fired %d times after first create, want 1", initGlobals.Load())
	}

	// Create R2 on a second thread (alive 1 -> 2): no re-fire.
	plat.onThread(2)
	r2, err := core.CreateDetached()
	if err != nil {
		t.Fatalf("create r2: %v", err)
	}
	if initGlobals.Load() != 1 {
		t.Errorf("INIT_GLOBALS re-fired on second create")
	}
	if initTL.Load() != 2 {
		t.Errorf("INIT_THREAD_LOCAL_GLOBALS fired %d times, want 2", initTL.Load())
	}

	// Destroy R1 (alive 2 -> 1): DEINIT_GLOBALS must not fire.
	core.Destroy(r1)
	if deinitGlobals.Load() != 0 {
		t.Errorf("DEINIT_GLOBALS fired before the last destruction")
	}

	// Destroy R2 (alive 1 -> 0): DEINIT_GLOBALS fires exactly once.
	core.Destroy(r2)
	if deinitGlobals.Load() != 1 {
		t.Errorf("DEINIT_GLOBALS fired %d times, want 1", deinitGlobals.Load())
	}
	if deinitTL.Load() != 2 {
		t.Errorf("DEINIT_THREAD_LOCAL_GLOBALS fired %d times, want 2", deinitTL.Load())
	}
}

func TestGlobalPhasesRefireAfterReZero(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)

	var initGlobals atomic.Int32
	core.RegisterInitializer(func(p initchain.Phase) {
		if p == initchain.InitGlobals {
			initGlobals.Add(1)
		}
	})

	r1, _ := core.CreateDetached()
	core.Destroy(r1)
	r2, _ := core.CreateDetached()
	core.Destroy(r2)

	// Every 0 -> 1 transition performs the first-instance work.
	if initGlobals.Load() != 2 {
		t.Errorf("INIT_GLOBALS fired %d times across two 0->1 transitions, want 2", initGlobals.Load())
	}
	if plat.installs != 2 {
		t.Errorf("interrupt handler installed %d times, want 2", plat.installs)
	}
}

func TestInitializersRunInRegistrationOrder(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 4; i++ {
		i := i
		core.RegisterInitializer(func(p initchain.Phase) {
			if p == initchain.InitGlobals {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			}
		})
	}

	st, _ := core.CreateDetached()
	defer core.Destroy(st)

	for i, got := range order {
		if got != i {
			t.Fatalf("initializer order %v, not registration order", order)
		}
	}
}

func TestConcurrentCreateDestroy(t *testing.T) {
	const goroutines = 8
	const perG = 40

	core, _, memory := newTestCore()

	var initGlobals, deinitGlobals atomic.Int32
	core.RegisterInitializer(func(p initchain.Phase) {
		switch p {
		case initchain.InitGlobals:
			initGlobals.Add(1)
		case initchain.DeinitGlobals:
			deinitGlobals.Add(1)
		}
	})

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				st, err := core.CreateDetached()
				if err != nil {
					t.Error(err)
					return
				}
				core.Destroy(st)
			}
		}()
	}
	wg.Wait()

	if core.AliveCount() != 0 {
		t.Errorf("alive count = %d after balanced create/destroy", core.AliveCount())
	}
	if memory.LiveCount() != 0 {
		t.Errorf("%d heaps leaked", memory.LiveCount())
	}
	if memory.MisuseCount() != 0 {
		t.Errorf("%d memory subsystem misuses", memory.MisuseCount())
	}
	if initGlobals.Load() != deinitGlobals.Load() {
		t.Errorf("INIT_GLOBALS fired %d times but DEINIT_GLOBALS %d times",
			initGlobals.Load(), deinitGlobals.Load())
	}
}

func TestRegistryTracksLiveSet(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)

	r1, _ := core.CreateDetached()
	r2, _ := core.CreateDetached()
	r3, _ := core.CreateDetached()
	core.Destroy(r2)

	live := make(map[*State]bool)
	core.LockRegistry()
	core.IterateRegistry(func(s *State) bool {
		live[s] = true
		return false
	})
	core.UnlockRegistry()

	if len(live) != 2 || !live[r1] || !live[r3] || live[r2] {
		t.Errorf("registry live set does not match created-but-not-destroyed instances")
	}

	snap := core.Snapshot()
	if len(snap) != 2 || snap[0] != r3 || snap[1] != r1 {
		t.Errorf("snapshot = %v, want [r3 r1] most recent first", snap)
	}

	core.Destroy(r1)
	core.Destroy(r3)
}

func TestImplicitDetachAtThreadExit(t *testing.T) {
	core, plat, memory := newTestCore()
	plat.onThread(7)
	st := core.AttachOrCreate()
	if st.Status() != StatusRunning {
		t.Fatal("instance should be running")
	}

	plat.exitThread(7)

	if core.AliveCount() != 0 {
		t.Errorf("alive count after thread exit = %d, want 0", core.AliveCount())
	}
	if memory.LiveCount() != 0 {
		t.Errorf("heap leaked across thread exit")
	}
	if st.Status() != StatusDestroying {
		t.Errorf("instance status after thread exit = %v, want destroying", st.Status())
	}
}

func TestExitHookRegisteredOncePerThread(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(3)

	core.AttachOrCreate()
	core.DetachIfAttached()
	core.AttachOrCreate()

	plat.mu.Lock()
	n := len(plat.hooks[3])
	plat.mu.Unlock()
	if n != 1 {
		t.Errorf("thread 3 has %d exit hooks, want 1", n)
	}
	core.DetachIfAttached()
}

func TestExitHookReRegisteredAfterThreadIDReuse(t *testing.T) {
	core, plat, memory := newTestCore()

	// First thread with id 7: attach, then exit. The platform consumes the
	// thread's hooks, so the implicit detach runs once.
	plat.onThread(7)
	core.AttachOrCreate()
	plat.exitThread(7)
	if core.AliveCount() != 0 {
		t.Fatalf("alive count after first exit = %d, want 0", core.AliveCount())
	}

	// The OS hands id 7 to a new thread. Attaching must register the exit
	// hook again; otherwise this instance is never implicitly detached.
	plat.onThread(7)
	core.AttachOrCreate()
	plat.mu.Lock()
	n := len(plat.hooks[7])
	plat.mu.Unlock()
	if n != 1 {
		t.Fatalf("reused thread 7 has %d exit hooks, want 1", n)
	}

	plat.exitThread(7)
	if core.AliveCount() != 0 {
		t.Errorf("alive count after reused-thread exit = %d, want 0", core.AliveCount())
	}
	if memory.LiveCount() != 0 {
		t.Errorf("%d heaps leaked across reused-thread exit", memory.LiveCount())
	}
}

func TestMainThreadDesignation(t *testing.T) {
	core, plat, _ := newTestCore()

	plat.onThread(1)
	r1, _ := core.CreateDetached()
	if !core.IsMainThread() {
		t.Error("the thread creating the first instance is main")
	}
	if err := core.CheckMainThread(); err != nil {
		t.Errorf("CheckMainThread on main: %v", err)
	}

	plat.onThread(2)
	if core.IsMainThread() {
		t.Error("other threads are not main")
	}
	err := core.CheckMainThread()
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindWrongThread {
		t.Errorf("expected a wrong_thread error, got %v", err)
	}

	plat.onThread(1)
	core.Destroy(r1)
}

func TestInterruptViaBindingSlot(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)
	st := core.AttachOrCreate()

	var hits atomic.Int32
	st.SetInterruptHandler(func(got *State) {
		if got != st {
			t.Error("handler received the wrong instance")
		}
		hits.Add(1)
	})

	core.Interrupt(1)
	if hits.Load() != 1 {
		t.Errorf("handler fired %d times, want 1", hits.Load())
	}

	core.DetachIfAttached()
}

func TestInterruptFallbackScan(t *testing.T) {
	core, plat, _ := newTestCore()

	// A detached instance is not in any binding slot; only the registry
	// scan by creating-thread id can find it.
	plat.onThread(9)
	st, _ := core.CreateDetached()
	var hits atomic.Int32
	st.SetInterruptHandler(func(*State) { hits.Add(1) })

	plat.onThread(1)
	core.Interrupt(9)
	if hits.Load() != 1 {
		t.Errorf("fallback scan delivered %d times, want 1", hits.Load())
	}

	core.Destroy(st)
}

func TestInterruptMissIsDropped(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)
	st, _ := core.CreateDetached()

	core.Interrupt(12345) // no matching thread; must be a silent no-op

	core.Destroy(st)
}

func TestInterruptWithoutHandlerIsDropped(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(1)
	core.AttachOrCreate()

	core.Interrupt(1) // no handler set; must not panic

	core.DetachIfAttached()
}

func TestInstalledHandlerRoutesToDispatcher(t *testing.T) {
	core, plat, _ := newTestCore()
	plat.onThread(4)
	st := core.AttachOrCreate()

	var hits atomic.Int32
	st.SetInterruptHandler(func(*State) { hits.Add(1) })

	// The platform received the core's dispatch entry at first creation.
	plat.mu.Lock()
	handler := plat.handler
	plat.mu.Unlock()
	if handler == nil {
		t.Fatal("no interrupt handler installed")
	}
	handler(4)

	if hits.Load() != 1 {
		t.Errorf("installed handler delivered %d times, want 1", hits.Load())
	}
	core.DetachIfAttached()
}

func TestCloseDestroysSuspendedReportsRunning(t *testing.T) {
	core, plat, memory := newTestCore()

	plat.onThread(1)
	attached := core.AttachOrCreate()
	plat.onThread(2)
	detached, _ := core.CreateDetached()

	err := core.Close()
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindStillRunning {
		t.Fatalf("expected still_running for the attached instance, got %v", err)
	}
	if detached.Status() != StatusDestroying {
		t.Error("suspended instance should be destroyed by Close")
	}
	if attached.Status() != StatusRunning {
		t.Error("running instance must not be force-destroyed")
	}

	plat.onThread(1)
	core.DetachIfAttached()
	if err := core.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if memory.LiveCount() != 0 {
		t.Errorf("%d heaps leaked after close", memory.LiveCount())
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusSuspended, "suspended"},
		{StatusRunning, "running"},
		{StatusDestroying, "destroying"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
