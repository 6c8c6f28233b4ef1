// Package platform provides the default OS implementations of the core's
// collaborators: thread identity, thread-exit hooks, interrupt-signal
// installation, and one-time console setup. It also exposes the platform
// introspection constants compiled code queries at run time.
package platform

import (
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
)

// Option configures an OS platform.
type Option func(*OS)

// WithThreadID overrides the thread identity source. Required on platforms
// without a default source; useful in tests for synthetic thread ids.
func WithThreadID(fn func() uint64) Option {
	return func(p *OS) { p.tid = fn }
}

// WithSignal overrides the asynchronous interrupt signal.
func WithSignal(sig os.Signal) Option {
	return func(p *OS) { p.sig = sig }
}

// OS is the default platform. It satisfies the core's Platform interface.
type OS struct {
	tid func() uint64
	sig os.Signal

	mu        sync.Mutex
	exitHooks map[uint64][]func()

	handler     atomic.Value // func(uint64)
	installOnce sync.Once

	consoleOnce sync.Once
	console     Console
}

// New creates an OS platform.
func New(opts ...Option) *OS {
	p := &OS{
		tid:       osThreadID,
		sig:       interruptSignal,
		exitHooks: make(map[uint64][]func()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var def = New()

// Default returns the process-wide platform instance. The core's zero
// Config uses it, so package-level helpers like RunPinned cooperate with a
// default-configured core.
func Default() *OS {
	return def
}

// ThreadID returns the calling OS thread's identifier. The caller must be
// pinned to its thread for the id to be meaningful across calls.
func (p *OS) ThreadID() uint64 {
	return p.tid()
}

// OnThreadExit registers fn to run when thread tid is torn down. Hooks run
// in reverse registration order, after the function passed to RunPinned
// returns.
func (p *OS) OnThreadExit(tid uint64, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitHooks[tid] = append(p.exitHooks[tid], fn)
}

// RunPinned locks the calling goroutine to an OS thread, runs fn, and then
// runs the thread's exit hooks. This is the goroutine-per-thread rendition
// of OS thread teardown callbacks.
func (p *OS) RunPinned(fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	tid := p.tid()
	defer p.runExitHooks(tid)
	fn()
}

// RunPinned runs fn on the default platform. See OS.RunPinned.
func RunPinned(fn func()) {
	def.RunPinned(fn)
}

func (p *OS) runExitHooks(tid uint64) {
	p.mu.Lock()
	hooks := p.exitHooks[tid]
	delete(p.exitHooks, tid)
	p.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

// InstallInterruptHandler installs fn as the process-wide handler for the
// platform's interrupt signal. The signal subscription happens once; later
// calls only swap the handler. The thread id passed to fn is that of the
// signal-receiving thread, which is the closest identity Go's signal
// delivery offers.
func (p *OS) InstallInterruptHandler(fn func(tid uint64)) {
	p.handler.Store(fn)
	p.installOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, p.sig)
		go func() {
			runtime.LockOSThread()
			for range ch {
				if h, ok := p.handler.Load().(func(uint64)); ok {
					h(p.tid())
				}
			}
		}()
	})
}
