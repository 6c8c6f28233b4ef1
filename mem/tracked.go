// Package mem provides reference implementations of the memory-subsystem
// collaborator: an accounting in-memory subsystem for tests and embedders
// without a real heap, and a wazero-backed subsystem for embedders hosting
// wasm guests.
package mem

import (
	"sync"

	nativert "github.com/wippyai/native-runtime"
)

// Heap is the opaque handle Tracked hands out. The pointer identity changes
// on every Suspend, mirroring subsystems that relocate their state during
// suspension; Generation counts how many times that happened.
type Heap struct {
	ID         uint64
	Generation int
	suspended  bool
}

// Tracked is an accounting memory subsystem. It allocates no real managed
// heap; it tracks every handle it hands out so tests and embedders can
// assert that instance teardown released everything.
type Tracked struct {
	mu       sync.Mutex
	live     map[uint64]*Heap
	nextID   uint64
	failInit error
	misuse   int
}

// NewTracked creates an empty tracked subsystem.
func NewTracked() *Tracked {
	return &Tracked{live: make(map[uint64]*Heap)}
}

// FailNextInit makes the next Init call return err, simulating allocation
// failure. One-shot.
func (t *Tracked) FailNextInit(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failInit = err
}

func (t *Tracked) Init() (nativert.MemoryHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failInit != nil {
		err := t.failInit
		t.failInit = nil
		return nil, err
	}

	t.nextID++
	h := &Heap{ID: t.nextID}
	t.live[h.ID] = h
	return h, nil
}

func (t *Tracked) Deinit(h nativert.MemoryHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	heap, ok := h.(*Heap)
	if !ok || t.live[heap.ID] != heap {
		t.misuse++
		return
	}
	delete(t.live, heap.ID)
}

// Suspend returns a replacement handle, invalidating the old one. Passing a
// stale or foreign handle counts as misuse.
func (t *Tracked) Suspend(h nativert.MemoryHandle) nativert.MemoryHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	heap, ok := h.(*Heap)
	if !ok || t.live[heap.ID] != heap {
		t.misuse++
		return h
	}
	next := &Heap{ID: heap.ID, Generation: heap.Generation + 1, suspended: true}
	t.live[heap.ID] = next
	return next
}

func (t *Tracked) Resume(h nativert.MemoryHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	heap, ok := h.(*Heap)
	if !ok || t.live[heap.ID] != heap {
		t.misuse++
		return
	}
	heap.suspended = false
}

// LiveCount returns the number of handles not yet deinitialized.
func (t *Tracked) LiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// MisuseCount returns how many calls arrived with stale or foreign handles.
// Zero after a correct run.
func (t *Tracked) MisuseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.misuse
}
