// Package initchain holds the append-only chain of lifecycle callbacks run
// at global and thread-local init/deinit boundaries.
//
// Registration is a single-threaded phase that must complete before any
// instance is created; the chain provides no concurrency guard for Register
// and is read-only afterwards. Every Run traverses the chain in registration
// order, including the deinit phases. The original runtime never reversed
// deinit traversal and callbacks grew to depend on that, so the order is
// preserved here.
package initchain

// Phase tags a traversal of the chain.
type Phase int

const (
	// InitGlobals runs once process-wide, on the creation that brings the
	// alive-count from zero to one.
	InitGlobals Phase = iota

	// InitThreadLocalGlobals runs on every instance creation.
	InitThreadLocalGlobals

	// DeinitThreadLocalGlobals runs on every instance destruction.
	DeinitThreadLocalGlobals

	// DeinitGlobals runs once process-wide, on the destruction that brings
	// the alive-count from one to zero.
	DeinitGlobals
)

func (p Phase) String() string {
	switch p {
	case InitGlobals:
		return "init_globals"
	case InitThreadLocalGlobals:
		return "init_thread_local_globals"
	case DeinitThreadLocalGlobals:
		return "deinit_thread_local_globals"
	case DeinitGlobals:
		return "deinit_globals"
	default:
		return "unknown"
	}
}

// Func is a phase-dispatch callback. One registered Func observes all four
// phases and switches on the tag.
type Func func(Phase)

// Chain is the ordered callback list. The zero value is ready to use.
type Chain struct {
	nodes []Func
}

// Register appends fn to the chain. Must be called before any instance is
// created; there is no guard against concurrent registration.
func (c *Chain) Register(fn Func) {
	c.nodes = append(c.nodes, fn)
}

// Run invokes every registered callback with the phase tag, in registration
// order.
func (c *Chain) Run(p Phase) {
	for _, fn := range c.nodes {
		fn(p)
	}
}

// Len returns the number of registered callbacks.
func (c *Chain) Len() int {
	return len(c.nodes)
}
