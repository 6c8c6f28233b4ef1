//go:build linux

package platform

import "golang.org/x/sys/unix"

// osThreadID returns the kernel task id of the calling thread. Stable for
// the lifetime of the thread; the caller must be pinned for it to identify
// the goroutine across calls.
func osThreadID() uint64 {
	return uint64(unix.Gettid())
}
