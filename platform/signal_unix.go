//go:build unix

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// interruptSignal is the default asynchronous interrupt. SIGUSR1 is free for
// application use and deliverable to a specific thread by embedders that
// drive delivery themselves.
var interruptSignal os.Signal = unix.SIGUSR1
