//go:build !unix

package platform

import "os"

var interruptSignal os.Signal = os.Interrupt
