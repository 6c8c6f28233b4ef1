package platform

import (
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	nativert "github.com/wippyai/native-runtime"
)

// Console holds the results of one-time console probing.
type Console struct {
	StdoutTTY bool
	StderrTTY bool
}

// ConsoleSetup probes the process's standard streams once. The core calls
// it on the creation that brings the alive-count to one; repeated calls are
// no-ops.
func (p *OS) ConsoleSetup() {
	p.consoleOnce.Do(func() {
		p.console = Console{
			StdoutTTY: term.IsTerminal(int(os.Stdout.Fd())),
			StderrTTY: term.IsTerminal(int(os.Stderr.Fd())),
		}
		nativert.Logger().Debug("console initialized",
			zap.Bool("stdout_tty", p.console.StdoutTTY),
			zap.Bool("stderr_tty", p.console.StderrTTY))
	})
}

// Console returns the probed console state. Zero value before ConsoleSetup.
func (p *OS) Console() Console {
	return p.console
}
