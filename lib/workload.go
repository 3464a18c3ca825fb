package lib

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"
)

// Work is the terminal action of a worker process: sleep, then exit with
// ExitCode or, when Signal is set, die from that signal.
type Work struct {
	Sleep    time.Duration `json:"sleep" yaml:"sleep"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Signal   int           `json:"signal,omitempty" yaml:"signal,omitempty"`
}

// Signals a worker may not use to end itself. Each of them either stops the
// process or is ignored by default, so the worker would never terminate.
var nonTerminating = map[unix.Signal]bool{
	unix.SIGSTOP:  true,
	unix.SIGTSTP:  true,
	unix.SIGTTIN:  true,
	unix.SIGTTOU:  true,
	unix.SIGCONT:  true,
	unix.SIGCHLD:  true,
	unix.SIGURG:   true,
	unix.SIGWINCH: true,
}

// Validate checks that w ends in a terminal state.
func (w Work) Validate() error {
	if w.Sleep < 0 {
		return fmt.Errorf("%w: negative sleep %s", ErrInvalidConfig, w.Sleep)
	}
	if w.ExitCode < 0 || w.ExitCode > 255 {
		return fmt.Errorf("%w: exit code %d out of range 0-255", ErrInvalidConfig, w.ExitCode)
	}
	if w.Signal != 0 {
		sig := unix.Signal(w.Signal)
		if w.Signal < 1 || w.Signal > 31 || nonTerminating[sig] {
			return fmt.Errorf("%w: signal %d does not terminate a process", ErrInvalidConfig, w.Signal)
		}
	}
	return nil
}

// Perform does the work itself: it sleeps.
func (w Work) Perform() {
	if w.Sleep > 0 {
		time.Sleep(w.Sleep)
	}
}

// Terminate ends the process the way w asks for. With no signal configured
// it returns the exit code for the caller to exit with. With a signal it
// only returns if the signal failed to kill the process.
func (w Work) Terminate() int {
	if w.Signal == 0 {
		return w.ExitCode
	}

	sig := unix.Signal(w.Signal)
	signal.Reset(sig)
	if err := setDefaultAction(sig); err != nil {
		LogError("%v", err)
	}
	if err := unix.Kill(os.Getpid(), sig); err != nil {
		LogError("self-signal %s failed: %v", unix.SignalName(sig), err)
	}
	// delivery is asynchronous
	time.Sleep(time.Second)
	return ExitCodeFor(Signaled(sig))
}

// ExitCodeFor maps a terminal status to a shell-style exit code.
func ExitCodeFor(s Status) int {
	switch s.Kind {
	case StateExited:
		return s.Code
	case StateSignaled:
		return 128 + int(s.Signal)
	}
	return 0
}
