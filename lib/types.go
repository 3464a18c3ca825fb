package lib

import "golang.org/x/sys/unix"

// Task is what a spawned process runs: Depth more generations below it,
// then Work.
type Task struct {
	Depth int  `json:"depth" yaml:"depth"`
	Work  Work `json:"work" yaml:"work"`
}

// WaitFlags selects which child state changes WaitAny reports.
// Exits and signal deaths are always reported.
type WaitFlags uint

const (
	WaitNoHang WaitFlags = 1 << iota
	WaitStopped
	WaitContinued
)

func (f WaitFlags) options() int {
	var opts int
	if f&WaitNoHang != 0 {
		opts |= unix.WNOHANG
	}
	if f&WaitStopped != 0 {
		opts |= unix.WUNTRACED
	}
	if f&WaitContinued != 0 {
		opts |= unix.WCONTINUED
	}
	return opts
}

// Environment is the pair of process primitives the supervisor is built on.
//
// Spawn creates a process running task and returns its pid to the caller.
// WaitAny blocks until any direct child changes state. It returns
// ErrNoChildren once nothing is left to wait for, and pid 0 with a nil error
// when WaitNoHang is set and no child is ready.
type Environment interface {
	Spawn(task Task) (int, error)
	WaitAny(flags WaitFlags) (int, Status, error)
}
