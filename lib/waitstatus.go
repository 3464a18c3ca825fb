package lib

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// StateKind is the lifecycle state of a child process.
type StateKind int

const (
	StateRunning StateKind = iota
	StateStopped
	StateContinued
	StateExited
	StateSignaled
	StateUnknown
)

var stateNames = map[StateKind]string{
	StateRunning:   "running",
	StateStopped:   "stopped",
	StateContinued: "continued",
	StateExited:    "exited",
	StateSignaled:  "signaled",
	StateUnknown:   "unknown",
}

func (k StateKind) String() string {
	if s, ok := stateNames[k]; ok {
		return s
	}
	return fmt.Sprintf("state(%d)", int(k))
}

func (k StateKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *StateKind) UnmarshalText(b []byte) error {
	for kind, name := range stateNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown process state %q", b)
}

// Status is a decoded wait status.
type Status struct {
	Kind     StateKind   `json:"state" yaml:"state"`
	Code     int         `json:"code,omitempty" yaml:"code,omitempty"`
	Signal   unix.Signal `json:"signal,omitempty" yaml:"signal,omitempty"`
	CoreDump bool        `json:"core_dump,omitempty" yaml:"core_dump,omitempty"`
	Raw      uint32      `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Terminal reports whether no further transitions can follow s.
func (s Status) Terminal() bool {
	return s.Kind == StateExited || s.Kind == StateSignaled
}

func (s Status) String() string {
	switch s.Kind {
	case StateExited:
		return fmt.Sprintf("exited(%d)", s.Code)
	case StateSignaled:
		if s.CoreDump {
			return fmt.Sprintf("signaled(%s, core dumped)", unix.SignalName(s.Signal))
		}
		return fmt.Sprintf("signaled(%s)", unix.SignalName(s.Signal))
	case StateStopped:
		return fmt.Sprintf("stopped(%s)", unix.SignalName(s.Signal))
	case StateUnknown:
		return fmt.Sprintf("unknown(%#04x)", s.Raw)
	default:
		return s.Kind.String()
	}
}

// DecodeStatus turns a raw wait word into a Status. Continued is checked
// first because 0xffff would otherwise look like a stop.
func DecodeStatus(ws unix.WaitStatus) Status {
	switch {
	case ws.Continued():
		return Status{Kind: StateContinued}
	case ws.Stopped():
		return Status{Kind: StateStopped, Signal: ws.StopSignal()}
	case ws.Signaled():
		return Status{Kind: StateSignaled, Signal: ws.Signal(), CoreDump: ws.CoreDump()}
	case ws.Exited():
		return Status{Kind: StateExited, Code: ws.ExitStatus()}
	}
	return Status{Kind: StateUnknown, Raw: uint32(ws)}
}

// Running is the state recorded for a child at spawn time.
func Running() Status {
	return Status{Kind: StateRunning}
}

// Exited builds the status of a normal exit.
func Exited(code int) Status {
	return Status{Kind: StateExited, Code: code}
}

// Signaled builds the status of a signal death.
func Signaled(sig unix.Signal) Status {
	return Status{Kind: StateSignaled, Signal: sig}
}

// Stopped builds the status of a stop by sig.
func Stopped(sig unix.Signal) Status {
	return Status{Kind: StateStopped, Signal: sig}
}

// Continued builds the status of a resumed child.
func Continued() Status {
	return Status{Kind: StateContinued}
}
