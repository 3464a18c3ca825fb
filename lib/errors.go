package lib

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Sentinel errors for inspection with errors.Is.
var (
	// ErrNoChildren is returned by WaitAny once no child is left to report.
	// It is the normal end of a reaper run, not a failure.
	ErrNoChildren = fmt.Errorf("no child processes left: %w", unix.ECHILD)

	// ErrLocked is returned when another supervisor holds the run lock.
	ErrLocked = errors.New("run lock held by another supervisor")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// SpawnError reports a failed process creation.
type SpawnError struct {
	Task Task
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn worker (depth %d): %v", e.Task.Depth, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// WaitError reports a wait failure other than running out of children.
type WaitError struct {
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait for any child: %v", e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }
