package lib

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// CommandFunc chooses the program a spawned process executes for a task.
type CommandFunc func(task Task) (path string, argv []string, err error)

// Host is the Environment of the running Linux process.
//
// Go cannot continue running in a forked copy of a multi-threaded runtime,
// so Spawn re-executes the current binary instead and hands the task over
// in TaskEnv. The new process is a copy of the caller in every way that
// matters to a worker: same program, same environment, told that it is the
// child.
type Host struct {
	// Command overrides the re-exec of the current binary.
	Command CommandFunc
	// Env is the environment handed to children. Nil means os.Environ().
	Env []string
}

// NewHost returns a Host that spawns workers by re-executing itself.
func NewHost() *Host {
	return &Host{}
}

func selfCommand(Task) (string, []string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", nil, fmt.Errorf("resolve own executable: %w", err)
	}
	return exe, []string{os.Args[0]}, nil
}

func (h *Host) Spawn(task Task) (int, error) {
	command := h.Command
	if command == nil {
		command = selfCommand
	}
	path, argv, err := command(task)
	if err != nil {
		return 0, &SpawnError{Task: task, Err: err}
	}

	encoded, err := EncodeTask(task)
	if err != nil {
		return 0, &SpawnError{Task: task, Err: err}
	}
	env := h.Env
	if env == nil {
		env = os.Environ()
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return 0, &SpawnError{Task: task, Err: err}
	}
	defer devNull.Close()

	pid, err := syscall.ForkExec(path, argv, &syscall.ProcAttr{
		Env:   taskEnviron(env, encoded),
		Files: []uintptr{devNull.Fd(), os.Stdout.Fd(), os.Stderr.Fd()},
		// own process group: terminal signals reach the supervisor only,
		// which forwards them
		Sys: &syscall.SysProcAttr{Setpgid: true},
	})
	if err != nil {
		return 0, &SpawnError{Task: task, Err: err}
	}
	return pid, nil
}

func (h *Host) WaitAny(flags WaitFlags) (int, Status, error) {
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &ws, flags.options(), nil)
		switch {
		case err == nil:
			if pid == 0 {
				return 0, Status{}, nil
			}
			return pid, DecodeStatus(ws), nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return 0, Status{}, ErrNoChildren
		default:
			return 0, Status{}, &WaitError{Err: err}
		}
	}
}

// Signal delivers sig to pid.
func (h *Host) Signal(pid int, sig unix.Signal) error {
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("send %s to %d: %w", unix.SignalName(sig), pid, err)
	}
	return nil
}

// ChildNotify wakes the returned channel whenever SIGCHLD arrives. Wakeups
// coalesce; a pending one is never lost. Call stop to unsubscribe.
func ChildNotify() (wake <-chan struct{}, stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGCHLD)

	ch := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigs:
				select {
				case ch <- struct{}{}:
				default:
				}
			case <-done:
				return
			}
		}
	}()

	return ch, func() {
		signal.Stop(sigs)
		close(done)
	}
}
