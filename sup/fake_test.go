package sup

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/Johnermac/reaptree/lib"
)

type waitResult struct {
	pid int
	st  lib.Status
	err error
}

// scriptWaiter replays a fixed sequence of wait results. Once the script is
// used up it reports lib.ErrNoChildren, or nothing-ready forever if hang is
// set.
type scriptWaiter struct {
	mu     sync.Mutex
	script []waitResult
	hang   bool
	flags  []lib.WaitFlags
}

func (w *scriptWaiter) WaitAny(flags lib.WaitFlags) (int, lib.Status, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flags = append(w.flags, flags)
	if len(w.script) == 0 {
		if w.hang {
			return 0, lib.Status{}, nil
		}
		return 0, lib.Status{}, lib.ErrNoChildren
	}
	r := w.script[0]
	w.script = w.script[1:]
	return r.pid, r.st, r.err
}

func (w *scriptWaiter) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.flags)
}

type sentSignal struct {
	pid int
	sig unix.Signal
}

// fakeHost behaves like a tiny process table. Children exit with their
// task's exit code as soon as they are spawned, except those whose spawn
// order is in hold: they exit only after being continued.
type fakeHost struct {
	mu   sync.Mutex
	cond *sync.Cond

	nextPID  int
	order    int
	hold     map[int]bool
	held     map[int]lib.Task
	live     map[int]bool
	queue    []waitResult
	tasks    []lib.Task
	signals  []sentSignal
	failAt   int
	spawnErr error
}

func newFakeHost() *fakeHost {
	h := &fakeHost{
		nextPID: 1000,
		hold:    make(map[int]bool),
		held:    make(map[int]lib.Task),
		live:    make(map[int]bool),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func exitStatus(task lib.Task) lib.Status {
	if task.Work.Signal != 0 {
		return lib.Signaled(unix.Signal(task.Work.Signal))
	}
	return lib.Exited(task.Work.ExitCode)
}

func (h *fakeHost) Spawn(task lib.Task) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	order := h.order
	h.order++
	if h.failAt > 0 && order+1 == h.failAt {
		return 0, &lib.SpawnError{Task: task, Err: h.spawnErr}
	}

	pid := h.nextPID
	h.nextPID++
	h.tasks = append(h.tasks, task)
	h.live[pid] = true
	if h.hold[order] {
		h.held[pid] = task
	} else {
		h.queue = append(h.queue, waitResult{pid: pid, st: exitStatus(task)})
	}
	h.cond.Broadcast()
	return pid, nil
}

func (h *fakeHost) WaitAny(flags lib.WaitFlags) (int, lib.Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for len(h.queue) == 0 {
		if len(h.live) == 0 {
			return 0, lib.Status{}, lib.ErrNoChildren
		}
		if flags&lib.WaitNoHang != 0 {
			return 0, lib.Status{}, nil
		}
		h.cond.Wait()
	}
	r := h.queue[0]
	h.queue = h.queue[1:]
	if r.st.Terminal() {
		delete(h.live, r.pid)
	}
	return r.pid, r.st, r.err
}

func (h *fakeHost) Signal(pid int, sig unix.Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.signals = append(h.signals, sentSignal{pid: pid, sig: sig})
	if !h.live[pid] {
		return unix.ESRCH
	}
	switch sig {
	case unix.SIGSTOP:
		h.queue = append(h.queue, waitResult{pid: pid, st: lib.Stopped(sig)})
	case unix.SIGCONT:
		h.queue = append(h.queue, waitResult{pid: pid, st: lib.Continued()})
		if task, ok := h.held[pid]; ok {
			delete(h.held, pid)
			h.queue = append(h.queue, waitResult{pid: pid, st: exitStatus(task)})
		}
	default:
		delete(h.held, pid)
		h.queue = append(h.queue, waitResult{pid: pid, st: lib.Signaled(sig)})
	}
	h.cond.Broadcast()
	return nil
}

func (h *fakeHost) sent() []sentSignal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sentSignal(nil), h.signals...)
}
