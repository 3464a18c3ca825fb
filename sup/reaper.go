package sup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Johnermac/reaptree/lib"
)

// LoopState is the state of the reaper loop itself.
type LoopState int32

const (
	StateIdle LoopState = iota
	StateWaiting
	StateDraining
	StateDone
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("loopstate(%d)", int32(s))
}

// Outcome is how a reaper run ended.
type Outcome string

const (
	OutcomeDone      Outcome = "done"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Waiter is the wait-any half of lib.Environment.
type Waiter interface {
	WaitAny(flags lib.WaitFlags) (int, lib.Status, error)
}

// WakeFunc subscribes to "a child may have changed state" notifications.
type WakeFunc func() (<-chan struct{}, func())

type ReaperOptions struct {
	// Events receives every observed transition. Sends block, so the
	// consumer must keep reading until the channel is no longer written to
	// (Run has returned).
	Events chan<- Event
	// PollInterval bounds how long a cancellable run sleeps between wait
	// attempts when no wakeup arrives.
	PollInterval time.Duration
	// Wake defaults to lib.ChildNotify.
	Wake WakeFunc
}

const defaultPollInterval = 250 * time.Millisecond

// Reaper waits for state changes of any direct child and records each of
// them exactly once, until the waiter reports that no children are left.
//
// It does not count children. Completion is defined entirely by the waiter
// returning lib.ErrNoChildren.
type Reaper struct {
	w    Waiter
	opts ReaperOptions
	pid  int

	state atomic.Int32

	mu     sync.Mutex
	live   map[int]*ProcessRecord
	reaped []*ProcessRecord
	events []Event
}

func NewReaper(w Waiter, opts ReaperOptions) *Reaper {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Wake == nil {
		opts.Wake = lib.ChildNotify
	}
	return &Reaper{
		w:    w,
		opts: opts,
		pid:  os.Getpid(),
		live: make(map[int]*ProcessRecord),
	}
}

func (r *Reaper) State() LoopState {
	return LoopState(r.state.Load())
}

func (r *Reaper) setState(s LoopState) {
	r.state.Store(int32(s))
}

// Track registers a freshly spawned child so its record carries spawn
// order and depth. Tracking is optional.
func (r *Reaper) Track(pid, order, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[pid] = &ProcessRecord{
		PID:         pid,
		Parent:      r.pid,
		Order:       order,
		Depth:       depth,
		State:       lib.Running(),
		Transitions: []lib.StateKind{lib.StateRunning},
	}
}

// LivePIDs returns the children known to be alive, i.e. tracked or seen and
// not yet reaped.
func (r *Reaper) LivePIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pids := make([]int, 0, len(r.live))
	for pid := range r.live {
		pids = append(pids, pid)
	}
	return pids
}

// Run reaps until no children remain, ctx is cancelled, or waiting fails.
//
// With a context that can never be cancelled Run blocks in the wait call.
// Otherwise it polls with WaitNoHang between SIGCHLD wakeups so it can
// notice cancellation. The report is returned in every case.
func (r *Reaper) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	r.setState(StateWaiting)

	err := r.loop(ctx)

	var outcome Outcome
	switch {
	case errors.Is(err, lib.ErrNoChildren):
		r.setState(StateDraining)
		r.drain()
		outcome = OutcomeDone
		err = nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		outcome = OutcomeCancelled
		err = fmt.Errorf("reaper cancelled: %w", err)
	default:
		outcome = OutcomeFailed
		err = fmt.Errorf("reaper: %w", err)
	}
	r.setState(StateDone)

	rep := r.report(started, outcome)
	if err != nil {
		lib.LogError("reaper stopped (%s) after %d events: %v", outcome, len(rep.Events), err)
	} else {
		lib.LogSuccess("all children reaped: %d events, %d processes", len(rep.Events), rep.Reaped)
	}
	return rep, err
}

func (r *Reaper) loop(ctx context.Context) error {
	const flags = lib.WaitStopped | lib.WaitContinued

	if ctx.Done() == nil {
		for {
			pid, st, err := r.w.WaitAny(flags)
			if err != nil {
				return err
			}
			if err := r.observe(ctx, pid, st); err != nil {
				return err
			}
		}
	}

	wake, stop := r.opts.Wake()
	defer stop()
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pid, st, err := r.w.WaitAny(flags | lib.WaitNoHang)
		if err != nil {
			return err
		}
		if pid > 0 {
			if err := r.observe(ctx, pid, st); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		case <-ticker.C:
		}
	}
}

// observe records a transition, logs it and hands it to the Events channel.
// The record is updated before the send, so a cancelled send loses nothing
// from the report.
func (r *Reaper) observe(ctx context.Context, pid int, st lib.Status) error {
	ev := r.record(pid, st)
	logTransition(ev)

	if r.opts.Events == nil {
		return nil
	}
	if ctx.Done() == nil {
		r.opts.Events <- ev
		return nil
	}
	select {
	case r.opts.Events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reaper) record(pid int, st lib.Status) Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.live[pid]
	if !ok {
		// untracked child, or a pid reused after its previous owner was reaped
		rec = &ProcessRecord{
			PID:         pid,
			Parent:      r.pid,
			Order:       -1,
			Depth:       -1,
			Transitions: []lib.StateKind{lib.StateRunning},
		}
		r.live[pid] = rec
	}
	rec.State = st
	rec.Transitions = append(rec.Transitions, st.Kind)
	if st.Terminal() {
		delete(r.live, pid)
		r.reaped = append(r.reaped, rec)
	}

	ev := Event{Seq: len(r.events) + 1, PID: pid, Status: st, Time: time.Now()}
	r.events = append(r.events, ev)
	return ev
}

func logTransition(ev Event) {
	switch ev.Status.Kind {
	case lib.StateExited:
		if ev.Status.Code == 0 {
			lib.LogSuccess("child %d %s", ev.PID, ev.Status)
		} else {
			lib.LogWarn("child %d %s", ev.PID, ev.Status)
		}
	case lib.StateSignaled, lib.StateUnknown:
		lib.LogWarn("child %d %s", ev.PID, ev.Status)
	default:
		lib.LogInfo("child %d %s", ev.PID, ev.Status)
	}
}

// drain closes out the run once the waiter has no children left. Any
// record still live was tracked but never reported; something else reaped
// it.
func (r *Reaper) drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid, rec := range r.live {
		rec.Lost = true
		lib.LogWarn("child %d (%s) was never reported before the last child was reaped", pid, rec.State)
	}
}
