package sup

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/Johnermac/reaptree/lib"
)

// JobControl stops and later resumes chosen children while the reaper runs,
// the way a shell or debugger would from outside.
type JobControl struct {
	sig   Signaler
	steps []jobStep
	watch map[int]*childWatch
}

type jobStep struct {
	lib.JobControlStep
	pid int
}

type childWatch struct {
	stopped  chan struct{}
	gone     chan struct{}
	stopOnce sync.Once
	goneOnce sync.Once
}

// NewJobControl binds steps to the pids of the children they name. Steps
// whose child was never spawned are skipped.
func NewJobControl(s Signaler, steps []lib.JobControlStep, pids []int) *JobControl {
	j := &JobControl{sig: s, watch: make(map[int]*childWatch)}
	for _, st := range steps {
		if st.Child < 0 || st.Child >= len(pids) {
			lib.LogWarn("job control: child %d was not spawned, skipping", st.Child)
			continue
		}
		pid := pids[st.Child]
		j.steps = append(j.steps, jobStep{JobControlStep: st, pid: pid})
		j.watch[pid] = &childWatch{
			stopped: make(chan struct{}),
			gone:    make(chan struct{}),
		}
	}
	return j
}

// Observe feeds a reaper event to the plan. It never blocks.
func (j *JobControl) Observe(ev Event) {
	w, ok := j.watch[ev.PID]
	if !ok {
		return
	}
	switch {
	case ev.Status.Kind == lib.StateStopped:
		w.stopOnce.Do(func() { close(w.stopped) })
	case ev.Status.Terminal():
		w.goneOnce.Do(func() { close(w.gone) })
	}
}

// Run executes every step concurrently and returns when all are finished or
// ctx is done. Signal failures are logged, never returned: job control must
// not abort reaping.
func (j *JobControl) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range j.steps {
		g.Go(func() error {
			j.runStep(gctx, st)
			return nil
		})
	}
	return g.Wait()
}

func (j *JobControl) runStep(ctx context.Context, st jobStep) {
	w := j.watch[st.pid]

	if !sleepCtx(ctx, st.StopAfter) {
		return
	}
	select {
	case <-w.gone:
		lib.LogWarn("job control: child %d exited before it could be stopped", st.pid)
		return
	default:
	}

	lib.LogInfo("job control: stopping child %d", st.pid)
	if err := j.sig.Signal(st.pid, unix.SIGSTOP); err != nil {
		lib.LogWarn("job control: %v", err)
		return
	}

	select {
	case <-w.stopped:
	case <-w.gone:
		return
	case <-ctx.Done():
		j.resume(st.pid)
		return
	}

	logKernelState(st.pid)

	// a stopped child is never left behind, even when the run is cut short
	sleepCtx(ctx, st.ResumeAfter)
	j.resume(st.pid)
}

func (j *JobControl) resume(pid int) {
	lib.LogInfo("job control: resuming child %d", pid)
	if err := j.sig.Signal(pid, unix.SIGCONT); err != nil {
		lib.LogWarn("job control: %v", err)
	}
}

func logKernelState(pid int) {
	if !lib.DefaultLogger().Enabled(lib.TypeDebug) {
		return
	}
	id, err := lib.ReadIdentity(pid)
	if err != nil {
		lib.LogDebug("job control: child %d: %v", pid, err)
		return
	}
	lib.LogDebug("job control: child %d kernel state %q (stopped=%t)", pid, id.State, id.Stopped())
}

// sleepCtx sleeps for d and reports whether it did so without ctx ending.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
