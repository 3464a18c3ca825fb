package sup

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Johnermac/reaptree/lib"
)

// HostEnv is everything a Supervisor needs from the operating system.
type HostEnv interface {
	lib.Environment
	Signaler
}

// Supervisor runs one full cycle: spawn the children, reap them while the
// job control plan runs, and write the report.
type Supervisor struct {
	cfg lib.Config
	env HostEnv
}

func NewSupervisor(cfg lib.Config, env HostEnv) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Supervisor{cfg: cfg, env: env}, nil
}

// Run returns the reaper report even when it also returns an error, unless
// the run never got as far as spawning.
func (s *Supervisor) Run(ctx context.Context) (*Report, error) {
	if s.cfg.LockFile != "" {
		lock, err := lib.AcquireRunLock(s.cfg.LockFile)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				lib.LogWarn("%v", err)
			}
		}()
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	events := make(chan Event, 16)
	reaper := NewReaper(s.env, ReaperOptions{
		Events:       events,
		PollInterval: s.cfg.PollInterval,
	})

	lib.LogInfo("spawning %d children (depth %d)", s.cfg.Children, s.cfg.Depth)
	pids, spawnErr := NewSpawner(s.env, reaper).SpawnChildren(s.cfg.Children, s.cfg.Depth, s.cfg.WorkFor)
	if spawnErr != nil {
		// what was spawned still gets reaped
		lib.LogError("%v", spawnErr)
	}
	logIdentities(pids)

	stopForwarding := StartSignalForwarder(s.env, reaper.LivePIDs)
	defer stopForwarding()

	jc := NewJobControl(s.env, s.cfg.JobControl, pids)
	ctrlCtx, cancelCtrl := context.WithCancel(ctx)
	defer cancelCtrl()

	var (
		g      errgroup.Group
		report *Report
		runErr error
	)
	g.Go(func() error {
		defer close(events)
		defer cancelCtrl()
		report, runErr = reaper.Run(ctx)
		return nil
	})
	g.Go(func() error {
		consumeEvents(events, jc)
		return nil
	})
	g.Go(func() error {
		return jc.Run(ctrlCtx)
	})
	_ = g.Wait()

	if s.cfg.Report.Path != "" {
		if err := report.WriteFile(s.cfg.Report.Path, s.cfg.Report.Format); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	if spawnErr != nil {
		return report, errors.Join(fmt.Errorf("spawn: %w", spawnErr), runErr)
	}
	return report, runErr
}

func logIdentities(pids []int) {
	if !lib.DefaultLogger().Enabled(lib.TypeDebug) {
		return
	}
	for _, pid := range pids {
		id, err := lib.ReadIdentity(pid)
		if err != nil {
			// may already be gone
			lib.LogDebug("child %d: %v", pid, err)
			continue
		}
		lib.LogDebug("child %d: name=%s ppid=%d pgid=%d state=%s", id.PID, id.Name, id.PPID, id.PGID, id.State)
	}
}
