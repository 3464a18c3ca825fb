package sup

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/Johnermac/reaptree/lib"
)

type trackCall struct{ pid, order, depth int }

type recordingTracker struct{ calls []trackCall }

func (r *recordingTracker) Track(pid, order, depth int) {
	r.calls = append(r.calls, trackCall{pid, order, depth})
}

func TestSpawnChildren(t *testing.T) {
	h := newFakeHost()
	tr := &recordingTracker{}
	codes := []int{0, 1, 2}

	pids, err := NewSpawner(h, tr).SpawnChildren(3, 2, func(i int) lib.Work {
		return lib.Work{ExitCode: codes[i]}
	})
	if err != nil {
		t.Fatalf("SpawnChildren: %v", err)
	}
	if len(pids) != 3 {
		t.Fatalf("pids = %v", pids)
	}
	for i, task := range h.tasks {
		if task.Depth != 2 || task.Work.ExitCode != codes[i] {
			t.Errorf("task %d = %+v", i, task)
		}
	}
	for i, c := range tr.calls {
		if c.pid != pids[i] || c.order != i || c.depth != 2 {
			t.Errorf("track %d = %+v", i, c)
		}
	}
}

func TestSpawnChildrenStopsAtFirstFailure(t *testing.T) {
	h := newFakeHost()
	h.failAt = 2
	h.spawnErr = unix.EAGAIN

	pids, err := NewSpawner(h, nil).SpawnChildren(4, 0, func(int) lib.Work { return lib.Work{} })
	if err == nil {
		t.Fatal("expected an error")
	}
	var spawnErr *lib.SpawnError
	if !errors.As(err, &spawnErr) || !errors.Is(err, unix.EAGAIN) {
		t.Fatalf("error = %v, want SpawnError wrapping EAGAIN", err)
	}
	if len(pids) != 1 || len(h.tasks) != 1 {
		t.Fatalf("pids = %v, tasks = %d; spawning must stop at the failure", pids, len(h.tasks))
	}
}

func TestSpawnTreeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		work  lib.Work
	}{
		{"negative depth", -1, lib.Work{}},
		{"exit code out of range", 0, lib.Work{ExitCode: 300}},
		{"stop signal", 0, lib.Work{Signal: int(unix.SIGSTOP)}},
		{"negative sleep", 0, lib.Work{Sleep: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			_, err := NewSpawner(h, nil).SpawnTree(tt.depth, tt.work)
			if !errors.Is(err, lib.ErrInvalidConfig) {
				t.Fatalf("SpawnTree() error = %v, want ErrInvalidConfig", err)
			}
			if len(h.tasks) != 0 {
				t.Fatal("nothing may be spawned for invalid input")
			}
		})
	}
}
