package sup

import (
	"fmt"

	"github.com/Johnermac/reaptree/lib"
)

// Forker is the spawn half of lib.Environment.
type Forker interface {
	Spawn(task lib.Task) (int, error)
}

// Tracker learns about every child a Spawner creates. *Reaper implements it.
type Tracker interface {
	Track(pid, order, depth int)
}

// Spawner creates worker processes. It never waits on them.
type Spawner struct {
	f       Forker
	tracker Tracker
	order   int
}

// NewSpawner returns a Spawner creating children through f. tracker may be
// nil.
func NewSpawner(f Forker, tracker Tracker) *Spawner {
	return &Spawner{f: f, tracker: tracker}
}

// SpawnTree creates one process that spawns depth further generations below
// itself, one per generation, before performing work and exiting. Each
// worker reaps its own child.
func (s *Spawner) SpawnTree(depth int, work lib.Work) (int, error) {
	if depth < 0 {
		return 0, fmt.Errorf("%w: negative depth %d", lib.ErrInvalidConfig, depth)
	}
	if err := work.Validate(); err != nil {
		return 0, err
	}

	pid, err := s.f.Spawn(lib.Task{Depth: depth, Work: work})
	if err != nil {
		return 0, err
	}

	order := s.order
	s.order++
	if s.tracker != nil {
		s.tracker.Track(pid, order, depth)
	}
	lib.LogDebug("spawned child %d (order %d, depth %d, %s then exit %d)", pid, order, depth, work.Sleep, work.ExitCode)
	return pid, nil
}

// SpawnChildren creates n direct children, the i-th running workFor(i). On
// the first failure it returns the pids created so far along with the error.
func (s *Spawner) SpawnChildren(n, depth int, workFor func(i int) lib.Work) ([]int, error) {
	pids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pid, err := s.SpawnTree(depth, workFor(i))
		if err != nil {
			return pids, fmt.Errorf("child %d of %d: %w", i+1, n, err)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
