package sup

import (
	"context"
	"fmt"
	"os"

	"github.com/Johnermac/reaptree/lib"
)

// IsWorker reports whether this process was spawned by a supervisor.
func IsWorker() bool {
	_, ok := os.LookupEnv(lib.TaskEnv)
	return ok
}

// WorkerMain runs the task found in the environment and exits. It never
// returns.
func WorkerMain() {
	task, _, err := lib.TaskFromEnv()
	if err != nil {
		lib.LogError("worker %d: %v", os.Getpid(), err)
		os.Exit(2)
	}
	os.Exit(RunWorker(lib.NewHost(), task))
}

// RunWorker is the body of a spawned process. With depth left it spawns the
// next generation first, then performs its work, reaps its own child and
// terminates. The returned value is the exit code; with a signal configured
// the process normally dies before RunWorker returns.
func RunWorker(env lib.Environment, task lib.Task) int {
	log := lib.DefaultLogger()
	log.ConfigureFromEnv()
	log.SetPrefix(fmt.Sprintf("[worker %d depth=%d]", os.Getpid(), task.Depth))

	reaper := NewReaper(env, ReaperOptions{})
	if task.Depth > 0 {
		pid, err := NewSpawner(env, reaper).SpawnTree(task.Depth-1, task.Work)
		if err != nil {
			lib.LogError("spawn next generation: %v", err)
			return 1
		}
		lib.LogInfo("spawned grandchild %d", pid)
	}

	task.Work.Perform()

	// grandchildren are reaped here, by their own parent, never by the root
	if _, err := reaper.Run(context.Background()); err != nil {
		lib.LogError("reap own children: %v", err)
	}
	return task.Work.Terminate()
}
