package lib

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// TaskEnv carries the JSON encoded Task from a supervisor to the worker it
// spawns. A process started with it set runs as a worker.
const TaskEnv = "REAPTREE_TASK"

func EncodeTask(t Task) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode task: %w", err)
	}
	return string(b), nil
}

func DecodeTask(s string) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if t.Depth < 0 {
		return Task{}, fmt.Errorf("decode task: %w: negative depth %d", ErrInvalidConfig, t.Depth)
	}
	if err := t.Work.Validate(); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}

// TaskFromEnv reports whether this process was spawned as a worker and, if
// so, which task it has to run.
func TaskFromEnv() (Task, bool, error) {
	raw, ok := os.LookupEnv(TaskEnv)
	if !ok {
		return Task{}, false, nil
	}
	t, err := DecodeTask(raw)
	return t, true, err
}

// taskEnviron returns env without any inherited task, plus the encoded task.
func taskEnviron(env []string, encoded string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, TaskEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, TaskEnv+"="+encoded)
}
