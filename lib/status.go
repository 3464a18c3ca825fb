package lib

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Identity is what /proc/<pid>/status says about a process.
type Identity struct {
	PID   int
	PPID  int
	PGID  int
	Name  string
	State string // e.g. "S (sleeping)", "T (stopped)", "Z (zombie)"
}

// ReadIdentity reads the identity of pid from procfs.
func ReadIdentity(pid int) (*Identity, error) {
	statusPath := fmt.Sprintf("/proc/%d/status", pid)
	data, err := os.ReadFile(statusPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", statusPath, err)
	}

	id := &Identity{}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "Name":
			id.Name = value
		case "State":
			id.State = value
		case "Pid":
			id.PID, err = strconv.Atoi(value)
		case "PPid":
			id.PPID, err = strconv.Atoi(value)
		case "NSpgid":
			// last field is the pgid in our own namespace
			fields := strings.Fields(value)
			if len(fields) > 0 {
				id.PGID, err = strconv.Atoi(fields[len(fields)-1])
			}
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s %s: %w", statusPath, key, err)
		}
	}
	return id, nil
}

// Stopped reports whether the kernel shows the process as stopped.
func (id *Identity) Stopped() bool {
	return strings.HasPrefix(id.State, "T")
}
