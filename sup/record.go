package sup

import (
	"time"

	"github.com/Johnermac/reaptree/lib"
)

// ProcessRecord tracks one child from spawn (or first sighting) to its
// terminal state.
type ProcessRecord struct {
	PID int `json:"pid" yaml:"pid"`
	// Parent is the pid of the supervisor that reaps this child.
	Parent int `json:"parent" yaml:"parent"`
	// Order is the spawn index among the supervisor's children, -1 if the
	// child was never tracked.
	Order int `json:"order" yaml:"order"`
	// Depth is the number of generations the child spawns below itself,
	// -1 if unknown.
	Depth int        `json:"depth" yaml:"depth"`
	State lib.Status `json:"state" yaml:"state"`
	// Transitions lists every state the child went through, in order.
	Transitions []lib.StateKind `json:"transitions" yaml:"transitions"`
	// Lost is set when the run ended while the record was still live.
	Lost bool `json:"lost,omitempty" yaml:"lost,omitempty"`
}

func (r *ProcessRecord) Terminal() bool {
	return r.State.Terminal()
}

// Event is one observed lifecycle transition.
type Event struct {
	Seq    int        `json:"seq" yaml:"seq"`
	PID    int        `json:"pid" yaml:"pid"`
	Status lib.Status `json:"status" yaml:"status"`
	Time   time.Time  `json:"time" yaml:"time"`
}
