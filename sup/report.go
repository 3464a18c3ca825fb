package sup

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/Johnermac/reaptree/lib"
)

// Report is the result of one reaper run.
type Report struct {
	RunID      string          `json:"run_id" yaml:"run_id"`
	Supervisor int             `json:"supervisor" yaml:"supervisor"`
	Outcome    Outcome         `json:"outcome" yaml:"outcome"`
	Started    time.Time       `json:"started" yaml:"started"`
	Finished   time.Time       `json:"finished" yaml:"finished"`
	Reaped     int             `json:"reaped" yaml:"reaped"`
	Events     []Event         `json:"events" yaml:"events"`
	Records    []ProcessRecord `json:"records" yaml:"records"`
}

func (r *Reaper) report(started time.Time, outcome Outcome) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := &Report{
		RunID:      ulid.Make().String(),
		Supervisor: r.pid,
		Outcome:    outcome,
		Started:    started,
		Finished:   time.Now(),
		Reaped:     len(r.reaped),
		Events:     append([]Event(nil), r.events...),
	}
	for _, rec := range r.reaped {
		rep.Records = append(rep.Records, copyRecord(rec))
	}

	live := make([]ProcessRecord, 0, len(r.live))
	for _, rec := range r.live {
		live = append(live, copyRecord(rec))
	}
	sort.Slice(live, func(i, j int) bool { return live[i].PID < live[j].PID })
	rep.Records = append(rep.Records, live...)
	return rep
}

func copyRecord(rec *ProcessRecord) ProcessRecord {
	c := *rec
	c.Transitions = append([]lib.StateKind(nil), rec.Transitions...)
	return c
}

// EventsFor returns the events of pid in the order they were observed.
func (rep *Report) EventsFor(pid int) []Event {
	var out []Event
	for _, ev := range rep.Events {
		if ev.PID == pid {
			out = append(out, ev)
		}
	}
	return out
}

// Terminal returns the terminal events only.
func (rep *Report) Terminal() []Event {
	var out []Event
	for _, ev := range rep.Events {
		if ev.Status.Terminal() {
			out = append(out, ev)
		}
	}
	return out
}

// ExitCode summarises the run for a CLI: 0 on a clean drain, 1 otherwise.
func (rep *Report) ExitCode() int {
	if rep.Outcome == OutcomeDone {
		return 0
	}
	return 1
}

// Write encodes the report as yaml or json.
func (rep *Report) Write(w io.Writer, format string) error {
	switch format {
	case lib.ReportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	case lib.ReportYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown report format %q", lib.ErrInvalidConfig, format)
	}
	return nil
}

// WriteFile writes the report to path, "-" meaning stdout.
func (rep *Report) WriteFile(path, format string) error {
	if path == "-" {
		return rep.Write(os.Stdout, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	if err := rep.Write(f, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report %s: %w", path, err)
	}
	return nil
}
