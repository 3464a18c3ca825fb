package lib

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkConfig describes the work every worker performs. ExitCodes are handed
// out round-robin by child index.
type WorkConfig struct {
	Sleep     time.Duration `yaml:"sleep"`
	ExitCodes []int         `yaml:"exit_codes"`
	Signal    int           `yaml:"signal"`
}

// JobControlStep stops the direct child with index Child StopAfter after the
// run starts, and resumes it ResumeAfter after the stop has been observed.
type JobControlStep struct {
	Child       int           `yaml:"child"`
	StopAfter   time.Duration `yaml:"stop_after"`
	ResumeAfter time.Duration `yaml:"resume_after"`
}

type ReportConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Color is one of auto, always, never.
	Color string `yaml:"color"`
}

// Config is the supervisor configuration.
type Config struct {
	Children     int              `yaml:"children"`
	Depth        int              `yaml:"depth"`
	Work         WorkConfig       `yaml:"work"`
	JobControl   []JobControlStep `yaml:"job_control"`
	PollInterval time.Duration    `yaml:"poll_interval"`
	Timeout      time.Duration    `yaml:"timeout"`
	Report       ReportConfig     `yaml:"report"`
	LockFile     string           `yaml:"lock_file"`
	Log          LogConfig        `yaml:"log"`
}

const (
	ReportYAML = "yaml"
	ReportJSON = "json"
)

func DefaultConfig() Config {
	return Config{
		Children: 3,
		Depth:    1,
		Work: WorkConfig{
			Sleep:     200 * time.Millisecond,
			ExitCodes: []int{0, 1, 2},
		},
		PollInterval: 250 * time.Millisecond,
		Report:       ReportConfig{Format: ReportYAML},
		Log:          LogConfig{Level: "info", Color: "auto"},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML on top of DefaultConfig. Unknown keys are errors.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Children < 0 {
		return fmt.Errorf("%w: children must not be negative, got %d", ErrInvalidConfig, c.Children)
	}
	if c.Depth < 0 {
		return fmt.Errorf("%w: depth must not be negative, got %d", ErrInvalidConfig, c.Depth)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	if len(c.Work.ExitCodes) == 0 && c.Work.Signal == 0 {
		return fmt.Errorf("%w: work needs exit_codes or a signal", ErrInvalidConfig)
	}
	for i := range c.Work.ExitCodes {
		if err := c.WorkFor(i).Validate(); err != nil {
			return err
		}
	}
	if err := c.WorkFor(0).Validate(); err != nil {
		return err
	}
	seen := make(map[int]bool)
	for _, step := range c.JobControl {
		if seen[step.Child] {
			return fmt.Errorf("%w: job_control lists child %d more than once", ErrInvalidConfig, step.Child)
		}
		seen[step.Child] = true
		if step.Child < 0 || step.Child >= c.Children {
			return fmt.Errorf("%w: job_control child %d out of range (children=%d)", ErrInvalidConfig, step.Child, c.Children)
		}
		if step.StopAfter < 0 || step.ResumeAfter < 0 {
			return fmt.Errorf("%w: job_control delays must not be negative", ErrInvalidConfig)
		}
	}
	switch c.Report.Format {
	case ReportYAML, ReportJSON:
	default:
		return fmt.Errorf("%w: unknown report format %q", ErrInvalidConfig, c.Report.Format)
	}
	if _, err := ParseLogType(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%w: log color must be auto, always or never, got %q", ErrInvalidConfig, c.Log.Color)
	}
	return nil
}

// WorkFor returns the work of the direct child with index i.
func (c Config) WorkFor(i int) Work {
	w := Work{Sleep: c.Work.Sleep, Signal: c.Work.Signal}
	if n := len(c.Work.ExitCodes); n > 0 {
		w.ExitCode = c.Work.ExitCodes[i%n]
	}
	return w
}

// ParseJobControlStep parses "child:stop_after:resume_after", e.g. "0:100ms:1s".
func ParseJobControlStep(s string) (JobControlStep, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return JobControlStep{}, fmt.Errorf("%w: job control %q: want child:stop_after:resume_after", ErrInvalidConfig, s)
	}
	child, err := strconv.Atoi(parts[0])
	if err != nil {
		return JobControlStep{}, fmt.Errorf("%w: job control %q: child: %v", ErrInvalidConfig, s, err)
	}
	stop, err := time.ParseDuration(parts[1])
	if err != nil {
		return JobControlStep{}, fmt.Errorf("%w: job control %q: stop_after: %v", ErrInvalidConfig, s, err)
	}
	resume, err := time.ParseDuration(parts[2])
	if err != nil {
		return JobControlStep{}, fmt.Errorf("%w: job control %q: resume_after: %v", ErrInvalidConfig, s, err)
	}
	return JobControlStep{Child: child, StopAfter: stop, ResumeAfter: resume}, nil
}
