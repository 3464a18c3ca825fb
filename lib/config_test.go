package lib

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reaptree.yaml")
	data := `
children: 2
depth: 0
work:
  sleep: 50ms
  exit_codes: [4, 5]
job_control:
  - child: 1
    stop_after: 10ms
    resume_after: 20ms
timeout: 5s
report:
  path: out.json
  format: json
log:
  level: debug
  color: never
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Children != 2 || cfg.Depth != 0 {
		t.Errorf("children/depth = %d/%d", cfg.Children, cfg.Depth)
	}
	if cfg.Work.Sleep != 50*time.Millisecond {
		t.Errorf("sleep = %s", cfg.Work.Sleep)
	}
	if len(cfg.JobControl) != 1 || cfg.JobControl[0].ResumeAfter != 20*time.Millisecond {
		t.Errorf("job control = %+v", cfg.JobControl)
	}
	if cfg.Timeout != 5*time.Second || cfg.Report.Format != ReportJSON || cfg.Log.Level != "debug" {
		t.Errorf("unexpected config %+v", cfg)
	}
	// not in the file, so the default survives
	if cfg.PollInterval != DefaultConfig().PollInterval {
		t.Errorf("poll interval = %s", cfg.PollInterval)
	}
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig(nil): %v", err)
	}
	if cfg.Children != DefaultConfig().Children {
		t.Fatalf("children = %d", cfg.Children)
	}
}

func TestParseConfigUnknownField(t *testing.T) {
	_, err := ParseConfig([]byte("childs: 3\n"))
	if err == nil || !strings.Contains(err.Error(), "childs") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative children", func(c *Config) { c.Children = -1 }},
		{"negative depth", func(c *Config) { c.Depth = -1 }},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"no exit codes", func(c *Config) { c.Work.ExitCodes = nil }},
		{"bad exit code", func(c *Config) { c.Work.ExitCodes = []int{0, 300} }},
		{"stopping signal", func(c *Config) { c.Work.Signal = 19 }},
		{"job control out of range", func(c *Config) {
			c.JobControl = []JobControlStep{{Child: 3}}
		}},
		{"job control twice", func(c *Config) {
			c.JobControl = []JobControlStep{{Child: 0}, {Child: 0}}
		}},
		{"report format", func(c *Config) { c.Report.Format = "xml" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log color", func(c *Config) { c.Log.Color = "sometimes" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigZeroChildren(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Children = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero children should be valid: %v", err)
	}
}

func TestWorkForRoundRobin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Work.ExitCodes = []int{0, 1, 2}
	want := []int{0, 1, 2, 0, 1}
	for i, code := range want {
		if got := cfg.WorkFor(i).ExitCode; got != code {
			t.Errorf("WorkFor(%d).ExitCode = %d, want %d", i, got, code)
		}
	}
	if cfg.WorkFor(4).Sleep != cfg.Work.Sleep {
		t.Error("sleep not copied into work")
	}
}

func TestParseJobControlStep(t *testing.T) {
	step, err := ParseJobControlStep("1:100ms:2s")
	if err != nil {
		t.Fatalf("ParseJobControlStep: %v", err)
	}
	want := JobControlStep{Child: 1, StopAfter: 100 * time.Millisecond, ResumeAfter: 2 * time.Second}
	if step != want {
		t.Fatalf("got %+v, want %+v", step, want)
	}

	for _, bad := range []string{"", "1:2", "x:1s:1s", "0:soon:1s", "0:1s:later"} {
		if _, err := ParseJobControlStep(bad); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseJobControlStep(%q) = %v, want ErrInvalidConfig", bad, err)
		}
	}
}
