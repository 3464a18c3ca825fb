package sup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Johnermac/reaptree/lib"
)

// Version is set at build time.
var Version = "dev"

type runOptions struct {
	configFile   string
	children     int
	depth        int
	sleep        time.Duration
	exitCodes    []int
	signal       int
	stops        []string
	pollInterval time.Duration
	timeout      time.Duration
	reportPath   string
	reportFormat string
	lockFile     string
	logLevel     string
	noColor      bool
}

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reaptree",
		Short: "Spawn a tree of worker processes and reap every lifecycle transition",
	}
	root.AddCommand(newRunCmd(NewEnv))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true
	return root
}

// NewEnv builds the environment the run command uses.
var NewEnv = func() HostEnv { return lib.NewHost() }

// Execute runs the CLI entrypoint.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd(newEnv func() HostEnv) *cobra.Command {
	opts := &runOptions{}
	def := lib.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Spawn children and reap them until none are left",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			if err := applyLogConfig(cfg.Log); err != nil {
				return err
			}

			s, err := NewSupervisor(cfg, newEnv())
			if err != nil {
				return err
			}
			report, err := s.Run(cmd.Context())
			if err != nil {
				return err
			}
			if report.ExitCode() != 0 {
				return fmt.Errorf("run %s ended %s", report.RunID, report.Outcome)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML config file")
	f.IntVarP(&opts.children, "children", "n", def.Children, "Number of direct children to spawn")
	f.IntVarP(&opts.depth, "depth", "d", def.Depth, "Generations each child spawns below itself")
	f.DurationVar(&opts.sleep, "sleep", def.Work.Sleep, "How long every worker sleeps before exiting")
	f.IntSliceVar(&opts.exitCodes, "exit-codes", def.Work.ExitCodes, "Exit codes handed out round-robin to children")
	f.IntVar(&opts.signal, "signal", def.Work.Signal, "Signal workers kill themselves with instead of exiting (0 = exit)")
	f.StringArrayVar(&opts.stops, "stop", nil, "Job control step child:stop_after:resume_after, e.g. 0:100ms:500ms (repeatable)")
	f.DurationVar(&opts.pollInterval, "poll-interval", def.PollInterval, "Fallback poll interval while waiting with a timeout")
	f.DurationVar(&opts.timeout, "timeout", def.Timeout, "Cancel reaping after this long (0 = wait until drained)")
	f.StringVar(&opts.reportPath, "report", def.Report.Path, "Write the run report to this path (- for stdout)")
	f.StringVar(&opts.reportFormat, "report-format", def.Report.Format, "Report format: yaml or json")
	f.StringVar(&opts.lockFile, "lock", def.LockFile, "Lock file preventing concurrent supervisors")
	f.StringVar(&opts.logLevel, "log-level", def.Log.Level, "Log level: debug, info, success, warn, error")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable coloured log output")
	return cmd
}

// resolveConfig layers the config file, if any, under flags the user set
// explicitly.
func resolveConfig(cmd *cobra.Command, opts *runOptions) (lib.Config, error) {
	cfg := lib.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := lib.LoadConfig(opts.configFile)
		if err != nil {
			return lib.Config{}, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("children") {
		cfg.Children = opts.children
	}
	if f.Changed("depth") {
		cfg.Depth = opts.depth
	}
	if f.Changed("sleep") {
		cfg.Work.Sleep = opts.sleep
	}
	if f.Changed("exit-codes") {
		cfg.Work.ExitCodes = opts.exitCodes
	}
	if f.Changed("signal") {
		cfg.Work.Signal = opts.signal
	}
	if f.Changed("stop") {
		cfg.JobControl = cfg.JobControl[:0:0]
		for _, s := range opts.stops {
			step, err := lib.ParseJobControlStep(s)
			if err != nil {
				return lib.Config{}, err
			}
			cfg.JobControl = append(cfg.JobControl, step)
		}
	}
	if f.Changed("poll-interval") {
		cfg.PollInterval = opts.pollInterval
	}
	if f.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if f.Changed("report") {
		cfg.Report.Path = opts.reportPath
	}
	if f.Changed("report-format") {
		cfg.Report.Format = opts.reportFormat
	}
	if f.Changed("lock") {
		cfg.LockFile = opts.lockFile
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if opts.noColor {
		cfg.Log.Color = "never"
	}

	if err := cfg.Validate(); err != nil {
		return lib.Config{}, err
	}
	return cfg, nil
}

// applyLogConfig configures the logger and exports the settings so that
// spawned workers log the same way.
func applyLogConfig(lc lib.LogConfig) error {
	level, err := lib.ParseLogType(lc.Level)
	if err != nil {
		return err
	}
	log := lib.DefaultLogger()
	log.SetLevel(level)
	switch lc.Color {
	case "always":
		log.SetColor(true)
	case "never":
		log.SetColor(false)
	}
	log.SetPrefix(fmt.Sprintf("[sup %d]", os.Getpid()))

	if err := os.Setenv(lib.LogLevelEnv, lc.Level); err != nil {
		return fmt.Errorf("export log level: %w", err)
	}
	if err := os.Setenv(lib.LogColorEnv, lc.Color); err != nil {
		return fmt.Errorf("export log color: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
