package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/olliecrow/screen_usage_monitor/internal/config"
	"github.com/olliecrow/screen_usage_monitor/internal/usage"
)

var version = "dev"

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: 2, err: err}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil && exitErr.err.Error() != "" {
			fmt.Fprintf(os.Stderr, "error: %v\n", exitErr.err)
		}
		return exitErr.code
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

type rootOptions struct {
	configPath string
	tui        tuiOptions
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "screen-usage-monitor",
		Short: "Show per-application screen time in a terminal user interface (TUI)",
		Long: `screen-usage-monitor shows per-application screen time usage taken from an
activity report, in a terminal user interface (TUI). Pick an application to see its
cumulative usage. The monitor is read-only and never modifies the report.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError(fmt.Errorf("unknown command: %s", args[0]))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (default ~/.screen-usage-monitor/config.yaml)")
	pf.String("provider", usage.FileProviderName, "Usage provider to request (file or redis)")
	pf.Duration("timeout", 0, "Per-request provider timeout (default from config, 10s)")
	pf.String("report-file", "", "Path to a JSON activity report for the file provider")
	pf.String("redis-addr", "", "Redis address holding the activity report; binds the redis provider")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: json or text")
	pf.String("log-file", "", "Log file used while the TUI is running")
	pf.String("metrics-addr", "", "Serve prometheus metrics on this address while the TUI is running")

	addTUIFlags(root, &opts.tui)

	root.AddCommand(
		newTUICmd(opts),
		newReportCmd(opts),
		newDoctorCmd(opts),
		newCompletionCmd(root),
	)
	return root
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath, cmd.Flags())
	if err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

// buildRegistry binds every provider the configuration describes. The file
// provider is bound whenever a report path is set; redis only with an address.
func buildRegistry(cfg *config.Config, logger zerolog.Logger) (*usage.Registry, error) {
	registry := usage.NewRegistry()
	decorate := func(p usage.Provider) usage.Provider {
		return usage.Instrument(usage.WithTimeout(p, cfg.ProviderTimeout()), logger)
	}

	if cfg.File.Path != "" {
		if err := registry.Bind(decorate(usage.NewFileProvider(cfg.File.Path))); err != nil {
			return nil, err
		}
	}
	if opts := cfg.RedisOptions(); opts.Addr != "" {
		if err := registry.Bind(decorate(usage.NewRedisProvider(opts))); err != nil {
			_ = registry.Close()
			return nil, err
		}
	}

	logger.Debug().
		Strs("bound", registry.Names()).
		Str("selected", cfg.Provider.Name).
		Msg("Usage providers bound")
	return registry, nil
}
