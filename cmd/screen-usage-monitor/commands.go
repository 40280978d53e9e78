package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/olliecrow/screen_usage_monitor/internal/logging"
	"github.com/olliecrow/screen_usage_monitor/internal/metrics"
	"github.com/olliecrow/screen_usage_monitor/internal/presenter"
	"github.com/olliecrow/screen_usage_monitor/internal/tui"
	"github.com/olliecrow/screen_usage_monitor/internal/usage"
)

type tuiOptions struct {
	noAltScreen bool
}

func addTUIFlags(cmd *cobra.Command, opts *tuiOptions) {
	cmd.Flags().Duration("interval", 0, "Auto refresh interval, 0 disables (default from config)")
	cmd.Flags().Bool("no-color", false, "Disable color styling")
	cmd.Flags().BoolVar(&opts.noAltScreen, "no-alt-screen", false, "Disable alternate screen mode")
}

func newTUICmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal user interface (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, root)
		},
	}
	addTUIFlags(cmd, &root.tui)
	return cmd
}

func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	if err := usage.EnsureMonitorDataDir(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not ensure monitor data dir: %v\n", err)
	}
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return &exitError{code: 1, err: errors.New("interactive TUI requires a TTY")}
	}

	logger, logCloser, err := logging.NewFile(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; logging disabled\n", err)
	} else {
		defer logCloser.Close()
	}
	logger.Info().
		Str("version", version).
		Str("config", cfg.ConfigFile).
		Str("provider", cfg.Provider.Name).
		Msg("Starting screen usage monitor")

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer registry.Close()

	if cfg.Metrics.Addr != "" {
		metricsServer := metrics.NewServer(cfg.Metrics.Addr, logger)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer metricsServer.Stop()
	}

	err = tui.Run(tui.Options{
		Interval:  cfg.RefreshInterval(),
		NoColor:   cfg.TUI.NoColor,
		AltScreen: cfg.TUI.AltScreen && !opts.tui.noAltScreen,
		Presenter: presenter.New(registry.Binding(cfg.Provider.Name), logger),
	})
	logger.Info().Msg("Screen usage monitor stopped")
	return err
}

func newReportCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Request usage once and print it",
		Long: `Request usage once from the selected provider and print one
"<application>: <milliseconds> ms" line per application, sorted by identifier.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, root, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output usage as a JSON object")
	return cmd
}

func runReport(cmd *cobra.Command, opts *rootOptions, jsonOutput bool) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, cmd.ErrOrStderr())

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer registry.Close()

	p := presenter.New(registry.Binding(cfg.Provider.Name), logger)
	req, ok := p.Start()
	if !ok {
		return &exitError{code: 2, err: p.Diagnostic()}
	}
	out, reqErr := req.Run(context.Background())
	p.Resolve(req.Seq, out, reqErr)

	state := p.State()
	if state.Phase == presenter.PhaseFailed {
		return &exitError{code: 1, err: state.Err}
	}
	return writeUsage(cmd.OutOrStdout(), state, jsonOutput)
}

func writeUsage(w io.Writer, state presenter.ViewState, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state.Usage); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}
	apps := state.Applications()
	if len(apps) == 0 {
		fmt.Fprintln(w, "no applications reported usage")
		return nil
	}
	for _, app := range apps {
		fmt.Fprintln(w, presenter.FormatUsageLine(app, state.Usage[app]))
	}
	return nil
}

func newDoctorCmd(root *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run setup and provider checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if timeout <= 0 {
				return usageError(errors.New("--doctor-timeout must be > 0"))
			}
			return runDoctor(cmd, root, jsonOutput, timeout)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output doctor report as JSON")
	cmd.Flags().DurationVar(&timeout, "doctor-timeout", 20*time.Second, "Per-check timeout")
	return cmd
}

func runDoctor(cmd *cobra.Command, opts *rootOptions, jsonOutput bool, timeout time.Duration) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, cmd.ErrOrStderr())

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer registry.Close()

	report := usage.RunDoctor(context.Background(), registry, cfg.Provider.Name, timeout)

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	} else {
		printDoctorHuman(out, report)
	}

	if !report.Healthy() {
		return &exitError{code: 1, err: errors.New("")}
	}
	return nil
}

func printDoctorHuman(w io.Writer, report usage.DoctorReport) {
	pass := color.New(color.FgGreen, color.Bold).SprintFunc()
	fail := color.New(color.FgRed, color.Bold).SprintFunc()

	fmt.Fprintln(w, "screen usage monitor doctor")
	fmt.Fprintf(w, "selected provider: %s\n", report.Provider)
	fmt.Fprintln(w)
	for _, c := range report.Checks {
		state := fail("FAIL")
		if c.OK {
			state = pass("PASS")
		}
		fmt.Fprintf(w, "[%s] %s\n", state, c.Name)
		fmt.Fprintf(w, "  %s\n", c.Details)
	}
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh]",
		Short: "Print shell completion script",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usageError(errors.New("completion accepts zero or one shell argument (bash or zsh)"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := "bash"
			if len(args) == 1 {
				shell = strings.TrimSpace(args[0])
			}
			out := cmd.OutOrStdout()
			switch shell {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			default:
				return usageError(fmt.Errorf("unsupported shell %q (expected bash or zsh)", shell))
			}
		},
	}
}
