// Package main provides the verifybib binary entry point.
// verifybib lints BibTeX files and writes a categorized report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/c360studio/verifybib/config"
	"github.com/c360studio/verifybib/report"
	"github.com/c360studio/verifybib/validation"
)

const (
	Version   = report.ToolVersion
	BuildTime = "dev"
	appName   = "verifybib"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	configPath     string
	output         string
	format         string
	logLevel       string
	metricsFile    string
	jobs           int
	watch          bool
	failOnFindings bool
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "verifybib <file.bib|glob>...",
		Short: "Lint BibTeX files",
		Long: `verifybib checks BibTeX entries for problems that break LaTeX builds
or produce inconsistent references, and writes a report listing them.

Findings are grouped into general messages, important warnings and other
warnings per entry. Globs such as "papers/**/*.bib" are expanded.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", config.DefaultReportPath, "Report file path")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(report.FormatMarkdown), "Report format (markdown, json)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "Inputs validated in parallel (0 = GOMAXPROCS)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-validate inputs when they change")
	cmd.Flags().BoolVar(&opts.failOnFindings, "fail-on-findings", false, "Exit with status 1 when any report has findings")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	cmd.AddCommand(initConfigCmd())
	cmd.AddCommand(rulesCmd())

	return cmd
}

func initConfigCmd() *cobra.Command {
	var (
		force bool
		user  bool
	)

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default verifybib.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(newLogger(cmd.ErrOrStderr(), "warn"))

			if user {
				path, err := loader.EnsureUserConfig()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User config: %s\n", path)
				return nil
			}

			path, created, err := loader.InitProjectConfig(force)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists (use --force to overwrite)\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&user, "user", false, "Create the user config under ~/.config/verifybib instead")
	return cmd
}

func rulesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List entry rules and whether the loaded config enables them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), "warn")
			cfg, err := config.NewLoader(logger).Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			v, err := validation.NewValidator(cfg.ValidatorOptions(), logger)
			if err != nil {
				return fmt.Errorf("build validator: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, r := range v.Rules() {
				state := "enabled"
				if v.Disabled(r.ID) {
					state = "disabled"
				}
				fmt.Fprintf(out, "%-22s %-8s %s\n", r.ID, state, r.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	return cmd
}

func run(cmd *cobra.Command, opts options, args []string) error {
	runID := uuid.New().String()
	logger := newLogger(cmd.ErrOrStderr(), opts.logLevel).With("run_id", runID)

	cfg, err := config.NewLoader(logger).Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !cmd.Flags().Changed("log-level") {
		logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel).With("run_id", runID)
	}
	slog.SetDefault(logger)

	inputs, err := resolveInputs(args)
	if err != nil {
		return err
	}

	r, err := newRunner(cfg, runID, opts.jobs, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	logger.Debug("Starting run",
		"version", Version,
		"inputs", len(inputs),
		"format", r.format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dirty, err := r.checkAll(ctx, inputs)
	if err != nil {
		return err
	}

	if opts.watch {
		return r.watchInputs(ctx, inputs)
	}

	if dirty && opts.failOnFindings {
		return errFindings
	}
	return nil
}

// applyFlags merges explicitly set flags over the loaded config.
func applyFlags(cmd *cobra.Command, opts options, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Path = opts.output
	}
	if flags.Changed("format") {
		cfg.Output.Format = opts.format
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = opts.metricsFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
}

func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
