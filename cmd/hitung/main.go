// Package main is the entry point for the hitung calculator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/szaher/hitung/internal/config"
	"github.com/szaher/hitung/internal/eval"
	"github.com/szaher/hitung/internal/telemetry"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	configFile string
	backendArg string
	debug      bool
	logLevel   string
	noColor    bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hitung",
		Short: "JIT-compiling calculator",
		Long: `Hitung evaluates arithmetic, comparison, assignment and if/then/else
expressions by compiling each line to native code and running it.
Without a subcommand it starts an interactive session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd)
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", config.DefaultFile, "Path to configuration file")
	root.PersistentFlags().StringVar(&backendArg, "backend", "", "Execution backend (wasm, interp)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Dump the syntax tree and IR of every evaluation")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newREPLCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newLexCmd())
	root.AddCommand(newParseCmd())
	root.AddCommand(newIRCmd())

	return root
}

// loadConfig reads the configuration file and applies flag overrides. The
// default file may be absent; a file named with --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	optional := !cmd.Flags().Changed("config")
	cfg, err := config.Load(configFile, optional)
	if err != nil {
		return nil, err
	}
	if backendArg != "" {
		cfg.Backend = backendArg
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debug
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session bundles an evaluator with the telemetry it reports to.
type session struct {
	eval    *eval.Evaluator
	metrics *telemetry.Metrics
	dumper  *telemetry.Dumper
	logger  *slog.Logger
}

func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	level, err := telemetry.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := telemetry.NewLogger(os.Stderr, level, cfg.LogFormat)

	b, err := eval.NewBackend(ctx, cfg.Backend)
	if err != nil {
		return nil, err
	}

	s := &session{
		metrics: telemetry.NewMetrics(),
		dumper:  telemetry.NewDumper(os.Stderr, cfg.TraceFile, cfg.Debug),
		logger:  logger,
	}
	s.eval = eval.New(b,
		eval.WithLogger(logger),
		eval.WithMetrics(s.metrics),
		eval.WithTracer(telemetry.NewTracer(telemetry.LogExporter(logger))),
		eval.WithDumper(s.dumper),
	)
	return s, nil
}

func (s *session) Close(ctx context.Context) error {
	return s.eval.Close(ctx)
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
