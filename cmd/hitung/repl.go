package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/szaher/hitung/internal/config"
	"github.com/szaher/hitung/internal/repl"
)

func newREPLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Long: `Read expressions line by line, print each result and keep variables
between lines. ":vars" lists variables and ":quit" ends the session.
Changes to the configuration file toggle debug output and exit_on_error live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd)
		},
	}
}

func runREPL(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(context.Background()) }()

	r := repl.New(s.eval, repl.Options{
		In:          cmd.InOrStdin(),
		Out:         cmd.OutOrStdout(),
		Err:         cmd.ErrOrStderr(),
		Prompt:      cfg.Prompt,
		ExitOnError: cfg.ExitOnError,
		NoColor:     noColor,
	})

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return r.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: s.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			s.logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-done:
			case <-gctx.Done():
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	watchCtx, stopWatch := context.WithCancel(gctx)
	defer stopWatch()
	g.Go(func() error {
		<-done
		stopWatch()
		return nil
	})
	g.Go(func() error {
		err := config.Watch(watchCtx, configFile, func(next *config.Config, err error) {
			if err != nil {
				s.logger.Warn("config reload failed", "error", err)
				return
			}
			if !cmd.Flags().Changed("debug") {
				s.dumper.SetEnabled(next.Debug)
			}
			r.SetExitOnError(next.ExitOnError)
			s.logger.Info("config reloaded", "debug", s.dumper.Enabled(), "exit_on_error", next.ExitOnError)
		})
		if err != nil {
			// Without a watchable directory the session runs on the startup config.
			s.logger.Debug("config watch disabled", "error", err)
		}
		return nil
	})

	return g.Wait()
}
