package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/timmy/immiframe/internal/api"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/immich"
	"github.com/timmy/immiframe/internal/logger"
	"github.com/timmy/immiframe/internal/service"
)

const (
	checkFires      = 5
	pingTimeout     = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run on the configured schedule until interrupted",
	RunE:  runServe,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single cycle and exit (status 1 when it fails)",
	RunE:  runOnce,
}

var skipPingFlag bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration, reach Immich, and print the next fire times",
	RunE:  runCheck,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return cfg.Dump(cmd.OutOrStdout())
	},
}

func init() {
	checkCmd.Flags().BoolVar(&skipPingFlag, "skip-ping", false, "Do not contact the Immich server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := service.NewScheduler(a.orch, cfg.Schedule)
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.Server.Enabled {
		deps := api.Deps{Frame: a.orch, Trigger: sched, History: a.runs, Metrics: a.metrics}
		if a.mirror != nil {
			deps.URLs = a.mirror
		}
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.SetupRouter(deps, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Starting status API: port=%d, mode=%s", cfg.Server.Port, cfg.Server.Mode)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status API failed: %v", err)
				stop()
			}
		}()
	}

	runErr := sched.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Status API forced to shut down: %v", err)
		}
	}
	logger.Info("Exited")
	return runErr
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.orch.Run(ctx, service.TriggerOnce)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %q from %s, %d of %d photos\n",
		out.Status, out.Theme.Text, out.Theme.Source, out.Cached, out.Requested)
	if out.Status == domain.RunStatusFailed {
		return fmt.Errorf("run failed: %w", out.Err)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "configuration: ok")

	fires, err := service.NextFires(cfg.Schedule.Cron, time.Now(), checkFires)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schedule %q, next runs:\n", cfg.Schedule.Cron)
	for _, f := range fires {
		fmt.Fprintf(w, "  %s\n", f.Format(time.RFC1123))
	}

	if skipPingFlag {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	client := immich.NewClient(&immich.Config{BaseURL: cfg.Immich.URL, APIKey: cfg.Immich.APIKey, Timeout: pingTimeout})
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("immich unreachable: %w", err)
	}
	fmt.Fprintln(w, "immich: ok")
	return nil
}
