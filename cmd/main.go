package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"pr-autopilot/internal/automation"
	"pr-autopilot/internal/conflict"
	"pr-autopilot/internal/config"
	"pr-autopilot/internal/github"
	"pr-autopilot/internal/httpapi"
	"pr-autopilot/internal/jira"
	"pr-autopilot/internal/logger"
	"pr-autopilot/internal/monitor"
	"pr-autopilot/internal/notify"
	"pr-autopilot/internal/storage"
)

// CLI is the command tree.
type CLI struct {
	Config string `help:"Path to the configuration file" default:"config.yaml"`

	Run     RunCmd     `cmd:"" help:"Run the automation service (default)" default:"1"`
	Check   CheckCmd   `cmd:"check" help:"Run a single evaluation tick and exit"`
	Summary SummaryCmd `cmd:"summary" help:"Print the current conflict summary and exit"`
}

type RunCmd struct{}
type CheckCmd struct{}
type SummaryCmd struct{}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pr-autopilot"),
		kong.Description("PR review automation and conflict detection service"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds everything the commands need after wiring.
type app struct {
	cfg   *config.Config
	store *storage.Store
	mon   *monitor.Monitor
	jira  *jira.Client
}

// buildApp wires the engine from configuration: store, detector,
// evaluator, sinks, monitor. No package-level state; everything hangs off
// the returned struct.
func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg)

	slog.Info("PR automation service starting",
		"log_file", cfg.Log.File,
		"log_level", cfg.Log.Level,
		"check_interval_minutes", cfg.Monitor.CheckInterval,
		"wait_days", cfg.Automation.WaitDays)

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	var source monitor.Source
	if cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		client := github.NewClient(cfg)
		if err := client.TestConnection(context.Background()); err != nil {
			slog.Error("GitHub connection test failed", "error", err)
			return nil, err
		}
		slog.Info("GitHub connection test succeeded",
			"owner", cfg.GitHub.Owner, "repo", cfg.GitHub.Repo)
		source = client
	} else {
		slog.Info("No PR source configured, evaluating stored snapshots only")
	}

	var sinks []notify.Sink
	sinks = append(sinks, notify.NewLogSink())
	sinks = append(sinks, notify.NewToastSink(cfg.Notifiers.Toast.Limit))
	if cfg.Notifiers.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notifiers.Webhook.URL))
	}
	if cfg.Notifiers.SMTP.Host != "" {
		sinks = append(sinks, notify.NewEmailSink(notify.SMTPConfig{
			Host:     cfg.Notifiers.SMTP.Host,
			Port:     cfg.Notifiers.SMTP.Port,
			User:     cfg.Notifiers.SMTP.User,
			Password: cfg.Notifiers.SMTP.Password,
			From:     cfg.Notifiers.SMTP.From,
			To:       cfg.Notifiers.SMTP.To,
		}))
	}

	mon := monitor.New(
		cfg.Automation,
		monitor.Config{
			Enabled:       cfg.Monitor.Enabled,
			CheckInterval: time.Duration(cfg.Monitor.CheckInterval) * time.Minute,
			AutoNotify:    cfg.Monitor.AutoNotify,
		},
		source,
		conflict.NewDetector(),
		automation.NewEvaluator(nil),
		notify.NewDispatcher(notify.DefaultSendTimeout, sinks...),
		store,
		nil,
	)
	if err := mon.SeedFromStore(); err != nil {
		slog.Warn("Could not seed conflict cache", "error", err)
	}

	return &app{cfg: cfg, store: store, mon: mon, jira: jira.NewClient(cfg)}, nil
}

// Run starts the periodic monitor and, when enabled, the admin API, then
// blocks until interrupted.
func (r *RunCmd) Run(cli *CLI) error {
	a, err := buildApp(cli.Config)
	if err != nil {
		return err
	}
	defer a.store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Info("Shutting down gracefully...")
		cancel()
	}()

	if a.cfg.Monitor.Enabled {
		a.mon.Start(ctx)
	} else {
		slog.Info("Monitor disabled by configuration")
	}

	var server *http.Server
	if a.cfg.API.Enabled {
		handlers := httpapi.NewHandlers(a.mon).WithJira(a.jira)
		server = &http.Server{
			Addr:              a.cfg.API.Addr,
			Handler:           handlers.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("Admin API listening", "addr", a.cfg.API.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Admin API error", "error", err)
			}
		}()
	}

	<-ctx.Done()

	a.mon.Stop()
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Admin API shutdown error", "error", err)
		}
	}

	slog.Info("Shutdown complete.")
	return nil
}

// Run performs one evaluation pass, for cron-style deployments and
// debugging.
func (c *CheckCmd) Run(cli *CLI) error {
	a, err := buildApp(cli.Config)
	if err != nil {
		return err
	}
	defer a.store.Close()

	return a.mon.Tick(context.Background())
}

// Run prints the aggregate conflict state as JSON.
func (s *SummaryCmd) Run(cli *CLI) error {
	a, err := buildApp(cli.Config)
	if err != nil {
		return err
	}
	defer a.store.Close()

	summary, err := a.mon.Summary()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
