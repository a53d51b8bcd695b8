package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pgexporter/pgexporter/internal/bridge"
	"github.com/pgexporter/pgexporter/internal/config"
	"github.com/pgexporter/pgexporter/internal/logging"
	"github.com/pgexporter/pgexporter/internal/management"
	"github.com/pgexporter/pgexporter/internal/metrics"
)

func main() {
	configPath := flag.String("config", "pgexporter.conf", "path to the main configuration file")
	usersPath := flag.String("users", "", "path to the users vault file")
	adminsPath := flag.String("admins", "", "path to the admins vault file")
	watch := flag.Bool("watch", false, "reload automatically when the configuration file changes")
	managementPort := flag.Int("management-port", 0, "override the configured management port")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("pgexporter starting", "config", *configPath)

	cfg := config.New()
	if err := config.ReadConfiguration(cfg, *configPath); err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if err := config.ReadUsers(cfg, *usersPath); err != nil {
		slog.Error("failed to load users", "err", err)
		os.Exit(1)
	}
	if err := config.ReadAdmins(cfg, *adminsPath); err != nil {
		slog.Error("failed to load admins", "err", err)
		os.Exit(1)
	}
	if cfg.MetricsPath != "" {
		defs, err := metrics.Load(cfg.MetricsPath)
		if err != nil {
			slog.Error("failed to load metric definitions", "err", err)
			os.Exit(1)
		}
		cfg.MetricDefs = defs
	}

	if *managementPort > 0 {
		cfg.Management = *managementPort
	}

	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if err := config.ValidateUsers(cfg); err != nil {
		slog.Error("invalid users", "err", err)
		os.Exit(1)
	}
	if err := config.ValidateAdmins(cfg); err != nil {
		slog.Error("invalid admins", "err", err)
		os.Exit(1)
	}

	logCtl := &logging.Controller{}
	if err := logCtl.Apply(cfg.Log); err != nil {
		slog.Error("failed to start logging", "err", err)
		os.Exit(1)
	}
	defer logCtl.Stop()

	state := config.NewState(cfg)
	state.MetricsLoader = metrics.Load
	state.LogRestart = logCtl.Apply

	slog.Info("configuration loaded",
		"servers", len(cfg.Servers),
		"users", len(cfg.Users),
		"admins", len(cfg.Admins),
		"metrics", cfg.Metrics,
		"bridge", cfg.Bridge,
		"management", cfg.Management,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Verify bridge endpoints before serving anything.
	if cfg.Bridge != config.PortDisabled && len(cfg.Endpoints) > 0 {
		probeEndpoints(ctx, cfg.Endpoints)
	}

	// Remote management API.
	if cfg.Management > 0 {
		mgmtSrv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Management),
			Handler: management.New(state),
		}
		go func() {
			slog.Info("management API listening", "port", cfg.Management)
			if err := mgmtSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("management server stopped", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			mgmtSrv.Shutdown(shutdownCtx) //nolint:errcheck
		}()
	}

	// SIGHUP triggers a reload, like the configuration watcher.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			restart, err := state.Reload()
			if err != nil {
				slog.Error("reload failed, keeping previous configuration", "err", err)
				continue
			}
			if restart {
				slog.Warn("reload applied, but some parameters require a restart")
			}
		}
	}()

	if *watch {
		go func() {
			if err := state.Watch(ctx, func() {
				slog.Warn("reload applied, but some parameters require a restart")
			}); err != nil {
				slog.Error("configuration watcher stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("pgexporter shutting down")
}

// probeEndpoints checks each bridge endpoint once and logs the outcome.
// A failing endpoint is not fatal; it may come up later.
func probeEndpoints(ctx context.Context, endpoints []config.Endpoint) {
	client := bridge.NewClient()
	for _, ep := range endpoints {
		res := bridge.Probe(ctx, client, ep)
		if res.Err != nil {
			slog.Warn("bridge endpoint unreachable",
				"host", ep.Host, "port", ep.Port, "err", res.Err)
			continue
		}
		slog.Info("bridge endpoint verified",
			"host", ep.Host, "port", ep.Port,
			"families", res.Families, "samples", res.Samples)
	}
}
