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

	"github.com/rulboard/rulboard/server/internal/alerts"
	"github.com/rulboard/rulboard/server/internal/api"
	"github.com/rulboard/rulboard/server/internal/auth"
	"github.com/rulboard/rulboard/server/internal/config"
	"github.com/rulboard/rulboard/server/internal/metrics"
	"github.com/rulboard/rulboard/server/internal/receiver"
	"github.com/rulboard/rulboard/server/internal/store"
	"github.com/rulboard/rulboard/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory (e.g. ui/dist); leave empty to disable")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("rulboard-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.SlogLevel())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"snapshot_ttl", cfg.Server.Snapshot.TTL,
		"page_size", cfg.Server.Table.PageSize,
		"mqtt", cfg.Server.MQTT.Enabled(),
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Batch store with background TTL eviction.
	st := store.New(cfg.Server.Snapshot.TTL)
	go st.Run(ctx)

	// Alerts engine: evaluates rules on every incoming batch.
	alertEngine := alerts.New(cfg.Server.Alerts)

	reg := metrics.New(func() int { return len(st.List()) })
	recv := receiver.New(st, alertEngine, reg)

	// Rules, webhooks and log level follow config edits without a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			alertEngine.Reload(next.Server.Alerts)
			level.Set(next.Server.SlogLevel())
			slog.Info("alert rules applied", "alert_rules", len(next.Server.Alerts.Rules))
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	if cfg.Server.MQTT.Enabled() {
		sub := receiver.NewSubscriber(recv, cfg.Server.MQTT)
		go func() {
			if err := sub.Run(ctx); err != nil {
				slog.Error("MQTT ingest stopped", "err", err)
			}
		}()
	}

	// Ingest always goes through the API key check; reads only when asked.
	apiKey := auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)
	apiHandler := api.New(st, alertEngine, api.Options{
		PageSize: cfg.Server.Table.PageSize,
		CacheTTL: cfg.Server.Cache.TTL,
		Ingest:   apiKey(recv),
	})
	var reads http.Handler = apiHandler
	if cfg.Server.Auth.ProtectReads {
		reads = apiKey(apiHandler)
	}

	// WebSocket hub: pushes the fleet snapshot to dashboard clients on every
	// tick and right after each stored batch.
	hub := ws.New(apiHandler, cfg.Server.WS.Interval)
	recv.OnStored(hub.Notify)
	go hub.Run(ctx)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", reads)
	httpMux.Handle("/metrics", reg)
	if cfg.Server.Auth.ProtectReads {
		httpMux.Handle("/ws/stream", apiKey(hub))
	} else {
		httpMux.Handle("/ws/stream", hub)
	}

	// Optional: serve the pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			// SPA fallback: if the requested file doesn't exist, serve index.html.
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("rulboard-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
