package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rulboard/rulboard/agent/internal/config"
	"github.com/rulboard/rulboard/agent/internal/shipper"
	"github.com/rulboard/rulboard/agent/internal/source"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("rulboard-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Agent.SlogLevel())
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Agent.Sources),
		"poll_interval", cfg.Agent.PollInterval,
		"ship_interval", cfg.Agent.ShipInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The shipper runs until ctx is cancelled.
	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	sources := source.NewSet(ship)
	if sources.Reload(cfg.Agent.Sources) == 0 {
		slog.Warn("no usable sources configured, agent will idle until the config changes")
	}
	sources.CheckCerts(ctx)

	poll := newPollLoop(ctx, sources)
	poll.start(cfg.Agent.PollInterval)

	// Sources, poll interval and log level follow config edits. The server
	// endpoint and buffer settings need a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			level.Set(next.Agent.SlogLevel())
			sources.Reload(next.Agent.Sources)
			sources.CheckCerts(ctx)
			poll.start(next.Agent.PollInterval)
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	<-ctx.Done()
	poll.stop()
	slog.Info("rulboard-agent shutting down")
}

// pollLoop owns the goroutine running Set.Run so that it can be restarted
// when the poll interval changes.
type pollLoop struct {
	parent  context.Context
	sources *source.Set

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPollLoop(ctx context.Context, sources *source.Set) *pollLoop {
	return &pollLoop{parent: ctx, sources: sources}
}

// start (re)starts polling at interval. A restart polls immediately, so
// reloaded sources are fetched without waiting a full interval.
func (p *pollLoop) start(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if p.parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(p.parent)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go func() {
		defer close(done)
		p.sources.Run(ctx, interval)
	}()
	slog.Info("polling sources", "interval", interval, "sources", p.sources.Len())
}

func (p *pollLoop) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *pollLoop) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
}
