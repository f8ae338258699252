package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/table1837/eightysix/agent/internal/config"
	"github.com/table1837/eightysix/agent/internal/shipper"
	"github.com/table1837/eightysix/agent/internal/stream"
	"github.com/table1837/eightysix/pkg/types"
)

// station is one running mirror + shipper pair for a scope.
type station struct {
	cancel context.CancelFunc
	mirror *stream.Mirror
	ship   *shipper.Shipper
}

func startStation(parent context.Context, cfg config.AgentConfig) (*station, error) {
	mirror := stream.NewMirror(cfg.Scope)
	client, err := stream.New(cfg.StreamURL, mirror, cfg.ReconnectMax)
	if err != nil {
		return nil, err
	}
	client.OnMessage = func(msg types.Message) {
		slog.Info("86 list changed",
			"scope", msg.Scope,
			"event", msg.Event,
			"unavailable", len(mirror.Unavailable()),
		)
	}

	ship := shipper.New(cfg)
	ship.OnDelivered = func(r types.Record) {
		slog.Info("update applied", "item", r.ItemKey, "status", r.Status, "actor", r.ActorID)
	}

	ctx, cancel := context.WithCancel(parent)
	go client.Run(ctx)
	go ship.Run(ctx)

	return &station{cancel: cancel, mirror: mirror, ship: ship}, nil
}

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	console := flag.Bool("stdin", false, "read '86 <item>' / 'restore <item>' commands from stdin")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("eightysix-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"stream_url", cfg.Agent.StreamURL,
		"scope", cfg.Agent.Scope,
		"station_id", cfg.Agent.StationID,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	first, err := startStation(ctx, cfg.Agent)
	if err != nil {
		slog.Error("failed to start station", "err", err)
		os.Exit(1)
	}
	var current atomic.Pointer[station]
	current.Store(first)

	// Hot-reload restarts the mirror and shipper against the new settings.
	// Updates still buffered in the old shipper are dropped.
	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
				next, err := startStation(ctx, updated.Agent)
				if err != nil {
					slog.Error("config reload: station not restarted", "err", err)
					return
				}
				current.Swap(next).cancel()
				slog.Info("config hot-reloaded", "scope", updated.Agent.Scope)
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	if *console {
		go func() {
			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				u, err := parseCommand(sc.Text())
				if err != nil {
					slog.Warn("ignored console input", "err", err)
					continue
				}
				current.Load().ship.Ship(u)
			}
		}()
	}

	<-ctx.Done()
	current.Load().cancel()
	slog.Info("eightysix-agent shutting down")
}
