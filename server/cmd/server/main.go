package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/table1837/eightysix/server/internal/api"
	"github.com/table1837/eightysix/server/internal/availability"
	"github.com/table1837/eightysix/server/internal/cache"
	"github.com/table1837/eightysix/server/internal/config"
	"github.com/table1837/eightysix/server/internal/interceptor"
	"github.com/table1837/eightysix/server/internal/metrics"
	"github.com/table1837/eightysix/server/internal/notify"
	"github.com/table1837/eightysix/server/internal/search"
	"github.com/table1837/eightysix/server/internal/telemetry"
	"github.com/table1837/eightysix/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file; empty uses defaults and EIGHTYSIX_* env vars")
	uiDir := flag.String("ui-dir", "", "serve the menu UI static files from this directory; leave empty to disable")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	level.UnmarshalText([]byte(cfg.Server.LogLevel)) //nolint:errcheck
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	s := cfg.Server
	slog.Info("eightysix-server starting",
		"config", *configPath,
		"grpc_port", s.GRPCPort,
		"http_port", s.HTTPPort,
		"storage", s.Storage.Driver,
		"default_scope", s.DefaultScope,
		"persist_timeout", s.Availability.PersistTimeout,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, s.Telemetry.ServiceName, s.Telemetry.Endpoint)
	if err != nil {
		slog.Error("failed to set up tracing", "err", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background()) //nolint:errcheck

	backend, err := openBackend(ctx, s.Storage)
	if err != nil {
		slog.Error("failed to open storage", "driver", s.Storage.Driver, "err", err)
		os.Exit(1)
	}
	defer backend.Close() //nolint:errcheck

	// One actor per scope; observers see every apply in order.
	manager := availability.NewManager(backend, availability.Options{
		PersistTimeout: s.Availability.PersistTimeout,
	})
	reg := metrics.New()
	notifier := notify.New(s.Notify.Webhooks)
	manager.Observe(reg)
	manager.Observe(notifier)
	go notifier.Run(ctx)

	// Recover the default scope up front so a broken store fails fast.
	if _, err := manager.Actor(ctx, s.DefaultScope); err != nil {
		slog.Error("failed to recover default scope", "scope", s.DefaultScope, "err", err)
		os.Exit(1)
	}

	// Search index and its read-cache.
	engine := search.NewEngine(nil)
	readCache := cache.New(s.Cache.TTL)
	go readCache.Run(ctx)
	if s.Search.Catalog != "" {
		items, err := search.LoadCatalog(s.Search.Catalog)
		if err != nil {
			slog.Error("failed to load catalog", "path", s.Search.Catalog, "err", err)
			os.Exit(1)
		}
		engine.Replace(search.NewIndex(items))
		slog.Info("catalog loaded", "path", s.Search.Catalog, "items", len(items))

		go func() {
			err := search.Watch(ctx, s.Search.Catalog, func(ix *search.Index) {
				engine.Replace(ix)
				readCache.Purge()
			})
			if err != nil {
				slog.Error("catalog watcher stopped", "err", err)
			}
		}()
	}

	reg.GaugeFunc("sessions_open", "Realtime sessions currently attached.", func() float64 {
		return float64(manager.SessionCount())
	})
	reg.GaugeFunc("scopes_open", "Scopes with a live actor.", func() float64 {
		return float64(len(manager.Scopes()))
	})
	reg.CounterFunc("search_cache_hits_total", "Search responses served from the read-cache.", func() float64 {
		return float64(readCache.Stats().Hits)
	})
	reg.CounterFunc("search_cache_misses_total", "Search responses computed on a cache miss.", func() float64 {
		return float64(readCache.Stats().Misses)
	})
	reg.GaugeFunc("search_cache_entries", "Entries held by the read-cache.", func() float64 {
		return float64(readCache.Stats().Entries)
	})

	grpcSrv := newGRPCServer(manager, s.DefaultScope)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", s.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC gateway listening", "port", s.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// Combined HTTP server: REST API, WebSocket hub and metrics on HTTPPort.
	hub := ws.New(manager, s.DefaultScope)
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(manager, engine, readCache, s.DefaultScope))
	httpMux.Handle("GET /ws/scopes/{scope}", hub)
	httpMux.Handle("GET /ws/86-list", hub)
	httpMux.Handle("/metrics", reg.Handler())

	// Optional: serve the pre-built menu UI from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
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
		Addr:              fmt.Sprintf(":%d", s.HTTPPort),
		Handler:           interceptor.HTTP(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", s.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("eightysix-server shutting down")
	grpcSrv.GracefulStop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	// Hijacked WebSocket connections are not tracked by Shutdown.
	hub.CloseAll()
	manager.Close()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
