// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ashgrove/historyd/internal/admission"
	"github.com/ashgrove/historyd/internal/config"
	"github.com/ashgrove/historyd/internal/eviction"
	"github.com/ashgrove/historyd/internal/history"
	"github.com/ashgrove/historyd/internal/logging"
	"github.com/ashgrove/historyd/internal/observability"
	"github.com/ashgrove/historyd/internal/server"
	"github.com/ashgrove/historyd/internal/store"
	"github.com/ashgrove/historyd/internal/timestamp"
)

const defaultConfigPath = "/etc/historyd/config.yaml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	daemonize, err := parseArgs(os.Args[1:])
	if err != nil {
		return err
	}

	configPath := os.Getenv("HISTORYD_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if daemonize {
		logger.Warn("daemonization (-d) requested but not supported by this build; continuing in foreground")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	return serve(ctx, cfg, logger)
}

// parseArgs accepts no arguments other than a single optional "-d" flag
// requesting daemonization. Anything else is a usage error.
func parseArgs(args []string) (daemonize bool, err error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		if args[0] == "-d" {
			return true, nil
		}
	}
	return false, fmt.Errorf("usage: historyd [-d]")
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var historyLock sync.Mutex

	evictQueue := buildEvictionQueue(ctx, cfg, logger)
	go evictQueue.Run(ctx)
	defer func() {
		if err := evictQueue.Flush(10 * time.Second); err != nil {
			logger.Warn("eviction queue flush incomplete at shutdown", "error", err)
		}
	}()

	// reg is filled in once the supervisor (and its registry) exists, but
	// the metrics gauge needs to close over it before then.
	reg := &registryRef{}

	var metrics *observability.Metrics
	if cfg.Observability.Enabled {
		metrics = observability.NewMetrics(reg.activeWorkers, func() int64 {
			if reg.store == nil {
				return 0
			}
			return reg.store.TotalSize()
		})
	}

	st, err := buildStore(cfg, evictQueue, metrics)
	if err != nil {
		return fmt.Errorf("building backing store: %w", err)
	}
	defer st.Close()
	reg.store = st

	if cfg.Observability.Enabled {
		startObservability(ctx, cfg, metrics, st, logger)
	}

	limiter := admission.New(cfg.Admission.ConnectionsPerSec, cfg.Admission.Burst)
	if !cfg.Admission.Enabled {
		limiter = nil
	}

	sup := server.NewSupervisor(cfg.Server.Listen, st, &historyLock, limiter, logger, metricsRecorder(metrics))
	reg.registry = sup.Registry()

	if cfg.Timestamp.Enabled {
		injector := timestamp.New(st, &historyLock, logger)
		if err := injector.Start(cfg.Timestamp.Spec); err != nil {
			return fmt.Errorf("starting timestamp injector: %w", err)
		}
		defer injector.Stop()
	}

	return sup.Run(ctx)
}

// metricsRecorder adapts a possibly-nil *observability.Metrics to the
// server package's MetricsRecorder interface, preserving the "nil is a
// valid recorder" contract those nil-typed interface values would break.
func metricsRecorder(m *observability.Metrics) server.MetricsRecorder {
	if m == nil {
		return nil
	}
	return m
}

func buildStore(cfg *config.Config, evictQueue *eviction.Queue, metrics *observability.Metrics) (store.BackingStore, error) {
	switch cfg.Backend.Kind {
	case "history":
		onEvict := func(evicted []byte) {
			evictQueue.Push(evicted)
			if metrics != nil {
				metrics.RecordEviction()
			}
		}
		return store.NewHistoryStore(history.New(cfg.History.Capacity), onEvict), nil
	case "chardevice":
		return store.NewCharDeviceStore(cfg.Backend.DevicePath)
	default:
		fs, err := store.NewFileStore(cfg.Backend.FilePath, cfg.Backend.PreallocateRaw)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}

// buildEvictionQueue always returns a running queue: NoopSink when archival
// is disabled or fails to initialize, an S3Sink when it is enabled and its
// AWS configuration loads. Keeping the queue itself always present means the drop/backlog
// counters it tracks stay meaningful regardless of configuration.
func buildEvictionQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger) *eviction.Queue {
	var sink eviction.Sink = eviction.NoopSink{}

	if cfg.Eviction.Enabled {
		s3sink, err := eviction.NewS3Sink(ctx, cfg.Eviction.Bucket, cfg.Eviction.Region, cfg.Eviction.Prefix)
		if err != nil {
			logger.Error("creating S3 eviction sink, archival disabled", "error", err)
		} else {
			sink = s3sink
		}
	}

	return eviction.NewQueue(sink, 64<<20, 256, logger)
}

func startObservability(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, st store.BackingStore, logger *slog.Logger) {
	acl := observability.NewACL(cfg.Observability.ParsedCIDRs)
	router := observability.NewRouter(acl, metrics, st, logger)

	srv := &http.Server{
		Addr:    cfg.Observability.Listen,
		Handler: router,
	}

	go func() {
		logger.Info("observability listening", "address", cfg.Observability.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("observability server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("observability shutdown error", "error", err)
		}
	}()
}

// registryRef lets the observability gauge close over a *server.Registry
// that doesn't exist yet at the point the gauge is constructed.
type registryRef struct {
	registry *server.Registry
	store    store.BackingStore
}

func (r *registryRef) activeWorkers() int {
	if r.registry == nil {
		return 0
	}
	return r.registry.Count()
}
