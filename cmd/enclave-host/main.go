// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

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

	"github.com/enclave-foundation/enclave/lib/artifact"
	"github.com/enclave-foundation/enclave/lib/audit"
	"github.com/enclave-foundation/enclave/lib/capability"
	"github.com/enclave-foundation/enclave/lib/component"
	"github.com/enclave-foundation/enclave/lib/config"
	"github.com/enclave-foundation/enclave/lib/policy"
	"github.com/enclave-foundation/enclave/lib/secret"
	"github.com/enclave-foundation/enclave/lib/service"
	"github.com/enclave-foundation/enclave/lib/sqlitepool"
	"github.com/enclave-foundation/enclave/lib/version"
	"github.com/enclave-foundation/enclave/sandbox"
)

// shutdownTimeout bounds how long shutdown waits for component
// instances to close after the admin socket has drained.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		dataDir     string
		socketPath  string
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to YAML config file (default: $ENCLAVE_CONFIG, else compiled-in defaults)")
	flag.StringVar(&dataDir, "data-dir", "", "place all state under this directory (overrides every configured path)")
	flag.StringVar(&socketPath, "socket", "", "admin socket path (overrides the configured path)")
	flag.StringVar(&logLevel, "log-level", "", "minimum log level: debug, info, warn, error (overrides the configured level)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("enclave-host %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Paths = config.DefaultAt(dataDir).Paths
	}
	if socketPath != "" {
		cfg.Paths.Socket = socketPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	// Durable stores. Each creates its own owner-only directory.
	policies, err := policy.NewStore(cfg.Paths.Policies)
	if err != nil {
		return fmt.Errorf("opening policy store: %w", err)
	}
	secrets, err := secret.NewStore(cfg.Paths.Secrets)
	if err != nil {
		return fmt.Errorf("opening secret store: %w", err)
	}
	cache, err := artifact.NewCache(cfg.Paths.Artifacts)
	if err != nil {
		return fmt.Errorf("opening artifact cache: %w", err)
	}

	fetchTimeout, err := cfg.FetchTimeout()
	if err != nil {
		return err
	}
	fetcher := &artifact.Fetcher{
		Cache:    cache,
		Client:   &http.Client{Timeout: fetchTimeout},
		MaxBytes: cfg.Fetch.MaxBytes,
	}

	// The capability engine pulls policy and secrets from the stores
	// on every check; there is no state to build here. The audit
	// recorder, when enabled, observes every decision it makes.
	engine := &capability.Engine{Policies: policies, Secrets: secrets}

	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		pool, err := sqlitepool.Open(sqlitepool.Config{
			Path:      cfg.Paths.AuditDB,
			PoolSize:  cfg.Audit.PoolSize,
			Logger:    logger,
			OnConnect: audit.EnsureSchema,
		})
		if err != nil {
			return fmt.Errorf("opening audit database: %w", err)
		}
		defer pool.Close()

		recorder, err = audit.NewRecorder(audit.Config{
			Pool:       pool,
			Log:        logger,
			BufferSize: cfg.Audit.BufferSize,
		})
		if err != nil {
			return fmt.Errorf("starting audit recorder: %w", err)
		}
		defer recorder.Close()

		engine.Observer = recorder
		logger.Info("audit log open", "path", cfg.Paths.AuditDB)
	}

	host, err := sandbox.NewHost(sandbox.Config{
		Engine:             engine,
		StorageRoot:        cfg.Sandbox.StorageRoot,
		DefaultMemoryLimit: cfg.Sandbox.DefaultMemoryLimit,
		HTTPClient:         &http.Client{},
		Log:                logger,
	})
	if err != nil {
		return fmt.Errorf("creating execution host: %w", err)
	}
	defer host.Close(context.Background())

	registry, err := component.NewRegistry(component.RegistryConfig{
		Policies: policies,
		Secrets:  secrets,
		Host:     host,
		Fetcher:  fetcher,
		Log:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating component registry: %w", err)
	}

	daemon := &Daemon{
		registry:           registry,
		policies:           policies,
		secrets:            secrets,
		engine:             engine,
		recorder:           recorder,
		defaultMemoryLimit: cfg.Sandbox.DefaultMemoryLimit,
		startedAt:          time.Now().UTC(),
		logger:             logger,
	}

	server := service.NewSocketServer(cfg.Paths.Socket, logger)
	daemon.register(server)

	logger.Info("enclave-host starting",
		"version", version.Version,
		"root", cfg.Paths.Root,
		"socket", cfg.Paths.Socket,
		"audit", cfg.Audit.Enabled,
	)

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serving admin socket: %w", err)
	}

	// The socket has drained. Close instances under a bounded deadline;
	// the deferred recorder teardown then commits the decision backlog
	// before the pool closes.
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := registry.Close(shutdownCtx); err != nil {
		logger.Error("closing components", "error", err)
	}
	return nil
}

// loadConfig resolves the configuration: an explicit --config wins,
// otherwise ENCLAVE_CONFIG, otherwise the compiled-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newLogger builds the daemon logger. Logs go to stderr; stdout stays
// clean.
func newLogger(cfg config.LogConfig) *slog.Logger {
	options := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, options))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options))
}
