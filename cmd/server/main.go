// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/leseb/integrations-gw/pkg/adapters/http"
	"github.com/leseb/integrations-gw/pkg/core/config"
	"github.com/leseb/integrations-gw/pkg/core/integrations"
	"github.com/leseb/integrations-gw/pkg/core/proxy"
	"github.com/leseb/integrations-gw/pkg/core/state"
	"github.com/leseb/integrations-gw/pkg/core/vault"
	"github.com/leseb/integrations-gw/pkg/observability/logging"
	"github.com/leseb/integrations-gw/pkg/observability/metrics"
	"github.com/leseb/integrations-gw/pkg/secretstore"
	"github.com/leseb/integrations-gw/pkg/storage/sqlstore"

	// Backends register themselves with state.Providers and secretstore.Providers.
	_ "github.com/leseb/integrations-gw/pkg/secretstore/filesystem"
	_ "github.com/leseb/integrations-gw/pkg/secretstore/memory"
	_ "github.com/leseb/integrations-gw/pkg/secretstore/redis"
	_ "github.com/leseb/integrations-gw/pkg/secretstore/s3"
	_ "github.com/leseb/integrations-gw/pkg/storage/memory"
	_ "github.com/leseb/integrations-gw/pkg/storage/postgres"
	_ "github.com/leseb/integrations-gw/pkg/storage/sqlite"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	port := flag.Int("port", 8080, "HTTP port to listen on")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Print version
	if *version {
		fmt.Printf("Integrations Gateway Server\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil {
		cfg = config.Default()
	}

	// Override port if specified
	if *port != 8080 {
		cfg.Server.Port = *port
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("Starting Integrations Gateway Server",
		"version", Version,
		"build_time", BuildTime)
	if cfgErr != nil {
		// If config file doesn't exist, use defaults
		logger.Warn("Failed to load config, using defaults", "error", cfgErr)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *logging.Logger) error {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize record storage
	store, err := state.Providers.New(ctx, cfg.Storage.Type, map[string]string{"dsn": cfg.Storage.DSN})
	if err != nil {
		return fmt.Errorf("initialize %s storage: %w", cfg.Storage.Type, err)
	}
	defer store.Close()
	logger.Info("Initialized storage", "type", cfg.Storage.Type)

	// Initialize credential storage
	secrets, err := newSecretStore(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer secrets.Close(context.Background())
	logger.Info("Initialized secret store", "type", cfg.SecretStore.Type)

	sealer, err := newSealer(cfg.Vault, logger)
	if err != nil {
		return err
	}
	v := vault.New(secrets, sealer, logger.Component("vault"))

	registry := integrations.NewRegistry(store, v, logger.Component("registry"))
	if cfg.IntegrationsFile != "" {
		defs, err := integrations.LoadDefinitions(cfg.IntegrationsFile)
		if err != nil {
			return err
		}
		created, err := registry.Seed(ctx, defs)
		if err != nil {
			return fmt.Errorf("seed integrations: %w", err)
		}
		logger.Info("Seeded integrations", "file", cfg.IntegrationsFile, "definitions", len(defs), "created", created)
	}

	// Initialize metrics (optional)
	var (
		recorder       *metrics.Recorder
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		mp, err := metrics.NewPrometheusProvider(ctx, "integrations-gw")
		if err != nil {
			return fmt.Errorf("initialize metrics: %w", err)
		}
		defer mp.Shutdown(context.Background())
		recorder, err = metrics.NewRecorder(mp.Meter())
		if err != nil {
			return fmt.Errorf("initialize metrics: %w", err)
		}
		metricsHandler = mp.Handler()
		logger.Info("Initialized Prometheus metrics")
	}

	dispatcher := proxy.NewDispatcher(registry,
		proxy.NewHTTPTransport(nil, cfg.Proxy.MaxResponseBytes),
		proxy.Options{
			Timeout: cfg.Proxy.Timeout,
			Metrics: recorder,
			Logger:  logger.Component("proxy"),
		})

	// Initialize HTTP adapter
	handler := httpAdapter.New(registry, dispatcher, logger, httpAdapter.Options{
		AdminToken: cfg.Server.AdminToken,
		Metrics:    metricsHandler,
	})
	if cfg.Server.AdminToken == "" {
		logger.Info("Credential read-back disabled, no admin token configured")
	}

	// Create HTTP server. The write timeout must outlast a proxied call.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	writeTimeout := cfg.Server.Timeout
	if writeTimeout < cfg.Proxy.Timeout+5*time.Second {
		writeTimeout = cfg.Proxy.Timeout + 5*time.Second
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newSecretStore builds the credential store. "database" reuses the record
// store's connection when it is SQL backed.
func newSecretStore(ctx context.Context, cfg *config.Config, store state.IntegrationStore) (secretstore.SecretStore, error) {
	if cfg.SecretStore.Type == "database" {
		db, ok := store.(*sqlstore.Store)
		if !ok {
			return nil, fmt.Errorf("secret store type %q needs a sqlite or postgres storage backend, have %q", cfg.SecretStore.Type, cfg.Storage.Type)
		}
		return db.Secrets(), nil
	}

	params := cfg.SecretStore.Params
	if _, ok := params["dsn"]; !ok && (cfg.SecretStore.Type == "sqlite" || cfg.SecretStore.Type == "postgres") {
		params = map[string]string{"dsn": cfg.Storage.DSN}
		for k, v := range cfg.SecretStore.Params {
			params[k] = v
		}
	}
	secrets, err := secretstore.Providers.New(ctx, cfg.SecretStore.Type, params)
	if err != nil {
		return nil, fmt.Errorf("initialize %s secret store: %w", cfg.SecretStore.Type, err)
	}
	return secrets, nil
}

// newSealer loads the age identity. Without one, a throwaway identity is
// generated and credentials do not survive a restart.
func newSealer(cfg config.VaultConfig, logger *logging.Logger) (*vault.AgeSealer, error) {
	switch {
	case cfg.Identity != "":
		return vault.NewAgeSealer(cfg.Identity)
	case cfg.IdentityFile != "":
		return vault.NewAgeSealerFromFile(cfg.IdentityFile)
	}
	sealer, err := vault.GenerateAgeSealer()
	if err != nil {
		return nil, err
	}
	logger.Warn("No vault identity configured, generated an ephemeral one; sealed credentials will be unreadable after restart",
		"recipient", sealer.Recipient())
	return sealer, nil
}
