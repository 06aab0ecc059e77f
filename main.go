package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finmetrics/internal/config"
	"finmetrics/internal/httpapi"
	"finmetrics/internal/orchestrator"
	"finmetrics/internal/provider"
	"finmetrics/internal/provider/alphavantage"
	"finmetrics/internal/provider/polygon"
	"finmetrics/internal/provider/yahoo"
	"finmetrics/internal/schwab"
	"finmetrics/internal/tokenstore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second

	// Register providers. Yahoo needs no key and always participates; the
	// keyed providers only register when their key is configured, so an
	// unconfigured provider name silently resolves to the default.
	adapters := []provider.Adapter{yahoo.New(cfg.YahooBaseURL, timeout)}
	if cfg.HasAlphaVantageKey() {
		adapters = append(adapters, alphavantage.New(cfg.AlphaVantageAPIKey, cfg.AlphaVantageBaseURL, timeout))
	}
	if cfg.HasPolygonKey() {
		adapters = append(adapters, polygon.New(cfg.PolygonAPIKey, cfg.PolygonBaseURL, timeout))
	}

	defaultName := cfg.DefaultProvider
	registered := false
	for _, a := range adapters {
		if a.Name() == defaultName {
			registered = true
			break
		}
	}
	if !registered {
		logger.Warn("default provider not registered, using yahoo", "requested", defaultName)
		defaultName = yahoo.Name
	}

	// Yahoo is the fallback target: keyless, no daily quota.
	registry, err := provider.NewRegistry(adapters, defaultName, yahoo.Name)
	if err != nil {
		log.Fatalf("Failed to build provider registry: %v", err)
	}

	orc := orchestrator.New(registry, cfg.EnableFallback, logger)

	var schwabClient *schwab.Client
	if cfg.HasSchwab() {
		store, err := tokenstore.New(cfg.SchwabEncryptionKey, cfg.SchwabTokenPath)
		if err != nil {
			log.Fatalf("Failed to open Schwab token store: %v", err)
		}
		schwabClient = schwab.New(schwab.Config{
			AppKey:      cfg.SchwabAppKey,
			AppSecret:   cfg.SchwabAppSecret,
			RedirectURI: cfg.SchwabRedirectURI,
			AuthURL:     cfg.SchwabAuthURL,
			TokenURL:    cfg.SchwabTokenURL,
			BaseURL:     cfg.SchwabBaseURL,
		}, store, timeout)
	} else {
		logger.Info("Schwab integration disabled (settings incomplete)")
	}

	handler := httpapi.New(orc, schwabClient, logger, cfg.FrontendURL, defaultName)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Router(cfg.CORSOriginList()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * timeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr, "default_provider", defaultName, "providers", registry.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
