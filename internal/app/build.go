package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ent0n29/katibim/internal/auth"
	"github.com/ent0n29/katibim/internal/bus"
	"github.com/ent0n29/katibim/internal/cleanup"
	"github.com/ent0n29/katibim/internal/config"
	"github.com/ent0n29/katibim/internal/documents"
	"github.com/ent0n29/katibim/internal/httpapi"
	"github.com/ent0n29/katibim/internal/observability"
)

const sessionJanitorInterval = 30 * time.Second

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Store     documents.Store
	Metrics   *observability.Metrics
	StoreMode string
	AuthMode  string

	memoryAuth *auth.MemoryProvider
	bus        *bus.Client

	// Cleanup should be called on shutdown to release external resources (DB, NATS, tracer).
	Cleanup func(ctx context.Context) error
}

// Start launches background work that lives as long as ctx.
func (b *BuildResult) Start(ctx context.Context) {
	if b.memoryAuth != nil {
		b.memoryAuth.StartJanitor(ctx, sessionJanitorInterval)
	}
}

// Build wires the service from cfg. reg may be nil to use the default
// Prometheus registerer.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*BuildResult, error) {
	var metrics *observability.Metrics
	if reg == nil {
		metrics = observability.NewMetrics(cfg.MetricsNamespace)
	} else {
		metrics = observability.NewMetricsWithRegistry(cfg.MetricsNamespace, reg)
	}

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingOptions{
		ServiceName:  "katibim",
		Exporter:     cfg.TracesExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	baseStore, storeMode, err := documents.NewStore(ctx, documents.Options{
		Backend:         cfg.StoreBackend,
		SupabaseURL:     cfg.SupabaseURL,
		SupabaseAnonKey: cfg.SupabaseAnonKey,
		DatabaseURL:     cfg.DatabaseURL,
		SQLitePath:      cfg.SQLitePath,
		Table:           cfg.StoreTable,
	})
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("document store init failed: %w", err)
	}
	logger.Info("document store ready", slog.String("backend", storeMode), slog.String("table", cfg.StoreTable))

	var busClient *bus.Client
	if strings.TrimSpace(cfg.NATSURL) != "" {
		busClient, err = bus.Connect(bus.Options{URL: cfg.NATSURL, SubjectPrefix: cfg.NATSSubjectPrefix}, logger)
		if err != nil {
			logger.Warn("change notifications disabled", slog.String("error", err.Error()))
			busClient = nil
		}
	}

	var (
		publisher documents.Publisher
		notifier  httpapi.DictationNotifier
	)
	if busClient != nil {
		publisher = busClient
		notifier = busClient
	}
	store := documents.NewPublishingStore(
		documents.Instrument(baseStore, storeMode, metrics),
		publisher,
		logger,
	)

	provider, authMode, memoryAuth, err := buildAuth(cfg)
	if err != nil {
		busClient.Close()
		_ = baseStore.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}
	logger.Info("auth provider ready", slog.String("backend", authMode))

	var cleaner cleanup.Cleaner
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gc, err := cleanup.NewGeminiCleaner(ctx, cleanup.GeminiOptions{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			busClient.Close()
			_ = baseStore.Close()
			_ = shutdownTracing(ctx)
			return nil, fmt.Errorf("ai cleanup init failed: %w", err)
		}
		cleaner = gc
		logger.Info("ai cleanup ready", slog.String("model", gc.Model()))
	} else {
		logger.Warn("GEMINI_API_KEY is not set; AI cleanup requests will fail")
	}

	api := httpapi.New(httpapi.Deps{
		Config:    cfg,
		Auth:      provider,
		AuthMode:  authMode,
		Store:     store,
		StoreMode: storeMode,
		Cleaner:   cleaner,
		Metrics:   metrics,
		Logger:    logger,
		Notifier:  notifier,
		Ready: func() error {
			if busClient != nil && !busClient.Healthy() {
				return errors.New("nats connection is not healthy")
			}
			return nil
		},
	})

	cleanupFn := func(ctx context.Context) error {
		var errs []string
		busClient.Close()
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := shutdownTracing(ctx); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Store:      store,
		Metrics:    metrics,
		StoreMode:  storeMode,
		AuthMode:   authMode,
		memoryAuth: memoryAuth,
		bus:        busClient,
		Cleanup:    cleanupFn,
	}, nil
}

func buildAuth(cfg config.Config) (auth.Provider, string, *auth.MemoryProvider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.AuthBackend))
	if mode == "" || mode == "auto" {
		mode = "memory"
		if cfg.SupabaseConfigured() {
			mode = "supabase"
		}
	}
	switch mode {
	case "supabase":
		p, err := auth.NewSupabaseProvider(cfg.SupabaseURL, cfg.SupabaseAnonKey, nil)
		if err != nil {
			return nil, mode, nil, fmt.Errorf("auth provider init failed: %w", err)
		}
		return p, mode, nil, nil
	case "memory":
		p := auth.NewMemoryProvider(cfg.AuthSessionTTL)
		if err := p.SeedUsers(cfg.AuthUsers); err != nil {
			return nil, mode, nil, fmt.Errorf("AUTH_USERS: %w", err)
		}
		return p, mode, p, nil
	default:
		return nil, mode, nil, fmt.Errorf("invalid AUTH_BACKEND: %q", cfg.AuthBackend)
	}
}
