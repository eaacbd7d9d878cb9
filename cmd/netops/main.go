package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/yami-59/network-ops-demo/api"
	"github.com/yami-59/network-ops-demo/internal/config"
	"github.com/yami-59/network-ops-demo/internal/mcp"
	"github.com/yami-59/network-ops-demo/internal/ratelimit"
	"github.com/yami-59/network-ops-demo/internal/server"
	"github.com/yami-59/network-ops-demo/internal/service/assistant"
	"github.com/yami-59/network-ops-demo/internal/service/operations"
	"github.com/yami-59/network-ops-demo/internal/storage"
	"github.com/yami-59/network-ops-demo/internal/storage/sqlite"
	"github.com/yami-59/network-ops-demo/internal/telemetry"
	"github.com/yami-59/network-ops-demo/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "netops:", err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("netops starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	catalog := config.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = config.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		logger.Info("catalog loaded", "path", cfg.CatalogPath, "features", len(catalog.Features))
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	var policy operations.TransitionPolicy = operations.PermissivePolicy{}
	if cfg.StrictTransitions {
		policy = operations.StrictPolicy{}
	}
	ops := operations.New(store, catalog, logger, operations.Options{Policy: policy})
	logger.Info("transition policy", "policy", ops.Policy().Name())

	var parser assistant.IntentParser
	if cfg.AnthropicAPIKey != "" {
		parser = assistant.NewAnthropicParser(cfg.AnthropicAPIKey, cfg.IntentModel, cfg.IntentTimeout)
		logger.Info("intent parser: anthropic", "model", cfg.IntentModel)
	} else {
		logger.Info("intent parser: disabled (no ANTHROPIC_API_KEY), keyword signals only")
	}
	gw := assistant.New(ops, parser, logger, assistant.Options{
		Language:      cfg.AssistantLanguage,
		MaxReferences: cfg.AssistantMaxReferences,
	})

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}
	defer func() { _ = limiter.Close() }()

	mcpSrv := mcp.New(ops, gw, logger, version)

	srv := server.New(server.ServerConfig{
		Operations:          ops,
		Assistant:           gw,
		Store:               store,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("netops shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("netops stopped")
	return nil
}

// openStore picks the backend from the DSN scheme. Postgres gets the embedded
// migrations; SQLite applies its schema on open.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	dsn := cfg.DatabaseURL
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		st, err := sqlite.Open(ctx, sqlite.PathFromDSN(dsn), logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		logger.Info("storage: sqlite", "path", sqlite.PathFromDSN(dsn))
		return st, nil
	}

	var db *storage.DB
	err := storage.WithRetry(ctx, cfg.MigrationsRetry, 500*time.Millisecond, func() error {
		var err error
		db, err = storage.New(ctx, dsn, logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	err = storage.WithRetry(ctx, cfg.MigrationsRetry, 500*time.Millisecond, func() error {
		return db.RunMigrations(ctx, migrations.FS)
	})
	if err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("migrations: %w", err)
	}
	logger.Info("storage: postgres")
	return db, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
