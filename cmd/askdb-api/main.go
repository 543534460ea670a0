package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/auditlog"
	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/embedding"
	"github.com/askdb/askdb/internal/executor"
	"github.com/askdb/askdb/internal/exemplar"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/retriever"
	"github.com/askdb/askdb/internal/schema"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	targetDB, err := database.Open(context.Background(), database.Config{
		Driver:          cfg.Target.Driver,
		DSN:             cfg.Target.DSN,
		MaxOpenConns:    cfg.Target.MaxOpenConns,
		MaxIdleConns:    cfg.Target.MaxIdleConns,
		ConnMaxIdleTime: cfg.Target.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Target.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open target db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = targetDB.Close() }()

	deps := api.Dependencies{
		Logger:   logger,
		Schema:   schema.NewIntrospector(targetDB),
		Executor: executor.New(targetDB),
		Readiness: api.CombineReadinessChecks(
			api.CheckTargetDSN(cfg),
			api.CheckAIConfig(cfg),
			targetDB.PingContext,
		),
		DependencyTimeout: time.Second,
	}

	if cfg.Audit.Enabled && cfg.Audit.DSN != "" {
		auditDB, err := database.Open(context.Background(), database.Config{Driver: "pgx", DSN: cfg.Audit.DSN})
		if err != nil {
			logger.Error("failed to open audit db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()

		auditLogger := auditlog.NewLogger(auditDB, logger)
		if err := auditLogger.EnsureSchema(context.Background()); err != nil {
			logger.Warn("audit schema setup failed", slog.Any("error", err))
		}
		deps.Audit = auditLogger

		if cfg.Archive.Enabled {
			objectStore, err := s3store.New(context.Background(), s3store.Config{
				Endpoint:         cfg.Archive.Endpoint,
				Region:           cfg.Archive.Region,
				Bucket:           cfg.Archive.Bucket,
				AccessKeyID:      cfg.Archive.AccessKeyID,
				SecretAccessKey:  cfg.Archive.SecretAccessKey,
				UseSSL:           cfg.Archive.UseSSL,
				Prefix:           cfg.Archive.Prefix,
				AutoCreateBucket: cfg.Archive.AutoCreateBucket,
			})
			if err != nil {
				logger.Error("failed to initialize archive store", slog.Any("error", err))
				os.Exit(1)
			}
			deps.Archiver = &auditlog.Archiver{Logs: auditLogger, Store: objectStore}
		}
	}

	if cfg.AI.BaseURL != "" && cfg.AI.APIKey != "" {
		translator, err := nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:   cfg.AI.BaseURL,
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
			Timeout:   cfg.AI.Timeout,
			Fallback:  cfg.AI.Fallback,
		})
		if err != nil {
			logger.Error("failed to initialize translator", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Translator = translator
	}

	if cfg.Embedding.BaseURL != "" {
		embedder, err := embedding.NewClient(embedding.Config{
			BaseURL:   cfg.Embedding.BaseURL,
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize embedding client", slog.Any("error", err))
			os.Exit(1)
		}
		index, err := retriever.BuildIndex(context.Background(), exemplar.NewDefaultStore(), embedder)
		if err != nil {
			logger.Error("failed to build exemplar index", slog.Any("error", err))
			os.Exit(1)
		}
		retr, err := retriever.New(embedder, index, cfg.Retrieve.TopK)
		if err != nil {
			logger.Error("failed to initialize retriever", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Retriever = retr
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("api server stopped")
}
