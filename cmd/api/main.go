package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bryanwahyu/aml-analyser/internal/application"
	appanalyses "github.com/bryanwahyu/aml-analyser/internal/application/analyses"
	"github.com/bryanwahyu/aml-analyser/internal/bootstrap"
	"github.com/bryanwahyu/aml-analyser/internal/config"
	domain "github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
	mysqlp "github.com/bryanwahyu/aml-analyser/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/aml-analyser/internal/infra/db/postgres"
	"github.com/bryanwahyu/aml-analyser/internal/infra/httpserver"
	"github.com/bryanwahyu/aml-analyser/internal/infra/search/serpapi"
	minioStore "github.com/bryanwahyu/aml-analyser/internal/infra/storage"
	"github.com/bryanwahyu/aml-analyser/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	logger := bootstrap.NewLogger(os.Stdout, cfg)
	slog.SetDefault(logger)

	ctx := context.Background()

	db, repo, failures, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	checks := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}

	var archive domain.ArchiveStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		archive = store
		checks["minio"] = store
	}

	agent, err := bootstrap.NewAgent(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("analyser init: %w", err)
	}

	var searcher httpserver.Searcher
	search, err := bootstrap.NewSearchClient(cfg)
	switch {
	case err == nil:
		searcher = search
	case errors.Is(err, serpapi.ErrMissingAPIKey):
		logger.Warn("search disabled: no SerpAPI key configured")
	default:
		return fmt.Errorf("search init: %w", err)
	}

	metrics := middleware.NewMetrics()

	svc := &appanalyses.Service{
		Analyser: agent,
		Repo:     repo,
		Failures: failures,
		Archive:  archive,
		Clock:    application.SystemClock{},
		Logger:   logger,
		Observe:  metrics.ObserveAnalysis,
		Timeout:  cfg.AI.Timeout,
	}

	handler := httpserver.NewRouter(svc, searcher, httpserver.Options{
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Checks:         checks,
		Metrics:        metrics,
		Logger:         logger,
	})
	if len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("authentication disabled: no api keys configured")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "provider", cfg.AI.Provider, "model", agent.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-stop:
	}
	logger.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx2)
}

func openRepositories(ctx context.Context, cfg *config.Config) (*sql.DB, domain.Repository, domain.FailureRepository, error) {
	// amlctl runs without a database; the API stores every analysis
	if !cfg.DatabaseEnabled() {
		return nil, nil, nil, errors.New("database.host is not configured")
	}
	switch cfg.Database.Driver {
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.Database.Migrate {
			if err := pgp.EnsureSchema(ctx, db); err != nil {
				db.Close()
				return nil, nil, nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		return db, pgp.NewAnalysisRepository(db), pgp.NewFailureRepository(db), nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		if cfg.Database.Migrate {
			if err := mysqlp.EnsureSchema(ctx, db); err != nil {
				db.Close()
				return nil, nil, nil, fmt.Errorf("mysql migrate: %w", err)
			}
		}
		return db, mysqlp.NewAnalysisRepository(db), mysqlp.NewFailureRepository(db), nil
	}
}
