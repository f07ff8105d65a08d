package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/socialfeed/backend/internal/config"
	"github.com/socialfeed/backend/internal/db"
	"github.com/socialfeed/backend/internal/handlers"
	"github.com/socialfeed/backend/internal/httpserver"
	"github.com/socialfeed/backend/internal/repositories"
	"github.com/socialfeed/backend/internal/telemetry"
)

// Run bootstraps the social feed backend.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// newLogger builds the JSON logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: lvl}))
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return err
	}

	deps, err := buildDependencies(cfg, b, logger)
	if err != nil {
		_ = b.close(context.Background())
		_ = shutdownTracing(context.Background())
		return err
	}

	srv := httpserver.New(cfg.AppPort, handlers.NewRouter(deps))

	logger.Info("starting http server",
		"port", cfg.AppPort,
		"database", cfg.Database.Driver,
		"objectStore", cfg.ObjectStore.Driver,
		"distributedLocks", cfg.Redis.Addr != "",
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stop taking requests before closing the stores they use.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if err := b.close(shutdownCtx); err != nil {
		logger.Error("backend shutdown failed", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", "error", err)
	}

	return runErr
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	if cfg.Database.Driver == config.DriverMongo {
		return migrateMongo(ctx, cfg.Database, command)
	}

	switch command {
	case "up", "", "status":
	case "down":
		return errors.New("down migrations are not supported")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	dir, err := absDir(cfg.MigrationDir)
	if err != nil {
		return err
	}
	migrator := db.NewMigrator(os.DirFS(dir), newLogger(os.Stderr, cfg.LogLevel))

	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err != nil {
		return err
	}
	defer pool.Close()

	if command == "status" {
		states, err := migrator.Status(ctx, pool)
		if err != nil {
			return err
		}
		db.PrintStatus(os.Stdout, states)
		return nil
	}

	applied, err := migrator.Up(ctx, pool)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("database is up to date")
		return nil
	}
	fmt.Printf("applied %d migration(s)\n", len(applied))
	return nil
}

// migrateMongo has no versioned scripts to apply; the schema is the set of
// indexes, which are created idempotently.
func migrateMongo(ctx context.Context, cfg config.DatabaseConfig, command string) error {
	switch command {
	case "up", "":
	case "status":
		fmt.Println("mongo indexes are applied on every start")
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.ConnectTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if err := repositories.EnsureMongoIndexes(ctx, database); err != nil {
		return err
	}
	fmt.Println("ensured mongo indexes")
	return nil
}

func runSeed(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.Driver == config.DriverMongo {
		return errors.New("seeds are SQL scripts and require the postgres driver")
	}

	dir, err := absDir(cfg.SeedDir)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err != nil {
		return err
	}
	defer pool.Close()

	file, err := db.Seed(ctx, pool, os.DirFS(dir), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("applied seed %s\n", file)
	return nil
}

// absDir resolves dir against the working directory.
func absDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}
