package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	migrationAttempts   = 3
	migrationBackoff    = 100 * time.Millisecond
	migrationMaxBackoff = 3 * time.Second
)

// Transient Postgres failures worth another attempt.
var retryablePgCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// MigrationState pairs a migration file with whether it was applied.
type MigrationState struct {
	Name    string
	Applied bool
}

// Migrator applies the .sql files of a directory in lexical order and records
// each one in schema_migrations.
type Migrator struct {
	Files  fs.FS
	Logger *slog.Logger
}

// NewMigrator reads migration files from files.
func NewMigrator(files fs.FS, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{Files: files, Logger: logger}
}

// Names lists the migration files in order.
func (m *Migrator) Names() ([]string, error) {
	entries, err := fs.ReadDir(m.Files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Status reports every migration file and whether it has been applied.
func (m *Migrator) Status(ctx context.Context, pool *pgxpool.Pool) ([]MigrationState, error) {
	names, err := m.Names()
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return nil, err
	}
	return migrationStates(names, applied), nil
}

// Up applies every migration not yet recorded and returns their names.
func (m *Migrator) Up(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	states, err := m.Status(ctx, pool)
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var done []string
	for _, state := range states {
		if state.Applied {
			continue
		}
		script, err := fs.ReadFile(m.Files, state.Name)
		if err != nil {
			return done, fmt.Errorf("read migration %s: %w", state.Name, err)
		}
		if err := m.apply(ctx, conn, state.Name, string(script)); err != nil {
			return done, err
		}
		m.Logger.Info("migration applied", "name", state.Name)
		done = append(done, state.Name)
	}
	return done, nil
}

// Seed runs one SQL script outside the migration bookkeeping. A bare name
// such as "dev" resolves to "dev_seed.sql".
func Seed(ctx context.Context, pool *pgxpool.Pool, files fs.FS, name string) (string, error) {
	file := SeedFileName(name)
	script, err := fs.ReadFile(files, file)
	if err != nil {
		return file, fmt.Errorf("read seed %s: %w", file, err)
	}
	if _, err := pool.Exec(ctx, string(script)); err != nil {
		return file, fmt.Errorf("apply seed %s: %w", file, err)
	}
	return file, nil
}

// SeedFileName maps a seed name onto its file.
func SeedFileName(name string) string {
	if strings.HasSuffix(name, ".sql") {
		return name
	}
	return name + "_seed.sql"
}

func (m *Migrator) apply(ctx context.Context, conn *pgxpool.Conn, name, script string) error {
	var err error
	for attempt := 1; attempt <= migrationAttempts; attempt++ {
		if attempt > 1 {
			if serr := sleepContext(ctx, backoff(attempt)); serr != nil {
				return serr
			}
		}

		err = applyOnce(ctx, conn, name, script)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		m.Logger.Warn("transient migration failure",
			"name", name, "attempt", attempt, "maxAttempts", migrationAttempts, "error", err)
	}
	return fmt.Errorf("migration %s failed after %d attempts: %w", name, migrationAttempts, err)
}

func applyOnce(ctx context.Context, conn *pgxpool.Conn, name, script string) error {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, script); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *pgxpool.Conn) (map[string]bool, error) {
	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func migrationStates(names []string, applied map[string]bool) []MigrationState {
	states := make([]MigrationState, 0, len(names))
	for _, name := range names {
		states = append(states, MigrationState{Name: name, Applied: applied[name]})
	}
	return states
}

// Retryable reports whether err is a transient database failure.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgCodes[pgErr.Code]
		return ok
	}
	return false
}

func backoff(attempt int) time.Duration {
	d := migrationBackoff << (attempt - 2)
	if d > migrationMaxBackoff {
		return migrationMaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PrintStatus writes one "[x] name" or "[ ] name" line per migration.
func PrintStatus(w io.Writer, states []MigrationState) {
	for _, s := range states {
		mark := " "
		if s.Applied {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, s.Name)
	}
}
