package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Each connection to :memory: is its own database.
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database and enables WAL mode for file databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path
	if dsn != memoryPath {
		dsn += "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (id, host, port, user, tags, debug, status, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Host,
		run.Port,
		run.User,
		run.Tags,
		run.Debug,
		run.Status,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, host, port, user, tags, debug, status, started_at, completed_at, created_at, updated_at
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Host,
		&run.Port,
		&run.User,
		&run.Tags,
		&run.Debug,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// FinishRun sets the final status of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, id, status string, completedAt time.Time) error {
	query := `
		UPDATE runs
		SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, status, completedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns lists runs newest first with per-status unit counts.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*RunSummary, error) {
	query := `
		SELECT r.id, r.host, r.port, r.user, r.tags, r.debug, r.status, r.started_at, r.completed_at,
		       r.created_at, r.updated_at,
		       COUNT(u.position),
		       COALESCE(SUM(CASE WHEN u.status = 'succeeded' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN u.status IN ('failed', 'unreachable', 'malformed') THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN u.status = 'skipped' THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN unit_results u ON u.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*RunSummary{}
	for rows.Next() {
		run := &RunSummary{}
		err := rows.Scan(
			&run.ID,
			&run.Host,
			&run.Port,
			&run.User,
			&run.Tags,
			&run.Debug,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.CreatedAt,
			&run.UpdatedAt,
			&run.Units,
			&run.Succeeded,
			&run.Failed,
			&run.Skipped,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run and its unit results.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	query := `DELETE FROM runs WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// AppendUnit records one unit result.
func (s *SQLiteStore) AppendUnit(ctx context.Context, unit *UnitRecord) error {
	query := `
		INSERT INTO unit_results (run_id, position, name, status, exit_code, lines, duration_ms, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if unit.RecordedAt.IsZero() {
		unit.RecordedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		unit.RunID,
		unit.Position,
		unit.Name,
		unit.Status,
		unit.ExitCode,
		unit.Lines,
		unit.DurationMs,
		unit.Error,
		unit.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append unit result: %w", err)
	}

	return nil
}

// ListUnitsByRun lists the unit results of a run in queue order.
func (s *SQLiteStore) ListUnitsByRun(ctx context.Context, runID string) ([]*UnitRecord, error) {
	query := `
		SELECT run_id, position, name, status, exit_code, lines, duration_ms, error, recorded_at
		FROM unit_results
		WHERE run_id = ?
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unit results: %w", err)
	}
	defer rows.Close()

	units := []*UnitRecord{}
	for rows.Next() {
		unit := &UnitRecord{}
		err := rows.Scan(
			&unit.RunID,
			&unit.Position,
			&unit.Name,
			&unit.Status,
			&unit.ExitCode,
			&unit.Lines,
			&unit.DurationMs,
			&unit.Error,
			&unit.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit result: %w", err)
		}
		units = append(units, unit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unit results: %w", err)
	}

	return units, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
