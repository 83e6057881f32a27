package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/TAO-07/no-one-answer/internal/records"
)

// Store implements records.Store backed by PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ records.Store = (*Store)(nil)

// Config holds driver and connection pool settings.
type Config struct {
	// Driver is "pgx" (default) or "postgres" for lib/pq.
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns pool defaults sized for a single relayd.
func DefaultConfig() Config {
	return Config{
		Driver:          "pgx",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// New opens a PostgreSQL-backed record store.
func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS pickup_records (
	id UUID PRIMARY KEY,
	caller TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('accepted','declined','missed')),
	note TEXT NOT NULL DEFAULT '',
	tags TEXT[] NOT NULL DEFAULT '{}',
	call_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_pickup_records_call_at ON pickup_records(call_at DESC);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases underlying database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// PingContext checks the database connection.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectColumns = `id, caller, outcome, note, tags, call_at, created_at, updated_at`

// Create inserts a record under a fresh id.
func (s *Store) Create(ctx context.Context, rec records.Record) (records.Record, error) {
	now := records.Timestamp(s.now())
	rec, err := records.Normalize(rec, now)
	if err != nil {
		return records.Record{}, err
	}
	row := s.db.QueryRowContext(ctx, `
INSERT INTO pickup_records(id, caller, outcome, note, tags, call_at, created_at, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING `+selectColumns,
		uuid.New().String(), rec.Caller, string(rec.Outcome), rec.Note, pq.Array(rec.Tags), rec.CallAt, now,
	)
	created, err := scanRecord(row)
	if err != nil {
		return records.Record{}, fmt.Errorf("insert record: %w", err)
	}
	return created, nil
}

// Get fetches one record.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (records.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM pickup_records WHERE id = $1`, id.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Record{}, records.ErrNotFound
	}
	return rec, err
}

// List returns up to limit records, newest call first.
func (s *Store) List(ctx context.Context, limit int) ([]records.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+selectColumns+`
FROM pickup_records
ORDER BY call_at DESC, created_at DESC, id
LIMIT $1`, records.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []records.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update replaces caller, outcome, note, tags and call time.
func (s *Store) Update(ctx context.Context, rec records.Record) (records.Record, error) {
	now := records.Timestamp(s.now())
	rec, err := records.Normalize(rec, now)
	if err != nil {
		return records.Record{}, err
	}
	row := s.db.QueryRowContext(ctx, `
UPDATE pickup_records
SET caller = $1, outcome = $2, note = $3, tags = $4, call_at = $5, updated_at = $6
WHERE id = $7
RETURNING `+selectColumns,
		rec.Caller, string(rec.Outcome), rec.Note, pq.Array(rec.Tags), rec.CallAt, now, rec.ID.String(),
	)
	updated, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Record{}, records.ErrNotFound
	}
	if err != nil {
		return records.Record{}, fmt.Errorf("update record: %w", err)
	}
	return updated, nil
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pickup_records WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return records.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (records.Record, error) {
	var (
		rec     records.Record
		id      string
		outcome string
		tags    []string
	)
	if err := row.Scan(&id, &rec.Caller, &outcome, &rec.Note, pq.Array(&tags), &rec.CallAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return records.Record{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return records.Record{}, fmt.Errorf("parse record id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.Outcome = records.Outcome(outcome)
	rec.Tags = tags
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	rec.CallAt = rec.CallAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}
