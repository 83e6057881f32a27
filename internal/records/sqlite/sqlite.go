package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// register sqlite driver
	_ "modernc.org/sqlite"

	"github.com/TAO-07/no-one-answer/internal/records"
)

// Store implements records.Store backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ records.Store = (*Store)(nil)

// New opens (or creates) a SQLite store at the given path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create records directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS pickup_records (
	id TEXT PRIMARY KEY,
	caller TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('accepted','declined','missed')),
	note TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	call_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pickup_records_call_at ON pickup_records(call_at DESC);
`
	if _, err := s.db.Exec(schema); err != nil {
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

// Create inserts a record under a fresh id.
func (s *Store) Create(ctx context.Context, rec records.Record) (records.Record, error) {
	now := records.Timestamp(s.now())
	rec, err := records.Normalize(rec, now)
	if err != nil {
		return records.Record{}, err
	}
	rec.ID = uuid.New()
	rec.CreatedAt, rec.UpdatedAt = now, now

	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return records.Record{}, fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO pickup_records(id, caller, outcome, note, tags, call_at, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Caller, string(rec.Outcome), rec.Note, string(tags), rec.CallAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return records.Record{}, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

// Get fetches one record.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (records.Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, caller, outcome, note, tags, call_at, created_at, updated_at
FROM pickup_records
WHERE id = ?`, id.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Record{}, records.ErrNotFound
	}
	return rec, err
}

// List returns up to limit records, newest call first.
func (s *Store) List(ctx context.Context, limit int) ([]records.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, caller, outcome, note, tags, call_at, created_at, updated_at
FROM pickup_records
ORDER BY call_at DESC, created_at DESC, id
LIMIT ?`, records.ClampLimit(limit))
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
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return records.Record{}, fmt.Errorf("encode tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE pickup_records
SET caller = ?, outcome = ?, note = ?, tags = ?, call_at = ?, updated_at = ?
WHERE id = ?`,
		rec.Caller, string(rec.Outcome), rec.Note, string(tags), rec.CallAt, now, rec.ID.String(),
	)
	if err != nil {
		return records.Record{}, fmt.Errorf("update record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return records.Record{}, records.ErrNotFound
	}
	return s.Get(ctx, rec.ID)
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pickup_records WHERE id = ?`, id.String())
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
		tags    string
	)
	if err := row.Scan(&id, &rec.Caller, &outcome, &rec.Note, &tags, &rec.CallAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return records.Record{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return records.Record{}, fmt.Errorf("parse record id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.Outcome = records.Outcome(outcome)
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return records.Record{}, fmt.Errorf("decode tags: %w", err)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	rec.CallAt = rec.CallAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}
