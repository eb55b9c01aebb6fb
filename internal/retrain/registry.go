package retrain

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Event kinds recorded by the scheduler, both here and in the event memory.
const (
	EventRetrainStart     = "retrain_start"
	EventRetrainCompleted = "retrain_completed"
	EventRetrainFailed    = "retrain_failed"
)

// Version identifies one model generation. Seq increases by exactly one per
// completed retrain, never backwards.
type Version struct {
	Seq         int64     `json:"seq"`
	ID          string    `json:"version_id"`
	CreatedAt   time.Time `json:"created_at"`
	Previous    string    `json:"previous,omitempty"`
	SampleCount int       `json:"sample_count"`
	Active      bool      `json:"active"`
}

// Event is one row of the retrain audit trail.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	VersionID string    `json:"version_id,omitempty"`
	Cause     string    `json:"cause,omitempty"`
}

// NextVersion derives the successor of cur after a retrain over samples rows.
func NextVersion(cur Version, samples int, now time.Time) Version {
	seq := cur.Seq + 1
	return Version{
		Seq:         seq,
		ID:          fmt.Sprintf("v%d-%s", seq, now.UTC().Format("20060102150405")),
		CreatedAt:   now.UTC(),
		Previous:    cur.ID,
		SampleCount: samples,
		Active:      true,
	}
}

// VersionRegistry persists the model version lineage in its own SQLite file,
// separate from the event memory so a memory outage cannot lose the model
// pointer.
type VersionRegistry struct {
	db   *sql.DB
	path string
}

func NewVersionRegistry(path string) (*VersionRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("model registry path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureRegistrySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &VersionRegistry{db: db, path: path}, nil
}

func ensureRegistrySchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS model_versions (
			seq INTEGER PRIMARY KEY,
			version_id TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			previous TEXT,
			sample_count INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 0
		);
		`,
		`CREATE TABLE IF NOT EXISTS retrain_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			kind TEXT NOT NULL,
			version_id TEXT,
			cause TEXT
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_retrain_events_ts ON retrain_events(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *VersionRegistry) Close() error {
	return r.db.Close()
}

// Bootstrap returns the active version, inserting a v1 baseline when the
// registry is empty.
func (r *VersionRegistry) Bootstrap(ctx context.Context) (Version, error) {
	cur, err := r.Latest(ctx)
	if err == nil {
		return cur, nil
	}
	if err != sql.ErrNoRows {
		return Version{}, err
	}
	now := time.Now().UTC()
	baseline := Version{
		Seq:       1,
		ID:        fmt.Sprintf("v1-%s", now.Format("20060102150405")),
		CreatedAt: now,
		Active:    true,
	}
	if err := r.Activate(ctx, baseline); err != nil {
		return Version{}, err
	}
	return baseline, nil
}

// Latest returns the active version. sql.ErrNoRows means the registry has
// never been bootstrapped.
func (r *VersionRegistry) Latest(ctx context.Context) (Version, error) {
	row := r.db.QueryRowContext(ctx, `SELECT seq, version_id, created_at, previous, sample_count, is_active
		FROM model_versions WHERE is_active = 1 ORDER BY seq DESC LIMIT 1`)
	return scanVersion(row)
}

// History returns up to limit versions, newest first.
func (r *VersionRegistry) History(ctx context.Context, limit int) ([]Version, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT seq, version_id, created_at, previous, sample_count, is_active
		FROM model_versions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Activate makes v the single active version. Deactivation of the previous
// version and insertion of the new one happen in one transaction.
func (r *VersionRegistry) Activate(ctx context.Context, v Version) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE model_versions SET is_active = 0 WHERE is_active = 1`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO model_versions
		(seq, version_id, created_at, previous, sample_count, is_active)
		VALUES (?, ?, ?, ?, ?, 1)`,
		v.Seq, v.ID, v.CreatedAt.UTC().UnixMilli(), v.Previous, v.SampleCount); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordEvent appends one row to the retrain audit trail.
func (r *VersionRegistry) RecordEvent(ctx context.Context, kind, versionID, cause string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO retrain_events (ts, kind, version_id, cause) VALUES (?, ?, ?, ?)`,
		time.Now().UnixMilli(), kind, versionID, cause)
	return err
}

// Events returns up to limit audit rows, newest first.
func (r *VersionRegistry) Events(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT ts, kind, version_id, cause
		FROM retrain_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			ts        int64
			kind      string
			versionID sql.NullString
			cause     sql.NullString
		)
		if err := rows.Scan(&ts, &kind, &versionID, &cause); err != nil {
			return nil, err
		}
		out = append(out, Event{
			Timestamp: time.UnixMilli(ts).UTC(),
			Kind:      kind,
			VersionID: versionID.String,
			Cause:     cause.String,
		})
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVersion(scanner rowScanner) (Version, error) {
	var (
		v         Version
		createdAt int64
		previous  sql.NullString
		active    int
	)
	if err := scanner.Scan(&v.Seq, &v.ID, &createdAt, &previous, &v.SampleCount, &active); err != nil {
		return v, err
	}
	v.CreatedAt = time.UnixMilli(createdAt).UTC()
	v.Previous = previous.String
	v.Active = active == 1
	return v, nil
}
