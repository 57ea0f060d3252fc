// Package store keeps a history of scoring runs in SQLite: the input, the
// row count, and per metric either the aggregate mean or the reason it was
// omitted.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/datar-psa/mtdetect/table"
)

// timeLayout has fixed-width fractions so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one stored Compute call.
type Run struct {
	ID        string
	Input     string
	Rows      int
	CreatedAt time.Time
	// Metrics lists the computed metrics in computation order
	Metrics []string
	// Means holds the aggregate of every computed metric; NaN when no row
	// was finite
	Means table.AggregateResult
	// Omitted maps an omitted metric to its error message
	Omitted map[string]string
}

// NewRun summarizes a score table.
func NewRun(input string, t *table.ScoreTable) *Run {
	s := t.Summary()
	return &Run{
		Input:   input,
		Rows:    s.Rows,
		Metrics: s.Computed,
		Means:   t.Means(),
		Omitted: s.Omitted,
	}
}

// SQLStore stores runs in a SQLite database.
type SQLStore struct {
	db *sql.DB
}

// Open opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var v int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case v != schemaVersion:
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts run and returns its id. An empty ID gets a new UUID and a
// zero CreatedAt is set to now; both are written back to run.
func (s *SQLStore) SaveRun(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs(id, input, rows, created_at) VALUES(?, ?, ?, ?)",
		run.ID, run.Input, run.Rows, run.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO results(run_id, position, metric, mean, error) VALUES(?, ?, ?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()

	pos := 0
	for _, m := range run.Metrics {
		if _, err := stmt.ExecContext(ctx, run.ID, pos, m, nullMean(run.Means[m]), nil); err != nil {
			return "", fmt.Errorf("insert result %s: %w", m, err)
		}
		pos++
	}
	for _, m := range sortedKeys(run.Omitted) {
		if _, err := stmt.ExecContext(ctx, run.ID, pos, m, nil, run.Omitted[m]); err != nil {
			return "", fmt.Errorf("insert omitted %s: %w", m, err)
		}
		pos++
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID, nil
}

// GetRun returns the run with id, or ErrNotFound.
func (s *SQLStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{ID: id}
	var created string
	err := s.db.QueryRowContext(ctx,
		"SELECT input, rows, created_at FROM runs WHERE id = ?", id,
	).Scan(&run.Input, &run.Rows, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if run.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if err := s.loadResults(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A limit of 0 lists all.
func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := "SELECT id FROM runs ORDER BY created_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// DeleteRun removes a run and its results.
func (s *SQLStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM results WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func (s *SQLStore) loadResults(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT metric, mean, error FROM results WHERE run_id = ? ORDER BY position", run.ID)
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}
	defer rows.Close()

	run.Means = table.AggregateResult{}
	run.Omitted = map[string]string{}
	for rows.Next() {
		var metric string
		var mean sql.NullFloat64
		var msg sql.NullString
		if err := rows.Scan(&metric, &mean, &msg); err != nil {
			return fmt.Errorf("scan result: %w", err)
		}
		if msg.Valid {
			run.Omitted[metric] = msg.String
			continue
		}
		run.Metrics = append(run.Metrics, metric)
		run.Means[metric] = math.NaN()
		if mean.Valid {
			run.Means[metric] = mean.Float64
		}
	}
	return rows.Err()
}

// nullMean stores NaN and infinities as NULL.
func nullMean(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
