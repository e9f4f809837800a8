package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements RunStore backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the run-history database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		handler TEXT NOT NULL,
		model_path TEXT,
		data_dir TEXT,
		metrics TEXT,
		success INTEGER NOT NULL,
		error TEXT,
		duration REAL NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
	CREATE INDEX IF NOT EXISTS idx_runs_handler ON runs(handler);
	`
	_, err := s.db.Exec(query)
	return err
}

// Record implements RunStore.Record. A missing ID or timestamp is
// filled in.
func (s *SQLiteStore) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().Unix()
	}

	metricsJSON, _ := json.Marshal(run.Metrics)

	query := `
		INSERT INTO runs (id, kind, handler, model_path, data_dir, metrics, success, error, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Kind), run.Handler, run.ModelPath, run.DataDir,
		string(metricsJSON), run.Success, run.Error, run.Duration, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get implements RunStore.Get.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	query := `SELECT id, kind, handler, model_path, data_dir, metrics, success, error, duration, created_at FROM runs WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// List implements RunStore.List, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter RunFilter) ([]Run, int, error) {
	whereClause := "1=1"
	args := []interface{}{}

	if filter.Kind != "" {
		whereClause += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if filter.Handler != "" {
		whereClause += " AND handler = ?"
		args = append(args, filter.Handler)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM runs WHERE %s", whereClause)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, kind, handler, model_path, data_dir, metrics, success, error, duration, created_at
		FROM runs
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, whereClause)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, total, nil
}

// Delete implements RunStore.Delete.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	run := &Run{}
	var kindStr, metricsStr string

	err := scan(
		&run.ID, &kindStr, &run.Handler, &run.ModelPath, &run.DataDir,
		&metricsStr, &run.Success, &run.Error, &run.Duration, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Kind = RunKind(kindStr)
	if metricsStr != "" && metricsStr != "null" {
		if err := json.Unmarshal([]byte(metricsStr), &run.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics for run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

var _ RunStore = (*SQLiteStore)(nil)
