package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/Benny93/irfacts/internal/facts"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteBackend stores labels and facts as relational rows. Each fact is a
// row of the facts table with its arguments as a JSON array.
type SQLiteBackend struct {
	mu       sync.Mutex
	db       *sql.DB
	readOnly bool
}

// NewSQLiteBackend creates a new SQLite fact store.
func NewSQLiteBackend() *SQLiteBackend {
	return &SQLiteBackend{}
}

// Initialize opens the database at path and runs pending migrations. Use
// ":memory:" for an in-memory database.
func (s *SQLiteBackend) Initialize(path string, readOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dsn := path
	if readOnly && path != ":memory:" {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("pinging sqlite database: %w", err)
	}

	if !readOnly {
		if err := migrate(db); err != nil {
			db.Close()
			return err
		}
	}

	s.db = db
	s.readOnly = readOnly
	return nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close implements FactStore.
func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// GetLabelFor implements facts.Sink.
func (s *SQLiteBackend) GetLabelFor(ctx context.Context, key string) (facts.Label, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return 0, false, errors.New("label allocation in read-only store")
	}

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO labels (key) VALUES (?)`, key)
	if err != nil {
		return 0, false, fmt.Errorf("inserting label: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("inserting label: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM labels WHERE key = ?`, key).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("reading label: %w", err)
	}
	return facts.Label(id), n > 0, nil
}

// Append implements facts.Sink.
func (s *SQLiteBackend) Append(ctx context.Context, fs ...facts.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return errors.New("append to read-only store")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO facts (kind, arity, args, hash) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range fs {
		data, err := json.Marshal(f.Args)
		if err != nil {
			return fmt.Errorf("marshaling fact: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, f.Kind, len(f.Args), string(data), int64(f.Hash())); err != nil {
			return fmt.Errorf("inserting fact: %w", err)
		}
	}
	return tx.Commit()
}

// LookupLabel implements FactStore.
func (s *SQLiteBackend) LookupLabel(ctx context.Context, key string) (facts.Label, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM labels WHERE key = ?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading label: %w", err)
	}
	return facts.Label(id), true, nil
}

// KeyOf implements FactStore.
func (s *SQLiteBackend) KeyOf(ctx context.Context, label facts.Label) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var key string
	err := s.db.QueryRowContext(ctx, `SELECT key FROM labels WHERE id = ?`, int64(label)).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key: %w", err)
	}
	return key, true, nil
}

func (s *SQLiteBackend) queryFacts(ctx context.Context, query string, args ...any) ([]facts.Fact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var out []facts.Fact
	for rows.Next() {
		var f facts.Fact
		var data string
		if err := rows.Scan(&f.Kind, &data); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &f.Args); err != nil {
			return nil, fmt.Errorf("unmarshaling fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Facts implements FactStore.
func (s *SQLiteBackend) Facts(ctx context.Context, kind string) ([]facts.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryFacts(ctx, `SELECT kind, args FROM facts WHERE kind = ? ORDER BY seq`, kind)
}

// AllFacts implements FactStore.
func (s *SQLiteBackend) AllFacts(ctx context.Context) ([]facts.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryFacts(ctx, `SELECT kind, args FROM facts ORDER BY seq`)
}

// Stats implements FactStore.
func (s *SQLiteBackend) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Stats{ByKind: make(map[string]int)}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM labels`).Scan(&st.Labels); err != nil {
		return nil, fmt.Errorf("counting labels: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM facts GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("counting facts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		st.ByKind[kind] = n
		st.Facts += n
	}
	return st, rows.Err()
}

// RecordRun implements FactStore.
func (s *SQLiteBackend) RecordRun(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, started_at, finished_at, files, facts, errors, warnings) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Files, run.Facts, run.Errors, run.Warnings,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Runs implements FactStore.
func (s *SQLiteBackend) Runs(ctx context.Context) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, files, facts, errors, warnings FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Files, &r.Facts, &r.Errors, &r.Warnings); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
