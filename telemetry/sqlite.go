package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists runs and episode results in a SQLite file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			mode TEXT NOT NULL,
			episodes INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS episodes (
			run_id TEXT NOT NULL REFERENCES runs(id),
			episode INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			age TEXT NOT NULL,
			morphology TEXT NOT NULL,
			ep_return REAL NOT NULL,
			ticks INTEGER NOT NULL,
			max_x REAL NOT NULL,
			final_x REAL NOT NULL,
			reason TEXT NOT NULL,
			success INTEGER NOT NULL,
			PRIMARY KEY (run_id, episode, agent_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, seed, mode, episodes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			episodes = excluded.episodes
	`, run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Seed, run.Mode, run.Episodes)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT id, started_at, seed, mode, episodes FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

func (s *SQLiteStore) Runs(ctx context.Context) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, started_at, seed, mode, episodes FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (Run, error) {
	var run Run
	var started string
	if err := r.Scan(&run.ID, &started, &run.Seed, &run.Mode, &run.Episodes); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("parsing run start time: %w", err)
	}
	run.StartedAt = t
	return run, nil
}

func (s *SQLiteStore) SaveEpisode(ctx context.Context, records []EpisodeRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO episodes (run_id, episode, agent_id, name, age, morphology, ep_return, ticks, max_x, final_x, reason, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, episode, agent_id) DO UPDATE SET
			ep_return = excluded.ep_return,
			ticks = excluded.ticks,
			max_x = excluded.max_x,
			final_x = excluded.final_x,
			reason = excluded.reason,
			success = excluded.success
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.RunID, r.Episode, int64(r.AgentID), r.Name, r.Age, r.Morphology,
			r.Return, r.Ticks, r.MaxX, r.FinalX, r.Reason, r.Success,
		); err != nil {
			return fmt.Errorf("saving episode %d agent %d: %w", r.Episode, r.AgentID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Episodes(ctx context.Context, runID string) ([]EpisodeRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, episode, agent_id, name, age, morphology, ep_return, ticks, max_x, final_x, reason, success
		FROM episodes WHERE run_id = ? ORDER BY episode, agent_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EpisodeRecord
	for rows.Next() {
		var r EpisodeRecord
		var agentID int64
		if err := rows.Scan(&r.RunID, &r.Episode, &agentID, &r.Name, &r.Age, &r.Morphology,
			&r.Return, &r.Ticks, &r.MaxX, &r.FinalX, &r.Reason, &r.Success); err != nil {
			return nil, err
		}
		r.AgentID = uint64(agentID)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
