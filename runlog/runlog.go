// Package runlog keeps a sqlite ledger of batch runs and per-listing outcomes.
package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aluiziolira/cardgrade/models"
)

//go:embed schema.sql
var Schema string

// Store records runs in a sqlite database.
type Store struct {
	db *sql.DB

	mu  sync.Mutex
	seq map[string]int
}

// Open opens (or creates) the ledger at path. Use ":memory:" for a throwaway ledger.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "pragma foreign_keys = on"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply run log schema: %w", err)
	}
	return &Store{db: db, seq: make(map[string]int)}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StartRun(ctx context.Context, runID string, started time.Time, total int) error {
	_, err := s.db.ExecContext(ctx,
		"insert into runs (id, started_at, total) values (?, ?, ?)",
		runID, started.UnixMilli(), total,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) RecordOutcome(ctx context.Context, runID string, o models.Outcome) error {
	s.mu.Lock()
	s.seq[runID]++
	seq := s.seq[runID]
	s.mu.Unlock()

	var grade sql.NullInt64
	if o.Record != nil {
		grade = sql.NullInt64{Int64: int64(o.Record.Grade), Valid: true}
	}
	errText := ""
	if o.Err != nil {
		errText = o.Err.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`insert into outcomes (run_id, seq, identifier, state, reason, grade, grade_source, error, duration_ms)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, o.Identifier, string(o.State), o.Reason, grade, o.GradeSource, errText, o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert outcome %s: %w", o.Identifier, err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, r *models.RunResult) error {
	_, err := s.db.ExecContext(ctx,
		`update runs set finished_at = ?, total = ?, accepted = ?, rejected = ?, ocr_fallbacks = ? where id = ?`,
		r.EndTime.UnixMilli(), r.TotalCount, r.AcceptedCount, r.RejectedCount, r.OCRFallbacks, r.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.RunID, err)
	}

	s.mu.Lock()
	delete(s.seq, r.RunID)
	s.mu.Unlock()
	return nil
}

// Run is one row of the runs table.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Total        int
	Accepted     int
	Rejected     int
	OCRFallbacks int
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, started_at, finished_at, total, accepted, rejected, ocr_fallbacks
		from runs order by started_at desc limit ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run      Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Total, &run.Accepted, &run.Rejected, &run.OCRFallbacks); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			run.FinishedAt = time.UnixMilli(finished.Int64)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Accepted returns the identifiers a run accepted, in processing order.
func (s *Store) Accepted(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select identifier from outcomes where run_id = ? and state = ? order by seq`,
		runID, string(models.StateAssembled))
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Diff compares the accepted sets of two runs.
func (s *Store) Diff(ctx context.Context, previous, current string) (gained, lost []string, err error) {
	before, err := s.Accepted(ctx, previous)
	if err != nil {
		return nil, nil, err
	}
	after, err := s.Accepted(ctx, current)
	if err != nil {
		return nil, nil, err
	}

	beforeSet := make(map[string]struct{}, len(before))
	for _, id := range before {
		beforeSet[id] = struct{}{}
	}
	afterSet := make(map[string]struct{}, len(after))
	for _, id := range after {
		afterSet[id] = struct{}{}
		if _, ok := beforeSet[id]; !ok {
			gained = append(gained, id)
		}
	}
	for _, id := range before {
		if _, ok := afterSet[id]; !ok {
			lost = append(lost, id)
		}
	}
	return gained, lost, nil
}
