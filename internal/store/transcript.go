package store

import (
	"context"
	"fmt"

	"github.com/roach88/cardcheck/internal/status"
)

// Run is one execution of a scenario.
type Run struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Transport string `json:"transport"`
}

// Exchange is one command and its response within a run.
type Exchange struct {
	RunID    string      `json:"run_id"`
	Seq      int64       `json:"seq"`
	Step     int         `json:"step"`
	Command  []byte      `json:"command"`
	Response []byte      `json:"response"`
	SW       status.Word `json:"sw"`
	Cause    string      `json:"cause,omitempty"`
}

// BeginRun records a new run. Starting a run with an existing ID is a no-op.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, transport) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Name, run.Transport)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// WriteExchange appends an exchange to its run. The run must exist.
// Writing the same (run, seq) twice keeps the first.
func (s *Store) WriteExchange(ctx context.Context, ex Exchange) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (run_id, seq, step, command, response, sw, cause)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, ex.RunID, ex.Seq, ex.Step, ex.Command, ex.Response, int(ex.SW), ex.Cause)
	if err != nil {
		return fmt.Errorf("write exchange %s/%d: %w", ex.RunID, ex.Seq, err)
	}
	return nil
}

// ReadTranscript returns the exchanges of a run ordered by sequence number.
// Returns an empty slice for an unknown run.
func (s *Store) ReadTranscript(ctx context.Context, runID string) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, step, command, response, sw, cause
		FROM exchanges
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	exchanges := []Exchange{}
	for rows.Next() {
		var (
			ex Exchange
			sw int
		)
		if err := rows.Scan(&ex.RunID, &ex.Seq, &ex.Step, &ex.Command, &ex.Response, &sw, &ex.Cause); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.SW = status.Word(sw)
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript: %w", err)
	}
	return exchanges, nil
}

// Runs returns all recorded runs ordered by ID. Run IDs are UUIDv7, so this
// is also creation order.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, transport FROM runs ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.Transport); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
