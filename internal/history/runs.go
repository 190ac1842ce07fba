package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one recorded run of the scheduling loop.
type Run struct {
	ID         string
	Identity   string
	Executor   string
	Outcome    string
	Iterations int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is still open
}

// Attempt is one recorded executor dispatch.
type Attempt struct {
	RunID        string
	Iteration    int
	StoryID      string
	Error        string
	Duration     time.Duration
	DispatchedAt time.Time
}

// StartRun inserts a new open run row.
func (s *Store) StartRun(ctx context.Context, runID, identity, executorName string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, identity, executor)
		VALUES (?, ?, ?)
	`, runID, identity, executorName)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FinishRun closes a run row with its outcome.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string, iterations int, runErr error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE runs
		SET outcome = ?, iterations = ?, error = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, outcome, iterations, errText, runID)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RecordAttempt appends one dispatch attempt to a run.
func (s *Store) RecordAttempt(ctx context.Context, runID string, iteration int, storyID string, attemptErr error, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	errText := ""
	if attemptErr != nil {
		errText = attemptErr.Error()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attempts (run_id, iteration, story_id, error, duration_ms)
		VALUES (?, ?, ?, ?, ?)
	`, runID, iteration, storyID, errText, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, executor, outcome, iterations, error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Identity, &r.Executor, &r.Outcome, &r.Iterations, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// AttemptsFor returns a run's attempts in dispatch order.
func (s *Store) AttemptsFor(ctx context.Context, runID string) ([]Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, iteration, story_id, error, duration_ms, dispatched_at
		FROM attempts
		WHERE run_id = ?
		ORDER BY iteration ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		var a Attempt
		var ms int64
		if err := rows.Scan(&a.RunID, &a.Iteration, &a.StoryID, &a.Error, &ms, &a.DispatchedAt); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Duration = time.Duration(ms) * time.Millisecond
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attempts: %w", err)
	}
	return attempts, nil
}

// LastIdentity returns the run identity recorded by the previous run,
// or empty when none was ever recorded.
func (s *Store) LastIdentity(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var identity string
	err := s.db.QueryRowContext(ctx, `
		SELECT identity FROM run_identity WHERE id = 1
	`).Scan(&identity)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying last identity: %w", err)
	}
	return identity, nil
}

// RecordIdentity stores the current run identity for the next startup
// to compare against.
func (s *Store) RecordIdentity(ctx context.Context, identity string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_identity (id, identity)
		VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET
			identity = excluded.identity,
			updated_at = CURRENT_TIMESTAMP
	`, identity)
	if err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
