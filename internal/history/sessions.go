package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveSession stores the executor session for a story, replacing any
// previous one. Upsert keyed on (story, executor) so switching
// executors keeps each tool's own session.
func (s *Store) SaveSession(ctx context.Context, storyID, executorName, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (story_id, executor, session_id)
		VALUES (?, ?, ?)
		ON CONFLICT(story_id, executor) DO UPDATE SET
			session_id = excluded.session_id,
			updated_at = CURRENT_TIMESTAMP
	`, storyID, executorName, sessionID)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Session returns the recorded session id for a story and executor, or
// empty when none was recorded. Absence is not an error; the caller
// just starts a fresh agent session.
func (s *Store) Session(ctx context.Context, storyID, executorName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var sessionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id
		FROM sessions
		WHERE story_id = ? AND executor = ?
	`, storyID, executorName).Scan(&sessionID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying session: %w", err)
	}
	return sessionID, nil
}
