package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/virtbench/virtbench/internal/session"
)

// SaveSession stores one recorded session under its instrument alias.
// The session and all its entries commit in a single transaction.
//
// Uses ON CONFLICT DO NOTHING for idempotency: re-archiving a session ID
// that is already stored is a silent no-op, entries included.
func (a *Archive) SaveSession(ctx context.Context, alias string, s session.Session, at time.Time) error {
	if s.ID == "" {
		return fmt.Errorf("save session: session has no id")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save session: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, alias, profile, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, s.ID, alias, s.Profile, storeTime(at))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	for i, e := range s.Log {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entries (session_id, idx, kind, command, response, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, idx) DO NOTHING
		`, s.ID, i, string(e.Kind), e.Command, e.Response, e.Timestamp)
		if err != nil {
			return fmt.Errorf("save session: entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save session: commit: %w", err)
	}
	return nil
}

// DeleteSession removes a session and, via the foreign key cascade, its
// entries. Deleting an unknown ID is a no-op.
func (a *Archive) DeleteSession(ctx context.Context, id string) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
