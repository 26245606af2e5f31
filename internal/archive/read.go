package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/virtbench/virtbench/internal/session"
)

// Meta describes an archived session without its log.
type Meta struct {
	ID        string    `json:"id"`
	Alias     string    `json:"alias"`
	Profile   string    `json:"profile,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Entries   int       `json:"entries"`
}

// Filter narrows ListSessions. Zero fields do not constrain.
type Filter struct {
	Alias   string
	Profile string
	// Since keeps sessions created at or after the given time.
	Since time.Time
}

// where builds the parameterized WHERE fragment for the filter. Clauses
// are emitted in fixed field order so the same filter always generates
// the same SQL.
func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any

	if f.Alias != "" {
		clauses = append(clauses, "s.alias = ?")
		args = append(args, f.Alias)
	}
	if f.Profile != "" {
		clauses = append(clauses, "s.profile = ?")
		args = append(args, f.Profile)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "s.created_at >= ?")
		args = append(args, storeTime(f.Since))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListSessions returns metadata for archived sessions matching the
// filter. Results are ordered deterministically: created_at ASC, then
// id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (a *Archive) ListSessions(ctx context.Context, f Filter) ([]Meta, error) {
	whereSQL, args := f.where()
	rows, err := a.db.QueryContext(ctx, `
		SELECT s.id, s.alias, s.profile, s.created_at, COUNT(e.idx)
		FROM sessions s
		LEFT JOIN entries e ON e.session_id = s.id
	`+whereSQL+`
		GROUP BY s.id
		ORDER BY s.created_at ASC, s.id COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	metas := []Meta{}
	for rows.Next() {
		var m Meta
		var created string
		if err := rows.Scan(&m.ID, &m.Alias, &m.Profile, &created, &m.Entries); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return metas, nil
}

// LoadSession retrieves one archived session with its full log, entries
// ordered by idx.
func (a *Archive) LoadSession(ctx context.Context, id string) (Meta, session.Session, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT s.id, s.alias, s.profile, s.created_at, COUNT(e.idx)
		FROM sessions s
		LEFT JOIN entries e ON e.session_id = s.id
		WHERE s.id = ?
		GROUP BY s.id
	`, id)

	var m Meta
	var created string
	if err := row.Scan(&m.ID, &m.Alias, &m.Profile, &created, &m.Entries); err != nil {
		return Meta{}, session.Session{}, fmt.Errorf("load session %q: %w", id, err)
	}
	var err error
	if m.CreatedAt, err = parseTime(created); err != nil {
		return Meta{}, session.Session{}, err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT kind, command, response, timestamp
		FROM entries
		WHERE session_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return Meta{}, session.Session{}, fmt.Errorf("load session %q: entries: %w", id, err)
	}
	defer rows.Close()

	log := []session.Entry{}
	for rows.Next() {
		var e session.Entry
		var kind string
		if err := rows.Scan(&kind, &e.Command, &e.Response, &e.Timestamp); err != nil {
			return Meta{}, session.Session{}, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = session.Kind(kind)
		log = append(log, e)
	}
	if err := rows.Err(); err != nil {
		return Meta{}, session.Session{}, fmt.Errorf("iterate entries: %w", err)
	}

	return m, session.Session{ID: m.ID, Profile: m.Profile, Log: log}, nil
}
