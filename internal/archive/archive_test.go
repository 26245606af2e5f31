package archive

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtbench/virtbench/internal/session"
)

func openMemory(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func sampleSession(id string) session.Session {
	return session.Session{
		ID:      id,
		Profile: "dmm",
		Log: []session.Entry{
			{Kind: session.KindWrite, Command: ":VOLT 5.0", Timestamp: 0.5},
			{Kind: session.KindQuery, Command: ":VOLT?", Response: "5.0", Timestamp: 1},
			{Kind: session.KindQuery, Command: ":FOO?", Timestamp: 1.5},
		},
	}
}

func TestArchive_SaveAndLoadRoundTrip(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s := sampleSession("s-0001")
	require.NoError(t, a.SaveSession(ctx, "dmm1", s, at))

	meta, got, err := a.LoadSession(ctx, "s-0001")
	require.NoError(t, err)

	assert.Equal(t, "s-0001", meta.ID)
	assert.Equal(t, "dmm1", meta.Alias)
	assert.Equal(t, "dmm", meta.Profile)
	assert.Equal(t, at, meta.CreatedAt)
	assert.Equal(t, 3, meta.Entries)

	assert.Equal(t, s, got)
}

func TestArchive_SaveIsIdempotent(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s := sampleSession("s-0001")
	require.NoError(t, a.SaveSession(ctx, "dmm1", s, at))

	// A second save of the same ID changes nothing, even with a
	// different log.
	altered := s
	altered.Log = []session.Entry{{Kind: session.KindWrite, Command: "*RST"}}
	require.NoError(t, a.SaveSession(ctx, "dmm1", altered, at.Add(time.Hour)))

	meta, got, err := a.LoadSession(ctx, "s-0001")
	require.NoError(t, err)
	assert.Equal(t, at, meta.CreatedAt)
	assert.Equal(t, s, got)
}

func TestArchive_SaveRequiresID(t *testing.T) {
	a := openMemory(t)

	err := a.SaveSession(context.Background(), "dmm1", session.Session{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}

func TestArchive_EmptyLogSession(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()

	s := session.Session{ID: "s-empty", Profile: "psu"}
	require.NoError(t, a.SaveSession(ctx, "psu1", s, time.Now()))

	meta, got, err := a.LoadSession(ctx, "s-empty")
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Entries)
	assert.Equal(t, []session.Entry{}, got.Log)
}

func TestArchive_LoadUnknownSession(t *testing.T) {
	a := openMemory(t)

	_, _, err := a.LoadSession(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestArchive_ListSessionsOrderingAndFilters(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	s1 := sampleSession("s-0001")
	require.NoError(t, a.SaveSession(ctx, "dmm1", s1, t0))

	s2 := sampleSession("s-0002")
	s2.Profile = "psu"
	require.NoError(t, a.SaveSession(ctx, "psu1", s2, t1))

	all, err := a.ListSessions(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s-0001", all[0].ID)
	assert.Equal(t, "s-0002", all[1].ID)
	assert.Equal(t, 3, all[0].Entries)

	byAlias, err := a.ListSessions(ctx, Filter{Alias: "psu1"})
	require.NoError(t, err)
	require.Len(t, byAlias, 1)
	assert.Equal(t, "s-0002", byAlias[0].ID)

	byProfile, err := a.ListSessions(ctx, Filter{Profile: "dmm"})
	require.NoError(t, err)
	require.Len(t, byProfile, 1)
	assert.Equal(t, "s-0001", byProfile[0].ID)

	since, err := a.ListSessions(ctx, Filter{Since: t0.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "s-0002", since[0].ID)

	none, err := a.ListSessions(ctx, Filter{Alias: "scope1"})
	require.NoError(t, err)
	assert.Equal(t, []Meta{}, none)
}

func TestArchive_DeleteSessionCascades(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, a.SaveSession(ctx, "dmm1", sampleSession("s-0001"), at))
	require.NoError(t, a.DeleteSession(ctx, "s-0001"))

	_, _, err := a.LoadSession(ctx, "s-0001")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// Deleting an unknown ID is a no-op.
	require.NoError(t, a.DeleteSession(ctx, "s-0001"))

	// Re-saving the same ID starts clean: stale entries would survive
	// here if the cascade had not removed them.
	fresh := session.Session{
		ID: "s-0001",
		Log: []session.Entry{
			{Kind: session.KindWrite, Command: "*RST"},
		},
	}
	require.NoError(t, a.SaveSession(ctx, "dmm1", fresh, at))

	meta, got, err := a.LoadSession(ctx, "s-0001")
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Entries)
	assert.Equal(t, fresh.Log, got.Log)
}

func TestArchive_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.db")
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.SaveSession(ctx, "dmm1", sampleSession("s-0001"), at))
	require.NoError(t, a.Close())

	// Reopen runs pragmas and migrations again; both are idempotent.
	a, err = Open(path)
	require.NoError(t, err)
	defer a.Close()

	metas, err := a.ListSessions(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "s-0001", metas[0].ID)
}
