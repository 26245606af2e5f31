// Package record captures the conversation flowing through a backend as
// a session log.
//
// A Recorder wraps any backend and appends one session entry per
// successful Write, Query, or QueryRaw, stamped with seconds since the
// recorder was created. Failed calls leave no trace: the log records the
// exchange that happened, and a call that errored produced none. Wrap a
// simulation backend to author fixture sessions, or a future hardware
// backend to capture a real instrument for offline replay.
//
// Thread-safety: none beyond the backend contract itself. A backend
// carries one in-flight operation at a time, and the recorder inherits
// that serial discipline.
package record

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/virtbench/virtbench/internal/backend"
	"github.com/virtbench/virtbench/internal/scpi"
	"github.com/virtbench/virtbench/internal/session"
)

// IDGenerator mints session IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so archived
// sessions sort by creation time. This is the production generator;
// tests substitute testutil.FixedIDGenerator.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Recorder wraps a backend and logs its conversation.
type Recorder struct {
	inner   backend.Backend
	now     func() time.Time
	start   time.Time
	id      string
	profile string
	entries []session.Entry
}

var _ backend.Backend = (*Recorder)(nil)

// Option adjusts a recorder at construction.
type Option func(*Recorder)

// WithClock substitutes the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithIDGenerator substitutes the session ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Recorder) { r.id = g.Generate() }
}

// WithProfile records the profile name the wrapped backend simulates.
// Verification uses it to rebuild the matching simulator later.
func WithProfile(name string) Option {
	return func(r *Recorder) { r.profile = name }
}

// New wraps inner in a recorder. The session clock starts immediately:
// entry timestamps are seconds since this call.
func New(inner backend.Backend, opts ...Option) *Recorder {
	r := &Recorder{inner: inner, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.id == "" {
		r.id = UUIDv7Generator{}.Generate()
	}
	r.start = r.now()
	return r
}

// Session returns the conversation recorded so far. The log slice is a
// copy; recording may continue afterwards.
func (r *Recorder) Session() session.Session {
	log := make([]session.Entry, len(r.entries))
	copy(log, r.entries)
	return session.Session{ID: r.id, Profile: r.profile, Log: log}
}

// Export writes the recorded session into a session file under the given
// instrument alias, merging with any sessions already in the file.
func (r *Recorder) Export(path, alias string) error {
	f, err := session.LoadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		f = session.File{}
	}
	f[alias] = r.Session()
	return session.WriteFile(path, f)
}

func (r *Recorder) Connect(ctx context.Context) error    { return r.inner.Connect(ctx) }
func (r *Recorder) Disconnect(ctx context.Context) error { return r.inner.Disconnect(ctx) }
func (r *Recorder) Close() error                         { return r.inner.Close() }

func (r *Recorder) SetTimeout(d time.Duration) { r.inner.SetTimeout(d) }
func (r *Recorder) Timeout() time.Duration     { return r.inner.Timeout() }

func (r *Recorder) Write(ctx context.Context, cmd string) error {
	if err := r.inner.Write(ctx, cmd); err != nil {
		return err
	}
	r.append(session.KindWrite, cmd, "")
	return nil
}

func (r *Recorder) Query(ctx context.Context, cmd string, opts ...backend.CallOption) (string, error) {
	resp, err := r.inner.Query(ctx, cmd, opts...)
	if err != nil {
		return "", err
	}
	r.append(session.KindQuery, cmd, resp)
	return resp, nil
}

func (r *Recorder) QueryRaw(ctx context.Context, cmd string, opts ...backend.CallOption) ([]byte, error) {
	resp, err := r.inner.QueryRaw(ctx, cmd, opts...)
	if err != nil {
		return nil, err
	}
	r.append(session.KindQueryRaw, cmd, string(resp))
	return resp, nil
}

func (r *Recorder) append(kind session.Kind, cmd, resp string) {
	r.entries = append(r.entries, session.Entry{
		Kind:      kind,
		Command:   scpi.Normalize(cmd),
		Response:  resp,
		Timestamp: r.now().Sub(r.start).Seconds(),
	})
}
