package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/virtbench/virtbench/internal/backend"
	"github.com/virtbench/virtbench/internal/scpi"
	"github.com/virtbench/virtbench/internal/session"
)

// Backend replays one recorded session. The zero cursor starts at the
// first entry; the backend never rewinds.
type Backend struct {
	log     *slog.Logger
	entries []session.Entry
	cursor  int
	timeout time.Duration
}

var _ backend.Backend = (*Backend)(nil)

// Option adjusts a replay backend at construction.
type Option func(*Backend)

// WithLogger routes the backend's debug logging.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// New builds a replay backend over a recorded log. The log is used as
// given; callers load session files through Open or the session package.
func New(entries []session.Entry, opts ...Option) *Backend {
	b := &Backend{log: slog.Default(), entries: entries}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open loads a session file and builds a replay backend for one
// instrument alias.
func Open(path, alias string, opts ...Option) (*Backend, error) {
	f, err := session.LoadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := f.Session(alias)
	if err != nil {
		return nil, err
	}
	return New(s.Log, opts...), nil
}

// Remaining reports how many recorded entries have not been consumed.
// Zero means the conversation was replayed in full.
func (b *Backend) Remaining() int {
	return len(b.entries) - b.cursor
}

func (b *Backend) Connect(ctx context.Context) error {
	b.log.Debug("replay connect", "entries", len(b.entries))
	return nil
}

func (b *Backend) Disconnect(ctx context.Context) error {
	b.log.Debug("replay disconnect", "remaining", b.Remaining())
	return nil
}

func (b *Backend) Close() error {
	b.log.Debug("replay close", "remaining", b.Remaining())
	return nil
}

func (b *Backend) Write(ctx context.Context, cmd string) error {
	_, err := b.step(session.KindWrite, cmd)
	return err
}

func (b *Backend) Query(ctx context.Context, cmd string, opts ...backend.CallOption) (string, error) {
	resp, err := b.step(session.KindQuery, cmd)
	if err != nil {
		return "", err
	}
	if err := backend.Wait(ctx, backend.Settings(opts...).Delay); err != nil {
		return "", err
	}
	return resp, nil
}

func (b *Backend) QueryRaw(ctx context.Context, cmd string, opts ...backend.CallOption) ([]byte, error) {
	resp, err := b.step(session.KindQueryRaw, cmd)
	if err != nil {
		return nil, err
	}
	if err := backend.Wait(ctx, backend.Settings(opts...).Delay); err != nil {
		return nil, err
	}
	return []byte(resp), nil
}

func (b *Backend) SetTimeout(d time.Duration) { b.timeout = d }
func (b *Backend) Timeout() time.Duration     { return b.timeout }

// step checks one call against the cursor entry. Only a match advances.
func (b *Backend) step(op session.Kind, cmd string) (string, error) {
	norm := scpi.Normalize(cmd)

	if b.cursor >= len(b.entries) {
		return "", &MismatchError{Index: b.cursor, ActualKind: op, ActualCommand: norm}
	}

	e := b.entries[b.cursor]
	if !kindMatches(op, e.Kind) || scpi.Normalize(e.Command) != norm {
		return "", &MismatchError{
			Index:           b.cursor,
			ExpectedKind:    e.Kind,
			ExpectedCommand: e.Command,
			ActualKind:      op,
			ActualCommand:   norm,
		}
	}

	b.cursor++
	b.log.Debug("replayed entry",
		"index", b.cursor-1,
		"kind", e.Kind,
		"command", e.Command,
		"remaining", b.Remaining(),
	)
	return e.Response, nil
}

// kindMatches pairs call kinds with recorded kinds. The two query kinds
// are interchangeable; writes only match writes.
func kindMatches(op, recorded session.Kind) bool {
	if op == session.KindWrite {
		return recorded == session.KindWrite
	}
	return recorded.IsQuery()
}
