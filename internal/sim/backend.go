package sim

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/virtbench/virtbench/internal/backend"
	"github.com/virtbench/virtbench/internal/profile"
)

// DefaultIdentity answers *IDN? when neither the profile nor an option
// provides a response.
const DefaultIdentity = "VirtBench,virtual instrument,0,1.0"

// Backend simulates one instrument from a compiled profile. It implements
// the backend contract; see the package documentation for the dispatch
// and suspension model.
//
// A Backend carries no locks. At most one operation may be in flight at a
// time, per the contract's precondition.
type Backend struct {
	log      *slog.Logger
	identity string

	tbl     *table
	state   map[string]any
	initial map[string]any
	queue   errorQueue
	rng     *rand.Rand
	funcs   map[string]any

	timeout time.Duration
}

// Option configures a simulation backend.
type Option func(*Backend)

// WithLogger routes the backend's structured logs.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// WithRandomSeed pins the source behind random(), randint(), uniform(),
// and gauss(). Two backends built from the same profile and seed produce
// identical conversations.
func WithRandomSeed(seed uint64) Option {
	return func(b *Backend) { b.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithIdentity overrides the builtin *IDN? response. A profile that maps
// *IDN? itself wins over both.
func WithIdentity(id string) Option {
	return func(b *Backend) { b.identity = id }
}

// New compiles a profile into a ready backend: dispatch tables built,
// state seeded from initial_state, error queue empty. Compilation
// failures surface as ProfileError.
func New(p *profile.Profile, opts ...Option) (*Backend, error) {
	tbl, err := newTable(p)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		log:      slog.Default(),
		identity: DefaultIdentity,
		tbl:      tbl,
		initial:  profile.Flatten(p.InitialState),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	b.funcs = evalFuncs(b.rng)
	b.state = cloneState(b.initial)
	return b, nil
}

// Connect is a no-op; a simulated instrument is always reachable.
func (b *Backend) Connect(ctx context.Context) error {
	b.log.Debug("sim connect")
	return nil
}

// Disconnect is a no-op.
func (b *Backend) Disconnect(ctx context.Context) error {
	b.log.Debug("sim disconnect")
	return nil
}

// Close is a no-op; the backend holds no external resources.
func (b *Backend) Close() error {
	b.log.Debug("sim close")
	return nil
}

// SetTimeout records the configured I/O timeout. Bookkeeping only: the
// simulator never aborts an operation for exceeding it.
func (b *Backend) SetTimeout(d time.Duration) { b.timeout = d }

// Timeout reports the configured I/O timeout.
func (b *Backend) Timeout() time.Duration { return b.timeout }

// Write dispatches a command, discarding any response text it produces.
func (b *Backend) Write(ctx context.Context, cmd string) error {
	_, err := b.dispatch(ctx, "write", cmd, backend.CallSettings{})
	return err
}

// Query dispatches a command and returns its response.
func (b *Backend) Query(ctx context.Context, cmd string, opts ...backend.CallOption) (string, error) {
	return b.dispatch(ctx, "query", cmd, backend.Settings(opts...))
}

// QueryRaw dispatches like Query and returns the response bytes.
func (b *Backend) QueryRaw(ctx context.Context, cmd string, opts ...backend.CallOption) ([]byte, error) {
	resp, err := b.dispatch(ctx, "query_raw", cmd, backend.Settings(opts...))
	if err != nil {
		return nil, err
	}
	return []byte(resp), nil
}

func cloneState(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
