// Package backend defines the instrument I/O contract shared by the
// simulation, replay, and recording backends.
//
// A Backend stands in for one instrument session. At most one operation
// may be in flight per instance at any time. This is a documented
// precondition rather than something the implementations enforce with
// locks: a real instrument session is inherently serial, and callers that
// want concurrency open one backend per instrument.
//
// Timeouts are bookkeeping only. SetTimeout records the value a driver
// layer would configure on real hardware, Timeout reports it back, and no
// operation is ever aborted for exceeding it. Cancellation happens through
// the context an operation receives.
package backend

import (
	"context"
	"time"
)

// Backend is the asynchronous I/O surface of a virtual instrument.
//
// Write sends a command that produces no response. Query sends a command
// and returns its response as text; QueryRaw returns the response bytes
// unmodified, for binary-block transfers. Connect and Disconnect frame
// the session; Close releases whatever the implementation holds and makes
// further calls invalid.
type Backend interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	Write(ctx context.Context, cmd string) error
	Query(ctx context.Context, cmd string, opts ...CallOption) (string, error)
	QueryRaw(ctx context.Context, cmd string, opts ...CallOption) ([]byte, error)

	Close() error

	SetTimeout(d time.Duration)
	Timeout() time.Duration
}

// CallSettings collects per-call adjustments. Backends fold options into a
// zero value via Settings and honor the fields they support.
type CallSettings struct {
	// Delay is an extra suspension honored after the call's effects have
	// been applied, immediately before it returns.
	Delay time.Duration
}

// CallOption adjusts a single Query or QueryRaw call.
type CallOption func(*CallSettings)

// WithDelay adds an artificial response delay to one call, on top of any
// delay the backend itself imposes.
func WithDelay(d time.Duration) CallOption {
	return func(s *CallSettings) { s.Delay = d }
}

// Settings folds opts into a CallSettings.
func Settings(opts ...CallOption) CallSettings {
	var s CallSettings
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Wait blocks for d or until ctx is done, whichever comes first. Backends
// use it to serve artificial response delays; d <= 0 returns immediately.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
