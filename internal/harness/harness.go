// Package harness executes scripted instrument conversations against a
// backend and reports a transcript.
//
// A script is a YAML file of ordered steps. The harness sends each step,
// records what came back, and checks it against the step's expectation.
// A failed expectation or a backend error marks the step and the run but
// does not stop it: the transcript shows everything that happened, which
// is what you want when a bench script drifts from its profile. Golden
// transcript comparison keeps known-good runs pinned down.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/virtbench/virtbench/internal/backend"
	"github.com/virtbench/virtbench/internal/profile"
	"github.com/virtbench/virtbench/internal/sim"
)

// StepResult records one executed step.
type StepResult struct {
	Op       string `json:"op"`
	Command  string `json:"command"`
	Response string `json:"response,omitempty"`
	// Error is the backend error, when the call itself failed.
	Error string `json:"error,omitempty"`
	// Failure is the expectation mismatch, when the call succeeded but
	// the response was not the scripted one.
	Failure string `json:"failure,omitempty"`
}

// Result is the transcript of one script run.
type Result struct {
	Script string       `json:"script"`
	Steps  []StepResult `json:"steps"`
}

// Passed reports whether every step succeeded and met its expectation.
func (r *Result) Passed() bool {
	return len(r.Failures()) == 0
}

// Failures returns the step failures and errors, one message per
// affected step, indexed by step position.
func (r *Result) Failures() []string {
	var msgs []string
	for i, s := range r.Steps {
		if s.Error != "" {
			msgs = append(msgs, fmt.Sprintf("step %d: %s %q: %s", i, s.Op, s.Command, s.Error))
		}
		if s.Failure != "" {
			msgs = append(msgs, fmt.Sprintf("step %d: %s %q: %s", i, s.Op, s.Command, s.Failure))
		}
	}
	return msgs
}

// Run executes a script against a backend and collects the transcript.
// The backend is connected before the first step and disconnected after
// the last; steps run in order regardless of earlier failures.
func Run(ctx context.Context, b backend.Backend, s *Script) (*Result, error) {
	if err := validateScript(s); err != nil {
		return nil, err
	}

	if err := b.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer b.Disconnect(ctx)

	result := &Result{Script: s.Name, Steps: make([]StepResult, 0, len(s.Steps))}
	for _, step := range s.Steps {
		sr := runStep(ctx, b, step)
		result.Steps = append(result.Steps, sr)

		if d := time.Duration(step.Delay); d > 0 {
			if err := backend.Wait(ctx, d); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// RunProfile builds a seeded simulator from the script's profile and runs
// the script against it.
func RunProfile(ctx context.Context, l profile.Loader, s *Script) (*Result, error) {
	if s.Profile == "" {
		return nil, fmt.Errorf("script %q names no profile", s.Name)
	}

	p, err := l.Load(s.Profile)
	if err != nil {
		return nil, err
	}

	b, err := sim.New(p,
		sim.WithRandomSeed(s.Seed),
		sim.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	return Run(ctx, b, s)
}

func runStep(ctx context.Context, b backend.Backend, step Step) StepResult {
	sr := StepResult{Op: step.Op, Command: step.Command}

	var resp string
	var err error
	switch step.Op {
	case OpWrite:
		err = b.Write(ctx, step.Command)
	case OpQuery:
		resp, err = b.Query(ctx, step.Command)
	case OpQueryRaw:
		var raw []byte
		raw, err = b.QueryRaw(ctx, step.Command)
		resp = string(raw)
	}
	if err != nil {
		sr.Error = err.Error()
		return sr
	}

	sr.Response = resp
	sr.Failure = checkExpectation(step, resp)
	return sr
}

func checkExpectation(step Step, resp string) string {
	if step.Expect != nil && resp != *step.Expect {
		return fmt.Sprintf("expected %q, got %q", *step.Expect, resp)
	}
	if step.ExpectMatch != "" {
		// Validity was checked at load time.
		re := regexp.MustCompile(step.ExpectMatch)
		if !re.MatchString(resp) {
			return fmt.Sprintf("expected match for %q, got %q", step.ExpectMatch, resp)
		}
	}
	return ""
}
