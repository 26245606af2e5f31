package sim

import (
	"errors"
	"fmt"
)

// SimulationError reports a failure inside the simulation itself, almost
// always a profile expression that blew up at the point of use: an
// undefined state key, a type mismatch, a condition that did not produce
// a boolean. It is the engine telling the profile author their rules are
// broken, distinct from the instrument errors a profile deliberately
// queues.
type SimulationError struct {
	// Command is the dispatched command that triggered the evaluation.
	Command string

	// Expr is the source text of the failing expression, empty when the
	// failure was not expression related.
	Expr string

	// Err is the underlying cause.
	Err error
}

func (e *SimulationError) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("simulation: command %q: expression %q: %v", e.Command, e.Expr, e.Err)
	}
	return fmt.Sprintf("simulation: command %q: %v", e.Command, e.Err)
}

func (e *SimulationError) Unwrap() error { return e.Err }

// AsSimulationError extracts a *SimulationError from an error chain.
func AsSimulationError(err error) (*SimulationError, bool) {
	var se *SimulationError
	ok := errors.As(err, &se)
	return se, ok
}
