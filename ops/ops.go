// Package ops implements the modeling operations of the kernel:
// regularized Booleans, feature construction (extrude, revolve, sweep,
// loft), fillet and chamfer, shelling and draft. Every operation
// builds its result in a side body, runs the topology self-test and
// only then returns; inputs are never mutated, and failures leave them
// untouched.
package ops

import (
	"context"
	"errors"
	"fmt"

	"github.com/novacad/nova/nmath"
)

// Operation failure kinds. Lower-level geometry and topology errors
// are translated into these before crossing the package boundary.
var (
	// ErrParameter reports a numeric argument out of domain.
	ErrParameter = errors.New("ops: invalid parameter")
	// ErrUnsupported reports an input combination outside the
	// implemented subset, e.g. open shells in a Boolean.
	ErrUnsupported = errors.New("ops: unsupported geometry")
	// ErrGeometry reports a numerical procedure that failed to meet
	// tolerance.
	ErrGeometry = errors.New("ops: geometry error")
	// ErrTopology reports a post-condition self-test failure; the
	// operation was rolled back.
	ErrTopology = errors.New("ops: topology error")
	// ErrTolerance reports an operation that would produce features
	// finer than the current resolution.
	ErrTolerance = errors.New("ops: tolerance exhausted")
	// ErrCancelled reports cooperative cancellation.
	ErrCancelled = errors.New("ops: cancelled")
)

// Options carries the per-operation scope: the tolerance context and
// an optional cancellation context polled at coarse phase boundaries.
type Options struct {
	Tol nmath.ToleranceContext
	Ctx context.Context
}

// DefaultOptions returns options with the process default tolerances
// and no cancellation.
func DefaultOptions() Options {
	return Options{Tol: nmath.DefaultTolerance()}
}

// cancelled reports whether the options' context has been cancelled.
func (o Options) cancelled() error {
	if o.Ctx == nil {
		return nil
	}
	select {
	case <-o.Ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, o.Ctx.Err())
	default:
		return nil
	}
}
