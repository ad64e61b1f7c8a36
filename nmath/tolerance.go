package nmath

import (
	"math"

	"github.com/soypat/geometry/md3"
)

// Default resolutions. Linear resolution is expressed as a fraction of
// the model's characteristic length; see [ToleranceContext.Scaled].
const (
	DefaultLinearTolerance  = 1e-6
	DefaultAngularTolerance = 1e-9
)

// ToleranceContext carries the linear and angular resolutions consulted
// by every predicate and intersection routine. It is copied into each
// operation's local scope and is read-only while the operation runs.
type ToleranceContext struct {
	// Linear is the smallest meaningful distance between two points.
	Linear float64
	// Angular is the smallest meaningful angle in radians between two
	// directions.
	Angular float64
}

// DefaultTolerance returns the process default tolerance context.
func DefaultTolerance() ToleranceContext {
	return ToleranceContext{
		Linear:  DefaultLinearTolerance,
		Angular: DefaultAngularTolerance,
	}
}

// Valid reports whether both resolutions are positive and finite.
func (tc ToleranceContext) Valid() bool {
	return tc.Linear > 0 && tc.Angular > 0 &&
		!math.IsInf(tc.Linear, 0) && !math.IsInf(tc.Angular, 0)
}

// Tighten returns the context with each resolution replaced by the
// tighter of the receiver's and the override when the override is
// positive. The resolution rule is min(entity, body, context).
func (tc ToleranceContext) Tighten(linear float64) ToleranceContext {
	if linear > 0 && linear < tc.Linear {
		tc.Linear = linear
	}
	return tc
}

// Scaled returns the context with the linear resolution multiplied by
// the characteristic length, for models far from unit scale.
func (tc ToleranceContext) Scaled(characteristic float64) ToleranceContext {
	if characteristic > 1 {
		tc.Linear *= characteristic
	}
	return tc
}

// SamePoint reports whether a and b coincide within the linear
// resolution.
func (tc ToleranceContext) SamePoint(a, b md3.Vec) bool {
	return md3.Norm(md3.Sub(a, b)) <= tc.Linear
}

// ZeroLength reports whether d is below the linear resolution.
func (tc ToleranceContext) ZeroLength(d float64) bool {
	return math.Abs(d) <= tc.Linear
}

// SameDirection reports whether unit vectors a and b agree within the
// angular resolution.
func (tc ToleranceContext) SameDirection(a, b md3.Vec) bool {
	return md3.Norm(md3.Cross(a, b)) <= tc.Angular && md3.Dot(a, b) > 0
}

// ParallelDirection reports whether unit vectors a and b are parallel
// or antiparallel within the angular resolution.
func (tc ToleranceContext) ParallelDirection(a, b md3.Vec) bool {
	return md3.Norm(md3.Cross(a, b)) <= tc.Angular
}

// PerpendicularDirection reports whether unit vectors a and b are
// perpendicular within the angular resolution.
func (tc ToleranceContext) PerpendicularDirection(a, b md3.Vec) bool {
	return math.Abs(md3.Dot(a, b)) <= tc.Angular
}
