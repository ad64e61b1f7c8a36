// Package geom provides the parametric curves and surfaces of the
// kernel together with projection and intersection algorithms.
//
// Curves and surfaces form closed families with a fixed capability set:
// evaluation, derivatives, sub-range bounds, closest point projection
// and rigid transformation. Intersection routines dispatch on the
// concrete pair, using stable closed forms for analytic pairs and
// subdivision plus Newton refinement otherwise. All geometry values are
// immutable once constructed and may be shared between bodies.
package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/nmath"
)

// Transform aliases the kernel's rigid transform; geometry only ever
// moves rigidly (scaling and shear would break the analytic families).
type Transform = nmath.Rigid

// Failure modes surfaced by intersection and projection routines.
var (
	// ErrDegenerate reports inputs that coincide outside their useful
	// domain, e.g. two identical curves submitted for intersection.
	ErrDegenerate = errors.New("geom: degenerate input")
	// ErrTangentialOnly reports that no transversal intersection
	// exists although the inputs touch. Callers decide whether this
	// is an error.
	ErrTangentialOnly = errors.New("geom: tangential intersection only")
	// ErrNonConvergent reports a Newton refinement that failed to
	// reach tolerance.
	ErrNonConvergent = errors.New("geom: iteration did not converge")
	// ErrInvalidGeometry reports construction parameters out of
	// domain (zero direction, negative radius, bad knot vector).
	ErrInvalidGeometry = errors.New("geom: invalid geometry")
)

// IntersectClass labels an intersection element. Downstream Boolean
// code depends on the distinction.
type IntersectClass int

const (
	// Transversal is a clean crossing.
	Transversal IntersectClass = iota
	// Tangential is a touch without crossing.
	Tangential
	// Coincident is a shared patch or sub-interval.
	Coincident
)

func (c IntersectClass) String() string {
	switch c {
	case Transversal:
		return "transversal"
	case Tangential:
		return "tangential"
	case Coincident:
		return "coincident"
	}
	return fmt.Sprintf("IntersectClass(%d)", int(c))
}

// ParamRange is a curve parameter interval.
type ParamRange struct {
	Start, End float64
}

// Contains reports whether t lies in the range.
func (r ParamRange) Contains(t float64) bool { return t >= r.Start && t <= r.End }

// Length returns End-Start.
func (r ParamRange) Length() float64 { return r.End - r.Start }

// Clamp limits t to the range.
func (r ParamRange) Clamp(t float64) float64 {
	return math.Min(math.Max(t, r.Start), r.End)
}

// Mid returns the range midpoint.
func (r ParamRange) Mid() float64 { return 0.5 * (r.Start + r.End) }

// Lerp maps s in [0,1] onto the range.
func (r ParamRange) Lerp(s float64) float64 { return r.Start + s*r.Length() }

// UVRange is a surface parameter rectangle.
type UVRange struct {
	U, V ParamRange
}

// Contains reports whether (u,v) lies in the rectangle.
func (r UVRange) Contains(u, v float64) bool {
	return r.U.Contains(u) && r.V.Contains(v)
}

// CurveKind tags the closed curve family.
type CurveKind int

const (
	KindLine CurveKind = iota
	KindArc
	KindEllipseArc
	KindNURBSCurve
)

// SurfaceKind tags the closed surface family.
type SurfaceKind int

const (
	KindPlane SurfaceKind = iota
	KindCylinder
	KindSphere
	KindCone
	KindTorus
	KindNURBSSurface
)

// Curve is the fixed capability set every curve family implements.
// The family is closed; new kinds are not added outside this package.
type Curve interface {
	// Kind tags the concrete family for dispatch.
	Kind() CurveKind
	// Evaluate returns the position at parameter t.
	Evaluate(t float64) md3.Vec
	// Derivative returns the first derivative at t.
	Derivative(t float64) md3.Vec
	// SecondDerivative returns the second derivative at t.
	SecondDerivative(t float64) md3.Vec
	// ParamRange returns the trimmed parameter interval.
	ParamRange() ParamRange
	// Closed reports whether start and end points coincide.
	Closed() bool
	// BoundsOf returns a box containing the curve restricted to sub.
	BoundsOf(sub ParamRange) md3.Box
	// Project returns the parameter, foot point and distance of the
	// closest point of the curve to p.
	Project(p md3.Vec) (t float64, foot md3.Vec, dist float64)
	// Transformed returns the curve moved by the rigid transform.
	Transformed(tf Transform) Curve
}

// Surface is the fixed capability set every surface family implements.
type Surface interface {
	// Kind tags the concrete family for dispatch.
	Kind() SurfaceKind
	// Evaluate returns the position at (u,v).
	Evaluate(u, v float64) md3.Vec
	// Partials returns the first partial derivatives at (u,v).
	Partials(u, v float64) (du, dv md3.Vec)
	// Normal returns the unit normal at (u,v). Fails at parametric
	// degeneracies such as a sphere pole.
	Normal(u, v float64) (md3.Vec, error)
	// UVRange returns the canonical parameter domain.
	UVRange() UVRange
	// PeriodicU and PeriodicV flag periodic parameter directions so
	// intersection and trimming wrap correctly.
	PeriodicU() bool
	PeriodicV() bool
	// Project returns the parameters, foot point and distance of the
	// closest point of the surface to p.
	Project(p md3.Vec) (u, v float64, foot md3.Vec, dist float64)
	// BoundsOf returns a box containing the surface restricted to sub.
	BoundsOf(sub UVRange) md3.Box
	// Transformed returns the surface moved by the rigid transform.
	Transformed(tf Transform) Surface
}

// twoPi spelled once; full circles and periodic seams compare against it.
const twoPi = 2 * math.Pi

// wrapAngle reduces t into [0, 2π).
func wrapAngle(t float64) float64 {
	t = math.Mod(t, twoPi)
	if t < 0 {
		t += twoPi
	}
	return t
}
