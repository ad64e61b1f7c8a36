package geom

import (
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/nmath"
)

// Line is a finite straight segment represented as a trimmed infinite
// line. The parameter is arc length from Origin along Direction.
type Line struct {
	origin md3.Vec
	dir    md3.Vec // unit
	rng    ParamRange
}

// NewLineSegment returns the line segment from a to b. Fails with
// [ErrInvalidGeometry] when the points coincide.
func NewLineSegment(a, b md3.Vec) (*Line, error) {
	d := md3.Sub(b, a)
	length := md3.Norm(d)
	u, err := nmath.Unit(d)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &Line{origin: a, dir: u, rng: ParamRange{Start: 0, End: length}}, nil
}

// NewLine returns the trimmed line through origin with unit direction
// dir over the given parameter range.
func NewLine(origin, dir md3.Vec, rng ParamRange) (*Line, error) {
	u, err := nmath.Unit(dir)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &Line{origin: origin, dir: u, rng: rng}, nil
}

// Origin returns the line's base point (parameter zero).
func (l *Line) Origin() md3.Vec { return l.origin }

// Direction returns the unit direction.
func (l *Line) Direction() md3.Vec { return l.dir }

func (l *Line) Kind() CurveKind        { return KindLine }
func (l *Line) ParamRange() ParamRange { return l.rng }
func (l *Line) Closed() bool           { return false }

func (l *Line) Evaluate(t float64) md3.Vec {
	return md3.Add(l.origin, md3.Scale(t, l.dir))
}

func (l *Line) Derivative(t float64) md3.Vec       { return l.dir }
func (l *Line) SecondDerivative(t float64) md3.Vec { return md3.Vec{} }

func (l *Line) BoundsOf(sub ParamRange) md3.Box {
	b := nmath.EmptyBox()
	b = nmath.ExtendBox(b, l.Evaluate(sub.Start))
	b = nmath.ExtendBox(b, l.Evaluate(sub.End))
	return b
}

func (l *Line) Project(p md3.Vec) (float64, md3.Vec, float64) {
	t := md3.Dot(md3.Sub(p, l.origin), l.dir)
	t = l.rng.Clamp(t)
	foot := l.Evaluate(t)
	return t, foot, md3.Norm(md3.Sub(p, foot))
}

func (l *Line) Transformed(tf Transform) Curve {
	return &Line{origin: tf.Apply(l.origin), dir: tf.ApplyDir(l.dir), rng: l.rng}
}

// Arc is a circular arc. The parameter is the angle in radians from
// XDir towards YDir about the arc normal; a range spanning 2π is a full
// circle.
type Arc struct {
	center md3.Vec
	xdir   md3.Vec // unit, towards t=0
	ydir   md3.Vec // unit, towards t=π/2
	radius float64
	rng    ParamRange
}

// NewArc returns the arc centered at center with the given radius in
// the plane spanned by xdir and the normal. The parameter range is in
// radians; {0, 2π} yields a full circle.
func NewArc(center, normal, xdir md3.Vec, radius float64, rng ParamRange) (*Arc, error) {
	if radius <= 0 {
		return nil, ErrInvalidGeometry
	}
	n, err := nmath.Unit(normal)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	x, err := nmath.Unit(md3.Sub(xdir, md3.Scale(md3.Dot(xdir, n), n)))
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &Arc{
		center: center,
		xdir:   x,
		ydir:   md3.Cross(n, x),
		radius: radius,
		rng:    rng,
	}, nil
}

// NewCircle returns the full circle of the given radius.
func NewCircle(center, normal, xdir md3.Vec, radius float64) (*Arc, error) {
	return NewArc(center, normal, xdir, radius, ParamRange{Start: 0, End: twoPi})
}

// Center returns the arc center.
func (a *Arc) Center() md3.Vec { return a.center }

// Radius returns the arc radius.
func (a *Arc) Radius() float64 { return a.radius }

// Normal returns the unit arc normal (XDir × YDir).
func (a *Arc) Normal() md3.Vec { return md3.Cross(a.xdir, a.ydir) }

// XDir returns the direction towards the arc's parameter origin.
func (a *Arc) XDir() md3.Vec { return a.xdir }

func (a *Arc) Kind() CurveKind        { return KindArc }
func (a *Arc) ParamRange() ParamRange { return a.rng }

func (a *Arc) Closed() bool {
	return a.rng.Length() >= twoPi-1e-12
}

func (a *Arc) Evaluate(t float64) md3.Vec {
	s, c := math.Sincos(t)
	return md3.Add(a.center, md3.Add(
		md3.Scale(a.radius*c, a.xdir),
		md3.Scale(a.radius*s, a.ydir),
	))
}

func (a *Arc) Derivative(t float64) md3.Vec {
	s, c := math.Sincos(t)
	return md3.Add(md3.Scale(-a.radius*s, a.xdir), md3.Scale(a.radius*c, a.ydir))
}

func (a *Arc) SecondDerivative(t float64) md3.Vec {
	s, c := math.Sincos(t)
	return md3.Add(md3.Scale(-a.radius*c, a.xdir), md3.Scale(-a.radius*s, a.ydir))
}

func (a *Arc) BoundsOf(sub ParamRange) md3.Box {
	b := nmath.EmptyBox()
	b = nmath.ExtendBox(b, a.Evaluate(sub.Start))
	b = nmath.ExtendBox(b, a.Evaluate(sub.End))
	// Axis extrema occur at multiples of π/2 in the arc frame.
	for k := math.Ceil(sub.Start / (math.Pi / 2)); k*(math.Pi/2) <= sub.End; k++ {
		b = nmath.ExtendBox(b, a.Evaluate(k*(math.Pi/2)))
	}
	return b
}

func (a *Arc) Project(p md3.Vec) (float64, md3.Vec, float64) {
	d := md3.Sub(p, a.center)
	x := md3.Dot(d, a.xdir)
	y := md3.Dot(d, a.ydir)
	t := math.Atan2(y, x)
	if t < a.rng.Start {
		t += twoPi
	}
	if !a.rng.Contains(t) {
		// Closest endpoint wins outside the trimmed range.
		p0, p1 := a.Evaluate(a.rng.Start), a.Evaluate(a.rng.End)
		d0, d1 := md3.Norm(md3.Sub(p, p0)), md3.Norm(md3.Sub(p, p1))
		if d0 <= d1 {
			return a.rng.Start, p0, d0
		}
		return a.rng.End, p1, d1
	}
	foot := a.Evaluate(t)
	return t, foot, md3.Norm(md3.Sub(p, foot))
}

func (a *Arc) Transformed(tf Transform) Curve {
	return &Arc{
		center: tf.Apply(a.center),
		xdir:   tf.ApplyDir(a.xdir),
		ydir:   tf.ApplyDir(a.ydir),
		radius: a.radius,
		rng:    a.rng,
	}
}

// EllipseArc is an elliptic arc with semi-major radius along XDir and
// semi-minor radius along YDir. The parameter is the ellipse angle.
type EllipseArc struct {
	center md3.Vec
	xdir   md3.Vec // unit, semi-major
	ydir   md3.Vec // unit, semi-minor
	major  float64
	minor  float64
	rng    ParamRange
}

// NewEllipseArc constructs an elliptic arc. major must be >= minor > 0.
func NewEllipseArc(center, normal, xdir md3.Vec, major, minor float64, rng ParamRange) (*EllipseArc, error) {
	if minor <= 0 || major < minor {
		return nil, ErrInvalidGeometry
	}
	n, err := nmath.Unit(normal)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	x, err := nmath.Unit(md3.Sub(xdir, md3.Scale(md3.Dot(xdir, n), n)))
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &EllipseArc{
		center: center,
		xdir:   x,
		ydir:   md3.Cross(n, x),
		major:  major,
		minor:  minor,
		rng:    rng,
	}, nil
}

// Center returns the ellipse center.
func (e *EllipseArc) Center() md3.Vec { return e.center }

// Radii returns the semi-major and semi-minor radii.
func (e *EllipseArc) Radii() (major, minor float64) { return e.major, e.minor }

// Normal returns the unit ellipse plane normal.
func (e *EllipseArc) Normal() md3.Vec { return md3.Cross(e.xdir, e.ydir) }

// XDir returns the semi-major axis direction.
func (e *EllipseArc) XDir() md3.Vec { return e.xdir }

func (e *EllipseArc) Kind() CurveKind        { return KindEllipseArc }
func (e *EllipseArc) ParamRange() ParamRange { return e.rng }

func (e *EllipseArc) Closed() bool {
	return e.rng.Length() >= twoPi-1e-12
}

func (e *EllipseArc) Evaluate(t float64) md3.Vec {
	s, c := math.Sincos(t)
	return md3.Add(e.center, md3.Add(
		md3.Scale(e.major*c, e.xdir),
		md3.Scale(e.minor*s, e.ydir),
	))
}

func (e *EllipseArc) Derivative(t float64) md3.Vec {
	s, c := math.Sincos(t)
	return md3.Add(md3.Scale(-e.major*s, e.xdir), md3.Scale(e.minor*c, e.ydir))
}

func (e *EllipseArc) SecondDerivative(t float64) md3.Vec {
	s, c := math.Sincos(t)
	return md3.Add(md3.Scale(-e.major*c, e.xdir), md3.Scale(-e.minor*s, e.ydir))
}

func (e *EllipseArc) BoundsOf(sub ParamRange) md3.Box {
	b := nmath.EmptyBox()
	const n = 16
	for i := 0; i <= n; i++ {
		b = nmath.ExtendBox(b, e.Evaluate(sub.Lerp(float64(i)/n)))
	}
	return b
}

// Project uses Newton iteration on the stationarity condition
// (p - e(t))·e'(t) = 0 seeded from the circular angle.
func (e *EllipseArc) Project(p md3.Vec) (float64, md3.Vec, float64) {
	d := md3.Sub(p, e.center)
	t := math.Atan2(md3.Dot(d, e.ydir)/e.minor, md3.Dot(d, e.xdir)/e.major)
	if t < e.rng.Start {
		t += twoPi
	}
	t = e.rng.Clamp(t)
	for i := 0; i < 16; i++ {
		diff := md3.Sub(p, e.Evaluate(t))
		d1 := e.Derivative(t)
		d2 := e.SecondDerivative(t)
		f := md3.Dot(diff, d1)
		fp := md3.Dot(diff, d2) - md3.Dot(d1, d1)
		if math.Abs(fp) < 1e-14 {
			break
		}
		next := e.rng.Clamp(t - f/fp)
		if math.Abs(next-t) < 1e-13 {
			t = next
			break
		}
		t = next
	}
	foot := e.Evaluate(t)
	return t, foot, md3.Norm(md3.Sub(p, foot))
}

func (e *EllipseArc) Transformed(tf Transform) Curve {
	return &EllipseArc{
		center: tf.Apply(e.center),
		xdir:   tf.ApplyDir(e.xdir),
		ydir:   tf.ApplyDir(e.ydir),
		major:  e.major,
		minor:  e.minor,
		rng:    e.rng,
	}
}
