package geom

import (
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/nmath"
)

// planeExtent is the canonical half-extent of an untrimmed plane's
// parameter domain. Faces trim planes well inside this.
const planeExtent = 1e6

// Plane is an infinite plane trimmed to a canonical square domain.
// u runs along XDir, v along YDir; the normal is XDir × YDir.
type Plane struct {
	origin md3.Vec
	xdir   md3.Vec // unit
	ydir   md3.Vec // unit
}

// NewPlane constructs a plane from an origin and a normal; the in-plane
// axes are chosen deterministically from the normal.
func NewPlane(origin, normal md3.Vec) (*Plane, error) {
	n, err := nmath.Unit(normal)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	x, err := nmath.AnyPerpendicular(n)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &Plane{origin: origin, xdir: x, ydir: md3.Cross(n, x)}, nil
}

// NewPlaneAxes constructs a plane from an origin and two in-plane
// directions. ydir is re-orthogonalized against xdir.
func NewPlaneAxes(origin, xdir, ydir md3.Vec) (*Plane, error) {
	x, err := nmath.Unit(xdir)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	y, err := nmath.Unit(md3.Sub(ydir, md3.Scale(md3.Dot(ydir, x), x)))
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &Plane{origin: origin, xdir: x, ydir: y}, nil
}

// Origin returns the plane origin (u=v=0).
func (p *Plane) Origin() md3.Vec { return p.origin }

// XDir returns the u axis.
func (p *Plane) XDir() md3.Vec { return p.xdir }

// YDir returns the v axis.
func (p *Plane) YDir() md3.Vec { return p.ydir }

// PlaneNormal returns the unit plane normal.
func (p *Plane) PlaneNormal() md3.Vec { return md3.Cross(p.xdir, p.ydir) }

// SignedDistance returns the signed distance of pt above the plane.
func (p *Plane) SignedDistance(pt md3.Vec) float64 {
	return md3.Dot(md3.Sub(pt, p.origin), p.PlaneNormal())
}

func (p *Plane) Kind() SurfaceKind { return KindPlane }
func (p *Plane) PeriodicU() bool   { return false }
func (p *Plane) PeriodicV() bool   { return false }

func (p *Plane) UVRange() UVRange {
	return UVRange{
		U: ParamRange{Start: -planeExtent, End: planeExtent},
		V: ParamRange{Start: -planeExtent, End: planeExtent},
	}
}

func (p *Plane) Evaluate(u, v float64) md3.Vec {
	return md3.Add(p.origin, md3.Add(md3.Scale(u, p.xdir), md3.Scale(v, p.ydir)))
}

func (p *Plane) Partials(u, v float64) (md3.Vec, md3.Vec) {
	return p.xdir, p.ydir
}

func (p *Plane) Normal(u, v float64) (md3.Vec, error) {
	return p.PlaneNormal(), nil
}

func (p *Plane) Project(pt md3.Vec) (float64, float64, md3.Vec, float64) {
	d := md3.Sub(pt, p.origin)
	u := md3.Dot(d, p.xdir)
	v := md3.Dot(d, p.ydir)
	foot := p.Evaluate(u, v)
	return u, v, foot, md3.Norm(md3.Sub(pt, foot))
}

func (p *Plane) BoundsOf(sub UVRange) md3.Box {
	b := nmath.EmptyBox()
	for _, u := range [2]float64{sub.U.Start, sub.U.End} {
		for _, v := range [2]float64{sub.V.Start, sub.V.End} {
			b = nmath.ExtendBox(b, p.Evaluate(u, v))
		}
	}
	return b
}

func (p *Plane) Transformed(tf Transform) Surface {
	return &Plane{
		origin: tf.Apply(p.origin),
		xdir:   tf.ApplyDir(p.xdir),
		ydir:   tf.ApplyDir(p.ydir),
	}
}

// Cylinder is a right circular cylinder. u is the angle about the axis
// (periodic over 2π), v is the distance along the axis from the base.
type Cylinder struct {
	base   md3.Vec
	axis   md3.Vec // unit
	xdir   md3.Vec // unit, u=0
	ydir   md3.Vec
	radius float64
	vrng   ParamRange
}

// NewCylinder constructs a cylinder about the axis through base.
func NewCylinder(base, axis md3.Vec, radius float64, vrng ParamRange) (*Cylinder, error) {
	if radius <= 0 {
		return nil, ErrInvalidGeometry
	}
	a, err := nmath.Unit(axis)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	x, err := nmath.AnyPerpendicular(a)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &Cylinder{
		base: base, axis: a, xdir: x, ydir: md3.Cross(a, x),
		radius: radius, vrng: vrng,
	}, nil
}

// Base returns the axis point at v=0.
func (c *Cylinder) Base() md3.Vec { return c.base }

// Axis returns the unit axis direction.
func (c *Cylinder) Axis() md3.Vec { return c.axis }

// Radius returns the cylinder radius.
func (c *Cylinder) Radius() float64 { return c.radius }

func (c *Cylinder) Kind() SurfaceKind { return KindCylinder }
func (c *Cylinder) PeriodicU() bool   { return true }
func (c *Cylinder) PeriodicV() bool   { return false }

func (c *Cylinder) UVRange() UVRange {
	return UVRange{U: ParamRange{Start: 0, End: twoPi}, V: c.vrng}
}

func (c *Cylinder) Evaluate(u, v float64) md3.Vec {
	s, cs := math.Sincos(u)
	radial := md3.Add(md3.Scale(c.radius*cs, c.xdir), md3.Scale(c.radius*s, c.ydir))
	return md3.Add(c.base, md3.Add(radial, md3.Scale(v, c.axis)))
}

func (c *Cylinder) Partials(u, v float64) (md3.Vec, md3.Vec) {
	s, cs := math.Sincos(u)
	du := md3.Add(md3.Scale(-c.radius*s, c.xdir), md3.Scale(c.radius*cs, c.ydir))
	return du, c.axis
}

func (c *Cylinder) Normal(u, v float64) (md3.Vec, error) {
	s, cs := math.Sincos(u)
	return md3.Add(md3.Scale(cs, c.xdir), md3.Scale(s, c.ydir)), nil
}

func (c *Cylinder) Project(pt md3.Vec) (float64, float64, md3.Vec, float64) {
	d := md3.Sub(pt, c.base)
	v := md3.Dot(d, c.axis)
	radial := md3.Sub(d, md3.Scale(v, c.axis))
	u := wrapAngle(math.Atan2(md3.Dot(radial, c.ydir), md3.Dot(radial, c.xdir)))
	v = c.vrng.Clamp(v)
	foot := c.Evaluate(u, v)
	return u, v, foot, md3.Norm(md3.Sub(pt, foot))
}

func (c *Cylinder) BoundsOf(sub UVRange) md3.Box {
	b := nmath.EmptyBox()
	for _, v := range [2]float64{sub.V.Start, sub.V.End} {
		b = nmath.ExtendBox(b, c.Evaluate(sub.U.Start, v))
		b = nmath.ExtendBox(b, c.Evaluate(sub.U.End, v))
		for k := math.Ceil(sub.U.Start / (math.Pi / 2)); k*(math.Pi/2) <= sub.U.End; k++ {
			b = nmath.ExtendBox(b, c.Evaluate(k*(math.Pi/2), v))
		}
	}
	return b
}

func (c *Cylinder) Transformed(tf Transform) Surface {
	return &Cylinder{
		base: tf.Apply(c.base), axis: tf.ApplyDir(c.axis),
		xdir: tf.ApplyDir(c.xdir), ydir: tf.ApplyDir(c.ydir),
		radius: c.radius, vrng: c.vrng,
	}
}

// Sphere is parameterized by longitude u (periodic over 2π) and
// latitude v in [-π/2, π/2]. The poles at v=±π/2 are parametric
// degeneracies.
type Sphere struct {
	center md3.Vec
	xdir   md3.Vec // unit, equator u=0
	ydir   md3.Vec
	zdir   md3.Vec // unit, north pole
	radius float64
}

// NewSphere constructs a sphere with the north pole along axis.
func NewSphere(center, axis md3.Vec, radius float64) (*Sphere, error) {
	if radius <= 0 {
		return nil, ErrInvalidGeometry
	}
	z, err := nmath.Unit(axis)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	x, err := nmath.AnyPerpendicular(z)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &Sphere{center: center, xdir: x, ydir: md3.Cross(z, x), zdir: z, radius: radius}, nil
}

// Center returns the sphere center.
func (s *Sphere) Center() md3.Vec { return s.center }

// Radius returns the sphere radius.
func (s *Sphere) Radius() float64 { return s.radius }

// Axis returns the pole direction.
func (s *Sphere) Axis() md3.Vec { return s.zdir }

func (s *Sphere) Kind() SurfaceKind { return KindSphere }
func (s *Sphere) PeriodicU() bool   { return true }
func (s *Sphere) PeriodicV() bool   { return false }

func (s *Sphere) UVRange() UVRange {
	return UVRange{
		U: ParamRange{Start: 0, End: twoPi},
		V: ParamRange{Start: -math.Pi / 2, End: math.Pi / 2},
	}
}

func (s *Sphere) Evaluate(u, v float64) md3.Vec {
	su, cu := math.Sincos(u)
	sv, cv := math.Sincos(v)
	dir := md3.Add(
		md3.Add(md3.Scale(cv*cu, s.xdir), md3.Scale(cv*su, s.ydir)),
		md3.Scale(sv, s.zdir),
	)
	return md3.Add(s.center, md3.Scale(s.radius, dir))
}

func (s *Sphere) Partials(u, v float64) (md3.Vec, md3.Vec) {
	su, cu := math.Sincos(u)
	sv, cv := math.Sincos(v)
	du := md3.Add(md3.Scale(-s.radius*cv*su, s.xdir), md3.Scale(s.radius*cv*cu, s.ydir))
	dv := md3.Add(
		md3.Add(md3.Scale(-s.radius*sv*cu, s.xdir), md3.Scale(-s.radius*sv*su, s.ydir)),
		md3.Scale(s.radius*cv, s.zdir),
	)
	return du, dv
}

func (s *Sphere) Normal(u, v float64) (md3.Vec, error) {
	su, cu := math.Sincos(u)
	sv, cv := math.Sincos(v)
	return md3.Add(
		md3.Add(md3.Scale(cv*cu, s.xdir), md3.Scale(cv*su, s.ydir)),
		md3.Scale(sv, s.zdir),
	), nil
}

func (s *Sphere) Project(pt md3.Vec) (float64, float64, md3.Vec, float64) {
	d := md3.Sub(pt, s.center)
	n := md3.Norm(d)
	if n < 1e-14 {
		// Center projects to an arbitrary point; pick u=v=0.
		foot := s.Evaluate(0, 0)
		return 0, 0, foot, s.radius
	}
	x := md3.Dot(d, s.xdir)
	y := md3.Dot(d, s.ydir)
	z := md3.Dot(d, s.zdir)
	u := wrapAngle(math.Atan2(y, x))
	v := math.Asin(nmath.Clamp(z/n, -1, 1))
	foot := s.Evaluate(u, v)
	return u, v, foot, math.Abs(n - s.radius)
}

func (s *Sphere) BoundsOf(sub UVRange) md3.Box {
	full := s.UVRange()
	if sub.U.Length() >= full.U.Length()-1e-12 && sub.V.Length() >= full.V.Length()-1e-12 {
		r := md3.Vec{X: s.radius, Y: s.radius, Z: s.radius}
		return md3.Box{Min: md3.Sub(s.center, r), Max: md3.Add(s.center, r)}
	}
	b := nmath.EmptyBox()
	const n = 8
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			b = nmath.ExtendBox(b, s.Evaluate(sub.U.Lerp(float64(i)/n), sub.V.Lerp(float64(j)/n)))
		}
	}
	return nmath.GrowBox(b, s.radius*0.05)
}

func (s *Sphere) Transformed(tf Transform) Surface {
	return &Sphere{
		center: tf.Apply(s.center),
		xdir:   tf.ApplyDir(s.xdir), ydir: tf.ApplyDir(s.ydir), zdir: tf.ApplyDir(s.zdir),
		radius: s.radius,
	}
}

// Cone is a right circular cone frustum. u is the angle about the axis
// (periodic), v the distance along the axis from the base circle; the
// radius varies linearly as radius + v·tan(semiAngle).
type Cone struct {
	base      md3.Vec
	axis      md3.Vec // unit
	xdir      md3.Vec
	ydir      md3.Vec
	radius    float64 // radius at v=0
	semiAngle float64 // radians, nonzero
	vrng      ParamRange
}

// NewCone constructs a cone frustum. The apex, where the linear radius
// reaches zero, is a parametric degeneracy and should lie outside vrng
// unless the face needs it.
func NewCone(base, axis md3.Vec, radius, semiAngle float64, vrng ParamRange) (*Cone, error) {
	if radius < 0 || math.Abs(semiAngle) >= math.Pi/2 || semiAngle == 0 {
		return nil, ErrInvalidGeometry
	}
	a, err := nmath.Unit(axis)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	x, err := nmath.AnyPerpendicular(a)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &Cone{
		base: base, axis: a, xdir: x, ydir: md3.Cross(a, x),
		radius: radius, semiAngle: semiAngle, vrng: vrng,
	}, nil
}

// Base returns the axis point at v=0.
func (c *Cone) Base() md3.Vec { return c.base }

// Axis returns the unit axis.
func (c *Cone) Axis() md3.Vec { return c.axis }

// SemiAngle returns the cone half-angle in radians.
func (c *Cone) SemiAngle() float64 { return c.semiAngle }

// RadiusAt returns the cone radius at axial parameter v.
func (c *Cone) RadiusAt(v float64) float64 {
	return c.radius + v*math.Tan(c.semiAngle)
}

func (c *Cone) Kind() SurfaceKind { return KindCone }
func (c *Cone) PeriodicU() bool   { return true }
func (c *Cone) PeriodicV() bool   { return false }

func (c *Cone) UVRange() UVRange {
	return UVRange{U: ParamRange{Start: 0, End: twoPi}, V: c.vrng}
}

func (c *Cone) Evaluate(u, v float64) md3.Vec {
	s, cs := math.Sincos(u)
	r := c.RadiusAt(v)
	radial := md3.Add(md3.Scale(r*cs, c.xdir), md3.Scale(r*s, c.ydir))
	return md3.Add(c.base, md3.Add(radial, md3.Scale(v, c.axis)))
}

func (c *Cone) Partials(u, v float64) (md3.Vec, md3.Vec) {
	s, cs := math.Sincos(u)
	r := c.RadiusAt(v)
	tan := math.Tan(c.semiAngle)
	du := md3.Add(md3.Scale(-r*s, c.xdir), md3.Scale(r*cs, c.ydir))
	dv := md3.Add(c.axis, md3.Add(md3.Scale(tan*cs, c.xdir), md3.Scale(tan*s, c.ydir)))
	return du, dv
}

func (c *Cone) Normal(u, v float64) (md3.Vec, error) {
	if math.Abs(c.RadiusAt(v)) < 1e-14 {
		return md3.Vec{}, ErrDegenerate // apex
	}
	du, dv := c.Partials(u, v)
	return nmath.Unit(md3.Cross(du, dv))
}

func (c *Cone) Project(pt md3.Vec) (float64, float64, md3.Vec, float64) {
	d := md3.Sub(pt, c.base)
	vaxis := md3.Dot(d, c.axis)
	radial := md3.Sub(d, md3.Scale(vaxis, c.axis))
	u := wrapAngle(math.Atan2(md3.Dot(radial, c.ydir), md3.Dot(radial, c.xdir)))
	// Project onto the slant line in the (axis, radial) half-plane.
	rho := md3.Norm(radial)
	tan := math.Tan(c.semiAngle)
	// Minimize over v: |(rho - r(v))| with slant metric.
	v := (vaxis + tan*(rho-c.radius)) / (1 + tan*tan)
	v = c.vrng.Clamp(v)
	foot := c.Evaluate(u, v)
	return u, v, foot, md3.Norm(md3.Sub(pt, foot))
}

func (c *Cone) BoundsOf(sub UVRange) md3.Box {
	b := nmath.EmptyBox()
	for _, v := range [2]float64{sub.V.Start, sub.V.End} {
		b = nmath.ExtendBox(b, c.Evaluate(sub.U.Start, v))
		b = nmath.ExtendBox(b, c.Evaluate(sub.U.End, v))
		for k := math.Ceil(sub.U.Start / (math.Pi / 2)); k*(math.Pi/2) <= sub.U.End; k++ {
			b = nmath.ExtendBox(b, c.Evaluate(k*(math.Pi/2), v))
		}
	}
	return b
}

func (c *Cone) Transformed(tf Transform) Surface {
	return &Cone{
		base: tf.Apply(c.base), axis: tf.ApplyDir(c.axis),
		xdir: tf.ApplyDir(c.xdir), ydir: tf.ApplyDir(c.ydir),
		radius: c.radius, semiAngle: c.semiAngle, vrng: c.vrng,
	}
}

// Torus has major radius R about the axis and minor (tube) radius r.
// u is the angle about the main axis, v the angle around the tube;
// both directions are periodic.
type Torus struct {
	center md3.Vec
	axis   md3.Vec // unit
	xdir   md3.Vec
	ydir   md3.Vec
	major  float64
	minor  float64
}

// NewTorus constructs a torus. Requires 0 < minor < major for a
// non-self-intersecting surface.
func NewTorus(center, axis md3.Vec, major, minor float64) (*Torus, error) {
	if minor <= 0 || major <= minor {
		return nil, ErrInvalidGeometry
	}
	a, err := nmath.Unit(axis)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	x, err := nmath.AnyPerpendicular(a)
	if err != nil {
		return nil, ErrInvalidGeometry
	}
	return &Torus{center: center, axis: a, xdir: x, ydir: md3.Cross(a, x), major: major, minor: minor}, nil
}

// Center returns the torus center.
func (t *Torus) Center() md3.Vec { return t.center }

// Axis returns the unit main axis.
func (t *Torus) Axis() md3.Vec { return t.axis }

// Radii returns the major and minor radii.
func (t *Torus) Radii() (major, minor float64) { return t.major, t.minor }

func (t *Torus) Kind() SurfaceKind { return KindTorus }
func (t *Torus) PeriodicU() bool   { return true }
func (t *Torus) PeriodicV() bool   { return true }

func (t *Torus) UVRange() UVRange {
	return UVRange{
		U: ParamRange{Start: 0, End: twoPi},
		V: ParamRange{Start: 0, End: twoPi},
	}
}

func (t *Torus) Evaluate(u, v float64) md3.Vec {
	su, cu := math.Sincos(u)
	sv, cv := math.Sincos(v)
	ring := t.major + t.minor*cv
	return md3.Add(t.center, md3.Add(
		md3.Add(md3.Scale(ring*cu, t.xdir), md3.Scale(ring*su, t.ydir)),
		md3.Scale(t.minor*sv, t.axis),
	))
}

func (t *Torus) Partials(u, v float64) (md3.Vec, md3.Vec) {
	su, cu := math.Sincos(u)
	sv, cv := math.Sincos(v)
	ring := t.major + t.minor*cv
	du := md3.Add(md3.Scale(-ring*su, t.xdir), md3.Scale(ring*cu, t.ydir))
	dv := md3.Add(
		md3.Add(md3.Scale(-t.minor*sv*cu, t.xdir), md3.Scale(-t.minor*sv*su, t.ydir)),
		md3.Scale(t.minor*cv, t.axis),
	)
	return du, dv
}

func (t *Torus) Normal(u, v float64) (md3.Vec, error) {
	su, cu := math.Sincos(u)
	sv, cv := math.Sincos(v)
	return md3.Add(
		md3.Add(md3.Scale(cv*cu, t.xdir), md3.Scale(cv*su, t.ydir)),
		md3.Scale(sv, t.axis),
	), nil
}

func (t *Torus) Project(pt md3.Vec) (float64, float64, md3.Vec, float64) {
	d := md3.Sub(pt, t.center)
	z := md3.Dot(d, t.axis)
	radial := md3.Sub(d, md3.Scale(z, t.axis))
	u := wrapAngle(math.Atan2(md3.Dot(radial, t.ydir), md3.Dot(radial, t.xdir)))
	rho := md3.Norm(radial)
	v := wrapAngle(math.Atan2(z, rho-t.major))
	foot := t.Evaluate(u, v)
	return u, v, foot, md3.Norm(md3.Sub(pt, foot))
}

func (t *Torus) BoundsOf(sub UVRange) md3.Box {
	full := t.UVRange()
	if sub.U.Length() >= full.U.Length()-1e-12 && sub.V.Length() >= full.V.Length()-1e-12 {
		r := t.major + t.minor
		ext := md3.Vec{X: r, Y: r, Z: r}
		return md3.Box{Min: md3.Sub(t.center, ext), Max: md3.Add(t.center, ext)}
	}
	b := nmath.EmptyBox()
	const n = 8
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			b = nmath.ExtendBox(b, t.Evaluate(sub.U.Lerp(float64(i)/n), sub.V.Lerp(float64(j)/n)))
		}
	}
	return nmath.GrowBox(b, t.minor*0.05)
}

func (t *Torus) Transformed(tf Transform) Surface {
	return &Torus{
		center: tf.Apply(t.center), axis: tf.ApplyDir(t.axis),
		xdir: tf.ApplyDir(t.xdir), ydir: tf.ApplyDir(t.ydir),
		major: t.major, minor: t.minor,
	}
}
