package geom

import (
	"math"

	"github.com/soypat/geometry/md2"
	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/nmath"
)

// SurfaceCurve is one element of a surface-surface intersection: a 3D
// curve plus a sampled parameter-space track on each input surface.
// For analytic pairs Curve is exact (Line or Arc); marching results
// carry a NURBS interpolant of the march polyline.
type SurfaceCurve struct {
	Class IntersectClass
	Curve Curve
	// Ts are curve parameters of the track samples; UVA and UVB are
	// the corresponding parameter-space footprints on each surface.
	Ts  []float64
	UVA []md2.Vec
	UVB []md2.Vec
}

// IntersectSurfaces intersects two surfaces, emitting a finite
// sequence of intersection curves. Analytic pairs of the same family
// are handled in closed form; the general case marches along the
// common tangent with Newton correction.
func IntersectSurfaces(a, b Surface, tc nmath.ToleranceContext) ([]SurfaceCurve, error) {
	switch sa := a.(type) {
	case *Plane:
		switch sb := b.(type) {
		case *Plane:
			return intersectPlanePlane(sa, sb, tc)
		case *Cylinder:
			return intersectPlaneCylinder(sa, sb, tc)
		case *Sphere:
			return intersectPlaneSphere(sa, sb, tc)
		}
	case *Cylinder:
		switch sb := b.(type) {
		case *Plane:
			r, err := intersectPlaneCylinder(sb, sa, tc)
			return swapTracks(r), err
		case *Cylinder:
			if coaxial(sa, sb, tc) {
				return intersectCoaxialCylinders(sa, sb, tc)
			}
		}
	case *Sphere:
		if sb, ok := b.(*Plane); ok {
			r, err := intersectPlaneSphere(sb, sa, tc)
			return swapTracks(r), err
		}
	}
	return marchSurfaces(a, b, tc)
}

func swapTracks(cs []SurfaceCurve) []SurfaceCurve {
	for i := range cs {
		cs[i].UVA, cs[i].UVB = cs[i].UVB, cs[i].UVA
	}
	return cs
}

// track fills the sampled parameter-space footprints of curve c on
// both surfaces over n+1 samples.
func track(c Curve, a, b Surface, n int) SurfaceCurve {
	out := SurfaceCurve{Curve: c}
	r := c.ParamRange()
	for i := 0; i <= n; i++ {
		t := r.Lerp(float64(i) / float64(n))
		p := c.Evaluate(t)
		ua, va, _, _ := a.Project(p)
		ub, vb, _, _ := b.Project(p)
		out.Ts = append(out.Ts, t)
		out.UVA = append(out.UVA, md2.Vec{X: ua, Y: va})
		out.UVB = append(out.UVB, md2.Vec{X: ub, Y: vb})
	}
	return out
}

func intersectPlanePlane(a, b *Plane, tc nmath.ToleranceContext) ([]SurfaceCurve, error) {
	na, nb := a.PlaneNormal(), b.PlaneNormal()
	dir := md3.Cross(na, nb)
	if md3.Norm(dir) < tc.Angular {
		if math.Abs(b.SignedDistance(a.origin)) <= tc.Linear {
			return nil, ErrDegenerate // coincident planes
		}
		return nil, nil // parallel, disjoint
	}
	u, err := nmath.Unit(dir)
	if err != nil {
		return nil, ErrDegenerate
	}
	// A point on both planes: solve in the span of the two normals.
	// p = a.origin + s·na' where na' is the in-b-plane correction.
	h := b.SignedDistance(a.origin)
	corr := md3.Sub(nb, md3.Scale(md3.Dot(nb, na), na))
	c2 := md3.Norm2(corr)
	if c2 < 1e-24 {
		return nil, ErrDegenerate
	}
	p0 := md3.Sub(a.origin, md3.Scale(h/c2, corr))
	line, err := NewLine(p0, u, ParamRange{Start: -planeExtent, End: planeExtent})
	if err != nil {
		return nil, ErrDegenerate
	}
	sc := track(line, a, b, 8)
	sc.Class = Transversal
	return []SurfaceCurve{sc}, nil
}

func intersectPlaneCylinder(p *Plane, c *Cylinder, tc nmath.ToleranceContext) ([]SurfaceCurve, error) {
	n := p.PlaneNormal()
	cosAxis := md3.Dot(n, c.axis)
	if tc.ParallelDirection(n, c.axis) {
		// Plane perpendicular to the axis: a circle about the axis
		// point on the plane.
		center := md3.Sub(c.base, md3.Scale(p.SignedDistance(c.base)/cosAxis, c.axis))
		circle, err := NewCircle(center, c.axis, c.xdir, c.radius)
		if err != nil {
			return nil, ErrDegenerate
		}
		sc := track(circle, p, c, 32)
		sc.Class = Transversal
		return []SurfaceCurve{sc}, nil
	}
	if math.Abs(cosAxis) < tc.Angular {
		// Plane parallel to the axis: zero, one (tangent) or two lines.
		d := p.SignedDistance(c.base)
		if math.Abs(d) > c.radius+tc.Linear {
			return nil, nil
		}
		if math.Abs(math.Abs(d)-c.radius) <= tc.Linear {
			// Tangent line along the ruling.
			p0 := md3.Sub(c.base, md3.Scale(d, n))
			line, err := NewLine(p0, c.axis, c.vrng)
			if err != nil {
				return nil, ErrDegenerate
			}
			sc := track(line, p, c, 8)
			sc.Class = Tangential
			return []SurfaceCurve{sc}, nil
		}
		// Two parallel rulings at offset ±w from the foot point.
		w := math.Sqrt(c.radius*c.radius - d*d)
		foot := md3.Sub(c.base, md3.Scale(d, n))
		lat := md3.Cross(c.axis, n)
		latU, err := nmath.Unit(lat)
		if err != nil {
			return nil, ErrDegenerate
		}
		var out []SurfaceCurve
		for _, s := range [2]float64{w, -w} {
			p0 := md3.Add(foot, md3.Scale(s, latU))
			line, err := NewLine(p0, c.axis, c.vrng)
			if err != nil {
				continue
			}
			sc := track(line, p, c, 8)
			sc.Class = Transversal
			out = append(out, sc)
		}
		return out, nil
	}
	// Oblique: an ellipse. March it for uniformity with the general
	// case; the exact conic adds little downstream.
	return marchSurfaces(p, c, tc)
}

func intersectPlaneSphere(p *Plane, s *Sphere, tc nmath.ToleranceContext) ([]SurfaceCurve, error) {
	d := p.SignedDistance(s.center)
	if math.Abs(d) > s.radius+tc.Linear {
		return nil, nil
	}
	n := p.PlaneNormal()
	center := md3.Sub(s.center, md3.Scale(d, n))
	if math.Abs(math.Abs(d)-s.radius) <= tc.Linear {
		return nil, ErrTangentialOnly
	}
	r := math.Sqrt(s.radius*s.radius - d*d)
	xd, err := nmath.AnyPerpendicular(n)
	if err != nil {
		return nil, ErrDegenerate
	}
	circle, err := NewCircle(center, n, xd, r)
	if err != nil {
		return nil, ErrDegenerate
	}
	sc := track(circle, p, s, 32)
	sc.Class = Transversal
	return []SurfaceCurve{sc}, nil
}

func coaxial(a, b *Cylinder, tc nmath.ToleranceContext) bool {
	if !tc.ParallelDirection(a.axis, b.axis) {
		return false
	}
	off := md3.Sub(b.base, a.base)
	off = md3.Sub(off, md3.Scale(md3.Dot(off, a.axis), a.axis))
	return md3.Norm(off) <= tc.Linear
}

func intersectCoaxialCylinders(a, b *Cylinder, tc nmath.ToleranceContext) ([]SurfaceCurve, error) {
	if nmath.EqualWithin(a.radius, b.radius, tc.Linear) {
		return nil, ErrDegenerate // same surface
	}
	return nil, nil // nested, never meet
}

// marchSurfaces traces intersection curves by stepping along the
// common tangent (cross product of the surface normals) and pulling
// each step back onto both surfaces by alternating projection (see
// relaxToBoth); no Newton correction is applied. Seeds come from a
// coarse grid scan of surface a.
func marchSurfaces(a, b Surface, tc nmath.ToleranceContext) ([]SurfaceCurve, error) {
	seeds := findMarchSeeds(a, b, tc)
	var out []SurfaceCurve
	var visited []md3.Vec
	step := marchStep(a, b)
	for _, seed := range seeds {
		p, ok := relaxToBoth(a, b, seed, tc)
		if !ok {
			continue
		}
		seen := false
		for _, v := range visited {
			if md3.Norm(md3.Sub(v, p)) < 4*step {
				seen = true
				break
			}
		}
		if seen {
			continue
		}
		poly, class, err := marchFrom(a, b, p, step, tc)
		if err != nil {
			if err == ErrTangentialOnly {
				continue
			}
			return nil, err
		}
		if len(poly) < 2 {
			continue
		}
		visited = append(visited, poly...)
		cur, err := InterpolateNURBS(poly)
		if err != nil {
			continue
		}
		sc := track(cur, a, b, len(poly)-1)
		sc.Class = class
		out = append(out, sc)
	}
	if len(out) == 0 && len(seeds) > 0 {
		// Everything relaxed away or went tangent.
		return nil, nil
	}
	return out, nil
}

func marchStep(a, b Surface) float64 {
	da := nmath.BoxDiagonal(a.BoundsOf(a.UVRange()))
	db := nmath.BoxDiagonal(b.BoundsOf(b.UVRange()))
	d := math.Min(da, db)
	if d <= 0 || math.IsInf(d, 0) {
		d = 1
	}
	return d / 128
}

func findMarchSeeds(a, b Surface, tc nmath.ToleranceContext) []md3.Vec {
	ra := a.UVRange()
	bbB := nmath.GrowBox(b.BoundsOf(b.UVRange()), tc.Linear)
	const n = 24
	var seeds []md3.Vec
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			p := a.Evaluate(ra.U.Lerp(float64(i)/n), ra.V.Lerp(float64(j)/n))
			if !nmath.BoxContains(bbB, p) {
				continue
			}
			_, _, _, dist := b.Project(p)
			if dist < nmath.BoxDiagonal(bbB)/float64(n) {
				seeds = append(seeds, p)
			}
		}
	}
	return seeds
}

// relaxToBoth pulls p onto both surfaces by alternating projection.
func relaxToBoth(a, b Surface, p md3.Vec, tc nmath.ToleranceContext) (md3.Vec, bool) {
	for i := 0; i < 64; i++ {
		_, _, fa, _ := a.Project(p)
		_, _, fb, db := b.Project(fa)
		p = md3.Scale(0.5, md3.Add(fa, fb))
		_, _, _, da := a.Project(p)
		if da < tc.Linear/2 && db < tc.Linear/2 {
			return p, true
		}
	}
	return p, false
}

func marchFrom(a, b Surface, start md3.Vec, step float64, tc nmath.ToleranceContext) ([]md3.Vec, IntersectClass, error) {
	class := Transversal
	dir, ok := commonTangent(a, b, start, tc)
	if !ok {
		return nil, Tangential, ErrTangentialOnly
	}
	// March both directions from the seed and join.
	fwd, closed := marchDirection(a, b, start, dir, step, tc)
	if closed {
		return fwd, class, nil
	}
	back, _ := marchDirection(a, b, start, md3.Scale(-1, dir), step, tc)
	// back runs away from start; reverse and prepend.
	poly := make([]md3.Vec, 0, len(fwd)+len(back))
	for i := len(back) - 1; i >= 1; i-- {
		poly = append(poly, back[i])
	}
	poly = append(poly, fwd...)
	return poly, class, nil
}

func commonTangent(a, b Surface, p md3.Vec, tc nmath.ToleranceContext) (md3.Vec, bool) {
	ua, va, _, _ := a.Project(p)
	ub, vb, _, _ := b.Project(p)
	na, erra := a.Normal(ua, va)
	nb, errb := b.Normal(ub, vb)
	if erra != nil || errb != nil {
		return md3.Vec{}, false
	}
	t := md3.Cross(na, nb)
	if md3.Norm(t) < tc.Angular {
		return md3.Vec{}, false // tangential contact, no march direction
	}
	u, err := nmath.Unit(t)
	return u, err == nil
}

func marchDirection(a, b Surface, start, dir md3.Vec, step float64, tc nmath.ToleranceContext) (poly []md3.Vec, closed bool) {
	const maxSteps = 4096
	poly = append(poly, start)
	p := start
	for i := 0; i < maxSteps; i++ {
		next := md3.Add(p, md3.Scale(step, dir))
		corrected, ok := relaxToBoth(a, b, next, tc)
		if !ok {
			return poly, false
		}
		// Stop on domain boundary of either trimmed surface.
		ua, va, _, _ := a.Project(corrected)
		ub, vb, _, _ := b.Project(corrected)
		if !onDomainInterior(a, ua, va, tc) || !onDomainInterior(b, ub, vb, tc) {
			poly = append(poly, corrected)
			return poly, false
		}
		// Closure check against the seed.
		if i > 4 && md3.Norm(md3.Sub(corrected, start)) < step {
			poly = append(poly, start)
			return poly, true
		}
		newDir, ok := commonTangent(a, b, corrected, tc)
		if !ok {
			// Stationary tangent terminates the branch.
			poly = append(poly, corrected)
			return poly, false
		}
		if md3.Dot(newDir, dir) < 0 {
			newDir = md3.Scale(-1, newDir)
		}
		poly = append(poly, corrected)
		p, dir = corrected, newDir
	}
	return poly, false
}

func onDomainInterior(s Surface, u, v float64, tc nmath.ToleranceContext) bool {
	r := s.UVRange()
	const pad = 1e-9
	if !s.PeriodicU() && (u < r.U.Start+pad || u > r.U.End-pad) {
		return false
	}
	if !s.PeriodicV() && (v < r.V.Start+pad || v > r.V.End-pad) {
		return false
	}
	return true
}
