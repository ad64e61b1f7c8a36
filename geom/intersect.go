package geom

import (
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/nmath"
)

// CurvePoint is a point element of a curve-curve intersection: the
// parameters on both curves and the 3D point.
type CurvePoint struct {
	Class  IntersectClass
	TA, TB float64
	P      md3.Vec
}

// CurveOverlap is a coincident sub-interval of two curves.
type CurveOverlap struct {
	RangeA, RangeB ParamRange
}

// CCResult collects the finite sequence of elements produced by a
// curve-curve intersection.
type CCResult struct {
	Points   []CurvePoint
	Overlaps []CurveOverlap
}

// IsEmpty reports no intersection at all.
func (r CCResult) IsEmpty() bool { return len(r.Points) == 0 && len(r.Overlaps) == 0 }

// IntersectCurves intersects two curves. Analytic closed forms are
// used for line/line, line/arc and arc/arc including the parallel and
// coincident special cases; NURBS and elliptic inputs go through
// bounding-box subdivision with Newton refinement.
func IntersectCurves(a, b Curve, tc nmath.ToleranceContext) (CCResult, error) {
	switch ca := a.(type) {
	case *Line:
		switch cb := b.(type) {
		case *Line:
			return intersectLineLine(ca, cb, tc)
		case *Arc:
			return intersectLineArc(ca, cb, tc)
		}
	case *Arc:
		switch cb := b.(type) {
		case *Line:
			r, err := intersectLineArc(cb, ca, tc)
			return r.swapped(), err
		case *Arc:
			return intersectArcArc(ca, cb, tc)
		}
	}
	return intersectCurvesSubdivide(a, b, tc)
}

func (r CCResult) swapped() CCResult {
	out := CCResult{
		Points:   make([]CurvePoint, len(r.Points)),
		Overlaps: make([]CurveOverlap, len(r.Overlaps)),
	}
	for i, p := range r.Points {
		out.Points[i] = CurvePoint{Class: p.Class, TA: p.TB, TB: p.TA, P: p.P}
	}
	for i, o := range r.Overlaps {
		out.Overlaps[i] = CurveOverlap{RangeA: o.RangeB, RangeB: o.RangeA}
	}
	return out
}

func intersectLineLine(a, b *Line, tc nmath.ToleranceContext) (CCResult, error) {
	// Closest point pair of the two infinite lines, then range checks.
	w := md3.Sub(a.origin, b.origin)
	dd := md3.Dot(a.dir, b.dir)
	denom := 1 - dd*dd
	if denom < tc.Angular*tc.Angular {
		// Parallel. Coincident when the offset is within tolerance.
		off := md3.Sub(w, md3.Scale(md3.Dot(w, b.dir), b.dir))
		if md3.Norm(off) > tc.Linear {
			return CCResult{}, nil
		}
		// Overlap of the two parameter ranges mapped onto b.
		a0 := md3.Dot(md3.Sub(a.Evaluate(a.rng.Start), b.origin), b.dir)
		a1 := md3.Dot(md3.Sub(a.Evaluate(a.rng.End), b.origin), b.dir)
		lo, hi := math.Min(a0, a1), math.Max(a0, a1)
		lo = math.Max(lo, b.rng.Start)
		hi = math.Min(hi, b.rng.End)
		if hi < lo {
			return CCResult{}, nil
		}
		if hi-lo <= tc.Linear {
			p := b.Evaluate(lo)
			ta, _, _ := a.Project(p)
			return CCResult{Points: []CurvePoint{{Class: Tangential, TA: ta, TB: lo, P: p}}}, nil
		}
		ta0, _, _ := a.Project(b.Evaluate(lo))
		ta1, _, _ := a.Project(b.Evaluate(hi))
		return CCResult{Overlaps: []CurveOverlap{{
			RangeA: ParamRange{Start: math.Min(ta0, ta1), End: math.Max(ta0, ta1)},
			RangeB: ParamRange{Start: lo, End: hi},
		}}}, nil
	}
	sa := md3.Dot(a.dir, w)
	sb := md3.Dot(b.dir, w)
	ta := (dd*sb - sa) / denom
	tb := (sb - dd*sa) / denom
	pa := a.Evaluate(ta)
	pb := b.Evaluate(tb)
	if md3.Norm(md3.Sub(pa, pb)) > tc.Linear {
		return CCResult{}, nil // skew
	}
	if !a.rng.Contains(ta) && !nmath.EqualWithin(ta, a.rng.Clamp(ta), tc.Linear) {
		return CCResult{}, nil
	}
	if !b.rng.Contains(tb) && !nmath.EqualWithin(tb, b.rng.Clamp(tb), tc.Linear) {
		return CCResult{}, nil
	}
	mid := md3.Scale(0.5, md3.Add(pa, pb))
	return CCResult{Points: []CurvePoint{{Class: Transversal, TA: ta, TB: tb, P: mid}}}, nil
}

func intersectLineArc(l *Line, a *Arc, tc nmath.ToleranceContext) (CCResult, error) {
	n := a.Normal()
	dn := md3.Dot(l.dir, n)
	h := md3.Dot(md3.Sub(l.origin, a.center), n)
	var candidates []float64 // line parameters
	if math.Abs(dn) < tc.Angular {
		// Line parallel to the arc plane.
		if math.Abs(h) > tc.Linear {
			return CCResult{}, nil
		}
		// In-plane circle intersection: |o + t*d - c|^2 = r^2.
		oc := md3.Sub(l.origin, a.center)
		bq := 2 * md3.Dot(oc, l.dir)
		cq := md3.Norm2(oc) - a.radius*a.radius
		disc := bq*bq - 4*cq
		switch {
		case disc < -4*tc.Linear*a.radius:
			return CCResult{}, nil
		case disc <= 4*tc.Linear*a.radius:
			candidates = append(candidates, -bq/2)
		default:
			sq := math.Sqrt(disc)
			candidates = append(candidates, (-bq-sq)/2, (-bq+sq)/2)
		}
	} else {
		// Line pierces the plane at a single point.
		candidates = append(candidates, -h/dn)
	}
	var out CCResult
	for _, t := range candidates {
		if !l.rng.Contains(t) && !nmath.EqualWithin(t, l.rng.Clamp(t), tc.Linear) {
			continue
		}
		p := l.Evaluate(t)
		tb, foot, dist := a.Project(p)
		if dist > tc.Linear {
			continue
		}
		class := Transversal
		// A single in-plane root is a tangency.
		if math.Abs(dn) < tc.Angular && len(candidates) == 1 {
			class = Tangential
		}
		out.Points = append(out.Points, CurvePoint{
			Class: class, TA: t, TB: tb,
			P: md3.Scale(0.5, md3.Add(p, foot)),
		})
	}
	return out, nil
}

func intersectArcArc(a, b *Arc, tc nmath.ToleranceContext) (CCResult, error) {
	na, nb := a.Normal(), b.Normal()
	if tc.ParallelDirection(na, nb) {
		// Coplanar check.
		if math.Abs(md3.Dot(md3.Sub(b.center, a.center), na)) > tc.Linear {
			return CCResult{}, nil
		}
		d := md3.Norm(md3.Sub(b.center, a.center))
		if d <= tc.Linear && nmath.EqualWithin(a.radius, b.radius, tc.Linear) {
			// Same circle: coincident over the shared angular range.
			return coincidentArcOverlap(a, b, tc), nil
		}
		sum := a.radius + b.radius
		diff := math.Abs(a.radius - b.radius)
		if d > sum+tc.Linear || d < diff-tc.Linear {
			return CCResult{}, nil
		}
		// Classic two-circle intersection in the common plane.
		axis := md3.Sub(b.center, a.center)
		ux, err := nmath.Unit(axis)
		if err != nil {
			return CCResult{}, ErrDegenerate
		}
		uy := md3.Cross(na, ux)
		x := (d*d + a.radius*a.radius - b.radius*b.radius) / (2 * d)
		y2 := a.radius*a.radius - x*x
		tangent := y2 < tc.Linear*math.Max(a.radius, b.radius)
		var ys []float64
		if tangent {
			ys = []float64{0}
		} else {
			y := math.Sqrt(y2)
			ys = []float64{y, -y}
		}
		var out CCResult
		for _, y := range ys {
			p := md3.Add(a.center, md3.Add(md3.Scale(x, ux), md3.Scale(y, uy)))
			ta, fa, da := a.Project(p)
			tb, fb, db := b.Project(p)
			if da > tc.Linear || db > tc.Linear {
				continue
			}
			class := Transversal
			if tangent {
				class = Tangential
			}
			out.Points = append(out.Points, CurvePoint{
				Class: class, TA: ta, TB: tb,
				P: md3.Scale(0.5, md3.Add(fa, fb)),
			})
		}
		return out, nil
	}
	// Non-coplanar arcs go through the general subdivision path.
	return intersectCurvesSubdivide(a, b, tc)
}

func coincidentArcOverlap(a, b *Arc, tc nmath.ToleranceContext) CCResult {
	// Map b's range into a's angle frame and clip.
	startP := b.Evaluate(b.rng.Start)
	endP := b.Evaluate(b.rng.End)
	ta0, _, _ := a.Project(startP)
	ta1, _, _ := a.Project(endP)
	if a.Closed() && b.Closed() {
		return CCResult{Overlaps: []CurveOverlap{{RangeA: a.rng, RangeB: b.rng}}}
	}
	lo, hi := math.Min(ta0, ta1), math.Max(ta0, ta1)
	lo = math.Max(lo, a.rng.Start)
	hi = math.Min(hi, a.rng.End)
	if hi <= lo {
		return CCResult{}
	}
	tb0, _, _ := b.Project(a.Evaluate(lo))
	tb1, _, _ := b.Project(a.Evaluate(hi))
	return CCResult{Overlaps: []CurveOverlap{{
		RangeA: ParamRange{Start: lo, End: hi},
		RangeB: ParamRange{Start: math.Min(tb0, tb1), End: math.Max(tb0, tb1)},
	}}}
}

// intersectCurvesSubdivide is the general path: recursive bounding box
// pruning down to small parameter spans, then Newton polishing of each
// candidate pair.
func intersectCurvesSubdivide(a, b Curve, tc nmath.ToleranceContext) (CCResult, error) {
	type span struct{ ra, rb ParamRange }
	stack := []span{{a.ParamRange(), b.ParamRange()}}
	var seeds []span
	const maxDepth = 2048
	for iter := 0; len(stack) > 0; iter++ {
		if iter > maxDepth {
			break
		}
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ba := a.BoundsOf(s.ra)
		bb := b.BoundsOf(s.rb)
		if !nmath.BoxesIntersect(nmath.GrowBox(ba, tc.Linear), nmath.GrowBox(bb, tc.Linear)) {
			continue
		}
		small := nmath.BoxDiagonal(ba) < 64*tc.Linear && nmath.BoxDiagonal(bb) < 64*tc.Linear
		if small || iter == maxDepth {
			seeds = append(seeds, s)
			continue
		}
		ra0, ra1 := s.ra.toInterval().Split()
		rb0, rb1 := s.rb.toInterval().Split()
		for _, ra := range [2]nmath.Interval{ra0, ra1} {
			for _, rb := range [2]nmath.Interval{rb0, rb1} {
				stack = append(stack, span{fromInterval(ra), fromInterval(rb)})
			}
		}
	}
	var out CCResult
	for _, s := range seeds {
		ta, tb := s.ra.Mid(), s.rb.Mid()
		ta, tb, ok := newtonCurveCurve(a, b, ta, tb, tc)
		if !ok {
			continue
		}
		pa, pb := a.Evaluate(ta), b.Evaluate(tb)
		if md3.Norm(md3.Sub(pa, pb)) > tc.Linear {
			continue
		}
		p := md3.Scale(0.5, md3.Add(pa, pb))
		dup := false
		for _, q := range out.Points {
			if md3.Norm(md3.Sub(q.P, p)) < 8*tc.Linear {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		class := Transversal
		da, _ := nmath.Unit(a.Derivative(ta))
		db, _ := nmath.Unit(b.Derivative(tb))
		if tc.ParallelDirection(da, db) {
			class = Tangential
		}
		out.Points = append(out.Points, CurvePoint{Class: class, TA: ta, TB: tb, P: p})
	}
	return out, nil
}

// newtonCurveCurve minimizes |a(ta)-b(tb)| by Gauss-Newton.
func newtonCurveCurve(a, b Curve, ta, tb float64, tc nmath.ToleranceContext) (float64, float64, bool) {
	ra, rb := a.ParamRange(), b.ParamRange()
	for i := 0; i < 32; i++ {
		diff := md3.Sub(a.Evaluate(ta), b.Evaluate(tb))
		if md3.Norm(diff) < tc.Linear/4 {
			return ta, tb, true
		}
		da := a.Derivative(ta)
		db := b.Derivative(tb)
		// Normal equations of the 3x2 least squares system.
		g11 := md3.Dot(da, da)
		g12 := -md3.Dot(da, db)
		g22 := md3.Dot(db, db)
		r1 := -md3.Dot(diff, da)
		r2 := md3.Dot(diff, db)
		det := g11*g22 - g12*g12
		if math.Abs(det) < 1e-18 {
			return ta, tb, false
		}
		stepA := (g22*r1 - g12*r2) / det
		stepB := (g11*r2 - g12*r1) / det
		ta = ra.Clamp(ta + stepA)
		tb = rb.Clamp(tb + stepB)
		if math.Abs(stepA) < 1e-14 && math.Abs(stepB) < 1e-14 {
			break
		}
	}
	return ta, tb, md3.Norm(md3.Sub(a.Evaluate(ta), b.Evaluate(tb))) < tc.Linear
}

func (r ParamRange) toInterval() nmath.Interval {
	return nmath.Interval{Lo: r.Start, Hi: r.End}
}

func fromInterval(iv nmath.Interval) ParamRange {
	return ParamRange{Start: iv.Lo, End: iv.Hi}
}
