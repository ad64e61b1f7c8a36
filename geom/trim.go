package geom

import (
	"math"

	"github.com/soypat/geometry/md3"
)

// TrimCurve returns a curve of the same family restricted to sub,
// which must lie within the input's parameter range. NURBS curves are
// re-interpolated over the sub-range.
func TrimCurve(c Curve, sub ParamRange) (Curve, error) {
	full := c.ParamRange()
	if sub.Start < full.Start-1e-12 || sub.End > full.End+1e-12 || sub.Length() <= 0 {
		return nil, ErrInvalidGeometry
	}
	switch cc := c.(type) {
	case *Line:
		out := *cc
		out.rng = sub
		return &out, nil
	case *Arc:
		out := *cc
		out.rng = sub
		return &out, nil
	case *EllipseArc:
		out := *cc
		out.rng = sub
		return &out, nil
	case *NURBSCurve:
		const n = 32
		pts := make([]md3.Vec, n+1)
		for i := 0; i <= n; i++ {
			pts[i] = cc.Evaluate(sub.Lerp(float64(i) / n))
		}
		return InterpolateNURBS(pts)
	}
	return nil, ErrInvalidGeometry
}

// ReverseCurve returns a curve tracing the same locus in the opposite
// direction.
func ReverseCurve(c Curve) (Curve, error) {
	r := c.ParamRange()
	switch cc := c.(type) {
	case *Line:
		return NewLineSegment(cc.Evaluate(r.End), cc.Evaluate(r.Start))
	case *Arc:
		// Flip the arc normal; the reversed arc starts where the
		// original ended.
		endDir := md3.Sub(cc.Evaluate(r.End), cc.center)
		return NewArc(cc.center, md3.Scale(-1, cc.Normal()), endDir, cc.radius,
			ParamRange{Start: 0, End: r.Length()})
	case *EllipseArc:
		// Sampled reversal keeps the family closed under reversal.
		return reverseBySampling(cc)
	case *NURBSCurve:
		n := len(cc.ctrl)
		ctrl := make([]md3.Vec, n)
		weights := make([]float64, n)
		for i := 0; i < n; i++ {
			ctrl[i] = cc.ctrl[n-1-i]
			weights[i] = cc.weights[n-1-i]
		}
		k := len(cc.knots)
		knots := make([]float64, k)
		lo, hi := cc.knots[0], cc.knots[k-1]
		for i := 0; i < k; i++ {
			knots[i] = lo + hi - cc.knots[k-1-i]
		}
		return NewNURBSCurve(cc.degree, knots, ctrl, weights)
	}
	return nil, ErrInvalidGeometry
}

func reverseBySampling(c Curve) (Curve, error) {
	r := c.ParamRange()
	const n = 32
	pts := make([]md3.Vec, n+1)
	for i := 0; i <= n; i++ {
		pts[i] = c.Evaluate(r.Lerp(1 - float64(i)/n))
	}
	return InterpolateNURBS(pts)
}

// CurveStartEnd returns the endpoints of a curve's trimmed range.
func CurveStartEnd(c Curve) (start, end md3.Vec) {
	r := c.ParamRange()
	return c.Evaluate(r.Start), c.Evaluate(r.End)
}

// CurveLengthEstimate integrates the curve length by sampling.
func CurveLengthEstimate(c Curve, samples int) float64 {
	if samples < 2 {
		samples = 16
	}
	r := c.ParamRange()
	total := 0.0
	prev := c.Evaluate(r.Start)
	for i := 1; i <= samples; i++ {
		p := c.Evaluate(r.Lerp(float64(i) / float64(samples)))
		total += md3.Norm(md3.Sub(p, prev))
		prev = p
	}
	// Guard against NaNs from degenerate inputs.
	if math.IsNaN(total) {
		return 0
	}
	return total
}
