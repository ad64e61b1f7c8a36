package geom

import (
	"math"

	"github.com/soypat/geometry/md3"
	"gonum.org/v1/gonum/mat"

	"github.com/novacad/nova/nmath"
)

// NURBSCurve is a rational B-spline curve of arbitrary degree with a
// clamped knot vector and weighted control points. Evaluation is by the
// de Boor recurrence on the homogeneous control net.
type NURBSCurve struct {
	degree  int
	knots   []float64
	ctrl    []md3.Vec
	weights []float64
}

// NewNURBSCurve validates and constructs a NURBS curve. The knot
// vector must be non-decreasing with len(knots) == len(ctrl)+degree+1;
// weights must be positive and match ctrl in length (nil means all 1).
func NewNURBSCurve(degree int, knots []float64, ctrl []md3.Vec, weights []float64) (*NURBSCurve, error) {
	n := len(ctrl)
	if degree < 1 || n < degree+1 || len(knots) != n+degree+1 {
		return nil, ErrInvalidGeometry
	}
	for i := 1; i < len(knots); i++ {
		if knots[i] < knots[i-1] {
			return nil, ErrInvalidGeometry
		}
	}
	if weights == nil {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != n {
		return nil, ErrInvalidGeometry
	}
	for _, w := range weights {
		if w <= 0 {
			return nil, ErrInvalidGeometry
		}
	}
	c := &NURBSCurve{
		degree:  degree,
		knots:   append([]float64(nil), knots...),
		ctrl:    append([]md3.Vec(nil), ctrl...),
		weights: append([]float64(nil), weights...),
	}
	return c, nil
}

// Degree returns the polynomial degree.
func (c *NURBSCurve) Degree() int { return c.degree }

// Knots returns the knot vector (not a copy; treat as read-only).
func (c *NURBSCurve) Knots() []float64 { return c.knots }

// ControlPoints returns the control net (treat as read-only).
func (c *NURBSCurve) ControlPoints() []md3.Vec { return c.ctrl }

// Weights returns the weight vector (treat as read-only).
func (c *NURBSCurve) Weights() []float64 { return c.weights }

func (c *NURBSCurve) Kind() CurveKind { return KindNURBSCurve }

func (c *NURBSCurve) ParamRange() ParamRange {
	return ParamRange{Start: c.knots[c.degree], End: c.knots[len(c.knots)-1-c.degree]}
}

func (c *NURBSCurve) Closed() bool {
	r := c.ParamRange()
	return md3.Norm(md3.Sub(c.Evaluate(r.Start), c.Evaluate(r.End))) < 1e-9
}

// findSpan locates the knot span containing t.
func findSpan(degree int, knots []float64, t float64) int {
	n := len(knots) - degree - 2
	if t >= knots[n+1] {
		return n
	}
	if t <= knots[degree] {
		return degree
	}
	lo, hi := degree, n+1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if t < knots[mid] {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// basisFuncs evaluates the degree+1 nonvanishing B-spline basis
// functions at t on the given span (The NURBS Book A2.2).
func basisFuncs(span, degree int, knots []float64, t float64) []float64 {
	out := make([]float64, degree+1)
	left := make([]float64, degree+1)
	right := make([]float64, degree+1)
	out[0] = 1
	for j := 1; j <= degree; j++ {
		left[j] = t - knots[span+1-j]
		right[j] = knots[span+j] - t
		saved := 0.0
		for r := 0; r < j; r++ {
			den := right[r+1] + left[j-r]
			var temp float64
			if den != 0 {
				temp = out[r] / den
			}
			out[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		out[j] = saved
	}
	return out
}

// evalHomogeneous returns the weighted point sum and weight sum at t.
func (c *NURBSCurve) evalHomogeneous(t float64) (md3.Vec, float64) {
	span := findSpan(c.degree, c.knots, t)
	basis := basisFuncs(span, c.degree, c.knots, t)
	var pw md3.Vec
	var w float64
	for i := 0; i <= c.degree; i++ {
		idx := span - c.degree + i
		b := basis[i] * c.weights[idx]
		pw = md3.Add(pw, md3.Scale(b, c.ctrl[idx]))
		w += b
	}
	return pw, w
}

func (c *NURBSCurve) Evaluate(t float64) md3.Vec {
	t = c.ParamRange().Clamp(t)
	pw, w := c.evalHomogeneous(t)
	return md3.Scale(1/w, pw)
}

// derivStep is the central difference step used for NURBS derivatives,
// scaled by the parameter range.
func (c *NURBSCurve) derivStep() float64 {
	return math.Max(1e-7, 1e-7*c.ParamRange().Length())
}

func (c *NURBSCurve) Derivative(t float64) md3.Vec {
	h := c.derivStep()
	r := c.ParamRange()
	t0, t1 := math.Max(r.Start, t-h), math.Min(r.End, t+h)
	return md3.Scale(1/(t1-t0), md3.Sub(c.Evaluate(t1), c.Evaluate(t0)))
}

func (c *NURBSCurve) SecondDerivative(t float64) md3.Vec {
	h := math.Sqrt(c.derivStep())
	r := c.ParamRange()
	if t-h < r.Start {
		t = r.Start + h
	}
	if t+h > r.End {
		t = r.End - h
	}
	p0, p1, p2 := c.Evaluate(t-h), c.Evaluate(t), c.Evaluate(t+h)
	return md3.Scale(1/(h*h), md3.Add(md3.Sub(p0, md3.Scale(2, p1)), p2))
}

func (c *NURBSCurve) BoundsOf(sub ParamRange) md3.Box {
	// The curve lies in the convex hull of its control net; restrict
	// by sampling for a tighter, still conservative box.
	b := nmath.EmptyBox()
	const n = 32
	for i := 0; i <= n; i++ {
		b = nmath.ExtendBox(b, c.Evaluate(sub.Lerp(float64(i)/n)))
	}
	diam := nmath.BoxDiagonal(b)
	return nmath.GrowBox(b, diam/float64(n))
}

func (c *NURBSCurve) Project(p md3.Vec) (float64, md3.Vec, float64) {
	r := c.ParamRange()
	// Coarse sample then Newton polish.
	const n = 64
	bestT, bestD := r.Start, math.Inf(1)
	for i := 0; i <= n; i++ {
		t := r.Lerp(float64(i) / n)
		d := md3.Norm(md3.Sub(p, c.Evaluate(t)))
		if d < bestD {
			bestT, bestD = t, d
		}
	}
	t := bestT
	for i := 0; i < 24; i++ {
		diff := md3.Sub(p, c.Evaluate(t))
		d1 := c.Derivative(t)
		d2 := c.SecondDerivative(t)
		f := md3.Dot(diff, d1)
		fp := md3.Dot(diff, d2) - md3.Dot(d1, d1)
		if math.Abs(fp) < 1e-14 {
			break
		}
		next := r.Clamp(t - f/fp)
		if math.Abs(next-t) < 1e-13 {
			t = next
			break
		}
		t = next
	}
	foot := c.Evaluate(t)
	return t, foot, md3.Norm(md3.Sub(p, foot))
}

func (c *NURBSCurve) Transformed(tf Transform) Curve {
	ctrl := make([]md3.Vec, len(c.ctrl))
	for i, p := range c.ctrl {
		ctrl[i] = tf.Apply(p)
	}
	return &NURBSCurve{
		degree:  c.degree,
		knots:   c.knots,
		ctrl:    ctrl,
		weights: c.weights,
	}
}

// InterpolateNURBS returns a degree-3 (or lower for few points)
// non-rational B-spline passing through the given points, using chord
// length parameterization and a dense global interpolation solve.
func InterpolateNURBS(points []md3.Vec) (*NURBSCurve, error) {
	n := len(points)
	if n < 2 {
		return nil, ErrInvalidGeometry
	}
	degree := 3
	if n <= degree {
		degree = n - 1
	}
	// Chord length parameters.
	params := make([]float64, n)
	total := 0.0
	for i := 1; i < n; i++ {
		total += md3.Norm(md3.Sub(points[i], points[i-1]))
		params[i] = total
	}
	if total < 1e-15 {
		return nil, ErrDegenerate
	}
	for i := range params {
		params[i] /= total
	}
	// Averaged clamped knot vector (The NURBS Book 9.8).
	knots := make([]float64, n+degree+1)
	for i := 0; i <= degree; i++ {
		knots[i] = 0
		knots[n+degree-i] = 1
	}
	for j := 1; j < n-degree; j++ {
		sum := 0.0
		for i := j; i < j+degree; i++ {
			sum += params[i]
		}
		knots[j+degree] = sum / float64(degree)
	}
	// Dense collocation matrix; n is small for loft profiles.
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		span := findSpan(degree, knots, params[i])
		basis := basisFuncs(span, degree, knots, params[i])
		for j := 0; j <= degree; j++ {
			a.Set(i, span-degree+j, basis[j])
		}
	}
	rhs := mat.NewDense(n, 3, nil)
	for i, p := range points {
		rhs.Set(i, 0, p.X)
		rhs.Set(i, 1, p.Y)
		rhs.Set(i, 2, p.Z)
	}
	var sol mat.Dense
	if err := sol.Solve(a, rhs); err != nil {
		return nil, ErrNonConvergent
	}
	ctrl := make([]md3.Vec, n)
	for i := range ctrl {
		ctrl[i] = md3.Vec{X: sol.At(i, 0), Y: sol.At(i, 1), Z: sol.At(i, 2)}
	}
	return NewNURBSCurve(degree, knots, ctrl, nil)
}

// NURBSSurface is a rational tensor-product B-spline surface.
type NURBSSurface struct {
	degreeU, degreeV int
	knotsU, knotsV   []float64
	// ctrl is a row-major grid: ctrl[i*countV+j] is control point (i,j).
	ctrl    []md3.Vec
	weights []float64
	countU  int
	countV  int
}

// NewNURBSSurface validates and constructs a tensor-product NURBS
// surface. nil weights means non-rational.
func NewNURBSSurface(degreeU, degreeV, countU, countV int, knotsU, knotsV []float64, ctrl []md3.Vec, weights []float64) (*NURBSSurface, error) {
	if degreeU < 1 || degreeV < 1 || countU < degreeU+1 || countV < degreeV+1 {
		return nil, ErrInvalidGeometry
	}
	if len(knotsU) != countU+degreeU+1 || len(knotsV) != countV+degreeV+1 {
		return nil, ErrInvalidGeometry
	}
	if len(ctrl) != countU*countV {
		return nil, ErrInvalidGeometry
	}
	if weights == nil {
		weights = make([]float64, len(ctrl))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(ctrl) {
		return nil, ErrInvalidGeometry
	}
	return &NURBSSurface{
		degreeU: degreeU, degreeV: degreeV,
		knotsU: append([]float64(nil), knotsU...),
		knotsV: append([]float64(nil), knotsV...),
		ctrl:   append([]md3.Vec(nil), ctrl...),
		weights: append([]float64(nil), weights...),
		countU:  countU, countV: countV,
	}, nil
}

// Degrees returns the u and v polynomial degrees.
func (s *NURBSSurface) Degrees() (int, int) { return s.degreeU, s.degreeV }

// ControlCounts returns the u and v control point counts.
func (s *NURBSSurface) ControlCounts() (int, int) { return s.countU, s.countV }

// KnotsU returns the u knot vector (treat as read-only).
func (s *NURBSSurface) KnotsU() []float64 { return s.knotsU }

// KnotsV returns the v knot vector (treat as read-only).
func (s *NURBSSurface) KnotsV() []float64 { return s.knotsV }

// ControlPoints returns the row-major control grid (treat as read-only).
func (s *NURBSSurface) ControlPoints() []md3.Vec { return s.ctrl }

// Weights returns the weight grid (treat as read-only).
func (s *NURBSSurface) Weights() []float64 { return s.weights }

func (s *NURBSSurface) Kind() SurfaceKind { return KindNURBSSurface }
func (s *NURBSSurface) PeriodicU() bool   { return false }
func (s *NURBSSurface) PeriodicV() bool   { return false }

func (s *NURBSSurface) UVRange() UVRange {
	return UVRange{
		U: ParamRange{Start: s.knotsU[s.degreeU], End: s.knotsU[len(s.knotsU)-1-s.degreeU]},
		V: ParamRange{Start: s.knotsV[s.degreeV], End: s.knotsV[len(s.knotsV)-1-s.degreeV]},
	}
}

func (s *NURBSSurface) Evaluate(u, v float64) md3.Vec {
	r := s.UVRange()
	u, v = r.U.Clamp(u), r.V.Clamp(v)
	spanU := findSpan(s.degreeU, s.knotsU, u)
	spanV := findSpan(s.degreeV, s.knotsV, v)
	bu := basisFuncs(spanU, s.degreeU, s.knotsU, u)
	bv := basisFuncs(spanV, s.degreeV, s.knotsV, v)
	var pw md3.Vec
	var w float64
	for i := 0; i <= s.degreeU; i++ {
		iu := spanU - s.degreeU + i
		for j := 0; j <= s.degreeV; j++ {
			iv := spanV - s.degreeV + j
			idx := iu*s.countV + iv
			b := bu[i] * bv[j] * s.weights[idx]
			pw = md3.Add(pw, md3.Scale(b, s.ctrl[idx]))
			w += b
		}
	}
	return md3.Scale(1/w, pw)
}

func (s *NURBSSurface) Partials(u, v float64) (md3.Vec, md3.Vec) {
	r := s.UVRange()
	hu := math.Max(1e-7, 1e-7*r.U.Length())
	hv := math.Max(1e-7, 1e-7*r.V.Length())
	u0, u1 := math.Max(r.U.Start, u-hu), math.Min(r.U.End, u+hu)
	v0, v1 := math.Max(r.V.Start, v-hv), math.Min(r.V.End, v+hv)
	du := md3.Scale(1/(u1-u0), md3.Sub(s.Evaluate(u1, v), s.Evaluate(u0, v)))
	dv := md3.Scale(1/(v1-v0), md3.Sub(s.Evaluate(u, v1), s.Evaluate(u, v0)))
	return du, dv
}

func (s *NURBSSurface) Normal(u, v float64) (md3.Vec, error) {
	du, dv := s.Partials(u, v)
	return nmath.Unit(md3.Cross(du, dv))
}

func (s *NURBSSurface) Project(p md3.Vec) (float64, float64, md3.Vec, float64) {
	r := s.UVRange()
	const n = 16
	bestU, bestV, bestD := r.U.Start, r.V.Start, math.Inf(1)
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			u := r.U.Lerp(float64(i) / n)
			v := r.V.Lerp(float64(j) / n)
			d := md3.Norm(md3.Sub(p, s.Evaluate(u, v)))
			if d < bestD {
				bestU, bestV, bestD = u, v, d
			}
		}
	}
	u, v := bestU, bestV
	for i := 0; i < 24; i++ {
		foot := s.Evaluate(u, v)
		du, dv := s.Partials(u, v)
		diff := md3.Sub(p, foot)
		// Gauss-Newton step on [diff·du, diff·dv] = 0.
		g11 := md3.Dot(du, du)
		g12 := md3.Dot(du, dv)
		g22 := md3.Dot(dv, dv)
		det := g11*g22 - g12*g12
		if math.Abs(det) < 1e-16 {
			break
		}
		r1 := md3.Dot(diff, du)
		r2 := md3.Dot(diff, dv)
		stepU := (g22*r1 - g12*r2) / det
		stepV := (g11*r2 - g12*r1) / det
		u = r.U.Clamp(u + stepU)
		v = r.V.Clamp(v + stepV)
		if math.Abs(stepU) < 1e-13 && math.Abs(stepV) < 1e-13 {
			break
		}
	}
	foot := s.Evaluate(u, v)
	return u, v, foot, md3.Norm(md3.Sub(p, foot))
}

func (s *NURBSSurface) BoundsOf(sub UVRange) md3.Box {
	b := nmath.EmptyBox()
	const n = 16
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			b = nmath.ExtendBox(b, s.Evaluate(sub.U.Lerp(float64(i)/n), sub.V.Lerp(float64(j)/n)))
		}
	}
	diam := nmath.BoxDiagonal(b)
	return nmath.GrowBox(b, diam/float64(n))
}

func (s *NURBSSurface) Transformed(tf Transform) Surface {
	ctrl := make([]md3.Vec, len(s.ctrl))
	for i, p := range s.ctrl {
		ctrl[i] = tf.Apply(p)
	}
	out := *s
	out.ctrl = ctrl
	return &out
}

// LoftSurface builds a NURBS surface interpolating an ordered sequence
// of section polylines, all with the same sample count. Sections run
// in v; the lofting direction is u.
func LoftSurface(sections [][]md3.Vec) (*NURBSSurface, error) {
	nu := len(sections)
	if nu < 2 {
		return nil, ErrInvalidGeometry
	}
	nv := len(sections[0])
	if nv < 2 {
		return nil, ErrInvalidGeometry
	}
	for _, sec := range sections {
		if len(sec) != nv {
			return nil, ErrInvalidGeometry
		}
	}
	// Interpolate each v-column across sections, then assemble the
	// grid of interpolated control points.
	degU := 3
	if nu <= degU {
		degU = nu - 1
	}
	degV := 3
	if nv <= degV {
		degV = nv - 1
	}
	// First loft curves through corresponding samples.
	columns := make([][]md3.Vec, nv)
	var knotsU []float64
	for j := 0; j < nv; j++ {
		pts := make([]md3.Vec, nu)
		for i := 0; i < nu; i++ {
			pts[i] = sections[i][j]
		}
		cur, err := InterpolateNURBS(pts)
		if err != nil {
			return nil, err
		}
		columns[j] = cur.ControlPoints()
		knotsU = cur.Knots()
		degU = cur.Degree()
	}
	ctrlPerColumn := len(columns[0])
	// Then interpolate across each row of the intermediate net.
	grid := make([]md3.Vec, 0, ctrlPerColumn*nv)
	var knotsV []float64
	rows := make([][]md3.Vec, ctrlPerColumn)
	for i := 0; i < ctrlPerColumn; i++ {
		pts := make([]md3.Vec, nv)
		for j := 0; j < nv; j++ {
			pts[j] = columns[j][i]
		}
		cur, err := InterpolateNURBS(pts)
		if err != nil {
			return nil, err
		}
		rows[i] = cur.ControlPoints()
		knotsV = cur.Knots()
		degV = cur.Degree()
	}
	countV := len(rows[0])
	for i := 0; i < ctrlPerColumn; i++ {
		grid = append(grid, rows[i]...)
	}
	return NewNURBSSurface(degU, degV, ctrlPerColumn, countV, knotsU, knotsV, grid, nil)
}
