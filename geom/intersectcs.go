package geom

import (
	"math"

	"github.com/soypat/geometry/md3"
	"gonum.org/v1/gonum/mat"

	"github.com/novacad/nova/nmath"
)

// SurfacePoint is a point element of a curve-surface intersection with
// both parameterizations filled in.
type SurfacePoint struct {
	Class IntersectClass
	T     float64 // curve parameter
	U, V  float64 // surface parameters
	P     md3.Vec
}

// IntersectCurveSurface intersects a curve with a surface. Line/plane
// and line/quadric pairs use closed forms (quadratic and quartic root
// finding); everything else is sampled and Newton-polished.
func IntersectCurveSurface(c Curve, s Surface, tc nmath.ToleranceContext) ([]SurfacePoint, error) {
	if l, ok := c.(*Line); ok {
		switch sf := s.(type) {
		case *Plane:
			return intersectLinePlane(l, sf, tc)
		case *Sphere:
			oc := md3.Sub(l.origin, sf.center)
			return lineQuadricRoots(l, sf, tc,
				1,
				2*md3.Dot(oc, l.dir),
				md3.Norm2(oc)-sf.radius*sf.radius,
			)
		case *Cylinder:
			// Project out the axis component.
			d := md3.Sub(l.dir, md3.Scale(md3.Dot(l.dir, sf.axis), sf.axis))
			oc := md3.Sub(l.origin, sf.base)
			oc = md3.Sub(oc, md3.Scale(md3.Dot(oc, sf.axis), sf.axis))
			return lineQuadricRoots(l, sf, tc,
				md3.Norm2(d),
				2*md3.Dot(oc, d),
				md3.Norm2(oc)-sf.radius*sf.radius,
			)
		case *Cone:
			return intersectLineCone(l, sf, tc)
		case *Torus:
			return intersectLineTorus(l, sf, tc)
		}
	}
	return intersectCurveSurfaceSampled(c, s, tc)
}

func intersectLinePlane(l *Line, p *Plane, tc nmath.ToleranceContext) ([]SurfacePoint, error) {
	n := p.PlaneNormal()
	dn := md3.Dot(l.dir, n)
	h := p.SignedDistance(l.origin)
	if math.Abs(dn) < tc.Angular {
		if math.Abs(h) > tc.Linear {
			return nil, nil
		}
		// Line lies in the plane.
		return nil, ErrTangentialOnly
	}
	t := -h / dn
	if !l.rng.Contains(t) && !nmath.EqualWithin(t, l.rng.Clamp(t), tc.Linear) {
		return nil, nil
	}
	pt := l.Evaluate(t)
	u, v, _, _ := p.Project(pt)
	return []SurfacePoint{{Class: Transversal, T: t, U: u, V: v, P: pt}}, nil
}

// lineQuadricRoots handles the shared quadratic-in-t cases.
func lineQuadricRoots(l *Line, s Surface, tc nmath.ToleranceContext, a, b, c float64) ([]SurfacePoint, error) {
	if math.Abs(a) < 1e-18 {
		// Degenerate quadratic: with b also zero the line lies on the
		// surface or misses it; otherwise the single linear root is a
		// crossing.
		if math.Abs(b) < 1e-18 {
			if math.Abs(c) < tc.Linear {
				return nil, ErrTangentialOnly
			}
			return nil, nil
		}
		return lineSurfacePoints(l, s, tc, []float64{-c / b}, Transversal)
	}
	disc := b*b - 4*a*c
	scale := math.Max(math.Abs(b), math.Abs(4*a*c))
	if disc < -tc.Linear*scale {
		return nil, nil
	}
	if disc <= tc.Linear*scale {
		return lineSurfacePoints(l, s, tc, []float64{-b / (2 * a)}, Tangential)
	}
	sq := math.Sqrt(disc)
	return lineSurfacePoints(l, s, tc, []float64{(-b - sq) / (2 * a), (-b + sq) / (2 * a)}, Transversal)
}

func lineSurfacePoints(l *Line, s Surface, tc nmath.ToleranceContext, ts []float64, class IntersectClass) ([]SurfacePoint, error) {
	var out []SurfacePoint
	for _, t := range ts {
		if !l.rng.Contains(t) && !nmath.EqualWithin(t, l.rng.Clamp(t), tc.Linear) {
			continue
		}
		pt := l.Evaluate(t)
		u, v, foot, dist := s.Project(pt)
		if dist > 4*tc.Linear {
			continue
		}
		out = append(out, SurfacePoint{
			Class: class, T: t, U: u, V: v,
			P: md3.Scale(0.5, md3.Add(pt, foot)),
		})
	}
	return out, nil
}

func intersectLineCone(l *Line, cn *Cone, tc nmath.ToleranceContext) ([]SurfacePoint, error) {
	// In the cone frame: x² + y² = (r0 + v·tanα)², v the axial coord.
	tan := math.Tan(cn.semiAngle)
	o := md3.Sub(l.origin, cn.base)
	ov := md3.Dot(o, cn.axis)
	dv := md3.Dot(l.dir, cn.axis)
	op := md3.Sub(o, md3.Scale(ov, cn.axis))
	dp := md3.Sub(l.dir, md3.Scale(dv, cn.axis))
	// |op + t·dp|² = (r0 + (ov + t·dv)·tanα)²
	ra := cn.radius + ov*tan
	rb := dv * tan
	a := md3.Norm2(dp) - rb*rb
	b := 2 * (md3.Dot(op, dp) - ra*rb)
	c := md3.Norm2(op) - ra*ra
	return lineQuadricRoots(l, cn, tc, a, b, c)
}

func intersectLineTorus(l *Line, tor *Torus, tc nmath.ToleranceContext) ([]SurfacePoint, error) {
	// Quartic in t via the implicit torus equation in the torus frame:
	// (x²+y²+z²+R²−r²)² = 4R²(x²+y²).
	o := md3.Sub(l.origin, tor.center)
	oz := md3.Dot(o, tor.axis)
	dz := md3.Dot(l.dir, tor.axis)
	R2 := tor.major * tor.major
	r2 := tor.minor * tor.minor
	// Quadratic coefficients of |o+td|² and z(t)².
	q2 := 1.0 // |d|²
	q1 := 2 * md3.Dot(o, l.dir)
	q0 := md3.Norm2(o)
	z2 := dz * dz
	z1 := 2 * oz * dz
	z0 := oz * oz
	// A(t) = |o+td|² + R² − r²; quartic is A² − 4R²(|o+td|² − z²).
	a2, a1, a0 := q2, q1, q0+R2-r2
	// A² coefficients.
	c4 := a2 * a2
	c3 := 2 * a2 * a1
	c2 := a1*a1 + 2*a2*a0
	c1 := 2 * a1 * a0
	c0 := a0 * a0
	// Subtract 4R²(q − z).
	c2 -= 4 * R2 * (q2 - z2)
	c1 -= 4 * R2 * (q1 - z1)
	c0 -= 4 * R2 * (q0 - z0)
	roots := realPolyRoots([]float64{c0, c1, c2, c3, c4}, tc.Linear)
	return lineSurfacePoints(l, tor, tc, roots, Transversal)
}

// realPolyRoots returns the real roots of the polynomial with
// ascending coefficients coeffs. Degrees one and two are solved in
// closed form; higher degrees use the eigenvalues of the companion
// matrix.
func realPolyRoots(coeffs []float64, tol float64) []float64 {
	// Strip negligible leading coefficients.
	n := len(coeffs) - 1
	maxMag := 0.0
	for _, c := range coeffs {
		maxMag = math.Max(maxMag, math.Abs(c))
	}
	if maxMag == 0 {
		return nil
	}
	for n > 0 && math.Abs(coeffs[n]) < 1e-14*maxMag {
		n--
	}
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{-coeffs[0] / coeffs[1]}
	}
	if n == 2 {
		a, b, c := coeffs[2], coeffs[1], coeffs[0]
		disc := b*b - 4*a*c
		if disc < 0 {
			return nil
		}
		sq := math.Sqrt(disc)
		return []float64{(-b - sq) / (2 * a), (-b + sq) / (2 * a)}
	}
	comp := mat.NewDense(n, n, nil)
	for i := 1; i < n; i++ {
		comp.Set(i, i-1, 1)
	}
	lead := coeffs[n]
	for i := 0; i < n; i++ {
		comp.Set(i, n-1, -coeffs[i]/lead)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(comp, mat.EigenNone); !ok {
		return nil
	}
	vals := eig.Values(nil)
	var out []float64
	for _, v := range vals {
		if math.Abs(imag(v)) < 1e-8*(1+math.Abs(real(v))) {
			out = append(out, real(v))
		}
	}
	return out
}

func intersectCurveSurfaceSampled(c Curve, s Surface, tc nmath.ToleranceContext) ([]SurfacePoint, error) {
	r := c.ParamRange()
	const n = 96
	type sample struct {
		t float64
		d float64 // signed-ish distance to surface
	}
	prev := sample{t: r.Start}
	_, _, _, prev.d = s.Project(c.Evaluate(prev.t))
	var out []SurfacePoint
	nonconv := 0
	for i := 1; i <= n; i++ {
		cur := sample{t: r.Lerp(float64(i) / n)}
		_, _, _, cur.d = s.Project(c.Evaluate(cur.t))
		// A local minimum near zero or a small distance means a
		// candidate crossing between prev and cur.
		if math.Min(prev.d, cur.d) < math.Max(tc.Linear*256, 1e-3*r.Length()) {
			t, ok := newtonCurveSurface(c, s, (prev.t+cur.t)/2, tc)
			if ok {
				pt := c.Evaluate(t)
				u, v, foot, dist := s.Project(pt)
				if dist <= tc.Linear {
					dup := false
					for _, q := range out {
						if md3.Norm(md3.Sub(q.P, pt)) < 8*tc.Linear {
							dup = true
							break
						}
					}
					if !dup {
						// The crossing is tangential when the curve
						// direction lies in the tangent plane.
						class := Transversal
						if nrm, err := s.Normal(u, v); err == nil {
							if dir, derr := nmath.Unit(c.Derivative(t)); derr == nil && tc.PerpendicularDirection(dir, nrm) {
								class = Tangential
							}
						}
						out = append(out, SurfacePoint{
							Class: class, T: t, U: u, V: v,
							P: md3.Scale(0.5, md3.Add(pt, foot)),
						})
					}
				}
			} else {
				nonconv++
			}
		}
		prev = cur
	}
	if len(out) == 0 && nonconv > 0 {
		return nil, ErrNonConvergent
	}
	return out, nil
}

// newtonCurveSurface minimizes the curve-to-surface distance along t.
func newtonCurveSurface(c Curve, s Surface, t float64, tc nmath.ToleranceContext) (float64, bool) {
	r := c.ParamRange()
	for i := 0; i < 32; i++ {
		pt := c.Evaluate(t)
		_, _, foot, dist := s.Project(pt)
		if dist < tc.Linear/4 {
			return t, true
		}
		diff := md3.Sub(pt, foot)
		d1 := c.Derivative(t)
		f := md3.Dot(diff, d1)
		// Gauss-Newton on f(t) = (c(t)-foot)·c'(t).
		h := math.Max(1e-8, 1e-8*r.Length())
		t2 := r.Clamp(t + h)
		pt2 := c.Evaluate(t2)
		_, _, foot2, _ := s.Project(pt2)
		f2 := md3.Dot(md3.Sub(pt2, foot2), c.Derivative(t2))
		fp := (f2 - f) / (t2 - t)
		if math.Abs(fp) < 1e-18 {
			return t, false
		}
		next := r.Clamp(t - f/fp)
		if math.Abs(next-t) < 1e-14 {
			t = next
			break
		}
		t = next
	}
	_, _, _, dist := s.Project(c.Evaluate(t))
	return t, dist < tc.Linear
}
