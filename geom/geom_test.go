package geom

import (
	"math"
	"testing"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/nmath"
)

var testTol = nmath.DefaultTolerance()

func almostEqual(t *testing.T, got, want md3.Vec, tol float64, msg string) {
	t.Helper()
	if md3.Norm(md3.Sub(got, want)) > tol {
		t.Errorf("%s: got %+v want %+v", msg, got, want)
	}
}

func TestLineSegment(t *testing.T) {
	l, err := NewLineSegment(md3.Vec{}, md3.Vec{X: 10})
	if err != nil {
		t.Fatal(err)
	}
	if l.ParamRange().End != 10 {
		t.Errorf("param range end = %v, want 10 (arc length)", l.ParamRange().End)
	}
	almostEqual(t, l.Evaluate(5), md3.Vec{X: 5}, 1e-14, "midpoint")
	tt, foot, dist := l.Project(md3.Vec{X: 3, Y: 4})
	if tt != 3 || dist != 4 {
		t.Errorf("project: t=%v dist=%v", tt, dist)
	}
	almostEqual(t, foot, md3.Vec{X: 3}, 1e-14, "foot")

	if _, err := NewLineSegment(md3.Vec{X: 1}, md3.Vec{X: 1}); err == nil {
		t.Error("coincident endpoints should fail")
	}
}

func TestArcEvaluateProject(t *testing.T) {
	a, err := NewCircle(md3.Vec{}, md3.Vec{Z: 1}, md3.Vec{X: 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Closed() {
		t.Error("full circle should be closed")
	}
	almostEqual(t, a.Evaluate(0), md3.Vec{X: 2}, 1e-14, "t=0")
	almostEqual(t, a.Evaluate(math.Pi/2), md3.Vec{Y: 2}, 1e-14, "t=pi/2")
	// Derivative magnitude equals radius for unit angular parameter.
	if got := md3.Norm(a.Derivative(1.1)); !nmath.EqualWithin(got, 2, 1e-12) {
		t.Errorf("derivative magnitude = %v", got)
	}
	_, foot, dist := a.Project(md3.Vec{X: 5})
	almostEqual(t, foot, md3.Vec{X: 2}, 1e-12, "project foot")
	if !nmath.EqualWithin(dist, 3, 1e-12) {
		t.Errorf("project dist = %v", dist)
	}
}

func TestSphereSurface(t *testing.T) {
	s, err := NewSphere(md3.Vec{}, md3.Vec{Z: 1}, 25)
	if err != nil {
		t.Fatal(err)
	}
	p := s.Evaluate(0.3, 0.4)
	if !nmath.EqualWithin(md3.Norm(p), 25, 1e-12) {
		t.Errorf("point off sphere: |p| = %v", md3.Norm(p))
	}
	n, err := s.Normal(0.3, 0.4)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := nmath.Unit(p)
	almostEqual(t, n, u, 1e-12, "normal is radial")
	_, _, _, dist := s.Project(md3.Vec{X: 30})
	if !nmath.EqualWithin(dist, 5, 1e-12) {
		t.Errorf("project dist = %v", dist)
	}
	if _, err := NewSphere(md3.Vec{}, md3.Vec{Z: 1}, -1); err == nil {
		t.Error("negative radius should fail")
	}
}

func TestCylinderSurface(t *testing.T) {
	c, err := NewCylinder(md3.Vec{}, md3.Vec{Z: 1}, 3, ParamRange{Start: 0, End: 10})
	if err != nil {
		t.Fatal(err)
	}
	if !c.PeriodicU() || c.PeriodicV() {
		t.Error("cylinder is periodic in u only")
	}
	p := c.Evaluate(1.0, 4.0)
	rho := math.Hypot(p.X, p.Y)
	if !nmath.EqualWithin(rho, 3, 1e-12) || !nmath.EqualWithin(p.Z, 4, 1e-12) {
		t.Errorf("evaluate: rho=%v z=%v", rho, p.Z)
	}
	u, v, _, dist := c.Project(md3.Vec{X: 5, Z: 2})
	if !nmath.EqualWithin(dist, 2, 1e-12) || !nmath.EqualWithin(v, 2, 1e-12) || !nmath.EqualWithin(u, 0, 1e-12) {
		t.Errorf("project u=%v v=%v dist=%v", u, v, dist)
	}
}

func TestTorusSurface(t *testing.T) {
	tor, err := NewTorus(md3.Vec{}, md3.Vec{Z: 1}, 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	// Outer equator point.
	almostEqual(t, tor.Evaluate(0, 0), md3.Vec{X: 12}, 1e-12, "outer equator")
	// Top of tube.
	almostEqual(t, tor.Evaluate(0, math.Pi/2), md3.Vec{X: 10, Z: 2}, 1e-12, "tube top")
	u, v, _, dist := tor.Project(md3.Vec{X: 13})
	if !nmath.EqualWithin(dist, 1, 1e-12) || !nmath.EqualWithin(u, 0, 1e-12) || !nmath.EqualWithin(v, 0, 1e-12) {
		t.Errorf("project u=%v v=%v dist=%v", u, v, dist)
	}
	if _, err := NewTorus(md3.Vec{}, md3.Vec{Z: 1}, 2, 10); err == nil {
		t.Error("minor >= major should fail")
	}
}

func TestConeSurface(t *testing.T) {
	cn, err := NewCone(md3.Vec{}, md3.Vec{Z: 1}, 5, math.Atan2(-3, 10), ParamRange{Start: 0, End: 10})
	if err != nil {
		t.Fatal(err)
	}
	// Radius shrinks from 5 to 2 over height 10.
	if got := cn.RadiusAt(10); !nmath.EqualWithin(got, 2, 1e-12) {
		t.Errorf("top radius = %v, want 2", got)
	}
	p := cn.Evaluate(0, 10)
	almostEqual(t, p, md3.Vec{X: 2, Z: 10}, 1e-12, "top rim")
}

func TestNURBSInterpolationPassesThroughPoints(t *testing.T) {
	pts := []md3.Vec{
		{X: 0, Y: 0}, {X: 1, Y: 2}, {X: 3, Y: 1}, {X: 4, Y: 4}, {X: 6, Y: 0},
	}
	c, err := InterpolateNURBS(pts)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range pts {
		_, _, dist := c.Project(p)
		if dist > 1e-6 {
			t.Errorf("interpolant misses %+v by %v", p, dist)
		}
	}
	r := c.ParamRange()
	almostEqual(t, c.Evaluate(r.Start), pts[0], 1e-9, "start point")
	almostEqual(t, c.Evaluate(r.End), pts[len(pts)-1], 1e-9, "end point")
}

func TestIntersectLineLine(t *testing.T) {
	a, _ := NewLineSegment(md3.Vec{X: -1}, md3.Vec{X: 1})
	b, _ := NewLineSegment(md3.Vec{Y: -1}, md3.Vec{Y: 1})
	res, err := IntersectCurves(a, b, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Points) != 1 {
		t.Fatalf("want 1 point, got %d", len(res.Points))
	}
	almostEqual(t, res.Points[0].P, md3.Vec{}, 1e-12, "crossing at origin")
	if res.Points[0].Class != Transversal {
		t.Error("crossing should be transversal")
	}

	// Skew lines miss.
	c, _ := NewLineSegment(md3.Vec{Y: -1, Z: 1}, md3.Vec{Y: 1, Z: 1})
	res, _ = IntersectCurves(a, c, testTol)
	if !res.IsEmpty() {
		t.Error("skew lines should not intersect")
	}

	// Collinear overlap.
	d, _ := NewLineSegment(md3.Vec{X: 0}, md3.Vec{X: 3})
	res, _ = IntersectCurves(a, d, testTol)
	if len(res.Overlaps) != 1 {
		t.Fatalf("want 1 overlap, got %+v", res)
	}
}

func TestIntersectLineArc(t *testing.T) {
	circle, _ := NewCircle(md3.Vec{}, md3.Vec{Z: 1}, md3.Vec{X: 1}, 1)
	l, _ := NewLineSegment(md3.Vec{X: -2}, md3.Vec{X: 2})
	res, err := IntersectCurves(l, circle, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Points) != 2 {
		t.Fatalf("secant should cut twice, got %d", len(res.Points))
	}
	// Tangent line.
	tl, _ := NewLineSegment(md3.Vec{X: -2, Y: 1}, md3.Vec{X: 2, Y: 1})
	res, err = IntersectCurves(tl, circle, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Points) != 1 || res.Points[0].Class != Tangential {
		t.Fatalf("tangent contact, got %+v", res.Points)
	}
}

func TestIntersectLinePlaneAndSphere(t *testing.T) {
	pl, _ := NewPlane(md3.Vec{}, md3.Vec{Z: 1})
	l, _ := NewLineSegment(md3.Vec{Z: -1}, md3.Vec{Z: 1})
	pts, err := IntersectCurveSurface(l, pl, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 1 {
		t.Fatalf("want 1 hit, got %d", len(pts))
	}
	almostEqual(t, pts[0].P, md3.Vec{}, 1e-12, "hit at origin")

	sp, _ := NewSphere(md3.Vec{}, md3.Vec{Z: 1}, 1)
	l2, _ := NewLineSegment(md3.Vec{X: -2}, md3.Vec{X: 2})
	pts, err = IntersectCurveSurface(l2, sp, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 2 {
		t.Fatalf("secant through sphere: want 2, got %d", len(pts))
	}
	// Tangent ray.
	l3, _ := NewLineSegment(md3.Vec{X: -2, Z: 1}, md3.Vec{X: 2, Z: 1})
	pts, err = IntersectCurveSurface(l3, sp, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 1 || pts[0].Class != Tangential {
		t.Fatalf("tangent hit, got %+v", pts)
	}
}

func TestIntersectPlanePlane(t *testing.T) {
	a, _ := NewPlane(md3.Vec{}, md3.Vec{Z: 1})
	b, _ := NewPlane(md3.Vec{}, md3.Vec{X: 1})
	curves, err := IntersectSurfaces(a, b, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(curves) != 1 {
		t.Fatalf("want 1 line, got %d", len(curves))
	}
	l, ok := curves[0].Curve.(*Line)
	if !ok {
		t.Fatalf("want Line, got %T", curves[0].Curve)
	}
	if !testTol.ParallelDirection(l.Direction(), md3.Vec{Y: 1}) {
		t.Errorf("intersection direction %+v, want ±Y", l.Direction())
	}
	// Parallel distinct planes do not meet.
	c, _ := NewPlane(md3.Vec{Z: 5}, md3.Vec{Z: 1})
	curves, err = IntersectSurfaces(a, c, testTol)
	if err != nil || len(curves) != 0 {
		t.Errorf("parallel planes: %v %v", curves, err)
	}
	// Coincident planes are degenerate.
	d, _ := NewPlane(md3.Vec{X: 3}, md3.Vec{Z: 1})
	if _, err = IntersectSurfaces(a, d, testTol); err != ErrDegenerate {
		t.Errorf("coincident planes: %v", err)
	}
}

func TestIntersectPlaneCylinder(t *testing.T) {
	cyl, _ := NewCylinder(md3.Vec{}, md3.Vec{Z: 1}, 3, ParamRange{Start: -10, End: 10})
	// Perpendicular plane: circle.
	p1, _ := NewPlane(md3.Vec{Z: 2}, md3.Vec{Z: 1})
	curves, err := IntersectSurfaces(p1, cyl, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(curves) != 1 {
		t.Fatalf("want 1 circle, got %d", len(curves))
	}
	arc, ok := curves[0].Curve.(*Arc)
	if !ok || !arc.Closed() || !nmath.EqualWithin(arc.Radius(), 3, 1e-12) {
		t.Fatalf("want full circle r=3, got %+v", curves[0].Curve)
	}
	almostEqual(t, arc.Center(), md3.Vec{Z: 2}, 1e-12, "circle center")

	// Plane parallel to the axis cutting through: two rulings.
	p2, _ := NewPlane(md3.Vec{}, md3.Vec{X: 1})
	curves, err = IntersectSurfaces(p2, cyl, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(curves) != 2 {
		t.Fatalf("want 2 rulings, got %d", len(curves))
	}
	// Tangent plane.
	p3, _ := NewPlane(md3.Vec{X: 3}, md3.Vec{X: 1})
	curves, err = IntersectSurfaces(p3, cyl, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(curves) != 1 || curves[0].Class != Tangential {
		t.Fatalf("tangent plane: %+v", curves)
	}
}

func TestIntersectPlaneSphere(t *testing.T) {
	sp, _ := NewSphere(md3.Vec{}, md3.Vec{Z: 1}, 5)
	p, _ := NewPlane(md3.Vec{Z: 3}, md3.Vec{Z: 1})
	curves, err := IntersectSurfaces(p, sp, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(curves) != 1 {
		t.Fatalf("want 1 circle, got %d", len(curves))
	}
	arc := curves[0].Curve.(*Arc)
	if !nmath.EqualWithin(arc.Radius(), 4, 1e-12) {
		t.Errorf("latitude circle radius %v, want 4", arc.Radius())
	}
	// Tangent plane touches only.
	pt, _ := NewPlane(md3.Vec{Z: 5}, md3.Vec{Z: 1})
	if _, err := IntersectSurfaces(pt, sp, testTol); err != ErrTangentialOnly {
		t.Errorf("tangent plane: err = %v", err)
	}
}

func TestRealPolyRoots(t *testing.T) {
	// (x-1)(x-2)(x-3)(x+4) = x^4 -2x^3 -13x^2 +38x -24
	roots := realPolyRoots([]float64{-24, 38, -13, -2, 1}, 1e-9)
	if len(roots) != 4 {
		t.Fatalf("want 4 real roots, got %v", roots)
	}
	want := map[float64]bool{1: false, 2: false, 3: false, -4: false}
	for _, r := range roots {
		for w := range want {
			if nmath.EqualWithin(r, w, 1e-8) {
				want[w] = true
			}
		}
	}
	for w, found := range want {
		if !found {
			t.Errorf("root %v not found in %v", w, roots)
		}
	}
}

func TestLineTorusFourHits(t *testing.T) {
	tor, _ := NewTorus(md3.Vec{}, md3.Vec{Z: 1}, 10, 2)
	l, _ := NewLineSegment(md3.Vec{X: -15}, md3.Vec{X: 15})
	pts, err := IntersectCurveSurface(l, tor, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 4 {
		t.Fatalf("diameter line should pierce torus 4 times, got %d", len(pts))
	}
}

func TestMarchCylinderCylinder(t *testing.T) {
	// Perpendicular cylinders of radii 2 and 1 intersect in closed curves.
	a, _ := NewCylinder(md3.Vec{}, md3.Vec{Z: 1}, 2, ParamRange{Start: -6, End: 6})
	b, _ := NewCylinder(md3.Vec{}, md3.Vec{X: 1}, 1, ParamRange{Start: -6, End: 6})
	curves, err := IntersectSurfaces(a, b, testTol)
	if err != nil {
		t.Fatal(err)
	}
	if len(curves) == 0 {
		t.Fatal("perpendicular cylinders must intersect")
	}
	for _, sc := range curves {
		for _, ts := range sc.Ts {
			p := sc.Curve.Evaluate(ts)
			_, _, _, da := a.Project(p)
			_, _, _, db := b.Project(p)
			if da > 1e-3 || db > 1e-3 {
				t.Fatalf("march point off surfaces: da=%v db=%v", da, db)
			}
		}
	}
}
