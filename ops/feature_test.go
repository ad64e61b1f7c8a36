package ops

import (
	"errors"
	"math"
	"testing"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

func squareProfile(side float64) Profile {
	h := side / 2
	return Profile{Points: []md3.Vec{
		{X: -h, Y: -h}, {X: h, Y: -h}, {X: h, Y: h}, {X: -h, Y: h},
	}}
}

func TestExtrudeSquareIsBox(t *testing.T) {
	out, err := Extrude(squareProfile(4), md3.Vec{Z: 1}, 5, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if v, e, f := out.VertexCount(), out.EdgeCount(), out.FaceCount(); v != 8 || e != 12 || f != 6 {
		t.Errorf("extruded box counts V=%d E=%d F=%d", v, e, f)
	}
	if vol := out.Volume(); relErr(vol, 80) > 0.01 {
		t.Errorf("extruded volume %v, want 80", vol)
	}
}

func TestExtrudeBadInputs(t *testing.T) {
	if _, err := Extrude(squareProfile(4), md3.Vec{}, 5, DefaultOptions()); err == nil {
		t.Error("zero direction must fail")
	}
	if _, err := Extrude(squareProfile(4), md3.Vec{Z: 1}, -1, DefaultOptions()); err == nil {
		t.Error("negative distance must fail")
	}
	if _, err := Extrude(Profile{Points: []md3.Vec{{X: 1}, {X: 2}}}, md3.Vec{Z: 1}, 5, DefaultOptions()); err == nil {
		t.Error("two-point profile must fail")
	}
	skew := Profile{Points: []md3.Vec{{X: 0}, {X: 1}, {X: 1, Y: 1, Z: 3}, {Y: 1}}}
	if _, err := Extrude(skew, md3.Vec{Z: 1}, 5, DefaultOptions()); err == nil {
		t.Error("non-planar profile must fail")
	}
}

func TestRevolveRectangleFull(t *testing.T) {
	// A rectangle offset from the axis revolves into a washer: genus
	// one, cylinder inner/outer walls, planar top/bottom.
	prof := Profile{Points: []md3.Vec{
		{X: 2, Z: -1}, {X: 4, Z: -1}, {X: 4, Z: 1}, {X: 2, Z: 1},
	}}
	out, err := Revolve(prof, md3.Vec{}, md3.Vec{Z: 1}, 2*math.Pi, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if fc := out.FaceCount(); fc != 4 {
		t.Errorf("washer has %d faces, want 4", fc)
	}
	if g := out.Genus(); g != 1 {
		t.Errorf("washer genus %d, want 1", g)
	}
	// Volume: pi*(R2^2 - R1^2)*h.
	want := math.Pi * (16 - 4) * 2
	if vol := out.Volume(); relErr(vol, want) > 0.02 {
		t.Errorf("washer volume %v, want %v", vol, want)
	}
}

func TestRevolvePartialHasCaps(t *testing.T) {
	prof := Profile{Points: []md3.Vec{
		{X: 2, Z: -1}, {X: 4, Z: -1}, {X: 4, Z: 1}, {X: 2, Z: 1},
	}}
	out, err := Revolve(prof, md3.Vec{}, md3.Vec{Z: 1}, math.Pi/2, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if fc := out.FaceCount(); fc != 6 {
		t.Errorf("quarter washer has %d faces, want 6 (4 walls + 2 caps)", fc)
	}
	want := math.Pi * (16 - 4) * 2 / 4
	if vol := out.Volume(); relErr(vol, want) > 0.02 {
		t.Errorf("quarter washer volume %v, want %v", vol, want)
	}
}

func TestRevolveRejectsAxisTouch(t *testing.T) {
	prof := Profile{Points: []md3.Vec{
		{X: 0, Z: -1}, {X: 2, Z: -1}, {X: 2, Z: 1}, {X: 0, Z: 1},
	}}
	if _, err := Revolve(prof, md3.Vec{}, md3.Vec{Z: 1}, 2*math.Pi, DefaultOptions()); err == nil {
		t.Error("profile touching the axis must be rejected")
	}
}

func TestLoftPrism(t *testing.T) {
	bottom := squareProfile(4)
	top := squareProfile(4)
	for i := range top.Points {
		top.Points[i].Z = 6
	}
	out, err := Loft([]Profile{bottom, top}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if vol := out.Volume(); relErr(vol, 96) > 0.05 {
		t.Errorf("loft volume %v, want 96", vol)
	}
}

func TestLoftRejectsIdenticalProfiles(t *testing.T) {
	p := squareProfile(4)
	if _, err := Loft([]Profile{p, p}, DefaultOptions()); err == nil {
		t.Error("identical profiles must be rejected")
	}
	if !errors.Is(errIdenticalLoft(t), ErrParameter) {
		t.Error("identical profiles map to the parameter error")
	}
}

func errIdenticalLoft(t *testing.T) error {
	t.Helper()
	p := squareProfile(4)
	_, err := Loft([]Profile{p, p}, DefaultOptions())
	return err
}

func TestSweepStraightPathMatchesExtrude(t *testing.T) {
	path, err := geom.NewLineSegment(md3.Vec{}, md3.Vec{Z: 8})
	if err != nil {
		t.Fatal(err)
	}
	out, err := Sweep(squareProfile(2), path, SweepOptions{}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if vol := out.Volume(); relErr(vol, 32) > 0.05 {
		t.Errorf("swept volume %v, want 32", vol)
	}
}

func TestChamferCubeEdge(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	e := findVerticalEdge(t, box)
	out, err := Chamfer(box, []brep.EdgeID{e}, 1, 1, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if fc := out.FaceCount(); fc != 7 {
		t.Errorf("chamfered cube has %d faces, want 7", fc)
	}
	// Removed prism: right triangle legs 1x1 along height 10.
	want := 1000 - 0.5*10
	if vol := out.Volume(); relErr(vol, want) > 0.01 {
		t.Errorf("chamfered volume %v, want %v", vol, want)
	}
}

func TestFilletCubeEdge(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	e := findVerticalEdge(t, box)
	out, err := Fillet(box, []brep.EdgeID{e}, 1, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if fc := out.FaceCount(); fc != 7 {
		t.Errorf("filleted cube has %d faces, want 7 (4 untouched + 2 trimmed + blend)", fc)
	}
	// The new face is a cylinder of the fillet radius.
	foundCyl := false
	out.Faces(func(f brep.FaceID) bool {
		if s, _ := out.FaceSurface(f); s != nil {
			if c, ok := s.(*geom.Cylinder); ok && nmath.EqualWithin(c.Radius(), 1, 1e-9) {
				foundCyl = true
				return false
			}
		}
		return true
	})
	if !foundCyl {
		t.Error("fillet face must be a radius-1 cylinder")
	}
	want := 1000 - (1-math.Pi/4)*10
	if vol := out.Volume(); relErr(vol, want) > 0.01 {
		t.Errorf("filleted volume %v, want %v", vol, want)
	}
}

func TestFilletIdempotentTopology(t *testing.T) {
	mk := func() *brep.Body {
		box := mustBox(t, 10, 10, 10)
		e := findVerticalEdge(t, box)
		out, err := Fillet(box, []brep.EdgeID{e}, 1, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		return out
	}
	a := mk()
	b := mk()
	if a.FaceCount() != b.FaceCount() || a.EdgeCount() != b.EdgeCount() || a.VertexCount() != b.VertexCount() {
		t.Error("same fillet twice must give isomorphic topology")
	}
}

func TestFilletRadiusTooLarge(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	e := findVerticalEdge(t, box)
	if _, err := Fillet(box, []brep.EdgeID{e}, 50, DefaultOptions()); err == nil {
		t.Fatal("oversized fillet must fail")
	}
	// Inputs preserved on the failure path.
	mustValidSolid(t, box)
}

func TestShellBoxOpenTop(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	top := findTopFace(t, box)
	out, err := Shell(box, []brep.FaceID{top}, 1, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	// Open-top shell: walls 1 thick on five sides.
	want := 1000.0 - 8*8*9
	if vol := out.Volume(); relErr(vol, want) > 0.03 {
		t.Errorf("shelled volume %v, want %v", vol, want)
	}
	mustValidSolid(t, box)
}

func TestShellClosedVoid(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	out, err := Shell(box, nil, 1, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if out.ShellCount() != 2 {
		t.Errorf("closed shell should carry a void shell, got %d shells", out.ShellCount())
	}
	want := 1000.0 - 8*8*8
	if vol := out.Volume(); relErr(vol, want) > 0.03 {
		t.Errorf("hollowed volume %v, want %v", vol, want)
	}
}

func TestShellExcessiveThickness(t *testing.T) {
	cyl, err := brep.MakeCylinder(2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Shell(cyl, nil, 3, DefaultOptions()); err == nil {
		t.Error("thickness beyond the radius of curvature must fail")
	}
}

func TestDraftFace(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	// Draft a side face about the bottom plane.
	var side brep.FaceID = brep.NilID
	box.Faces(func(f brep.FaceID) bool {
		if s, _ := box.FaceSurface(f); s != nil {
			if p, ok := s.(*geom.Plane); ok && math.Abs(p.PlaneNormal().Z) < 1e-9 {
				side = f
				return false
			}
		}
		return true
	})
	if side.IsNil() {
		t.Fatal("no side face found")
	}
	neutral, err := geom.NewPlane(md3.Vec{Z: -5}, md3.Vec{Z: 1})
	if err != nil {
		t.Fatal(err)
	}
	out, err := Draft(box, []brep.FaceID{side}, neutral, md3.Vec{Z: 1}, 0.05, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if relErr(out.Volume(), 1000) > 0.06 {
		t.Errorf("draft changed volume too much: %v", out.Volume())
	}
}

func findVerticalEdge(t *testing.T, b *brep.Body) brep.EdgeID {
	t.Helper()
	found := brep.EdgeID(brep.NilID)
	b.Edges(func(e brep.EdgeID) bool {
		c, _ := b.EdgeCurve(e)
		if l, ok := c.(*geom.Line); ok {
			if math.Abs(math.Abs(l.Direction().Z)-1) < 1e-9 {
				found = e
				return false
			}
		}
		return true
	})
	if found.IsNil() {
		t.Fatal("no vertical edge on box")
	}
	return found
}

func findTopFace(t *testing.T, b *brep.Body) brep.FaceID {
	t.Helper()
	found := brep.FaceID(brep.NilID)
	b.Faces(func(f brep.FaceID) bool {
		s, _ := b.FaceSurface(f)
		if p, ok := s.(*geom.Plane); ok {
			if p.PlaneNormal().Z > 0.9 || p.PlaneNormal().Z < -0.9 {
				if p.Origin().Z > 0 {
					found = f
					return false
				}
			}
		}
		return true
	})
	if found.IsNil() {
		t.Fatal("no top face on box")
	}
	return found
}
