package ops

import (
	"context"
	"math"
	"testing"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/nmath"
)

func mustBox(t *testing.T, w, h, d float64) *brep.Body {
	t.Helper()
	b, err := brep.MakeBox(w, h, d)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func mustValidSolid(t *testing.T, b *brep.Body) {
	t.Helper()
	if issues := b.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
		t.Fatalf("invalid result: %v", issues)
	}
	if !b.IsClosedSolid() {
		t.Fatal("result is not a closed solid")
	}
}

func relErr(got, want float64) float64 {
	return math.Abs(got-want) / math.Abs(want)
}

func TestUniteOverlappingCubes(t *testing.T) {
	a := mustBox(t, 10, 10, 10)
	b := mustBox(t, 10, 10, 10)
	b.Transform(nmath.Translating(md3.Vec{X: 5, Y: 5, Z: 5}))
	out, err := Unite(a, b, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if vol := out.Volume(); relErr(vol, 1875) > 0.02 {
		t.Errorf("union volume %v, want 1875", vol)
	}
	if fc := out.FaceCount(); fc < 9 {
		t.Errorf("union face count %d, want at least 9", fc)
	}
	// Inputs are untouched.
	if a.Released() || b.Released() {
		t.Error("Boolean must not consume its inputs")
	}
	mustValidSolid(t, a)
}

func TestSubtractDrillThroughHole(t *testing.T) {
	box := mustBox(t, 20, 20, 10)
	cyl, err := brep.MakeCylinder(3, 20)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Subtract(box, cyl, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if fc := out.FaceCount(); fc != 7 {
		t.Errorf("drilled box has %d faces, want 7", fc)
	}
	if g := out.Genus(); g != 1 {
		t.Errorf("drilled box genus %d, want 1 (through hole)", g)
	}
	want := 20*20*10 - math.Pi*9*10
	if vol := out.Volume(); relErr(vol, want) > 0.02 {
		t.Errorf("drilled volume %v, want %v", vol, want)
	}
}

func TestIntersectDisjointIsEmpty(t *testing.T) {
	a := mustBox(t, 2, 2, 2)
	b := mustBox(t, 2, 2, 2)
	b.Transform(nmath.Translating(md3.Vec{X: 100}))
	out, err := Intersect(a, b, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsEmpty() {
		t.Error("disjoint intersection must be the empty body")
	}
}

func TestUniteDisjointKeepsBoth(t *testing.T) {
	a := mustBox(t, 2, 2, 2)
	b := mustBox(t, 2, 2, 2)
	b.Transform(nmath.Translating(md3.Vec{X: 100}))
	out, err := Unite(a, b, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if out.FaceCount() != 12 || out.ShellCount() != 2 {
		t.Errorf("disjoint union: faces=%d shells=%d", out.FaceCount(), out.ShellCount())
	}
	if vol := out.Volume(); relErr(vol, 16) > 0.02 {
		t.Errorf("disjoint union volume %v, want 16", vol)
	}
}

func TestCoincidentBodies(t *testing.T) {
	opt := DefaultOptions()
	a := mustBox(t, 4, 4, 4)
	b := mustBox(t, 4, 4, 4)
	union, err := Unite(a, b, opt)
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, union)
	if relErr(union.Volume(), 64) > 0.02 {
		t.Errorf("identical unite volume %v, want 64", union.Volume())
	}
	if union.FaceCount() != 6 {
		t.Errorf("identical unite faces %d, want 6", union.FaceCount())
	}
	diff, err := Subtract(a, b, opt)
	if err != nil {
		t.Fatal(err)
	}
	if !diff.IsEmpty() {
		t.Error("identical subtract must be empty")
	}
	inter, err := Intersect(a, b, opt)
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, inter)
	if relErr(inter.Volume(), 64) > 0.02 {
		t.Errorf("identical intersect volume %v, want 64", inter.Volume())
	}
}

func TestSubtractEmptyOperand(t *testing.T) {
	a := mustBox(t, 3, 3, 3)
	empty := brep.NewEmptyBody()
	out, err := Subtract(a, empty, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, out)
	if relErr(out.Volume(), 27) > 0.02 {
		t.Errorf("A minus empty must be A; volume %v", out.Volume())
	}
	out2, err := Subtract(empty, a, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !out2.IsEmpty() {
		t.Error("empty minus A must be empty")
	}
}

func TestBooleanCommutativity(t *testing.T) {
	opt := DefaultOptions()
	mk := func() (*brep.Body, *brep.Body) {
		a := mustBox(t, 10, 10, 10)
		b := mustBox(t, 10, 10, 10)
		b.Transform(nmath.Translating(md3.Vec{X: 5, Y: 5, Z: 5}))
		return a, b
	}
	a1, b1 := mk()
	ab, err := Unite(a1, b1, opt)
	if err != nil {
		t.Fatal(err)
	}
	a2, b2 := mk()
	ba, err := Unite(b2, a2, opt)
	if err != nil {
		t.Fatal(err)
	}
	if ab.FaceCount() != ba.FaceCount() || ab.EdgeCount() != ba.EdgeCount() || ab.VertexCount() != ba.VertexCount() {
		t.Errorf("unite not symmetric: (%d,%d,%d) vs (%d,%d,%d)",
			ab.VertexCount(), ab.EdgeCount(), ab.FaceCount(),
			ba.VertexCount(), ba.EdgeCount(), ba.FaceCount())
	}
	if relErr(ab.Volume(), ba.Volume()) > 0.01 {
		t.Errorf("unite volumes differ: %v vs %v", ab.Volume(), ba.Volume())
	}

	a3, b3 := mk()
	iab, err := Intersect(a3, b3, opt)
	if err != nil {
		t.Fatal(err)
	}
	a4, b4 := mk()
	iba, err := Intersect(b4, a4, opt)
	if err != nil {
		t.Fatal(err)
	}
	mustValidSolid(t, iab)
	if relErr(iab.Volume(), 125) > 0.02 {
		t.Errorf("intersection volume %v, want 125", iab.Volume())
	}
	if relErr(iab.Volume(), iba.Volume()) > 0.01 {
		t.Errorf("intersect volumes differ: %v vs %v", iab.Volume(), iba.Volume())
	}
}

func TestBooleanRejectsOpenShell(t *testing.T) {
	a := mustBox(t, 2, 2, 2)
	// A lone bootstrap body is not a closed solid.
	open, _, _, _, _ := brep.MVFS(md3.Vec{})
	if _, err := Unite(a, open, DefaultOptions()); err == nil {
		t.Error("Boolean must reject open shells")
	}
}

func TestBooleanCancellation(t *testing.T) {
	a := mustBox(t, 10, 10, 10)
	b := mustBox(t, 10, 10, 10)
	b.Transform(nmath.Translating(md3.Vec{X: 5, Y: 5, Z: 5}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opt := DefaultOptions()
	opt.Ctx = ctx
	if _, err := Unite(a, b, opt); err == nil {
		t.Error("cancelled context must abort the Boolean")
	}
	// Inputs stay valid after cancellation.
	mustValidSolid(t, a)
	mustValidSolid(t, b)
}
