package tess

import (
	"math"
	"testing"

	"github.com/soypat/geometry/ms3"

	"github.com/novacad/nova/brep"
)

func TestSphereChordBound(t *testing.T) {
	body, err := brep.MakeSphere(10)
	if err != nil {
		t.Fatal(err)
	}
	opt := DefaultOptions()
	opt.ChordTol = 0.1
	mesh, err := Tessellate(body, opt)
	if err != nil {
		t.Fatal(err)
	}
	if mesh.TriangleCount() == 0 {
		t.Fatal("empty sphere mesh")
	}
	for i, v := range mesh.Vertices {
		r := math.Sqrt(float64(v.Position.X*v.Position.X + v.Position.Y*v.Position.Y + v.Position.Z*v.Position.Z))
		if math.Abs(r-10) > 0.1 {
			t.Fatalf("vertex %d strays %v from the sphere", i, math.Abs(r-10))
		}
	}
	// Triangle count scales like O(r²/τ) within a loose constant.
	if n := mesh.TriangleCount(); n > 200000 {
		t.Errorf("sphere mesh unreasonably dense: %d triangles", n)
	}
}

func TestBoxMeshWatertight(t *testing.T) {
	body, err := brep.MakeBox(4, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := Tessellate(body, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	assertWatertight(t, mesh)
	// All vertices on the box surface.
	for i, v := range mesh.Vertices {
		linf := math.Max(math.Abs(float64(v.Position.X)),
			math.Max(math.Abs(float64(v.Position.Y)), math.Abs(float64(v.Position.Z))))
		if math.Abs(linf-2) > 1e-4 {
			t.Fatalf("vertex %d off the box: %v", i, v.Position)
		}
	}
}

func TestCylinderMeshWatertight(t *testing.T) {
	body, err := brep.MakeCylinder(3, 8)
	if err != nil {
		t.Fatal(err)
	}
	opt := DefaultOptions()
	opt.ChordTol = 0.01
	mesh, err := Tessellate(body, opt)
	if err != nil {
		t.Fatal(err)
	}
	assertWatertight(t, mesh)
}

// assertWatertight checks that every triangle edge is shared by
// exactly two triangles (in opposite directions).
func assertWatertight(t *testing.T, m *Mesh) {
	t.Helper()
	if m.TriangleCount() == 0 {
		t.Fatal("empty mesh")
	}
	type ek [2]uint32
	counts := map[ek]int{}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		tri := [3]uint32{m.Indices[i], m.Indices[i+1], m.Indices[i+2]}
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			counts[ek{a, b}]++
		}
	}
	open := 0
	for _, c := range counts {
		if c != 2 {
			open++
		}
	}
	if open > 0 {
		t.Errorf("%d of %d mesh edges are not shared by exactly two triangles", open, len(counts))
	}
}

func TestNormalsAreUnitAndOutward(t *testing.T) {
	body, err := brep.MakeSphere(5)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := Tessellate(body, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range mesh.Vertices {
		n := v.Normal
		mag := math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z))
		if math.Abs(mag-1) > 1e-3 {
			t.Fatalf("vertex %d normal magnitude %v", i, mag)
		}
		// Outward on a sphere means along the position.
		dot := float64(n.X*v.Position.X + n.Y*v.Position.Y + n.Z*v.Position.Z)
		if dot < 0 {
			t.Fatalf("vertex %d normal points inward", i)
		}
	}
}

func TestRendererStreamsAllTriangles(t *testing.T) {
	body, err := brep.MakeBox(2, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := Tessellate(body, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	tris, err := RenderAll(NewMeshRenderer(mesh), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) != mesh.TriangleCount() {
		t.Errorf("renderer streamed %d of %d triangles", len(tris), mesh.TriangleCount())
	}
	var zero ms3.Triangle
	for _, tr := range tris {
		if tr == zero {
			t.Fatal("zero triangle leaked from renderer")
		}
	}
}

func TestTessellateRejectsBadTolerances(t *testing.T) {
	body, err := brep.MakeBox(1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Tessellate(body, Options{ChordTol: 0, AngleTol: 1}); err == nil {
		t.Error("zero chord tolerance must fail")
	}
	if _, err := Tessellate(body, Options{ChordTol: 1e-3, AngleTol: -1}); err == nil {
		t.Error("negative angle tolerance must fail")
	}
}
