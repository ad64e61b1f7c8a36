package brep

import (
	"math"
	"testing"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

var tol = nmath.DefaultTolerance()

func mustValid(t *testing.T, b *Body) {
	t.Helper()
	if issues := b.Validate(tol); len(issues) > 0 {
		t.Fatalf("invalid body: %v", issues)
	}
}

func counts(b *Body) (v, e, f, l int) {
	return b.VertexCount(), b.EdgeCount(), b.FaceCount(), b.LoopCount()
}

func TestMakeBoxCounts(t *testing.T) {
	b, err := MakeBox(10, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	mustValid(t, b)
	v, e, f, l := counts(b)
	if v != 8 || e != 12 || f != 6 || l != 6 {
		t.Fatalf("box counts V=%d E=%d F=%d L=%d", v, e, f, l)
	}
	if !b.IsClosedSolid() {
		t.Error("box must be a closed solid")
	}
	bb := b.BoundingBox()
	if md3.Norm(md3.Sub(bb.Min, md3.Vec{X: -5, Y: -5, Z: -5})) > 1e-9 ||
		md3.Norm(md3.Sub(bb.Max, md3.Vec{X: 5, Y: 5, Z: 5})) > 1e-9 {
		t.Errorf("box bounds %+v", bb)
	}
	if vol := b.Volume(); math.Abs(vol-1000) > 1 {
		t.Errorf("box volume %v, want 1000", vol)
	}
}

func TestMakeBoxBadDims(t *testing.T) {
	for _, dims := range [][3]float64{{0, 1, 1}, {1, -1, 1}, {1, 1, 0}} {
		if _, err := MakeBox(dims[0], dims[1], dims[2]); err == nil {
			t.Errorf("MakeBox(%v) should fail", dims)
		}
	}
}

func TestMakeCylinderCounts(t *testing.T) {
	b, err := MakeCylinder(3, 10)
	if err != nil {
		t.Fatal(err)
	}
	mustValid(t, b)
	v, e, f, l := counts(b)
	if v != 2 || e != 3 || f != 3 || l != 3 {
		t.Fatalf("cylinder counts V=%d E=%d F=%d L=%d", v, e, f, l)
	}
	if !b.IsClosedSolid() {
		t.Error("cylinder must be closed")
	}
	want := math.Pi * 9 * 10
	if vol := b.Volume(); math.Abs(vol-want) > want*0.02 {
		t.Errorf("cylinder volume %v, want %v", vol, want)
	}
}

func TestMakeSphereCounts(t *testing.T) {
	b, err := MakeSphere(25)
	if err != nil {
		t.Fatal(err)
	}
	mustValid(t, b)
	v, e, f, _ := counts(b)
	if v != 2 || e != 1 || f != 1 {
		t.Fatalf("sphere counts V=%d E=%d F=%d", v, e, f)
	}
	want := 4.0 / 3.0 * math.Pi * 25 * 25 * 25
	if vol := b.Volume(); math.Abs(vol-want) > want*0.02 {
		t.Errorf("sphere volume %v, want %v", vol, want)
	}
	if _, err := MakeSphere(0); err == nil {
		t.Error("sphere with r=0 should fail")
	}
	if _, err := MakeSphere(-2); err == nil {
		t.Error("sphere with r<0 should fail")
	}
}

func TestMakeConeCounts(t *testing.T) {
	b, err := MakeCone(5, 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	mustValid(t, b)
	v, e, f, _ := counts(b)
	if v != 2 || e != 3 || f != 3 {
		t.Fatalf("frustum counts V=%d E=%d F=%d", v, e, f)
	}
	// Full cone loses the top circle.
	b2, err := MakeCone(5, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	mustValid(t, b2)
	v, e, f, _ = counts(b2)
	if v != 2 || e != 2 || f != 2 {
		t.Fatalf("cone counts V=%d E=%d F=%d", v, e, f)
	}
}

func TestMakeTorusCounts(t *testing.T) {
	b, err := MakeTorus(10, 2)
	if err != nil {
		t.Fatal(err)
	}
	mustValid(t, b)
	v, e, f, _ := counts(b)
	if v != 1 || e != 2 || f != 1 {
		t.Fatalf("torus counts V=%d E=%d F=%d", v, e, f)
	}
	if b.Genus() != 1 {
		t.Errorf("torus genus %d, want 1", b.Genus())
	}
	want := 2 * math.Pi * math.Pi * 10 * 2 * 2
	if vol := b.Volume(); math.Abs(vol-want) > want*0.05 {
		t.Errorf("torus volume %v, want %v", vol, want)
	}
}

func TestDeepCopyPreservesIdentities(t *testing.T) {
	b, err := MakeBox(4, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	c := b.DeepCopy()
	mustValid(t, c)
	b.Vertices(func(v VertID) bool {
		pb, _ := b.VertexPosition(v)
		pc, err := c.VertexPosition(v)
		if err != nil {
			t.Fatalf("vertex %d missing on copy: %v", v, err)
		}
		if md3.Norm(md3.Sub(pb, pc)) != 0 {
			t.Fatalf("vertex %d moved on copy", v)
		}
		return true
	})
	// Mutating the copy leaves the original alone.
	c.Transform(nmath.Translating(md3.Vec{X: 100}))
	p, _ := b.VertexPosition(0)
	if p.X > 50 {
		t.Error("copy mutation leaked into source")
	}
}

func TestTransformRigid(t *testing.T) {
	b, err := MakeBox(2, 4, 6)
	if err != nil {
		t.Fatal(err)
	}
	volBefore := b.Volume()
	r, err := nmath.Rotating(md3.Vec{X: 1, Y: 2}, md3.Vec{X: 1, Y: 1, Z: 0.5}, 1.1)
	if err != nil {
		t.Fatal(err)
	}
	tf := r.Then(nmath.Translating(md3.Vec{X: 3, Y: -2, Z: 7}))
	bb := b.BoundingBox()
	b.Transform(tf)
	mustValid(t, b)
	// Transformed box of the original bound contains the new body.
	tbb := nmath.EmptyBox()
	for _, x := range [2]float64{bb.Min.X, bb.Max.X} {
		for _, y := range [2]float64{bb.Min.Y, bb.Max.Y} {
			for _, z := range [2]float64{bb.Min.Z, bb.Max.Z} {
				tbb = nmath.ExtendBox(tbb, tf.Apply(md3.Vec{X: x, Y: y, Z: z}))
			}
		}
	}
	nbb := b.BoundingBox()
	if !nmath.BoxContains(nmath.GrowBox(tbb, 1e-9), nbb.Min) || !nmath.BoxContains(nmath.GrowBox(tbb, 1e-9), nbb.Max) {
		t.Errorf("transformed bound %+v outside %+v", nbb, tbb)
	}
	if vol := b.Volume(); math.Abs(vol-volBefore) > volBefore*0.01 {
		t.Errorf("volume not invariant: %v -> %v", volBefore, vol)
	}
}

func TestMEVThenKEVRestores(t *testing.T) {
	b, _, _, l0, _ := MVFS(md3.Vec{})
	c, err := seg(md3.Vec{}, md3.Vec{X: 1})
	if err != nil {
		t.Fatal(err)
	}
	e, _, err := b.MEVLoop(l0, md3.Vec{X: 1}, c)
	if err != nil {
		t.Fatal(err)
	}
	c2, _ := seg(md3.Vec{X: 1}, md3.Vec{X: 1, Y: 1})
	tip := b.edges[e].c1
	e2, w2, err := b.MEV(tip, md3.Vec{X: 1, Y: 1}, c2)
	if err != nil {
		t.Fatal(err)
	}
	vBefore, eBefore := b.VertexCount(), b.EdgeCount()
	if err := b.KEV(e2); err != nil {
		t.Fatal(err)
	}
	if b.VertexCount() != vBefore-1 || b.EdgeCount() != eBefore-1 {
		t.Error("KEV did not undo MEV")
	}
	if _, err := b.vert(w2); err == nil {
		t.Error("spur vertex should be dead")
	}
	// The remaining loop still walks cleanly.
	if issues := b.Validate(tol); len(issues) > 0 {
		t.Fatalf("after KEV: %v", issues)
	}
}

func TestMEFThenKEFRestores(t *testing.T) {
	// Build a triangle path and close it with MEF, then undo.
	b, _, f0, l0, _ := MVFS(md3.Vec{})
	p1 := md3.Vec{X: 1}
	p2 := md3.Vec{X: 1, Y: 1}
	c01, _ := seg(md3.Vec{}, p1)
	e1, _, err := b.MEVLoop(l0, p1, c01)
	if err != nil {
		t.Fatal(err)
	}
	c12, _ := seg(p1, p2)
	e2, _, err := b.MEV(b.edges[e1].c1, p2, c12)
	if err != nil {
		t.Fatal(err)
	}
	pl, _ := geom.NewPlane(md3.Vec{}, md3.Vec{Z: 1})
	c20, _ := seg(p2, md3.Vec{})
	fBefore := b.FaceCount()
	eNew, fNew, err := b.MEF(b.edges[e2].c1, b.edges[e1].c0, c20, pl, true)
	if err != nil {
		t.Fatal(err)
	}
	if b.FaceCount() != fBefore+1 {
		t.Error("MEF should add a face")
	}
	if err := b.KEF(eNew, f0); err != nil {
		t.Fatal(err)
	}
	if b.FaceCount() != fBefore {
		t.Error("KEF did not remove the face")
	}
	if _, err := b.face(fNew); err == nil {
		t.Error("new face should be dead after KEF")
	}
	if issues := b.Validate(tol); len(issues) > 0 {
		t.Fatalf("after KEF: %v", issues)
	}
}

func TestKEMRRejectsCrossLoopEdge(t *testing.T) {
	b, err := MakeBox(10, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	// A plain box edge has its two uses in different loops, so KEMR
	// must refuse it and leave the body valid.
	var anyEdge EdgeID
	b.Edges(func(e EdgeID) bool { anyEdge = e; return false })
	if _, err := b.KEMR(anyEdge); err == nil {
		t.Error("KEMR must reject an edge whose uses are in different loops")
	}
	mustValid(t, b)
}

func TestSEMVSplitsAndJEKVJoins(t *testing.T) {
	b, err := MakeBox(10, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	var e0 EdgeID
	b.Edges(func(e EdgeID) bool { e0 = e; return false })
	v, e, f, l := counts(b)
	cv, _ := b.EdgeCurve(e0)
	r := cv.ParamRange()
	w, e2, err := b.SEMV(e0, r.Mid())
	if err != nil {
		t.Fatal(err)
	}
	mustValid(t, b)
	v2, e2c, f2, l2 := counts(b)
	if v2 != v+1 || e2c != e+1 || f2 != f || l2 != l {
		t.Fatalf("SEMV deltas wrong: V %d->%d E %d->%d", v, v2, e, e2c)
	}
	if _, err := b.edge(e2); err != nil {
		t.Fatal(err)
	}
	// JEKV merges back.
	if _, err := b.JEKV(w); err != nil {
		t.Fatal(err)
	}
	mustValid(t, b)
	v3, e3, f3, l3 := counts(b)
	if v3 != v || e3 != e || f3 != f || l3 != l {
		t.Fatalf("JEKV did not restore counts: V=%d E=%d F=%d L=%d", v3, e3, f3, l3)
	}
}

func TestEulerPrecondAtomicity(t *testing.T) {
	b, err := MakeBox(4, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	v, e, f, l := counts(b)
	// MEF with coedges from different loops must fail cleanly.
	var c1, c2 CoedgeID
	first := true
	b.Faces(func(fid FaceID) bool {
		lid, _ := b.FaceOuterLoop(fid)
		b.LoopCoedges(lid, func(c CoedgeID) bool {
			if first {
				c1 = c
				first = false
			} else {
				c2 = c
			}
			return false
		})
		return false
	})
	// c2 never assigned from a second face above; grab one explicitly.
	n := 0
	b.Faces(func(fid FaceID) bool {
		n++
		if n == 2 {
			lid, _ := b.FaceOuterLoop(fid)
			b.LoopCoedges(lid, func(c CoedgeID) bool { c2 = c; return false })
			return false
		}
		return true
	})
	cv, _ := seg(md3.Vec{}, md3.Vec{X: 1})
	if _, _, err := b.MEF(c1, c2, cv, nil, true); err == nil {
		t.Fatal("cross-loop MEF must fail")
	}
	v2, e2, f2, l2 := counts(b)
	if v != v2 || e != e2 || f != f2 || l != l2 {
		t.Error("failed MEF mutated the body")
	}
	mustValid(t, b)
}

func TestInteriorPoint(t *testing.T) {
	b, err := MakeBox(10, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	b.Faces(func(f FaceID) bool {
		p, _, _, err := b.InteriorPoint(f)
		if err != nil {
			t.Fatalf("face %d: %v", f, err)
		}
		surf, _ := b.FaceSurface(f)
		_, _, _, dist := surf.Project(p)
		if dist > 1e-9 {
			t.Fatalf("interior point off face %d by %v", f, dist)
		}
		return true
	})
}
