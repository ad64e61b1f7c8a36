package direct

import (
	"math"
	"testing"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
	"github.com/novacad/nova/ops"
)

func mustBox(t *testing.T, w, h, d float64) *brep.Body {
	t.Helper()
	b, err := brep.MakeBox(w, h, d)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func faceWithNormal(t *testing.T, b *brep.Body, want md3.Vec) brep.FaceID {
	t.Helper()
	tc := nmath.DefaultTolerance()
	found := brep.FaceID(brep.NilID)
	b.Faces(func(f brep.FaceID) bool {
		s, _ := b.FaceSurface(f)
		p, ok := s.(*geom.Plane)
		if !ok {
			return true
		}
		n := p.PlaneNormal()
		if same, _ := b.FaceSameSense(f); !same {
			n = md3.Scale(-1, n)
		}
		if tc.SameDirection(n, want) {
			found = f
			return false
		}
		return true
	})
	if found.IsNil() {
		t.Fatalf("no face with normal %+v", want)
	}
	return found
}

func TestMoveFaceGrowsBox(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	f := faceWithNormal(t, box, md3.Vec{X: 1})
	s, err := Begin(box, ops.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	s.DisableAllRules()
	if err := s.MoveFace(f, md3.Vec{X: 2}); err != nil {
		t.Fatal(err)
	}
	out, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if issues := out.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
		t.Fatalf("solved body invalid: %v", issues)
	}
	if vol := out.Volume(); math.Abs(vol-1200) > 12 {
		t.Errorf("grown volume %v, want 1200", vol)
	}
	// The source body is untouched until End commits.
	if vol := box.Volume(); math.Abs(vol-1000) > 10 {
		t.Errorf("source mutated during edit: %v", vol)
	}
}

func TestOffsetFaceShrinksBox(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	f := faceWithNormal(t, box, md3.Vec{Z: 1})
	s, err := Begin(box, ops.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	s.DisableAllRules()
	if err := s.OffsetFace(f, -3); err != nil {
		t.Fatal(err)
	}
	out, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if vol := out.Volume(); math.Abs(vol-700) > 7 {
		t.Errorf("shrunk volume %v, want 700", vol)
	}
}

func TestApplyDimension(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	f := faceWithNormal(t, box, md3.Vec{X: 1})
	ref := faceWithNormal(t, box, md3.Vec{X: -1})
	s, err := Begin(box, ops.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	s.DisableAllRules()
	if err := s.ApplyDimension(f, ref, 14); err != nil {
		t.Fatal(err)
	}
	out, err := s.Solve()
	if err != nil {
		t.Fatal(err)
	}
	bb := out.BoundingBox()
	if got := bb.Max.X - bb.Min.X; math.Abs(got-14) > 1e-6 {
		t.Errorf("dimension drove width to %v, want 14", got)
	}
}

func TestDetectRelationsOnBox(t *testing.T) {
	box := mustBox(t, 10, 10, 10)
	rels := DetectRelations(box, nmath.DefaultTolerance())
	var parallel, perp int
	for _, r := range rels {
		switch r.Kind {
		case Parallel:
			parallel++
		case Perpendicular:
			perp++
		}
	}
	// Box: 3 opposite pairs parallel, 12 perpendicular pairs.
	if parallel != 3 {
		t.Errorf("parallel pairs %d, want 3", parallel)
	}
	if perp != 12 {
		t.Errorf("perpendicular pairs %d, want 12", perp)
	}
}

func TestConcentricRuleCouplesOffset(t *testing.T) {
	// A drilled box has the hole wall; a washer has two concentric
	// cylinder walls whose concentric rule couples offsets.
	prof := ops.Profile{Points: []md3.Vec{
		{X: 2, Z: -1}, {X: 4, Z: -1}, {X: 4, Z: 1}, {X: 2, Z: 1},
	}}
	washer, err := ops.Revolve(prof, md3.Vec{}, md3.Vec{Z: 1}, 2*math.Pi, ops.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	rels := DetectRelations(washer, nmath.DefaultTolerance())
	foundConcentric := false
	for _, r := range rels {
		if r.Kind == Concentric {
			foundConcentric = true
		}
	}
	if !foundConcentric {
		t.Fatal("washer walls must register a concentric rule")
	}
	s, err := Begin(washer, ops.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	var outerWall brep.FaceID = brep.NilID
	washer.Faces(func(f brep.FaceID) bool {
		if s2, _ := washer.FaceSurface(f); s2 != nil {
			if c, ok := s2.(*geom.Cylinder); ok && math.Abs(c.Radius()-4) < 1e-9 {
				outerWall = f
				return false
			}
		}
		return true
	})
	if outerWall.IsNil() {
		t.Fatal("no outer wall")
	}
	if err := s.OffsetFace(outerWall, 1); err != nil {
		t.Fatal(err)
	}
	// The concentric partner follows, so both offsets are recorded.
	if len(s.offset) != 2 {
		t.Errorf("coupled offsets %d, want 2 (rule propagation)", len(s.offset))
	}
	s.DisableAllRules()
}

func TestRecognizeDrilledHole(t *testing.T) {
	box := mustBox(t, 20, 20, 10)
	cyl, err := brep.MakeCylinder(3, 20)
	if err != nil {
		t.Fatal(err)
	}
	drilled, err := ops.Subtract(box, cyl, ops.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	feats := RecognizeFeatures(drilled, nmath.DefaultTolerance())
	found := false
	for _, ft := range feats {
		if ft.Kind == Hole && math.Abs(ft.Params["radius"]-3) < 1e-6 {
			found = true
		}
	}
	if !found {
		t.Errorf("drilled hole not recognized; features: %+v", feats)
	}
}

func TestSessionEndWithoutCommit(t *testing.T) {
	box := mustBox(t, 4, 4, 4)
	s, err := Begin(box, ops.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	out, err := s.End(false)
	if err != nil {
		t.Fatal(err)
	}
	if out != box {
		t.Error("uncommitted end must return the source body")
	}
	if _, err := s.Solve(); err != ErrNoSession {
		t.Error("ended session must refuse further work")
	}
}
