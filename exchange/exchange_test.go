package exchange

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
	"github.com/novacad/nova/tess"
)

func roundTripSTEP(t *testing.T, body *brep.Body, schema Schema) *brep.Body {
	t.Helper()
	var buf bytes.Buffer
	w := &StepWriter{Schema: schema}
	if err := w.Write(body, &buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := &StepReader{}
	out, err := r.Read(buf.String())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	return out
}

func TestStepRoundTripSphere(t *testing.T) {
	body, err := brep.MakeSphere(25)
	if err != nil {
		t.Fatal(err)
	}
	out := roundTripSTEP(t, body, AP214)
	if issues := out.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
		t.Fatalf("reimported sphere invalid: %v", issues)
	}
	if fc := out.FaceCount(); fc != 1 {
		t.Errorf("reimported sphere has %d faces, want 1", fc)
	}
	if vc := out.VertexCount(); vc != 1 && vc != 2 {
		t.Errorf("reimported sphere has %d seam vertices, want 1 or 2", vc)
	}
	found := false
	out.Faces(func(f brep.FaceID) bool {
		if s, _ := out.FaceSurface(f); s != nil {
			if sp, ok := s.(*geom.Sphere); ok && math.Abs(sp.Radius()-25) < 1e-6 {
				found = true
			}
		}
		return false
	})
	if !found {
		t.Error("spherical surface of radius 25 not preserved")
	}
}

func TestStepRoundTripBoxTopology(t *testing.T) {
	body, err := brep.MakeBox(10, 8, 6)
	if err != nil {
		t.Fatal(err)
	}
	for _, schema := range []Schema{AP214, AP242} {
		out := roundTripSTEP(t, body, schema)
		if issues := out.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
			t.Fatalf("%v: invalid: %v", schema, issues)
		}
		if out.VertexCount() != body.VertexCount() ||
			out.EdgeCount() != body.EdgeCount() ||
			out.FaceCount() != body.FaceCount() {
			t.Errorf("%v: topology changed: (%d,%d,%d) -> (%d,%d,%d)", schema,
				body.VertexCount(), body.EdgeCount(), body.FaceCount(),
				out.VertexCount(), out.EdgeCount(), out.FaceCount())
		}
		if math.Abs(out.Volume()-body.Volume()) > 1 {
			t.Errorf("%v: volume drifted: %v -> %v", schema, body.Volume(), out.Volume())
		}
	}
}

func TestStepRoundTripCylinder(t *testing.T) {
	body, err := brep.MakeCylinder(3, 10)
	if err != nil {
		t.Fatal(err)
	}
	out := roundTripSTEP(t, body, AP214)
	if issues := out.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
		t.Fatalf("invalid: %v", issues)
	}
	if out.FaceCount() != 3 || out.EdgeCount() != 3 || out.VertexCount() != 2 {
		t.Errorf("cylinder topology changed: V=%d E=%d F=%d",
			out.VertexCount(), out.EdgeCount(), out.FaceCount())
	}
	// Analytic surfaces preserved natively, not splined.
	kinds := map[geom.SurfaceKind]int{}
	out.Faces(func(f brep.FaceID) bool {
		s, _ := out.FaceSurface(f)
		kinds[s.Kind()]++
		return true
	})
	if kinds[geom.KindCylinder] != 1 || kinds[geom.KindPlane] != 2 {
		t.Errorf("surface families not preserved: %v", kinds)
	}
}

func TestStepSchemaHeader(t *testing.T) {
	body, err := brep.MakeBox(1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	w := &StepWriter{Schema: AP242}
	if err := w.Write(body, &buf); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	if !strings.Contains(text, "AP242_MANAGED_MODEL_BASED_3D_ENGINEERING") {
		t.Error("AP242 schema identifier missing")
	}
	if !strings.HasPrefix(text, "ISO-10303-21;") {
		t.Error("missing ISO-10303-21 prologue")
	}
	if !strings.Contains(text, "MANIFOLD_SOLID_BREP") {
		t.Error("missing solid root entity")
	}
}

func TestStepParseErrors(t *testing.T) {
	r := &StepReader{}
	if _, err := r.Read("garbage"); err == nil {
		t.Error("garbage must not parse")
	}
	var perr *ParseError
	_, err := r.Read("ISO-10303-21;\nHEADER;\nENDSEC;\nDATA;\n#1=@@@;\nENDSEC;")
	if !errors.As(err, &perr) {
		t.Errorf("want *ParseError, got %v", err)
	}
	// Dangling reference.
	_, err = r.Read(`ISO-10303-21;
HEADER;
ENDSEC;
DATA;
#1=MANIFOLD_SOLID_BREP('',#99);
ENDSEC;`)
	var uerr *UnresolvedReference
	if !errors.As(err, &uerr) || uerr.ID != 99 {
		t.Errorf("want UnresolvedReference(99), got %v", err)
	}
}

func TestNativeDumpRoundTrip(t *testing.T) {
	for name, mk := range map[string]func() (*brep.Body, error){
		"box":      func() (*brep.Body, error) { return brep.MakeBox(10, 8, 6) },
		"cylinder": func() (*brep.Body, error) { return brep.MakeCylinder(3, 10) },
		"sphere":   func() (*brep.Body, error) { return brep.MakeSphere(25) },
		"torus":    func() (*brep.Body, error) { return brep.MakeTorus(10, 2) },
	} {
		body, err := mk()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		var buf bytes.Buffer
		if err := WriteNative(body, &buf); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		out, err := ReadNative(&buf)
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		if issues := out.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
			t.Fatalf("%s: invalid after round trip: %v", name, issues)
		}
		if out.VertexCount() != body.VertexCount() ||
			out.EdgeCount() != body.EdgeCount() ||
			out.FaceCount() != body.FaceCount() {
			t.Errorf("%s: topology changed", name)
		}
		if math.Abs(out.Volume()-body.Volume()) > math.Abs(body.Volume())*0.01 {
			t.Errorf("%s: volume drifted %v -> %v", name, body.Volume(), out.Volume())
		}
	}
}

func TestNativeDumpRejectsWrongMagic(t *testing.T) {
	if _, err := ReadNative(bytes.NewReader([]byte("XXXX\x01"))); err == nil {
		t.Error("wrong magic must fail")
	}
}

func TestBinarySTLLayout(t *testing.T) {
	body, err := brep.MakeBox(2, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := tess.Tessellate(body, tess.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	tris, err := tess.RenderAll(tess.NewMeshRenderer(mesh), nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := WriteBinarySTL(&buf, tris)
	if err != nil {
		t.Fatal(err)
	}
	want := 80 + 4 + 50*len(tris)
	if n != want || buf.Len() != want {
		t.Errorf("binary STL size %d, want %d", buf.Len(), want)
	}
}

func TestASCIISTLForm(t *testing.T) {
	body, err := brep.MakeBox(2, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := tess.Tessellate(body, tess.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	tris, err := tess.RenderAll(tess.NewMeshRenderer(mesh), nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteASCIISTL(&buf, "box", tris); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	if !strings.HasPrefix(text, "solid box") || !strings.Contains(text, "endsolid box") {
		t.Error("ASCII STL frame malformed")
	}
	if got := strings.Count(text, "facet normal"); got != len(tris) {
		t.Errorf("%d facets written, want %d", got, len(tris))
	}
}

func TestSaveLoadNativeFiles(t *testing.T) {
	dir := t.TempDir()
	body, err := brep.MakeBox(3, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "body.nova")
	if err := SaveNative(body, path); err != nil {
		t.Fatal(err)
	}
	out, err := LoadNative(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.FaceCount() != 6 {
		t.Errorf("loaded %d faces, want 6", out.FaceCount())
	}
}
