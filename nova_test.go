package nova

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/nmath"
)

func initKernel(t *testing.T) {
	t.Helper()
	Shutdown()
	if err := Initialize(nmath.DefaultTolerance()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(Shutdown)
}

func TestLifecycle(t *testing.T) {
	Shutdown()
	if err := Initialize(nmath.DefaultTolerance()); err != nil {
		t.Fatal(err)
	}
	if err := Initialize(nmath.DefaultTolerance()); err != ErrAlreadyInitialized {
		t.Errorf("second Initialize: %v", err)
	}
	Shutdown()
	Shutdown() // idempotent
	if err := Initialize(nmath.ToleranceContext{Linear: 1e-7, Angular: 1e-9}); err != nil {
		t.Fatal(err)
	}
	if got := GetTolerance().Linear; got != 1e-7 {
		t.Errorf("tolerance not set: %v", got)
	}
	Shutdown()
}

func TestPrimitiveHandlesAndErrors(t *testing.T) {
	initKernel(t)
	b, err := MakeBox(10, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	vol, err := b.Volume()
	if err != nil || math.Abs(vol-1000) > 10 {
		t.Errorf("volume %v err %v", vol, err)
	}
	b.Release()
	if _, err := b.Volume(); KindOf(err) != KindInvalidHandle {
		t.Errorf("released handle: kind %v err %v", KindOf(err), err)
	}
	if LastError() == nil {
		t.Error("last error should be recorded")
	}
	ClearError()
	if LastError() != nil {
		t.Error("ClearError should reset the shim")
	}

	if _, err := MakeSphere(-1); KindOf(err) != KindInvalidParameter {
		t.Errorf("negative sphere radius: kind %v", KindOf(err))
	}
	if _, err := MakeBox(0, 1, 1); KindOf(err) != KindInvalidParameter {
		t.Errorf("zero box side: kind %v", KindOf(err))
	}
}

func TestFacadeBooleanConsumesInputs(t *testing.T) {
	initKernel(t)
	a, err := MakeBox(10, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MakeBox(10, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Transform(nmath.Translating(md3.Vec{X: 5, Y: 5, Z: 5})); err != nil {
		t.Fatal(err)
	}
	out, err := Unite(a, b)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Release()
	if vol, _ := out.Volume(); math.Abs(vol-1875) > 40 {
		t.Errorf("union volume %v", vol)
	}
	// The facade's mutating convention: inputs are consumed.
	if _, err := a.Volume(); KindOf(err) != KindInvalidHandle {
		t.Error("input should be released after Unite")
	}
}

func TestFacadeRoundTripFiles(t *testing.T) {
	initKernel(t)
	dir := t.TempDir()
	b, err := MakeSphere(25)
	if err != nil {
		t.Fatal(err)
	}
	step := filepath.Join(dir, "s.step")
	if err := ExportSTEP(b, step); err != nil {
		t.Fatal(err)
	}
	back, err := ImportSTEP(step)
	if err != nil {
		t.Fatal(err)
	}
	if issues, _ := back.Validate(); len(issues) > 0 {
		t.Fatalf("imported sphere invalid: %v", issues)
	}
	stl := filepath.Join(dir, "s.stl")
	if err := ExportSTL(b, stl, 0.5); err != nil {
		t.Fatal(err)
	}
	nv := filepath.Join(dir, "s.nova")
	if err := SaveNative(b, nv); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadNative(nv)
	if err != nil {
		t.Fatal(err)
	}
	if vol, _ := loaded.Volume(); math.Abs(vol-4.0/3.0*math.Pi*25*25*25) > 4.0/3.0*math.Pi*25*25*25*0.02 {
		t.Errorf("native round trip volume %v", vol)
	}
}

func TestTessellateFacade(t *testing.T) {
	initKernel(t)
	b, err := MakeCylinder(3, 8)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := Tessellate(b, 0.01, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	if mesh.TriangleCount() == 0 {
		t.Error("empty mesh from facade")
	}
}
