package nmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/soypat/geometry/md2"
	"github.com/soypat/geometry/md3"
)

func TestUnitZeroVector(t *testing.T) {
	_, err := Unit(md3.Vec{})
	if err != ErrNotNormalizable {
		t.Errorf("want ErrNotNormalizable, got %v", err)
	}
	u, err := Unit(md3.Vec{X: 3, Y: 4})
	if err != nil {
		t.Fatal(err)
	}
	if !EqualWithin(md3.Norm(u), 1, 1e-15) {
		t.Errorf("unit norm = %v", md3.Norm(u))
	}
}

func TestQuatRotate(t *testing.T) {
	q, err := QuatFromAxisAngle(md3.Vec{Z: 1}, math.Pi/2)
	if err != nil {
		t.Fatal(err)
	}
	got := q.Rotate(md3.Vec{X: 1})
	want := md3.Vec{Y: 1}
	if md3.Norm(md3.Sub(got, want)) > 1e-14 {
		t.Errorf("rotate X about Z by 90deg: got %+v want %+v", got, want)
	}
}

func TestQuatComposeMatchesSequentialRotation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		q1, _ := QuatFromAxisAngle(randVec(rng), rng.Float64()*math.Pi)
		q2, _ := QuatFromAxisAngle(randVec(rng), rng.Float64()*math.Pi)
		v := randVec(rng)
		seq := q2.Rotate(q1.Rotate(v))
		composed := q2.Mul(q1).Rotate(v)
		if md3.Norm(md3.Sub(seq, composed)) > 1e-12 {
			t.Fatalf("iter %d: composition mismatch %v vs %v", i, seq, composed)
		}
	}
}

func TestSlerpEndpoints(t *testing.T) {
	a, _ := QuatFromAxisAngle(md3.Vec{X: 1}, 0.3)
	b, _ := QuatFromAxisAngle(md3.Vec{Y: 1}, 1.2)
	if got := a.Slerp(b, 0); math.Abs(got.W-a.W) > 1e-14 {
		t.Errorf("slerp(0) != a")
	}
	if got := a.Slerp(b, 1); math.Abs(got.W-b.W) > 1e-14 {
		t.Errorf("slerp(1) != b")
	}
	// Halfway rotation angle is half the relative angle.
	mid := a.Slerp(b, 0.5)
	rel := b.Mul(a.Conj())
	_, relAngle := rel.AxisAngle()
	relHalf := mid.Mul(a.Conj())
	_, halfAngle := relHalf.AxisAngle()
	if !EqualWithin(halfAngle, relAngle/2, 1e-12) {
		t.Errorf("slerp midpoint angle %v, want %v", halfAngle, relAngle/2)
	}
}

func TestRigidRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		r, err := Rotating(randVec(rng), randVec(rng), rng.Float64()*2*math.Pi)
		if err != nil {
			t.Fatal(err)
		}
		r = r.Then(Translating(randVec(rng)))
		p := randVec(rng)
		back := r.Inverse().Apply(r.Apply(p))
		if md3.Norm(md3.Sub(back, p)) > 1e-12 {
			t.Fatalf("iter %d: inverse round trip error %v", i, md3.Norm(md3.Sub(back, p)))
		}
	}
}

func TestIntervalMul(t *testing.T) {
	a := NewInterval(-2, 3)
	b := NewInterval(-1, 4)
	got := a.Mul(b)
	if got.Lo != -8 || got.Hi != 12 {
		t.Errorf("got %+v", got)
	}
	if !got.ContainsZero() {
		t.Error("product should contain zero")
	}
}

func TestOrient2DRobust(t *testing.T) {
	// Collinear points must report exactly zero regardless of roundoff.
	a := md2.Vec{X: 0.1, Y: 0.1}
	b := md2.Vec{X: 0.3, Y: 0.3}
	for i := 0; i < 400; i++ {
		s := 0.5 + float64(i)*1e-17
		c := md2.Vec{X: s, Y: s}
		got := Orient2D(a, b, c)
		exact := orient2DExact(a, b, c)
		if (got > 0) != (exact > 0) || (got < 0) != (exact < 0) {
			t.Fatalf("sign flip at i=%d: got %v exact %v", i, got, exact)
		}
	}
}

func TestOrient3DSign(t *testing.T) {
	a := md3.Vec{}
	b := md3.Vec{X: 1}
	c := md3.Vec{Y: 1}
	above := md3.Vec{Z: 1}
	below := md3.Vec{Z: -1}
	if Orient3D(a, b, c, above) >= 0 {
		t.Error("point above plane should be negative")
	}
	if Orient3D(a, b, c, below) <= 0 {
		t.Error("point below plane should be positive")
	}
	if Orient3D(a, b, c, md3.Vec{X: 0.3, Y: 0.3}) != 0 {
		t.Error("coplanar point should be exactly zero")
	}
}

func TestInCircle(t *testing.T) {
	a := md2.Vec{X: 1}
	b := md2.Vec{Y: 1}
	c := md2.Vec{X: -1}
	if InCircle(a, b, c, md2.Vec{}) <= 0 {
		t.Error("center should be inside")
	}
	if InCircle(a, b, c, md2.Vec{X: 2}) >= 0 {
		t.Error("far point should be outside")
	}
	if InCircle(a, b, c, md2.Vec{Y: -1}) != 0 {
		t.Error("cocircular point should be exactly zero")
	}
}

func TestInSphere(t *testing.T) {
	a := md3.Vec{X: 1}
	b := md3.Vec{Y: 1}
	c := md3.Vec{Z: 1}
	d := md3.Vec{X: -1}
	if got := InSphere(a, b, c, d, md3.Vec{}); got == 0 {
		t.Error("center should not be on sphere")
	}
	if InSphere(a, b, c, d, md3.Vec{Y: -1}) != 0 {
		t.Error("cospherical point should be exactly zero")
	}
}

func TestToleranceDirectionTests(t *testing.T) {
	tc := DefaultTolerance()
	x := md3.Vec{X: 1}
	almostX := md3.Vec{X: 1, Y: 1e-12}
	if !tc.SameDirection(x, almostX) {
		t.Error("nearly identical directions should match")
	}
	if tc.SameDirection(x, md3.Vec{Y: 1}) {
		t.Error("perpendicular directions should not match")
	}
	if !tc.PerpendicularDirection(x, md3.Vec{Y: 1}) {
		t.Error("X and Y are perpendicular")
	}
}

func randVec(rng *rand.Rand) md3.Vec {
	return md3.Vec{
		X: rng.Float64()*2 - 1,
		Y: rng.Float64()*2 - 1,
		Z: rng.Float64()*2 - 1,
	}
}
