package nmath

import (
	"math"

	"github.com/soypat/geometry/md3"
)

// Quat is a rotation quaternion with scalar part W and vector part V.
// Quaternions returned by constructors in this package are unit length.
type Quat struct {
	W float64
	V md3.Vec
}

// QuatIdent returns the identity rotation.
func QuatIdent() Quat { return Quat{W: 1} }

// QuatFromAxisAngle returns the rotation of angle radians about axis.
// The axis need not be normalized. Fails with [ErrNotNormalizable] for
// a zero axis.
func QuatFromAxisAngle(axis md3.Vec, angle float64) (Quat, error) {
	u, err := Unit(axis)
	if err != nil {
		return Quat{}, err
	}
	s, c := math.Sincos(angle / 2)
	return Quat{W: c, V: md3.Scale(s, u)}, nil
}

// QuatBetween returns the shortest rotation taking unit vector from to
// unit vector to.
func QuatBetween(from, to md3.Vec) (Quat, error) {
	f, err := Unit(from)
	if err != nil {
		return Quat{}, err
	}
	t, err := Unit(to)
	if err != nil {
		return Quat{}, err
	}
	d := md3.Dot(f, t)
	if d < -1+epstol {
		// Antipodal: rotate half turn about any perpendicular.
		perp, err := AnyPerpendicular(f)
		if err != nil {
			return Quat{}, err
		}
		return Quat{W: 0, V: perp}, nil
	}
	c := md3.Cross(f, t)
	q := Quat{W: 1 + d, V: c}
	return q.Normalize()
}

// Mul returns the Hamilton product q*r, the rotation r followed by q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		W: q.W*r.W - md3.Dot(q.V, r.V),
		V: md3.Add(md3.Add(md3.Scale(q.W, r.V), md3.Scale(r.W, q.V)), md3.Cross(q.V, r.V)),
	}
}

// Conj returns the conjugate. For unit quaternions this is the inverse.
func (q Quat) Conj() Quat { return Quat{W: q.W, V: md3.Scale(-1, q.V)} }

// Norm returns the quaternion magnitude.
func (q Quat) Norm() float64 {
	return math.Sqrt(q.W*q.W + md3.Norm2(q.V))
}

// Normalize scales q to unit length. Fails with [ErrNotNormalizable]
// for zero and near-zero quaternions.
func (q Quat) Normalize() (Quat, error) {
	n := q.Norm()
	if n < epstol {
		return Quat{}, ErrNotNormalizable
	}
	return Quat{W: q.W / n, V: md3.Scale(1/n, q.V)}, nil
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v md3.Vec) md3.Vec {
	// v' = v + 2*q.V × (q.V × v + q.W*v)
	t := md3.Cross(q.V, md3.Add(md3.Cross(q.V, v), md3.Scale(q.W, v)))
	return md3.Add(v, md3.Scale(2, t))
}

// AxisAngle decomposes q into a unit rotation axis and angle in [0, 2π).
// The identity rotation reports a zero angle about +Z.
func (q Quat) AxisAngle() (axis md3.Vec, angle float64) {
	w := Clamp(q.W, -1, 1)
	angle = 2 * math.Acos(w)
	s := math.Sqrt(1 - w*w)
	if s < epstol {
		return md3.Vec{Z: 1}, 0
	}
	return md3.Scale(1/s, q.V), angle
}

// Slerp spherically interpolates from q to r by t in [0,1], giving a
// constant angular velocity orientation blend.
func (q Quat) Slerp(r Quat, t float64) Quat {
	cosOmega := q.W*r.W + md3.Dot(q.V, r.V)
	if cosOmega < 0 {
		// Take the short arc.
		r = Quat{W: -r.W, V: md3.Scale(-1, r.V)}
		cosOmega = -cosOmega
	}
	if cosOmega > 1-1e-10 {
		// Nearly parallel: nlerp avoids the 0/0 below.
		out := Quat{
			W: Lerp(q.W, r.W, t),
			V: md3.Add(md3.Scale(1-t, q.V), md3.Scale(t, r.V)),
		}
		n, err := out.Normalize()
		if err != nil {
			return q
		}
		return n
	}
	omega := math.Acos(Clamp(cosOmega, -1, 1))
	sinOmega := math.Sin(omega)
	wq := math.Sin((1-t)*omega) / sinOmega
	wr := math.Sin(t*omega) / sinOmega
	return Quat{
		W: wq*q.W + wr*r.W,
		V: md3.Add(md3.Scale(wq, q.V), md3.Scale(wr, r.V)),
	}
}
