// Package nmath provides the numerical substrate of the kernel:
// quaternions and rigid transforms, interval arithmetic, axis aligned
// box helpers, the tolerance context and the adaptive geometric
// predicates every higher layer funnels its sign decisions through.
//
// Vector and box types are those of [md3] and [md2] (double precision).
package nmath

import (
	"errors"
	"math"

	"github.com/soypat/geometry/md2"
	"github.com/soypat/geometry/md3"
)

const (
	// epstol flags badly conditioned denominators such as lengths
	// used for normalization or transform matrix determinants.
	epstol = 1e-12
	// machEps is the double precision unit roundoff, 2^-53.
	machEps = 1.1102230246251565404236316680908203125e-16
)

// ErrNotNormalizable is returned when a zero or near-zero vector or
// quaternion is submitted for normalization.
var ErrNotNormalizable = errors.New("nmath: not normalizable")

// Unit returns v scaled to unit length. Fails with [ErrNotNormalizable]
// on zero and near-zero input rather than returning NaNs.
func Unit(v md3.Vec) (md3.Vec, error) {
	n := md3.Norm(v)
	if n < epstol {
		return md3.Vec{}, ErrNotNormalizable
	}
	return md3.Scale(1/n, v), nil
}

// Unit2 is the 2D analogue of [Unit].
func Unit2(v md2.Vec) (md2.Vec, error) {
	n := md2.Norm(v)
	if n < epstol {
		return md2.Vec{}, ErrNotNormalizable
	}
	return md2.Scale(1/n, v), nil
}

// Cross2 returns the scalar cross product (z component) of two 2D vectors.
func Cross2(a, b md2.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}

// AnyPerpendicular returns a unit vector perpendicular to v.
// v need not be normalized but must be nonzero.
func AnyPerpendicular(v md3.Vec) (md3.Vec, error) {
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	var other md3.Vec
	switch {
	case ax <= ay && ax <= az:
		other = md3.Vec{X: 1}
	case ay <= az:
		other = md3.Vec{Y: 1}
	default:
		other = md3.Vec{Z: 1}
	}
	u, err := Unit(v)
	if err != nil {
		return md3.Vec{}, err
	}
	// Drop other's component along v: for v along Z this is +X.
	return Unit(md3.Sub(other, md3.Scale(md3.Dot(other, u), u)))
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b, t float64) float64 { return a*(1-t) + b*t }

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}

// EqualWithin reports |a-b| <= tol.
func EqualWithin(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
