package nmath

import "math"

// Interval is a closed real interval [Lo, Hi] used for conservative
// range arithmetic during subdivision intersection.
type Interval struct {
	Lo, Hi float64
}

// NewInterval returns the interval spanning a and b in either order.
func NewInterval(a, b float64) Interval {
	if a > b {
		a, b = b, a
	}
	return Interval{Lo: a, Hi: b}
}

// Width returns Hi-Lo.
func (iv Interval) Width() float64 { return iv.Hi - iv.Lo }

// Mid returns the midpoint.
func (iv Interval) Mid() float64 { return 0.5 * (iv.Lo + iv.Hi) }

// Contains reports whether x lies in the interval.
func (iv Interval) Contains(x float64) bool { return x >= iv.Lo && x <= iv.Hi }

// ContainsZero reports whether 0 lies in the interval.
func (iv Interval) ContainsZero() bool { return iv.Lo <= 0 && iv.Hi >= 0 }

// Hull returns the smallest interval containing both operands.
func (iv Interval) Hull(other Interval) Interval {
	return Interval{Lo: math.Min(iv.Lo, other.Lo), Hi: math.Max(iv.Hi, other.Hi)}
}

// Add returns iv+other under interval arithmetic.
func (iv Interval) Add(other Interval) Interval {
	return Interval{Lo: iv.Lo + other.Lo, Hi: iv.Hi + other.Hi}
}

// Sub returns iv-other under interval arithmetic.
func (iv Interval) Sub(other Interval) Interval {
	return Interval{Lo: iv.Lo - other.Hi, Hi: iv.Hi - other.Lo}
}

// Mul returns iv*other under interval arithmetic.
func (iv Interval) Mul(other Interval) Interval {
	a := iv.Lo * other.Lo
	b := iv.Lo * other.Hi
	c := iv.Hi * other.Lo
	d := iv.Hi * other.Hi
	return Interval{
		Lo: math.Min(math.Min(a, b), math.Min(c, d)),
		Hi: math.Max(math.Max(a, b), math.Max(c, d)),
	}
}

// Scale returns the interval scaled by s.
func (iv Interval) Scale(s float64) Interval {
	if s < 0 {
		return Interval{Lo: iv.Hi * s, Hi: iv.Lo * s}
	}
	return Interval{Lo: iv.Lo * s, Hi: iv.Hi * s}
}

// Split bisects the interval at its midpoint.
func (iv Interval) Split() (Interval, Interval) {
	m := iv.Mid()
	return Interval{Lo: iv.Lo, Hi: m}, Interval{Lo: m, Hi: iv.Hi}
}

// Intersects reports whether the two intervals overlap.
func (iv Interval) Intersects(other Interval) bool {
	return iv.Lo <= other.Hi && other.Lo <= iv.Hi
}
