package nmath

import (
	"math"

	"github.com/soypat/geometry/md3"
)

// EmptyBox returns a box that contains nothing and unions correctly
// with any other box.
func EmptyBox() md3.Box {
	inf := math.Inf(1)
	return md3.Box{
		Min: md3.Vec{X: inf, Y: inf, Z: inf},
		Max: md3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// BoxIsEmpty reports whether b contains no point.
func BoxIsEmpty(b md3.Box) bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// ExtendBox returns b grown to contain p.
func ExtendBox(b md3.Box, p md3.Vec) md3.Box {
	b.Min = md3.MinElem(b.Min, p)
	b.Max = md3.MaxElem(b.Max, p)
	return b
}

// GrowBox returns b inflated by pad on all sides.
func GrowBox(b md3.Box, pad float64) md3.Box {
	b.Min = md3.AddScalar(-pad, b.Min)
	b.Max = md3.AddScalar(pad, b.Max)
	return b
}

// BoxesIntersect reports whether the two boxes overlap (closed test).
func BoxesIntersect(a, b md3.Box) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y &&
		a.Min.Z <= b.Max.Z && b.Min.Z <= a.Max.Z
}

// BoxContains reports whether p lies in b (closed test).
func BoxContains(b md3.Box, p md3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// BoxDiagonal returns the length of the box diagonal, the model's
// characteristic length for tolerance scaling.
func BoxDiagonal(b md3.Box) float64 {
	if BoxIsEmpty(b) {
		return 0
	}
	return md3.Norm(md3.Sub(b.Max, b.Min))
}
