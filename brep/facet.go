package brep

import (
	"math"

	"github.com/soypat/geometry/md2"
	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Coarse face facetization used by Volume, ray classification and
// interior point picking. Display tessellation lives in the tess
// package; this one trades quality for self-containment.

// FaceUVLoops returns the face's boundary polygons in the surface
// parameter domain: the outer polygon first, then one polygon per
// ring. Periodic parameter directions are unwrapped so each polygon is
// continuous; samplesPerEdge controls curved-edge fidelity.
func (b *Body) FaceUVLoops(f FaceID, samplesPerEdge int) ([][]md2.Vec, error) {
	fc, err := b.face(f)
	if err != nil {
		return nil, err
	}
	if fc.surf == nil {
		return nil, ErrDeadEntity
	}
	var out [][]md2.Vec
	collect := func(l LoopID) error {
		poly, err := b.loopUV(l, fc.surf, samplesPerEdge)
		if err != nil {
			return err
		}
		out = append(out, poly)
		return nil
	}
	if err := collect(fc.outer); err != nil {
		return nil, err
	}
	for _, il := range fc.inner {
		if b.loops[il].alive {
			if err := collect(il); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// loopUV samples a loop into an unwrapped UV polygon.
func (b *Body) loopUV(l LoopID, surf geom.Surface, samplesPerEdge int) ([]md2.Vec, error) {
	lp := &b.loops[l]
	if lp.first.IsNil() {
		return nil, nil
	}
	uvr := surf.UVRange()
	uPeriod, vPeriod := 0.0, 0.0
	if surf.PeriodicU() {
		uPeriod = uvr.U.Length()
	}
	if surf.PeriodicV() {
		vPeriod = uvr.V.Length()
	}
	var poly []md2.Vec
	c := lp.first
	for {
		co := &b.coedges[c]
		ed := &b.edges[co.edge]
		if ed.curve != nil {
			r := ed.curve.ParamRange()
			for i := 0; i < samplesPerEdge; i++ {
				s := float64(i) / float64(samplesPerEdge)
				t := r.Lerp(s)
				if !co.forward {
					t = r.Lerp(1 - s)
				}
				u, v, _, _ := surf.Project(ed.curve.Evaluate(t))
				uv := md2.Vec{X: u, Y: v}
				if len(poly) > 0 {
					uv = unwrapUV(poly[len(poly)-1], uv, uPeriod, vPeriod)
				}
				poly = append(poly, uv)
			}
		}
		c = co.next
		if c == lp.first {
			break
		}
	}
	return poly, nil
}

// unwrapUV shifts next by whole periods so it is continuous with prev.
func unwrapUV(prev, next md2.Vec, uPeriod, vPeriod float64) md2.Vec {
	if uPeriod > 0 {
		for next.X-prev.X > uPeriod/2 {
			next.X -= uPeriod
		}
		for prev.X-next.X > uPeriod/2 {
			next.X += uPeriod
		}
	}
	if vPeriod > 0 {
		for next.Y-prev.Y > vPeriod/2 {
			next.Y -= vPeriod
		}
		for prev.Y-next.Y > vPeriod/2 {
			next.Y += vPeriod
		}
	}
	return next
}

// coversFullPeriod reports whether the unwrapped polygon's extent in
// the periodic direction spans (almost) the whole period, meaning the
// face wraps all the way around (cylinder barrel, sphere body).
func coversFullPeriod(poly []md2.Vec, period float64, useU bool) bool {
	if period <= 0 || len(poly) == 0 {
		return false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range poly {
		c := p.Y
		if useU {
			c = p.X
		}
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	return hi-lo >= period*0.75
}

// PointInPolygons reports whether p lies inside the first polygon and
// outside the rest, the usual outer-plus-holes containment test.
func PointInPolygons(polys [][]md2.Vec, p md2.Vec) bool {
	if len(polys) == 0 || !pointInPoly(polys[0], p) {
		return false
	}
	for _, hole := range polys[1:] {
		if pointInPoly(hole, p) {
			return false
		}
	}
	return true
}

// EarTriangulate triangulates a simple polygon, returning index
// triples into poly. The polygon may be in either winding.
func EarTriangulate(poly []md2.Vec) [][3]int {
	return earClip(poly)
}

// PolygonArea returns the signed area of a polygon (positive for
// counterclockwise winding).
func PolygonArea(poly []md2.Vec) float64 {
	return polySignedArea(poly)
}

func polySignedArea(poly []md2.Vec) float64 {
	area := 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		area += nmath.Cross2(poly[i], poly[j])
	}
	return area / 2
}

func pointInPoly(poly []md2.Vec, p md2.Vec) bool {
	inside := false
	for i := range poly {
		j := (i + 1) % len(poly)
		a, bb := poly[i], poly[j]
		if (a.Y > p.Y) != (bb.Y > p.Y) {
			x := a.X + (p.Y-a.Y)/(bb.Y-a.Y)*(bb.X-a.X)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// earClip triangulates a simple polygon (no holes) given in either
// winding; returned triangles are index triples into poly.
func earClip(poly []md2.Vec) [][3]int {
	n := len(poly)
	if n < 3 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	ccw := polySignedArea(poly) > 0
	var tris [][3]int
	guard := 0
	for len(idx) > 3 && guard < n*n {
		guard++
		clipped := false
		for i := 0; i < len(idx); i++ {
			i0 := idx[(i+len(idx)-1)%len(idx)]
			i1 := idx[i]
			i2 := idx[(i+1)%len(idx)]
			a, bb, c := poly[i0], poly[i1], poly[i2]
			cross := nmath.Orient2D(a, bb, c)
			if ccw && cross <= 0 || !ccw && cross >= 0 {
				continue // reflex corner
			}
			ear := true
			for _, j := range idx {
				if j == i0 || j == i1 || j == i2 {
					continue
				}
				if pointInTri(a, bb, c, poly[j], ccw) {
					ear = false
					break
				}
			}
			if !ear {
				continue
			}
			tris = append(tris, [3]int{i0, i1, i2})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			break // degenerate; emit fan of the rest
		}
	}
	if len(idx) == 3 {
		tris = append(tris, [3]int{idx[0], idx[1], idx[2]})
	} else if len(idx) > 3 {
		for i := 1; i < len(idx)-1; i++ {
			tris = append(tris, [3]int{idx[0], idx[i], idx[i+1]})
		}
	}
	return tris
}

func pointInTri(a, b, c, p md2.Vec, ccw bool) bool {
	s1 := nmath.Orient2D(a, b, p)
	s2 := nmath.Orient2D(b, c, p)
	s3 := nmath.Orient2D(c, a, p)
	if ccw {
		return s1 >= 0 && s2 >= 0 && s3 >= 0
	}
	return s1 <= 0 && s2 <= 0 && s3 <= 0
}

// BridgeHoles merges ring polygons into the outer polygon with bridge
// edges so a holes-free triangulation applies.
func BridgeHoles(outer []md2.Vec, holes [][]md2.Vec) []md2.Vec {
	return bridgeHoles(outer, holes)
}

// bridgeHoles merges ring polygons into the outer polygon with bridge
// edges so a holes-free ear clip applies.
func bridgeHoles(outer []md2.Vec, holes [][]md2.Vec) []md2.Vec {
	merged := append([]md2.Vec(nil), outer...)
	for _, hole := range holes {
		if len(hole) < 3 {
			continue
		}
		// Hole vertex with maximum X bridges to the nearest outer
		// vertex to its right.
		hi := 0
		for i, p := range hole {
			if p.X > hole[hi].X {
				hi = i
			}
		}
		hp := hole[hi]
		bi := -1
		best := math.Inf(1)
		for i, p := range merged {
			d := md2.Norm(md2.Sub(p, hp))
			if p.X >= hp.X-1e-12 && d < best {
				best = d
				bi = i
			}
		}
		if bi < 0 {
			for i, p := range merged {
				d := md2.Norm(md2.Sub(p, hp))
				if d < best {
					best = d
					bi = i
				}
			}
		}
		// Splice: merged[..bi], hole[hi..], hole[..hi], hole[hi],
		// merged[bi..].
		var next []md2.Vec
		next = append(next, merged[:bi+1]...)
		for k := 0; k <= len(hole); k++ {
			next = append(next, hole[(hi+k)%len(hole)])
		}
		next = append(next, merged[bi:]...)
		merged = next
	}
	return merged
}

// facetFace returns an oriented 3D triangle soup of the face. n is the
// grid fineness for full-period faces; boundary fidelity follows the
// per-edge sampling of FaceUVLoops.
func (b *Body) facetFace(f FaceID, n int) [][3]md3.Vec {
	fc := &b.faces[f]
	surf := fc.surf
	if surf == nil {
		return nil
	}
	polys, err := b.FaceUVLoops(f, 24)
	if err != nil || len(polys) == 0 || len(polys[0]) < 3 {
		return nil
	}
	outer := polys[0]
	holes := polys[1:]

	uvr := surf.UVRange()
	fullU := surf.PeriodicU() && coversFullPeriod(outer, uvr.U.Length(), true)
	var tris2 [][3]md2.Vec
	if fullU || isDegeneratePoly(outer) {
		// Faces wrapping a full period (cylinder barrel, sphere) are
		// gridded over the canonical domain instead of ear clipped.
		// The v extent is trimmed to the boundary polygon's span.
		vlo, vhi := uvr.V.Start, uvr.V.End
		if len(outer) > 0 {
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, p := range outer {
				lo = math.Min(lo, p.Y)
				hi = math.Max(hi, p.Y)
			}
			if hi > lo {
				vlo, vhi = math.Max(vlo, lo), math.Min(vhi, hi)
			}
		}
		for i := 0; i < n; i++ {
			u0 := uvr.U.Lerp(float64(i) / float64(n))
			u1 := uvr.U.Lerp(float64(i+1) / float64(n))
			for j := 0; j < n; j++ {
				v0 := vlo + (vhi-vlo)*float64(j)/float64(n)
				v1 := vlo + (vhi-vlo)*float64(j+1)/float64(n)
				if len(holes) > 0 {
					c := md2.Vec{X: (u0 + u1) / 2, Y: (v0 + v1) / 2}
					inHole := false
					for _, h := range holes {
						if pointInPoly(h, c) {
							inHole = true
							break
						}
					}
					if inHole {
						continue
					}
				}
				tris2 = append(tris2,
					[3]md2.Vec{{X: u0, Y: v0}, {X: u1, Y: v0}, {X: u1, Y: v1}},
					[3]md2.Vec{{X: u0, Y: v0}, {X: u1, Y: v1}, {X: u0, Y: v1}},
				)
			}
		}
	} else {
		merged := bridgeHoles(outer, holes)
		for _, t := range earClip(merged) {
			tris2 = append(tris2, [3]md2.Vec{merged[t[0]], merged[t[1]], merged[t[2]]})
		}
	}

	wantNormal := func(u, v float64) md3.Vec {
		nm, err := surf.Normal(u, v)
		if err != nil {
			return md3.Vec{}
		}
		if !fc.sameSense {
			nm = md3.Scale(-1, nm)
		}
		return nm
	}
	var out [][3]md3.Vec
	for _, t := range tris2 {
		p0 := surf.Evaluate(t[0].X, t[0].Y)
		p1 := surf.Evaluate(t[1].X, t[1].Y)
		p2 := surf.Evaluate(t[2].X, t[2].Y)
		nrm := md3.Cross(md3.Sub(p1, p0), md3.Sub(p2, p0))
		if md3.Norm(nrm) < 1e-18 {
			continue
		}
		cu := (t[0].X + t[1].X + t[2].X) / 3
		cv := (t[0].Y + t[1].Y + t[2].Y) / 3
		if md3.Dot(nrm, wantNormal(cu, cv)) < 0 {
			p1, p2 = p2, p1
		}
		out = append(out, [3]md3.Vec{p0, p1, p2})
	}
	return out
}

func isDegeneratePoly(poly []md2.Vec) bool {
	return math.Abs(polySignedArea(poly)) < 1e-14
}

// InteriorPoint returns a point strictly inside the face together
// with its surface parameters, used to seed classification.
func (b *Body) InteriorPoint(f FaceID) (md3.Vec, float64, float64, error) {
	fc, err := b.face(f)
	if err != nil {
		return md3.Vec{}, 0, 0, err
	}
	tris := b.facetFace(f, 8)
	if len(tris) == 0 {
		return md3.Vec{}, 0, 0, ErrDeadEntity
	}
	// The largest facet's centroid is comfortably interior.
	best := 0
	bestArea := -1.0
	for i, t := range tris {
		area := md3.Norm(md3.Cross(md3.Sub(t[1], t[0]), md3.Sub(t[2], t[0])))
		if area > bestArea {
			bestArea = area
			best = i
		}
	}
	t := tris[best]
	c := md3.Scale(1.0/3, md3.Add(md3.Add(t[0], t[1]), t[2]))
	u, v, foot, _ := fc.surf.Project(c)
	return foot, u, v, nil
}
