package ops

import (
	"fmt"
	"math"

	"github.com/soypat/geometry/md2"
	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Imprinting works in each face's parameter domain: the face boundary
// becomes a tagged polygon, intersection curves become tagged chains,
// and splitting is polygon surgery. Tags remember which curve every
// segment came from so fragment boundaries are re-emitted as exact
// trimmed curves instead of chords wherever possible.

type srcKind int

const (
	srcNone  srcKind = iota
	srcEdge          // an original body edge
	srcChain         // an intersection curve
)

type srcRef struct {
	kind  srcKind
	edge  brep.EdgeID
	chain int
}

type uvNode struct {
	uv  md2.Vec
	src srcRef
	t   float64 // parameter on the source curve
}

type uvPoly []uvNode

func (p uvPoly) points() []md2.Vec {
	out := make([]md2.Vec, len(p))
	for i, n := range p {
		out[i] = n.uv
	}
	return out
}

// fragment is one piece of a split face domain.
type fragment struct {
	outer uvPoly
	holes []uvPoly
}

// chainUV is an intersection curve mapped into one face's domain.
type chainUV struct {
	nodes  []uvNode // src refers to the chain itself
	curve  geom.Curve
	closed bool
}

// edgeSamples controls boundary fidelity of the imprint polygons.
const edgeSamples = 24

// taggedFaceLoops samples the face boundary into tagged, unwrapped UV
// polygons (outer first).
func taggedFaceLoops(b *brep.Body, f brep.FaceID) ([]uvPoly, error) {
	surf, err := b.FaceSurface(f)
	if err != nil || surf == nil {
		return nil, fmt.Errorf("%w: face without surface", ErrUnsupported)
	}
	uvr := surf.UVRange()
	uPeriod, vPeriod := 0.0, 0.0
	if surf.PeriodicU() {
		uPeriod = uvr.U.Length()
	}
	if surf.PeriodicV() {
		vPeriod = uvr.V.Length()
	}
	var polys []uvPoly
	sample := func(l brep.LoopID) (uvPoly, error) {
		var poly uvPoly
		err := b.LoopCoedges(l, func(c brep.CoedgeID) bool {
			e, forward, _ := b.CoedgeEdge(c)
			curve, _ := b.EdgeCurve(e)
			if curve == nil {
				return true
			}
			r := curve.ParamRange()
			for i := 0; i < edgeSamples; i++ {
				s := float64(i) / edgeSamples
				t := r.Lerp(s)
				if !forward {
					t = r.Lerp(1 - s)
				}
				u, v, _, _ := surf.Project(curve.Evaluate(t))
				node := uvNode{
					uv:  md2.Vec{X: u, Y: v},
					src: srcRef{kind: srcEdge, edge: e},
					t:   t,
				}
				if len(poly) > 0 {
					node.uv = unwrap2(poly[len(poly)-1].uv, node.uv, uPeriod, vPeriod)
				}
				poly = append(poly, node)
			}
			return true
		})
		return poly, err
	}
	ol, err := b.FaceOuterLoop(f)
	if err != nil {
		return nil, err
	}
	outer, err := sample(ol)
	if err != nil {
		return nil, err
	}
	polys = append(polys, outer)
	b.FaceInnerLoops(f, func(l brep.LoopID) bool {
		if p, err2 := sample(l); err2 == nil {
			polys = append(polys, p)
		}
		return true
	})
	return polys, nil
}

func unwrap2(prev, next md2.Vec, uPeriod, vPeriod float64) md2.Vec {
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

// splitFragments applies every chain to the face's fragments in turn.
func splitFragments(base []uvPoly, chains []chainUV) []fragment {
	if len(base) == 0 {
		return nil
	}
	frags := []fragment{{outer: base[0]}}
	for _, h := range base[1:] {
		frags[0].holes = append(frags[0].holes, h)
	}
	for ci := range chains {
		var next []fragment
		for _, fr := range frags {
			next = append(next, splitOne(fr, &chains[ci])...)
		}
		frags = next
	}
	return frags
}

// splitOne splits a single fragment by a single chain, returning the
// resulting fragments (possibly just the input when the chain misses).
func splitOne(fr fragment, ch *chainUV) []fragment {
	if len(ch.nodes) < 2 {
		return []fragment{fr}
	}
	mid := ch.nodes[len(ch.nodes)/2].uv
	inside := brep.PointInPolygons(append([][]md2.Vec{fr.outer.points()}, holesPts(fr.holes)...), mid)
	if !inside {
		return []fragment{fr}
	}
	if ch.closed {
		// Interior island: the fragment gains a hole; the island
		// becomes its own fragment. Existing holes inside the island
		// move with it.
		island := fragment{outer: append(uvPoly(nil), ch.nodes...)}
		withHole := fragment{outer: fr.outer, holes: []uvPoly{reversePoly(ch.nodes)}}
		ipts := island.outer.points()
		for _, h := range fr.holes {
			if len(h) > 0 && brep.PointInPolygons([][]md2.Vec{ipts}, h[0].uv) {
				island.holes = append(island.holes, h)
			} else {
				withHole.holes = append(withHole.holes, h)
			}
		}
		return []fragment{withHole, island}
	}
	// Open chain: endpoints must reach the outer boundary. Insert
	// them and walk both sides.
	outer := append(uvPoly(nil), fr.outer...)
	i0, outer, _ := insertOnBoundary(outer, ch.nodes[0])
	i1, outer, ins1 := insertOnBoundary(outer, ch.nodes[len(ch.nodes)-1])
	if ins1 && i1 <= i0 {
		i0++
	}
	if i0 < 0 || i1 < 0 || i0 == i1 {
		return []fragment{fr}
	}
	walk := func(from, to int) uvPoly {
		var out uvPoly
		i := from
		for {
			out = append(out, outer[i])
			if i == to {
				break
			}
			i = (i + 1) % len(outer)
		}
		return out
	}
	// Side A: boundary from chain start to chain end, then chain
	// reversed back to the start.
	sideA := walk(i0, i1)
	rev := reversePoly(ch.nodes)
	sideA = append(sideA, rev[1:len(rev)-1]...)
	// Side B: boundary from chain end to chain start, then the chain.
	sideB := walk(i1, i0)
	sideB = append(sideB, ch.nodes[1:len(ch.nodes)-1]...)
	fa := fragment{outer: sideA}
	fb := fragment{outer: sideB}
	apts, bpts := sideA.points(), sideB.points()
	for _, h := range fr.holes {
		if len(h) > 0 && brep.PointInPolygons([][]md2.Vec{apts}, h[0].uv) {
			fa.holes = append(fa.holes, h)
		} else if len(h) > 0 && brep.PointInPolygons([][]md2.Vec{bpts}, h[0].uv) {
			fb.holes = append(fb.holes, h)
		}
	}
	return []fragment{fa, fb}
}

func holesPts(holes []uvPoly) [][]md2.Vec {
	out := make([][]md2.Vec, len(holes))
	for i, h := range holes {
		out[i] = h.points()
	}
	return out
}

func reversePoly(p uvPoly) uvPoly {
	out := make(uvPoly, len(p))
	for i, n := range p {
		out[len(p)-1-i] = n
	}
	return out
}

// insertOnBoundary splices node into the polygon at the nearest
// boundary location, returning its index. Nodes already coincident
// with a polygon vertex reuse that vertex.
func insertOnBoundary(poly uvPoly, node uvNode) (int, uvPoly, bool) {
	const snap = 1e-9
	bestSeg, bestD, bestT := -1, math.Inf(1), 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		a, b := poly[i].uv, poly[j].uv
		ab := md2.Sub(b, a)
		den := md2.Dot(ab, ab)
		t := 0.0
		if den > 0 {
			t = nmath.Clamp(md2.Dot(md2.Sub(node.uv, a), ab)/den, 0, 1)
		}
		foot := md2.Add(a, md2.Scale(t, ab))
		d := md2.Norm(md2.Sub(node.uv, foot))
		if d < bestD {
			bestSeg, bestD, bestT = i, d, t
		}
	}
	if bestSeg < 0 {
		return -1, poly, false
	}
	i, j := bestSeg, (bestSeg+1)%len(poly)
	if bestT < snap || md2.Norm(md2.Sub(node.uv, poly[i].uv)) < 1e-7 {
		return i, poly, false
	}
	if bestT > 1-snap || md2.Norm(md2.Sub(node.uv, poly[j].uv)) < 1e-7 {
		return j, poly, false
	}
	// Split the segment; the new vertex inherits the segment's source
	// only when both segment ends share it.
	ins := node
	if poly[i].src == poly[j].src && poly[i].src.kind != srcNone {
		ins.src = poly[i].src
		ins.t = nmath.Lerp(poly[i].t, poly[j].t, bestT)
	}
	out := make(uvPoly, 0, len(poly)+1)
	out = append(out, poly[:j]...)
	out = append(out, ins)
	out = append(out, poly[j:]...)
	return j, out, true
}

// loopFromPoly converts a tagged polygon into a loop specification,
// merging consecutive same-source segments into exact trimmed curves
// and emitting chords elsewhere.
func loopFromPoly(poly uvPoly, surf geom.Surface, chains []chainUV, b *brep.Body, tc nmath.ToleranceContext) (brep.LoopSpec, error) {
	n := len(poly)
	if n < 2 {
		return brep.LoopSpec{}, fmt.Errorf("%w: degenerate fragment loop", ErrGeometry)
	}
	srcCurve := func(ref srcRef) geom.Curve {
		switch ref.kind {
		case srcEdge:
			c, _ := b.EdgeCurve(ref.edge)
			return c
		case srcChain:
			return chains[ref.chain].curve
		}
		return nil
	}
	var spec brep.LoopSpec
	// A loop that lies entirely on one closed curve (a hole punched
	// by a full circle, a cylinder cap rim) is a single closed use.
	uniform := poly[0].src.kind != srcNone
	for _, nd := range poly {
		if nd.src != poly[0].src {
			uniform = false
			break
		}
	}
	if uniform {
		if c := srcCurve(poly[0].src); c != nil && c.Closed() {
			r := c.ParamRange()
			d := poly[1].t - poly[0].t
			if d > r.Length()/2 {
				d -= r.Length()
			} else if d < -r.Length()/2 {
				d += r.Length()
			}
			spec.Uses = append(spec.Uses, brep.EdgeUse{Curve: c, Forward: d > 0})
			return spec, nil
		}
	}
	emitRun := func(ref srcRef, t0, t1 float64) error {
		curve := srcCurve(ref)
		if curve == nil {
			return fmt.Errorf("%w: lost run source", ErrGeometry)
		}
		forward := t1 > t0
		lo, hi := t0, t1
		if !forward {
			lo, hi = t1, t0
		}
		if hi-lo < 1e-13 {
			return nil
		}
		trimmed, err := geom.TrimCurve(curve, geom.ParamRange{Start: lo, End: hi})
		if err != nil {
			return fmt.Errorf("%w: trimming run: %v", ErrGeometry, err)
		}
		spec.Uses = append(spec.Uses, brep.EdgeUse{Curve: trimmed, Forward: forward})
		return nil
	}
	emitChord := func(a, bnode uvNode) error {
		p0 := surf.Evaluate(a.uv.X, a.uv.Y)
		p1 := surf.Evaluate(bnode.uv.X, bnode.uv.Y)
		if md3.Norm(md3.Sub(p0, p1)) <= tc.Linear {
			return nil
		}
		l, err := geom.NewLineSegment(p0, p1)
		if err != nil {
			return fmt.Errorf("%w: chord: %v", ErrGeometry, err)
		}
		spec.Uses = append(spec.Uses, brep.EdgeUse{Curve: l, Forward: true})
		return nil
	}
	// Walk segments, grouping runs.
	i := 0
	for i < n {
		a := poly[i]
		bnode := poly[(i+1)%n]
		if a.src.kind != srcNone && a.src == bnode.src {
			// Extend the run as far as the source holds.
			j := i + 1
			for j < n {
				nn := poly[(j+1)%n]
				if poly[j%n].src == a.src && nn.src == a.src {
					j++
					continue
				}
				break
			}
			t0 := a.t
			t1 := poly[j%n].t
			if err := emitRun(a.src, t0, t1); err != nil {
				return spec, err
			}
			i = j
			continue
		}
		if err := emitChord(a, bnode); err != nil {
			return spec, err
		}
		i++
	}
	if len(spec.Uses) == 0 {
		return spec, fmt.Errorf("%w: fragment loop vanished under tolerance", ErrTolerance)
	}
	return spec, nil
}

// fragmentSpec converts a fragment into an assemblable face spec.
func fragmentSpec(fr fragment, b *brep.Body, f brep.FaceID, chains []chainUV, tc nmath.ToleranceContext) (brep.FaceSpec, error) {
	surf, _ := b.FaceSurface(f)
	same, _ := b.FaceSameSense(f)
	outer, err := loopFromPoly(fr.outer, surf, chains, b, tc)
	if err != nil {
		return brep.FaceSpec{}, err
	}
	spec := brep.FaceSpec{Surf: surf, SameSense: same, Outer: outer}
	for _, h := range fr.holes {
		hl, err := loopFromPoly(h, surf, chains, b, tc)
		if err != nil {
			return brep.FaceSpec{}, err
		}
		spec.Inner = append(spec.Inner, hl)
	}
	return spec, nil
}

// interiorUV returns a point inside the fragment, via the largest ear
// triangle's centroid.
func interiorUV(fr fragment) (md2.Vec, bool) {
	pts := fr.outer.points()
	if len(pts) < 3 {
		return md2.Vec{}, false
	}
	tris := brep.EarTriangulate(pts)
	holes := holesPts(fr.holes)
	best := md2.Vec{}
	bestArea := -1.0
	found := false
	for _, t := range tris {
		a, bb, c := pts[t[0]], pts[t[1]], pts[t[2]]
		centroid := md2.Scale(1.0/3, md2.Add(md2.Add(a, bb), c))
		inHole := false
		for _, h := range holes {
			if brep.PointInPolygons([][]md2.Vec{h}, centroid) {
				inHole = true
				break
			}
		}
		if inHole {
			continue
		}
		area := math.Abs(nmath.Cross2(md2.Sub(bb, a), md2.Sub(c, a)))
		if area > bestArea {
			bestArea = area
			best = centroid
			found = true
		}
	}
	return best, found
}
