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

// Regularized Boolean operations on closed solids. The pipeline runs
// in five phases: intersect surfaces of bounding-box-overlapping face
// pairs, imprint the intersection curves onto both bodies' faces,
// classify every face fragment against the other body by tolerant ray
// casting, select fragments per the operation's table, and stitch the
// survivors into the result body. Inputs are never mutated; an empty
// outcome is the distinguished empty body, not an error.

type boolOp int

const (
	opUnite boolOp = iota
	opSubtract
	opIntersect
)

// Unite returns the regularized union of two closed solids.
func Unite(a, b *brep.Body, opt Options) (*brep.Body, error) {
	return boolean(opUnite, a, b, opt)
}

// Subtract returns the regularized difference a minus b.
func Subtract(a, b *brep.Body, opt Options) (*brep.Body, error) {
	return boolean(opSubtract, a, b, opt)
}

// Intersect returns the regularized intersection of two closed solids.
func Intersect(a, b *brep.Body, opt Options) (*brep.Body, error) {
	return boolean(opIntersect, a, b, opt)
}

// classification of a fragment relative to the other body.
type fragClass int

const (
	classOut fragClass = iota
	classIn
	classOnSame
	classOnOpposite
)

// boolFragment couples a face fragment with its source body and class.
type boolFragment struct {
	spec  brep.FaceSpec
	fromA bool
	class fragClass
}

func boolean(op boolOp, a, b *brep.Body, opt Options) (*brep.Body, error) {
	if a == nil || b == nil || a.Released() || b.Released() {
		return nil, fmt.Errorf("%w: released input body", ErrParameter)
	}
	// Empty operands resolve without geometry.
	if a.IsEmpty() || b.IsEmpty() {
		switch {
		case a.IsEmpty() && b.IsEmpty():
			return brep.NewEmptyBody(), nil
		case a.IsEmpty():
			if op == opUnite {
				return b.DeepCopy(), nil
			}
			return brep.NewEmptyBody(), nil
		default:
			if op == opIntersect {
				return brep.NewEmptyBody(), nil
			}
			return a.DeepCopy(), nil
		}
	}
	if !a.IsClosedSolid() || !b.IsClosedSolid() {
		return nil, fmt.Errorf("%w: Boolean operands must be closed solids", ErrUnsupported)
	}
	// Disjoint bounds short-circuit.
	pad := 4 * opt.Tol.Linear
	if !nmath.BoxesIntersect(nmath.GrowBox(a.BoundingBox(), pad), nmath.GrowBox(b.BoundingBox(), pad)) {
		switch op {
		case opUnite:
			return mergeDisjoint(a, b, opt)
		case opSubtract:
			return a.DeepCopy(), nil
		default:
			return brep.NewEmptyBody(), nil
		}
	}

	idxA := newFaceIndex(a, pad)
	idxB := newFaceIndex(b, pad)

	// Phase 1: intersection curves per face, keyed by face.
	chainsA := map[brep.FaceID][]chainUV{}
	chainsB := map[brep.FaceID][]chainUV{}
	var phaseErr error
	a.Faces(func(fa brep.FaceID) bool {
		sa, _ := a.FaceSurface(fa)
		if sa == nil {
			phaseErr = fmt.Errorf("%w: face without surface", ErrUnsupported)
			return false
		}
		for _, fb := range idxB.query(faceBounds(a, fa)) {
			sb, _ := b.FaceSurface(fb)
			if sb == nil {
				continue
			}
			curves, err := geom.IntersectSurfaces(sa, sb, opt.Tol)
			switch err {
			case nil:
			case geom.ErrDegenerate:
				// Coincident surfaces: no cut; the fragments will
				// classify as on-boundary.
				continue
			case geom.ErrTangentialOnly:
				// Tangential contact cuts nothing.
				continue
			default:
				phaseErr = fmt.Errorf("%w: surface intersection: %v", ErrGeometry, err)
				return false
			}
			for i := range curves {
				sc := &curves[i]
				if sc.Class == geom.Tangential {
					continue
				}
				addClippedChains(chainsA, a, fa, sc, sc.UVA, opt.Tol)
				addClippedChains(chainsB, b, fb, sc, sc.UVB, opt.Tol)
			}
		}
		return true
	})
	if phaseErr != nil {
		return nil, phaseErr
	}
	if err := opt.cancelled(); err != nil {
		return nil, err
	}

	// Phase 2+3: imprint and classify fragments of both bodies.
	var frags []boolFragment
	collect := func(body, other *brep.Body, otherIdx *faceIndex, chains map[brep.FaceID][]chainUV, fromA bool) error {
		var err error
		body.Faces(func(f brep.FaceID) bool {
			base, e2 := taggedFaceLoops(body, f)
			if e2 != nil {
				err = e2
				return false
			}
			parts := splitFragments(base, chains[f])
			for _, fr := range parts {
				uv, ok := interiorUV(fr)
				if !ok {
					continue
				}
				surf, _ := body.FaceSurface(f)
				p := surf.Evaluate(uv.X, uv.Y)
				cls, e3 := classifyAgainst(body, f, p, other, otherIdx, opt.Tol)
				if e3 != nil {
					err = e3
					return false
				}
				spec, e4 := fragmentSpec(fr, body, f, chains[f], opt.Tol)
				if e4 != nil {
					err = e4
					return false
				}
				frags = append(frags, boolFragment{spec: spec, fromA: fromA, class: cls})
			}
			return true
		})
		return err
	}
	if err := collect(a, b, idxB, chainsA, true); err != nil {
		return nil, err
	}
	if err := opt.cancelled(); err != nil {
		return nil, err
	}
	if err := collect(b, a, idxA, chainsB, false); err != nil {
		return nil, err
	}
	if err := opt.cancelled(); err != nil {
		return nil, err
	}

	// Phase 4: selection.
	var selected []brep.FaceSpec
	keepOn := map[fragClass]bool{}
	switch op {
	case opUnite:
		keepOn[classOnSame] = true
	case opSubtract:
		keepOn[classOnOpposite] = true
	case opIntersect:
		keepOn[classOnSame] = true
	}
	for _, fr := range frags {
		switch fr.class {
		case classOut:
			if fr.fromA && (op == opUnite || op == opSubtract) ||
				!fr.fromA && op == opUnite {
				selected = append(selected, fr.spec)
			}
		case classIn:
			switch {
			case fr.fromA && op == opIntersect:
				selected = append(selected, fr.spec)
			case !fr.fromA && op == opIntersect:
				selected = append(selected, fr.spec)
			case !fr.fromA && op == opSubtract:
				selected = append(selected, reverseSpec(fr.spec))
			}
		case classOnSame, classOnOpposite:
			// Coincident fragments are kept once, from A only.
			if fr.fromA && keepOn[fr.class] {
				selected = append(selected, fr.spec)
			}
		}
	}
	if len(selected) == 0 {
		return brep.NewEmptyBody(), nil
	}

	// Phase 5: stitch.
	out, err := brep.Assemble(selected, opt.Tol)
	if err != nil {
		return nil, fmt.Errorf("%w: stitching Boolean result: %v", ErrTopology, err)
	}
	return out, nil
}

// addClippedChains clips an intersection curve to the face's domain
// and records the surviving pieces as chains for that face.
func addClippedChains(dst map[brep.FaceID][]chainUV, body *brep.Body, f brep.FaceID, sc *geom.SurfaceCurve, uvTrack []md2.Vec, tc nmath.ToleranceContext) {
	if len(uvTrack) != len(sc.Ts) || len(uvTrack) < 2 {
		return
	}
	polys, err := body.FaceUVLoops(f, edgeSamples)
	if err != nil || len(polys) == 0 {
		return
	}
	surf, _ := body.FaceSurface(f)
	uvr := surf.UVRange()
	uPeriod, vPeriod := 0.0, 0.0
	if surf.PeriodicU() {
		uPeriod = uvr.U.Length()
	}
	if surf.PeriodicV() {
		vPeriod = uvr.V.Length()
	}
	// Unwrap the track continuously, anchored near the face polygon.
	track := make([]md2.Vec, len(uvTrack))
	track[0] = anchorUV(uvTrack[0], polys[0], uPeriod, vPeriod)
	for i := 1; i < len(uvTrack); i++ {
		track[i] = unwrap2(track[i-1], uvTrack[i], uPeriod, vPeriod)
	}
	inside := make([]bool, len(track))
	for i, uv := range track {
		inside[i] = brep.PointInPolygons(polys, uv)
	}
	chainID := len(dst[f])
	flush := func(lo, hi int) {
		if hi-lo < 1 {
			return
		}
		nodes := make([]uvNode, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			nodes = append(nodes, uvNode{
				uv:  track[i],
				src: srcRef{kind: srcChain, chain: chainID},
				t:   sc.Ts[i],
			})
		}
		closed := false
		if sc.Curve.Closed() && lo == 0 && hi == len(track)-1 {
			if md2.Norm(md2.Sub(track[0], track[len(track)-1])) < 1e-7 {
				// Fully interior closed chain: drop the duplicate.
				nodes = nodes[:len(nodes)-1]
				closed = true
			}
		}
		dst[f] = append(dst[f], chainUV{nodes: nodes, curve: sc.Curve, closed: closed})
		chainID++
	}
	runStart := -1
	for i := range inside {
		if inside[i] && runStart < 0 {
			runStart = i
		}
		if (!inside[i] || i == len(inside)-1) && runStart >= 0 {
			end := i - 1
			if inside[i] {
				end = i
			}
			flush(runStart, end)
			runStart = -1
		}
	}
}

// anchorUV shifts uv by whole periods to land inside (or nearest to)
// the polygon's span.
func anchorUV(uv md2.Vec, poly []md2.Vec, uPeriod, vPeriod float64) md2.Vec {
	if len(poly) == 0 {
		return uv
	}
	cx, cy := 0.0, 0.0
	for _, p := range poly {
		cx += p.X
		cy += p.Y
	}
	c := md2.Vec{X: cx / float64(len(poly)), Y: cy / float64(len(poly))}
	return unwrap2(c, uv, uPeriod, vPeriod)
}

// classifyAgainst decides whether point p, interior to a face of body,
// lies inside, outside or on the other body.
func classifyAgainst(body *brep.Body, f brep.FaceID, p md3.Vec, other *brep.Body, otherIdx *faceIndex, tc nmath.ToleranceContext) (fragClass, error) {
	// Tolerant containment: on the other boundary?
	onTol := 8 * tc.Linear
	near := otherIdx.query(nmath.GrowBox(md3.Box{Min: p, Max: p}, onTol))
	for _, of := range near {
		surf, _ := other.FaceSurface(of)
		if surf == nil {
			continue
		}
		u, v, _, dist := surf.Project(p)
		if dist > onTol {
			continue
		}
		polys, err := other.FaceUVLoops(of, edgeSamples)
		if err != nil {
			continue
		}
		if !brep.PointInPolygons(polys, md2.Vec{X: u, Y: v}) {
			continue
		}
		// On the other body's boundary; compare orientations.
		myNormal, err := faceNormalAt(body, f, p)
		if err != nil {
			continue
		}
		otherNormal, err := faceNormalAt(other, of, p)
		if err != nil {
			continue
		}
		if md3.Dot(myNormal, otherNormal) >= 0 {
			return classOnSame, nil
		}
		return classOnOpposite, nil
	}
	in, err := pointInsideBody(p, other, otherIdx, tc)
	if err != nil {
		return classOut, err
	}
	if in {
		return classIn, nil
	}
	return classOut, nil
}

// faceNormalAt evaluates the outward normal of a face near point p.
func faceNormalAt(b *brep.Body, f brep.FaceID, p md3.Vec) (md3.Vec, error) {
	surf, err := b.FaceSurface(f)
	if err != nil || surf == nil {
		return md3.Vec{}, ErrGeometry
	}
	u, v, _, _ := surf.Project(p)
	n, err := surf.Normal(u, v)
	if err != nil {
		return md3.Vec{}, err
	}
	same, _ := b.FaceSameSense(f)
	if !same {
		n = md3.Scale(-1, n)
	}
	return n, nil
}

// rayDirs are the deterministic candidate directions of the tolerant
// ray cast; irrational components avoid axis-aligned pathologies.
var rayDirs = []md3.Vec{
	{X: 0.57721566, Y: 0.30103, Z: 0.76009253},
	{X: -0.26794919, Y: 0.88622693, Z: 0.37796447},
	{X: 0.80178373, Y: -0.53452248, Z: 0.26726124},
	{X: 0.12309149, Y: 0.49236596, Z: -0.86164044},
	{X: -0.65465367, Y: -0.37796447, Z: 0.65465367},
	{X: 0.9258201, Y: 0.30860670, Z: -0.21821789},
	{X: -0.43643578, Y: 0.65465367, Z: -0.61721340},
	{X: 0.53452248, Y: -0.80178373, Z: -0.26726124},
}

// pointInsideBody ray-casts from p and counts parity of crossings.
// Rays that graze an edge, hit tangentially or pass near a boundary
// are rejected and a fresh direction is tried.
func pointInsideBody(p md3.Vec, body *brep.Body, idx *faceIndex, tc nmath.ToleranceContext) (bool, error) {
	diag := nmath.BoxDiagonal(body.BoundingBox())
	if diag <= 0 {
		return false, nil
	}
	rayLen := 4 * diag
	for _, dir := range rayDirs {
		u, err := nmath.Unit(dir)
		if err != nil {
			continue
		}
		line, err := geom.NewLine(p, u, geom.ParamRange{Start: 0, End: rayLen})
		if err != nil {
			continue
		}
		rayBox := line.BoundsOf(line.ParamRange())
		crossings := 0
		clean := true
		for _, f := range idx.query(nmath.GrowBox(rayBox, tc.Linear)) {
			surf, _ := body.FaceSurface(f)
			if surf == nil {
				clean = false
				break
			}
			hits, err := geom.IntersectCurveSurface(line, surf, tc)
			if err == geom.ErrTangentialOnly {
				clean = false
				break
			}
			if err != nil && err != geom.ErrNonConvergent {
				return false, fmt.Errorf("%w: ray cast: %v", ErrGeometry, err)
			}
			polys, perr := body.FaceUVLoops(f, edgeSamples)
			if perr != nil {
				clean = false
				break
			}
			for _, h := range hits {
				if h.T <= 4*tc.Linear {
					// Starting on the boundary; caller handles "on".
					continue
				}
				if h.Class == geom.Tangential {
					clean = false
					break
				}
				uv := md2.Vec{X: h.U, Y: h.V}
				if !brep.PointInPolygons(polys, uv) {
					continue
				}
				if uvNearBoundary(polys, uv, boundaryMargin(surf)) {
					clean = false
					break
				}
				crossings++
			}
			if !clean {
				break
			}
		}
		if clean {
			return crossings%2 == 1, nil
		}
	}
	return false, fmt.Errorf("%w: ray classification found no clean direction", ErrGeometry)
}

// boundaryMargin scales the UV grazing band to the surface's domain.
func boundaryMargin(surf geom.Surface) float64 {
	r := surf.UVRange()
	m := math.Min(r.U.Length(), r.V.Length())
	if m <= 0 || math.IsInf(m, 0) {
		m = 1
	}
	return m * 1e-4
}

func uvNearBoundary(polys [][]md2.Vec, p md2.Vec, margin float64) bool {
	for _, poly := range polys {
		for i := range poly {
			j := (i + 1) % len(poly)
			a, b := poly[i], poly[j]
			ab := md2.Sub(b, a)
			den := md2.Dot(ab, ab)
			t := 0.0
			if den > 0 {
				t = nmath.Clamp(md2.Dot(md2.Sub(p, a), ab)/den, 0, 1)
			}
			foot := md2.Add(a, md2.Scale(t, ab))
			if md2.Norm(md2.Sub(p, foot)) < margin {
				return true
			}
		}
	}
	return false
}

// reverseSpec flips a face specification's orientation: loops reverse
// and the surface sense toggles. Used for the kept inside-of-B faces
// of a subtraction, which must bound material from the other side.
func reverseSpec(fs brep.FaceSpec) brep.FaceSpec {
	rev := func(ls brep.LoopSpec) brep.LoopSpec {
		out := brep.LoopSpec{Uses: make([]brep.EdgeUse, len(ls.Uses))}
		for i, u := range ls.Uses {
			out.Uses[len(ls.Uses)-1-i] = brep.EdgeUse{Curve: u.Curve, Forward: !u.Forward}
		}
		return out
	}
	out := brep.FaceSpec{
		Surf:      fs.Surf,
		SameSense: !fs.SameSense,
		Outer:     rev(fs.Outer),
		Tags:      fs.Tags,
	}
	for _, il := range fs.Inner {
		out.Inner = append(out.Inner, rev(il))
	}
	return out
}

// mergeDisjoint unites two bodies that do not touch: the result simply
// carries both bodies' faces.
func mergeDisjoint(a, b *brep.Body, opt Options) (*brep.Body, error) {
	var specs []brep.FaceSpec
	for _, src := range []*brep.Body{a, b} {
		var err error
		src.Faces(func(f brep.FaceID) bool {
			spec, e := faceSpecOf(src, f)
			if e != nil {
				err = e
				return false
			}
			specs = append(specs, spec)
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	out, err := brep.Assemble(specs, opt.Tol)
	if err != nil {
		return nil, fmt.Errorf("%w: merging disjoint bodies: %v", ErrTopology, err)
	}
	return out, nil
}

// faceSpecOf extracts an assemblable spec from an existing face.
func faceSpecOf(b *brep.Body, f brep.FaceID) (brep.FaceSpec, error) {
	surf, err := b.FaceSurface(f)
	if err != nil {
		return brep.FaceSpec{}, err
	}
	same, _ := b.FaceSameSense(f)
	loopOf := func(l brep.LoopID) (brep.LoopSpec, error) {
		var ls brep.LoopSpec
		err := b.LoopCoedges(l, func(c brep.CoedgeID) bool {
			e, forward, _ := b.CoedgeEdge(c)
			curve, _ := b.EdgeCurve(e)
			ls.Uses = append(ls.Uses, brep.EdgeUse{Curve: curve, Forward: forward})
			return true
		})
		return ls, err
	}
	ol, err := b.FaceOuterLoop(f)
	if err != nil {
		return brep.FaceSpec{}, err
	}
	outer, err := loopOf(ol)
	if err != nil {
		return brep.FaceSpec{}, err
	}
	spec := brep.FaceSpec{Surf: surf, SameSense: same, Outer: outer}
	b.FaceInnerLoops(f, func(l brep.LoopID) bool {
		if il, e := loopOf(l); e == nil {
			spec.Inner = append(spec.Inner, il)
		}
		return true
	})
	return spec, nil
}
