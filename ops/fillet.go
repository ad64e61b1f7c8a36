package ops

import (
	"fmt"
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Fillet replaces the selected edges with rolling-ball blend surfaces
// of constant radius. Edges must all be convex or all concave relative
// to the material; the current implementation blends straight edges
// between planar faces and requires the selected edges to be disjoint
// (chains across tangent edges and multi-edge corners are not blended
// in one call).
func Fillet(body *brep.Body, edges []brep.EdgeID, radius float64, opt Options) (*brep.Body, error) {
	return filletVariable(body, edges, radius, radius, opt)
}

// FilletVariable blends each selected edge with a radius running
// linearly from r0 at the edge start to r1 at its end.
func FilletVariable(body *brep.Body, edges []brep.EdgeID, r0, r1 float64, opt Options) (*brep.Body, error) {
	return filletVariable(body, edges, r0, r1, opt)
}

func filletVariable(body *brep.Body, edges []brep.EdgeID, r0, r1 float64, opt Options) (*brep.Body, error) {
	if body == nil || body.Released() || !body.IsClosedSolid() {
		return nil, fmt.Errorf("%w: fillet needs a closed solid", ErrUnsupported)
	}
	if r0 <= 0 || r1 <= 0 {
		return nil, fmt.Errorf("%w: fillet radius must be positive", ErrParameter)
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("%w: no edges selected", ErrParameter)
	}
	if err := rejectSharedVertices(body, edges); err != nil {
		return nil, err
	}
	patches := make([]*blendPatch, 0, len(edges))
	firstConvex := false
	for i, e := range edges {
		p, err := newBlendPatch(body, e, r0, r1, opt)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			firstConvex = p.convex
		} else if p.convex != firstConvex {
			return nil, fmt.Errorf("%w: mixed convex and concave edges in one fillet", ErrParameter)
		}
		patches = append(patches, p)
	}
	return applyBlends(body, patches, opt)
}

// Chamfer replaces each selected edge with a flat bevel set back d1 on
// the first adjacent face and d2 on the second; equal distances give a
// symmetric chamfer.
func Chamfer(body *brep.Body, edges []brep.EdgeID, d1, d2 float64, opt Options) (*brep.Body, error) {
	if body == nil || body.Released() || !body.IsClosedSolid() {
		return nil, fmt.Errorf("%w: chamfer needs a closed solid", ErrUnsupported)
	}
	if d1 <= 0 || d2 <= 0 {
		return nil, fmt.Errorf("%w: chamfer distances must be positive", ErrParameter)
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("%w: no edges selected", ErrParameter)
	}
	if err := rejectSharedVertices(body, edges); err != nil {
		return nil, err
	}
	var patches []*blendPatch
	for _, e := range edges {
		p, err := newChamferPatch(body, e, d1, d2, opt)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return applyBlends(body, patches, opt)
}

// ChamferAngle chamfers with a setback distance on the first face and
// an angle from it, converted to the equivalent two-distance form.
func ChamferAngle(body *brep.Body, edges []brep.EdgeID, d, angle float64, opt Options) (*brep.Body, error) {
	if angle <= 0 || angle >= math.Pi/2 {
		return nil, fmt.Errorf("%w: chamfer angle must be in (0, π/2)", ErrParameter)
	}
	return Chamfer(body, edges, d, d*math.Tan(angle), opt)
}

func rejectSharedVertices(body *brep.Body, edges []brep.EdgeID) error {
	seen := map[brep.VertID][]brep.EdgeID{}
	for _, e := range edges {
		v0, v1, err := body.EdgeVertices(e)
		if err != nil {
			return fmt.Errorf("%w: edge %d: %v", ErrParameter, e, err)
		}
		seen[v0] = append(seen[v0], e)
		if v1 != v0 {
			seen[v1] = append(seen[v1], e)
		}
	}
	for v, es := range seen {
		if len(es) > 1 {
			return fmt.Errorf("%w: selected edges meet at vertex %d; blend chains and corner patches must be applied edge by edge", ErrUnsupported, v)
		}
	}
	return nil
}

// blendPatch is the computed geometry of one edge blend, shared by
// fillet (curved bevel) and chamfer (flat bevel).
type blendPatch struct {
	edge   brep.EdgeID
	f1, f2 brep.FaceID
	// Tangency/setback lines on each face, directed like the edge.
	t1, t2 geom.Curve
	// Blend surface between them.
	surf      geom.Surface
	sameSense bool
	// End caps: the curve replacing the corner on each end face, from
	// the t1 endpoint to the t2 endpoint. capAt[i] corresponds to the
	// edge endpoint i (0 = curve start).
	capAt [2]geom.Curve
	// New endpoint positions on each adjacent face, per edge end.
	end1, end2 [2]md3.Vec
	// old endpoint positions
	oldEnd [2]md3.Vec
	convex bool
}

// blendInputs resolves the shared inputs of fillet and chamfer.
type blendInputs struct {
	line    *geom.Line
	f1, f2  brep.FaceID
	n1, n2  md3.Vec
	u1, u2  md3.Vec // in-face directions away from the edge
	p0, p1  md3.Vec
	edgeDir md3.Vec
}

func resolveBlendInputs(body *brep.Body, e brep.EdgeID) (*blendInputs, error) {
	curve, err := body.EdgeCurve(e)
	if err != nil {
		return nil, fmt.Errorf("%w: edge %d: %v", ErrParameter, e, err)
	}
	line, ok := curve.(*geom.Line)
	if !ok {
		return nil, fmt.Errorf("%w: blend supports straight edges", ErrUnsupported)
	}
	f1, f2, err := body.EdgeFaces(e)
	if err != nil || f1.IsNil() || f2.IsNil() {
		return nil, fmt.Errorf("%w: edge %d is not interior", ErrUnsupported, e)
	}
	s1, _ := body.FaceSurface(f1)
	s2, _ := body.FaceSurface(f2)
	pl1, ok1 := s1.(*geom.Plane)
	pl2, ok2 := s2.(*geom.Plane)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: blend supports edges between planar faces", ErrUnsupported)
	}
	n1 := outwardPlaneNormal(body, f1, pl1)
	n2 := outwardPlaneNormal(body, f2, pl2)
	r := line.ParamRange()
	bi := &blendInputs{
		line: line, f1: f1, f2: f2, n1: n1, n2: n2,
		p0: line.Evaluate(r.Start), p1: line.Evaluate(r.End),
		edgeDir: line.Direction(),
	}
	// In-face directions perpendicular to the edge.
	for i, n := range []md3.Vec{n1, n2} {
		u := md3.Cross(n, bi.edgeDir)
		uu, err := nmath.Unit(u)
		if err != nil {
			return nil, fmt.Errorf("%w: edge lies along face normal", ErrGeometry)
		}
		// Point into the face's interior.
		ip, _, _, err2 := body.InteriorPoint([]brep.FaceID{f1, f2}[i])
		if err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeometry, err2)
		}
		if md3.Dot(md3.Sub(ip, bi.p0), uu) < 0 {
			uu = md3.Scale(-1, uu)
		}
		if i == 0 {
			bi.u1 = uu
		} else {
			bi.u2 = uu
		}
	}
	return bi, nil
}

func outwardPlaneNormal(body *brep.Body, f brep.FaceID, p *geom.Plane) md3.Vec {
	n := p.PlaneNormal()
	if same, _ := body.FaceSameSense(f); !same {
		n = md3.Scale(-1, n)
	}
	return n
}

func newBlendPatch(body *brep.Body, e brep.EdgeID, r0, r1 float64, opt Options) (*blendPatch, error) {
	bi, err := resolveBlendInputs(body, e)
	if err != nil {
		return nil, err
	}
	cosPhi := md3.Dot(bi.n1, bi.n2)
	if cosPhi > 1-1e-9 {
		return nil, fmt.Errorf("%w: faces are tangent across edge %d", ErrGeometry, e)
	}
	halfCos := math.Sqrt((1 + cosPhi) / 2)
	if halfCos < 1e-9 {
		return nil, fmt.Errorf("%w: knife edge cannot be filleted", ErrGeometry)
	}
	w, err := nmath.Unit(md3.Scale(-1, md3.Add(bi.n1, bi.n2)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	edgeLen := md3.Norm(md3.Sub(bi.p1, bi.p0))
	setback := func(r float64) float64 { return r * math.Sqrt(1-halfCos*halfCos) / halfCos }
	// Fillet must fit the adjacent faces.
	maxR := math.Max(r0, r1)
	if setback(maxR) > 0.5*faceSpan(body, bi.f1, bi.u1) || setback(maxR) > 0.5*faceSpan(body, bi.f2, bi.u2) {
		return nil, fmt.Errorf("%w: fillet radius %g exceeds adjacent face extent", ErrGeometry, maxR)
	}
	center := func(s, r float64) md3.Vec {
		e := md3.Add(bi.p0, md3.Scale(s*edgeLen, bi.edgeDir))
		return md3.Add(e, md3.Scale(r/halfCos, w))
	}
	radiusAt := func(s float64) float64 { return nmath.Lerp(r0, r1, s) }
	tangent := func(s float64, u md3.Vec, r float64) md3.Vec {
		e := md3.Add(bi.p0, md3.Scale(s*edgeLen, bi.edgeDir))
		return md3.Add(e, md3.Scale(setback(r), u))
	}
	p := &blendPatch{edge: e, f1: bi.f1, f2: bi.f2, oldEnd: [2]md3.Vec{bi.p0, bi.p1}}
	p.end1 = [2]md3.Vec{tangent(0, bi.u1, r0), tangent(1, bi.u1, r1)}
	p.end2 = [2]md3.Vec{tangent(0, bi.u2, r0), tangent(1, bi.u2, r1)}
	if p.t1, err = geom.NewLineSegment(p.end1[0], p.end1[1]); err != nil {
		return nil, fmt.Errorf("%w: tangency line: %v", ErrGeometry, err)
	}
	if p.t2, err = geom.NewLineSegment(p.end2[0], p.end2[1]); err != nil {
		return nil, fmt.Errorf("%w: tangency line: %v", ErrGeometry, err)
	}
	// Convexity: the blend arc midpoint eats into material on a
	// convex edge and adds material on a concave one.
	c0 := center(0.5, radiusAt(0.5))
	toEdge, err := nmath.Unit(md3.Sub(md3.Scale(0.5, md3.Add(bi.p0, bi.p1)), c0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	probe := md3.Add(c0, md3.Scale(radiusAt(0.5), toEdge))
	idx := newFaceIndex(body, opt.Tol.Linear)
	inside, err := pointInsideBody(probe, body, idx, opt.Tol)
	if err != nil {
		return nil, err
	}
	p.convex = inside
	// Blend surface: an exact cylinder for constant radius, a lofted
	// arc strip for the variable case.
	if r0 == r1 {
		axisBase := center(0, r0)
		cyl, err := geom.NewCylinder(axisBase, bi.edgeDir, r0, geom.ParamRange{Start: 0, End: edgeLen})
		if err != nil {
			return nil, fmt.Errorf("%w: blend cylinder: %v", ErrGeometry, err)
		}
		p.surf = cyl
		p.sameSense = p.convex
	} else {
		const stations = 12
		grid := make([][]md3.Vec, stations+1)
		for i := 0; i <= stations; i++ {
			s := float64(i) / stations
			grid[i] = blendArcPoints(center(s, radiusAt(s)), tangent(s, bi.u1, radiusAt(s)), tangent(s, bi.u2, radiusAt(s)), 8)
		}
		surf, err := geom.LoftSurface(grid)
		if err != nil {
			return nil, fmt.Errorf("%w: variable blend: %v", ErrGeometry, err)
		}
		p.surf = surf
		p.sameSense = true
	}
	// End cap arcs from the face-1 tangency to the face-2 tangency.
	for i := 0; i < 2; i++ {
		r := radiusAt(float64(i))
		c := center(float64(i), r)
		arc, err := arcBetween(c, p.end1[i], p.end2[i])
		if err != nil {
			return nil, fmt.Errorf("%w: blend cap: %v", ErrGeometry, err)
		}
		p.capAt[i] = arc
	}
	return p, nil
}

func newChamferPatch(body *brep.Body, e brep.EdgeID, d1, d2 float64, opt Options) (*blendPatch, error) {
	bi, err := resolveBlendInputs(body, e)
	if err != nil {
		return nil, err
	}
	p := &blendPatch{edge: e, f1: bi.f1, f2: bi.f2, oldEnd: [2]md3.Vec{bi.p0, bi.p1}}
	off1 := md3.Scale(d1, bi.u1)
	off2 := md3.Scale(d2, bi.u2)
	p.end1 = [2]md3.Vec{md3.Add(bi.p0, off1), md3.Add(bi.p1, off1)}
	p.end2 = [2]md3.Vec{md3.Add(bi.p0, off2), md3.Add(bi.p1, off2)}
	if p.t1, err = geom.NewLineSegment(p.end1[0], p.end1[1]); err != nil {
		return nil, fmt.Errorf("%w: setback line: %v", ErrGeometry, err)
	}
	if p.t2, err = geom.NewLineSegment(p.end2[0], p.end2[1]); err != nil {
		return nil, fmt.Errorf("%w: setback line: %v", ErrGeometry, err)
	}
	// Bevel plane through both setback lines, facing outward.
	across := md3.Sub(p.end2[0], p.end1[0])
	nrm := md3.Cross(bi.edgeDir, across)
	outward := md3.Add(bi.n1, bi.n2)
	if md3.Dot(nrm, outward) < 0 {
		nrm = md3.Scale(-1, nrm)
	}
	plane, err := geom.NewPlane(p.end1[0], nrm)
	if err != nil {
		return nil, fmt.Errorf("%w: bevel plane: %v", ErrGeometry, err)
	}
	p.surf = plane
	p.sameSense = true
	p.convex = true
	for i := 0; i < 2; i++ {
		l, err := geom.NewLineSegment(p.end1[i], p.end2[i])
		if err != nil {
			return nil, fmt.Errorf("%w: bevel cap: %v", ErrGeometry, err)
		}
		p.capAt[i] = l
	}
	return p, nil
}

// faceSpan estimates the face extent along direction u.
func faceSpan(body *brep.Body, f brep.FaceID, u md3.Vec) float64 {
	box := faceBounds(body, f)
	if nmath.BoxIsEmpty(box) {
		return 0
	}
	sz := box.Size()
	return math.Abs(sz.X*u.X) + math.Abs(sz.Y*u.Y) + math.Abs(sz.Z*u.Z)
}

// blendArcPoints samples the blend arc at one station.
func blendArcPoints(center, a, b md3.Vec, n int) []md3.Vec {
	va := md3.Sub(a, center)
	vb := md3.Sub(b, center)
	r := md3.Norm(va)
	axis := md3.Cross(va, vb)
	out := make([]md3.Vec, n+1)
	total := math.Atan2(md3.Norm(axis), md3.Dot(va, vb))
	axU, err := nmath.Unit(axis)
	if err != nil {
		for i := range out {
			out[i] = md3.Add(center, va)
		}
		return out
	}
	for i := 0; i <= n; i++ {
		q, _ := nmath.QuatFromAxisAngle(axU, total*float64(i)/float64(n))
		v := q.Rotate(va)
		out[i] = md3.Add(center, md3.Scale(r/md3.Norm(v), v))
	}
	return out
}

// arcBetween builds the minor arc from a to b about center.
func arcBetween(center, a, b md3.Vec) (geom.Curve, error) {
	va := md3.Sub(a, center)
	vb := md3.Sub(b, center)
	axis := md3.Cross(va, vb)
	angle := math.Atan2(md3.Norm(axis), md3.Dot(va, vb))
	if angle < 1e-12 {
		return nil, geom.ErrDegenerate
	}
	return geom.NewArc(center, axis, va, md3.Norm(va), geom.ParamRange{Start: 0, End: angle})
}

// loopUse is an editable (curve, direction) boundary element used
// while rewriting face loops around a blend.
type loopUse struct {
	curve   geom.Curve
	forward bool
	edge    brep.EdgeID
}

func useEndpoint(u loopUse, start bool) md3.Vec {
	r := u.curve.ParamRange()
	t := r.Start
	if start != u.forward {
		t = r.End
	}
	return u.curve.Evaluate(t)
}

// applyBlends rewrites the affected faces' boundaries and assembles
// the blended body.
func applyBlends(body *brep.Body, patches []*blendPatch, opt Options) (*brep.Body, error) {
	// Editable loop lists for every face.
	loops := map[brep.FaceID][][]loopUse{}
	var err error
	body.Faces(func(f brep.FaceID) bool {
		collect := func(l brep.LoopID) []loopUse {
			var us []loopUse
			body.LoopCoedges(l, func(c brep.CoedgeID) bool {
				e, fwd, _ := body.CoedgeEdge(c)
				cv, _ := body.EdgeCurve(e)
				us = append(us, loopUse{curve: cv, forward: fwd, edge: e})
				return true
			})
			return us
		}
		ol, e2 := body.FaceOuterLoop(f)
		if e2 != nil {
			err = e2
			return false
		}
		ls := [][]loopUse{collect(ol)}
		body.FaceInnerLoops(f, func(l brep.LoopID) bool {
			ls = append(ls, collect(l))
			return true
		})
		loops[f] = ls
		return true
	})
	if err != nil {
		return nil, err
	}
	retrim := func(u loopUse, which, to md3.Vec) (loopUse, error) {
		l, ok := u.curve.(*geom.Line)
		if !ok {
			return u, fmt.Errorf("%w: blend junction on a curved edge", ErrUnsupported)
		}
		r := l.ParamRange()
		a, b := l.Evaluate(r.Start), l.Evaluate(r.End)
		switch {
		case md3.Norm(md3.Sub(a, which)) <= 64*opt.Tol.Linear:
			a = to
		case md3.Norm(md3.Sub(b, which)) <= 64*opt.Tol.Linear:
			b = to
		default:
			return u, fmt.Errorf("%w: junction edge does not touch the blended corner", ErrGeometry)
		}
		nl, err := geom.NewLineSegment(a, b)
		if err != nil {
			return u, fmt.Errorf("%w: junction edge collapsed", ErrTolerance)
		}
		return loopUse{curve: nl, forward: u.forward, edge: u.edge}, nil
	}
	for _, p := range patches {
		// Replace the blended edge in its two faces.
		for fi, t := range map[brep.FaceID]geom.Curve{p.f1: p.t1, p.f2: p.t2} {
			found := false
			for li, lp := range loops[fi] {
				for ui, u := range lp {
					if u.edge == p.edge {
						loops[fi][li][ui] = loopUse{curve: t, forward: u.forward, edge: brep.NilID}
						found = true
					}
				}
			}
			if !found {
				return nil, fmt.Errorf("%w: blended edge %d vanished from face %d", ErrGeometry, p.edge, fi)
			}
		}
		// Trim every other edge touching the blended corners and cut
		// the corners of the end faces with the cap curves.
		for endIdx := 0; endIdx < 2; endIdx++ {
			old := p.oldEnd[endIdx]
			endFace := brep.FaceID(brep.NilID)
			for f, lps := range loops {
				for li, lp := range lps {
					for ui := 0; ui < len(lp); ui++ {
						u := lp[ui]
						if u.edge == p.edge || u.edge.IsNil() {
							continue
						}
						touches := md3.Norm(md3.Sub(useEndpoint(u, true), old)) <= 64*opt.Tol.Linear ||
							md3.Norm(md3.Sub(useEndpoint(u, false), old)) <= 64*opt.Tol.Linear
						if !touches {
							continue
						}
						fa, fb, _ := body.EdgeFaces(u.edge)
						var to md3.Vec
						switch {
						case fa == p.f1 || fb == p.f1:
							to = p.end1[endIdx]
						case fa == p.f2 || fb == p.f2:
							to = p.end2[endIdx]
						default:
							continue
						}
						nu, e2 := retrim(u, old, to)
						if e2 != nil {
							return nil, e2
						}
						loops[f][li][ui] = nu
						if f != p.f1 && f != p.f2 {
							endFace = f
						}
					}
				}
			}
			if endFace.IsNil() {
				return nil, fmt.Errorf("%w: no end face found at blended corner", ErrGeometry)
			}
			if err := spliceCap(loops[endFace], p.capAt[endIdx], p.end1[endIdx], p.end2[endIdx], opt.Tol); err != nil {
				return nil, err
			}
		}
	}
	var specs []brep.FaceSpec
	for f, lps := range loops {
		surf, _ := body.FaceSurface(f)
		same, _ := body.FaceSameSense(f)
		spec := brep.FaceSpec{Surf: surf, SameSense: same}
		for li, lp := range lps {
			var ls brep.LoopSpec
			for _, u := range lp {
				ls.Uses = append(ls.Uses, brep.EdgeUse{Curve: u.curve, Forward: u.forward})
			}
			if li == 0 {
				spec.Outer = ls
			} else {
				spec.Inner = append(spec.Inner, ls)
			}
		}
		specs = append(specs, spec)
	}
	for _, p := range patches {
		spec, err := blendFaceSpec(p, opt.Tol)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	out, err := brep.Assemble(specs, opt.Tol)
	if err != nil {
		return nil, fmt.Errorf("%w: assembling blend: %v", ErrTopology, err)
	}
	return out, nil
}

// spliceCap inserts the cap curve into the end face's loop between
// the two uses that were trimmed back from the blended corner.
func spliceCap(lps [][]loopUse, capCurve geom.Curve, end1, end2 md3.Vec, tc nmath.ToleranceContext) error {
	near := func(a, b md3.Vec) bool { return md3.Norm(md3.Sub(a, b)) <= 64*tc.Linear }
	for li, lp := range lps {
		n := len(lp)
		for i := 0; i < n; i++ {
			aEnd := useEndpoint(lp[i], false)
			bStart := useEndpoint(lp[(i+1)%n], true)
			var fwd bool
			switch {
			case near(aEnd, end1) && near(bStart, end2):
				fwd = true
			case near(aEnd, end2) && near(bStart, end1):
				fwd = false
			default:
				continue
			}
			ins := loopUse{curve: capCurve, forward: fwd, edge: brep.NilID}
			out := make([]loopUse, 0, n+1)
			out = append(out, lp[:i+1]...)
			out = append(out, ins)
			out = append(out, lp[i+1:]...)
			lps[li] = out
			return nil
		}
	}
	return fmt.Errorf("%w: cap splice found no trimmed corner", ErrGeometry)
}

// blendFaceSpec builds the blend face's own boundary: the two
// tangency lines joined by the two end caps, walked continuously.
func blendFaceSpec(p *blendPatch, tc nmath.ToleranceContext) (brep.FaceSpec, error) {
	uses, err := chainUses([]geom.Curve{p.t1, p.capAt[1], p.t2, p.capAt[0]}, tc)
	if err != nil {
		return brep.FaceSpec{}, fmt.Errorf("%w: blend boundary does not close: %v", ErrGeometry, err)
	}
	return brep.FaceSpec{Surf: p.surf, SameSense: p.sameSense, Outer: brep.LoopSpec{Uses: uses}}, nil
}

// chainUses orders curves into a continuous closed walk, choosing the
// traversal direction of each.
func chainUses(curves []geom.Curve, tc nmath.ToleranceContext) ([]brep.EdgeUse, error) {
	if len(curves) == 0 {
		return nil, fmt.Errorf("no curves")
	}
	used := make([]bool, len(curves))
	var uses []brep.EdgeUse
	s0, e0 := geom.CurveStartEnd(curves[0])
	uses = append(uses, brep.EdgeUse{Curve: curves[0], Forward: true})
	used[0] = true
	cur := e0
	for len(uses) < len(curves) {
		found := false
		for i, c := range curves {
			if used[i] {
				continue
			}
			s, e := geom.CurveStartEnd(c)
			if md3.Norm(md3.Sub(s, cur)) <= 64*tc.Linear {
				uses = append(uses, brep.EdgeUse{Curve: c, Forward: true})
				cur = e
				used[i] = true
				found = true
				break
			}
			if md3.Norm(md3.Sub(e, cur)) <= 64*tc.Linear {
				uses = append(uses, brep.EdgeUse{Curve: c, Forward: false})
				cur = s
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("open chain at %v", cur)
		}
	}
	if md3.Norm(md3.Sub(cur, s0)) > 64*tc.Linear {
		return nil, fmt.Errorf("chain does not close")
	}
	return uses, nil
}
