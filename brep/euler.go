package brep

import (
	"fmt"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Euler operators. Each is a local rewrite of the incidence graph that
// preserves the Euler-Poincaré relation
//
//	V - E + F - (L - F) - 2(S - H) = 0
//
// and verifies its preconditions before touching the body: on error
// the body is unchanged.

// vertexWeldTol is the default tolerance of vertices created by
// operators when the caller supplies none.
const vertexWeldTol = nmath.DefaultLinearTolerance

// MVFS (make vertex, face, shell) bootstraps a body: one shell, one
// degenerate face with an empty loop anchored at a single vertex.
func MVFS(pos md3.Vec) (*Body, ShellID, FaceID, LoopID, VertID) {
	b := &Body{}
	sh := b.newShell(true)
	f := b.newFace(nil, true, sh)
	l := b.newLoop(f)
	v := b.newVertex(pos, vertexWeldTol)
	b.faces[f].outer = l
	b.loops[l].anchor = v
	return b, sh, f, l, v
}

// KVFS is the inverse of MVFS: it deletes a body that consists of
// exactly one shell, one face with an empty loop, and one vertex.
func (b *Body) KVFS() error {
	if b.VertexCount() != 1 || b.EdgeCount() != 0 || b.FaceCount() != 1 || b.ShellCount() != 1 {
		return fmt.Errorf("%w: KVFS requires a minimal MVFS body", ErrPrecondition)
	}
	for i := range b.verts {
		b.verts[i].alive = false
	}
	for i := range b.faces {
		b.faces[i].alive = false
	}
	for i := range b.loops {
		b.loops[i].alive = false
	}
	for i := range b.shells {
		b.shells[i].alive = false
	}
	return nil
}

// setPartners links the two uses of an edge once both exist.
func (b *Body) setPartners(e EdgeID) {
	ed := &b.edges[e]
	if !ed.c0.IsNil() && !ed.c1.IsNil() {
		b.coedges[ed.c0].partner = ed.c1
		b.coedges[ed.c1].partner = ed.c0
	}
}

// MEVLoop grows the empty loop created by MVFS: a new vertex at pos
// and a new edge from the loop's anchor vertex, whose two uses become
// the loop's first cycle. curve must run from the anchor to pos.
func (b *Body) MEVLoop(l LoopID, pos md3.Vec, curve geom.Curve) (EdgeID, VertID, error) {
	lp, err := b.loop(l)
	if err != nil {
		return NilID, NilID, err
	}
	if !lp.first.IsNil() || lp.anchor.IsNil() {
		return NilID, NilID, fmt.Errorf("%w: MEVLoop needs an empty anchored loop", ErrPrecondition)
	}
	if err := b.checkCurveEnds(curve, b.verts[lp.anchor].pos, pos); err != nil {
		return NilID, NilID, err
	}
	w := b.newVertex(pos, vertexWeldTol)
	e := b.newEdge(curve, lp.anchor, w, vertexWeldTol)
	cf := b.newCoedge(e, true, l)
	cr := b.newCoedge(e, false, l)
	b.coedges[cf].next, b.coedges[cf].prev = cr, cr
	b.coedges[cr].next, b.coedges[cr].prev = cf, cf
	b.setPartners(e)
	lp.first = cf
	lp.anchor = NilID
	return e, w, nil
}

// MEV makes a new vertex at pos and a new edge from the origin of
// coedge at to it, splicing the edge's two uses into at's loop
// immediately before at. curve must run from origin(at) to pos.
func (b *Body) MEV(at CoedgeID, pos md3.Vec, curve geom.Curve) (EdgeID, VertID, error) {
	c, err := b.coedge(at)
	if err != nil {
		return NilID, NilID, err
	}
	v, err := b.CoedgeOrigin(at)
	if err != nil {
		return NilID, NilID, err
	}
	if err := b.checkCurveEnds(curve, b.verts[v].pos, pos); err != nil {
		return NilID, NilID, err
	}
	w := b.newVertex(pos, vertexWeldTol)
	e := b.newEdge(curve, v, w, vertexWeldTol)
	l := c.loop
	cf := b.newCoedge(e, true, l)
	cr := b.newCoedge(e, false, l)
	prev := c.prev
	b.coedges[prev].next = cf
	b.coedges[cf].prev = prev
	b.coedges[cf].next = cr
	b.coedges[cr].prev = cf
	b.coedges[cr].next = at
	b.coedges[at].prev = cr
	b.setPartners(e)
	return e, w, nil
}

// KEV kills a spur edge made by MEV together with its outer vertex.
// The edge's two uses must be adjacent in one loop and the far vertex
// must have no other edges.
func (b *Body) KEV(e EdgeID) error {
	ed, err := b.edge(e)
	if err != nil {
		return err
	}
	cf, cr := ed.c0, ed.c1
	if cf.IsNil() || cr.IsNil() {
		return fmt.Errorf("%w: KEV needs both coedges", ErrPrecondition)
	}
	if b.coedges[cf].loop != b.coedges[cr].loop {
		return fmt.Errorf("%w: KEV coedges in different loops", ErrPrecondition)
	}
	// Identify the spur tip: the endpoint used only by this edge.
	tip := ed.v1
	other := ed.v0
	if len(b.liveEdgesAt(tip)) != 1 {
		tip, other = ed.v0, ed.v1
		if len(b.liveEdgesAt(tip)) != 1 {
			return fmt.Errorf("%w: KEV vertex still in use", ErrPrecondition)
		}
	}
	// The two uses must be consecutive around the tip.
	first, second := cf, cr
	if b.coedges[cf].next != cr {
		first, second = cr, cf
		if b.coedges[cr].next != cf {
			return fmt.Errorf("%w: KEV uses not adjacent", ErrPrecondition)
		}
	}
	l := b.coedges[first].loop
	lp := &b.loops[l]
	if b.coedges[second].next == first {
		// The loop consists of just this spur; return to anchored state.
		lp.first = NilID
		lp.anchor = other
	} else {
		p := b.coedges[first].prev
		n := b.coedges[second].next
		b.coedges[p].next = n
		b.coedges[n].prev = p
		if lp.first == first || lp.first == second {
			lp.first = n
		}
	}
	b.killCoedge(cf)
	b.killCoedge(cr)
	b.killEdge(e)
	b.verts[tip].alive = false
	return nil
}

// MEF makes a new edge from origin(c1) to origin(c2), both coedges of
// the same loop, splitting the loop and creating a new face carrying
// surf. The cycle from c2 up to and including prev(c1) plus the new
// edge's forward use becomes the new face's outer loop; the rest stays
// with the old face.
//
// When c1 == c2 the new edge must be closed (curve start equals end at
// origin(c1)); the new face's loop is the closed edge's forward use
// alone, and the reverse use is spliced before c1.
func (b *Body) MEF(c1, c2 CoedgeID, curve geom.Curve, surf geom.Surface, sameSense bool) (EdgeID, FaceID, error) {
	co1, err := b.coedge(c1)
	if err != nil {
		return NilID, NilID, err
	}
	co2, err := b.coedge(c2)
	if err != nil {
		return NilID, NilID, err
	}
	if co1.loop != co2.loop {
		return NilID, NilID, fmt.Errorf("%w: MEF coedges in different loops", ErrPrecondition)
	}
	l := co1.loop
	lp := &b.loops[l]
	f := lp.face
	sh := b.faces[f].shell
	v1, _ := b.CoedgeOrigin(c1)
	v2, _ := b.CoedgeOrigin(c2)
	if err := b.checkCurveEnds(curve, b.verts[v1].pos, b.verts[v2].pos); err != nil {
		return NilID, NilID, err
	}

	nf := b.newFace(surf, sameSense, sh)
	nl := b.newLoop(nf)
	b.faces[nf].outer = nl

	if c1 == c2 {
		e := b.newEdge(curve, v1, v1, vertexWeldTol)
		cf := b.newCoedge(e, true, nl)
		cr := b.newCoedge(e, false, l)
		b.coedges[cf].next, b.coedges[cf].prev = cf, cf
		b.loops[nl].first = cf
		prev := co1.prev
		b.coedges[prev].next = cr
		b.coedges[cr].prev = prev
		b.coedges[cr].next = c1
		b.coedges[c1].prev = cr
		b.setPartners(e)
		return e, nf, nil
	}

	e := b.newEdge(curve, v1, v2, vertexWeldTol)
	cf := b.newCoedge(e, true, nl)
	cr := b.newCoedge(e, false, l)
	p1 := co1.prev
	p2 := co2.prev
	// New loop: c2 ... p1, cf.
	b.coedges[p1].next = cf
	b.coedges[cf].prev = p1
	b.coedges[cf].next = c2
	b.coedges[c2].prev = cf
	// Old loop: c1 ... p2, cr.
	b.coedges[p2].next = cr
	b.coedges[cr].prev = p2
	b.coedges[cr].next = c1
	b.coedges[c1].prev = cr
	b.setPartners(e)
	b.loops[nl].first = cf
	b.loops[l].first = c1
	// Reassign loop membership of the cycle that moved.
	c := cf
	for {
		b.coedges[c].loop = nl
		c = b.coedges[c].next
		if c == cf {
			break
		}
	}
	return e, nf, nil
}

// KEF is the inverse of MEF: it kills edge e whose two uses lie in the
// outer loops of two distinct faces of the same shell, merging the
// second face's boundary into the first and deleting the second face.
// keep selects the surviving face.
func (b *Body) KEF(e EdgeID, keep FaceID) error {
	ed, err := b.edge(e)
	if err != nil {
		return err
	}
	if _, err := b.face(keep); err != nil {
		return err
	}
	cf, cr := ed.c0, ed.c1
	if cf.IsNil() || cr.IsNil() {
		return fmt.Errorf("%w: KEF needs a manifold edge", ErrPrecondition)
	}
	lf, lr := b.coedges[cf].loop, b.coedges[cr].loop
	if lf == lr {
		return fmt.Errorf("%w: KEF uses share a loop (use KEMR)", ErrPrecondition)
	}
	ff, fr := b.loops[lf].face, b.loops[lr].face
	if ff == fr {
		return fmt.Errorf("%w: KEF uses share a face", ErrPrecondition)
	}
	if keep != ff && keep != fr {
		return fmt.Errorf("%w: keep face not adjacent to edge", ErrPrecondition)
	}
	// Arrange for cr to live in the surviving loop.
	if keep == b.loops[lf].face {
		cf, cr = cr, cf
		lf, lr = lr, lf
	}
	keepLoop := lr
	dropFace := b.loops[lf].face

	if b.coedges[cf].next == cf {
		// Closed-edge inverse: the dying face's loop is cf alone.
		p := b.coedges[cr].prev
		n := b.coedges[cr].next
		if n == cr {
			// cr alone too: surviving loop returns to anchored state.
			v, _ := b.CoedgeOrigin(cr)
			b.loops[keepLoop].first = NilID
			b.loops[keepLoop].anchor = v
		} else {
			b.coedges[p].next = n
			b.coedges[n].prev = p
			if b.loops[keepLoop].first == cr {
				b.loops[keepLoop].first = n
			}
		}
	} else {
		// General splice: remove cf and cr, joining the two cycles.
		a := b.coedges[cf].next
		bb := b.coedges[cf].prev
		c := b.coedges[cr].next
		d := b.coedges[cr].prev
		b.coedges[bb].next = c
		b.coedges[c].prev = bb
		b.coedges[d].next = a
		b.coedges[a].prev = d
		if b.loops[keepLoop].first == cr {
			b.loops[keepLoop].first = c
		}
		// Everything now belongs to the surviving loop.
		cur := c
		for {
			b.coedges[cur].loop = keepLoop
			cur = b.coedges[cur].next
			if cur == c {
				break
			}
		}
	}
	b.killCoedge(b.edges[e].c0)
	b.killCoedge(b.edges[e].c1)
	b.killEdge(e)
	// Inner loops of the dying face move to the survivor.
	df := &b.faces[dropFace]
	kf := &b.faces[keep]
	for _, il := range df.inner {
		if b.loops[il].alive {
			b.loops[il].face = keep
			kf.inner = append(kf.inner, il)
		}
	}
	b.loops[df.outer].alive = false
	df.alive = false
	b.removeFaceFromShell(dropFace)
	return nil
}

// KEMR kills an edge whose two uses lie in the same loop, splitting
// the cycle: the part between the forward and reverse use becomes a
// new inner loop (ring) of the face. Returns the ring loop.
func (b *Body) KEMR(e EdgeID) (LoopID, error) {
	ed, err := b.edge(e)
	if err != nil {
		return NilID, err
	}
	cf, cr := ed.c0, ed.c1
	if cf.IsNil() || cr.IsNil() {
		return NilID, fmt.Errorf("%w: KEMR needs both coedges", ErrPrecondition)
	}
	if b.coedges[cf].loop != b.coedges[cr].loop {
		return NilID, fmt.Errorf("%w: KEMR uses in different loops", ErrPrecondition)
	}
	l := b.coedges[cf].loop
	f := b.loops[l].face
	ringStart := b.coedges[cf].next
	if ringStart == cr {
		return NilID, fmt.Errorf("%w: KEMR would make an empty ring", ErrPrecondition)
	}
	outerStart := b.coedges[cr].next
	if outerStart == cf {
		return NilID, fmt.Errorf("%w: KEMR would empty the outer loop", ErrPrecondition)
	}
	ringEnd := b.coedges[cr].prev
	outerEnd := b.coedges[cf].prev
	// Close both cycles.
	b.coedges[ringEnd].next = ringStart
	b.coedges[ringStart].prev = ringEnd
	b.coedges[outerEnd].next = outerStart
	b.coedges[outerStart].prev = outerEnd
	ring := b.newLoop(f)
	b.loops[ring].first = ringStart
	c := ringStart
	for {
		b.coedges[c].loop = ring
		c = b.coedges[c].next
		if c == ringStart {
			break
		}
	}
	b.loops[l].first = outerStart
	b.faces[f].inner = append(b.faces[f].inner, ring)
	b.killCoedge(cf)
	b.killCoedge(cr)
	b.killEdge(e)
	return ring, nil
}

// MEKR is the inverse of KEMR: a new bridge edge from origin(c1) in
// one loop to origin(c2) in an inner loop of the same face merges the
// ring into c1's loop and deletes the ring.
func (b *Body) MEKR(c1, c2 CoedgeID, curve geom.Curve) (EdgeID, error) {
	co1, err := b.coedge(c1)
	if err != nil {
		return NilID, err
	}
	co2, err := b.coedge(c2)
	if err != nil {
		return NilID, err
	}
	if co1.loop == co2.loop {
		return NilID, fmt.Errorf("%w: MEKR coedges share a loop (use MEF)", ErrPrecondition)
	}
	l1, l2 := co1.loop, co2.loop
	if b.loops[l1].face != b.loops[l2].face {
		return NilID, fmt.Errorf("%w: MEKR loops on different faces", ErrPrecondition)
	}
	f := b.loops[l1].face
	if !b.isInnerLoop(f, l2) {
		return NilID, fmt.Errorf("%w: MEKR second coedge must be in a ring", ErrPrecondition)
	}
	v1, _ := b.CoedgeOrigin(c1)
	v2, _ := b.CoedgeOrigin(c2)
	if err := b.checkCurveEnds(curve, b.verts[v1].pos, b.verts[v2].pos); err != nil {
		return NilID, err
	}
	e := b.newEdge(curve, v1, v2, vertexWeldTol)
	cf := b.newCoedge(e, true, l1)
	cr := b.newCoedge(e, false, l1)
	p1 := co1.prev
	p2 := co2.prev
	// Merged cycle: ... p1, cf, c2 ... p2, cr, c1 ...
	b.coedges[p1].next = cf
	b.coedges[cf].prev = p1
	b.coedges[cf].next = c2
	b.coedges[c2].prev = cf
	b.coedges[p2].next = cr
	b.coedges[cr].prev = p2
	b.coedges[cr].next = c1
	b.coedges[c1].prev = cr
	b.setPartners(e)
	c := c2
	for b.coedges[c].loop != l1 {
		b.coedges[c].loop = l1
		c = b.coedges[c].next
	}
	b.loops[l2].alive = false
	b.removeInnerLoop(f, l2)
	return e, nil
}

// KFMRH kills face f, reclassifying its outer loop as a ring on
// target, and increases the shell genus by one (the hole becomes a
// handle through the solid).
func (b *Body) KFMRH(f, target FaceID) error {
	ff, err := b.face(f)
	if err != nil {
		return err
	}
	tf, err := b.face(target)
	if err != nil {
		return err
	}
	if f == target {
		return fmt.Errorf("%w: KFMRH face equals target", ErrPrecondition)
	}
	if len(ff.inner) != 0 {
		return fmt.Errorf("%w: KFMRH face must have no rings", ErrPrecondition)
	}
	if ff.shell != tf.shell {
		return fmt.Errorf("%w: KFMRH faces in different shells", ErrPrecondition)
	}
	l := ff.outer
	b.loops[l].face = target
	tf.inner = append(tf.inner, l)
	ff.alive = false
	b.removeFaceFromShell(f)
	b.shells[tf.shell].genus++
	return nil
}

// MFKRH is the inverse of KFMRH: an inner loop of face donor becomes
// the outer loop of a new face carrying surf, decreasing the shell
// genus.
func (b *Body) MFKRH(donor FaceID, ring LoopID, surf geom.Surface, sameSense bool) (FaceID, error) {
	df, err := b.face(donor)
	if err != nil {
		return NilID, err
	}
	if _, err := b.loop(ring); err != nil {
		return NilID, err
	}
	if !b.isInnerLoop(donor, ring) {
		return NilID, fmt.Errorf("%w: MFKRH loop is not a ring of donor", ErrPrecondition)
	}
	if b.shells[df.shell].genus < 1 {
		return NilID, fmt.Errorf("%w: MFKRH shell has no genus to remove", ErrPrecondition)
	}
	nf := b.newFace(surf, sameSense, df.shell)
	b.faces[nf].outer = ring
	b.loops[ring].face = nf
	b.removeInnerLoop(donor, ring)
	b.shells[df.shell].genus--
	return nf, nil
}

// SEMV splits edge e at curve parameter t, making a new vertex there
// and a new edge for the second half. Both uses of e are split
// accordingly. Returns the new vertex and the new edge.
func (b *Body) SEMV(e EdgeID, t float64) (VertID, EdgeID, error) {
	ed, err := b.edge(e)
	if err != nil {
		return NilID, NilID, err
	}
	if ed.curve == nil {
		return NilID, NilID, fmt.Errorf("%w: SEMV edge has no curve", ErrPrecondition)
	}
	r := ed.curve.ParamRange()
	if t <= r.Start || t >= r.End {
		return NilID, NilID, fmt.Errorf("%w: SEMV parameter outside open range", ErrPrecondition)
	}
	lowCurve, err := geom.TrimCurve(ed.curve, geom.ParamRange{Start: r.Start, End: t})
	if err != nil {
		return NilID, NilID, err
	}
	highCurve, err := geom.TrimCurve(ed.curve, geom.ParamRange{Start: t, End: r.End})
	if err != nil {
		return NilID, NilID, err
	}
	pos := ed.curve.Evaluate(t)
	w := b.newVertex(pos, vertexWeldTol)
	oldV1 := ed.v1
	// e becomes the low half; e2 the high half.
	e2 := b.newEdge(highCurve, w, oldV1, ed.tol)
	ed = &b.edges[e] // newEdge may have grown the arena
	ed.curve = lowCurve
	// Rewire vertex index: oldV1 loses e, gains e2 (newEdge added it);
	// w gains e.
	b.detachEdgeFromVertex(oldV1, e)
	ed.v1 = w
	b.verts[w].edges = append(b.verts[w].edges, e)

	split := func(c CoedgeID) {
		if c.IsNil() {
			return
		}
		co := &b.coedges[c]
		l := co.loop
		if co.forward {
			// c keeps v0->w; insert new coedge w->oldV1 after c.
			nc := b.newCoedge(e2, true, l)
			co = &b.coedges[c]
			n := co.next
			co.next = nc
			b.coedges[nc].prev = c
			b.coedges[nc].next = n
			b.coedges[n].prev = nc
		} else {
			// Reverse use ran oldV1->v0; insert new coedge
			// oldV1->w before c, and c keeps w->v0.
			nc := b.newCoedge(e2, false, l)
			co = &b.coedges[c]
			p := co.prev
			b.coedges[p].next = nc
			b.coedges[nc].prev = p
			b.coedges[nc].next = c
			co.prev = nc
			lp := &b.loops[l]
			if lp.first == c {
				lp.first = nc
			}
		}
	}
	c0, c1 := b.edges[e].c0, b.edges[e].c1
	split(c0)
	split(c1)
	b.setPartners(e2)
	return w, e2, nil
}

// JEKV is the inverse of SEMV for straight edges: vertex v of degree
// two joining two collinear line edges is removed and the edges merge.
// Returns the surviving edge.
func (b *Body) JEKV(v VertID) (EdgeID, error) {
	vt, err := b.vert(v)
	if err != nil {
		return NilID, err
	}
	live := b.liveEdgesAt(v)
	if len(live) != 2 {
		return NilID, fmt.Errorf("%w: JEKV vertex degree must be 2", ErrPrecondition)
	}
	e1, e2 := live[0], live[1]
	l1, ok1 := b.edges[e1].curve.(*geom.Line)
	l2, ok2 := b.edges[e2].curve.(*geom.Line)
	if !ok1 || !ok2 {
		return NilID, fmt.Errorf("%w: JEKV requires straight edges", ErrPrecondition)
	}
	tc := nmath.DefaultTolerance()
	if !tc.ParallelDirection(l1.Direction(), l2.Direction()) {
		return NilID, fmt.Errorf("%w: JEKV edges not collinear", ErrPrecondition)
	}
	// Orient so e1 runs into v and e2 runs out of v.
	if b.edges[e1].v1 != v {
		e1, e2 = e2, e1
	}
	if b.edges[e1].v1 != v || b.edges[e2].v0 != v {
		return NilID, fmt.Errorf("%w: JEKV edges not chained through vertex", ErrPrecondition)
	}
	a := b.edges[e1].v0
	c := b.edges[e2].v1
	merged, err := geom.NewLineSegment(b.verts[a].pos, b.verts[c].pos)
	if err != nil {
		return NilID, err
	}
	// Drop e2's coedges from their loops; e1's coedges absorb the span.
	for _, cid := range []CoedgeID{b.edges[e2].c0, b.edges[e2].c1} {
		if cid.IsNil() {
			continue
		}
		co := &b.coedges[cid]
		p, n := co.prev, co.next
		b.coedges[p].next = n
		b.coedges[n].prev = p
		lp := &b.loops[co.loop]
		if lp.first == cid {
			lp.first = n
		}
		b.killCoedge(cid)
	}
	b.detachEdgeFromVertex(c, e2)
	b.edges[e2].alive = false
	b.detachEdgeFromVertex(v, e1)
	b.edges[e1].curve = merged
	b.edges[e1].v1 = c
	b.verts[c].edges = append(b.verts[c].edges, e1)
	vt.alive = false
	return e1, nil
}

// helpers

func (b *Body) checkCurveEnds(c geom.Curve, start, end md3.Vec) error {
	if c == nil {
		return fmt.Errorf("%w: nil curve", ErrPrecondition)
	}
	r := c.ParamRange()
	tol := 16 * vertexWeldTol
	if md3.Norm(md3.Sub(c.Evaluate(r.Start), start)) > tol ||
		md3.Norm(md3.Sub(c.Evaluate(r.End), end)) > tol {
		return fmt.Errorf("%w: curve endpoints disagree with vertices", ErrPrecondition)
	}
	return nil
}

func (b *Body) liveEdgesAt(v VertID) []EdgeID {
	var out []EdgeID
	for _, e := range b.verts[v].edges {
		if b.edges[e].alive {
			out = append(out, e)
		}
	}
	return out
}

func (b *Body) killCoedge(c CoedgeID) {
	if c.IsNil() {
		return
	}
	co := &b.coedges[c]
	co.alive = false
	ed := &b.edges[co.edge]
	if ed.c0 == c {
		ed.c0 = NilID
	}
	if ed.c1 == c {
		ed.c1 = NilID
	}
}

func (b *Body) killEdge(e EdgeID) {
	ed := &b.edges[e]
	b.detachEdgeFromVertex(ed.v0, e)
	if ed.v1 != ed.v0 {
		b.detachEdgeFromVertex(ed.v1, e)
	}
	ed.alive = false
}

func (b *Body) detachEdgeFromVertex(v VertID, e EdgeID) {
	edges := b.verts[v].edges
	for i, id := range edges {
		if id == e {
			b.verts[v].edges = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

func (b *Body) removeFaceFromShell(f FaceID) {
	sh := &b.shells[b.faces[f].shell]
	for i, id := range sh.faces {
		if id == f {
			sh.faces = append(sh.faces[:i], sh.faces[i+1:]...)
			return
		}
	}
}

func (b *Body) isInnerLoop(f FaceID, l LoopID) bool {
	for _, il := range b.faces[f].inner {
		if il == l {
			return true
		}
	}
	return false
}

func (b *Body) removeInnerLoop(f FaceID, l LoopID) {
	inner := b.faces[f].inner
	for i, id := range inner {
		if id == l {
			b.faces[f].inner = append(inner[:i], inner[i+1:]...)
			return
		}
	}
}
