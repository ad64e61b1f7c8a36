package brep

import (
	"fmt"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/nmath"
)

// Validate runs the full topology self-test and returns the list of
// violations found, empty for a healthy body. Compound operations run
// this after mutating; any violation is an [ErrInvariant] condition.
//
// Checks, per the kernel's manifold invariants:
//  1. every edge has exactly two uses (one on a sheet boundary);
//  2. loops are cycles with consistent next/prev links, consecutive
//     coedges chain through shared vertices, and partners traverse the
//     edge with opposite sense;
//  3. every face has a live outer loop and its live loops point back
//     to it;
//  4. the Euler-Poincaré relation V-E+F-(L-F)-2(S-H) = 0 holds;
//  5. vertex-edge index entries are in range and every live edge
//     listed at a vertex has that vertex as an endpoint;
//  6. edge curves agree with the face surfaces of their uses within
//     tolerance.
func (b *Body) Validate(tc nmath.ToleranceContext) []string {
	var issues []string
	if b.released {
		return []string{"body released"}
	}

	// 1. Edge use counts.
	b.Edges(func(e EdgeID) bool {
		ed := &b.edges[e]
		uses := 0
		if !ed.c0.IsNil() && b.coedges[ed.c0].alive {
			uses++
		}
		if !ed.c1.IsNil() && b.coedges[ed.c1].alive {
			uses++
		}
		if uses == 0 || uses > 2 {
			issues = append(issues, fmt.Sprintf("edge %d has %d uses", e, uses))
		}
		return true
	})

	// 2. Loop cycles.
	for li := range b.loops {
		lp := &b.loops[li]
		if !lp.alive {
			continue
		}
		if lp.first.IsNil() {
			if lp.anchor.IsNil() {
				issues = append(issues, fmt.Sprintf("loop %d empty without anchor", li))
			}
			continue
		}
		c := lp.first
		steps := 0
		limit := len(b.coedges) + 1
		for {
			co := &b.coedges[c]
			if !co.alive {
				issues = append(issues, fmt.Sprintf("loop %d references dead coedge %d", li, c))
				break
			}
			if co.loop != LoopID(li) {
				issues = append(issues, fmt.Sprintf("coedge %d loop pointer mismatch", c))
			}
			n := co.next
			if n.IsNil() || !b.coedges[n].alive {
				issues = append(issues, fmt.Sprintf("coedge %d has dead next", c))
				break
			}
			if b.coedges[n].prev != c {
				issues = append(issues, fmt.Sprintf("coedge %d next/prev mismatch", c))
			}
			// Chain continuity: end vertex equals next origin.
			endV := b.coedgeEnd(c)
			nextV, _ := b.CoedgeOrigin(n)
			if endV != nextV {
				issues = append(issues, fmt.Sprintf("loop %d breaks at coedge %d", li, c))
			}
			// Partner discipline.
			if !co.partner.IsNil() {
				pa := &b.coedges[co.partner]
				if !pa.alive || pa.partner != c {
					issues = append(issues, fmt.Sprintf("coedge %d partner link broken", c))
				} else if pa.edge != co.edge {
					issues = append(issues, fmt.Sprintf("coedge %d partner on different edge", c))
				} else if pa.forward == co.forward {
					issues = append(issues, fmt.Sprintf("edge %d traversed twice in same sense", co.edge))
				}
			}
			c = n
			steps++
			if c == lp.first {
				break
			}
			if steps > limit {
				issues = append(issues, fmt.Sprintf("loop %d does not close", li))
				break
			}
		}
	}

	// 3. Faces.
	b.Faces(func(f FaceID) bool {
		fc := &b.faces[f]
		if fc.outer.IsNil() || !b.loops[fc.outer].alive {
			issues = append(issues, fmt.Sprintf("face %d has no live outer loop", f))
			return true
		}
		if b.loops[fc.outer].face != f {
			issues = append(issues, fmt.Sprintf("face %d outer loop points elsewhere", f))
		}
		for _, il := range fc.inner {
			if b.loops[il].alive && b.loops[il].face != f {
				issues = append(issues, fmt.Sprintf("face %d ring %d points elsewhere", f, il))
			}
		}
		return true
	})

	// 4. Euler-Poincaré.
	v := b.VertexCount()
	e := b.EdgeCount()
	f := b.FaceCount()
	l := b.LoopCount()
	s := b.ShellCount()
	h := b.Genus()
	if s > 0 {
		if bal := v - e + f - (l - f) - 2*(s-h); bal != 0 {
			issues = append(issues, fmt.Sprintf(
				"euler-poincare unbalanced: V=%d E=%d F=%d L=%d S=%d H=%d -> %d",
				v, e, f, l, s, h, bal))
		}
	}

	// 5. Vertex-edge index.
	b.Vertices(func(vid VertID) bool {
		for _, eid := range b.verts[vid].edges {
			if int(eid) >= len(b.edges) {
				issues = append(issues, fmt.Sprintf("vertex %d references bad edge %d", vid, eid))
				continue
			}
			ed := &b.edges[eid]
			if ed.alive && ed.v0 != vid && ed.v1 != vid {
				issues = append(issues, fmt.Sprintf("vertex %d edge %d does not return", vid, eid))
			}
		}
		return true
	})

	// 6. Geometry agreement.
	for ci := range b.coedges {
		co := &b.coedges[ci]
		if !co.alive {
			continue
		}
		ed := &b.edges[co.edge]
		fc := &b.faces[b.loops[co.loop].face]
		if ed.curve == nil || fc.surf == nil {
			continue
		}
		r := ed.curve.ParamRange()
		mid := ed.curve.Evaluate(r.Mid())
		_, _, _, dist := fc.surf.Project(mid)
		agreeTol := 64*tc.Linear + ed.tol
		if dist > agreeTol {
			issues = append(issues, fmt.Sprintf(
				"edge %d strays %g from surface of face %d", co.edge, dist, b.loops[co.loop].face))
		}
	}

	return issues
}

// coedgeEnd returns the vertex the coedge ends at.
func (b *Body) coedgeEnd(c CoedgeID) VertID {
	co := &b.coedges[c]
	e := &b.edges[co.edge]
	if co.forward {
		return e.v1
	}
	return e.v0
}

// IsClosedSolid reports whether every live edge has exactly two uses,
// i.e. the body bounds a finite volume.
func (b *Body) IsClosedSolid() bool {
	if b.IsEmpty() {
		return false
	}
	closed := true
	b.Edges(func(e EdgeID) bool {
		ed := &b.edges[e]
		if ed.c0.IsNil() || ed.c1.IsNil() {
			closed = false
			return false
		}
		return true
	})
	return closed
}

// Volume computes the enclosed volume via the divergence theorem over
// a coarse facetization of each face. Accuracy follows the sampling
// density; it is intended for verification, not metrology.
func (b *Body) Volume() float64 {
	total := 0.0
	b.Faces(func(f FaceID) bool {
		fc := &b.faces[f]
		if fc.surf == nil {
			return true
		}
		tris := b.facetFace(f, 48)
		for _, t := range tris {
			// Signed tetra volume against the origin.
			total += md3.Dot(t[0], md3.Cross(t[1], t[2])) / 6
		}
		return true
	})
	return total
}
