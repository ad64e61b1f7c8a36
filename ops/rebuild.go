package ops

import (
	"fmt"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// RebuildWithSurfaces re-trims a body after some of its faces'
// surfaces were replaced, recomputing affected vertices and edges on
// the new geometry. The direct-editing layer drives its extend and
// trim resolutions through this entry point.
func RebuildWithSurfaces(b *brep.Body, replace map[brep.FaceID]geom.Surface, tc nmath.ToleranceContext) (*brep.Body, error) {
	return rebuildWithSurfaces(b, replace, tc)
}

// rebuildWithSurfaces is the shared engine behind shelling, draft and
// direct face edits: given a body and replacement surfaces for some of
// its faces, it recomputes every affected vertex as the meeting point
// of its incident surfaces, every affected edge as the intersection
// curve of its two face surfaces, and reassembles the body with the
// same combinatorics. It fails with ErrGeometry when the new surfaces
// no longer meet where the topology requires them to.
func rebuildWithSurfaces(b *brep.Body, replace map[brep.FaceID]geom.Surface, tc nmath.ToleranceContext) (*brep.Body, error) {
	surfOf := func(f brep.FaceID) geom.Surface {
		if s, ok := replace[f]; ok {
			return s
		}
		s, _ := b.FaceSurface(f)
		return s
	}

	// New vertex positions: pull each vertex onto all its incident
	// face surfaces by alternating projection.
	newPos := map[brep.VertID]md3.Vec{}
	var vErr error
	b.Vertices(func(v brep.VertID) bool {
		pos, _ := b.VertexPosition(v)
		var surfs []geom.Surface
		seen := map[brep.FaceID]bool{}
		b.VertexEdges(v, func(e brep.EdgeID) bool {
			fa, fb, _ := b.EdgeFaces(e)
			for _, f := range []brep.FaceID{fa, fb} {
				if !f.IsNil() && !seen[f] {
					seen[f] = true
					if s := surfOf(f); s != nil {
						surfs = append(surfs, s)
					}
				}
			}
			return true
		})
		p := pos
		converged := len(surfs) == 0
		for iter := 0; iter < 128 && !converged; iter++ {
			var acc md3.Vec
			worst := 0.0
			for _, s := range surfs {
				_, _, foot, dist := s.Project(p)
				acc = md3.Add(acc, foot)
				if dist > worst {
					worst = dist
				}
			}
			p = md3.Scale(1/float64(len(surfs)), acc)
			if worst < tc.Linear/2 {
				converged = true
			}
		}
		if !converged {
			vErr = fmt.Errorf("%w: vertex %d does not meet its moved faces", ErrGeometry, v)
			return false
		}
		newPos[v] = p
		return true
	})
	if vErr != nil {
		return nil, vErr
	}

	// New edge curves between the rebuilt endpoints.
	newCurve := map[brep.EdgeID]geom.Curve{}
	var eErr error
	b.Edges(func(e brep.EdgeID) bool {
		fa, fb, _ := b.EdgeFaces(e)
		v0, v1, _ := b.EdgeVertices(e)
		old, _ := b.EdgeCurve(e)
		sa, sb := surfOf(fa), surfOf(fb)
		affected := false
		if _, ok := replace[fa]; ok {
			affected = true
		}
		if _, ok := replace[fb]; ok {
			affected = true
		}
		if !affected {
			newCurve[e] = old
			return true
		}
		c, err := edgeBetween(sa, sb, newPos[v0], newPos[v1], old, tc)
		if err != nil {
			eErr = fmt.Errorf("%w: edge %d (faces %d/%d): %v", ErrGeometry, e, fa, fb, err)
			return false
		}
		newCurve[e] = c
		return true
	})
	if eErr != nil {
		return nil, eErr
	}

	// Reassemble with the same loop combinatorics.
	var specs []brep.FaceSpec
	var sErr error
	b.Faces(func(f brep.FaceID) bool {
		same, _ := b.FaceSameSense(f)
		spec := brep.FaceSpec{Surf: surfOf(f), SameSense: same}
		loopOf := func(l brep.LoopID) (brep.LoopSpec, bool) {
			var ls brep.LoopSpec
			ok := true
			b.LoopCoedges(l, func(c brep.CoedgeID) bool {
				e, forward, _ := b.CoedgeEdge(c)
				cv := newCurve[e]
				if cv == nil {
					ok = false
					return false
				}
				ls.Uses = append(ls.Uses, brep.EdgeUse{Curve: cv, Forward: forward})
				return true
			})
			return ls, ok
		}
		ol, _ := b.FaceOuterLoop(f)
		outer, ok := loopOf(ol)
		if !ok {
			sErr = fmt.Errorf("%w: face %d lost an edge", ErrGeometry, f)
			return false
		}
		spec.Outer = outer
		b.FaceInnerLoops(f, func(l brep.LoopID) bool {
			if il, ok := loopOf(l); ok {
				spec.Inner = append(spec.Inner, il)
			}
			return true
		})
		specs = append(specs, spec)
		return true
	})
	if sErr != nil {
		return nil, sErr
	}
	out, err := brep.Assemble(specs, tc)
	if err != nil {
		return nil, fmt.Errorf("%w: reassembling after surface change: %v", ErrTopology, err)
	}
	return out, nil
}

// edgeBetween rebuilds one edge curve on the intersection of two
// surfaces, trimmed between the given endpoints. The old curve guides
// the choice among multiple intersection branches.
func edgeBetween(sa, sb geom.Surface, p0, p1 md3.Vec, old geom.Curve, tc nmath.ToleranceContext) (geom.Curve, error) {
	if sa == nil || sb == nil {
		return nil, fmt.Errorf("missing surface")
	}
	curves, err := geom.IntersectSurfaces(sa, sb, tc)
	if err != nil {
		return nil, err
	}
	var best geom.Curve
	bestDist := 1e18
	oldMid := md3.Scale(0.5, md3.Add(p0, p1))
	if old != nil {
		r := old.ParamRange()
		oldMid = old.Evaluate(r.Mid())
	}
	for _, sc := range curves {
		if sc.Curve == nil {
			continue
		}
		_, _, d0 := sc.Curve.Project(p0)
		_, _, d1 := sc.Curve.Project(p1)
		if d0 > 64*tc.Linear || d1 > 64*tc.Linear {
			continue
		}
		_, _, dm := sc.Curve.Project(oldMid)
		if dm < bestDist {
			bestDist = dm
			best = sc.Curve
		}
	}
	if best == nil {
		return nil, fmt.Errorf("surfaces no longer meet between endpoints")
	}
	t0, _, _ := best.Project(p0)
	t1, _, _ := best.Project(p1)
	if best.Closed() && nmath.EqualWithin(t0, t1, 1e-12) {
		return best, nil
	}
	lo, hi := t0, t1
	reversed := false
	if lo > hi {
		lo, hi = hi, lo
		reversed = true
	}
	if hi-lo < 1e-12 {
		return nil, fmt.Errorf("edge collapsed below resolution")
	}
	trimmed, err := geom.TrimCurve(best, geom.ParamRange{Start: lo, End: hi})
	if err != nil {
		return nil, err
	}
	if reversed {
		// Coedge senses carry over from the old edge, so the new
		// curve must run from p0 to p1 like the old one did.
		return geom.ReverseCurve(trimmed)
	}
	return trimmed, nil
}
