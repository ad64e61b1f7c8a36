package direct

import (
	"fmt"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
	"github.com/novacad/nova/ops"
)

// resolve reconciles moved face surfaces with the neighboring
// topology. The strategy ladder per neighbor:
//
//   - Extend/Trim: analytic surfaces are unbounded (or periodic), so
//     re-intersecting the moved surface with each neighbor both
//     lengthens neighbors that must grow and re-trims those that
//     already cover the new position. One rebuild handles both.
//   - Blend: when a moved face separates from a neighbor entirely
//     (their surfaces no longer intersect where an edge needs to be),
//     a transition wall is inserted along the old shared edge, swept
//     in the move direction.
//   - Stitch: the rebuilt faces are welded and the invariant
//     self-test runs; failure rolls the edit back.
func resolve(src *brep.Body, replace map[brep.FaceID]geom.Surface, opt ops.Options) (*brep.Body, error) {
	work := src.DeepCopy()
	body, err := ops.RebuildWithSurfaces(work, replace, opt.Tol)
	if err == nil {
		return body, nil
	}
	// Extend/trim failed somewhere: fall back to bridging walls for
	// pure translations of planar faces.
	bridged, berr := resolveWithWalls(work, replace, opt)
	if berr != nil {
		return nil, fmt.Errorf("%w: %v (blend fallback: %v)", ErrResolve, err, berr)
	}
	return bridged, nil
}

// resolveWithWalls rebuilds a moved planar face by sweeping walls
// from its old boundary, the blend strategy for moves that leave the
// neighbors behind.
func resolveWithWalls(body *brep.Body, replace map[brep.FaceID]geom.Surface, opt ops.Options) (*brep.Body, error) {
	if len(replace) != 1 {
		return nil, fmt.Errorf("wall blending handles a single moved face")
	}
	var moved brep.FaceID
	var target geom.Surface
	for f, s := range replace {
		moved, target = f, s
	}
	oldSurf, err := body.FaceSurface(moved)
	if err != nil {
		return nil, err
	}
	oldPlane, ok1 := oldSurf.(*geom.Plane)
	newPlane, ok2 := target.(*geom.Plane)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("wall blending needs planar faces")
	}
	if !opt.Tol.ParallelDirection(oldPlane.PlaneNormal(), newPlane.PlaneNormal()) {
		return nil, fmt.Errorf("wall blending needs a parallel move")
	}
	// The new plane is the old one translated by m·n with
	// m = -signedDistance(newPlane, oldOrigin).
	move := md3.Scale(-newPlane.SignedDistance(oldPlane.Origin()), oldPlane.PlaneNormal())
	if nmath.DefaultTolerance().ZeroLength(md3.Norm(move)) {
		return nil, fmt.Errorf("degenerate move")
	}
	// The moved face keeps its boundary shape, displaced; each old
	// boundary edge sweeps a wall quad.
	var specs []brep.FaceSpec
	var err2 error
	body.Faces(func(f brep.FaceID) bool {
		if f == moved {
			return true
		}
		spec, e := faceSpecVerbatim(body, f)
		if e != nil {
			err2 = e
			return false
		}
		specs = append(specs, spec)
		return true
	})
	if err2 != nil {
		return nil, err2
	}
	ol, err := body.FaceOuterLoop(moved)
	if err != nil {
		return nil, err
	}
	same, _ := body.FaceSameSense(moved)
	shift := nmath.Translating(move)
	var movedUses []brep.EdgeUse
	wallFail := false
	body.LoopCoedges(ol, func(c brep.CoedgeID) bool {
		e, fwd, _ := body.CoedgeEdge(c)
		cv, _ := body.EdgeCurve(e)
		if cv == nil {
			wallFail = true
			return false
		}
		movedCurve := cv.Transformed(shift)
		movedUses = append(movedUses, brep.EdgeUse{Curve: movedCurve, Forward: fwd})
		// Wall: old edge, moved edge, and the two sweep lines.
		r := cv.ParamRange()
		a0 := cv.Evaluate(r.Start)
		a1 := cv.Evaluate(r.End)
		b0 := md3.Add(a0, move)
		b1 := md3.Add(a1, move)
		up0, eu0 := geom.NewLineSegment(a0, b0)
		up1, eu1 := geom.NewLineSegment(a1, b1)
		if eu0 != nil || eu1 != nil {
			wallFail = true
			return false
		}
		edgeDir := md3.Sub(a1, a0)
		wallN := md3.Cross(edgeDir, move)
		wall, ew := geom.NewPlane(md3.Scale(0.25, md3.Add(md3.Add(a0, a1), md3.Add(b0, b1))), wallN)
		if ew != nil {
			wallFail = true
			return false
		}
		specs = append(specs, brep.FaceSpec{
			Surf:      wall,
			SameSense: true,
			Outer: brep.LoopSpec{Uses: []brep.EdgeUse{
				{Curve: cv, Forward: !fwd},
				{Curve: up0, Forward: true},
				{Curve: movedCurve, Forward: fwd},
				{Curve: up1, Forward: false},
			}},
		})
		return true
	})
	if wallFail {
		return nil, fmt.Errorf("wall construction failed")
	}
	specs = append(specs, brep.FaceSpec{Surf: target, SameSense: same, Outer: brep.LoopSpec{Uses: movedUses}})
	out, err := brep.Assemble(specs, opt.Tol)
	if err != nil {
		return nil, fmt.Errorf("stitching walls: %v", err)
	}
	return out, nil
}

func faceSpecVerbatim(b *brep.Body, f brep.FaceID) (brep.FaceSpec, error) {
	surf, err := b.FaceSurface(f)
	if err != nil {
		return brep.FaceSpec{}, err
	}
	same, _ := b.FaceSameSense(f)
	loopOf := func(l brep.LoopID) brep.LoopSpec {
		var ls brep.LoopSpec
		b.LoopCoedges(l, func(c brep.CoedgeID) bool {
			e, fwd, _ := b.CoedgeEdge(c)
			cv, _ := b.EdgeCurve(e)
			ls.Uses = append(ls.Uses, brep.EdgeUse{Curve: cv, Forward: fwd})
			return true
		})
		return ls
	}
	ol, err := b.FaceOuterLoop(f)
	if err != nil {
		return brep.FaceSpec{}, err
	}
	spec := brep.FaceSpec{Surf: surf, SameSense: same, Outer: loopOf(ol)}
	b.FaceInnerLoops(f, func(l brep.LoopID) bool {
		spec.Inner = append(spec.Inner, loopOf(l))
		return true
	})
	return spec, nil
}
