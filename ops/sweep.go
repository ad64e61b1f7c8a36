package ops

import (
	"fmt"
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// SweepOptions carries the recognized sweep modifiers.
type SweepOptions struct {
	// Twist is the total rotation of the profile about the path
	// tangent over the sweep, in radians.
	Twist float64
	// Scale is the ratio of the final profile size to the initial
	// one; 1 (or 0, meaning unset) keeps the size constant.
	Scale float64
	// Sections is the number of intermediate stations sampled along
	// the path; 0 picks a default.
	Sections int
}

// Sweep moves the profile along the path curve, producing a solid
// whose side faces are swept surfaces. The profile is carried in a
// rotation-minimizing frame, with optional twist and scale along the
// way.
func Sweep(p Profile, path geom.Curve, sw SweepOptions, opt Options) (*brep.Body, error) {
	if err := p.valid(opt.Tol); err != nil {
		return nil, err
	}
	if path == nil {
		return nil, fmt.Errorf("%w: nil sweep path", ErrParameter)
	}
	scale := sw.Scale
	if scale == 0 {
		scale = 1
	}
	if scale < 0 {
		return nil, fmt.Errorf("%w: negative sweep scale", ErrParameter)
	}
	stations := sw.Sections
	if stations < 2 {
		stations = 16
	}
	r := path.ParamRange()
	// Rotation-minimizing frames by double reflection would be the
	// polished choice; projection of the previous frame normal onto
	// each new tangent plane is stable enough for modeling sweeps.
	type frame struct {
		origin md3.Vec
		x, y   md3.Vec // section plane basis
	}
	frames := make([]frame, stations+1)
	t0 := r.Start
	tan0, err := nmath.Unit(path.Derivative(t0))
	if err != nil {
		return nil, fmt.Errorf("%w: path tangent undefined", ErrGeometry)
	}
	x0, err := nmath.AnyPerpendicular(tan0)
	if err != nil {
		return nil, fmt.Errorf("%w: path tangent undefined", ErrGeometry)
	}
	frames[0] = frame{origin: path.Evaluate(t0), x: x0, y: md3.Cross(tan0, x0)}
	prevTan := tan0
	for i := 1; i <= stations; i++ {
		t := r.Lerp(float64(i) / float64(stations))
		tan, err := nmath.Unit(path.Derivative(t))
		if err != nil {
			tan = prevTan
		}
		// Project previous x off the new tangent.
		px := md3.Sub(frames[i-1].x, md3.Scale(md3.Dot(frames[i-1].x, tan), tan))
		x, err := nmath.Unit(px)
		if err != nil {
			x, _ = nmath.AnyPerpendicular(tan)
		}
		frames[i] = frame{origin: path.Evaluate(t), x: x, y: md3.Cross(tan, x)}
		prevTan = tan
	}
	// Express the profile in the first frame's coordinates.
	pn, err := p.normal()
	if err != nil {
		return nil, fmt.Errorf("%w: degenerate profile", ErrParameter)
	}
	// The profile plane must face the path start tangent.
	align, err := nmath.QuatBetween(pn, tan0)
	if err != nil {
		return nil, fmt.Errorf("%w: profile cannot align with path", ErrGeometry)
	}
	var pc md3.Vec
	for _, pt := range p.Points {
		pc = md3.Add(pc, pt)
	}
	pc = md3.Scale(1/float64(len(p.Points)), pc)

	local := make([][2]float64, len(p.Points))
	for i, pt := range p.Points {
		d := align.Rotate(md3.Sub(pt, pc))
		local[i] = [2]float64{md3.Dot(d, frames[0].x), md3.Dot(d, frames[0].y)}
	}
	sections := make([][]md3.Vec, stations+1)
	for i := range frames {
		s := float64(i) / float64(stations)
		twist := sw.Twist * s
		k := nmath.Lerp(1, scale, s)
		cos, sin := math.Cos(twist), math.Sin(twist)
		sec := make([]md3.Vec, len(local))
		for j, lc := range local {
			lx := k * (lc[0]*cos - lc[1]*sin)
			ly := k * (lc[0]*sin + lc[1]*cos)
			sec[j] = md3.Add(frames[i].origin,
				md3.Add(md3.Scale(lx, frames[i].x), md3.Scale(ly, frames[i].y)))
		}
		sections[i] = sec
	}
	return loftSections(sections, opt)
}

// Loft interpolates an ordered sequence of profiles with a NURBS
// surface per side wall and closes the ends with planar caps.
func Loft(profiles []Profile, opt Options) (*brep.Body, error) {
	if len(profiles) < 2 {
		return nil, fmt.Errorf("%w: loft needs 2+ profiles", ErrParameter)
	}
	count := len(profiles[0].Points)
	sections := make([][]md3.Vec, len(profiles))
	for i, p := range profiles {
		if err := p.valid(opt.Tol); err != nil {
			return nil, err
		}
		if len(p.Points) != count {
			return nil, fmt.Errorf("%w: loft profiles must share a point count", ErrParameter)
		}
		sections[i] = p.Points
	}
	// Identical consecutive profiles collapse the loft.
	for i := 1; i < len(sections); i++ {
		same := true
		for j := range sections[i] {
			if md3.Norm(md3.Sub(sections[i][j], sections[i-1][j])) > opt.Tol.Linear {
				same = false
				break
			}
		}
		if same {
			return nil, fmt.Errorf("%w: identical lofting profiles", ErrParameter)
		}
	}
	return loftSections(sections, opt)
}

// loftSections builds the solid spanned by an ordered stack of closed
// section polygons with identical vertex counts.
func loftSections(sections [][]md3.Vec, opt Options) (*brep.Body, error) {
	ns := len(sections)
	nv := len(sections[0])
	// Rails: one interpolated curve per profile vertex.
	rails := make([]geom.Curve, nv)
	for j := 0; j < nv; j++ {
		pts := make([]md3.Vec, ns)
		for i := 0; i < ns; i++ {
			pts[i] = sections[i][j]
		}
		c, err := geom.InterpolateNURBS(pts)
		if err != nil {
			return nil, fmt.Errorf("%w: lofting rail %d: %v", ErrGeometry, j, err)
		}
		rails[j] = c
	}
	// Section edges at both ends.
	startEdges := make([]geom.Curve, nv)
	endEdges := make([]geom.Curve, nv)
	for j := 0; j < nv; j++ {
		s, err := geom.NewLineSegment(sections[0][j], sections[0][(j+1)%nv])
		if err != nil {
			return nil, fmt.Errorf("%w: degenerate start section", ErrParameter)
		}
		e, err := geom.NewLineSegment(sections[ns-1][j], sections[ns-1][(j+1)%nv])
		if err != nil {
			return nil, fmt.Errorf("%w: degenerate end section", ErrParameter)
		}
		startEdges[j] = s
		endEdges[j] = e
	}
	var specs []brep.FaceSpec
	// Side walls: a lofted NURBS strip per profile edge.
	for j := 0; j < nv; j++ {
		grid := make([][]md3.Vec, ns)
		const across = 8
		for i := 0; i < ns; i++ {
			row := make([]md3.Vec, across+1)
			a := sections[i][j]
			b := sections[i][(j+1)%nv]
			for k := 0; k <= across; k++ {
				row[k] = md3.Add(a, md3.Scale(float64(k)/across, md3.Sub(b, a)))
			}
			grid[i] = row
		}
		surf, err := geom.LoftSurface(grid)
		if err != nil {
			return nil, fmt.Errorf("%w: lofting wall %d: %v", ErrGeometry, j, err)
		}
		specs = append(specs, brep.FaceSpec{
			Surf:      surf,
			SameSense: true,
			Outer: brep.LoopSpec{Uses: []brep.EdgeUse{
				{Curve: startEdges[j], Forward: true},
				{Curve: rails[(j+1)%nv], Forward: true},
				{Curve: endEdges[j], Forward: false},
				{Curve: rails[j], Forward: false},
			}},
		})
	}
	// Caps.
	capOf := func(sec []md3.Vec, edges []geom.Curve, outward md3.Vec) (brep.FaceSpec, error) {
		var c md3.Vec
		for _, p := range sec {
			c = md3.Add(c, p)
		}
		c = md3.Scale(1/float64(len(sec)), c)
		plane, err := geom.NewPlane(c, outward)
		if err != nil {
			return brep.FaceSpec{}, fmt.Errorf("%w: cap plane: %v", ErrGeometry, err)
		}
		var uses []brep.EdgeUse
		var newell md3.Vec
		for i, a := range sec {
			b := sec[(i+1)%len(sec)]
			newell = md3.Add(newell, md3.Cross(a, b))
		}
		if md3.Dot(newell, outward) > 0 {
			for j := 0; j < len(edges); j++ {
				uses = append(uses, brep.EdgeUse{Curve: edges[j], Forward: true})
			}
		} else {
			for j := len(edges) - 1; j >= 0; j-- {
				uses = append(uses, brep.EdgeUse{Curve: edges[j], Forward: false})
			}
		}
		return brep.FaceSpec{Surf: plane, SameSense: true, Outer: brep.LoopSpec{Uses: uses}}, nil
	}
	startNormalRef := md3.Sub(sections[1][0], sections[0][0])
	start, err := capOf(sections[0], startEdges, md3.Scale(-1, startNormalRef))
	if err != nil {
		return nil, err
	}
	endNormalRef := md3.Sub(sections[ns-1][0], sections[ns-2][0])
	end, err := capOf(sections[ns-1], endEdges, endNormalRef)
	if err != nil {
		return nil, err
	}
	specs = append(specs, start, end)
	body, err := brep.Assemble(specs, opt.Tol)
	if err != nil {
		return nil, fmt.Errorf("%w: assembling loft: %v", ErrTopology, err)
	}
	return body, nil
}
