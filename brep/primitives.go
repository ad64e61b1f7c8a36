package brep

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// ErrParameter reports a primitive dimension out of domain.
var ErrParameter = errors.New("brep: invalid parameter")

// SetFaceSurface installs the surface reference of a face. This is a
// geometry change, not a topology rewrite; higher layers use it when
// they construct or replace face geometry.
func (b *Body) SetFaceSurface(f FaceID, surf geom.Surface, sameSense bool) error {
	fc, err := b.face(f)
	if err != nil {
		return err
	}
	fc.surf = surf
	fc.sameSense = sameSense
	return nil
}

// SetEdgeCurve installs the curve reference of an edge.
func (b *Body) SetEdgeCurve(e EdgeID, c geom.Curve) error {
	ed, err := b.edge(e)
	if err != nil {
		return err
	}
	ed.curve = c
	return nil
}

// SetVertexPosition moves a vertex. The caller is responsible for
// keeping incident curves in agreement.
func (b *Body) SetVertexPosition(v VertID, pos md3.Vec) error {
	vt, err := b.vert(v)
	if err != nil {
		return err
	}
	vt.pos = pos
	return nil
}

// SetVertexTolerance widens or tightens the vertex tolerance radius.
func (b *Body) SetVertexTolerance(v VertID, tol float64) error {
	vt, err := b.vert(v)
	if err != nil {
		return err
	}
	if tol <= 0 {
		return fmt.Errorf("%w: tolerance must be positive", ErrParameter)
	}
	vt.tol = tol
	return nil
}

func seg(a, b md3.Vec) (geom.Curve, error) {
	return geom.NewLineSegment(a, b)
}

// MakeBox returns the closed box of the given side lengths centered at
// the origin.
func MakeBox(w, h, d float64) (*Body, error) {
	if w <= 0 || h <= 0 || d <= 0 {
		return nil, fmt.Errorf("%w: box dimensions must be positive, got %g %g %g", ErrParameter, w, h, d)
	}
	x, y, z := w/2, h/2, d/2
	// Profile in clockwise order viewed from +Z so the bottom face
	// winds outward (-Z).
	profile := []md3.Vec{
		{X: -x, Y: -y, Z: -z},
		{X: -x, Y: y, Z: -z},
		{X: x, Y: y, Z: -z},
		{X: x, Y: -y, Z: -z},
	}
	return MakePrism(profile, md3.Vec{Z: d})
}

// MakePrism extrudes a planar polygon along dir into a closed solid.
// The polygon must be simple; its winding is normalized internally.
// Built as the classic Euler sequence: MVFS, a chain of MEVs laying
// out the base, an MEF closing the base face, one MEV per vertical
// edge and MEFs closing each side and the cap.
func MakePrism(profile []md3.Vec, dir md3.Vec) (*Body, error) {
	n := len(profile)
	if n < 3 {
		return nil, fmt.Errorf("%w: prism profile needs 3+ points", ErrParameter)
	}
	dirU, err := nmath.Unit(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: zero extrusion direction", ErrParameter)
	}
	// Newell normal decides the winding; the recipe wants the profile
	// clockwise when viewed along +dir.
	var newell md3.Vec
	var centroid md3.Vec
	for i, p := range profile {
		q := profile[(i+1)%n]
		newell = md3.Add(newell, md3.Cross(p, q))
		centroid = md3.Add(centroid, p)
	}
	centroid = md3.Scale(1/float64(n), centroid)
	if md3.Norm(newell) < 1e-14 {
		return nil, fmt.Errorf("%w: degenerate prism profile", ErrParameter)
	}
	if md3.Dot(newell, dirU) > 0 {
		rev := make([]md3.Vec, n)
		for i, p := range profile {
			rev[n-1-i] = p
		}
		profile = rev
	}

	b, _, f0, l0, v0 := MVFS(profile[0])
	verts := make([]VertID, n)
	verts[0] = v0

	c01, err := seg(profile[0], profile[1])
	if err != nil {
		return nil, err
	}
	e1, w, err := b.MEVLoop(l0, profile[1], c01)
	if err != nil {
		return nil, err
	}
	verts[1] = w
	firstFwd := b.edges[e1].c0
	tip := b.edges[e1].c1
	for i := 2; i < n; i++ {
		ci, err := seg(profile[i-1], profile[i])
		if err != nil {
			return nil, err
		}
		e, w, err := b.MEV(tip, profile[i], ci)
		if err != nil {
			return nil, err
		}
		verts[i] = w
		tip = b.edges[e].c1
	}
	// Close the base.
	bottomPlane, err := geom.NewPlane(centroid, md3.Scale(-1, dirU))
	if err != nil {
		return nil, err
	}
	closing, err := seg(profile[n-1], profile[0])
	if err != nil {
		return nil, err
	}
	if _, _, err := b.MEF(tip, firstFwd, closing, bottomPlane, true); err != nil {
		return nil, err
	}

	// Verticals. The base face's old loop now walks the profile in
	// reverse; find each vertex's coedge and raise a spur from it.
	top := make([]md3.Vec, n)
	spurRev := make([]CoedgeID, n)
	spurFwd := make([]CoedgeID, n)
	for i := 0; i < n; i++ {
		top[i] = md3.Add(profile[i], dir)
	}
	outer := b.faces[f0].outer
	for i := 0; i < n; i++ {
		at := b.findLoopCoedgeAt(outer, verts[i])
		if at.IsNil() {
			return nil, fmt.Errorf("%w: prism base lost vertex %d", ErrInvariant, i)
		}
		vc, err := seg(profile[i], top[i])
		if err != nil {
			return nil, err
		}
		e, _, err := b.MEV(at, top[i], vc)
		if err != nil {
			return nil, err
		}
		spurFwd[i] = b.edges[e].c0
		spurRev[i] = b.edges[e].c1
	}

	// Side faces: one MEF per profile edge; the last also frees the cap.
	sidePlane := func(i, j int) (geom.Surface, error) {
		edgeDir := md3.Sub(profile[j], profile[i])
		normal := md3.Cross(dirU, edgeDir)
		mid := md3.Scale(0.5, md3.Add(profile[i], profile[j]))
		mid = md3.Add(mid, md3.Scale(0.5, dir))
		return geom.NewPlane(mid, normal)
	}
	for k := n - 1; k >= 1; k-- {
		pl, err := sidePlane(k-1, k)
		if err != nil {
			return nil, err
		}
		tc, err := seg(top[k-1], top[k])
		if err != nil {
			return nil, err
		}
		if _, _, err := b.MEF(spurRev[k-1], spurRev[k], tc, pl, true); err != nil {
			return nil, err
		}
	}
	pl, err := sidePlane(n-1, 0)
	if err != nil {
		return nil, err
	}
	tc, err := seg(top[n-1], top[0])
	if err != nil {
		return nil, err
	}
	lastC1 := b.coedges[spurFwd[n-1]].next
	if _, _, err := b.MEF(lastC1, spurRev[0], tc, pl, true); err != nil {
		return nil, err
	}
	// The remaining loop of the bootstrap face is the cap.
	capPlane, err := geom.NewPlane(md3.Add(centroid, dir), dirU)
	if err != nil {
		return nil, err
	}
	if err := b.SetFaceSurface(f0, capPlane, true); err != nil {
		return nil, err
	}
	if issues := b.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, issues)
	}
	return b, nil
}

// findLoopCoedgeAt returns a coedge of the loop whose origin is v.
func (b *Body) findLoopCoedgeAt(l LoopID, v VertID) CoedgeID {
	found := CoedgeID(NilID)
	b.LoopCoedges(l, func(c CoedgeID) bool {
		if o, _ := b.CoedgeOrigin(c); o == v {
			found = c
			return false
		}
		return true
	})
	return found
}

// MakeCylinder returns the closed cylinder of radius r and height h
// centered at the origin with its axis along Z.
func MakeCylinder(r, h float64) (*Body, error) {
	if r <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: cylinder needs positive radius and height, got r=%g h=%g", ErrParameter, r, h)
	}
	zlo, zhi := -h/2, h/2
	sb := md3.Vec{X: r, Z: zlo}
	st := md3.Vec{X: r, Z: zhi}
	b, _, f0, l0, _ := MVFS(sb)
	seamC, err := seg(sb, st)
	if err != nil {
		return nil, err
	}
	eSeam, _, err := b.MEVLoop(l0, st, seamC)
	if err != nil {
		return nil, err
	}
	cf := b.edges[eSeam].c0
	cr := b.edges[eSeam].c1

	botCircle, err := geom.NewCircle(md3.Vec{Z: zlo}, md3.Vec{Z: -1}, md3.Vec{X: 1}, r)
	if err != nil {
		return nil, err
	}
	botPlane, err := geom.NewPlane(md3.Vec{Z: zlo}, md3.Vec{Z: -1})
	if err != nil {
		return nil, err
	}
	if _, _, err := b.MEF(cf, cf, botCircle, botPlane, true); err != nil {
		return nil, err
	}
	topCircle, err := geom.NewCircle(md3.Vec{Z: zhi}, md3.Vec{Z: 1}, md3.Vec{X: 1}, r)
	if err != nil {
		return nil, err
	}
	topPlane, err := geom.NewPlane(md3.Vec{Z: zhi}, md3.Vec{Z: 1})
	if err != nil {
		return nil, err
	}
	if _, _, err := b.MEF(cr, cr, topCircle, topPlane, true); err != nil {
		return nil, err
	}
	side, err := geom.NewCylinder(md3.Vec{Z: zlo}, md3.Vec{Z: 1}, r, geom.ParamRange{Start: 0, End: h})
	if err != nil {
		return nil, err
	}
	if err := b.SetFaceSurface(f0, side, true); err != nil {
		return nil, err
	}
	if issues := b.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, issues)
	}
	return b, nil
}

// MakeSphere returns the closed sphere of radius r centered at the
// origin. The boundary is a single face with a meridian seam edge.
func MakeSphere(r float64) (*Body, error) {
	if r <= 0 {
		return nil, fmt.Errorf("%w: sphere needs positive radius, got %g", ErrParameter, r)
	}
	south := md3.Vec{Z: -r}
	north := md3.Vec{Z: r}
	b, _, f0, l0, _ := MVFS(south)
	// Seam meridian in the XZ half-plane x >= 0.
	meridian, err := geom.NewArc(md3.Vec{}, md3.Vec{Y: -1}, md3.Vec{X: 1}, r,
		geom.ParamRange{Start: -math.Pi / 2, End: math.Pi / 2})
	if err != nil {
		return nil, err
	}
	if _, _, err := b.MEVLoop(l0, north, meridian); err != nil {
		return nil, err
	}
	surf, err := geom.NewSphere(md3.Vec{}, md3.Vec{Z: 1}, r)
	if err != nil {
		return nil, err
	}
	if err := b.SetFaceSurface(f0, surf, true); err != nil {
		return nil, err
	}
	if issues := b.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, issues)
	}
	return b, nil
}

// MakeCone returns the closed cone frustum with bottom radius r1, top
// radius r2 and height h, centered at the origin with its axis along
// Z. r2 may be zero for a full cone; r1 and r2 equal degrade to a
// cylinder.
func MakeCone(r1, r2, h float64) (*Body, error) {
	if h <= 0 || r1 < 0 || r2 < 0 || (r1 == 0 && r2 == 0) {
		return nil, fmt.Errorf("%w: cone needs positive height and a nonzero radius", ErrParameter)
	}
	if r1 == r2 {
		return MakeCylinder(r1, h)
	}
	if r1 == 0 {
		// Build point-down cones upside down, then flip.
		b, err := MakeCone(r2, r1, h)
		if err != nil {
			return nil, err
		}
		flip, err := nmath.Rotating(md3.Vec{}, md3.Vec{X: 1}, math.Pi)
		if err != nil {
			return nil, err
		}
		b.Transform(flip)
		return b, nil
	}
	zlo, zhi := -h/2, h/2
	semi := math.Atan2(r2-r1, h)
	sb := md3.Vec{X: r1, Z: zlo}
	b, _, f0, l0, _ := MVFS(sb)

	apex := r2 == 0
	var tipPos md3.Vec
	if apex {
		tipPos = md3.Vec{Z: zhi}
	} else {
		tipPos = md3.Vec{X: r2, Z: zhi}
	}
	seamC, err := seg(sb, tipPos)
	if err != nil {
		return nil, err
	}
	eSeam, _, err := b.MEVLoop(l0, tipPos, seamC)
	if err != nil {
		return nil, err
	}
	cf := b.edges[eSeam].c0
	cr := b.edges[eSeam].c1

	botCircle, err := geom.NewCircle(md3.Vec{Z: zlo}, md3.Vec{Z: -1}, md3.Vec{X: 1}, r1)
	if err != nil {
		return nil, err
	}
	botPlane, err := geom.NewPlane(md3.Vec{Z: zlo}, md3.Vec{Z: -1})
	if err != nil {
		return nil, err
	}
	if _, _, err := b.MEF(cf, cf, botCircle, botPlane, true); err != nil {
		return nil, err
	}
	if !apex {
		topCircle, err := geom.NewCircle(md3.Vec{Z: zhi}, md3.Vec{Z: 1}, md3.Vec{X: 1}, r2)
		if err != nil {
			return nil, err
		}
		topPlane, err := geom.NewPlane(md3.Vec{Z: zhi}, md3.Vec{Z: 1})
		if err != nil {
			return nil, err
		}
		if _, _, err := b.MEF(cr, cr, topCircle, topPlane, true); err != nil {
			return nil, err
		}
	}
	side, err := geom.NewCone(md3.Vec{Z: zlo}, md3.Vec{Z: 1}, r1, semi, geom.ParamRange{Start: 0, End: h})
	if err != nil {
		return nil, err
	}
	if err := b.SetFaceSurface(f0, side, true); err != nil {
		return nil, err
	}
	if issues := b.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, issues)
	}
	return b, nil
}

// MakeTorus returns the closed torus with major radius major and tube
// radius minor, centered at the origin about the Z axis. Its single
// face carries two seam edges meeting at one vertex; the shell records
// genus one.
func MakeTorus(major, minor float64) (*Body, error) {
	if minor <= 0 || major <= minor {
		return nil, fmt.Errorf("%w: torus needs 0 < minor < major, got R=%g r=%g", ErrParameter, major, minor)
	}
	v0pos := md3.Vec{X: major + minor}
	b := &Body{}
	sh := b.newShell(true)
	f := b.newFace(nil, true, sh)
	l := b.newLoop(f)
	b.faces[f].outer = l
	v0 := b.newVertex(v0pos, vertexWeldTol)

	uCircle, err := geom.NewCircle(md3.Vec{}, md3.Vec{Z: 1}, md3.Vec{X: 1}, major+minor)
	if err != nil {
		return nil, err
	}
	vCircle, err := geom.NewArc(md3.Vec{X: major}, md3.Vec{Y: -1}, md3.Vec{X: 1}, minor,
		geom.ParamRange{Start: 0, End: 2 * math.Pi})
	if err != nil {
		return nil, err
	}
	eu := b.newEdge(uCircle, v0, v0, vertexWeldTol)
	ev := b.newEdge(vCircle, v0, v0, vertexWeldTol)
	uf := b.newCoedge(eu, true, l)
	vf := b.newCoedge(ev, true, l)
	ur := b.newCoedge(eu, false, l)
	vr := b.newCoedge(ev, false, l)
	cycle := []CoedgeID{uf, vf, ur, vr}
	for i, c := range cycle {
		b.coedges[c].next = cycle[(i+1)%4]
		b.coedges[c].prev = cycle[(i+3)%4]
	}
	b.loops[l].first = uf
	b.setPartners(eu)
	b.setPartners(ev)
	b.shells[sh].genus = 1

	surf, err := geom.NewTorus(md3.Vec{}, md3.Vec{Z: 1}, major, minor)
	if err != nil {
		return nil, err
	}
	if err := b.SetFaceSurface(f, surf, true); err != nil {
		return nil, err
	}
	if issues := b.Validate(nmath.DefaultTolerance()); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, issues)
	}
	return b, nil
}
