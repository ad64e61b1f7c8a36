package ops

import (
	"fmt"
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Profile is a closed planar boundary for sweeping operations. Points
// are polygon vertices; Curves optionally carries richer segments
// (arcs) in the same cyclic order, one per polygon edge. A nil Curves
// means straight segments throughout.
type Profile struct {
	Points []md3.Vec
	Curves []geom.Curve
}

// valid checks closure and planarity.
func (p Profile) valid(tc nmath.ToleranceContext) error {
	if len(p.Points) < 3 {
		return fmt.Errorf("%w: profile needs 3+ points", ErrParameter)
	}
	if p.Curves != nil && len(p.Curves) != len(p.Points) {
		return fmt.Errorf("%w: profile curve count must match point count", ErrParameter)
	}
	n, err := p.normal()
	if err != nil {
		return fmt.Errorf("%w: degenerate profile", ErrParameter)
	}
	for _, pt := range p.Points {
		if math.Abs(md3.Dot(md3.Sub(pt, p.Points[0]), n)) > 64*tc.Linear {
			return fmt.Errorf("%w: profile is not planar", ErrParameter)
		}
	}
	return nil
}

// normal returns the unit Newell normal of the profile polygon.
func (p Profile) normal() (md3.Vec, error) {
	var newell md3.Vec
	for i, a := range p.Points {
		b := p.Points[(i+1)%len(p.Points)]
		newell = md3.Add(newell, md3.Cross(a, b))
	}
	return nmath.Unit(newell)
}

// Extrude sweeps the profile along dir for the given distance and
// returns the swept solid.
func Extrude(p Profile, dir md3.Vec, distance float64, opt Options) (*brep.Body, error) {
	if err := p.valid(opt.Tol); err != nil {
		return nil, err
	}
	if distance <= 0 {
		return nil, fmt.Errorf("%w: extrude distance must be positive, got %g", ErrParameter, distance)
	}
	u, err := nmath.Unit(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: zero extrusion direction", ErrParameter)
	}
	if distance <= opt.Tol.Linear {
		return nil, fmt.Errorf("%w: extrusion thinner than resolution", ErrTolerance)
	}
	body, err := brep.MakePrism(p.Points, md3.Scale(distance, u))
	if err != nil {
		return nil, translateBrepErr(err)
	}
	return body, nil
}

// ExtrudeMode selects how an extrusion combines with an existing body.
type ExtrudeMode int

const (
	// ExtrudeAdd unites the swept solid with the target.
	ExtrudeAdd ExtrudeMode = iota
	// ExtrudeCut subtracts the swept solid from the target.
	ExtrudeCut
)

// ExtrudeOnto sweeps the profile and combines the result with an
// existing body by Boolean union or subtraction.
func ExtrudeOnto(body *brep.Body, p Profile, dir md3.Vec, distance float64, mode ExtrudeMode, opt Options) (*brep.Body, error) {
	tool, err := Extrude(p, dir, distance, opt)
	if err != nil {
		return nil, err
	}
	if mode == ExtrudeCut {
		return Subtract(body, tool, opt)
	}
	return Unite(body, tool, opt)
}

// Revolve sweeps the profile about the axis through origin by angle
// radians (2π for a full revolution). Profile segments choose their
// surface of revolution analytically: radial segments become planes,
// axis-parallel segments cylinders, oblique segments cones, and arcs
// become tori or spheres depending on their center's distance from
// the axis.
func Revolve(p Profile, origin, axis md3.Vec, angle float64, opt Options) (*brep.Body, error) {
	if err := p.valid(opt.Tol); err != nil {
		return nil, err
	}
	if angle <= 0 || angle > 2*math.Pi+1e-9 {
		return nil, fmt.Errorf("%w: revolve angle must be in (0, 2π], got %g", ErrParameter, angle)
	}
	axU, err := nmath.Unit(axis)
	if err != nil {
		return nil, fmt.Errorf("%w: zero revolve axis", ErrParameter)
	}
	full := angle >= 2*math.Pi-1e-9
	n := len(p.Points)
	// The profile must not cross the axis.
	for _, pt := range p.Points {
		if radiusAbout(pt, origin, axU) < opt.Tol.Linear {
			return nil, fmt.Errorf("%w: profile touches the revolve axis", ErrUnsupported)
		}
	}

	rot := func(theta float64) nmath.Rigid {
		r, _ := nmath.Rotating(origin, axU, theta)
		return r
	}
	var specs []brep.FaceSpec
	// Rim circles (or arcs) swept by each profile vertex.
	rims := make([]geom.Curve, n)
	for i, pt := range p.Points {
		c, err := rimArc(pt, origin, axU, angle, full)
		if err != nil {
			return nil, translateBrepErr(err)
		}
		rims[i] = c
	}
	// One face of revolution per profile segment.
	for i := 0; i < n; i++ {
		a := p.Points[i]
		b := p.Points[(i+1)%n]
		var seg geom.Curve
		if p.Curves != nil && p.Curves[i] != nil {
			seg = p.Curves[i]
		} else {
			s, err := geom.NewLineSegment(a, b)
			if err != nil {
				return nil, fmt.Errorf("%w: profile segment %d degenerate", ErrParameter, i)
			}
			seg = s
		}
		surf, err := revolutionSurface(seg, origin, axU, opt.Tol)
		if err != nil {
			return nil, err
		}
		segEnd := seg.Transformed(rot(angle))
		uses := []brep.EdgeUse{
			{Curve: rims[i], Forward: false},
			{Curve: seg, Forward: true},
		}
		if full {
			// Seam discipline: the meridian edge is used twice by
			// the same face, like a cylinder barrel.
			uses = append(uses,
				brep.EdgeUse{Curve: rims[(i+1)%n], Forward: true},
				brep.EdgeUse{Curve: seg, Forward: false},
			)
		} else {
			uses = append(uses,
				brep.EdgeUse{Curve: rims[(i+1)%n], Forward: true},
				brep.EdgeUse{Curve: segEnd, Forward: false},
			)
		}
		specs = append(specs, brep.FaceSpec{
			Surf:      surf,
			SameSense: true,
			Outer:     brep.LoopSpec{Uses: uses},
		})
	}
	if !full {
		// Cap faces at the start and end angles.
		capSpec := func(theta float64, flip bool) (brep.FaceSpec, error) {
			tf := rot(theta)
			prof := make([]geom.Curve, n)
			for i := 0; i < n; i++ {
				var seg geom.Curve
				if p.Curves != nil && p.Curves[i] != nil {
					seg = p.Curves[i]
				} else {
					s, err := geom.NewLineSegment(p.Points[i], p.Points[(i+1)%n])
					if err != nil {
						return brep.FaceSpec{}, err
					}
					seg = s
				}
				prof[i] = seg.Transformed(tf)
			}
			pn, err := p.normal()
			if err != nil {
				return brep.FaceSpec{}, err
			}
			normal := tf.ApplyDir(pn)
			if flip {
				normal = md3.Scale(-1, normal)
			}
			plane, err := geom.NewPlane(tf.Apply(p.Points[0]), normal)
			if err != nil {
				return brep.FaceSpec{}, err
			}
			var uses []brep.EdgeUse
			if flip {
				for i := n - 1; i >= 0; i-- {
					uses = append(uses, brep.EdgeUse{Curve: prof[i], Forward: false})
				}
			} else {
				for i := 0; i < n; i++ {
					uses = append(uses, brep.EdgeUse{Curve: prof[i], Forward: true})
				}
			}
			return brep.FaceSpec{Surf: plane, SameSense: true, Outer: brep.LoopSpec{Uses: uses}}, nil
		}
		// Orient the caps so their normals point out of the swept
		// wedge: the start cap faces -dθ, the end cap +dθ.
		pn, _ := p.normal()
		sweepDir := md3.Cross(axU, md3.Sub(p.Points[0], origin))
		startFlip := md3.Dot(pn, sweepDir) > 0
		start, err := capSpec(0, startFlip)
		if err != nil {
			return nil, translateBrepErr(err)
		}
		end, err := capSpec(angle, !startFlip)
		if err != nil {
			return nil, translateBrepErr(err)
		}
		specs = append(specs, start, end)
	}
	body, err := brep.Assemble(specs, opt.Tol)
	if err != nil {
		return nil, fmt.Errorf("%w: assembling revolve: %v", ErrTopology, err)
	}
	return body, nil
}

func radiusAbout(p, origin, axis md3.Vec) float64 {
	d := md3.Sub(p, origin)
	return md3.Norm(md3.Sub(d, md3.Scale(md3.Dot(d, axis), axis)))
}

// rimArc returns the circle (or arc) swept by point p about the axis.
func rimArc(p, origin, axis md3.Vec, angle float64, full bool) (geom.Curve, error) {
	d := md3.Sub(p, origin)
	h := md3.Dot(d, axis)
	center := md3.Add(origin, md3.Scale(h, axis))
	radial := md3.Sub(p, center)
	r := md3.Norm(radial)
	if full {
		return geom.NewCircle(center, axis, radial, r)
	}
	return geom.NewArc(center, axis, radial, r, geom.ParamRange{Start: 0, End: angle})
}

// revolutionSurface picks the analytic surface swept by one profile
// segment, per the classification table of the revolve operation.
func revolutionSurface(seg geom.Curve, origin, axis md3.Vec, tc nmath.ToleranceContext) (geom.Surface, error) {
	switch c := seg.(type) {
	case *geom.Line:
		dir := c.Direction()
		r := c.ParamRange()
		a := c.Evaluate(r.Start)
		b := c.Evaluate(r.End)
		switch {
		case tc.PerpendicularDirection(dir, axis):
			// Radial segment sweeps an annulus.
			return geom.NewPlane(a, axis)
		case tc.ParallelDirection(dir, axis):
			rad := radiusAbout(a, origin, axis)
			base := axisFoot(a, origin, axis)
			hgt := md3.Dot(md3.Sub(b, a), axis)
			vr := geom.ParamRange{Start: 0, End: math.Abs(hgt)}
			if hgt < 0 {
				base = axisFoot(b, origin, axis)
			}
			return geom.NewCylinder(base, axis, rad, vr)
		default:
			// Oblique: cone through both endpoint radii.
			ra := radiusAbout(a, origin, axis)
			rb := radiusAbout(b, origin, axis)
			ha := md3.Dot(md3.Sub(a, origin), axis)
			hb := md3.Dot(md3.Sub(b, origin), axis)
			if math.Abs(hb-ha) < tc.Linear {
				return nil, fmt.Errorf("%w: oblique segment with no axial extent", ErrGeometry)
			}
			semi := math.Atan2(rb-ra, hb-ha)
			lo, hi := math.Min(ha, hb), math.Max(ha, hb)
			base := md3.Add(origin, md3.Scale(lo, axis))
			r0 := ra
			if ha > hb {
				r0 = rb
			}
			return geom.NewCone(base, axis, r0, semi, geom.ParamRange{Start: 0, End: hi - lo})
		}
	case *geom.Arc:
		center := c.Center()
		// The arc plane must contain the axis for an analytic sweep.
		an := c.Normal()
		if !tc.PerpendicularDirection(an, axis) {
			return nil, fmt.Errorf("%w: arc profile plane must contain the revolve axis", ErrUnsupported)
		}
		major := radiusAbout(center, origin, axis)
		if major < tc.Linear {
			// Center on the axis: a sphere.
			return geom.NewSphere(center, axis, c.Radius())
		}
		if c.Radius() >= major {
			return nil, fmt.Errorf("%w: arc radius reaches the axis, torus would self-intersect", ErrGeometry)
		}
		tcenter := axisFoot(center, origin, axis)
		return geom.NewTorus(tcenter, axis, major, c.Radius())
	}
	return nil, fmt.Errorf("%w: unsupported revolve segment kind", ErrUnsupported)
}

func axisFoot(p, origin, axis md3.Vec) md3.Vec {
	return md3.Add(origin, md3.Scale(md3.Dot(md3.Sub(p, origin), axis), axis))
}

// translateBrepErr passes topology-layer errors through: their kinds
// (parameter, invariant) are already part of the kernel taxonomy.
func translateBrepErr(err error) error { return err }
