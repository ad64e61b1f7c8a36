package ops

import (
	"fmt"
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Shell hollows a body to the given wall thickness, removing the
// designated faces to open the cavity. A positive thickness offsets
// inward. Self-intersection from a thickness exceeding the local
// radius of curvature fails with ErrGeometry naming the face.
func Shell(body *brep.Body, open []brep.FaceID, thickness float64, opt Options) (*brep.Body, error) {
	if body == nil || body.Released() || !body.IsClosedSolid() {
		return nil, fmt.Errorf("%w: shell needs a closed solid", ErrUnsupported)
	}
	if thickness == 0 {
		return nil, fmt.Errorf("%w: zero shell thickness", ErrParameter)
	}
	if math.Abs(thickness) <= opt.Tol.Linear {
		return nil, fmt.Errorf("%w: wall thinner than resolution", ErrTolerance)
	}
	openSet := map[brep.FaceID]bool{}
	for _, f := range open {
		if _, err := body.FaceSurface(f); err != nil {
			return nil, fmt.Errorf("%w: open face %d: %v", ErrParameter, f, err)
		}
		openSet[f] = true
	}
	// The cavity body: every kept face's surface offset inward by the
	// thickness; open faces offset outward well past the body so the
	// subtraction breaks through them.
	diag := nmath.BoxDiagonal(body.BoundingBox())
	replace := map[brep.FaceID]geom.Surface{}
	var offErr error
	work := body.DeepCopy()
	work.Faces(func(f brep.FaceID) bool {
		surf, _ := work.FaceSurface(f)
		same, _ := work.FaceSameSense(f)
		dist := -thickness
		if openSet[f] {
			dist = diag
		}
		if !same {
			dist = -dist
		}
		out, err := offsetSurface(surf, dist)
		if err != nil {
			offErr = fmt.Errorf("%w: face %d cannot offset by %g: %v", ErrGeometry, f, thickness, err)
			return false
		}
		replace[f] = out
		return true
	})
	if offErr != nil {
		return nil, offErr
	}
	if err := opt.cancelled(); err != nil {
		return nil, err
	}
	inner, err := rebuildWithSurfaces(work, replace, opt.Tol)
	if err != nil {
		return nil, err
	}
	if err := opt.cancelled(); err != nil {
		return nil, err
	}
	if thickness < 0 {
		// Outward shell: the cavity is the original body inside an
		// enlarged copy.
		return Subtract(inner, body, opt)
	}
	return Subtract(body, inner, opt)
}

// OffsetSurface returns the surface displaced by dist along its
// parametric normal, staying within the analytic families.
func OffsetSurface(s geom.Surface, dist float64) (geom.Surface, error) {
	out, err := offsetSurface(s, dist)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	return out, nil
}

// offsetSurface returns the surface displaced by dist along its
// parametric normal. Analytic families stay analytic; radius
// underflow reports the self-intersection.
func offsetSurface(s geom.Surface, dist float64) (geom.Surface, error) {
	switch sf := s.(type) {
	case *geom.Plane:
		n := sf.PlaneNormal()
		return geom.NewPlaneAxes(md3.Add(sf.Origin(), md3.Scale(dist, n)), sf.XDir(), sf.YDir())
	case *geom.Cylinder:
		r := sf.Radius() + dist
		if r <= 0 {
			return nil, fmt.Errorf("cylinder radius %g collapses", sf.Radius())
		}
		vr := sf.UVRange().V
		return geom.NewCylinder(sf.Base(), sf.Axis(), r, vr)
	case *geom.Sphere:
		r := sf.Radius() + dist
		if r <= 0 {
			return nil, fmt.Errorf("sphere radius %g collapses", sf.Radius())
		}
		return geom.NewSphere(sf.Center(), sf.Axis(), r)
	case *geom.Cone:
		// Normal offset moves the base radius by dist/cos(semi).
		semi := sf.SemiAngle()
		r := sf.RadiusAt(0) + dist/math.Cos(semi)
		if r <= 0 {
			return nil, fmt.Errorf("cone radius collapses")
		}
		vr := sf.UVRange().V
		return geom.NewCone(sf.Base(), sf.Axis(), r, semi, vr)
	case *geom.Torus:
		major, minor := sf.Radii()
		r := minor + dist
		if r <= 0 || r >= major {
			return nil, fmt.Errorf("torus tube radius %g collapses", minor)
		}
		return geom.NewTorus(sf.Center(), sf.Axis(), major, r)
	}
	return nil, fmt.Errorf("offset unsupported for this surface family")
}

// Draft rotates the selected faces by angle radians about their
// intersection with the neutral plane, the mold-release tilt. The
// neighboring faces are re-trimmed to the tilted surfaces.
func Draft(body *brep.Body, faces []brep.FaceID, neutral *geom.Plane, pullDir md3.Vec, angle float64, opt Options) (*brep.Body, error) {
	if body == nil || body.Released() {
		return nil, fmt.Errorf("%w: released body", ErrParameter)
	}
	if neutral == nil {
		return nil, fmt.Errorf("%w: nil neutral plane", ErrParameter)
	}
	if angle == 0 || math.Abs(angle) > math.Pi/4 {
		return nil, fmt.Errorf("%w: draft angle out of range", ErrParameter)
	}
	pull, err := nmath.Unit(pullDir)
	if err != nil {
		return nil, fmt.Errorf("%w: zero pull direction", ErrParameter)
	}
	work := body.DeepCopy()
	replace := map[brep.FaceID]geom.Surface{}
	for _, f := range faces {
		surf, err := work.FaceSurface(f)
		if err != nil {
			return nil, fmt.Errorf("%w: draft face %d: %v", ErrParameter, f, err)
		}
		// Hinge: the face surface's trace on the neutral plane.
		n, err := faceOutwardNormalAnywhere(work, f)
		if err != nil {
			return nil, err
		}
		hingeDir := md3.Cross(neutral.PlaneNormal(), n)
		hu, err := nmath.Unit(hingeDir)
		if err != nil {
			return nil, fmt.Errorf("%w: face %d parallel to neutral plane", ErrUnsupported, f)
		}
		p, _, _, err2 := work.InteriorPoint(f)
		if err2 != nil {
			return nil, fmt.Errorf("%w: face %d: %v", ErrGeometry, f, err2)
		}
		_, _, hinge, _ := neutral.Project(p)
		// Tilt towards the pull direction.
		sign := 1.0
		if md3.Dot(md3.Cross(hu, n), pull) < 0 {
			sign = -1
		}
		tilt, err := nmath.Rotating(hinge, hu, sign*angle)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
		}
		replace[f] = surf.Transformed(tilt)
	}
	out, err := rebuildWithSurfaces(work, replace, opt.Tol)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func faceOutwardNormalAnywhere(b *brep.Body, f brep.FaceID) (md3.Vec, error) {
	_, u, v, err := b.InteriorPoint(f)
	if err != nil {
		return md3.Vec{}, fmt.Errorf("%w: face %d: %v", ErrGeometry, f, err)
	}
	surf, _ := b.FaceSurface(f)
	n, err := surf.Normal(u, v)
	if err != nil {
		return md3.Vec{}, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	same, _ := b.FaceSameSense(f)
	if !same {
		n = md3.Scale(-1, n)
	}
	return n, nil
}
