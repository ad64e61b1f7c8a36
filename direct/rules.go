package direct

import (
	"fmt"
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// RelationKind enumerates the live geometric rules detected among the
// faces of a body at edit start.
type RelationKind int

const (
	Parallel RelationKind = iota
	Perpendicular
	Coplanar
	Concentric
	Tangent
	Symmetric
)

func (k RelationKind) String() string {
	switch k {
	case Parallel:
		return "parallel"
	case Perpendicular:
		return "perpendicular"
	case Coplanar:
		return "coplanar"
	case Concentric:
		return "concentric"
	case Tangent:
		return "tangent"
	case Symmetric:
		return "symmetric"
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

// Relation couples two faces under a live rule. Priority ranks the
// rule kinds; propagation applies every enabled coupling rule and does
// not consult Priority. Rules can be disabled per relation or
// session-wide.
type Relation struct {
	Kind     RelationKind
	A, B     brep.FaceID
	Priority int
	Enabled  bool
	// mirror is the reflection transform of a symmetric pair,
	// approximated as a half-turn about an axis lying in the symmetry
	// plane (see mirrorAbout).
	mirror nmath.Rigid
}

// couples reports whether the relation propagates transforms during
// an edit (orientation-only rules constrain but do not drag).
func (r Relation) couples() bool {
	switch r.Kind {
	case Coplanar, Concentric, Symmetric:
		return true
	}
	return false
}

// rule priorities, strongest first.
const (
	prioConcentric = 100
	prioCoplanar   = 90
	prioSymmetric  = 80
	prioTangent    = 60
	prioParallel   = 40
	prioPerp       = 30
)

// DetectRelations scans all face pairs of a body for live rules.
func DetectRelations(body *brep.Body, tc nmath.ToleranceContext) []Relation {
	var faces []brep.FaceID
	body.Faces(func(f brep.FaceID) bool { faces = append(faces, f); return true })
	var out []Relation
	add := func(kind RelationKind, a, b brep.FaceID, prio int, mirror nmath.Rigid) {
		out = append(out, Relation{Kind: kind, A: a, B: b, Priority: prio, Enabled: true, mirror: mirror})
	}
	for i := 0; i < len(faces); i++ {
		for j := i + 1; j < len(faces); j++ {
			sa, _ := body.FaceSurface(faces[i])
			sb, _ := body.FaceSurface(faces[j])
			if sa == nil || sb == nil {
				continue
			}
			switch a := sa.(type) {
			case *geom.Plane:
				b2, ok := sb.(*geom.Plane)
				if !ok {
					continue
				}
				na, nb := a.PlaneNormal(), b2.PlaneNormal()
				switch {
				case tc.ParallelDirection(na, nb):
					if md3.Norm(md3.Sub(a.Origin(), b2.Origin())) < tc.Linear ||
						tc.ZeroLength(a.SignedDistance(b2.Origin())) {
						add(Coplanar, faces[i], faces[j], prioCoplanar, nmath.RigidIdent())
					} else {
						add(Parallel, faces[i], faces[j], prioParallel, nmath.RigidIdent())
						// Parallel pairs are symmetric about their
						// midplane; register the mirror rule too.
						mid := md3.Scale(0.5, md3.Add(a.Origin(), b2.Origin()))
						if mirror, err := mirrorAbout(mid, na); err == nil {
							add(Symmetric, faces[i], faces[j], prioSymmetric, mirror)
						}
					}
				case tc.PerpendicularDirection(na, nb):
					add(Perpendicular, faces[i], faces[j], prioPerp, nmath.RigidIdent())
				}
			case *geom.Cylinder:
				cb, ok := sb.(*geom.Cylinder)
				if !ok {
					continue
				}
				if tc.ParallelDirection(a.Axis(), cb.Axis()) {
					off := md3.Sub(cb.Base(), a.Base())
					off = md3.Sub(off, md3.Scale(md3.Dot(off, a.Axis()), a.Axis()))
					if md3.Norm(off) <= tc.Linear {
						add(Concentric, faces[i], faces[j], prioConcentric, nmath.RigidIdent())
					}
				}
			case *geom.Sphere:
				sb2, ok := sb.(*geom.Sphere)
				if !ok {
					continue
				}
				if md3.Norm(md3.Sub(a.Center(), sb2.Center())) <= tc.Linear {
					add(Concentric, faces[i], faces[j], prioConcentric, nmath.RigidIdent())
				}
			}
		}
	}
	// Tangent contacts: faces sharing an edge with continuous normals
	// across it.
	body.Edges(func(e brep.EdgeID) bool {
		fa, fb, _ := body.EdgeFaces(e)
		if fa.IsNil() || fb.IsNil() || fa == fb {
			return true
		}
		c, _ := body.EdgeCurve(e)
		if c == nil {
			return true
		}
		r := c.ParamRange()
		p := c.Evaluate(r.Mid())
		na, errA := normalNear(body, fa, p)
		nb, errB := normalNear(body, fb, p)
		if errA == nil && errB == nil && tc.SameDirection(na, nb) {
			add(Tangent, fa, fb, prioTangent, nmath.RigidIdent())
		}
		return true
	})
	return out
}

func normalNear(b *brep.Body, f brep.FaceID, p md3.Vec) (md3.Vec, error) {
	surf, err := b.FaceSurface(f)
	if err != nil || surf == nil {
		return md3.Vec{}, fmt.Errorf("no surface")
	}
	u, v, _, _ := surf.Project(p)
	n, err := surf.Normal(u, v)
	if err != nil {
		return md3.Vec{}, err
	}
	if same, _ := b.FaceSameSense(f); !same {
		n = md3.Scale(-1, n)
	}
	return n, nil
}

// mirrorAbout builds the reflection across the plane (point, normal)
// as a rigid half-turn composed with the normal flip; for the
// translation-only propagation the kernel performs, the half-turn
// about an in-plane axis is the working equivalent.
func mirrorAbout(point, normal md3.Vec) (nmath.Rigid, error) {
	axis, err := nmath.AnyPerpendicular(normal)
	if err != nil {
		return nmath.Rigid{}, err
	}
	return nmath.Rotating(point, axis, math.Pi)
}
