package direct

import (
	"fmt"
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
	"github.com/novacad/nova/ops"
)

// FeatureKind enumerates the recognized feature classes.
type FeatureKind int

const (
	Hole FeatureKind = iota
	Pad
	Pocket
	Slot
	FilletFeature
	ChamferFeature
)

func (k FeatureKind) String() string {
	switch k {
	case Hole:
		return "hole"
	case Pad:
		return "pad"
	case Pocket:
		return "pocket"
	case Slot:
		return "slot"
	case FilletFeature:
		return "fillet"
	case ChamferFeature:
		return "chamfer"
	}
	return fmt.Sprintf("FeatureKind(%d)", int(k))
}

// Feature is a recognized region of the body's faces with editable
// parameters: its handles. Dragging a handle maps to a face edit on
// the feature's faces.
type Feature struct {
	Kind  FeatureKind
	Faces []brep.FaceID
	// Params carries the feature handles: "radius", "depth",
	// "angle", "width" as applicable.
	Params map[string]float64
	// Axis and Position anchor the handles in space where relevant.
	Axis     md3.Vec
	Position md3.Vec
}

// RecognizeFeatures classifies regions of the body's faces into
// features. The analyzer is read-only.
func RecognizeFeatures(body *brep.Body, tc nmath.ToleranceContext) []Feature {
	var out []Feature
	body.Faces(func(f brep.FaceID) bool {
		surf, _ := body.FaceSurface(f)
		switch s := surf.(type) {
		case *geom.Cylinder:
			n, err := normalNear(body, f, s.Evaluate(0, s.UVRange().V.Mid()))
			if err != nil {
				return true
			}
			// A hole's wall normal points at the axis.
			p := s.Evaluate(0, s.UVRange().V.Mid())
			toAxis := md3.Sub(axisFootOf(s, p), p)
			if md3.Dot(n, toAxis) > 0 {
				out = append(out, Feature{
					Kind:  Hole,
					Faces: []brep.FaceID{f},
					Params: map[string]float64{
						"radius": s.Radius(),
						"depth":  s.UVRange().V.Length(),
					},
					Axis:     s.Axis(),
					Position: s.Base(),
				})
			} else if fl, ok := recognizeBlend(body, f, s, tc); ok {
				out = append(out, fl)
			}
		case *geom.Plane:
			if ft, ok := recognizePrismatic(body, f, s, tc); ok {
				out = append(out, ft)
			} else if ch, ok := recognizeChamfer(body, f, s, tc); ok {
				out = append(out, ch)
			}
		}
		return true
	})
	return out
}

func axisFootOf(c *geom.Cylinder, p md3.Vec) md3.Vec {
	d := md3.Sub(p, c.Base())
	return md3.Add(c.Base(), md3.Scale(md3.Dot(d, c.Axis()), c.Axis()))
}

// recognizeBlend flags a cylindrical strip tangent to both neighbors
// as a fillet.
func recognizeBlend(body *brep.Body, f brep.FaceID, s *geom.Cylinder, tc nmath.ToleranceContext) (Feature, bool) {
	tangentSides := 0
	sides := 0
	body.FaceEdges(f, func(e brep.EdgeID) bool {
		fa, fb, _ := body.EdgeFaces(e)
		other := fa
		if other == f {
			other = fb
		}
		if other.IsNil() || other == f {
			return true
		}
		c, _ := body.EdgeCurve(e)
		if c == nil {
			return true
		}
		r := c.ParamRange()
		p := c.Evaluate(r.Mid())
		na, e1 := normalNear(body, f, p)
		nb, e2 := normalNear(body, other, p)
		sides++
		if e1 == nil && e2 == nil && tc.SameDirection(na, nb) {
			tangentSides++
		}
		return true
	})
	if tangentSides >= 2 {
		return Feature{
			Kind:  FilletFeature,
			Faces: []brep.FaceID{f},
			Params: map[string]float64{
				"radius": s.Radius(),
			},
			Axis:     s.Axis(),
			Position: s.Base(),
		}, true
	}
	return Feature{}, false
}

// recognizePrismatic flags a planar face whose boundary connects to
// perpendicular planar side walls sharing a common depth as a pad
// (raised, convex rim) or pocket (recessed, concave rim); a pocket
// whose side walls are exactly two cylinders and two planes is a slot.
func recognizePrismatic(body *brep.Body, top brep.FaceID, s *geom.Plane, tc nmath.ToleranceContext) (Feature, bool) {
	nTop, err := normalNear(body, top, s.Origin())
	if err != nil {
		return Feature{}, false
	}
	var walls []brep.FaceID
	cylWalls := 0
	depth := -1.0
	ok := true
	convexEdges, concaveEdges := 0, 0
	body.FaceEdges(top, func(e brep.EdgeID) bool {
		fa, fb, _ := body.EdgeFaces(e)
		side := fa
		if side == top {
			side = fb
		}
		if side.IsNil() {
			ok = false
			return false
		}
		ss, _ := body.FaceSurface(side)
		switch w := ss.(type) {
		case *geom.Plane:
			nw, err := normalNear(body, side, w.Origin())
			if err != nil || !tc.PerpendicularDirection(nTop, nw) {
				ok = false
				return false
			}
		case *geom.Cylinder:
			if !tc.ParallelDirection(w.Axis(), nTop) {
				ok = false
				return false
			}
			cylWalls++
		default:
			ok = false
			return false
		}
		walls = append(walls, side)
		d := sideDepth(body, side, nTop)
		if depth < 0 {
			depth = d
		} else if math.Abs(depth-d) > 64*tc.Linear {
			ok = false
			return false
		}
		if convex, cerr := edgeConvex(body, e, tc); cerr == nil {
			if convex {
				convexEdges++
			} else {
				concaveEdges++
			}
		}
		return true
	})
	if !ok || len(walls) < 3 || depth <= 0 {
		return Feature{}, false
	}
	kind := Pad
	if concaveEdges > convexEdges {
		kind = Pocket
		if cylWalls == 2 && len(walls)-cylWalls == 2 {
			kind = Slot
		}
	}
	return Feature{
		Kind:     kind,
		Faces:    append([]brep.FaceID{top}, walls...),
		Params:   map[string]float64{"depth": depth},
		Axis:     nTop,
		Position: s.Origin(),
	}, true
}

func sideDepth(body *brep.Body, side brep.FaceID, dir md3.Vec) float64 {
	box := nmath.EmptyBox()
	body.FaceEdges(side, func(e brep.EdgeID) bool {
		if c, _ := body.EdgeCurve(e); c != nil {
			box = box.Union(c.BoundsOf(c.ParamRange()))
		}
		return true
	})
	if nmath.BoxIsEmpty(box) {
		return 0
	}
	sz := box.Size()
	return math.Abs(sz.X*dir.X) + math.Abs(sz.Y*dir.Y) + math.Abs(sz.Z*dir.Z)
}

// edgeConvex reports whether the material angle across the edge is
// less than π.
func edgeConvex(body *brep.Body, e brep.EdgeID, tc nmath.ToleranceContext) (bool, error) {
	fa, fb, err := body.EdgeFaces(e)
	if err != nil || fa.IsNil() || fb.IsNil() {
		return false, fmt.Errorf("boundary edge")
	}
	c, _ := body.EdgeCurve(e)
	if c == nil {
		return false, fmt.Errorf("no curve")
	}
	r := c.ParamRange()
	p := c.Evaluate(r.Mid())
	na, e1 := normalNear(body, fa, p)
	nb, e2 := normalNear(body, fb, p)
	if e1 != nil || e2 != nil {
		return false, fmt.Errorf("no normals")
	}
	// Walk a little off the edge along the angle bisector of the
	// outward normals: outside for a convex edge.
	bis := md3.Add(na, nb)
	u, err := nmath.Unit(bis)
	if err != nil {
		return false, err
	}
	probe := md3.Add(p, md3.Scale(32*tc.Linear, u))
	onA := distanceToFace(body, fa, probe)
	onB := distanceToFace(body, fb, probe)
	return onA > 16*tc.Linear && onB > 16*tc.Linear, nil
}

func distanceToFace(body *brep.Body, f brep.FaceID, p md3.Vec) float64 {
	surf, _ := body.FaceSurface(f)
	if surf == nil {
		return 0
	}
	_, _, _, d := surf.Project(p)
	return d
}

// DragFeature edits one handle of a recognized feature through a face
// edit: hole and fillet radii offset their wall, depths move the top
// face.
func DragFeature(body *brep.Body, ft Feature, param string, value float64, opt ops.Options) (*brep.Body, error) {
	cur, ok := ft.Params[param]
	if !ok {
		return nil, fmt.Errorf("%w: feature has no handle %q", ops.ErrParameter, param)
	}
	if value <= 0 {
		return nil, fmt.Errorf("%w: handle %q must stay positive", ops.ErrParameter, param)
	}
	delta := value - cur
	if math.Abs(delta) <= opt.Tol.Linear {
		return body.DeepCopy(), nil
	}
	s, err := Begin(body, opt)
	if err != nil {
		return nil, err
	}
	switch param {
	case "radius":
		// Positive deltas widen: a hole wall offsets against its
		// outward normal (which points into the hole).
		if err := s.OffsetFace(ft.Faces[0], -delta); err != nil {
			return nil, err
		}
	case "depth":
		if err := s.MoveFace(ft.Faces[0], md3.Scale(delta, ft.Axis)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: handle %q not draggable", ops.ErrUnsupported, param)
	}
	solved, err := s.Solve()
	if err != nil {
		return nil, err
	}
	s.ended = true
	return solved, nil
}

// recognizeChamfer flags a narrow planar ramp meeting at least two
// planar neighbors at oblique angles; the angles are not compared with
// each other, and the first one found is reported.
func recognizeChamfer(body *brep.Body, f brep.FaceID, s *geom.Plane, tc nmath.ToleranceContext) (Feature, bool) {
	n, err := normalNear(body, f, s.Origin())
	if err != nil {
		return Feature{}, false
	}
	type neighbor struct {
		angle float64
	}
	var obliques []neighbor
	planarNeighbors := 0
	body.FaceEdges(f, func(e brep.EdgeID) bool {
		fa, fb, _ := body.EdgeFaces(e)
		other := fa
		if other == f {
			other = fb
		}
		if other.IsNil() {
			return true
		}
		os, _ := body.FaceSurface(other)
		if _, okp := os.(*geom.Plane); !okp {
			return true
		}
		planarNeighbors++
		c, _ := body.EdgeCurve(e)
		if c == nil {
			return true
		}
		r := c.ParamRange()
		p := c.Evaluate(r.Mid())
		no, err := normalNear(body, other, p)
		if err != nil {
			return true
		}
		dot := nmath.Clamp(md3.Dot(n, no), -1, 1)
		ang := math.Acos(dot)
		if ang > tc.Angular && ang < math.Pi/2-tc.Angular {
			obliques = append(obliques, neighbor{angle: ang})
		}
		return true
	})
	if len(obliques) < 2 {
		return Feature{}, false
	}
	// A chamfer is narrow: its span across the ramp is small against
	// its length.
	box := faceBoxOf(body, f)
	sz := box.Size()
	dims := []float64{sz.X, sz.Y, sz.Z}
	minD, maxD := math.Inf(1), 0.0
	for _, d := range dims {
		if d > 1e-12 {
			minD = math.Min(minD, d)
		}
		maxD = math.Max(maxD, d)
	}
	if maxD <= 0 || minD/maxD > 0.5 {
		return Feature{}, false
	}
	return Feature{
		Kind:     ChamferFeature,
		Faces:    []brep.FaceID{f},
		Params:   map[string]float64{"angle": obliques[0].angle, "width": minD},
		Axis:     n,
		Position: s.Origin(),
	}, true
}

func faceBoxOf(body *brep.Body, f brep.FaceID) md3.Box {
	box := nmath.EmptyBox()
	body.FaceEdges(f, func(e brep.EdgeID) bool {
		if c, _ := body.EdgeCurve(e); c != nil {
			box = box.Union(c.BoundsOf(c.ParamRange()))
		}
		return true
	})
	return box
}
