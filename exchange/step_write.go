package exchange

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// StepWriter emits a body as an ISO 10303-21 file using the kernel's
// AP214/AP242 entity subset. Analytic surfaces are written natively,
// never as spline approximations, so export-import round trips keep
// the surface families.
type StepWriter struct {
	Schema Schema
	// Name labels the product in the header; empty picks a default.
	Name string
}

// WriteFile exports the body to path.
func (w *StepWriter) WriteFile(body *brep.Body, path string) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	return w.Write(body, fp)
}

// Write exports the body onto the stream.
func (w *StepWriter) Write(body *brep.Body, out io.Writer) error {
	if body == nil || body.Released() {
		return fmt.Errorf("exchange: released body")
	}
	bw := bufio.NewWriter(out)
	enc := &stepEncoder{w: bw}
	name := w.Name
	if name == "" {
		name = "nova_body"
	}
	fmt.Fprintf(bw, "ISO-10303-21;\nHEADER;\n")
	fmt.Fprintf(bw, "FILE_DESCRIPTION(('%s'),'2;1');\n", name)
	fmt.Fprintf(bw, "FILE_NAME('%s','%s',('nova'),('novacad'),'nova kernel','nova kernel','');\n",
		name, time.Now().UTC().Format("2006-01-02T15:04:05"))
	fmt.Fprintf(bw, "FILE_SCHEMA(('%s'));\nENDSEC;\nDATA;\n", w.Schema.Identifier())
	if err := enc.encodeBody(body); err != nil {
		return err
	}
	fmt.Fprintf(bw, "ENDSEC;\nEND-ISO-10303-21;\n")
	return bw.Flush()
}

type stepEncoder struct {
	w    io.Writer
	next int
	err  error
}

func (e *stepEncoder) emit(format string, args ...any) int {
	e.next++
	id := e.next
	if e.err == nil {
		_, e.err = fmt.Fprintf(e.w, "#%d=%s;\n", id, fmt.Sprintf(format, args...))
	}
	return id
}

func stepFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%.12g", v)
}

func (e *stepEncoder) point(p md3.Vec) int {
	return e.emit("CARTESIAN_POINT('',(%s,%s,%s))", stepFloat(p.X), stepFloat(p.Y), stepFloat(p.Z))
}

func (e *stepEncoder) direction(d md3.Vec) int {
	return e.emit("DIRECTION('',(%s,%s,%s))", stepFloat(d.X), stepFloat(d.Y), stepFloat(d.Z))
}

func (e *stepEncoder) placement(origin, axis, ref md3.Vec) int {
	o := e.point(origin)
	a := e.direction(axis)
	r := e.direction(ref)
	return e.emit("AXIS2_PLACEMENT_3D('',#%d,#%d,#%d)", o, a, r)
}

func refList(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func (e *stepEncoder) curve(c geom.Curve) (int, error) {
	switch cc := c.(type) {
	case *geom.Line:
		p := e.point(cc.Origin())
		d := e.direction(cc.Direction())
		v := e.emit("VECTOR('',#%d,1.0)", d)
		return e.emit("LINE('',#%d,#%d)", p, v), nil
	case *geom.Arc:
		pl := e.placement(cc.Center(), cc.Normal(), cc.XDir())
		return e.emit("CIRCLE('',#%d,%s)", pl, stepFloat(cc.Radius())), nil
	case *geom.EllipseArc:
		major, minor := cc.Radii()
		// The ellipse placement's ref direction is the major axis.
		normal := md3.Cross(md3.Sub(cc.Evaluate(0), cc.Center()), md3.Sub(cc.Evaluate(math.Pi/2), cc.Center()))
		u, err := nmath.Unit(normal)
		if err != nil {
			return 0, fmt.Errorf("exchange: degenerate ellipse")
		}
		xd, _ := nmath.Unit(md3.Sub(cc.Evaluate(0), cc.Center()))
		pl := e.placement(cc.Center(), u, xd)
		return e.emit("ELLIPSE('',#%d,%s,%s)", pl, stepFloat(major), stepFloat(minor)), nil
	case *geom.NURBSCurve:
		for _, w := range cc.Weights() {
			if math.Abs(w-1) > 1e-12 {
				return 0, &UnsupportedEntity{Type: "rational b_spline_curve"}
			}
		}
		var pts []int
		for _, p := range cc.ControlPoints() {
			pts = append(pts, e.point(p))
		}
		knots, mults := collapseKnots(cc.Knots())
		return e.emit("B_SPLINE_CURVE_WITH_KNOTS('',%d,%s,.UNSPECIFIED.,.F.,.F.,%s,%s,.UNSPECIFIED.)",
			cc.Degree(), refList(pts), intList(mults), floatList(knots)), nil
	}
	return 0, &UnsupportedEntity{Type: fmt.Sprintf("curve kind %d", c.Kind())}
}

func (e *stepEncoder) surface(s geom.Surface) (int, error) {
	switch ss := s.(type) {
	case *geom.Plane:
		pl := e.placement(ss.Origin(), ss.PlaneNormal(), ss.XDir())
		return e.emit("PLANE('',#%d)", pl), nil
	case *geom.Cylinder:
		ref, err := nmath.AnyPerpendicular(ss.Axis())
		if err != nil {
			return 0, err
		}
		pl := e.placement(ss.Base(), ss.Axis(), ref)
		return e.emit("CYLINDRICAL_SURFACE('',#%d,%s)", pl, stepFloat(ss.Radius())), nil
	case *geom.Sphere:
		ref, err := nmath.AnyPerpendicular(ss.Axis())
		if err != nil {
			return 0, err
		}
		pl := e.placement(ss.Center(), ss.Axis(), ref)
		return e.emit("SPHERICAL_SURFACE('',#%d,%s)", pl, stepFloat(ss.Radius())), nil
	case *geom.Cone:
		ref, err := nmath.AnyPerpendicular(ss.Axis())
		if err != nil {
			return 0, err
		}
		pl := e.placement(ss.Base(), ss.Axis(), ref)
		return e.emit("CONICAL_SURFACE('',#%d,%s,%s)",
			pl, stepFloat(ss.RadiusAt(0)), stepFloat(math.Abs(ss.SemiAngle()))), nil
	case *geom.Torus:
		ref, err := nmath.AnyPerpendicular(ss.Axis())
		if err != nil {
			return 0, err
		}
		major, minor := ss.Radii()
		pl := e.placement(ss.Center(), ss.Axis(), ref)
		return e.emit("TOROIDAL_SURFACE('',#%d,%s,%s)", pl, stepFloat(major), stepFloat(minor)), nil
	case *geom.NURBSSurface:
		for _, w := range ss.Weights() {
			if math.Abs(w-1) > 1e-12 {
				return 0, &UnsupportedEntity{Type: "rational b_spline_surface"}
			}
		}
		cu, cv := ss.ControlCounts()
		du, dv := ss.Degrees()
		rows := make([]string, cu)
		ctrl := ss.ControlPoints()
		for i := 0; i < cu; i++ {
			ids := make([]int, cv)
			for j := 0; j < cv; j++ {
				ids[j] = e.point(ctrl[i*cv+j])
			}
			rows[i] = refList(ids)
		}
		ku, mu := collapseKnots(ss.KnotsU())
		kv, mv := collapseKnots(ss.KnotsV())
		return e.emit("B_SPLINE_SURFACE_WITH_KNOTS('',%d,%d,(%s),.UNSPECIFIED.,.F.,.F.,.F.,%s,%s,%s,%s,.UNSPECIFIED.)",
			du, dv, strings.Join(rows, ","), intList(mu), intList(mv), floatList(ku), floatList(kv)), nil
	}
	return 0, &UnsupportedEntity{Type: "surface"}
}

func collapseKnots(knots []float64) (values []float64, mults []int) {
	for _, k := range knots {
		if len(values) > 0 && math.Abs(values[len(values)-1]-k) < 1e-12 {
			mults[len(mults)-1]++
			continue
		}
		values = append(values, k)
		mults = append(mults, 1)
	}
	return values, mults
}

func intList(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func floatList(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = stepFloat(v)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func (e *stepEncoder) encodeBody(body *brep.Body) error {
	vertexIDs := map[brep.VertID]int{}
	body.Vertices(func(v brep.VertID) bool {
		pos, _ := body.VertexPosition(v)
		p := e.point(pos)
		vertexIDs[v] = e.emit("VERTEX_POINT('',#%d)", p)
		return true
	})
	edgeIDs := map[brep.EdgeID]int{}
	var encErr error
	body.Edges(func(eid brep.EdgeID) bool {
		c, _ := body.EdgeCurve(eid)
		if c == nil {
			encErr = fmt.Errorf("exchange: edge %d has no curve", eid)
			return false
		}
		cid, err := e.curve(c)
		if err != nil {
			encErr = err
			return false
		}
		v0, v1, _ := body.EdgeVertices(eid)
		edgeIDs[eid] = e.emit("EDGE_CURVE('',#%d,#%d,#%d,.T.)", vertexIDs[v0], vertexIDs[v1], cid)
		return true
	})
	if encErr != nil {
		return encErr
	}
	faceIDs := map[brep.FaceID]int{}
	body.Faces(func(f brep.FaceID) bool {
		surf, _ := body.FaceSurface(f)
		if surf == nil {
			encErr = fmt.Errorf("exchange: face %d has no surface", f)
			return false
		}
		sid, err := e.surface(surf)
		if err != nil {
			encErr = err
			return false
		}
		loopOf := func(l brep.LoopID) int {
			var oes []int
			body.LoopCoedges(l, func(c brep.CoedgeID) bool {
				eid, fwd, _ := body.CoedgeEdge(c)
				flag := ".T."
				if !fwd {
					flag = ".F."
				}
				oes = append(oes, e.emit("ORIENTED_EDGE('',*,*,#%d,%s)", edgeIDs[eid], flag))
				return true
			})
			return e.emit("EDGE_LOOP('',%s)", refList(oes))
		}
		ol, _ := body.FaceOuterLoop(f)
		var bounds []int
		bounds = append(bounds, e.emit("FACE_OUTER_BOUND('',#%d,.T.)", loopOf(ol)))
		body.FaceInnerLoops(f, func(l brep.LoopID) bool {
			bounds = append(bounds, e.emit("FACE_BOUND('',#%d,.T.)", loopOf(l)))
			return true
		})
		same, _ := body.FaceSameSense(f)
		flag := ".T."
		if !same {
			flag = ".F."
		}
		faceIDs[f] = e.emit("ADVANCED_FACE('',%s,#%d,%s)", refList(bounds), sid, flag)
		return true
	})
	if encErr != nil {
		return encErr
	}
	var shellIDs []int
	outerShell := -1
	body.Shells(func(sh brep.ShellID) bool {
		var fids []int
		body.ShellFaces(sh, func(f brep.FaceID) bool {
			fids = append(fids, faceIDs[f])
			return true
		})
		id := e.emit("CLOSED_SHELL('',%s)", refList(fids))
		if outer, _ := body.ShellIsOuter(sh); outer {
			outerShell = id
		} else {
			shellIDs = append(shellIDs, id)
		}
		return true
	})
	if outerShell < 0 {
		return fmt.Errorf("exchange: body has no outer shell")
	}
	if len(shellIDs) == 0 {
		e.emit("MANIFOLD_SOLID_BREP('',#%d)", outerShell)
	} else {
		e.emit("BREP_WITH_VOIDS('',#%d,%s)", outerShell, refList(shellIDs))
	}
	return e.err
}
