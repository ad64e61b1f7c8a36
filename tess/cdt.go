package tess

import (
	"math"

	"github.com/soypat/geometry/md2"
	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Per-face triangulation: seed a constrained triangulation of the
// boundary polyline polygon in the parameter domain, refine violating
// triangles by interior insertion with Delaunay legalization, then
// lift to 3D.

func tessellateFace(body *brep.Body, f brep.FaceID, polylines map[brep.EdgeID][]md3.Vec, opt Options) (*Mesh, error) {
	surf, err := body.FaceSurface(f)
	if err != nil || surf == nil {
		return nil, nil // degenerate bootstrap faces carry no skin
	}
	same, _ := body.FaceSameSense(f)

	polys, err := faceBoundaryUV(body, f, surf, polylines)
	if err != nil {
		return nil, err
	}
	var tr *triangulation
	if len(polys) == 0 || len(polys[0]) < 3 || fullPeriodFace(surf, polys) {
		tr = gridTriangulation(surf, polys, polylines, body, f, opt)
	} else {
		tr = polygonTriangulation(polys)
	}
	if tr == nil || len(tr.tris) == 0 {
		return nil, nil
	}
	tr.refine(surf, opt)
	return tr.lift(surf, same), nil
}

// faceBoundaryUV projects the face's shared edge polylines into the
// unwrapped parameter domain, one polygon per loop.
func faceBoundaryUV(body *brep.Body, f brep.FaceID, surf geom.Surface, polylines map[brep.EdgeID][]md3.Vec) ([][]md2.Vec, error) {
	uvr := surf.UVRange()
	uPeriod, vPeriod := 0.0, 0.0
	if surf.PeriodicU() {
		uPeriod = uvr.U.Length()
	}
	if surf.PeriodicV() {
		vPeriod = uvr.V.Length()
	}
	var out [][]md2.Vec
	appendLoop := func(l brep.LoopID) error {
		var poly []md2.Vec
		err := body.LoopCoedges(l, func(c brep.CoedgeID) bool {
			e, forward, _ := body.CoedgeEdge(c)
			pl := polylines[e]
			if len(pl) == 0 {
				return true
			}
			for i := 0; i < len(pl)-1; i++ { // last point is the next edge's first
				idx := i
				if !forward {
					idx = len(pl) - 1 - i
				}
				u, v, _, _ := surf.Project(pl[idx])
				uv := md2.Vec{X: u, Y: v}
				if len(poly) > 0 {
					uv = unwrapPeriodic(poly[len(poly)-1], uv, uPeriod, vPeriod)
				}
				poly = append(poly, uv)
			}
			return true
		})
		if err != nil {
			return err
		}
		out = append(out, poly)
		return nil
	}
	ol, err := body.FaceOuterLoop(f)
	if err != nil {
		return nil, err
	}
	if err := appendLoop(ol); err != nil {
		return nil, err
	}
	body.FaceInnerLoops(f, func(l brep.LoopID) bool {
		appendLoop(l)
		return true
	})
	return out, nil
}

func unwrapPeriodic(prev, next md2.Vec, uPeriod, vPeriod float64) md2.Vec {
	if uPeriod > 0 {
		for next.X-prev.X > uPeriod/2 {
			next.X -= uPeriod
		}
		for prev.X-next.X > uPeriod/2 {
			next.X += uPeriod
		}
	}
	if vPeriod > 0 {
		for next.Y-prev.Y > vPeriod/2 {
			next.Y -= vPeriod
		}
		for prev.Y-next.Y > vPeriod/2 {
			next.Y += vPeriod
		}
	}
	return next
}

// fullPeriodFace reports faces whose boundary wraps a whole period or
// collapses (sphere seam), which are gridded instead of ear clipped.
func fullPeriodFace(surf geom.Surface, polys [][]md2.Vec) bool {
	if len(polys) == 0 || len(polys[0]) == 0 {
		return false
	}
	outer := polys[0]
	if math.Abs(brep.PolygonArea(outer)) < 1e-12 {
		return true
	}
	if !surf.PeriodicU() && !surf.PeriodicV() {
		return false
	}
	uvr := surf.UVRange()
	if surf.PeriodicU() {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range outer {
			lo = math.Min(lo, p.X)
			hi = math.Max(hi, p.X)
		}
		if hi-lo >= uvr.U.Length()*0.75 {
			return true
		}
	}
	if surf.PeriodicV() {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range outer {
			lo = math.Min(lo, p.Y)
			hi = math.Max(hi, p.Y)
		}
		if hi-lo >= uvr.V.Length()*0.75 {
			return true
		}
	}
	return false
}

// triangulation is an editable UV triangle set.
type triangulation struct {
	pts  []md2.Vec
	tris [][3]int
	// constrained edges (boundary) keyed by sorted vertex pair.
	constrained map[[2]int]bool
	// holes to exclude during grid fill.
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// polygonTriangulation ear clips the boundary polygon with its holes
// bridged, constraining the boundary segments.
func polygonTriangulation(polys [][]md2.Vec) *triangulation {
	outer := polys[0]
	merged := brep.BridgeHoles(outer, polys[1:])
	tris := brep.EarTriangulate(merged)
	tr := &triangulation{pts: merged, constrained: map[[2]int]bool{}}
	for _, t := range tris {
		tr.tris = append(tr.tris, t)
	}
	// Constrain consecutive boundary points (they lie on edge
	// polylines that neighbors share).
	for i := range merged {
		j := (i + 1) % len(merged)
		tr.constrained[edgeKey(i, j)] = true
	}
	return tr
}

// gridTriangulation meshes full-period faces on a structured grid
// whose boundary rows coincide with the shared edge polylines.
func gridTriangulation(surf geom.Surface, polys [][]md2.Vec, polylines map[brep.EdgeID][]md3.Vec, body *brep.Body, f brep.FaceID, opt Options) *triangulation {
	uvr := surf.UVRange()
	// Division counts follow the densest boundary polyline so grid
	// boundary samples coincide with neighbor faces' samples.
	nu, nv := 16, 16
	body.FaceEdges(f, func(e brep.EdgeID) bool {
		pl := polylines[e]
		if len(pl) < 2 {
			return true
		}
		// Classify the edge's parametric direction by its span.
		u0, v0, _, _ := surf.Project(pl[0])
		u1, v1, _, _ := surf.Project(pl[len(pl)/2])
		du := math.Abs(u1 - u0)
		dv := math.Abs(v1 - v0)
		if du >= dv {
			if len(pl)-1 > nu {
				nu = len(pl) - 1
			}
		} else {
			if len(pl)-1 > nv {
				nv = len(pl) - 1
			}
		}
		return true
	})
	// Clamp v to the boundary's actual span on half-open surfaces.
	vlo, vhi := uvr.V.Start, uvr.V.End
	ulo, uhi := uvr.U.Start, uvr.U.End
	if len(polys) > 0 && len(polys[0]) > 0 && !surf.PeriodicV() {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range polys[0] {
			lo = math.Min(lo, p.Y)
			hi = math.Max(hi, p.Y)
		}
		if hi > lo {
			vlo, vhi = lo, hi
		}
	}
	tr := &triangulation{constrained: map[[2]int]bool{}}
	var holes [][]md2.Vec
	if len(polys) > 1 {
		holes = polys[1:]
	}
	holeTest := func(uv md2.Vec) bool {
		for _, h := range holes {
			if brep.PointInPolygons([][]md2.Vec{h}, uv) {
				return true
			}
		}
		return false
	}
	idx := make([][]int, nu+1)
	for i := 0; i <= nu; i++ {
		idx[i] = make([]int, nv+1)
		for j := 0; j <= nv; j++ {
			u := ulo + (uhi-ulo)*float64(i)/float64(nu)
			v := vlo + (vhi-vlo)*float64(j)/float64(nv)
			idx[i][j] = len(tr.pts)
			tr.pts = append(tr.pts, md2.Vec{X: u, Y: v})
		}
	}
	for i := 0; i < nu; i++ {
		for j := 0; j < nv; j++ {
			c := md2.Vec{
				X: ulo + (uhi-ulo)*(float64(i)+0.5)/float64(nu),
				Y: vlo + (vhi-vlo)*(float64(j)+0.5)/float64(nv),
			}
			if holeTest(c) {
				continue
			}
			a, b := idx[i][j], idx[i+1][j]
			cc, d := idx[i+1][j+1], idx[i][j+1]
			tr.tris = append(tr.tris, [3]int{a, b, cc}, [3]int{a, cc, d})
		}
	}
	// Boundary rows and seam columns are constrained.
	for j := 0; j < nv; j++ {
		tr.constrained[edgeKey(idx[0][j], idx[0][j+1])] = true
		tr.constrained[edgeKey(idx[nu][j], idx[nu][j+1])] = true
	}
	for i := 0; i < nu; i++ {
		tr.constrained[edgeKey(idx[i][0], idx[i+1][0])] = true
		tr.constrained[edgeKey(idx[i][nv], idx[i+1][nv])] = true
	}
	return tr
}

// refine inserts interior points into triangles violating the chord
// or angle tolerance, legalizing locally, until both hold or a limit
// is reached (48 passes, 20000 insertions, or no candidate point clear
// of the spacing floor); triangles may still violate at that point.
func (tr *triangulation) refine(surf geom.Surface, opt Options) {
	const maxInsertions = 20000
	insertions := 0
	minSpacing := refineMinSpacing(tr)
	for pass := 0; pass < 48; pass++ {
		anySplit := false
		for ti := 0; ti < len(tr.tris); ti++ {
			if insertions >= maxInsertions {
				return
			}
			t := tr.tris[ti]
			a, b, c := tr.pts[t[0]], tr.pts[t[1]], tr.pts[t[2]]
			centroid := md2.Scale(1.0/3, md2.Add(md2.Add(a, b), c))
			if !tr.violates(surf, t, centroid, opt) {
				continue
			}
			// Refuse points crowding an existing vertex; guarantees
			// termination at the sampling floor.
			if md2.Norm(md2.Sub(centroid, a)) < minSpacing ||
				md2.Norm(md2.Sub(centroid, b)) < minSpacing ||
				md2.Norm(md2.Sub(centroid, c)) < minSpacing {
				continue
			}
			tr.splitTriangle(ti, centroid)
			insertions++
			anySplit = true
		}
		if !anySplit {
			return
		}
	}
}

func refineMinSpacing(tr *triangulation) float64 {
	lo := md2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := md2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range tr.pts {
		lo = md2.MinElem(lo, p)
		hi = md2.MaxElem(hi, p)
	}
	d := md2.Norm(md2.Sub(hi, lo))
	return d / 512
}

// violates evaluates the chord and normal-spread criteria.
func (tr *triangulation) violates(surf geom.Surface, t [3]int, centroid md2.Vec, opt Options) bool {
	p0 := surf.Evaluate(tr.pts[t[0]].X, tr.pts[t[0]].Y)
	p1 := surf.Evaluate(tr.pts[t[1]].X, tr.pts[t[1]].Y)
	p2 := surf.Evaluate(tr.pts[t[2]].X, tr.pts[t[2]].Y)
	mid3 := md3.Scale(1.0/3, md3.Add(md3.Add(p0, p1), p2))
	onSurf := surf.Evaluate(centroid.X, centroid.Y)
	if md3.Norm(md3.Sub(onSurf, mid3)) > opt.ChordTol {
		return true
	}
	n0, e0 := surf.Normal(tr.pts[t[0]].X, tr.pts[t[0]].Y)
	n1, e1 := surf.Normal(tr.pts[t[1]].X, tr.pts[t[1]].Y)
	n2, e2 := surf.Normal(tr.pts[t[2]].X, tr.pts[t[2]].Y)
	if e0 != nil || e1 != nil || e2 != nil {
		return false
	}
	spread := math.Max(angleBetween(n0, n1), math.Max(angleBetween(n1, n2), angleBetween(n0, n2)))
	return spread > opt.AngleTol
}

func angleBetween(a, b md3.Vec) float64 {
	return math.Acos(nmath.Clamp(md3.Dot(a, b), -1, 1))
}

// splitTriangle replaces triangle ti with three triangles around the
// inserted point and legalizes the surrounding edges by Lawson flips.
func (tr *triangulation) splitTriangle(ti int, p md2.Vec) {
	t := tr.tris[ti]
	pi := len(tr.pts)
	tr.pts = append(tr.pts, p)
	tr.tris[ti] = [3]int{t[0], t[1], pi}
	tr.tris = append(tr.tris, [3]int{t[1], t[2], pi}, [3]int{t[2], t[0], pi})
	tr.legalize(pi, edgeKey(t[0], t[1]))
	tr.legalize(pi, edgeKey(t[1], t[2]))
	tr.legalize(pi, edgeKey(t[2], t[0]))
}

// legalize flips edge e away from point pi when the Delaunay circle
// test demands it, recursing on the exposed edges.
func (tr *triangulation) legalize(pi int, e [2]int) {
	if tr.constrained[e] {
		return
	}
	// Find the two triangles sharing e.
	var with, without = -1, -1
	var apex int
	for i, t := range tr.tris {
		has0 := t[0] == e[0] || t[1] == e[0] || t[2] == e[0]
		has1 := t[0] == e[1] || t[1] == e[1] || t[2] == e[1]
		if !has0 || !has1 {
			continue
		}
		hasP := t[0] == pi || t[1] == pi || t[2] == pi
		if hasP {
			with = i
		} else {
			without = i
			for _, v := range t {
				if v != e[0] && v != e[1] {
					apex = v
				}
			}
		}
	}
	if with < 0 || without < 0 {
		return
	}
	a, b := tr.pts[e[0]], tr.pts[e[1]]
	c := tr.pts[apex]
	d := tr.pts[pi]
	// Orient abc counterclockwise for the in-circle test.
	if nmath.Orient2D(a, b, c) < 0 {
		a, b = b, a
	}
	if nmath.InCircle(a, b, c, d) <= 0 {
		return
	}
	// Flip: replace (e0,e1,pi) and (e0,e1,apex) with (pi,apex,e0)
	// and (pi,apex,e1).
	tr.tris[with] = [3]int{pi, apex, e[0]}
	tr.tris[without] = [3]int{pi, apex, e[1]}
	tr.legalize(pi, edgeKey(apex, e[0]))
	tr.legalize(pi, edgeKey(apex, e[1]))
}

// lift evaluates the surface at every UV vertex and emits the face
// mesh, oriented along the face's outward normal.
func (tr *triangulation) lift(surf geom.Surface, sameSense bool) *Mesh {
	m := &Mesh{Vertices: make([]Vertex, len(tr.pts))}
	normals := make([]md3.Vec, len(tr.pts))
	for i, uv := range tr.pts {
		p := surf.Evaluate(uv.X, uv.Y)
		n, err := surf.Normal(uv.X, uv.Y)
		if err != nil {
			n = md3.Vec{Z: 1}
		}
		if !sameSense {
			n = md3.Scale(-1, n)
		}
		normals[i] = n
		m.Vertices[i] = Vertex{Position: toF32(p), Normal: toF32(n), UV: toF32uv(uv)}
	}
	for _, t := range tr.tris {
		p0 := surf.Evaluate(tr.pts[t[0]].X, tr.pts[t[0]].Y)
		p1 := surf.Evaluate(tr.pts[t[1]].X, tr.pts[t[1]].Y)
		p2 := surf.Evaluate(tr.pts[t[2]].X, tr.pts[t[2]].Y)
		fn := md3.Cross(md3.Sub(p1, p0), md3.Sub(p2, p0))
		if md3.Norm(fn) < 1e-20 {
			continue
		}
		want := md3.Add(md3.Add(normals[t[0]], normals[t[1]]), normals[t[2]])
		if md3.Dot(fn, want) < 0 {
			t[1], t[2] = t[2], t[1]
		}
		m.Indices = append(m.Indices, uint32(t[0]), uint32(t[1]), uint32(t[2]))
	}
	return m
}
