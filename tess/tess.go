// Package tess lowers B-Rep bodies into triangle meshes under chord
// and angle tolerances. Each face is sampled from its boundary edge
// polylines, triangulated in the surface parameter domain and refined
// until both tolerances hold; shared edges reuse one polyline per edge
// so the assembled mesh is watertight. The tessellator is pure: it
// reads the body and never mutates it.
//
// Output meshes are single precision, the display convention.
package tess

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/md2"
	"github.com/soypat/geometry/md3"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// ErrCancelled reports cooperative cancellation between faces.
var ErrCancelled = errors.New("tess: cancelled")

// Vertex is one mesh sample: position, surface normal and the surface
// parameters it was lifted from.
type Vertex struct {
	Position ms3.Vec
	Normal   ms3.Vec
	UV       ms2.Vec
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// Triangles expands the index buffer into triangle values.
func (m *Mesh) Triangles() []ms3.Triangle {
	out := make([]ms3.Triangle, 0, m.TriangleCount())
	for i := 0; i+2 < len(m.Indices); i += 3 {
		out = append(out, ms3.Triangle{
			m.Vertices[m.Indices[i]].Position,
			m.Vertices[m.Indices[i+1]].Position,
			m.Vertices[m.Indices[i+2]].Position,
		})
	}
	return out
}

// Options configures a tessellation pass.
type Options struct {
	// ChordTol is the maximum distance between the mesh and the
	// surface.
	ChordTol float64
	// AngleTol is the maximum angle between the surface normals at a
	// triangle's corners, radians.
	AngleTol float64
	// Workers caps the face-parallel worker pool; 0 uses GOMAXPROCS.
	Workers int
	// Ctx is polled between faces for cancellation.
	Ctx context.Context
}

// DefaultOptions returns a display-quality tessellation setup.
func DefaultOptions() Options {
	return Options{ChordTol: 1e-3, AngleTol: 0.35}
}

// Tessellate produces a watertight mesh of the whole body. Faces are
// processed by a worker pool with per-face buffers merged at the end.
func Tessellate(body *brep.Body, opt Options) (*Mesh, error) {
	if body == nil || body.Released() {
		return nil, fmt.Errorf("tess: released body")
	}
	if opt.ChordTol <= 0 || opt.AngleTol <= 0 {
		return nil, fmt.Errorf("tess: tolerances must be positive")
	}
	// Shared edge polylines: one per edge so neighbors agree.
	polylines := map[brep.EdgeID][]md3.Vec{}
	body.Edges(func(e brep.EdgeID) bool {
		c, err := body.EdgeCurve(e)
		if err != nil || c == nil {
			return true
		}
		polylines[e] = sampleCurve(c, opt.ChordTol)
		return true
	})
	var faces []brep.FaceID
	body.Faces(func(f brep.FaceID) bool { faces = append(faces, f); return true })

	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(faces) {
		workers = len(faces)
	}
	if workers < 1 {
		workers = 1
	}
	type faceResult struct {
		idx  int
		mesh *Mesh
		err  error
	}
	results := make([]faceResult, len(faces))
	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				m, err := tessellateFace(body, faces[i], polylines, opt)
				results[i] = faceResult{idx: i, mesh: m, err: err}
			}
		}()
	}
	cancelled := false
	for i := range faces {
		if opt.Ctx != nil {
			select {
			case <-opt.Ctx.Done():
				cancelled = true
			default:
			}
			if cancelled {
				break
			}
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if cancelled {
		return nil, ErrCancelled
	}
	out := &Mesh{}
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.mesh == nil {
			continue
		}
		base := uint32(len(out.Vertices))
		out.Vertices = append(out.Vertices, r.mesh.Vertices...)
		for _, ix := range r.mesh.Indices {
			out.Indices = append(out.Indices, base+ix)
		}
	}
	stitch(out, opt.ChordTol)
	return out, nil
}

// sampleCurve returns a polyline within chord tolerance of the curve,
// analytic for lines and arcs, adaptive bisection otherwise.
func sampleCurve(c geom.Curve, chordTol float64) []md3.Vec {
	r := c.ParamRange()
	switch cc := c.(type) {
	case *geom.Line:
		return []md3.Vec{cc.Evaluate(r.Start), cc.Evaluate(r.End)}
	case *geom.Arc:
		// Chord error of an arc segment of angle θ is r(1-cos(θ/2)).
		maxStep := 2 * math.Acos(nmath.Clamp(1-chordTol/cc.Radius(), -1, 1))
		if maxStep <= 0 || math.IsNaN(maxStep) {
			maxStep = math.Pi / 8
		}
		n := int(math.Ceil(r.Length()/maxStep)) + 1
		if n < 4 {
			n = 4
		}
		out := make([]md3.Vec, n+1)
		for i := 0; i <= n; i++ {
			out[i] = cc.Evaluate(r.Lerp(float64(i) / float64(n)))
		}
		return out
	default:
		pts := []md3.Vec{c.Evaluate(r.Start)}
		var bisect func(t0, t1 float64, p0, p1 md3.Vec, depth int)
		bisect = func(t0, t1 float64, p0, p1 md3.Vec, depth int) {
			tm := (t0 + t1) / 2
			pm := c.Evaluate(tm)
			chordMid := md3.Scale(0.5, md3.Add(p0, p1))
			if depth < 12 && md3.Norm(md3.Sub(pm, chordMid)) > chordTol {
				bisect(t0, tm, p0, pm, depth+1)
				bisect(tm, t1, pm, p1, depth+1)
				return
			}
			pts = append(pts, pm, p1)
		}
		p0 := c.Evaluate(r.Start)
		p1 := c.Evaluate(r.End)
		bisect(r.Start, r.End, p0, p1, 0)
		return pts
	}
}

// stitch welds vertices that coincide within tolerance so shared
// edges carry identical vertices and the mesh is watertight.
func stitch(m *Mesh, tol float64) {
	if len(m.Vertices) == 0 {
		return
	}
	weldTol := math32.Max(float32(tol)*0.5, 1e-7)
	type key [3]int32
	quant := func(p ms3.Vec) key {
		s := 1 / weldTol
		return key{
			int32(math32.Floor(p.X * s)),
			int32(math32.Floor(p.Y * s)),
			int32(math32.Floor(p.Z * s)),
		}
	}
	cells := map[key][]uint32{}
	remap := make([]uint32, len(m.Vertices))
	var verts []Vertex
	for i, v := range m.Vertices {
		k := quant(v.Position)
		merged := false
		for dx := int32(-1); dx <= 1 && !merged; dx++ {
			for dy := int32(-1); dy <= 1 && !merged; dy++ {
				for dz := int32(-1); dz <= 1 && !merged; dz++ {
					kk := key{k[0] + dx, k[1] + dy, k[2] + dz}
					for _, j := range cells[kk] {
						d := ms3.Sub(verts[j].Position, v.Position)
						if math32.Sqrt(d.X*d.X+d.Y*d.Y+d.Z*d.Z) <= weldTol {
							remap[i] = j
							merged = true
							break
						}
					}
				}
			}
		}
		if !merged {
			id := uint32(len(verts))
			verts = append(verts, v)
			cells[k] = append(cells[k], id)
			remap[i] = id
		}
	}
	for i, ix := range m.Indices {
		m.Indices[i] = remap[ix]
	}
	m.Vertices = verts
	// Drop triangles collapsed by welding.
	var out []uint32
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		if a != b && b != c && a != c {
			out = append(out, a, b, c)
		}
	}
	m.Indices = out
}

// Bounds returns the mesh bounding box.
func (m *Mesh) Bounds() ms3.Box {
	if len(m.Vertices) == 0 {
		return ms3.Box{}
	}
	bb := ms3.Box{Min: m.Vertices[0].Position, Max: m.Vertices[0].Position}
	for _, v := range m.Vertices[1:] {
		bb.Min = ms3.MinElem(bb.Min, v.Position)
		bb.Max = ms3.MaxElem(bb.Max, v.Position)
	}
	return bb
}

// SortIndicesForLocality reorders triangles by their first vertex to
// improve vertex-cache behavior in consumers.
func (m *Mesh) SortIndicesForLocality() {
	type tri [3]uint32
	tris := make([]tri, 0, m.TriangleCount())
	for i := 0; i+2 < len(m.Indices); i += 3 {
		tris = append(tris, tri{m.Indices[i], m.Indices[i+1], m.Indices[i+2]})
	}
	sort.Slice(tris, func(i, j int) bool { return tris[i][0] < tris[j][0] })
	m.Indices = m.Indices[:0]
	for _, t := range tris {
		m.Indices = append(m.Indices, t[0], t[1], t[2])
	}
}

func toF32(v md3.Vec) ms3.Vec {
	return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

func toF32uv(v md2.Vec) ms2.Vec {
	return ms2.Vec{X: float32(v.X), Y: float32(v.Y)}
}
