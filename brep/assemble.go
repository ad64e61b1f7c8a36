package brep

import (
	"fmt"
	"math"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Face-soup assembly: Boolean stitching and STEP import both arrive
// with a bag of faces whose boundaries are geometric curves, not yet a
// welded incidence graph. Assemble builds the graph, welding vertices
// and edge uses within tolerance, grouping faces into shells by
// connectivity and balancing the genus bookkeeping.

// EdgeUse is one oriented traversal of a boundary curve.
type EdgeUse struct {
	Curve   geom.Curve
	Forward bool
}

// LoopSpec is an ordered closed sequence of edge uses.
type LoopSpec struct {
	Uses []EdgeUse
}

// FaceSpec describes one face of the body to assemble.
type FaceSpec struct {
	Surf      geom.Surface
	SameSense bool
	Outer     LoopSpec
	Inner     []LoopSpec
	Tags      map[string]string
}

// Assemble welds a set of face specifications into a body. Edge uses
// that traverse geometrically identical curves are paired across
// faces; unpaired uses are legal and yield a sheet body boundary.
func Assemble(faces []FaceSpec, tc nmath.ToleranceContext) (*Body, error) {
	if len(faces) == 0 {
		return NewEmptyBody(), nil
	}
	b := &Body{}
	weld := newVertexWelder(b, tc)

	type pendingUse struct {
		curve  geom.Curve
		v0, v1 VertID // welded endpoints in curve direction
		edge   EdgeID
	}

	var edges []pendingUse // one entry per distinct edge

	findEdge := func(c geom.Curve, v0, v1 VertID) EdgeID {
		for i := range edges {
			pe := &edges[i]
			if !(pe.v0 == v0 && pe.v1 == v1 || pe.v0 == v1 && pe.v1 == v0) {
				continue
			}
			pr := pe.curve.ParamRange()
			pmid := pe.curve.Evaluate(pr.Mid())
			quarter := pe.curve.Evaluate(pr.Lerp(0.25))
			_, _, dm := closestOn(c, pmid)
			_, _, dq := closestOn(c, quarter)
			if dm <= 8*tc.Linear && dq <= 8*tc.Linear {
				return pe.edge
			}
		}
		return NilID
	}

	sh := b.newShell(true)

	for fi := range faces {
		fs := &faces[fi]
		f := b.newFace(fs.Surf, fs.SameSense, sh)
		if fs.Tags != nil {
			tags := make(map[string]string, len(fs.Tags))
			for k, v := range fs.Tags {
				tags[k] = v
			}
			b.faces[f].tags = tags
		}
		buildLoop := func(ls LoopSpec) (LoopID, error) {
			l := b.newLoop(f)
			var cycle []CoedgeID
			for _, use := range ls.Uses {
				if use.Curve == nil {
					return NilID, fmt.Errorf("%w: loop use without curve", ErrPrecondition)
				}
				r := use.Curve.ParamRange()
				p0 := use.Curve.Evaluate(r.Start)
				p1 := use.Curve.Evaluate(r.End)
				v0 := weld.vertexAt(p0)
				v1 := v0
				if md3.Norm(md3.Sub(p0, p1)) > tc.Linear {
					v1 = weld.vertexAt(p1)
				}
				e := findEdge(use.Curve, v0, v1)
				if e.IsNil() {
					e = b.newEdge(use.Curve, v0, v1, tc.Linear)
					edges = append(edges, pendingUse{curve: use.Curve, v0: v0, v1: v1, edge: e})
				}
				c := b.newCoedge(e, use.Forward, l)
				if b.coedges[c].edge != e || (b.edges[e].c0 != c && b.edges[e].c1 != c) {
					return NilID, fmt.Errorf("%w: edge %d used more than twice", ErrInvariant, e)
				}
				cycle = append(cycle, c)
			}
			if len(cycle) == 0 {
				return NilID, fmt.Errorf("%w: empty loop spec", ErrPrecondition)
			}
			for i, c := range cycle {
				b.coedges[c].next = cycle[(i+1)%len(cycle)]
				b.coedges[c].prev = cycle[(i+len(cycle)-1)%len(cycle)]
			}
			b.loops[l].first = cycle[0]
			return l, nil
		}
		ol, err := buildLoop(fs.Outer)
		if err != nil {
			return nil, err
		}
		b.faces[f].outer = ol
		for _, inner := range fs.Inner {
			il, err := buildLoop(inner)
			if err != nil {
				return nil, err
			}
			b.faces[f].inner = append(b.faces[f].inner, il)
		}
	}
	// Pair the uses of every edge.
	for i := range b.edges {
		b.setPartners(EdgeID(i))
	}
	b.groupShells(sh)
	b.balanceGenus()
	if issues := b.Validate(tc); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, issues)
	}
	return b, nil
}

func closestOn(c geom.Curve, p md3.Vec) (float64, md3.Vec, float64) {
	return c.Project(p)
}

// vertexWelder merges endpoint positions within tolerance.
type vertexWelder struct {
	b  *Body
	tc nmath.ToleranceContext
	// cells maps a quantized position to candidate vertices.
	cells map[[3]int64][]VertID
}

func newVertexWelder(b *Body, tc nmath.ToleranceContext) *vertexWelder {
	return &vertexWelder{b: b, tc: tc, cells: map[[3]int64][]VertID{}}
}

func (w *vertexWelder) key(p md3.Vec) [3]int64 {
	s := 1.0 / (w.tc.Linear * 16)
	return [3]int64{int64(math.Floor(p.X * s)), int64(math.Floor(p.Y * s)), int64(math.Floor(p.Z * s))}
}

func (w *vertexWelder) vertexAt(p md3.Vec) VertID {
	k := w.key(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				kk := [3]int64{k[0] + dx, k[1] + dy, k[2] + dz}
				for _, v := range w.cells[kk] {
					if md3.Norm(md3.Sub(w.b.verts[v].pos, p)) <= 16*w.tc.Linear {
						return v
					}
				}
			}
		}
	}
	v := w.b.newVertex(p, w.tc.Linear)
	w.cells[k] = append(w.cells[k], v)
	return v
}

// groupShells splits the provisional single shell into connected
// components, marking the one with the largest bounding box as outer.
func (b *Body) groupShells(seed ShellID) {
	faceIDs := append([]FaceID(nil), b.shells[seed].faces...)
	if len(faceIDs) == 0 {
		return
	}
	// Union-find over faces connected through shared edges.
	parent := map[FaceID]FaceID{}
	var find func(FaceID) FaceID
	find = func(f FaceID) FaceID {
		if parent[f] == f {
			return f
		}
		parent[f] = find(parent[f])
		return parent[f]
	}
	for _, f := range faceIDs {
		parent[f] = f
	}
	union := func(a, bf FaceID) {
		ra, rb := find(a), find(bf)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for ei := range b.edges {
		ed := &b.edges[ei]
		if !ed.alive || ed.c0.IsNil() || ed.c1.IsNil() {
			continue
		}
		fa := b.loops[b.coedges[ed.c0].loop].face
		fb := b.loops[b.coedges[ed.c1].loop].face
		union(fa, fb)
	}
	groups := map[FaceID][]FaceID{}
	for _, f := range faceIDs {
		r := find(f)
		groups[r] = append(groups[r], f)
	}
	if len(groups) == 1 {
		return
	}
	// Largest diagonal wins the outer shell.
	var outerRoot FaceID
	bestDiag := -1.0
	diag := func(fs []FaceID) float64 {
		box := nmath.EmptyBox()
		for _, f := range fs {
			b.FaceEdges(f, func(e EdgeID) bool {
				if c := b.edges[e].curve; c != nil {
					box = box.Union(c.BoundsOf(c.ParamRange()))
				}
				return true
			})
		}
		return nmath.BoxDiagonal(box)
	}
	for root, fs := range groups {
		if d := diag(fs); d > bestDiag {
			bestDiag = d
			outerRoot = root
		}
	}
	for root, fs := range groups {
		if root == outerRoot {
			// The outer component keeps the seed shell.
			b.shells[seed].faces = fs
			b.shells[seed].outer = true
			for _, f := range fs {
				b.faces[f].shell = seed
			}
			continue
		}
		sh := b.newShell(false)
		b.shells[sh].faces = fs
		for _, f := range fs {
			b.faces[f].shell = sh
		}
	}
}

// balanceGenus sets shell genus so the Euler-Poincaré relation holds;
// the handle count is derived, not observed, during assembly.
func (b *Body) balanceGenus() {
	v := b.VertexCount()
	e := b.EdgeCount()
	f := b.FaceCount()
	l := b.LoopCount()
	s := b.ShellCount()
	if s == 0 {
		return
	}
	// V - E + F - (L-F) - 2(S-H) = 0  =>  H = S - (V-E+F-(L-F))/2
	sum := v - e + f - (l - f)
	h := s - sum/2
	for i := range b.shells {
		if b.shells[i].alive {
			b.shells[i].genus = 0
		}
	}
	if h > 0 {
		// Attribute the handles to the outer shell.
		for i := range b.shells {
			if b.shells[i].alive && b.shells[i].outer {
				b.shells[i].genus = h
				break
			}
		}
	}
}
