// Package brep holds the boundary representation topology: the
// vertex/edge/coedge/loop/face/shell incidence graph, the Euler
// operators that are its only legal mutators, primitive constructors
// and the invariant self-test.
//
// The body owns index-addressed arenas for every entity kind; all
// intra-topology references are indices into those arenas. Indices
// double as the stable entity identities: a killed entity's slot is
// never reused within the body's lifetime, so identities of surviving
// entities persist across operations. Geometry (curves and surfaces)
// is shared-value and immutable; entities hold interface references
// into the geometry pool.
//
// Higher layers never write topology fields directly. They mutate
// through the Euler operators and the documented compound builders,
// all of which verify their preconditions and leave the body unchanged
// on failure.
package brep

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Failure taxonomy of the topology layer.
var (
	// ErrPrecondition reports Euler operator inputs that do not
	// satisfy the operator's contract.
	ErrPrecondition = errors.New("brep: operator precondition violated")
	// ErrInvariant reports a broken invariant detected by the
	// self-test after a compound operation.
	ErrInvariant = errors.New("brep: topology invariant violated")
	// ErrDeadEntity reports an identity that refers to a killed or
	// out-of-range entity.
	ErrDeadEntity = errors.New("brep: dead or invalid entity reference")
)

// Typed entity identities. An identity is an arena index; negative
// means nil. Identities are unique within their body and never reused.
type (
	VertID   int32
	EdgeID   int32
	CoedgeID int32
	LoopID   int32
	FaceID   int32
	ShellID  int32
)

// NilID is the invalid value for every identity type.
const NilID = -1

// IsNil reports an invalid identity.
func (id VertID) IsNil() bool   { return id < 0 }
func (id EdgeID) IsNil() bool   { return id < 0 }
func (id CoedgeID) IsNil() bool { return id < 0 }
func (id LoopID) IsNil() bool   { return id < 0 }
func (id FaceID) IsNil() bool   { return id < 0 }
func (id ShellID) IsNil() bool  { return id < 0 }

type vertex struct {
	pos   md3.Vec
	tol   float64
	edges []EdgeID // vertex-edge index, unordered
	alive bool
}

type edge struct {
	curve  geom.Curve
	v0, v1 VertID // start and end along the curve; equal for closed edges
	c0, c1 CoedgeID
	tol    float64
	alive  bool
}

type coedge struct {
	edge    EdgeID
	forward bool // sense relative to the edge curve
	next    CoedgeID
	prev    CoedgeID
	partner CoedgeID
	loop    LoopID
	alive   bool
}

type loop struct {
	face  FaceID
	first CoedgeID // nil for the degenerate loop made by MVFS
	// anchor keeps the vertex of a degenerate loop so MEV can grow it.
	anchor VertID
	alive  bool
}

type face struct {
	surf geom.Surface
	// sameSense is true when the face normal agrees with the
	// surface's parametric normal.
	sameSense bool
	outer     LoopID
	inner     []LoopID
	shell     ShellID
	alive     bool
	tags      map[string]string
}

type shell struct {
	faces []FaceID
	outer bool
	// genus counts through-holes contributed by KFMRH.
	genus int
	alive bool
}

// Body is a solid, sheet or wire body owning its topology arenas.
type Body struct {
	verts   []vertex
	edges   []edge
	coedges []coedge
	loops   []loop
	faces   []face
	shells  []shell
	// released marks a body whose identities are no longer valid.
	released bool
}

// NewEmptyBody returns the distinguished empty body, the result of
// Boolean operations with empty outcome.
func NewEmptyBody() *Body { return &Body{} }

// IsEmpty reports whether the body has no live shells.
func (b *Body) IsEmpty() bool {
	for i := range b.shells {
		if b.shells[i].alive {
			return false
		}
	}
	return true
}

// Release invalidates the body and all its identities. Geometry shared
// with other bodies stays alive through their references.
func (b *Body) Release() {
	b.verts, b.edges, b.coedges = nil, nil, nil
	b.loops, b.faces, b.shells = nil, nil, nil
	b.released = true
}

// Released reports whether Release was called.
func (b *Body) Released() bool { return b.released }

func (b *Body) vert(id VertID) (*vertex, error) {
	if id < 0 || int(id) >= len(b.verts) || !b.verts[id].alive {
		return nil, fmt.Errorf("%w: vertex %d", ErrDeadEntity, id)
	}
	return &b.verts[id], nil
}

func (b *Body) edge(id EdgeID) (*edge, error) {
	if id < 0 || int(id) >= len(b.edges) || !b.edges[id].alive {
		return nil, fmt.Errorf("%w: edge %d", ErrDeadEntity, id)
	}
	return &b.edges[id], nil
}

func (b *Body) coedge(id CoedgeID) (*coedge, error) {
	if id < 0 || int(id) >= len(b.coedges) || !b.coedges[id].alive {
		return nil, fmt.Errorf("%w: coedge %d", ErrDeadEntity, id)
	}
	return &b.coedges[id], nil
}

func (b *Body) loop(id LoopID) (*loop, error) {
	if id < 0 || int(id) >= len(b.loops) || !b.loops[id].alive {
		return nil, fmt.Errorf("%w: loop %d", ErrDeadEntity, id)
	}
	return &b.loops[id], nil
}

func (b *Body) face(id FaceID) (*face, error) {
	if id < 0 || int(id) >= len(b.faces) || !b.faces[id].alive {
		return nil, fmt.Errorf("%w: face %d", ErrDeadEntity, id)
	}
	return &b.faces[id], nil
}

func (b *Body) shell(id ShellID) (*shell, error) {
	if id < 0 || int(id) >= len(b.shells) || !b.shells[id].alive {
		return nil, fmt.Errorf("%w: shell %d", ErrDeadEntity, id)
	}
	return &b.shells[id], nil
}

// Read-only interrogation. Iteration callbacks return false to stop.

// Shells visits every live shell.
func (b *Body) Shells(fn func(ShellID) bool) {
	for i := range b.shells {
		if b.shells[i].alive && !fn(ShellID(i)) {
			return
		}
	}
}

// Faces visits every live face.
func (b *Body) Faces(fn func(FaceID) bool) {
	for i := range b.faces {
		if b.faces[i].alive && !fn(FaceID(i)) {
			return
		}
	}
}

// Edges visits every live edge.
func (b *Body) Edges(fn func(EdgeID) bool) {
	for i := range b.edges {
		if b.edges[i].alive && !fn(EdgeID(i)) {
			return
		}
	}
}

// Vertices visits every live vertex.
func (b *Body) Vertices(fn func(VertID) bool) {
	for i := range b.verts {
		if b.verts[i].alive && !fn(VertID(i)) {
			return
		}
	}
}

// FaceCount returns the number of live faces.
func (b *Body) FaceCount() int {
	n := 0
	b.Faces(func(FaceID) bool { n++; return true })
	return n
}

// EdgeCount returns the number of live edges.
func (b *Body) EdgeCount() int {
	n := 0
	b.Edges(func(EdgeID) bool { n++; return true })
	return n
}

// VertexCount returns the number of live vertices.
func (b *Body) VertexCount() int {
	n := 0
	b.Vertices(func(VertID) bool { n++; return true })
	return n
}

// LoopCount returns the number of live loops.
func (b *Body) LoopCount() int {
	n := 0
	for i := range b.loops {
		if b.loops[i].alive {
			n++
		}
	}
	return n
}

// ShellCount returns the number of live shells.
func (b *Body) ShellCount() int {
	n := 0
	b.Shells(func(ShellID) bool { n++; return true })
	return n
}

// Genus returns the total through-hole count over all shells.
func (b *Body) Genus() int {
	g := 0
	for i := range b.shells {
		if b.shells[i].alive {
			g += b.shells[i].genus
		}
	}
	return g
}

// VertexPosition returns the position of a vertex.
func (b *Body) VertexPosition(id VertID) (md3.Vec, error) {
	v, err := b.vert(id)
	if err != nil {
		return md3.Vec{}, err
	}
	return v.pos, nil
}

// VertexTolerance returns the per-vertex tolerance radius.
func (b *Body) VertexTolerance(id VertID) (float64, error) {
	v, err := b.vert(id)
	if err != nil {
		return 0, err
	}
	return v.tol, nil
}

// VertexEdges visits the edges incident to a vertex.
func (b *Body) VertexEdges(id VertID, fn func(EdgeID) bool) error {
	v, err := b.vert(id)
	if err != nil {
		return err
	}
	for _, e := range v.edges {
		if b.edges[e].alive && !fn(e) {
			return nil
		}
	}
	return nil
}

// EdgeCurve returns the curve supporting an edge.
func (b *Body) EdgeCurve(id EdgeID) (geom.Curve, error) {
	e, err := b.edge(id)
	if err != nil {
		return nil, err
	}
	return e.curve, nil
}

// EdgeVertices returns the start and end vertices of an edge along its
// curve direction. They are equal for a closed edge.
func (b *Body) EdgeVertices(id EdgeID) (VertID, VertID, error) {
	e, err := b.edge(id)
	if err != nil {
		return NilID, NilID, err
	}
	return e.v0, e.v1, nil
}

// EdgeCoedges returns the one or two uses of an edge. The second is
// nil on a sheet-body boundary.
func (b *Body) EdgeCoedges(id EdgeID) (CoedgeID, CoedgeID, error) {
	e, err := b.edge(id)
	if err != nil {
		return NilID, NilID, err
	}
	return e.c0, e.c1, nil
}

// EdgeFaces returns the faces on either side of an edge.
func (b *Body) EdgeFaces(id EdgeID) (FaceID, FaceID, error) {
	e, err := b.edge(id)
	if err != nil {
		return NilID, NilID, err
	}
	fa, fb := FaceID(NilID), FaceID(NilID)
	if !e.c0.IsNil() {
		fa = b.loops[b.coedges[e.c0].loop].face
	}
	if !e.c1.IsNil() {
		fb = b.loops[b.coedges[e.c1].loop].face
	}
	return fa, fb, nil
}

// CoedgeEdge returns the edge a coedge uses and its sense.
func (b *Body) CoedgeEdge(id CoedgeID) (EdgeID, bool, error) {
	c, err := b.coedge(id)
	if err != nil {
		return NilID, false, err
	}
	return c.edge, c.forward, nil
}

// CoedgeNext returns the next coedge in the loop cycle.
func (b *Body) CoedgeNext(id CoedgeID) (CoedgeID, error) {
	c, err := b.coedge(id)
	if err != nil {
		return NilID, err
	}
	return c.next, nil
}

// CoedgePrev returns the previous coedge in the loop cycle.
func (b *Body) CoedgePrev(id CoedgeID) (CoedgeID, error) {
	c, err := b.coedge(id)
	if err != nil {
		return NilID, err
	}
	return c.prev, nil
}

// CoedgePartner returns the use of the same edge on the neighboring
// face, or nil on a sheet boundary.
func (b *Body) CoedgePartner(id CoedgeID) (CoedgeID, error) {
	c, err := b.coedge(id)
	if err != nil {
		return NilID, err
	}
	return c.partner, nil
}

// CoedgeLoop returns the loop owning a coedge.
func (b *Body) CoedgeLoop(id CoedgeID) (LoopID, error) {
	c, err := b.coedge(id)
	if err != nil {
		return NilID, err
	}
	return c.loop, nil
}

// CoedgeOrigin returns the vertex a coedge starts at.
func (b *Body) CoedgeOrigin(id CoedgeID) (VertID, error) {
	c, err := b.coedge(id)
	if err != nil {
		return NilID, err
	}
	e := &b.edges[c.edge]
	if c.forward {
		return e.v0, nil
	}
	return e.v1, nil
}

// LoopFace returns the face owning a loop.
func (b *Body) LoopFace(id LoopID) (FaceID, error) {
	l, err := b.loop(id)
	if err != nil {
		return NilID, err
	}
	return l.face, nil
}

// LoopCoedges visits the loop cycle starting at its first coedge.
func (b *Body) LoopCoedges(id LoopID, fn func(CoedgeID) bool) error {
	l, err := b.loop(id)
	if err != nil {
		return err
	}
	if l.first.IsNil() {
		return nil
	}
	c := l.first
	for {
		if !fn(c) {
			return nil
		}
		c = b.coedges[c].next
		if c == l.first {
			return nil
		}
	}
}

// FaceSurface returns the surface supporting a face.
func (b *Body) FaceSurface(id FaceID) (geom.Surface, error) {
	f, err := b.face(id)
	if err != nil {
		return nil, err
	}
	return f.surf, nil
}

// FaceSameSense reports whether the face normal agrees with the
// surface normal.
func (b *Body) FaceSameSense(id FaceID) (bool, error) {
	f, err := b.face(id)
	if err != nil {
		return false, err
	}
	return f.sameSense, nil
}

// FaceOuterLoop returns the outer loop of a face.
func (b *Body) FaceOuterLoop(id FaceID) (LoopID, error) {
	f, err := b.face(id)
	if err != nil {
		return NilID, err
	}
	return f.outer, nil
}

// FaceInnerLoops visits the inner loops (holes) of a face.
func (b *Body) FaceInnerLoops(id FaceID, fn func(LoopID) bool) error {
	f, err := b.face(id)
	if err != nil {
		return err
	}
	for _, l := range f.inner {
		if b.loops[l].alive && !fn(l) {
			return nil
		}
	}
	return nil
}

// FaceShell returns the shell owning a face.
func (b *Body) FaceShell(id FaceID) (ShellID, error) {
	f, err := b.face(id)
	if err != nil {
		return NilID, err
	}
	return f.shell, nil
}

// FaceEdges visits each edge used by the face exactly once.
func (b *Body) FaceEdges(id FaceID, fn func(EdgeID) bool) error {
	f, err := b.face(id)
	if err != nil {
		return err
	}
	seen := map[EdgeID]bool{}
	visit := func(l LoopID) bool {
		cont := true
		b.LoopCoedges(l, func(c CoedgeID) bool {
			e := b.coedges[c].edge
			if !seen[e] {
				seen[e] = true
				if !fn(e) {
					cont = false
					return false
				}
			}
			return true
		})
		return cont
	}
	if !visit(f.outer) {
		return nil
	}
	for _, l := range f.inner {
		if b.loops[l].alive && !visit(l) {
			return nil
		}
	}
	return nil
}

// ShellFaces visits the faces of a shell.
func (b *Body) ShellFaces(id ShellID, fn func(FaceID) bool) error {
	s, err := b.shell(id)
	if err != nil {
		return err
	}
	for _, f := range s.faces {
		if b.faces[f].alive && !fn(f) {
			return nil
		}
	}
	return nil
}

// ShellIsOuter reports whether the shell is the body's outer shell
// rather than an interior void.
func (b *Body) ShellIsOuter(id ShellID) (bool, error) {
	s, err := b.shell(id)
	if err != nil {
		return false, err
	}
	return s.outer, nil
}

// SetFaceTag attaches a string attribute to a face. Tags survive deep
// copies and are used by feature recognition.
func (b *Body) SetFaceTag(id FaceID, key, value string) error {
	f, err := b.face(id)
	if err != nil {
		return err
	}
	if f.tags == nil {
		f.tags = map[string]string{}
	}
	f.tags[key] = value
	return nil
}

// FaceTag returns a face attribute and whether it is present.
func (b *Body) FaceTag(id FaceID, key string) (string, bool) {
	f, err := b.face(id)
	if err != nil {
		return "", false
	}
	v, ok := f.tags[key]
	return v, ok
}

// BoundingBox returns the axis aligned bounding box over all edge
// curves and vertices.
func (b *Body) BoundingBox() md3.Box {
	box := nmath.EmptyBox()
	b.Vertices(func(v VertID) bool {
		box = nmath.ExtendBox(box, b.verts[v].pos)
		return true
	})
	b.Edges(func(e EdgeID) bool {
		ed := &b.edges[e]
		if ed.curve != nil {
			box = box.Union(ed.curve.BoundsOf(ed.curve.ParamRange()))
		}
		return true
	})
	return box
}

// arena allocation helpers; slots are never reused.

func (b *Body) newVertex(pos md3.Vec, tol float64) VertID {
	b.verts = append(b.verts, vertex{pos: pos, tol: tol, alive: true})
	return VertID(len(b.verts) - 1)
}

func (b *Body) newEdge(c geom.Curve, v0, v1 VertID, tol float64) EdgeID {
	b.edges = append(b.edges, edge{curve: c, v0: v0, v1: v1, c0: NilID, c1: NilID, tol: tol, alive: true})
	id := EdgeID(len(b.edges) - 1)
	b.verts[v0].edges = append(b.verts[v0].edges, id)
	if v1 != v0 {
		b.verts[v1].edges = append(b.verts[v1].edges, id)
	}
	return id
}

func (b *Body) newCoedge(e EdgeID, forward bool, lp LoopID) CoedgeID {
	b.coedges = append(b.coedges, coedge{
		edge: e, forward: forward,
		next: NilID, prev: NilID, partner: NilID, loop: lp,
		alive: true,
	})
	id := CoedgeID(len(b.coedges) - 1)
	ed := &b.edges[e]
	if ed.c0.IsNil() {
		ed.c0 = id
	} else if ed.c1.IsNil() {
		ed.c1 = id
	}
	return id
}

func (b *Body) newLoop(f FaceID) LoopID {
	b.loops = append(b.loops, loop{face: f, first: NilID, anchor: NilID, alive: true})
	return LoopID(len(b.loops) - 1)
}

func (b *Body) newFace(surf geom.Surface, sameSense bool, sh ShellID) FaceID {
	b.faces = append(b.faces, face{surf: surf, sameSense: sameSense, outer: NilID, shell: sh, alive: true})
	id := FaceID(len(b.faces) - 1)
	b.shells[sh].faces = append(b.shells[sh].faces, id)
	return id
}

func (b *Body) newShell(outer bool) ShellID {
	b.shells = append(b.shells, shell{outer: outer, alive: true})
	return ShellID(len(b.shells) - 1)
}
