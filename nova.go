// Package nova is the procedural facade of the B-Rep modeling kernel:
// lifecycle, opaque body handles, primitive constructors, Boolean and
// feature operations, direct editing, tessellation and interchange.
//
// Every fallible call returns an error whose kind is recoverable with
// [KindOf]; a last-error shim is kept for embedders that cannot thread
// rich error values across a flat ABI.
package nova

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/direct"
	"github.com/novacad/nova/exchange"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
	"github.com/novacad/nova/ops"
	"github.com/novacad/nova/tess"
)

// Version is the kernel's semantic version.
const Version = "0.3.0"

// ErrorKind classifies every failure the kernel surfaces.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidHandle
	KindInvalidParameter
	KindPreconditionViolated
	KindGeometryError
	KindTopologyError
	KindToleranceExhausted
	KindUnsupportedGeometry
	KindCancelled
	KindNotImplemented
)

// ErrAlreadyInitialized reports a second Initialize without Shutdown.
var ErrAlreadyInitialized = errors.New("nova: already initialized")

// ErrInvalidHandle reports a dead or foreign body handle.
var ErrInvalidHandle = errors.New("nova: invalid body handle")

// KindOf maps any kernel error onto the taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidHandle):
		return KindInvalidHandle
	case errors.Is(err, ops.ErrParameter), errors.Is(err, brep.ErrParameter),
		errors.Is(err, geom.ErrInvalidGeometry):
		return KindInvalidParameter
	case errors.Is(err, brep.ErrPrecondition):
		return KindPreconditionViolated
	case errors.Is(err, ops.ErrTolerance):
		return KindToleranceExhausted
	case errors.Is(err, ops.ErrUnsupported):
		return KindUnsupportedGeometry
	case errors.Is(err, ops.ErrCancelled), errors.Is(err, tess.ErrCancelled):
		return KindCancelled
	case errors.Is(err, ops.ErrTopology), errors.Is(err, brep.ErrInvariant),
		errors.Is(err, exchange.ErrTopologyInconsistent):
		return KindTopologyError
	case errors.Is(err, ops.ErrGeometry), errors.Is(err, geom.ErrNonConvergent),
		errors.Is(err, geom.ErrDegenerate), errors.Is(err, geom.ErrTangentialOnly):
		return KindGeometryError
	}
	return KindUnknown
}

// kernelState is the process-wide context established by Initialize.
type kernelState struct {
	mu          sync.Mutex
	initialized bool
	tol         nmath.ToleranceContext
	lastErr     error
}

var state kernelState

// Initialize establishes the global tolerance context. A second call
// without Shutdown returns [ErrAlreadyInitialized].
func Initialize(tol nmath.ToleranceContext) error {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.initialized {
		return ErrAlreadyInitialized
	}
	if !tol.Valid() {
		tol = nmath.DefaultTolerance()
	}
	state.initialized = true
	state.tol = tol
	return nil
}

// Shutdown releases the global context. It is idempotent.
func Shutdown() {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.initialized = false
	state.lastErr = nil
}

// SetTolerance replaces the global tolerance context between
// operations.
func SetTolerance(tol nmath.ToleranceContext) error {
	if !tol.Valid() {
		return record(fmt.Errorf("%w: invalid tolerance context", ops.ErrParameter))
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.tol = tol
	return nil
}

// GetTolerance returns the global tolerance context.
func GetTolerance() nmath.ToleranceContext {
	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.initialized {
		return nmath.DefaultTolerance()
	}
	return state.tol
}

// LastError returns the most recent recorded failure.
func LastError() error {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.lastErr
}

// ClearError resets the last-error shim.
func ClearError() {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.lastErr = nil
}

func record(err error) error {
	if err != nil {
		state.mu.Lock()
		state.lastErr = err
		state.mu.Unlock()
	}
	return err
}

func options() ops.Options {
	return ops.Options{Tol: GetTolerance()}
}

// Body is the opaque handle of a solid, sheet or wire body.
type Body struct {
	b *brep.Body
}

func wrap(b *brep.Body, err error) (*Body, error) {
	if err != nil {
		return nil, record(err)
	}
	return &Body{b: b}, nil
}

func (b *Body) live() error {
	if b == nil || b.b == nil || b.b.Released() {
		return record(ErrInvalidHandle)
	}
	return nil
}

// Raw exposes the underlying topology for the packages layered above
// the facade (tessellation, interchange, direct editing).
func (b *Body) Raw() *brep.Body { return b.b }

// Release destroys the body and all entity identities in it.
func (b *Body) Release() {
	if b != nil && b.b != nil {
		b.b.Release()
		b.b = nil
	}
}

// MakeBox constructs a closed box centered at the origin.
func MakeBox(w, h, d float64) (*Body, error) { return wrap(brep.MakeBox(w, h, d)) }

// MakeCylinder constructs a closed Z-axis cylinder centered at the
// origin.
func MakeCylinder(r, h float64) (*Body, error) { return wrap(brep.MakeCylinder(r, h)) }

// MakeSphere constructs a sphere centered at the origin.
func MakeSphere(r float64) (*Body, error) { return wrap(brep.MakeSphere(r)) }

// MakeCone constructs a closed cone frustum centered at the origin.
func MakeCone(r1, r2, h float64) (*Body, error) { return wrap(brep.MakeCone(r1, r2, h)) }

// MakeTorus constructs a Z-axis torus centered at the origin.
func MakeTorus(major, minor float64) (*Body, error) { return wrap(brep.MakeTorus(major, minor)) }

// BoundingBox returns the body's axis aligned bounds.
func (b *Body) BoundingBox() (md3.Box, error) {
	if err := b.live(); err != nil {
		return md3.Box{}, err
	}
	return b.b.BoundingBox(), nil
}

// Copy clones the body, preserving entity identities on the clone.
func (b *Body) Copy() (*Body, error) {
	if err := b.live(); err != nil {
		return nil, err
	}
	return &Body{b: b.b.DeepCopy()}, nil
}

// Transform rigidly moves the body in place.
func (b *Body) Transform(tf nmath.Rigid) error {
	if err := b.live(); err != nil {
		return err
	}
	b.b.Transform(tf)
	return nil
}

// Volume integrates the enclosed volume.
func (b *Body) Volume() (float64, error) {
	if err := b.live(); err != nil {
		return 0, err
	}
	return b.b.Volume(), nil
}

// Validate runs the topology self-test, returning found violations.
func (b *Body) Validate() ([]string, error) {
	if err := b.live(); err != nil {
		return nil, err
	}
	return b.b.Validate(GetTolerance()), nil
}

// Faces visits the body's faces.
func (b *Body) Faces(fn func(brep.FaceID) bool) error {
	if err := b.live(); err != nil {
		return err
	}
	b.b.Faces(fn)
	return nil
}

// Edges visits the body's edges.
func (b *Body) Edges(fn func(brep.EdgeID) bool) error {
	if err := b.live(); err != nil {
		return err
	}
	b.b.Edges(fn)
	return nil
}

// Vertices visits the body's vertices.
func (b *Body) Vertices(fn func(brep.VertID) bool) error {
	if err := b.live(); err != nil {
		return err
	}
	b.b.Vertices(fn)
	return nil
}

// binaryOp wraps a Boolean: inputs are consumed on success.
func binaryOp(a, b *Body, op func(x, y *brep.Body, o ops.Options) (*brep.Body, error)) (*Body, error) {
	if err := a.live(); err != nil {
		return nil, err
	}
	if err := b.live(); err != nil {
		return nil, err
	}
	out, err := op(a.b, b.b, options())
	if err != nil {
		return nil, record(err)
	}
	a.Release()
	b.Release()
	return &Body{b: out}, nil
}

// Unite returns the regularized union, consuming both inputs.
func Unite(a, b *Body) (*Body, error) { return binaryOp(a, b, ops.Unite) }

// Subtract returns the regularized difference, consuming both inputs.
func Subtract(a, b *Body) (*Body, error) { return binaryOp(a, b, ops.Subtract) }

// Intersect returns the regularized intersection, consuming both
// inputs.
func Intersect(a, b *Body) (*Body, error) { return binaryOp(a, b, ops.Intersect) }

// unaryOp wraps a feature op: the input is consumed on success.
func unaryOp(b *Body, op func(x *brep.Body, o ops.Options) (*brep.Body, error)) (*Body, error) {
	if err := b.live(); err != nil {
		return nil, err
	}
	out, err := op(b.b, options())
	if err != nil {
		return nil, record(err)
	}
	b.Release()
	return &Body{b: out}, nil
}

// Fillet blends the selected edges with a constant radius.
func Fillet(b *Body, edges []brep.EdgeID, radius float64) (*Body, error) {
	return unaryOp(b, func(x *brep.Body, o ops.Options) (*brep.Body, error) {
		return ops.Fillet(x, edges, radius, o)
	})
}

// Chamfer bevels the selected edges with two setback distances.
func Chamfer(b *Body, edges []brep.EdgeID, d1, d2 float64) (*Body, error) {
	return unaryOp(b, func(x *brep.Body, o ops.Options) (*brep.Body, error) {
		return ops.Chamfer(x, edges, d1, d2, o)
	})
}

// Shell hollows the body, opening the designated faces.
func Shell(b *Body, open []brep.FaceID, thickness float64) (*Body, error) {
	return unaryOp(b, func(x *brep.Body, o ops.Options) (*brep.Body, error) {
		return ops.Shell(x, open, thickness, o)
	})
}

// Extrude sweeps a profile into a solid.
func Extrude(p ops.Profile, dir md3.Vec, distance float64) (*Body, error) {
	out, err := ops.Extrude(p, dir, distance, options())
	return wrap(out, err)
}

// Revolve sweeps a profile about an axis.
func Revolve(p ops.Profile, origin, axis md3.Vec, angle float64) (*Body, error) {
	out, err := ops.Revolve(p, origin, axis, angle, options())
	return wrap(out, err)
}

// Sweep moves a profile along a path.
func Sweep(p ops.Profile, path geom.Curve, sw ops.SweepOptions) (*Body, error) {
	out, err := ops.Sweep(p, path, sw, options())
	return wrap(out, err)
}

// Loft interpolates an ordered profile stack.
func Loft(profiles []ops.Profile) (*Body, error) {
	out, err := ops.Loft(profiles, options())
	return wrap(out, err)
}

// BeginEdit opens a direct-editing session on the body.
func BeginEdit(b *Body) (*direct.Session, error) {
	if err := b.live(); err != nil {
		return nil, err
	}
	s, err := direct.Begin(b.b, options())
	if err != nil {
		return nil, record(err)
	}
	return s, nil
}

// Tessellate lowers the body into a display mesh.
func Tessellate(b *Body, chordTol, angleTol float64) (*tess.Mesh, error) {
	if err := b.live(); err != nil {
		return nil, err
	}
	m, err := tess.Tessellate(b.b, tess.Options{ChordTol: chordTol, AngleTol: angleTol})
	if err != nil {
		return nil, record(err)
	}
	return m, nil
}

// ImportSTEP loads the first solid of a STEP file.
func ImportSTEP(path string) (*Body, error) {
	r := &exchange.StepReader{Tol: GetTolerance()}
	return wrap(r.ReadFile(path))
}

// ExportSTEP writes the body as AP214 STEP.
func ExportSTEP(b *Body, path string) error {
	if err := b.live(); err != nil {
		return err
	}
	w := &exchange.StepWriter{Schema: exchange.AP214}
	return record(w.WriteFile(b.b, path))
}

// ExportSTL tessellates the body and writes binary STL.
func ExportSTL(b *Body, path string, chordTol float64) error {
	mesh, err := Tessellate(b, chordTol, 0.5)
	if err != nil {
		return err
	}
	return record(exchange.ExportSTL(mesh, path, false))
}

// SaveNative writes the versioned binary snapshot.
func SaveNative(b *Body, path string) error {
	if err := b.live(); err != nil {
		return err
	}
	return record(exchange.SaveNative(b.b, path))
}

// LoadNative reads a versioned binary snapshot.
func LoadNative(path string) (*Body, error) {
	return wrap(exchange.LoadNative(path))
}
