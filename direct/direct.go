// Package direct implements synchronous direct editing: face moves
// with topology resolution, live geometric rules detected at edit
// start and preserved during the edit, and post-hoc feature
// recognition with draggable handles.
package direct

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
	"github.com/novacad/nova/ops"
)

var (
	// ErrNoSession reports an operation on an ended session.
	ErrNoSession = errors.New("direct: session ended")
	// ErrResolve reports a face move the resolver could not
	// reconcile with the neighboring topology.
	ErrResolve = errors.New("direct: topology resolution failed")
)

// Session is one direct-editing interaction: begin, accumulate face
// transforms, solve, end. The source body is untouched until End
// commits the solved copy.
type Session struct {
	src   *brep.Body
	opt   ops.Options
	rules []Relation
	// pending surface transforms per face.
	moves  map[brep.FaceID]nmath.Rigid
	offset map[brep.FaceID]float64
	solved *brep.Body
	ended  bool
}

// Begin opens an edit session on the body, detecting live rules.
func Begin(body *brep.Body, opt ops.Options) (*Session, error) {
	if body == nil || body.Released() {
		return nil, fmt.Errorf("%w: released body", ops.ErrParameter)
	}
	s := &Session{
		src:    body,
		opt:    opt,
		rules:  DetectRelations(body, opt.Tol),
		moves:  map[brep.FaceID]nmath.Rigid{},
		offset: map[brep.FaceID]float64{},
	}
	return s, nil
}

// Relations lists the rules detected at Begin.
func (s *Session) Relations() []Relation { return s.rules }

// DisableAllRules turns live-rule propagation off for the session.
func (s *Session) DisableAllRules() {
	for i := range s.rules {
		s.rules[i].Enabled = false
	}
}

// DisableRule turns one relation off.
func (s *Session) DisableRule(i int) error {
	if i < 0 || i >= len(s.rules) {
		return fmt.Errorf("%w: rule index %d", ops.ErrParameter, i)
	}
	s.rules[i].Enabled = false
	return nil
}

// MoveFace translates a face; coupled faces follow per the enabled
// rules.
func (s *Session) MoveFace(f brep.FaceID, translation md3.Vec) error {
	return s.applyTransform(f, nmath.Translating(translation))
}

// RotateFace rotates a face about an axis; coupled faces follow.
func (s *Session) RotateFace(f brep.FaceID, origin, axis md3.Vec, angle float64) error {
	r, err := nmath.Rotating(origin, axis, angle)
	if err != nil {
		return fmt.Errorf("%w: %v", ops.ErrParameter, err)
	}
	return s.applyTransform(f, r)
}

// OffsetFace displaces a face along its own normal.
func (s *Session) OffsetFace(f brep.FaceID, dist float64) error {
	if s.ended {
		return ErrNoSession
	}
	if _, err := s.src.FaceSurface(f); err != nil {
		return fmt.Errorf("%w: %v", ops.ErrParameter, err)
	}
	s.offset[f] += dist
	s.propagate(f, nmath.RigidIdent(), dist)
	s.solved = nil
	return nil
}

// ApplyDimension drives the distance between two parallel planar
// faces to value by moving face f along its normal.
func (s *Session) ApplyDimension(f, ref brep.FaceID, value float64) error {
	if s.ended {
		return ErrNoSession
	}
	sf, err := s.src.FaceSurface(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ops.ErrParameter, err)
	}
	sr, err := s.src.FaceSurface(ref)
	if err != nil {
		return fmt.Errorf("%w: %v", ops.ErrParameter, err)
	}
	pf, okF := sf.(*geom.Plane)
	pr, okR := sr.(*geom.Plane)
	if !okF || !okR || !s.opt.Tol.ParallelDirection(pf.PlaneNormal(), pr.PlaneNormal()) {
		return fmt.Errorf("%w: dimension needs parallel planar faces", ops.ErrUnsupported)
	}
	cur := pr.SignedDistance(pf.Origin())
	want := value
	if cur < 0 {
		want = -value
	}
	nf, err := faceOutwardNormal(s.src, f)
	if err != nil {
		return err
	}
	delta := want - cur
	if md3.Dot(nf, pr.PlaneNormal()) < 0 {
		delta = -delta
	}
	return s.OffsetFace(f, delta)
}

func (s *Session) applyTransform(f brep.FaceID, tf nmath.Rigid) error {
	if s.ended {
		return ErrNoSession
	}
	if _, err := s.src.FaceSurface(f); err != nil {
		return fmt.Errorf("%w: %v", ops.ErrParameter, err)
	}
	prev, ok := s.moves[f]
	if !ok {
		prev = nmath.RigidIdent()
	}
	s.moves[f] = prev.Then(tf)
	s.propagate(f, tf, 0)
	s.solved = nil
	return nil
}

// propagate applies the coupled transform of enabled relations.
func (s *Session) propagate(f brep.FaceID, tf nmath.Rigid, offset float64) {
	for _, r := range s.rules {
		if !r.Enabled || !r.couples() {
			continue
		}
		var partner brep.FaceID
		switch {
		case r.A == f:
			partner = r.B
		case r.B == f:
			partner = r.A
		default:
			continue
		}
		coupled := tf
		coupledOffset := offset
		if r.Kind == Symmetric {
			coupled = r.mirror.Inverse().Then(tf).Then(r.mirror)
		}
		if offset != 0 {
			s.offset[partner] += coupledOffset
			continue
		}
		prev, ok := s.moves[partner]
		if !ok {
			prev = nmath.RigidIdent()
		}
		s.moves[partner] = prev.Then(coupled)
	}
}

// Solve resolves the accumulated moves into a valid body: moved
// surfaces are installed, neighbors are extended or re-trimmed, and
// gaps left by the move are bridged with transition walls. The solved
// body is cached until the next edit.
func (s *Session) Solve() (*brep.Body, error) {
	if s.ended {
		return nil, ErrNoSession
	}
	if s.solved != nil {
		return s.solved, nil
	}
	replace := map[brep.FaceID]geom.Surface{}
	for f, tf := range s.moves {
		surf, _ := s.src.FaceSurface(f)
		replace[f] = surf.Transformed(tf)
	}
	for f, d := range s.offset {
		surf := replace[f]
		if surf == nil {
			surf, _ = s.src.FaceSurface(f)
		}
		n, err := faceOutwardNormal(s.src, f)
		if err != nil {
			return nil, err
		}
		same, _ := s.src.FaceSameSense(f)
		out, err := offsetAlong(surf, n, d, same)
		if err != nil {
			return nil, fmt.Errorf("%w: face %d: %v", ops.ErrGeometry, f, err)
		}
		replace[f] = out
	}
	if len(replace) == 0 {
		s.solved = s.src.DeepCopy()
		return s.solved, nil
	}
	body, err := resolve(s.src, replace, s.opt)
	if err != nil {
		return nil, err
	}
	s.solved = body
	return body, nil
}

// End closes the session. With commit true it returns the solved
// body; the source body is released, matching the kernel's
// consume-on-success convention. Without commit the source is
// returned unchanged.
func (s *Session) End(commit bool) (*brep.Body, error) {
	if s.ended {
		return nil, ErrNoSession
	}
	s.ended = true
	if !commit {
		return s.src, nil
	}
	body, err := s.Solve()
	if err == nil {
		s.src.Release()
		return body, nil
	}
	// A never-solved empty edit commits as a no-op.
	if len(s.moves) == 0 && len(s.offset) == 0 {
		return s.src, nil
	}
	return nil, err
}

func faceOutwardNormal(b *brep.Body, f brep.FaceID) (md3.Vec, error) {
	_, u, v, err := b.InteriorPoint(f)
	if err != nil {
		return md3.Vec{}, fmt.Errorf("%w: face %d: %v", ops.ErrGeometry, f, err)
	}
	surf, _ := b.FaceSurface(f)
	n, err := surf.Normal(u, v)
	if err != nil {
		return md3.Vec{}, fmt.Errorf("%w: %v", ops.ErrGeometry, err)
	}
	if same, _ := b.FaceSameSense(f); !same {
		n = md3.Scale(-1, n)
	}
	return n, nil
}

// offsetAlong displaces a surface by dist along direction n using the
// analytic offsets where they apply and a rigid translation for
// planes moved along their own normal.
func offsetAlong(surf geom.Surface, n md3.Vec, dist float64, sameSense bool) (geom.Surface, error) {
	if p, ok := surf.(*geom.Plane); ok {
		return p.Transformed(nmath.Translating(md3.Scale(dist, n))), nil
	}
	// Curved faces offset radially; delegate to the modeling layer's
	// surface offset, which runs along the parametric normal. That is
	// the outward normal only for same-sense faces.
	if !sameSense {
		dist = -dist
	}
	return ops.OffsetSurface(surf, dist)
}
