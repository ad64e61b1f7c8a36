package nmath

import "github.com/soypat/geometry/md3"

// Rigid is a rigid-body transform: rotation followed by translation.
// The zero value is not valid; use [RigidIdent] or a constructor.
type Rigid struct {
	Rotation    Quat
	Translation md3.Vec
}

// RigidIdent returns the identity transform.
func RigidIdent() Rigid { return Rigid{Rotation: QuatIdent()} }

// Translating returns a pure translation.
func Translating(t md3.Vec) Rigid {
	return Rigid{Rotation: QuatIdent(), Translation: t}
}

// Rotating returns a pure rotation of angle radians about the axis
// through origin.
func Rotating(origin, axis md3.Vec, angle float64) (Rigid, error) {
	q, err := QuatFromAxisAngle(axis, angle)
	if err != nil {
		return Rigid{}, err
	}
	// p' = q(p-o)+o  =>  translation = o - q(o).
	return Rigid{Rotation: q, Translation: md3.Sub(origin, q.Rotate(origin))}, nil
}

// Apply transforms point p.
func (r Rigid) Apply(p md3.Vec) md3.Vec {
	return md3.Add(r.Rotation.Rotate(p), r.Translation)
}

// ApplyDir transforms direction v (rotation only).
func (r Rigid) ApplyDir(v md3.Vec) md3.Vec { return r.Rotation.Rotate(v) }

// Then returns the composition applying r first, then s.
func (r Rigid) Then(s Rigid) Rigid {
	return Rigid{
		Rotation:    s.Rotation.Mul(r.Rotation),
		Translation: md3.Add(s.Rotation.Rotate(r.Translation), s.Translation),
	}
}

// Inverse returns the inverse transform.
func (r Rigid) Inverse() Rigid {
	inv := r.Rotation.Conj()
	return Rigid{Rotation: inv, Translation: md3.Scale(-1, inv.Rotate(r.Translation))}
}

// IsIdentity reports whether r moves no point by more than tol.
func (r Rigid) IsIdentity(tol float64) bool {
	if md3.Norm(r.Translation) > tol {
		return false
	}
	_, angle := r.Rotation.AxisAngle()
	return angle <= tol
}
