package brep

import (
	"github.com/novacad/nova/nmath"
)

// DeepCopy clones the body preserving every identity: an entity id
// valid on the source addresses the corresponding entity on the copy.
// Geometry is shared by reference (it is immutable).
func (b *Body) DeepCopy() *Body {
	out := &Body{
		verts:   append([]vertex(nil), b.verts...),
		edges:   append([]edge(nil), b.edges...),
		coedges: append([]coedge(nil), b.coedges...),
		loops:   append([]loop(nil), b.loops...),
		faces:   append([]face(nil), b.faces...),
		shells:  append([]shell(nil), b.shells...),
	}
	for i := range out.verts {
		out.verts[i].edges = append([]EdgeID(nil), b.verts[i].edges...)
	}
	for i := range out.faces {
		out.faces[i].inner = append([]LoopID(nil), b.faces[i].inner...)
		if b.faces[i].tags != nil {
			tags := make(map[string]string, len(b.faces[i].tags))
			for k, v := range b.faces[i].tags {
				tags[k] = v
			}
			out.faces[i].tags = tags
		}
	}
	for i := range out.shells {
		out.shells[i].faces = append([]FaceID(nil), b.shells[i].faces...)
	}
	return out
}

// Transform rigidly moves the body in place: vertex positions, edge
// curves and face surfaces are all replaced by transformed values.
// Shared geometry is not mutated; new immutable values are installed.
func (b *Body) Transform(tf nmath.Rigid) {
	for i := range b.verts {
		if b.verts[i].alive {
			b.verts[i].pos = tf.Apply(b.verts[i].pos)
		}
	}
	for i := range b.edges {
		if b.edges[i].alive && b.edges[i].curve != nil {
			b.edges[i].curve = b.edges[i].curve.Transformed(tf)
		}
	}
	for i := range b.faces {
		if b.faces[i].alive && b.faces[i].surf != nil {
			b.faces[i].surf = b.faces[i].surf.Transformed(tf)
		}
	}
}
