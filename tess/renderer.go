package tess

import (
	"io"

	"github.com/soypat/geometry/ms3"
)

// Renderer streams triangles in chunks, io.Reader style: the exporter
// layers consume meshes through it without holding a second copy.
type Renderer interface {
	ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error)
}

// RenderAll reads the full contents of a Renderer and returns the
// slice read. It does not return error on io.EOF.
func RenderAll(r Renderer, userData any) ([]ms3.Triangle, error) {
	const startSize = 4096
	var err error
	var nt int
	result := make([]ms3.Triangle, 0, startSize)
	buf := make([]ms3.Triangle, startSize)
	for {
		nt, err = r.ReadTriangles(buf, userData)
		if err == nil || err == io.EOF {
			result = append(result, buf[:nt]...)
		}
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// meshRenderer streams a mesh's triangles.
type meshRenderer struct {
	mesh *Mesh
	at   int // triangle cursor
}

// NewMeshRenderer returns a Renderer over the mesh's triangles.
func NewMeshRenderer(m *Mesh) Renderer {
	return &meshRenderer{mesh: m}
}

func (mr *meshRenderer) ReadTriangles(dst []ms3.Triangle, userData any) (int, error) {
	total := mr.mesh.TriangleCount()
	if mr.at >= total {
		return 0, io.EOF
	}
	n := 0
	for n < len(dst) && mr.at < total {
		i := mr.at * 3
		dst[n] = ms3.Triangle{
			mr.mesh.Vertices[mr.mesh.Indices[i]].Position,
			mr.mesh.Vertices[mr.mesh.Indices[i+1]].Position,
			mr.mesh.Vertices[mr.mesh.Indices[i+2]].Position,
		}
		n++
		mr.at++
	}
	if mr.at >= total {
		return n, io.EOF
	}
	return n, nil
}
