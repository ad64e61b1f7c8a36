package exchange

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"

	"github.com/novacad/nova/tess"
)

// STL writers consume the tessellator's output directly: a triangle
// soup in the standard ASCII "solid" form or the 80-byte-header
// binary form.

// WriteBinarySTL writes triangles in binary STL and reports the bytes
// written.
func WriteBinarySTL(w io.Writer, triangles []ms3.Triangle) (int, error) {
	var header [80]byte
	copy(header[:], "nova binary stl")
	n := 0
	wrote, err := w.Write(header[:])
	n += wrote
	if err != nil {
		return n, err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return n, err
	}
	n += 4
	var rec [50]byte
	for _, t := range triangles {
		nrm := stlNormal(t)
		putVec := func(off int, v ms3.Vec) {
			binary.LittleEndian.PutUint32(rec[off:], math32.Float32bits(v.X))
			binary.LittleEndian.PutUint32(rec[off+4:], math32.Float32bits(v.Y))
			binary.LittleEndian.PutUint32(rec[off+8:], math32.Float32bits(v.Z))
		}
		putVec(0, nrm)
		putVec(12, t[0])
		putVec(24, t[1])
		putVec(36, t[2])
		rec[48], rec[49] = 0, 0
		wrote, err = w.Write(rec[:])
		n += wrote
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// WriteASCIISTL writes triangles in the clear-text "solid" form.
func WriteASCIISTL(w io.Writer, name string, triangles []ms3.Triangle) error {
	bw := bufio.NewWriter(w)
	if name == "" {
		name = "nova"
	}
	fmt.Fprintf(bw, "solid %s\n", name)
	for _, t := range triangles {
		nrm := stlNormal(t)
		fmt.Fprintf(bw, "  facet normal %e %e %e\n    outer loop\n", nrm.X, nrm.Y, nrm.Z)
		for _, v := range t {
			fmt.Fprintf(bw, "      vertex %e %e %e\n", v.X, v.Y, v.Z)
		}
		fmt.Fprintf(bw, "    endloop\n  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

// ExportSTL tessellates nothing itself; it streams an already built
// mesh to path, binary by default.
func ExportSTL(m *tess.Mesh, path string, ascii bool) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	tris, err := tess.RenderAll(tess.NewMeshRenderer(m), nil)
	if err != nil {
		return err
	}
	if ascii {
		return WriteASCIISTL(fp, "", tris)
	}
	_, err = WriteBinarySTL(fp, tris)
	return err
}

func stlNormal(t ms3.Triangle) ms3.Vec {
	e1 := ms3.Sub(t[1], t[0])
	e2 := ms3.Sub(t[2], t[0])
	n := ms3.Cross(e1, e2)
	mag := math32.Sqrt(n.X*n.X + n.Y*n.Y + n.Z*n.Z)
	if mag < 1e-20 {
		return ms3.Vec{}
	}
	return ms3.Scale(1/mag, n)
}
