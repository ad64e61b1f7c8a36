package exchange

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// Native dump: a versioned binary snapshot of one body. Layout after
// the magic and version byte: the geometry pool tables (surfaces then
// curves, deduplicated by reference), then the face records referring
// into the pools. Reading reassembles the body; forward compatibility
// across major versions is not promised — the version byte selects
// the parser.

var dumpMagic = [4]byte{'N', 'O', 'V', 'A'}

// DumpVersion is the current native format version.
const DumpVersion byte = 1

type dumpWriter struct {
	w   io.Writer
	err error
}

func (d *dumpWriter) u32(v uint32) {
	if d.err == nil {
		d.err = binary.Write(d.w, binary.LittleEndian, v)
	}
}

func (d *dumpWriter) u8(v byte) {
	if d.err == nil {
		d.err = binary.Write(d.w, binary.LittleEndian, v)
	}
}

func (d *dumpWriter) f64(v float64) {
	if d.err == nil {
		d.err = binary.Write(d.w, binary.LittleEndian, math.Float64bits(v))
	}
}

func (d *dumpWriter) vec(v md3.Vec) {
	d.f64(v.X)
	d.f64(v.Y)
	d.f64(v.Z)
}

// SaveNative writes the body snapshot to path.
func SaveNative(body *brep.Body, path string) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	bw := bufio.NewWriter(fp)
	if err := WriteNative(body, bw); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteNative writes the body snapshot to the stream.
func WriteNative(body *brep.Body, w io.Writer) error {
	if body == nil || body.Released() {
		return fmt.Errorf("exchange: released body")
	}
	d := &dumpWriter{w: w}
	if _, err := w.Write(dumpMagic[:]); err != nil {
		return err
	}
	d.u8(DumpVersion)

	// Pool the geometry by identity.
	surfIdx := map[geom.Surface]uint32{}
	var surfs []geom.Surface
	curveIdx := map[geom.Curve]uint32{}
	var curves []geom.Curve
	var poolErr error
	body.Faces(func(f brep.FaceID) bool {
		s, _ := body.FaceSurface(f)
		if s == nil {
			poolErr = fmt.Errorf("exchange: face %d without surface", f)
			return false
		}
		if _, ok := surfIdx[s]; !ok {
			surfIdx[s] = uint32(len(surfs))
			surfs = append(surfs, s)
		}
		return true
	})
	if poolErr != nil {
		return poolErr
	}
	body.Edges(func(e brep.EdgeID) bool {
		c, _ := body.EdgeCurve(e)
		if c == nil {
			poolErr = fmt.Errorf("exchange: edge %d without curve", e)
			return false
		}
		if _, ok := curveIdx[c]; !ok {
			curveIdx[c] = uint32(len(curves))
			curves = append(curves, c)
		}
		return true
	})
	if poolErr != nil {
		return poolErr
	}

	d.u32(uint32(len(surfs)))
	for _, s := range surfs {
		if err := dumpSurface(d, s); err != nil {
			return err
		}
	}
	d.u32(uint32(len(curves)))
	for _, c := range curves {
		if err := dumpCurve(d, c); err != nil {
			return err
		}
	}
	d.u32(uint32(body.FaceCount()))
	body.Faces(func(f brep.FaceID) bool {
		s, _ := body.FaceSurface(f)
		same, _ := body.FaceSameSense(f)
		d.u32(uint32(f))
		d.u32(surfIdx[s])
		if same {
			d.u8(1)
		} else {
			d.u8(0)
		}
		type loopRec struct{ uses [][2]uint32 }
		var recs []loopRec
		visit := func(l brep.LoopID) {
			var rec loopRec
			body.LoopCoedges(l, func(c brep.CoedgeID) bool {
				e, fwd, _ := body.CoedgeEdge(c)
				cv, _ := body.EdgeCurve(e)
				bit := uint32(0)
				if fwd {
					bit = 1
				}
				rec.uses = append(rec.uses, [2]uint32{curveIdx[cv], bit})
				return true
			})
			recs = append(recs, rec)
		}
		ol, _ := body.FaceOuterLoop(f)
		visit(ol)
		body.FaceInnerLoops(f, func(l brep.LoopID) bool {
			visit(l)
			return true
		})
		d.u32(uint32(len(recs)))
		for _, rec := range recs {
			d.u32(uint32(len(rec.uses)))
			for _, u := range rec.uses {
				d.u32(u[0])
				d.u32(u[1])
			}
		}
		return true
	})
	return d.err
}

const (
	dumpKindLine byte = iota
	dumpKindArc
	dumpKindEllipse
	dumpKindNURBSCurve
	dumpKindPlane
	dumpKindCylinder
	dumpKindSphere
	dumpKindCone
	dumpKindTorus
	dumpKindNURBSSurface
)

func dumpCurve(d *dumpWriter, c geom.Curve) error {
	r := c.ParamRange()
	switch cc := c.(type) {
	case *geom.Line:
		d.u8(dumpKindLine)
		d.vec(cc.Origin())
		d.vec(cc.Direction())
		d.f64(r.Start)
		d.f64(r.End)
	case *geom.Arc:
		d.u8(dumpKindArc)
		d.vec(cc.Center())
		d.vec(cc.Normal())
		d.vec(cc.XDir())
		d.f64(cc.Radius())
		d.f64(r.Start)
		d.f64(r.End)
	case *geom.EllipseArc:
		major, minor := cc.Radii()
		d.u8(dumpKindEllipse)
		d.vec(cc.Center())
		d.vec(cc.Normal())
		d.vec(cc.XDir())
		d.f64(major)
		d.f64(minor)
		d.f64(r.Start)
		d.f64(r.End)
	case *geom.NURBSCurve:
		d.u8(dumpKindNURBSCurve)
		d.u32(uint32(cc.Degree()))
		knots := cc.Knots()
		d.u32(uint32(len(knots)))
		for _, k := range knots {
			d.f64(k)
		}
		ctrl := cc.ControlPoints()
		weights := cc.Weights()
		d.u32(uint32(len(ctrl)))
		for i, p := range ctrl {
			d.vec(p)
			d.f64(weights[i])
		}
	default:
		return fmt.Errorf("exchange: cannot dump curve kind %d", c.Kind())
	}
	return d.err
}

func dumpSurface(d *dumpWriter, s geom.Surface) error {
	switch ss := s.(type) {
	case *geom.Plane:
		d.u8(dumpKindPlane)
		d.vec(ss.Origin())
		d.vec(ss.XDir())
		d.vec(ss.YDir())
	case *geom.Cylinder:
		vr := ss.UVRange().V
		d.u8(dumpKindCylinder)
		d.vec(ss.Base())
		d.vec(ss.Axis())
		d.f64(ss.Radius())
		d.f64(vr.Start)
		d.f64(vr.End)
	case *geom.Sphere:
		d.u8(dumpKindSphere)
		d.vec(ss.Center())
		d.vec(ss.Axis())
		d.f64(ss.Radius())
	case *geom.Cone:
		vr := ss.UVRange().V
		d.u8(dumpKindCone)
		d.vec(ss.Base())
		d.vec(ss.Axis())
		d.f64(ss.RadiusAt(0))
		d.f64(ss.SemiAngle())
		d.f64(vr.Start)
		d.f64(vr.End)
	case *geom.Torus:
		major, minor := ss.Radii()
		d.u8(dumpKindTorus)
		d.vec(ss.Center())
		d.vec(ss.Axis())
		d.f64(major)
		d.f64(minor)
	case *geom.NURBSSurface:
		d.u8(dumpKindNURBSSurface)
		du, dv := ss.Degrees()
		cu, cv := ss.ControlCounts()
		d.u32(uint32(du))
		d.u32(uint32(dv))
		d.u32(uint32(cu))
		d.u32(uint32(cv))
		ku, kv := ss.KnotsU(), ss.KnotsV()
		d.u32(uint32(len(ku)))
		for _, k := range ku {
			d.f64(k)
		}
		d.u32(uint32(len(kv)))
		for _, k := range kv {
			d.f64(k)
		}
		ctrl := ss.ControlPoints()
		weights := ss.Weights()
		d.u32(uint32(len(ctrl)))
		for i, p := range ctrl {
			d.vec(p)
			d.f64(weights[i])
		}
	default:
		return fmt.Errorf("exchange: cannot dump surface kind %d", s.Kind())
	}
	return d.err
}

type dumpReader struct {
	r   io.Reader
	err error
}

func (d *dumpReader) u32() uint32 {
	var v uint32
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, &v)
	}
	return v
}

func (d *dumpReader) u8() byte {
	var v byte
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, &v)
	}
	return v
}

func (d *dumpReader) f64() float64 {
	var v uint64
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, &v)
	}
	return math.Float64frombits(v)
}

func (d *dumpReader) vec() md3.Vec {
	return md3.Vec{X: d.f64(), Y: d.f64(), Z: d.f64()}
}

// LoadNative reads a body snapshot from path.
func LoadNative(path string) (*brep.Body, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ReadNative(bufio.NewReader(fp))
}

// ReadNative reads a body snapshot from the stream.
func ReadNative(r io.Reader) (*brep.Body, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != dumpMagic {
		return nil, fmt.Errorf("exchange: not a nova dump")
	}
	d := &dumpReader{r: r}
	version := d.u8()
	if version != DumpVersion {
		return nil, fmt.Errorf("exchange: unsupported dump version %d", version)
	}
	nsurf := d.u32()
	surfs := make([]geom.Surface, 0, nsurf)
	for i := uint32(0); i < nsurf && d.err == nil; i++ {
		s, err := readSurface(d)
		if err != nil {
			return nil, err
		}
		surfs = append(surfs, s)
	}
	ncurve := d.u32()
	curves := make([]geom.Curve, 0, ncurve)
	for i := uint32(0); i < ncurve && d.err == nil; i++ {
		c, err := readCurve(d)
		if err != nil {
			return nil, err
		}
		curves = append(curves, c)
	}
	nface := d.u32()
	var specs []brep.FaceSpec
	for i := uint32(0); i < nface && d.err == nil; i++ {
		_ = d.u32() // original face identity, informational
		si := d.u32()
		same := d.u8() == 1
		if int(si) >= len(surfs) {
			return nil, fmt.Errorf("%w: surface index %d", ErrTopologyInconsistent, si)
		}
		spec := brep.FaceSpec{Surf: surfs[si], SameSense: same}
		nloops := d.u32()
		for li := uint32(0); li < nloops && d.err == nil; li++ {
			nuses := d.u32()
			var ls brep.LoopSpec
			for ui := uint32(0); ui < nuses && d.err == nil; ui++ {
				ci := d.u32()
				fwd := d.u32() == 1
				if int(ci) >= len(curves) {
					return nil, fmt.Errorf("%w: curve index %d", ErrTopologyInconsistent, ci)
				}
				ls.Uses = append(ls.Uses, brep.EdgeUse{Curve: curves[ci], Forward: fwd})
			}
			if li == 0 {
				spec.Outer = ls
			} else {
				spec.Inner = append(spec.Inner, ls)
			}
		}
		specs = append(specs, spec)
	}
	if d.err != nil {
		return nil, d.err
	}
	body, err := brep.Assemble(specs, nmath.DefaultTolerance())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopologyInconsistent, err)
	}
	return body, nil
}

func readCurve(d *dumpReader) (geom.Curve, error) {
	switch kind := d.u8(); kind {
	case dumpKindLine:
		o := d.vec()
		dir := d.vec()
		lo, hi := d.f64(), d.f64()
		return geom.NewLine(o, dir, geom.ParamRange{Start: lo, End: hi})
	case dumpKindArc:
		c := d.vec()
		n := d.vec()
		x := d.vec()
		r := d.f64()
		lo, hi := d.f64(), d.f64()
		return geom.NewArc(c, n, x, r, geom.ParamRange{Start: lo, End: hi})
	case dumpKindEllipse:
		c := d.vec()
		n := d.vec()
		x := d.vec()
		major, minor := d.f64(), d.f64()
		lo, hi := d.f64(), d.f64()
		return geom.NewEllipseArc(c, n, x, major, minor, geom.ParamRange{Start: lo, End: hi})
	case dumpKindNURBSCurve:
		degree := int(d.u32())
		nk := d.u32()
		knots := make([]float64, nk)
		for i := range knots {
			knots[i] = d.f64()
		}
		nc := d.u32()
		ctrl := make([]md3.Vec, nc)
		weights := make([]float64, nc)
		for i := range ctrl {
			ctrl[i] = d.vec()
			weights[i] = d.f64()
		}
		return geom.NewNURBSCurve(degree, knots, ctrl, weights)
	default:
		return nil, fmt.Errorf("%w: curve kind %d", ErrTopologyInconsistent, kind)
	}
}

func readSurface(d *dumpReader) (geom.Surface, error) {
	switch kind := d.u8(); kind {
	case dumpKindPlane:
		o := d.vec()
		x := d.vec()
		y := d.vec()
		return geom.NewPlaneAxes(o, x, y)
	case dumpKindCylinder:
		b := d.vec()
		a := d.vec()
		r := d.f64()
		lo, hi := d.f64(), d.f64()
		return geom.NewCylinder(b, a, r, geom.ParamRange{Start: lo, End: hi})
	case dumpKindSphere:
		c := d.vec()
		a := d.vec()
		r := d.f64()
		return geom.NewSphere(c, a, r)
	case dumpKindCone:
		b := d.vec()
		a := d.vec()
		r := d.f64()
		semi := d.f64()
		lo, hi := d.f64(), d.f64()
		return geom.NewCone(b, a, r, semi, geom.ParamRange{Start: lo, End: hi})
	case dumpKindTorus:
		c := d.vec()
		a := d.vec()
		major, minor := d.f64(), d.f64()
		return geom.NewTorus(c, a, major, minor)
	case dumpKindNURBSSurface:
		du := int(d.u32())
		dv := int(d.u32())
		cu := int(d.u32())
		cv := int(d.u32())
		nku := d.u32()
		ku := make([]float64, nku)
		for i := range ku {
			ku[i] = d.f64()
		}
		nkv := d.u32()
		kv := make([]float64, nkv)
		for i := range kv {
			kv[i] = d.f64()
		}
		nc := d.u32()
		ctrl := make([]md3.Vec, nc)
		weights := make([]float64, nc)
		for i := range ctrl {
			ctrl[i] = d.vec()
			weights[i] = d.f64()
		}
		return geom.NewNURBSSurface(du, dv, cu, cv, ku, kv, ctrl, weights)
	default:
		return nil, fmt.Errorf("%w: surface kind %d", ErrTopologyInconsistent, kind)
	}
}
