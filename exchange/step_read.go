package exchange

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/geom"
	"github.com/novacad/nova/nmath"
)

// StepReader parses the ISO 10303-21 physical file syntax and rebuilds
// bodies from the AP214/AP242 entity subset. Forward references are
// legal: entities are collected first and linked in a second pass.
type StepReader struct {
	// Strict turns an unknown face bound entity into a hard error
	// instead of skip-with-warning; other unknown entities reachable
	// from the solid are load errors in either mode.
	Strict bool
	// Tol overrides the tolerance context; zero value uses defaults.
	Tol nmath.ToleranceContext
	// Warnings collects the entity types skipped during the load.
	Warnings []string
}

// ReadFile imports the first solid in the file at path.
func (r *StepReader) ReadFile(path string) (*brep.Body, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.Read(string(data))
}

// stepEntity is a raw parsed instance before linking.
type stepEntity struct {
	id   int
	typ  string
	args []stepAttr
}

// stepAttr is one attribute value of a STEP instance.
type stepAttr struct {
	kind attrKind
	num  float64
	str  string
	ref  int
	list []stepAttr
}

type attrKind int

const (
	attrNumber attrKind = iota
	attrString
	attrEnum
	attrRef
	attrList
	attrNull // $ or *
)

// Read parses the content and rebuilds the first manifold solid.
func (r *StepReader) Read(content string) (*brep.Body, error) {
	if r.Tol.Linear == 0 {
		r.Tol = nmath.DefaultTolerance()
	}
	p := &stepParser{src: content, line: 1, col: 1}
	entities, err := p.parse()
	if err != nil {
		return nil, err
	}
	ld := &stepLoader{reader: r, entities: entities, tol: r.Tol}
	return ld.build()
}

type stepParser struct {
	src       string
	pos       int
	line, col int
}

func (p *stepParser) errExpected(what string) error {
	return &ParseError{Line: p.line, Col: p.col, Expected: what}
}

func (p *stepParser) advance(n int) {
	for i := 0; i < n && p.pos < len(p.src); i++ {
		if p.src[p.pos] == '\n' {
			p.line++
			p.col = 1
		} else {
			p.col++
		}
		p.pos++
	}
}

func (p *stepParser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			p.advance(1)
			continue
		}
		// Comments: /* ... */
		if c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*' {
			for p.pos < len(p.src)-1 && !(p.src[p.pos] == '*' && p.src[p.pos+1] == '/') {
				p.advance(1)
			}
			p.advance(2)
			continue
		}
		return
	}
}

func (p *stepParser) parse() (map[int]*stepEntity, error) {
	if !strings.Contains(p.src, "ISO-10303-21") {
		return nil, p.errExpected("ISO-10303-21 header")
	}
	dataAt := strings.Index(p.src, "DATA;")
	if dataAt < 0 {
		return nil, p.errExpected("DATA section")
	}
	p.advance(dataAt + len("DATA;"))
	entities := map[int]*stepEntity{}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.errExpected("ENDSEC")
		}
		if strings.HasPrefix(p.src[p.pos:], "ENDSEC") {
			break
		}
		if p.src[p.pos] != '#' {
			return nil, p.errExpected("#id")
		}
		p.advance(1)
		id, err := p.readInt()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '=' {
			return nil, p.errExpected("=")
		}
		p.advance(1)
		p.skipSpace()
		typ, err := p.readIdent()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		var args []stepAttr
		if p.pos < len(p.src) && p.src[p.pos] == '(' {
			lst, err := p.readList()
			if err != nil {
				return nil, err
			}
			args = lst.list
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ';' {
			return nil, p.errExpected(";")
		}
		p.advance(1)
		entities[id] = &stepEntity{id: id, typ: strings.ToUpper(typ), args: args}
	}
	return entities, nil
}

func (p *stepParser) readInt() (int, error) {
	start := p.pos
	for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9') {
		p.advance(1)
	}
	if start == p.pos {
		return 0, p.errExpected("integer")
	}
	v, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return 0, p.errExpected("integer")
	}
	return v, nil
}

func (p *stepParser) readIdent() (string, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			p.advance(1)
			continue
		}
		break
	}
	if start == p.pos {
		return "", p.errExpected("identifier")
	}
	return p.src[start:p.pos], nil
}

// readList parses a parenthesized attribute list.
func (p *stepParser) readList() (stepAttr, error) {
	if p.src[p.pos] != '(' {
		return stepAttr{}, p.errExpected("(")
	}
	p.advance(1)
	out := stepAttr{kind: attrList}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return stepAttr{}, p.errExpected(")")
		}
		if p.src[p.pos] == ')' {
			p.advance(1)
			return out, nil
		}
		attr, err := p.readAttr()
		if err != nil {
			return stepAttr{}, err
		}
		out.list = append(out.list, attr)
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.advance(1)
		}
	}
}

func (p *stepParser) readAttr() (stepAttr, error) {
	c := p.src[p.pos]
	switch {
	case c == '(':
		return p.readList()
	case c == '#':
		p.advance(1)
		id, err := p.readInt()
		if err != nil {
			return stepAttr{}, err
		}
		return stepAttr{kind: attrRef, ref: id}, nil
	case c == '\'':
		p.advance(1)
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != '\'' {
			p.advance(1)
		}
		if p.pos >= len(p.src) {
			return stepAttr{}, p.errExpected("closing quote")
		}
		s := p.src[start:p.pos]
		p.advance(1)
		return stepAttr{kind: attrString, str: s}, nil
	case c == '.':
		p.advance(1)
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != '.' {
			p.advance(1)
		}
		if p.pos >= len(p.src) {
			return stepAttr{}, p.errExpected("closing dot of enum")
		}
		s := p.src[start:p.pos]
		p.advance(1)
		return stepAttr{kind: attrEnum, str: s}, nil
	case c == '$' || c == '*':
		p.advance(1)
		return stepAttr{kind: attrNull}, nil
	case c == '-' || c == '+' || c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) {
			ch := p.src[p.pos]
			if ch == '-' || ch == '+' || ch == '.' || ch == 'E' || ch == 'e' || ch >= '0' && ch <= '9' {
				p.advance(1)
				continue
			}
			break
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return stepAttr{}, p.errExpected("number")
		}
		return stepAttr{kind: attrNumber, num: v}, nil
	default:
		// Typed or nested instance names are outside the subset.
		if ident, err := p.readIdent(); err == nil {
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == '(' {
				inner, err := p.readList()
				if err != nil {
					return stepAttr{}, err
				}
				return stepAttr{kind: attrList, str: strings.ToUpper(ident), list: inner.list}, nil
			}
			return stepAttr{kind: attrEnum, str: ident}, nil
		}
		return stepAttr{}, p.errExpected("attribute")
	}
}

// stepLoader links parsed entities into a body.
type stepLoader struct {
	reader   *StepReader
	entities map[int]*stepEntity
	tol      nmath.ToleranceContext
	curves   map[int]geom.Curve
	surfs    map[int]geom.Surface
	points   map[int]md3.Vec
	dirs     map[int]md3.Vec
}

func (l *stepLoader) entity(id int) (*stepEntity, error) {
	e, ok := l.entities[id]
	if !ok {
		return nil, &UnresolvedReference{ID: id}
	}
	return e, nil
}

func (l *stepLoader) build() (*brep.Body, error) {
	l.curves = map[int]geom.Curve{}
	l.surfs = map[int]geom.Surface{}
	l.points = map[int]md3.Vec{}
	l.dirs = map[int]md3.Vec{}
	// Find the solid root.
	var root *stepEntity
	for _, e := range l.entities {
		if e.typ == "MANIFOLD_SOLID_BREP" || e.typ == "BREP_WITH_VOIDS" {
			root = e
			break
		}
	}
	if root == nil {
		return nil, &UnsupportedEntity{Type: "no manifold_solid_brep in file"}
	}
	var shellRefs []int
	for _, a := range root.args[1:] {
		switch a.kind {
		case attrRef:
			shellRefs = append(shellRefs, a.ref)
		case attrList:
			for _, s := range a.list {
				if s.kind == attrRef {
					shellRefs = append(shellRefs, s.ref)
				}
			}
		}
	}
	var specs []brep.FaceSpec
	for _, sref := range shellRefs {
		shell, err := l.entity(sref)
		if err != nil {
			return nil, err
		}
		if shell.typ != "CLOSED_SHELL" && shell.typ != "OPEN_SHELL" {
			return nil, &UnsupportedEntity{Type: shell.typ}
		}
		if len(shell.args) < 2 || shell.args[1].kind != attrList {
			return nil, fmt.Errorf("%w: shell #%d lacks a face list", ErrTopologyInconsistent, sref)
		}
		for _, fr := range shell.args[1].list {
			if fr.kind != attrRef {
				continue
			}
			spec, err := l.face(fr.ref)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	body, err := brep.Assemble(specs, l.tol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopologyInconsistent, err)
	}
	return body, nil
}

func (l *stepLoader) face(id int) (brep.FaceSpec, error) {
	e, err := l.entity(id)
	if err != nil {
		return brep.FaceSpec{}, err
	}
	if e.typ != "ADVANCED_FACE" && e.typ != "FACE_SURFACE" {
		return brep.FaceSpec{}, &UnsupportedEntity{Type: e.typ}
	}
	if len(e.args) < 4 {
		return brep.FaceSpec{}, fmt.Errorf("%w: face #%d", ErrTopologyInconsistent, id)
	}
	surf, err := l.surface(e.args[2].ref)
	if err != nil {
		return brep.FaceSpec{}, err
	}
	same := e.args[3].kind == attrEnum && e.args[3].str == "T"
	spec := brep.FaceSpec{Surf: surf, SameSense: same}
	if e.args[1].kind != attrList {
		return brep.FaceSpec{}, fmt.Errorf("%w: face #%d bounds", ErrTopologyInconsistent, id)
	}
	for _, br := range e.args[1].list {
		if br.kind != attrRef {
			continue
		}
		be, err := l.entity(br.ref)
		if err != nil {
			return brep.FaceSpec{}, err
		}
		outer := be.typ == "FACE_OUTER_BOUND"
		if !outer && be.typ != "FACE_BOUND" {
			if l.reader.Strict {
				return brep.FaceSpec{}, &UnsupportedEntity{Type: be.typ}
			}
			l.reader.Warnings = append(l.reader.Warnings, be.typ)
			continue
		}
		loop, err := l.loop(be.args[1].ref)
		if err != nil {
			return brep.FaceSpec{}, err
		}
		reversed := be.args[2].kind == attrEnum && be.args[2].str == "F"
		if reversed {
			loop = reverseLoopSpec(loop)
		}
		if outer {
			spec.Outer = loop
		} else {
			spec.Inner = append(spec.Inner, loop)
		}
	}
	if len(spec.Outer.Uses) == 0 {
		return brep.FaceSpec{}, fmt.Errorf("%w: face #%d has no outer bound", ErrTopologyInconsistent, id)
	}
	// Half-open analytic surfaces get their axial range from the
	// face's edges.
	spec.Surf = fitSurfaceRange(spec)
	return spec, nil
}

func reverseLoopSpec(ls brep.LoopSpec) brep.LoopSpec {
	out := brep.LoopSpec{Uses: make([]brep.EdgeUse, len(ls.Uses))}
	for i, u := range ls.Uses {
		out.Uses[len(ls.Uses)-1-i] = brep.EdgeUse{Curve: u.Curve, Forward: !u.Forward}
	}
	return out
}

func (l *stepLoader) loop(id int) (brep.LoopSpec, error) {
	e, err := l.entity(id)
	if err != nil {
		return brep.LoopSpec{}, err
	}
	if e.typ != "EDGE_LOOP" {
		return brep.LoopSpec{}, &UnsupportedEntity{Type: e.typ}
	}
	var ls brep.LoopSpec
	if len(e.args) < 2 || e.args[1].kind != attrList {
		return ls, fmt.Errorf("%w: edge_loop #%d", ErrTopologyInconsistent, id)
	}
	for _, oeRef := range e.args[1].list {
		if oeRef.kind != attrRef {
			continue
		}
		oe, err := l.entity(oeRef.ref)
		if err != nil {
			return ls, err
		}
		if oe.typ != "ORIENTED_EDGE" || len(oe.args) < 5 {
			return ls, &UnsupportedEntity{Type: oe.typ}
		}
		curve, err := l.edgeCurve(oe.args[3].ref)
		if err != nil {
			return ls, err
		}
		forward := oe.args[4].kind == attrEnum && oe.args[4].str == "T"
		ls.Uses = append(ls.Uses, brep.EdgeUse{Curve: curve, Forward: forward})
	}
	return ls, nil
}

// edgeCurve rebuilds the trimmed curve of an EDGE_CURVE from its
// basis curve and vertex points.
func (l *stepLoader) edgeCurve(id int) (geom.Curve, error) {
	e, err := l.entity(id)
	if err != nil {
		return nil, err
	}
	if e.typ != "EDGE_CURVE" || len(e.args) < 5 {
		return nil, &UnsupportedEntity{Type: e.typ}
	}
	v0, err := l.vertexPoint(e.args[1].ref)
	if err != nil {
		return nil, err
	}
	v1, err := l.vertexPoint(e.args[2].ref)
	if err != nil {
		return nil, err
	}
	basis, err := l.curve(e.args[3].ref)
	if err != nil {
		return nil, err
	}
	sameSense := e.args[4].kind == attrEnum && e.args[4].str == "T"
	if !sameSense {
		v0, v1 = v1, v0
	}
	return trimToVertices(basis, v0, v1, l.tol)
}

// trimToVertices bounds an unbounded basis curve between two vertex
// positions.
func trimToVertices(c geom.Curve, v0, v1 md3.Vec, tc nmath.ToleranceContext) (geom.Curve, error) {
	switch cc := c.(type) {
	case *geom.Line:
		return geom.NewLineSegment(v0, v1)
	case *geom.Arc:
		if md3.Norm(md3.Sub(v0, v1)) <= tc.Linear {
			return cc, nil // full circle
		}
		t0, _, d0 := cc.Project(v0)
		t1, _, d1 := cc.Project(v1)
		if d0 > 64*tc.Linear || d1 > 64*tc.Linear {
			return nil, fmt.Errorf("%w: edge vertices off their circle", ErrTopologyInconsistent)
		}
		if t1 <= t0 {
			t1 += 2 * math.Pi
		}
		return geom.TrimCurve(fullArc(cc, t0, t1), geom.ParamRange{Start: t0, End: t1})
	case *geom.EllipseArc:
		t0, _, _ := cc.Project(v0)
		t1, _, _ := cc.Project(v1)
		if md3.Norm(md3.Sub(v0, v1)) <= tc.Linear {
			return cc, nil
		}
		if t1 <= t0 {
			t1 += 2 * math.Pi
		}
		return geom.TrimCurve(cc, geom.ParamRange{Start: t0, End: math.Min(t1, cc.ParamRange().End)})
	default:
		return c, nil
	}
}

// fullArc widens an arc's range so an out-of-range trim succeeds.
func fullArc(a *geom.Arc, t0, t1 float64) geom.Curve {
	wide, err := geom.NewArc(a.Center(), a.Normal(), a.XDir(), a.Radius(), geom.ParamRange{Start: t0, End: t1})
	if err != nil {
		return a
	}
	return wide
}

func (l *stepLoader) vertexPoint(id int) (md3.Vec, error) {
	e, err := l.entity(id)
	if err != nil {
		return md3.Vec{}, err
	}
	if e.typ != "VERTEX_POINT" || len(e.args) < 2 || e.args[1].kind != attrRef {
		return md3.Vec{}, &UnsupportedEntity{Type: e.typ}
	}
	return l.point(e.args[1].ref)
}

func (l *stepLoader) point(id int) (md3.Vec, error) {
	if p, ok := l.points[id]; ok {
		return p, nil
	}
	e, err := l.entity(id)
	if err != nil {
		return md3.Vec{}, err
	}
	if e.typ != "CARTESIAN_POINT" || len(e.args) < 2 || e.args[1].kind != attrList || len(e.args[1].list) < 3 {
		return md3.Vec{}, &UnsupportedEntity{Type: e.typ}
	}
	v := md3.Vec{
		X: e.args[1].list[0].num,
		Y: e.args[1].list[1].num,
		Z: e.args[1].list[2].num,
	}
	l.points[id] = v
	return v, nil
}

func (l *stepLoader) direction(id int) (md3.Vec, error) {
	if d, ok := l.dirs[id]; ok {
		return d, nil
	}
	e, err := l.entity(id)
	if err != nil {
		return md3.Vec{}, err
	}
	if e.typ != "DIRECTION" || len(e.args) < 2 || e.args[1].kind != attrList || len(e.args[1].list) < 3 {
		return md3.Vec{}, &UnsupportedEntity{Type: e.typ}
	}
	v := md3.Vec{
		X: e.args[1].list[0].num,
		Y: e.args[1].list[1].num,
		Z: e.args[1].list[2].num,
	}
	l.dirs[id] = v
	return v, nil
}

// placement resolves AXIS2_PLACEMENT_3D into origin, axis and ref.
func (l *stepLoader) placement(id int) (origin, axis, ref md3.Vec, err error) {
	e, err := l.entity(id)
	if err != nil {
		return
	}
	if e.typ != "AXIS2_PLACEMENT_3D" || len(e.args) < 2 {
		err = &UnsupportedEntity{Type: e.typ}
		return
	}
	origin, err = l.point(e.args[1].ref)
	if err != nil {
		return
	}
	axis = md3.Vec{Z: 1}
	ref = md3.Vec{X: 1}
	if len(e.args) > 2 && e.args[2].kind == attrRef {
		if axis, err = l.direction(e.args[2].ref); err != nil {
			return
		}
	}
	if len(e.args) > 3 && e.args[3].kind == attrRef {
		if ref, err = l.direction(e.args[3].ref); err != nil {
			return
		}
	}
	return
}

func (l *stepLoader) curve(id int) (geom.Curve, error) {
	if c, ok := l.curves[id]; ok {
		return c, nil
	}
	e, err := l.entity(id)
	if err != nil {
		return nil, err
	}
	if len(e.args) < 3 {
		return nil, fmt.Errorf("%w: truncated %s #%d", ErrTopologyInconsistent, e.typ, id)
	}
	var out geom.Curve
	switch e.typ {
	case "LINE":
		p, err := l.point(e.args[1].ref)
		if err != nil {
			return nil, err
		}
		vec, err := l.entity(e.args[2].ref)
		if err != nil {
			return nil, err
		}
		if vec.typ != "VECTOR" || len(vec.args) < 3 {
			return nil, &UnsupportedEntity{Type: vec.typ}
		}
		d, err := l.direction(vec.args[1].ref)
		if err != nil {
			return nil, err
		}
		out, err = geom.NewLine(p, d, geom.ParamRange{Start: -1e6, End: 1e6})
		if err != nil {
			return nil, fmt.Errorf("%w: bad line #%d", ErrTopologyInconsistent, id)
		}
	case "CIRCLE":
		o, a, ref, err := l.placement(e.args[1].ref)
		if err != nil {
			return nil, err
		}
		out, err = geom.NewArc(o, a, ref, e.args[2].num, geom.ParamRange{Start: 0, End: 2 * math.Pi})
		if err != nil {
			return nil, fmt.Errorf("%w: bad circle #%d", ErrTopologyInconsistent, id)
		}
	case "ELLIPSE":
		o, a, ref, err := l.placement(e.args[1].ref)
		if err != nil {
			return nil, err
		}
		out, err = geom.NewEllipseArc(o, a, ref, e.args[2].num, e.args[3].num, geom.ParamRange{Start: 0, End: 2 * math.Pi})
		if err != nil {
			return nil, fmt.Errorf("%w: bad ellipse #%d", ErrTopologyInconsistent, id)
		}
	case "B_SPLINE_CURVE_WITH_KNOTS":
		if len(e.args) < 8 {
			return nil, fmt.Errorf("%w: truncated b-spline #%d", ErrTopologyInconsistent, id)
		}
		degree := int(e.args[1].num)
		var ctrl []md3.Vec
		for _, pr := range e.args[2].list {
			p, err := l.point(pr.ref)
			if err != nil {
				return nil, err
			}
			ctrl = append(ctrl, p)
		}
		knots := expandKnots(e.args[6].list, e.args[7].list)
		c, err := geom.NewNURBSCurve(degree, knots, ctrl, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: bad b-spline #%d: %v", ErrTopologyInconsistent, id, err)
		}
		out = c
	default:
		return nil, &UnsupportedEntity{Type: e.typ}
	}
	l.curves[id] = out
	return out, nil
}

func expandKnots(mults, values []stepAttr) []float64 {
	var out []float64
	for i := range values {
		m := 1
		if i < len(mults) {
			m = int(mults[i].num)
		}
		for k := 0; k < m; k++ {
			out = append(out, values[i].num)
		}
	}
	return out
}

func (l *stepLoader) surface(id int) (geom.Surface, error) {
	if s, ok := l.surfs[id]; ok {
		return s, nil
	}
	e, err := l.entity(id)
	if err != nil {
		return nil, err
	}
	if len(e.args) < 2 {
		return nil, fmt.Errorf("%w: truncated %s #%d", ErrTopologyInconsistent, e.typ, id)
	}
	var out geom.Surface
	switch e.typ {
	case "PLANE":
		o, a, ref, err := l.placement(e.args[1].ref)
		if err != nil {
			return nil, err
		}
		y := md3.Cross(a, ref)
		out, err = geom.NewPlaneAxes(o, ref, y)
		if err != nil {
			out2, err2 := geom.NewPlane(o, a)
			if err2 != nil {
				return nil, fmt.Errorf("%w: bad plane #%d", ErrTopologyInconsistent, id)
			}
			out = out2
		}
	case "CYLINDRICAL_SURFACE":
		o, a, _, err := l.placement(e.args[1].ref)
		if err != nil {
			return nil, err
		}
		out, err = geom.NewCylinder(o, a, e.args[2].num, geom.ParamRange{Start: -1e6, End: 1e6})
		if err != nil {
			return nil, fmt.Errorf("%w: bad cylinder #%d", ErrTopologyInconsistent, id)
		}
	case "SPHERICAL_SURFACE":
		o, a, _, err := l.placement(e.args[1].ref)
		if err != nil {
			return nil, err
		}
		out, err = geom.NewSphere(o, a, e.args[2].num)
		if err != nil {
			return nil, fmt.Errorf("%w: bad sphere #%d", ErrTopologyInconsistent, id)
		}
	case "CONICAL_SURFACE":
		o, a, _, err := l.placement(e.args[1].ref)
		if err != nil {
			return nil, err
		}
		out, err = geom.NewCone(o, a, e.args[2].num, e.args[3].num, geom.ParamRange{Start: -1e6, End: 1e6})
		if err != nil {
			return nil, fmt.Errorf("%w: bad cone #%d", ErrTopologyInconsistent, id)
		}
	case "TOROIDAL_SURFACE":
		o, a, _, err := l.placement(e.args[1].ref)
		if err != nil {
			return nil, err
		}
		out, err = geom.NewTorus(o, a, e.args[2].num, e.args[3].num)
		if err != nil {
			return nil, fmt.Errorf("%w: bad torus #%d", ErrTopologyInconsistent, id)
		}
	case "B_SPLINE_SURFACE_WITH_KNOTS":
		if len(e.args) < 12 {
			return nil, fmt.Errorf("%w: truncated b-spline surface #%d", ErrTopologyInconsistent, id)
		}
		du := int(e.args[1].num)
		dv := int(e.args[2].num)
		grid := e.args[3].list
		var ctrl []md3.Vec
		countU := len(grid)
		countV := 0
		for _, row := range grid {
			if row.kind != attrList {
				return nil, &UnsupportedEntity{Type: "b_spline control grid"}
			}
			countV = len(row.list)
			for _, pr := range row.list {
				p, err := l.point(pr.ref)
				if err != nil {
					return nil, err
				}
				ctrl = append(ctrl, p)
			}
		}
		ku := expandKnots(e.args[8].list, e.args[10].list)
		kv := expandKnots(e.args[9].list, e.args[11].list)
		s, err := geom.NewNURBSSurface(du, dv, countU, countV, ku, kv, ctrl, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: bad b-spline surface #%d: %v", ErrTopologyInconsistent, id, err)
		}
		out = s
	default:
		return nil, &UnsupportedEntity{Type: e.typ}
	}
	l.surfs[id] = out
	return out, nil
}

// fitSurfaceRange narrows the unbounded axial range of imported
// cylinders and cones to their face's edge extent.
func fitSurfaceRange(spec brep.FaceSpec) geom.Surface {
	var axis, base md3.Vec
	switch s := spec.Surf.(type) {
	case *geom.Cylinder:
		axis, base = s.Axis(), s.Base()
	case *geom.Cone:
		axis, base = s.Axis(), s.Base()
	default:
		return spec.Surf
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	visit := func(ls brep.LoopSpec) {
		for _, u := range ls.Uses {
			if u.Curve == nil {
				continue
			}
			r := u.Curve.ParamRange()
			for i := 0; i <= 8; i++ {
				p := u.Curve.Evaluate(r.Lerp(float64(i) / 8))
				h := md3.Dot(md3.Sub(p, base), axis)
				lo = math.Min(lo, h)
				hi = math.Max(hi, h)
			}
		}
	}
	visit(spec.Outer)
	for _, il := range spec.Inner {
		visit(il)
	}
	if !(hi > lo) {
		return spec.Surf
	}
	pad := (hi - lo) * 1e-6
	rng := geom.ParamRange{Start: lo - pad, End: hi + pad}
	switch s := spec.Surf.(type) {
	case *geom.Cylinder:
		if out, err := geom.NewCylinder(s.Base(), s.Axis(), s.Radius(), rng); err == nil {
			return out
		}
	case *geom.Cone:
		if out, err := geom.NewCone(s.Base(), s.Axis(), s.RadiusAt(0), s.SemiAngle(), rng); err == nil {
			return out
		}
	}
	return spec.Surf
}
