package ops

import (
	"github.com/dhconnelly/rtreego"
	"github.com/soypat/geometry/md3"

	"github.com/novacad/nova/brep"
	"github.com/novacad/nova/nmath"
)

// faceIndex is an R-tree over face bounding boxes; the Boolean
// intersection phase and ray classification query it so the all-pairs
// cost stays near linear for well separated features.
type faceIndex struct {
	tree *rtreego.Rtree
}

type faceEntry struct {
	face brep.FaceID
	rect rtreego.Rect
}

func (e *faceEntry) Bounds() rtreego.Rect { return e.rect }

// newFaceIndex builds the index over all live faces of the body.
func newFaceIndex(b *brep.Body, pad float64) *faceIndex {
	idx := &faceIndex{tree: rtreego.NewTree(3, 4, 16)}
	b.Faces(func(f brep.FaceID) bool {
		box := faceBounds(b, f)
		if nmath.BoxIsEmpty(box) {
			return true
		}
		box = nmath.GrowBox(box, pad)
		r, err := rtreego.NewRect(
			rtreego.Point{box.Min.X, box.Min.Y, box.Min.Z},
			[]float64{box.Max.X - box.Min.X, box.Max.Y - box.Min.Y, box.Max.Z - box.Min.Z},
		)
		if err != nil {
			return true
		}
		idx.tree.Insert(&faceEntry{face: f, rect: r})
		return true
	})
	return idx
}

// query returns the faces whose padded bounds intersect box.
func (idx *faceIndex) query(box md3.Box) []brep.FaceID {
	if nmath.BoxIsEmpty(box) {
		return nil
	}
	r, err := rtreego.NewRect(
		rtreego.Point{box.Min.X, box.Min.Y, box.Min.Z},
		[]float64{box.Max.X - box.Min.X, box.Max.Y - box.Min.Y, box.Max.Z - box.Min.Z},
	)
	if err != nil {
		return nil
	}
	var out []brep.FaceID
	for _, sp := range idx.tree.SearchIntersect(r) {
		out = append(out, sp.(*faceEntry).face)
	}
	return out
}

// faceBounds bounds a face by its edge curves; for full-period faces
// (no useful edge extent in one direction) the surface bound over the
// canonical domain is used instead.
func faceBounds(b *brep.Body, f brep.FaceID) md3.Box {
	box := nmath.EmptyBox()
	b.FaceEdges(f, func(e brep.EdgeID) bool {
		if c, err := b.EdgeCurve(e); err == nil && c != nil {
			box = box.Union(c.BoundsOf(c.ParamRange()))
		}
		return true
	})
	surf, err := b.FaceSurface(f)
	if err != nil || surf == nil {
		return box
	}
	sb := surf.BoundsOf(surf.UVRange())
	if nmath.BoxIsEmpty(box) {
		return sb
	}
	// Periodic surfaces can bulge past their boundary curves.
	if surf.PeriodicU() || surf.PeriodicV() {
		return box.Union(clipBox(sb, nmath.GrowBox(box, 0.5*nmath.BoxDiagonal(box))))
	}
	return box
}

func clipBox(a, lim md3.Box) md3.Box {
	a.Min = md3.MaxElem(a.Min, lim.Min)
	a.Max = md3.MinElem(a.Max, lim.Max)
	if nmath.BoxIsEmpty(a) {
		return lim
	}
	return a
}
