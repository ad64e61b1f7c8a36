package nmath

import (
	"math"
	"math/big"

	"github.com/soypat/geometry/md2"
	"github.com/soypat/geometry/md3"
)

// Adaptive geometric predicates. Each predicate first evaluates the
// determinant in plain floating point together with a certified error
// bound; when the magnitude of the result exceeds the bound the sign is
// provably correct and is returned directly. Otherwise the determinant
// is re-evaluated exactly over rationals. The sign of a nonzero exact
// determinant is therefore never flipped by roundoff.
//
// Error bound constants follow Shewchuk's derivation for the direct
// floating point evaluation of each determinant.
var (
	ccwErrBound = (3.0 + 16.0*machEps) * machEps
	o3dErrBound = (7.0 + 56.0*machEps) * machEps
	iccErrBound = (10.0 + 96.0*machEps) * machEps
	ispErrBound = (16.0 + 224.0*machEps) * machEps
)

// Orient2D returns a positive value when the points a, b, c wind
// counterclockwise, negative when clockwise, and exactly zero when they
// are collinear. Only the sign and zeroness are certified; the
// magnitude is twice the signed triangle area up to roundoff.
func Orient2D(a, b, c md2.Vec) float64 {
	detLeft := (a.X - c.X) * (b.Y - c.Y)
	detRight := (a.Y - c.Y) * (b.X - c.X)
	det := detLeft - detRight

	if detLeft > 0 {
		if detRight <= 0 {
			return det
		}
	} else if detLeft < 0 {
		if detRight >= 0 {
			return det
		}
	} else {
		return det // detLeft == 0, det is exact.
	}
	errBound := ccwErrBound * (math.Abs(detLeft) + math.Abs(detRight))
	if det >= errBound || -det >= errBound {
		return det
	}
	return orient2DExact(a, b, c)
}

// Orient3D returns a positive value when d lies below the plane through
// a, b, c (with abc counterclockwise viewed from above), negative when
// above, zero when coplanar.
func Orient3D(a, b, c, d md3.Vec) float64 {
	adx, ady, adz := a.X-d.X, a.Y-d.Y, a.Z-d.Z
	bdx, bdy, bdz := b.X-d.X, b.Y-d.Y, b.Z-d.Z
	cdx, cdy, cdz := c.X-d.X, c.Y-d.Y, c.Z-d.Z

	bdxcdy := bdx * cdy
	cdxbdy := cdx * bdy
	cdxady := cdx * ady
	adxcdy := adx * cdy
	adxbdy := adx * bdy
	bdxady := bdx * ady

	det := adz*(bdxcdy-cdxbdy) + bdz*(cdxady-adxcdy) + cdz*(adxbdy-bdxady)

	permanent := (math.Abs(bdxcdy)+math.Abs(cdxbdy))*math.Abs(adz) +
		(math.Abs(cdxady)+math.Abs(adxcdy))*math.Abs(bdz) +
		(math.Abs(adxbdy)+math.Abs(bdxady))*math.Abs(cdz)
	errBound := o3dErrBound * permanent
	if det > errBound || -det > errBound {
		return det
	}
	return orient3DExact(a, b, c, d)
}

// InCircle returns a positive value when d lies inside the circle
// through a, b, c (counterclockwise), negative outside, zero on the
// circle.
func InCircle(a, b, c, d md2.Vec) float64 {
	adx, ady := a.X-d.X, a.Y-d.Y
	bdx, bdy := b.X-d.X, b.Y-d.Y
	cdx, cdy := c.X-d.X, c.Y-d.Y

	bdxcdy := bdx * cdy
	cdxbdy := cdx * bdy
	alift := adx*adx + ady*ady

	cdxady := cdx * ady
	adxcdy := adx * cdy
	blift := bdx*bdx + bdy*bdy

	adxbdy := adx * bdy
	bdxady := bdx * ady
	clift := cdx*cdx + cdy*cdy

	det := alift*(bdxcdy-cdxbdy) + blift*(cdxady-adxcdy) + clift*(adxbdy-bdxady)

	permanent := (math.Abs(bdxcdy)+math.Abs(cdxbdy))*alift +
		(math.Abs(cdxady)+math.Abs(adxcdy))*blift +
		(math.Abs(adxbdy)+math.Abs(bdxady))*clift
	errBound := iccErrBound * permanent
	if det > errBound || -det > errBound {
		return det
	}
	return inCircleExact(a, b, c, d)
}

// InSphere returns a positive value when e lies inside the sphere
// through a, b, c, d (positively oriented), negative outside, zero on
// the sphere.
func InSphere(a, b, c, d, e md3.Vec) float64 {
	aex, aey, aez := a.X-e.X, a.Y-e.Y, a.Z-e.Z
	bex, bey, bez := b.X-e.X, b.Y-e.Y, b.Z-e.Z
	cex, cey, cez := c.X-e.X, c.Y-e.Y, c.Z-e.Z
	dex, dey, dez := d.X-e.X, d.Y-e.Y, d.Z-e.Z

	ab := aex*bey - bex*aey
	bc := bex*cey - cex*bey
	cd := cex*dey - dex*cey
	da := dex*aey - aex*dey
	ac := aex*cey - cex*aey
	bd := bex*dey - dex*bey

	abc := aez*bc - bez*ac + cez*ab
	bcd := bez*cd - cez*bd + dez*bc
	cda := cez*da + dez*ac + aez*cd
	dab := dez*ab + aez*bd + bez*da

	alift := aex*aex + aey*aey + aez*aez
	blift := bex*bex + bey*bey + bez*bez
	clift := cex*cex + cey*cey + cez*cez
	dlift := dex*dex + dey*dey + dez*dez

	det := (dlift*abc - clift*dab) + (blift*cda - alift*bcd)

	aezplus, bezplus := math.Abs(aez), math.Abs(bez)
	cezplus, dezplus := math.Abs(cez), math.Abs(dez)
	permanent := ((math.Abs(cd)+math.Abs(bd)+math.Abs(bc))*aezplus+
		(math.Abs(cd)+math.Abs(ac)+math.Abs(da))*bezplus)*blift +
		((math.Abs(bd)+math.Abs(da)+math.Abs(ab))*cezplus+
			(math.Abs(bc)+math.Abs(ac)+math.Abs(ab))*dezplus)*dlift +
		((math.Abs(bc)+math.Abs(ab))*dezplus+math.Abs(cd)*aezplus)*clift +
		((math.Abs(da)+math.Abs(ab))*aezplus+math.Abs(cd)*bezplus)*alift
	errBound := ispErrBound * permanent
	if det > errBound || -det > errBound {
		return det
	}
	return inSphereExact(a, b, c, d, e)
}

// Exact fallbacks evaluate the determinants over big.Rat. Inputs are
// binary floats so the conversion is lossless and the sign is exact.

func rat(x float64) *big.Rat { return new(big.Rat).SetFloat64(x) }

func ratSub(a, b float64) *big.Rat { return new(big.Rat).Sub(rat(a), rat(b)) }

func signedFloat(r *big.Rat) float64 {
	switch r.Sign() {
	case -1:
		return -1
	case 1:
		return 1
	}
	return 0
}

func orient2DExact(a, b, c md2.Vec) float64 {
	acx, acy := ratSub(a.X, c.X), ratSub(a.Y, c.Y)
	bcx, bcy := ratSub(b.X, c.X), ratSub(b.Y, c.Y)
	det := new(big.Rat).Sub(
		new(big.Rat).Mul(acx, bcy),
		new(big.Rat).Mul(acy, bcx),
	)
	return signedFloat(det)
}

func det3Rat(m [3][3]*big.Rat) *big.Rat {
	minor := func(a, b, c, d *big.Rat) *big.Rat {
		return new(big.Rat).Sub(new(big.Rat).Mul(a, d), new(big.Rat).Mul(b, c))
	}
	det := new(big.Rat).Mul(m[0][0], minor(m[1][1], m[1][2], m[2][1], m[2][2]))
	det.Sub(det, new(big.Rat).Mul(m[0][1], minor(m[1][0], m[1][2], m[2][0], m[2][2])))
	det.Add(det, new(big.Rat).Mul(m[0][2], minor(m[1][0], m[1][1], m[2][0], m[2][1])))
	return det
}

func det4Rat(m [4][4]*big.Rat) *big.Rat {
	det := new(big.Rat)
	for col := 0; col < 4; col++ {
		var sub [3][3]*big.Rat
		for i := 1; i < 4; i++ {
			sj := 0
			for j := 0; j < 4; j++ {
				if j == col {
					continue
				}
				sub[i-1][sj] = m[i][j]
				sj++
			}
		}
		term := new(big.Rat).Mul(m[0][col], det3Rat(sub))
		if col%2 == 0 {
			det.Add(det, term)
		} else {
			det.Sub(det, term)
		}
	}
	return det
}

func orient3DExact(a, b, c, d md3.Vec) float64 {
	m := [3][3]*big.Rat{
		{ratSub(a.X, d.X), ratSub(a.Y, d.Y), ratSub(a.Z, d.Z)},
		{ratSub(b.X, d.X), ratSub(b.Y, d.Y), ratSub(b.Z, d.Z)},
		{ratSub(c.X, d.X), ratSub(c.Y, d.Y), ratSub(c.Z, d.Z)},
	}
	return signedFloat(det3Rat(m))
}

func inCircleExact(a, b, c, d md2.Vec) float64 {
	lift := func(x, y *big.Rat) *big.Rat {
		return new(big.Rat).Add(new(big.Rat).Mul(x, x), new(big.Rat).Mul(y, y))
	}
	rows := [3][2]*big.Rat{
		{ratSub(a.X, d.X), ratSub(a.Y, d.Y)},
		{ratSub(b.X, d.X), ratSub(b.Y, d.Y)},
		{ratSub(c.X, d.X), ratSub(c.Y, d.Y)},
	}
	var m [3][3]*big.Rat
	for i, r := range rows {
		m[i] = [3]*big.Rat{r[0], r[1], lift(r[0], r[1])}
	}
	return signedFloat(det3Rat(m))
}

func inSphereExact(a, b, c, d, e md3.Vec) float64 {
	lift := func(x, y, z *big.Rat) *big.Rat {
		s := new(big.Rat).Mul(x, x)
		s.Add(s, new(big.Rat).Mul(y, y))
		s.Add(s, new(big.Rat).Mul(z, z))
		return s
	}
	pts := [4]md3.Vec{a, b, c, d}
	var m [4][4]*big.Rat
	for i, p := range pts {
		x, y, z := ratSub(p.X, e.X), ratSub(p.Y, e.Y), ratSub(p.Z, e.Z)
		m[i] = [4]*big.Rat{x, y, z, lift(x, y, z)}
	}
	return signedFloat(det4Rat(m))
}
