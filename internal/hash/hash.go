// Package hash implements C3: the affine normalization of a quad into a
// translation- and scale-invariant point in [0,1]^4.
package hash

import (
	"github.com/mbortnyck/qfp/internal/quads"
)

// Hash is the 4-D normalized point (xC', yC', xD', yD') derived from a
// quad's C and D points against its A-B bounding box.
type Hash struct {
	XC, YC, XD, YD float64
}

// Of computes the hash of q. Ok is false if B.X == A.X or B.Y == A.Y, which
// the quad ordering invariant rules out for any quad that passed
// quads.Build/Select validation — this is a defensive precondition check,
// not an expected runtime path (§4.3).
func Of(q quads.Quad) (h Hash, ok bool) {
	dx := float64(q.B.X - q.A.X)
	dy := float64(q.B.Y - q.A.Y)
	if dx == 0 || dy == 0 {
		return Hash{}, false
	}
	ax, ay := float64(q.A.X), float64(q.A.Y)
	h = Hash{
		XC: (float64(q.C.X) - ax) / dx,
		YC: (float64(q.C.Y) - ay) / dy,
		XD: (float64(q.D.X) - ax) / dx,
		YD: (float64(q.D.Y) - ay) / dy,
	}
	return h, true
}

// InUnitCube reports whether every coordinate of h lies in [0,1], per
// invariant 2: every hash derived from a stored quad lies in the unit
// 4-cube.
func (h Hash) InUnitCube() bool {
	in := func(v float64) bool { return v >= 0 && v <= 1 }
	return in(h.XC) && in(h.YC) && in(h.XD) && in(h.YD)
}

// Box returns the closed axis-aligned box [h-eps, h+eps]^4 used for an
// epsilon range query against the spatial index (§4.4).
func (h Hash) Box(eps float64) (lo, hi [4]float64) {
	lo = [4]float64{h.XC - eps, h.YC - eps, h.XD - eps, h.YD - eps}
	hi = [4]float64{h.XC + eps, h.YC + eps, h.XD + eps, h.YD + eps}
	return lo, hi
}

// Point returns h as a flat 4-vector in the fixed axis order (XC, YC, XD,
// YD), matching the column order the spatial index stores.
func (h Hash) Point() [4]float64 {
	return [4]float64{h.XC, h.YC, h.XD, h.YD}
}
