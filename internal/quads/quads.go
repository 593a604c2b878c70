// Package quads implements C1 (peak geometry) and C2 (quad selector): the
// geometric construction of quads from a peak list, and the per-partition
// strength-based selection that bounds quad density.
package quads

import (
	"sort"

	"github.com/mbortnyck/qfp/internal/config"
)

// Peak is a local time-frequency maximum. X is the STFT frame index, Y the
// frequency bin; both are non-negative integers. A Peak slice handled by
// this package must be sorted ascending by X, then Y.
type Peak struct {
	X, Y int
}

// Quad is a validated geometric 4-tuple (A, C, D, B): A is the root, B the
// far corner, C and D the interior points. Every Quad produced by Build
// satisfies the ordering invariant:
//
//	A.x < C.x <= D.x <= B.x
//	A.y < C.y < B.y  and  A.y < D.y <= B.y
type Quad struct {
	A, C, D, B Peak
}

// valid reports whether the four peaks, treated as (A, C, D, B) in that
// order, satisfy the quad ordering invariant.
func valid(a, c, d, b Peak) bool {
	if !(a.X < c.X && c.X <= d.X && d.X <= b.X) {
		return false
	}
	if !(a.Y < c.Y && c.Y < b.Y) {
		return false
	}
	if !(a.Y < d.Y && d.Y <= b.Y) {
		return false
	}
	return true
}

// window returns the half-open index range [lo, hi) of peaks, sorted
// ascending by X, falling in the target window [root.X+c-r/2, root.X+c+r/2].
func window(peaks []Peak, root Peak, r, c int) (lo, hi int) {
	start := root.X + c - r/2
	end := root.X + c + r/2
	lo = sort.Search(len(peaks), func(i int) bool { return peaks[i].X >= start })
	hi = sort.Search(len(peaks), func(i int) bool { return peaks[i].X > end })
	return lo, hi
}

// Build runs C1: for every peak taken as a candidate root A, extracts the
// target-window sub-sequence and enumerates ordered triples (P1,P2,P3) with
// P1.X<=P2.X<=P3.X, accepting (A, P1, P2, P3) as (A, C, D, B) iff it
// satisfies the ordering invariant. Peaks must already be sorted ascending
// by X then Y. Returns nil, not an error, if no quads validate anywhere —
// per §4.1, an empty result is not a failure in itself; TooFewPeaks/
// NoQuadsFound are surfaced by the caller (internal/fingerprint) which
// knows the full peak count.
func Build(peaks []Peak, params config.FpParams) []Quad {
	var out []Quad
	for i, root := range peaks {
		lo, hi := window(peaks, root, params.R, params.C)
		if lo >= len(peaks) {
			// Window starts past the end of the peak sequence.
			continue
		}
		sub := peaks[lo:hi]
		if len(sub) < 3 {
			continue
		}
		_ = i
		for a := 0; a < len(sub); a++ {
			for b := a + 1; b < len(sub); b++ {
				for c := b + 1; c < len(sub); c++ {
					p1, p2, p3 := sub[a], sub[b], sub[c]
					if valid(root, p1, p2, p3) {
						out = append(out, Quad{A: root, C: p1, D: p2, B: p3})
					}
				}
			}
		}
	}
	return out
}

// Spectrogram is the magnitude-in-dB grid C2 reads spectral strength from,
// indexed [frame][bin].
type Spectrogram [][]float64

// At returns the magnitude at (x,y), or 0 if out of range.
func (s Spectrogram) At(x, y int) float64 {
	if x < 0 || x >= len(s) {
		return 0
	}
	row := s[x]
	if y < 0 || y >= len(row) {
		return 0
	}
	return row[y]
}

// strength computes S(quad) = spec[C.x][C.y] + spec[D.x][D.y].
func strength(spec Spectrogram, q Quad) float64 {
	return spec.At(q.C.X, q.C.Y) + spec.At(q.D.X, q.D.Y)
}

// Select runs C2: partitions quads by A.X into bins of width L, and within
// each bin retains the N quads maximizing spectral strength, N = params.Q.
// Ties are broken by original index (stable sort), which is deterministic.
func Select(quads []Quad, spec Spectrogram, params config.FpParams, partitionWidth int) []Quad {
	type scored struct {
		idx int
		s   float64
		q   Quad
	}
	bins := make(map[int][]scored)
	for i, q := range quads {
		bin := q.A.X / partitionWidth
		bins[bin] = append(bins[bin], scored{idx: i, s: strength(spec, q), q: q})
	}

	binKeys := make([]int, 0, len(bins))
	for k := range bins {
		binKeys = append(binKeys, k)
	}
	sort.Ints(binKeys)

	var out []Quad
	for _, k := range binKeys {
		entries := bins[k]
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].s != entries[j].s {
				return entries[i].s > entries[j].s
			}
			return entries[i].idx < entries[j].idx
		})
		n := params.Q
		if n > len(entries) {
			n = len(entries)
		}
		for _, e := range entries[:n] {
			out = append(out, e.q)
		}
	}
	return out
}
