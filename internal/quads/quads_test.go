package quads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbortnyck/qfp/internal/config"
)

// S1: peaks [(0,10),(100,20),(200,30),(400,40)] form exactly one valid
// quad (A=(0,10), C=(100,20), D=(200,30), B=(400,40)) once all four fall
// inside the root's target window. The window here is widened past the
// literal Reference preset so these widely-spaced synthetic peaks clear it;
// internal/hash tests the S1 hash arithmetic against this exact geometry.
func TestBuild_S1(t *testing.T) {
	peaks := []Peak{{0, 10}, {100, 20}, {200, 30}, {400, 40}}
	params := config.FpParams{Q: 9, R: 1000, C: 0, W: 150, H: 75}

	got := Build(peaks, params)

	require.Len(t, got, 1)
	want := Quad{A: Peak{0, 10}, C: Peak{100, 20}, D: Peak{200, 30}, B: Peak{400, 40}}
	assert.Equal(t, want, got[0])
}

// Peaks that fail the geometric ordering invariant produce no quads.
func TestBuild_RejectsInvalidOrdering(t *testing.T) {
	// A.y (100) is higher than every later point's y, so the A.y < C.y
	// requirement can never hold for any triple rooted here.
	peaks := []Peak{{0, 100}, {50, 10}, {75, 20}, {120, 30}}
	params := config.FpParams{Q: 9, R: 1000, C: 0, W: 150, H: 75}

	got := Build(peaks, params)

	assert.Empty(t, got)
}

func TestBuild_WindowPastEndOfSequenceYieldsNothing(t *testing.T) {
	peaks := []Peak{{0, 10}}
	params := config.Params(config.Reference)

	got := Build(peaks, params)

	assert.Empty(t, got)
}

// Invariant 1: every quad Build returns satisfies the ordering invariant.
func TestBuild_Invariant1(t *testing.T) {
	peaks := []Peak{
		{0, 5}, {10, 15}, {20, 25}, {30, 12}, {40, 40}, {60, 8}, {90, 60},
	}
	params := config.FpParams{Q: 9, R: 1000, C: 0, W: 150, H: 75}

	for _, q := range Build(peaks, params) {
		assert.Less(t, q.A.X, q.C.X)
		assert.LessOrEqual(t, q.C.X, q.D.X)
		assert.LessOrEqual(t, q.D.X, q.B.X)
		assert.Less(t, q.A.Y, q.C.Y)
		assert.Less(t, q.C.Y, q.B.Y)
		assert.Less(t, q.A.Y, q.D.Y)
		assert.LessOrEqual(t, q.D.Y, q.B.Y)
	}
}

// Invariant 5: in each 250-frame x-partition, at most N quads survive C2.
func TestSelect_PartitionCap(t *testing.T) {
	var all []Quad
	// Build far more than N=9 candidate quads, all within the same
	// [0,250) partition (all roots A.X == 0).
	for i := 0; i < 30; i++ {
		all = append(all, Quad{
			A: Peak{0, 1},
			C: Peak{10 + i, 20},
			D: Peak{20 + i, 30},
			B: Peak{100 + i, 40},
		})
	}
	spec := make(Spectrogram, 300)
	for i := range spec {
		spec[i] = make([]float64, 200)
	}
	for i, q := range all {
		spec[q.C.X][q.C.Y] = float64(i)
		spec[q.D.X][q.D.Y] = float64(i)
	}
	params := config.Params(config.Reference)

	selected := Select(all, spec, params, 250)

	assert.LessOrEqual(t, len(selected), params.Q)
}

func TestSelect_PrefersHigherStrength(t *testing.T) {
	weak := Quad{A: Peak{0, 1}, C: Peak{10, 20}, D: Peak{20, 30}, B: Peak{100, 40}}
	strong := Quad{A: Peak{0, 1}, C: Peak{11, 21}, D: Peak{21, 31}, B: Peak{101, 41}}
	spec := make(Spectrogram, 300)
	for i := range spec {
		spec[i] = make([]float64, 200)
	}
	spec[weak.C.X][weak.C.Y] = 1
	spec[weak.D.X][weak.D.Y] = 1
	spec[strong.C.X][strong.C.Y] = 100
	spec[strong.D.X][strong.D.Y] = 100

	params := config.FpParams{Q: 1, R: 200, C: 325, W: 150, H: 75}
	selected := Select([]Quad{weak, strong}, spec, params, 250)

	require.Len(t, selected, 1)
	assert.Equal(t, strong, selected[0])
}
