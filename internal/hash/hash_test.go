package hash

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbortnyck/qfp/internal/quads"
)

func nearlyEqual(t *testing.T, got, want float64) {
	t.Helper()
	assert.InDelta(t, want, got, 1e-9)
}

// S1: hash = ((100-0)/400, (20-10)/30, (200-0)/400, (30-10)/30)
//          = (0.25, 0.333..., 0.5, 0.666...)
func TestOf_S1(t *testing.T) {
	q := quads.Quad{
		A: quads.Peak{X: 0, Y: 10},
		C: quads.Peak{X: 100, Y: 20},
		D: quads.Peak{X: 200, Y: 30},
		B: quads.Peak{X: 400, Y: 40},
	}

	h, ok := Of(q)

	require.True(t, ok)
	nearlyEqual(t, h.XC, 0.25)
	nearlyEqual(t, h.YC, 1.0/3.0)
	nearlyEqual(t, h.XD, 0.5)
	nearlyEqual(t, h.YD, 2.0/3.0)
	assert.True(t, h.InUnitCube())
}

// Invariant 3: translation invariance.
func TestOf_TranslationInvariant(t *testing.T) {
	base := quads.Quad{
		A: quads.Peak{X: 0, Y: 10},
		C: quads.Peak{X: 100, Y: 20},
		D: quads.Peak{X: 200, Y: 30},
		B: quads.Peak{X: 400, Y: 40},
	}
	shifted := quads.Quad{
		A: quads.Peak{X: 1000, Y: 15},
		C: quads.Peak{X: 1100, Y: 25},
		D: quads.Peak{X: 1200, Y: 35},
		B: quads.Peak{X: 1400, Y: 45},
	}

	h1, ok1 := Of(base)
	h2, ok2 := Of(shifted)

	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, h1, h2)
}

// Invariant 4: scale invariance (within floating-point rounding).
func TestOf_ScaleInvariant(t *testing.T) {
	base := quads.Quad{
		A: quads.Peak{X: 0, Y: 10},
		C: quads.Peak{X: 100, Y: 20},
		D: quads.Peak{X: 200, Y: 30},
		B: quads.Peak{X: 400, Y: 40},
	}
	sx, sy := 1.25, 1.10
	scale := func(p quads.Peak) quads.Peak {
		return quads.Peak{
			X: int(math.Round(float64(p.X) * sx)),
			Y: int(math.Round(float64(p.Y) * sy)),
		}
	}
	scaled := quads.Quad{A: scale(base.A), C: scale(base.C), D: scale(base.D), B: scale(base.B)}

	h1, ok1 := Of(base)
	h2, ok2 := Of(scaled)

	require.True(t, ok1)
	require.True(t, ok2)
	nearlyEqual(t, h2.XC, h1.XC)
	nearlyEqual(t, h2.YC, h1.YC)
	nearlyEqual(t, h2.XD, h1.XD)
	nearlyEqual(t, h2.YD, h1.YD)
}

func TestOf_DegenerateQuadRejected(t *testing.T) {
	q := quads.Quad{
		A: quads.Peak{X: 5, Y: 5},
		C: quads.Peak{X: 6, Y: 6},
		D: quads.Peak{X: 7, Y: 7},
		B: quads.Peak{X: 5, Y: 9}, // B.X == A.X
	}

	_, ok := Of(q)

	assert.False(t, ok)
}

func TestBox(t *testing.T) {
	h := Hash{XC: 0.5, YC: 0.5, XD: 0.5, YD: 0.5}

	lo, hi := h.Box(0.01)

	assert.Equal(t, [4]float64{0.49, 0.49, 0.49, 0.49}, lo)
	assert.Equal(t, [4]float64{0.51, 0.51, 0.51, 0.51}, hi)
}
