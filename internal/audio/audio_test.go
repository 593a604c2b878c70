package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPCM16ToFloat(t *testing.T) {
	// little-endian int16: 0, 16384, -32768
	raw := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x80}

	got := pcm16ToFloat(raw)

	assert.InDelta(t, 0.0, got[0], 1e-9)
	assert.InDelta(t, 0.5, got[1], 1e-4)
	assert.InDelta(t, -1.0, got[2], 1e-4)
}

func TestDownmix_Stereo(t *testing.T) {
	samples := []float64{1, 3, 2, 4} // (L,R),(L,R)

	got := downmix(samples, 2)

	assert.Equal(t, []float64{2, 3}, got)
}

func TestResample_Identity(t *testing.T) {
	samples := []float64{1, 2, 3}

	got := resample(samples, 16000, 16000)

	assert.Equal(t, samples, got)
}

func TestNormalizeLoudness_ScalesToTarget(t *testing.T) {
	samples := []float64{0.1, -0.2, 0.05}

	NormalizeLoudness(samples, -20)

	peak := 0.0
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	assert.InDelta(t, dbToLinear(-20), peak, 1e-6)
}
