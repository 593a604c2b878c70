package fingerprint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbortnyck/qfp/internal/config"
	"github.com/mbortnyck/qfp/internal/errs"
)

func TestBuild_InvalidFpType(t *testing.T) {
	_, err := Build([]float64{0}, config.FpType(99))

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidFpType))
}

func TestBuild_TooShortForInvalidAudioLength(t *testing.T) {
	_, err := Build(make([]float64, 10), config.Reference)

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidAudioLength))
}

func TestBuild_SilenceYieldsNoQuadsOrTooFewPeaks(t *testing.T) {
	// A silent clip, just over the Reference window-offset threshold, has
	// no spectral peaks at all.
	samples := make([]float64, config.FrameSize+400*config.HopSize)

	_, err := Build(samples, config.Reference)

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.TooFewPeaks) || errs.Is(err, errs.NoQuadsFound))
}

func TestBuild_ToneProducesFingerprint(t *testing.T) {
	// Just over the Query preset's window-offset threshold (c=360 frames);
	// a frequency sweep gives successive peaks distinct y values, which a
	// pure tone would not (quads require strictly increasing y).
	n := config.FrameSize + 400*config.HopSize
	samples := make([]float64, n)
	for i := range samples {
		sweepHz := 300.0 + 2000.0*float64(i)/float64(n)
		samples[i] = math.Sin(2 * math.Pi * sweepHz * float64(i) / float64(config.SampleRate))
	}

	fp, err := Build(samples, config.Query)

	require.NoError(t, err)
	assert.Equal(t, config.Query, fp.Type)
	assert.Len(t, fp.Hashes, len(fp.Quads))
}
