// Package fingerprint orchestrates C1 (peak geometry), C2 (quad selector),
// and C3 (hasher) into the single Build call each recording or query clip
// goes through, mirroring the teacher's Config+staged-pipeline shape
// (internal/fingerprint/fingerprint.go) generalized to the quad-geometry
// model instead of anchor-target hashing.
package fingerprint

import (
	"github.com/mbortnyck/qfp/internal/config"
	"github.com/mbortnyck/qfp/internal/errs"
	"github.com/mbortnyck/qfp/internal/hash"
	"github.com/mbortnyck/qfp/internal/quads"
	"github.com/mbortnyck/qfp/internal/spectral"
)

// Fingerprint is the (peaks, quads, hashes) triple for one recording or
// query clip, built with a specific FpType's parameter preset.
type Fingerprint struct {
	Type   config.FpType
	Peaks  []quads.Peak
	Quads  []quads.Quad
	Hashes []hash.Hash
}

// minPeaks is the §7 TooFewPeaks threshold.
const minPeaks = 4

// Build runs the full C1->C2->C3 pipeline over samples (mono PCM at the
// spectral front end's expected sample rate) for the given fingerprint
// type. It surfaces the §7 error kinds rather than returning a degenerate
// Fingerprint.
func Build(samples []float64, fpType config.FpType) (*Fingerprint, error) {
	if !fpType.Valid() {
		return nil, errs.New("fingerprint.Build", errs.InvalidFpType)
	}
	params := config.Params(fpType)

	spec := spectral.STFT(samples)
	if len(spec) < params.C {
		return nil, errs.New("fingerprint.Build", errs.InvalidAudioLength)
	}

	peaks := spectral.FindPeaks(spec, params.W, params.H)
	if len(peaks) < minPeaks {
		return nil, errs.New("fingerprint.Build", errs.TooFewPeaks)
	}

	candidates := quads.Build(peaks, params)
	if len(candidates) == 0 {
		return nil, errs.New("fingerprint.Build", errs.NoQuadsFound)
	}

	partitionWidth := config.DefaultMatcherConfig().PartitionWidth
	selected := quads.Select(candidates, spec, params, partitionWidth)

	hashes := make([]hash.Hash, 0, len(selected))
	validQuads := make([]quads.Quad, 0, len(selected))
	for _, q := range selected {
		h, ok := hash.Of(q)
		if !ok {
			continue
		}
		hashes = append(hashes, h)
		validQuads = append(validQuads, q)
	}

	return &Fingerprint{
		Type:   fpType,
		Peaks:  peaks,
		Quads:  validQuads,
		Hashes: hashes,
	}, nil
}
