// Package spectral is the classical-DSP front end the fingerprinting core
// treats as an external collaborator (§1): the short-time Fourier
// transform and the local-maximum peak picking that turn a PCM sample
// buffer into a spectrogram and a peak list.
package spectral

import (
	"math"

	"github.com/mbortnyck/qfp/internal/config"
	"github.com/mbortnyck/qfp/internal/quads"
)

// STFT computes the magnitude-in-dB spectrogram of mono 16-bit PCM samples
// (already resampled to 16 kHz by the decoder), using the fixed framing
// parameters of §6: framesize 1024, hopsize 32, Hanning window.
//
// magnitude -> dB conversion is 20*log10(|X| / 1e-5), with -Inf clamped to
// 0 (§6).
func STFT(samples []float64) quads.Spectrogram {
	window := hann(config.FrameSize)
	numFrames := 0
	if len(samples) >= config.FrameSize {
		numFrames = (len(samples)-config.FrameSize)/config.HopSize + 1
	}

	spec := make(quads.Spectrogram, numFrames)
	buf := make([]float64, config.FrameSize)
	for f := 0; f < numFrames; f++ {
		start := f * config.HopSize
		for i := 0; i < config.FrameSize; i++ {
			buf[i] = samples[start+i] * window[i]
		}
		mags := magnitudeDB(buf)
		spec[f] = mags
	}
	return spec
}

// hann returns the n-point Hanning window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// magnitudeDB computes |DFT(frame)| in dB for the non-negative frequency
// bins, using a direct DFT (adequate at this frame size; a production
// build would substitute an FFT without changing this function's
// contract).
func magnitudeDB(frame []float64) []float64 {
	n := len(frame)
	bins := n/2 + 1
	out := make([]float64, bins)
	for k := 0; k < bins; k++ {
		var re, im float64
		for t := 0; t < n; t++ {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			re += frame[t] * math.Cos(angle)
			im += frame[t] * math.Sin(angle)
		}
		mag := math.Hypot(re, im)
		db := 20 * math.Log10(mag/1e-5)
		if math.IsInf(db, -1) {
			db = 0
		}
		out[k] = db
	}
	return out
}

// FindPeaks picks strict local maxima from spec: a cell is a peak when it
// is greater than every other cell in its neighborhood of width x height =
// w x h (fingerprint-type dependent, §6), with w and h raised to at least 3.
// Peaks are returned sorted ascending by X then Y, the order internal/quads
// requires.
func FindPeaks(spec quads.Spectrogram, w, h int) []quads.Peak {
	const minWidth, minHeight = 3, 3
	if w < minWidth {
		w = minWidth
	}
	if h < minHeight {
		h = minHeight
	}

	var peaks []quads.Peak
	for x := range spec {
		row := spec[x]
		for y := range row {
			v := row[y]
			if isLocalMax(spec, x, y, v, w, h) {
				peaks = append(peaks, quads.Peak{X: x, Y: y})
			}
		}
	}
	return peaks
}

func isLocalMax(spec quads.Spectrogram, x, y int, v float64, w, h int) bool {
	x0, x1 := x-w/2, x+w/2
	y0, y1 := y-h/2, y+h/2
	for i := x0; i <= x1; i++ {
		if i < 0 || i >= len(spec) {
			continue
		}
		row := spec[i]
		for j := y0; j <= y1; j++ {
			if j < 0 || j >= len(row) {
				continue
			}
			if i == x && j == y {
				continue
			}
			if row[j] >= v {
				return false
			}
		}
	}
	return true
}
