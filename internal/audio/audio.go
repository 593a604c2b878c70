// Package audio decodes arbitrary audio containers into the mono/16kHz/
// 16-bit PCM samples the spectral front end requires (§6 "Audio input").
// The primary path shells out to ffmpeg, mirroring the process-pipe idiom
// the teacher uses for its media pipeline; WAV and MP3 get a native fast
// path so tests don't need an ffmpeg binary on the runner.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Decoder decodes an audio file into mono float64 PCM samples at 16 kHz,
// normalized to [-1, 1].
type Decoder interface {
	Decode(ctx context.Context, path string) ([]float64, error)
}

// FFmpegDecoder shells out to the system ffmpeg binary, the teacher's
// approach for any media transform it needs (internal/audio/ffmpeg.go):
// pipe raw PCM to stdout rather than writing an intermediate file.
type FFmpegDecoder struct {
	// Snip, if positive, truncates the decoded clip to its first Snip
	// seconds (§6).
	Snip float64
}

func (d FFmpegDecoder) Decode(ctx context.Context, path string) ([]float64, error) {
	args := []string{
		"-v", "error",
		"-i", path,
		"-f", "s16le",
		"-ac", "1",
		"-ar", "16000",
	}
	if d.Snip > 0 {
		args = append(args, "-t", fmt.Sprintf("%f", d.Snip))
	}
	args = append(args, "-")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("audio: ffmpeg decode %s: %w: %s", path, err, stderr.String())
	}
	return pcm16ToFloat(stdout.Bytes()), nil
}

// CheckFFmpegInstallation reports whether an ffmpeg binary is reachable on
// PATH, so callers can fail fast with a clear error instead of a confusing
// exec.ErrNotFound deep in Decode.
func CheckFFmpegInstallation() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("audio: ffmpeg not found on PATH: %w", err)
	}
	return nil
}

// WAVDecoder decodes PCM WAV files natively via github.com/go-audio/wav,
// then downmixes and resamples to mono 16 kHz (see decodeWithReader).
type WAVDecoder struct{}

func (WAVDecoder) Decode(_ context.Context, path string) ([]float64, error) {
	return decodeWithReader(path, func(r io.ReadSeeker) ([]float64, int, int, error) {
		d := wav.NewDecoder(r)
		if !d.IsValidFile() {
			return nil, 0, 0, fmt.Errorf("audio: not a valid WAV file")
		}
		buf, err := d.FullPCMBuffer()
		if err != nil {
			return nil, 0, 0, fmt.Errorf("audio: decode wav: %w", err)
		}
		samples := make([]float64, len(buf.Data))
		maxVal := float64(int(1) << (buf.SourceBitDepth - 1))
		for i, s := range buf.Data {
			samples[i] = float64(s) / maxVal
		}
		return samples, int(d.SampleRate), int(d.NumChans), nil
	})
}

// MP3Decoder decodes MP3 files natively via github.com/hajimehoshi/go-mp3.
type MP3Decoder struct{}

func (MP3Decoder) Decode(_ context.Context, path string) ([]float64, error) {
	return decodeWithReader(path, func(r io.ReadSeeker) ([]float64, int, int, error) {
		dec, err := mp3.NewDecoder(r)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("audio: decode mp3: %w", err)
		}
		raw, err := io.ReadAll(dec)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("audio: read mp3 stream: %w", err)
		}
		// go-mp3 always emits signed 16-bit little-endian stereo.
		const bytesPerFrame = 4
		numFrames := len(raw) / bytesPerFrame
		samples := make([]float64, numFrames)
		for i := 0; i < numFrames; i++ {
			l := int16(binary.LittleEndian.Uint16(raw[i*bytesPerFrame:]))
			rr := int16(binary.LittleEndian.Uint16(raw[i*bytesPerFrame+2:]))
			mono := (int32(l) + int32(rr)) / 2
			samples[i] = float64(mono) / 32768.0
		}
		return samples, dec.SampleRate(), 1, nil
	})
}

// NormalizeLoudness scales samples so their peak absolute amplitude sits at
// targetDBFS (default -20 dBFS per §6), a coarse but adequate loudness
// normalization for fingerprinting purposes.
func NormalizeLoudness(samples []float64, targetDBFS float64) {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	targetLinear := dbToLinear(targetDBFS)
	gain := targetLinear / peak
	for i := range samples {
		samples[i] *= gain
	}
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// pcm16ToFloat converts little-endian signed 16-bit PCM bytes to float64
// samples normalized to [-1, 1].
func pcm16ToFloat(raw []byte) []float64 {
	n := len(raw) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		out[i] = float64(s) / 32768.0
	}
	return out
}

// decodeWithReader opens path and hands an io.ReadSeeker to decode, then
// downmixes/resamples its output to mono 16 kHz via downmix and resample.
func decodeWithReader(path string, decode func(io.ReadSeeker) ([]float64, int, int, error)) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	samples, sampleRate, numChans, err := decode(f)
	if err != nil {
		return nil, err
	}
	if numChans > 1 {
		samples = downmix(samples, numChans)
	}
	if sampleRate != 16000 {
		samples = resample(samples, sampleRate, 16000)
	}
	return samples, nil
}

// downmix averages interleaved channels down to mono.
func downmix(samples []float64, numChans int) []float64 {
	n := len(samples) / numChans
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < numChans; c++ {
			sum += samples[i*numChans+c]
		}
		out[i] = sum / float64(numChans)
	}
	return out
}

// resample performs simple linear-interpolation resampling. Adequate for
// fingerprinting purposes; a production build might prefer a polyphase
// resampler for audio fidelity, which isn't a concern here.
func resample(samples []float64, from, to int) []float64 {
	if from == to || len(samples) == 0 {
		return samples
	}
	ratio := float64(to) / float64(from)
	n := int(float64(len(samples)) * ratio)
	out := make([]float64, n)
	for i := range out {
		srcPos := float64(i) / ratio
		i0 := int(srcPos)
		frac := srcPos - float64(i0)
		i1 := i0 + 1
		if i1 >= len(samples) {
			i1 = len(samples) - 1
		}
		if i0 >= len(samples) {
			i0 = len(samples) - 1
		}
		out[i] = samples[i0]*(1-frac) + samples[i1]*frac
	}
	return out
}
