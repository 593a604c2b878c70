// Package config centralizes the fingerprint-type presets and matcher
// tuning constants named throughout the specification (§6, §9 redesign flag
// 5: "module-level numeric constants ... lift to a single MatcherConfig
// record"), plus the storage DSN selection the teacher's database layer
// uses (environment-variable driven, with sane local defaults).
package config

import "os"

// FpType selects the fingerprint parameter preset. The catalog holds
// Reference fingerprints; incoming clips are fingerprinted as Query.
type FpType int

const (
	// Reference is the catalog-side preset: fewer, stronger quads per
	// partition, a narrower window.
	Reference FpType = iota
	// Query is the incoming-clip preset: many more quads per partition, a
	// wider window, to maximize the chance of a geometric match surviving
	// moderate distortion.
	Query
)

func (t FpType) String() string {
	switch t {
	case Reference:
		return "reference"
	case Query:
		return "query"
	default:
		return "invalid"
	}
}

// Valid reports whether t is one of the two defined presets.
func (t FpType) Valid() bool {
	return t == Reference || t == Query
}

// FpParams holds the per-type parameters driving C1 (window) and C2
// (per-partition cap).
type FpParams struct {
	// Q is the quads-per-root cap feeding C2 (quads/root or per-bin cap in
	// the spec's table; here it is the per-partition retention count N).
	Q int
	// R is the C1 target-window width in frames.
	R int
	// C is the C1 target-window offset in frames.
	C int
	// W is the spectral peak-picking max-filter width.
	W int
	// H is the spectral peak-picking max-filter height.
	H int
}

// Params returns the fixed parameter set for the given FpType. It panics on
// an invalid type; callers that accept FpType from outside the package
// (e.g. CLI flags) must validate with Valid first and return
// errs.InvalidFpType themselves.
func Params(t FpType) FpParams {
	switch t {
	case Reference:
		return FpParams{Q: 9, R: 200, C: 325, W: 150, H: 75}
	case Query:
		return FpParams{Q: 500, R: 345, C: 360, W: 125, H: 60}
	default:
		panic("config: invalid FpType")
	}
}

// STFT parameters, fixed for both fingerprint types (§6).
const (
	FrameSize  = 1024
	HopSize    = 32
	SampleRate = 16000
)

// MatcherConfig collects every numeric constant the matcher pipeline (C6)
// and spatial index (C4) use, replacing what the source keeps as scattered
// module-level constants.
type MatcherConfig struct {
	// Epsilon is the ε-box half-width used to expand a hash into a range
	// query against the spatial index.
	Epsilon float64
	// ScaleTolerance (e) bounds the allowed pitch/time/frequency scale
	// ratio in Stage 1's rough filter tests.
	ScaleTolerance float64
	// FinePitchTolerance (eFine) bounds the Stage 1 fine pitch-coherence
	// test, in frequency bins.
	FinePitchTolerance float64
	// BinWidth (binwidth) is the Stage 2 temporal histogram bin width, in
	// frames.
	BinWidth int
	// MinBinSize (ts) is the minimum bin population surviving Stage 2 and
	// Stage 3.
	MinBinSize int
	// PeakWindowX (eX) is the Stage 4 x-axis (time) peak-verification
	// tolerance, in frames.
	PeakWindowX int
	// PeakWindowY (eY) is the Stage 4 y-axis (frequency) peak-verification
	// tolerance, in bins.
	PeakWindowY int
	// PeakHorizon bounds how far past offset Stage 4 fetches reference
	// peaks, in frames. Fixed at the expected query-clip length; see
	// SPEC_FULL.md §9 open question 3 for why this isn't derived from the
	// actual query duration in this version.
	PeakHorizon int
	// VThreshold (vThreshold) is the minimum vScore for Stage 5 emission.
	VThreshold float64
	// PartitionWidth (L) is the C2 partition width, in frames.
	PartitionWidth int
}

// DefaultMatcherConfig returns the §6 defaults.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Epsilon:            0.01,
		ScaleTolerance:     0.2,
		FinePitchTolerance: 1.8,
		BinWidth:           20,
		MinBinSize:         4,
		PeakWindowX:        18,
		PeakWindowY:        12,
		PeakHorizon:        3750,
		VThreshold:         0.5,
		PartitionWidth:     250,
	}
}

// StoreConfig selects and parameterizes the catalog/index backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// DSN is the driver-specific data source. For sqlite this is a file
	// path (or ":memory:"); for postgres it is a libpq connection string.
	DSN string
}

// StoreConfigFromEnv mirrors the teacher's getEnvOrDefault pattern: every
// setting has an explicit environment variable with a local-development
// fallback, so `cmd/qfpindex`/`cmd/qfpquery` need no flags to run against an
// embedded SQLite catalog out of the box.
func StoreConfigFromEnv() StoreConfig {
	return StoreConfig{
		Driver: getEnvOrDefault("QFP_STORE_DRIVER", "sqlite"),
		DSN:    getEnvOrDefault("QFP_STORE_DSN", "qfp.db"),
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
