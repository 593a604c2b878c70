// Package match implements C6: the multi-stage matcher that turns a
// query's hash hits into verified matches against the catalog
// (filter -> bin -> outlier -> verify -> emit, §4.6).
package match

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mbortnyck/qfp/internal/config"
	"github.com/mbortnyck/qfp/internal/errs"
	"github.com/mbortnyck/qfp/internal/hash"
	"github.com/mbortnyck/qfp/internal/index"
	"github.com/mbortnyck/qfp/internal/quads"
	"github.com/mbortnyck/qfp/internal/store"
)

// QueryFingerprint is a query clip's (hashes, quads, peaks) triple. Hashes
// and Quads are parallel: Hashes[i] is the C3 hash of Quads[i]. Peaks must
// be sorted ascending by X then Y (the order internal/quads.Build expects
// and produces when fed an already-sorted peak list). Type must be
// config.Query — Query rejects anything else (§7 WrongFingerprintType).
type QueryFingerprint struct {
	Type   config.FpType
	Hashes []hash.Hash
	Quads  []quads.Quad
	Peaks  []quads.Peak
}

// MatchCandidate is a time-aligned cluster of hits for one record, the
// output of Stage 3.
type MatchCandidate struct {
	RecordID   int64
	Offset     int
	NumMatches int
	STime      float64
	SFreq      float64
}

// Match is one validated result, the output of Stage 5.
type Match struct {
	Title  string
	Offset int
	VScore float64
}

// Matcher drives C6. It is stateless across calls to Query.
type Matcher struct {
	Index  index.RangeIndex
	Store  store.CatalogStore
	Config config.MatcherConfig
}

// New builds a Matcher over the given spatial index and catalog store.
func New(idx index.RangeIndex, st store.CatalogStore, cfg config.MatcherConfig) *Matcher {
	return &Matcher{Index: idx, Store: st, Config: cfg}
}

type hit struct {
	offset float64
	sTime  float64
	sFreq  float64
}

// Query runs Stages 1-5 against qfp and returns matches with
// vScore >= Config.VThreshold, sorted by vScore descending, ties broken by
// numMatches descending then recordid ascending (§5 ordering).
func (m *Matcher) Query(ctx context.Context, qfp QueryFingerprint) ([]Match, error) {
	if qfp.Type != config.Query {
		return nil, errs.New("match.Query", errs.WrongFingerprintType)
	}

	hitsByRecord, err := m.stage1(ctx, qfp)
	if err != nil {
		return nil, err
	}
	if len(hitsByRecord) == 0 {
		return nil, nil
	}

	bins := m.stage2(hitsByRecord)
	candidates := m.stage3(bins)
	if len(candidates) == 0 {
		return nil, nil
	}

	matches, err := m.stage4and5(ctx, qfp, candidates)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// stage1 gathers candidates: for each query hash, range-query the spatial
// index with an epsilon box, resolve each hit to its full quad, and apply
// the four filter tests.
func (m *Matcher) stage1(ctx context.Context, qfp QueryFingerprint) (map[int64][]hit, error) {
	out := make(map[int64][]hit)
	for i, qh := range qfp.Hashes {
		qQ := qfp.Quads[i]
		lo, hi := qh.Box(m.Config.Epsilon)
		candidateIDs, err := m.Index.RangeQuery(ctx, lo, hi)
		if err != nil {
			return nil, err
		}
		for _, quadID := range candidateIDs {
			row, err := m.Store.QuadByID(ctx, quadID)
			if err != nil {
				// A resolve failure for one candidate does not abort the
				// whole query; skip it.
				continue
			}
			cQ := quads.Quad{A: row.A, C: row.C, D: row.D, B: row.B}
			offset, sTime, sFreq, ok := filterCandidate(m.Config, qQ, cQ)
			if !ok {
				continue
			}
			out[row.RecordID] = append(out[row.RecordID], hit{offset: offset, sTime: sTime, sFreq: sFreq})
		}
	}
	return out, nil
}

// filterCandidate applies the four Stage 1 filter tests and, if all pass,
// returns the estimated offset and scale factors. Division by zero or a
// non-finite intermediate silently rejects the candidate (§4.6,
// SPEC_FULL.md §9 redesign flag 4).
func filterCandidate(cfg config.MatcherConfig, qQ, cQ quads.Quad) (offset, sTime, sFreq float64, ok bool) {
	e := cfg.ScaleTolerance
	lowerBound := 1 / (1 + e)
	upperBound := 1 / (1 - e)

	if cQ.A.Y == 0 {
		return 0, 0, 0, false
	}
	pitchRatio := float64(qQ.A.Y) / float64(cQ.A.Y)
	if !inBounds(pitchRatio, lowerBound, upperBound) {
		return 0, 0, 0, false
	}

	cDx := float64(cQ.B.X - cQ.A.X)
	if cDx == 0 {
		return 0, 0, 0, false
	}
	sTime = float64(qQ.B.X-qQ.A.X) / cDx
	if !finiteInBounds(sTime, lowerBound, upperBound) {
		return 0, 0, 0, false
	}

	cDy := float64(cQ.B.Y - cQ.A.Y)
	if cDy == 0 {
		return 0, 0, 0, false
	}
	sFreq = float64(qQ.B.Y-qQ.A.Y) / cDy
	if !finiteInBounds(sFreq, lowerBound, upperBound) {
		return 0, 0, 0, false
	}

	finePitch := math.Abs(float64(qQ.A.Y) - float64(cQ.A.Y)*sFreq)
	if !(finePitch <= cfg.FinePitchTolerance) {
		return 0, 0, 0, false
	}

	if sTime == 0 {
		return 0, 0, 0, false
	}
	offset = float64(cQ.A.X) - float64(qQ.A.X)/sTime
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		return 0, 0, 0, false
	}

	return offset, sTime, sFreq, true
}

func inBounds(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}

func finiteInBounds(v, lo, hi float64) bool {
	return inBounds(v, lo, hi)
}

type binKey struct {
	recordID int64
	offset   int
}

// stage2 bins each record's hits by floor-to-multiple-of binwidth, dropping
// bins with fewer than MinBinSize entries.
func (m *Matcher) stage2(hitsByRecord map[int64][]hit) map[binKey][]hit {
	bw := float64(m.Config.BinWidth)
	bins := make(map[binKey][]hit)
	for recordID, hits := range hitsByRecord {
		for _, h := range hits {
			binOffset := int(math.Floor(h.offset/bw)) * m.Config.BinWidth
			k := binKey{recordID: recordID, offset: binOffset}
			bins[k] = append(bins[k], h)
		}
	}
	for k, hits := range bins {
		if len(hits) < m.Config.MinBinSize {
			delete(bins, k)
		}
	}
	return bins
}

// stage3 removes scale outliers within each surviving bin (mean +/- 2
// sigma per axis, computed independently for sTime and sFreq via
// gonum/stat), drops bins that fall below MinBinSize after pruning, and
// emits one MatchCandidate per surviving bin.
func (m *Matcher) stage3(bins map[binKey][]hit) []MatchCandidate {
	var out []MatchCandidate
	for k, hits := range bins {
		times := make([]float64, len(hits))
		freqs := make([]float64, len(hits))
		for i, h := range hits {
			times[i] = h.sTime
			freqs[i] = h.sFreq
		}
		meanTime, sdTime := stat.MeanStdDev(times, nil)
		meanFreq, sdFreq := stat.MeanStdDev(freqs, nil)

		var kept []hit
		for _, h := range hits {
			if math.Abs(h.sTime-meanTime) > 2*sdTime {
				continue
			}
			if math.Abs(h.sFreq-meanFreq) > 2*sdFreq {
				continue
			}
			kept = append(kept, h)
		}
		if len(kept) < m.Config.MinBinSize {
			continue
		}

		keptTimes := make([]float64, len(kept))
		keptFreqs := make([]float64, len(kept))
		for i, h := range kept {
			keptTimes[i] = h.sTime
			keptFreqs[i] = h.sFreq
		}
		finalMeanTime, _ := stat.MeanStdDev(keptTimes, nil)
		finalMeanFreq, _ := stat.MeanStdDev(keptFreqs, nil)

		out = append(out, MatchCandidate{
			RecordID:   k.recordID,
			Offset:     k.offset,
			NumMatches: len(kept),
			STime:      finalMeanTime,
			SFreq:      finalMeanFreq,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordID != out[j].RecordID {
			return out[i].RecordID < out[j].RecordID
		}
		return out[i].NumMatches > out[j].NumMatches
	})
	return out
}

// stage4and5 runs peak verification for each candidate and emits matches
// meeting the verification threshold, sorted per §5's ordering rule.
func (m *Matcher) stage4and5(ctx context.Context, qfp QueryFingerprint, candidates []MatchCandidate) ([]Match, error) {
	queryPeaks := qfp.Peaks // already x-sorted, per QueryFingerprint contract

	type scored struct {
		Match
		numMatches int
		recordID   int64
	}
	var matches []scored
	for _, c := range candidates {
		refPeaks, err := m.Store.PeaksInRange(ctx, c.RecordID, c.Offset, m.Config.PeakHorizon)
		if err != nil {
			return nil, err
		}
		if len(refPeaks) == 0 {
			continue
		}

		validated := 0
		for _, rP := range refPeaks {
			if c.SFreq == 0 || c.STime == 0 {
				continue
			}
			rpx := (float64(rP.X) - float64(c.Offset)) / c.SFreq
			rpy := float64(rP.Y) / c.STime
			if peakNearby(queryPeaks, rpx, rpy, m.Config.PeakWindowX, m.Config.PeakWindowY) {
				validated++
			}
		}

		vScore := float64(validated) / float64(len(refPeaks))
		if vScore < m.Config.VThreshold {
			continue
		}

		title, err := m.Store.Title(ctx, c.RecordID)
		if err != nil {
			return nil, err
		}
		matches = append(matches, scored{
			Match:      Match{Title: title, Offset: c.Offset, VScore: vScore},
			numMatches: c.NumMatches,
			recordID:   c.RecordID,
		})
	}

	// §5 ordering: vScore descending, ties broken by numMatches descending,
	// then recordid ascending.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].VScore != matches[j].VScore {
			return matches[i].VScore > matches[j].VScore
		}
		if matches[i].numMatches != matches[j].numMatches {
			return matches[i].numMatches > matches[j].numMatches
		}
		return matches[i].recordID < matches[j].recordID
	})

	out := make([]Match, len(matches))
	for i, s := range matches {
		out[i] = s.Match
	}
	return out, nil
}

// peakNearby binary-searches queryPeaks (x-sorted) for any peak within
// [cx-eX, cx+eX] whose y is within eY of cy.
func peakNearby(queryPeaks []quads.Peak, cx, cy float64, eX, eY int) bool {
	lo := sort.Search(len(queryPeaks), func(i int) bool {
		return float64(queryPeaks[i].X) >= cx-float64(eX)
	})
	hi := sort.Search(len(queryPeaks), func(i int) bool {
		return float64(queryPeaks[i].X) > cx+float64(eX)
	})
	for _, p := range queryPeaks[lo:hi] {
		if math.Abs(float64(p.Y)-cy) <= float64(eY) {
			return true
		}
	}
	return false
}
