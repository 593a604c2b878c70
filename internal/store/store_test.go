package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbortnyck/qfp/internal/config"
	"github.com/mbortnyck/qfp/internal/errs"
	"github.com/mbortnyck/qfp/internal/hash"
	"github.com/mbortnyck/qfp/internal/index"
	"github.com/mbortnyck/qfp/internal/quads"
)

func newTestStore(t *testing.T) (CatalogStore, index.RangeIndex) {
	t.Helper()
	db, err := Open(config.StoreConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	idx, err := index.NewRangeIndex(db)
	require.NoError(t, err)
	return New(db), idx
}

func TestInsertRecord_RoundTrip(t *testing.T) {
	s, idx := newTestStore(t)
	ctx := context.Background()

	q := quads.Quad{
		A: quads.Peak{X: 0, Y: 10}, C: quads.Peak{X: 100, Y: 20},
		D: quads.Peak{X: 200, Y: 30}, B: quads.Peak{X: 400, Y: 40},
	}
	h, ok := hash.Of(q)
	require.True(t, ok)

	fp := Fingerprint{
		Type:   config.Reference,
		Title:  "track one",
		Peaks:  []quads.Peak{{X: 0, Y: 10}, {X: 100, Y: 20}, {X: 200, Y: 30}, {X: 400, Y: 40}},
		Quads:  []quads.Quad{q},
		Hashes: []hash.Hash{h},
	}

	recordID, quadIDs, err := s.InsertRecord(ctx, idx, fp)
	require.NoError(t, err)
	require.NotZero(t, recordID)
	require.Len(t, quadIDs, 1)

	title, err := s.Title(ctx, recordID)
	require.NoError(t, err)
	assert.Equal(t, "track one", title)

	row, err := s.QuadByID(ctx, quadIDs[0])
	require.NoError(t, err)
	assert.Equal(t, recordID, row.RecordID)
	assert.Equal(t, fp.Quads[0].A, row.A)
	assert.Equal(t, fp.Quads[0].B, row.B)

	peaks, err := s.PeaksInRange(ctx, recordID, 0, 3750)
	require.NoError(t, err)
	assert.Len(t, peaks, 4)
}

func TestInsertRecord_DuplicateTitle(t *testing.T) {
	s, idx := newTestStore(t)
	ctx := context.Background()
	fp := Fingerprint{Type: config.Reference, Title: "dup", Peaks: []quads.Peak{{X: 0, Y: 1}}}

	_, _, err := s.InsertRecord(ctx, idx, fp)
	require.NoError(t, err)

	_, _, err = s.InsertRecord(ctx, idx, fp)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DuplicateTitle))
}

func TestInsertRecord_RejectsWrongFingerprintType(t *testing.T) {
	s, idx := newTestStore(t)
	ctx := context.Background()
	fp := Fingerprint{Type: config.Query, Title: "wrong type", Peaks: []quads.Peak{{X: 0, Y: 1}}}

	_, _, err := s.InsertRecord(ctx, idx, fp)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.WrongFingerprintType))
}

func TestPeaksInRange_ExcludesOutOfWindow(t *testing.T) {
	s, idx := newTestStore(t)
	ctx := context.Background()
	fp := Fingerprint{
		Type:  config.Reference,
		Title: "ranged",
		Peaks: []quads.Peak{{X: 0, Y: 1}, {X: 3750, Y: 2}, {X: 3751, Y: 3}, {X: 10000, Y: 4}},
	}

	recordID, _, err := s.InsertRecord(ctx, idx, fp)
	require.NoError(t, err)

	peaks, err := s.PeaksInRange(ctx, recordID, 0, 3750)
	require.NoError(t, err)

	require.Len(t, peaks, 2)
	assert.Equal(t, 0, peaks[0].X)
	assert.Equal(t, 3750, peaks[1].X)
}
