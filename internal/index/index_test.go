package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestRTreeIndex_RangeQuery(t *testing.T) {
	db := openTestDB(t)
	idx, err := NewRangeIndex(db)
	require.NoError(t, err)

	entries := []Entry{
		{QuadID: 1, Point: [4]float64{0.25, 0.33, 0.5, 0.66}},
		{QuadID: 2, Point: [4]float64{0.9, 0.9, 0.9, 0.9}},
	}
	bl, ok := idx.(BulkLoader)
	require.True(t, ok)
	require.NoError(t, bl.Build(context.Background(), entries))

	lo := [4]float64{0.24, 0.32, 0.49, 0.65}
	hi := [4]float64{0.26, 0.34, 0.51, 0.67}
	ids, err := idx.RangeQuery(context.Background(), lo, hi)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, ids)
}

func TestRTreeIndex_Insert(t *testing.T) {
	db := openTestDB(t)
	idx, err := NewRangeIndex(db)
	require.NoError(t, err)

	require.NoError(t, idx.Insert(context.Background(), 42, [4]float64{0.1, 0.1, 0.1, 0.1}))

	ids, err := idx.RangeQuery(context.Background(), [4]float64{0, 0, 0, 0}, [4]float64{0.2, 0.2, 0.2, 0.2})
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)
}

func TestLinearIndex_RangeQuery(t *testing.T) {
	db := openTestDB(t)
	idx, err := newLinearIndex(db)
	require.NoError(t, err)

	require.NoError(t, idx.Insert(context.Background(), 7, [4]float64{0.5, 0.5, 0.5, 0.5}))
	require.NoError(t, idx.Insert(context.Background(), 8, [4]float64{0.9, 0.9, 0.9, 0.9}))

	ids, err := idx.RangeQuery(context.Background(), [4]float64{0.4, 0.4, 0.4, 0.4}, [4]float64{0.6, 0.6, 0.6, 0.6})
	require.NoError(t, err)

	assert.Equal(t, []int64{7}, ids)
}
