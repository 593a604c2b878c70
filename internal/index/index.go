// Package index implements C4: the 4-D spatial range index over quad
// hashes. RangeIndex is the narrow interface the matcher depends on;
// rtreeIndex (SQLite R-tree, via database/sql through the same *gorm.DB
// backing the catalog store) and linearIndex (a plain-table fallback for
// non-SQLite backends, queried with a SQL range predicate) both satisfy it, per SPEC_FULL.md §9 redesign
// flag 2.
package index

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// RangeIndex is the spatial index collaborator C6 drives. Implementations
// must support concurrent readers; writes happen through Insert, InsertTx
// (the per-record path store.InsertRecord uses), or a BulkLoader's Build.
type RangeIndex interface {
	// Insert records one (quadID, point) pair. Callers should prefer Build
	// for bulk loading; Insert exists for incremental single-record
	// ingestion (§5: "bulk loading is preferred ... inserts must either be
	// serialized or deferred to a bulk-load phase").
	Insert(ctx context.Context, quadID int64, point [4]float64) error
	// InsertTx is Insert run against an already-open transaction, so a
	// caller holding a *gorm.DB transaction (notably store.InsertRecord)
	// can make the catalog write and the index write atomic (§4.5: "all its
	// hash index entries either all succeed or all roll back").
	InsertTx(tx *gorm.DB, quadID int64, point [4]float64) error
	// RangeQuery returns the quadIDs whose point lies in the closed
	// axis-aligned box [lo,hi].
	RangeQuery(ctx context.Context, lo, hi [4]float64) ([]int64, error)
}

// Entry is one (quadID, point) pair to bulk load.
type Entry struct {
	QuadID int64
	Point  [4]float64
}

// BulkLoader is implemented by RangeIndex backends that support loading a
// whole batch inside one transaction, the §5-preferred path over repeated
// Insert calls during indexing.
type BulkLoader interface {
	Build(ctx context.Context, entries []Entry) error
}

// NewRangeIndex selects an implementation based on the GORM driver in use:
// SQLite gets the R-tree virtual table; any other driver (Postgres in
// particular) gets the linear fallback, since R-tree virtual tables are a
// SQLite-specific extension. This mirrors SPEC_FULL.md §9 open question 5 —
// the fallback is explicit, not a silent degradation.
func NewRangeIndex(db *gorm.DB) (RangeIndex, error) {
	switch db.Dialector.Name() {
	case "sqlite":
		return newRTreeIndex(db)
	default:
		return newLinearIndex(db)
	}
}

// --- SQLite R-tree implementation ---

type rtreeIndex struct {
	db *gorm.DB
}

const rtreeTable = "hash_points"

func newRTreeIndex(db *gorm.DB) (*rtreeIndex, error) {
	ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING rtree(
		id,
		minA, maxA,
		minB, maxB,
		minC, maxC,
		minD, maxD
	)`, rtreeTable)
	if err := db.Exec(ddl).Error; err != nil {
		return nil, fmt.Errorf("index: create rtree table: %w", err)
	}
	return &rtreeIndex{db: db}, nil
}

func (x *rtreeIndex) InsertTx(tx *gorm.DB, quadID int64, p [4]float64) error {
	return tx.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, minA,maxA, minB,maxB, minC,maxC, minD,maxD) VALUES (?,?,?,?,?,?,?,?,?)`, rtreeTable),
		quadID, p[0], p[0], p[1], p[1], p[2], p[2], p[3], p[3],
	).Error
}

func (x *rtreeIndex) Insert(ctx context.Context, quadID int64, p [4]float64) error {
	return x.InsertTx(x.db.WithContext(ctx), quadID, p)
}

// Build bulk loads entries in a single transaction, matching §5's
// preference for a single bulk-load phase over serialized inserts.
func (x *rtreeIndex) Build(ctx context.Context, entries []Entry) error {
	return x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			if err := x.InsertTx(tx, e.QuadID, e.Point); err != nil {
				return err
			}
		}
		return nil
	})
}

func (x *rtreeIndex) RangeQuery(ctx context.Context, lo, hi [4]float64) ([]int64, error) {
	rows, err := x.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT id FROM %s WHERE
			maxA >= ? AND minA <= ? AND
			maxB >= ? AND minB <= ? AND
			maxC >= ? AND minC <= ? AND
			maxD >= ? AND minD <= ?`, rtreeTable),
		lo[0], hi[0], lo[1], hi[1], lo[2], hi[2], lo[3], hi[3],
	).Rows()
	if err != nil {
		return nil, fmt.Errorf("index: range query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- plain-table fallback, for non-SQLite catalog backends ---

type linearIndex struct {
	db *gorm.DB
}

func newLinearIndex(db *gorm.DB) (*linearIndex, error) {
	if err := db.AutoMigrate(&hashPointModel{}); err != nil {
		return nil, fmt.Errorf("index: migrate linear fallback table: %w", err)
	}
	return &linearIndex{db: db}, nil
}

type hashPointModel struct {
	ID         int64 `gorm:"primaryKey"`
	QuadID     int64 `gorm:"index"`
	A, B, C, D float64
}

func (hashPointModel) TableName() string { return "hash_points_linear" }

func (x *linearIndex) InsertTx(tx *gorm.DB, quadID int64, p [4]float64) error {
	row := hashPointModel{QuadID: quadID, A: p[0], B: p[1], C: p[2], D: p[3]}
	return tx.Create(&row).Error
}

func (x *linearIndex) Insert(ctx context.Context, quadID int64, p [4]float64) error {
	return x.InsertTx(x.db.WithContext(ctx), quadID, p)
}

func (x *linearIndex) Build(ctx context.Context, entries []Entry) error {
	return x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			if err := x.InsertTx(tx, e.QuadID, e.Point); err != nil {
				return err
			}
		}
		return nil
	})
}

func (x *linearIndex) RangeQuery(ctx context.Context, lo, hi [4]float64) ([]int64, error) {
	var rows []hashPointModel
	err := x.db.WithContext(ctx).
		Where("a >= ? AND a <= ? AND b >= ? AND b <= ? AND c >= ? AND c <= ? AND d >= ? AND d <= ?",
			lo[0], hi[0], lo[1], hi[1], lo[2], hi[2], lo[3], hi[3]).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.QuadID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
