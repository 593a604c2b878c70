// Package store implements C5: the catalog of records, quads, and
// reference peaks, backed by GORM over SQLite or Postgres (teacher's
// internal/database pattern, generalized to this engine's schema).
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mbortnyck/qfp/internal/config"
	"github.com/mbortnyck/qfp/internal/errs"
	"github.com/mbortnyck/qfp/internal/hash"
	"github.com/mbortnyck/qfp/internal/index"
	"github.com/mbortnyck/qfp/internal/quads"
)

// RecordModel is the Records table: recordid, title, title unique.
type RecordModel struct {
	ID    int64  `gorm:"primaryKey;autoIncrement"`
	Title string `gorm:"uniqueIndex;not null"`
}

func (RecordModel) TableName() string { return "records" }

// QuadModel is the Quads table: the un-normalized quad plus its owning
// record, so a hash hit from C4 can be resolved back to full coordinates.
type QuadModel struct {
	ID       int64 `gorm:"primaryKey;autoIncrement"`
	RecordID int64 `gorm:"index;not null"`
	Ax, Ay   int64
	Cx, Cy   int64
	Dx, Dy   int64
	Bx, By   int64
}

func (QuadModel) TableName() string { return "quads" }

// PeakModel is the Peaks table: one row per reference peak, keyed by
// (recordid, x, y).
type PeakModel struct {
	RecordID int64 `gorm:"primaryKey;autoIncrement:false;index:idx_peak_lookup,priority:1"`
	X        int64 `gorm:"primaryKey;autoIncrement:false;index:idx_peak_lookup,priority:2"`
	Y        int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (PeakModel) TableName() string { return "peaks" }

// Open connects to the catalog store using cfg, mirroring the teacher's
// dual sqlite/postgres Initialize() pattern. Migrate must be called once
// before use.
func Open(cfg config.StoreConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// Migrate creates/updates the three catalog tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&RecordModel{}, &QuadModel{}, &PeakModel{})
}

// Fingerprint is everything C5 needs to persist one recording: its title,
// the full reference peak list, and the validated/selected quads built
// from it (C1→C2 output), plus their hashes (C3 output) so InsertRecord can
// write the spatial-index entries in the same transaction as the catalog
// rows. Hashes is parallel to Quads: Hashes[i] is the hash of Quads[i].
// Type must be config.Reference — InsertRecord rejects anything else (§7
// WrongFingerprintType).
type Fingerprint struct {
	Type   config.FpType
	Title  string
	Peaks  []quads.Peak
	Quads  []quads.Quad
	Hashes []hash.Hash
}

// QuadRow mirrors QuadModel in the vocabulary of §3, for callers outside
// this package (the matcher) that don't need GORM tags.
type QuadRow struct {
	QuadID   int64
	RecordID int64
	A, C, D, B quads.Peak
}

// CatalogStore is the narrow interface C6 (and the indexing path) depend
// on, so the SQLite/Postgres/GORM implementation below is one satisfying
// type among others the core never references directly (§9 redesign flag
// 2).
type CatalogStore interface {
	// InsertRecord persists a full Fingerprint transactionally: the record,
	// all its peaks, all its quads, and all its hash index entries in idx
	// commit together or none do (§4.5's atomicity requirement spans both
	// the catalog rows and the spatial index). It returns the new record ID
	// and the QuadModel IDs in the same order as fp.Quads.
	InsertRecord(ctx context.Context, idx index.RangeIndex, fp Fingerprint) (recordID int64, quadIDs []int64, err error)
	// QuadByID resolves a spatial-index hit back to its full coordinates
	// and owning record.
	QuadByID(ctx context.Context, quadID int64) (QuadRow, error)
	// Title resolves a record ID to its title.
	Title(ctx context.Context, recordID int64) (string, error)
	// PeaksInRange returns a record's reference peaks with x in
	// [from, from+horizon], sorted ascending by x then y.
	PeaksInRange(ctx context.Context, recordID int64, from, horizon int) ([]quads.Peak, error)
}

type gormStore struct {
	db *gorm.DB
}

// New wraps db (already Migrate'd) as a CatalogStore.
func New(db *gorm.DB) CatalogStore {
	return &gormStore{db: db}
}

func (s *gormStore) InsertRecord(ctx context.Context, idx index.RangeIndex, fp Fingerprint) (int64, []int64, error) {
	if fp.Type != config.Reference {
		return 0, nil, errs.New("store.InsertRecord", errs.WrongFingerprintType)
	}

	var existing RecordModel
	err := s.db.WithContext(ctx).Where("title = ?", fp.Title).First(&existing).Error
	switch {
	case err == nil:
		return 0, nil, errs.New("store.InsertRecord", errs.DuplicateTitle)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return 0, nil, errs.Wrap("store.InsertRecord", errs.Unknown, err)
	}

	var recordID int64
	var quadIDs []int64
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := RecordModel{Title: fp.Title}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		recordID = rec.ID

		for _, p := range fp.Peaks {
			row := PeakModel{RecordID: recordID, X: int64(p.X), Y: int64(p.Y)}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		for i, q := range fp.Quads {
			row := QuadModel{
				RecordID: recordID,
				Ax: int64(q.A.X), Ay: int64(q.A.Y),
				Cx: int64(q.C.X), Cy: int64(q.C.Y),
				Dx: int64(q.D.X), Dy: int64(q.D.Y),
				Bx: int64(q.B.X), By: int64(q.B.Y),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			quadIDs = append(quadIDs, row.ID)

			if err := idx.InsertTx(tx, row.ID, fp.Hashes[i].Point()); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return 0, nil, fmt.Errorf("store: insert record: %w", txErr)
	}
	return recordID, quadIDs, nil
}

func (s *gormStore) QuadByID(ctx context.Context, quadID int64) (QuadRow, error) {
	var m QuadModel
	if err := s.db.WithContext(ctx).First(&m, quadID).Error; err != nil {
		return QuadRow{}, fmt.Errorf("store: quad %d: %w", quadID, err)
	}
	return QuadRow{
		QuadID:   m.ID,
		RecordID: m.RecordID,
		A:        quads.Peak{X: int(m.Ax), Y: int(m.Ay)},
		C:        quads.Peak{X: int(m.Cx), Y: int(m.Cy)},
		D:        quads.Peak{X: int(m.Dx), Y: int(m.Dy)},
		B:        quads.Peak{X: int(m.Bx), Y: int(m.By)},
	}, nil
}

func (s *gormStore) Title(ctx context.Context, recordID int64) (string, error) {
	var rec RecordModel
	if err := s.db.WithContext(ctx).First(&rec, recordID).Error; err != nil {
		return "", fmt.Errorf("store: record %d: %w", recordID, err)
	}
	return rec.Title, nil
}

func (s *gormStore) PeaksInRange(ctx context.Context, recordID int64, from, horizon int) ([]quads.Peak, error) {
	var rows []PeakModel
	err := s.db.WithContext(ctx).
		Where("record_id = ? AND x >= ? AND x <= ?", recordID, from, from+horizon).
		Order("x asc, y asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: peaks in range: %w", err)
	}
	out := make([]quads.Peak, len(rows))
	for i, r := range rows {
		out[i] = quads.Peak{X: int(r.X), Y: int(r.Y)}
	}
	return out, nil
}
