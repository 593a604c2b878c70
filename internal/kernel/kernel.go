// Package kernel is the dependency container the cmd/ entry points use to
// wire the catalog store, spatial index, and matcher together, adapted
// from the teacher's Kernel container (internal/kernel/container.go) to
// this engine's collaborators.
package kernel

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mbortnyck/qfp/internal/config"
	"github.com/mbortnyck/qfp/internal/index"
	"github.com/mbortnyck/qfp/internal/match"
	"github.com/mbortnyck/qfp/internal/store"
)

// Kernel holds every long-lived collaborator a CLI command needs, guarded
// by a RWMutex the way the teacher's container is, so a future concurrent
// command (e.g. a daemon mode) can safely share one Kernel.
type Kernel struct {
	mu sync.RWMutex

	db      *gorm.DB
	store   store.CatalogStore
	index   index.RangeIndex
	matcher *match.Matcher
	logger  *zap.Logger
	cfg     config.MatcherConfig
}

// New opens the catalog store for storeCfg, migrates it, builds the
// spatial index and matcher over it, and returns a ready-to-use Kernel.
func New(storeCfg config.StoreConfig, matcherCfg config.MatcherConfig, logger *zap.Logger) (*Kernel, error) {
	db, err := store.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("kernel: open store: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		return nil, fmt.Errorf("kernel: migrate store: %w", err)
	}

	idx, err := index.NewRangeIndex(db)
	if err != nil {
		return nil, fmt.Errorf("kernel: build index: %w", err)
	}

	cs := store.New(db)
	m := match.New(idx, cs, matcherCfg)

	return &Kernel{
		db:      db,
		store:   cs,
		index:   idx,
		matcher: m,
		logger:  logger,
		cfg:     matcherCfg,
	}, nil
}

func (k *Kernel) Store() store.CatalogStore {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.store
}

func (k *Kernel) Index() index.RangeIndex {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.index
}

func (k *Kernel) Matcher() *match.Matcher {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.matcher
}

func (k *Kernel) Logger() *zap.Logger {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.logger
}

// Close releases the underlying database connection.
func (k *Kernel) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	sqlDB, err := k.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
