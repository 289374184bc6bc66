package main

import (
	"context"

	"go.uber.org/zap"
)

type CatalogServiceProvider interface {
	Add(ctx context.Context, rec BookRecord) (Book, error)
	GetOne(ctx context.Context, id string) (Book, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, rec BookRecord) (Book, error)
	GetAll(ctx context.Context) ([]Book, error)
	FilterByGenre(ctx context.Context, genre string) ([]Book, error)
	FindByTitle(ctx context.Context, title string) (Book, error)
	SortBy(ctx context.Context, key string) (bool, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) (ImportReport, error)
}

type CatalogService struct {
	logger *zap.Logger
	config *Config
	clock  Clocker
	store  *CatalogStore
	queue  Queuer
}

// NewCatalogService provides the catalog service. A nil queue disables snapshots.
func NewCatalogService(logger *zap.Logger, config *Config, clock Clocker, store *CatalogStore, queue Queuer) CatalogServiceProvider {
	return &CatalogService{
		logger: logger,
		config: config,
		clock:  clock,
		store:  store,
		queue:  queue,
	}
}

func (cs *CatalogService) Add(ctx context.Context, rec BookRecord) (Book, error) {
	book, err := cs.store.Add(ctx, rec)
	if err == nil {
		cs.snapshot(ctx)
	}
	return book, err
}

func (cs *CatalogService) GetOne(ctx context.Context, id string) (Book, error) {
	return cs.store.Get(ctx, id)
}

func (cs *CatalogService) Delete(ctx context.Context, id string) error {
	err := cs.store.Remove(ctx, id)
	if err == nil {
		cs.snapshot(ctx)
	}
	return err
}

func (cs *CatalogService) Update(ctx context.Context, id string, rec BookRecord) (Book, error) {
	book, err := cs.store.Update(ctx, id, rec)
	if err == nil {
		cs.snapshot(ctx)
	}
	return book, err
}

func (cs *CatalogService) GetAll(ctx context.Context) ([]Book, error) {
	return cs.store.Load(ctx)
}

func (cs *CatalogService) FilterByGenre(ctx context.Context, genre string) ([]Book, error) {
	return cs.store.FilterByGenre(ctx, genre)
}

func (cs *CatalogService) FindByTitle(ctx context.Context, title string) (Book, error) {
	return cs.store.FindByTitle(ctx, title)
}

func (cs *CatalogService) SortBy(ctx context.Context, key string) (bool, error) {
	sorted, err := cs.store.SortBy(ctx, key)
	if sorted && err == nil {
		cs.snapshot(ctx)
	}
	return sorted, err
}

func (cs *CatalogService) Export(ctx context.Context) ([]byte, error) {
	return cs.store.Export(ctx)
}

func (cs *CatalogService) Import(ctx context.Context, data []byte) (ImportReport, error) {
	report, err := cs.store.Import(ctx, data)
	if err == nil && report.Written {
		cs.snapshot(ctx)
	}
	return report, err
}

// snapshot pushes the current catalog blob to the backup queue.
// Failures are logged only: the write itself already succeeded.
func (cs *CatalogService) snapshot(ctx context.Context) {
	if cs.queue == nil {
		return
	}
	blob, err := cs.store.Raw(ctx)
	if err != nil {
		cs.logger.Error("service: failed to read catalog for snapshot", zap.Error(err))
		return
	}
	snap := Snapshot{
		Key:     cs.config.Catalog.Key,
		Value:   blob.Value,
		Version: blob.Version,
		TakenAt: cs.clock.Now().UTC(),
	}
	if err = cs.queue.Push(ctx, cs.config.Backup.Queue, snap); err != nil {
		cs.logger.Error("service: failed to push snapshot to queue", zap.String("qid", cs.config.Backup.Queue), zap.Error(err))
	}
}
