package main

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// CatalogStore reads and writes the whole book list as one blob.
// Nothing is cached: every call starts from the stored blob.
type CatalogStore struct {
	logger *zap.Logger
	blobs  BlobStore
	config CatalogConfig
	ids    UIDGenerator
	locale language.Tag
}

// NewCatalogStore provides a catalog store persisting under config.Key.
// An invalid locale falls back to the root collation.
func NewCatalogStore(logger *zap.Logger, blobs BlobStore, config CatalogConfig, ids UIDGenerator) *CatalogStore {
	locale, err := language.Parse(config.Locale)
	if err != nil {
		locale = language.Und
	}
	if config.ZeroPolicy == "" {
		config.ZeroPolicy = ZeroIsFalsy
	}
	if config.ImportMode == "" {
		config.ImportMode = ImportLenient
	}
	return &CatalogStore{
		logger: logger,
		blobs:  blobs,
		config: config,
		ids:    ids,
		locale: locale,
	}
}

// Load returns the stored books in storage order. Records failing
// validation are logged and left out.
func (cs *CatalogStore) Load(ctx context.Context) ([]Book, error) {
	books, _, err := cs.load(ctx)
	return books, err
}

// Save overwrites the stored catalog with books. The last write wins.
func (cs *CatalogStore) Save(ctx context.Context, books []Book) error {
	return cs.write(ctx, books, AnyVersion)
}

// SortBy reorders and persists the catalog. An unknown key is
// a no-op reported with false.
func (cs *CatalogStore) SortBy(ctx context.Context, key string) (bool, error) {
	sortKey, ok := ParseSortKey(key)
	if !ok {
		cs.logger.Debug("catalog: unknown sort key", zap.String("catalog.sort", key))
		return false, nil
	}
	books, version, err := cs.load(ctx)
	if err != nil {
		return false, err
	}
	SortBooks(books, sortKey, cs.locale)
	if err = cs.write(ctx, books, cs.expected(version)); err != nil {
		return false, err
	}
	return true, nil
}

// Add validates rec and appends it. A fresh uuid is assigned
// when the record has none.
func (cs *CatalogStore) Add(ctx context.Context, rec BookRecord) (Book, error) {
	book, err := NewBook(rec, cs.config.ZeroPolicy)
	if err != nil {
		return book, err
	}
	if book.UUID == "" {
		book.UUID = cs.ids.Generate(BookIDPrefix)
	}

	books, version, err := cs.load(ctx)
	if err != nil {
		return book, err
	}
	books = append(books, book)
	cs.resort(books)
	return book, cs.write(ctx, books, cs.expected(version))
}

// Get returns the book identified by id.
func (cs *CatalogStore) Get(ctx context.Context, id string) (Book, error) {
	books, err := cs.Load(ctx)
	if err != nil {
		return Book{}, err
	}
	for _, b := range books {
		if b.UUID == id {
			return b, nil
		}
	}
	return Book{}, ErrBookNotFound
}

// Update replaces the book identified by id with the validated rec.
// The identity of the book is kept whatever uuid rec carries.
func (cs *CatalogStore) Update(ctx context.Context, id string, rec BookRecord) (Book, error) {
	book, err := NewBook(rec, cs.config.ZeroPolicy)
	if err != nil {
		return book, err
	}
	book.UUID = id

	books, version, err := cs.load(ctx)
	if err != nil {
		return book, err
	}
	found := false
	for i := range books {
		if books[i].UUID == id {
			books[i] = book
			found = true
			break
		}
	}
	if !found {
		return book, ErrBookNotFound
	}
	cs.resort(books)
	return book, cs.write(ctx, books, cs.expected(version))
}

// Remove deletes the book identified by id.
func (cs *CatalogStore) Remove(ctx context.Context, id string) error {
	books, version, err := cs.load(ctx)
	if err != nil {
		return err
	}
	kept := make([]Book, 0, len(books))
	for _, b := range books {
		if b.UUID != id {
			kept = append(kept, b)
		}
	}
	if len(kept) == len(books) {
		return ErrBookNotFound
	}
	return cs.write(ctx, kept, cs.expected(version))
}

// FilterByGenre returns the books of the given genre.
func (cs *CatalogStore) FilterByGenre(ctx context.Context, genre string) ([]Book, error) {
	books, err := cs.Load(ctx)
	if err != nil {
		return nil, err
	}
	return FilterBooksByGenre(books, genre), nil
}

// FindByTitle returns the first book with the given title.
func (cs *CatalogStore) FindByTitle(ctx context.Context, title string) (Book, error) {
	books, err := cs.Load(ctx)
	if err != nil {
		return Book{}, err
	}
	book, ok := FindBookByTitle(books, title)
	if !ok {
		return Book{}, ErrBookNotFound
	}
	return book, nil
}

// HasBooks reports whether the catalog holds at least one valid book.
func (cs *CatalogStore) HasBooks(ctx context.Context) (bool, error) {
	books, err := cs.Load(ctx)
	return len(books) > 0, err
}

// Export serializes the catalog as a JSON array of objects.
func (cs *CatalogStore) Export(ctx context.Context) ([]byte, error) {
	books, err := cs.Load(ctx)
	if err != nil {
		return nil, err
	}
	exported := make([]BookExport, 0, len(books))
	for _, b := range books {
		exported = append(exported, b.Export())
	}
	return json.Marshal(exported)
}

// Import replaces the catalog with the books of data. An empty array, or
// one without any valid record, changes nothing. Invalid records are
// handled per the import mode.
func (cs *CatalogStore) Import(ctx context.Context, data []byte) (ImportReport, error) {
	report := ImportReport{Rejected: []ImportRejection{}}
	records, err := decodeRecords("import", data)
	if err != nil {
		return report, err
	}
	if len(records) == 0 {
		return report, nil
	}

	books := make([]Book, 0, len(records))
	for i, rec := range records {
		book, err := recordToBook(rec, cs.config.ZeroPolicy)
		if err != nil {
			if cs.config.ImportMode == ImportStrict {
				return ImportReport{Rejected: []ImportRejection{{Index: i, Reason: err.Error()}}},
					fmt.Errorf("record %d: %w", i, err)
			}
			report.Rejected = append(report.Rejected, ImportRejection{Index: i, Reason: err.Error()})
			continue
		}
		if book.UUID == "" {
			book.UUID = cs.ids.Generate(BookIDPrefix)
		}
		books = append(books, book)
	}
	if len(books) == 0 {
		cs.logger.Warn("catalog: import without valid records ignored",
			zap.String("catalog.key", cs.config.Key),
			zap.Int("catalog.rejected", len(report.Rejected)),
		)
		return report, nil
	}

	blob, err := cs.Raw(ctx)
	if err != nil {
		return report, err
	}
	if err = cs.write(ctx, books, cs.expected(blob.Version)); err != nil {
		return report, err
	}
	report.Imported = len(books)
	report.Written = true
	cs.logger.Info("catalog: books imported",
		zap.String("catalog.key", cs.config.Key),
		zap.Int("catalog.imported", report.Imported),
		zap.Int("catalog.rejected", len(report.Rejected)),
	)
	return report, nil
}

// Raw returns the stored blob as is. An absent blob is empty with version 0.
func (cs *CatalogStore) Raw(ctx context.Context) (Blob, error) {
	blob, err := cs.blobs.Get(ctx, cs.config.Key)
	if errors.Is(err, ErrBlobNotFound) {
		return Blob{}, nil
	}
	if err != nil {
		return Blob{}, fmt.Errorf("failed to read catalog: %w", err)
	}
	return blob, nil
}

func (cs *CatalogStore) load(ctx context.Context) ([]Book, int64, error) {
	blob, err := cs.Raw(ctx)
	if err != nil {
		return nil, 0, err
	}
	books := []Book{}
	if blob.Value == "" {
		return books, blob.Version, nil
	}
	records, err := decodeRecords("catalog", []byte(blob.Value))
	if err != nil {
		return nil, 0, err
	}
	for i, rec := range records {
		book, err := recordToBook(rec, cs.config.ZeroPolicy)
		if err != nil {
			cs.logger.Warn("catalog: invalid stored book dropped",
				zap.String("catalog.key", cs.config.Key),
				zap.Int("catalog.index", i),
				zap.ByteString("catalog.record", rec),
				zap.Error(err),
			)
			continue
		}
		books = append(books, book)
	}
	return books, blob.Version, nil
}

func (cs *CatalogStore) write(ctx context.Context, books []Book, expected int64) error {
	if books == nil {
		books = []Book{}
	}
	data, err := json.Marshal(books)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if _, err = cs.blobs.Put(ctx, cs.config.Key, string(data), expected); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

func (cs *CatalogStore) expected(version int64) int64 {
	if !cs.config.OptimisticLocking {
		return AnyVersion
	}
	return version
}

func (cs *CatalogStore) resort(books []Book) {
	if cs.config.ResortOnWrite == "" {
		return
	}
	SortBooks(books, cs.config.ResortOnWrite, cs.locale)
}

// decodeRecords splits a JSON array into its raw elements.
func decodeRecords(source string, data []byte) ([]jsoniter.RawMessage, error) {
	var records []jsoniter.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &DeserializationError{Source: source, Err: err}
	}
	return records, nil
}

// recordToBook validates one raw element. Elements which are not
// objects fail like an empty record does.
func recordToBook(raw jsoniter.RawMessage, policy ZeroPolicy) (Book, error) {
	rec := BookRecord{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return NewBook(BookRecord{}, policy)
	}
	return NewBook(rec, policy)
}
