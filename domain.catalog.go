package main

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrConflict     = errors.New("catalog was modified concurrently")
)

// SortKey names one of the catalog orderings.
type SortKey string

const (
	SortByRating SortKey = "rating"
	SortByYear   SortKey = "year"
	SortByGenre  SortKey = "genre"
)

// SortKeys lists the accepted sort keys.
var SortKeys = []SortKey{SortByRating, SortByYear, SortByGenre}

// ParseSortKey reports whether name is a known sort key.
func ParseSortKey(name string) (SortKey, bool) {
	for _, k := range SortKeys {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// ImportMode decides how an import treats invalid records.
type ImportMode string

const (
	// ImportLenient drops invalid records and reports them.
	ImportLenient ImportMode = "lenient"
	// ImportStrict rejects the whole batch on the first invalid record.
	ImportStrict ImportMode = "strict"
)

// DeserializationError reports a stored blob or an imported payload
// which is not a JSON array.
type DeserializationError struct {
	Source string
	Err    error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("malformed %s: %v", e.Source, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// ConflictError is returned when the catalog blob changed between
// the read and the write of an operation.
type ConflictError struct {
	Key      string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %q: expected version %d but found %d", e.Key, e.Expected, e.Actual)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ImportRejection describes one record dropped by a lenient import.
type ImportRejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ImportReport summarizes an import. Written tells whether the catalog
// was replaced.
type ImportReport struct {
	Imported int               `json:"imported"`
	Rejected []ImportRejection `json:"rejected"`
	Written  bool              `json:"-"`
}

// SortBooks reorders books in place. Numeric keys sort descending,
// genre sorts ascending with the collation rules of the given locale.
// Ties keep their previous order.
func SortBooks(books []Book, key SortKey, locale language.Tag) {
	switch key {
	case SortByRating:
		sort.SliceStable(books, func(i, j int) bool { return books[i].Rating > books[j].Rating })
	case SortByYear:
		sort.SliceStable(books, func(i, j int) bool { return books[i].Year > books[j].Year })
	case SortByGenre:
		c := collate.New(locale)
		sort.SliceStable(books, func(i, j int) bool { return c.CompareString(books[i].Genre, books[j].Genre) < 0 })
	}
}

// FilterBooksByGenre returns the books whose genre matches exactly.
func FilterBooksByGenre(books []Book, genre string) []Book {
	found := []Book{}
	for _, b := range books {
		if b.Genre == genre {
			found = append(found, b)
		}
	}
	return found
}

// FindBookByTitle returns the first book with the given title.
func FindBookByTitle(books []Book, title string) (Book, bool) {
	for _, b := range books {
		if b.Title == title {
			return b, true
		}
	}
	return Book{}, false
}
