package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() BookRecord {
	return BookRecord{
		"title":  "Война и мир",
		"author": "Лев Толстой",
		"year":   "1869",
		"genre":  "Роман",
		"rating": "9.7",
	}
}

// TestNewBook_Valid ensures a form-like record becomes a normalized book.
func TestNewBook_Valid(t *testing.T) {
	book, err := NewBook(validRecord(), ZeroIsFalsy)
	require.NoError(t, err)
	assert.Equal(t, Book{Title: "Война и мир", Author: "Лев Толстой", Year: 1869, Genre: "Роман", Rating: 9}, book)
}

// TestNewBook_ValidationOrder ensures only the first violated rule is reported.
func TestNewBook_ValidationOrder(t *testing.T) {
	testCases := []struct {
		name     string
		record   BookRecord
		expected error
	}{
		{"empty record", BookRecord{}, ErrTitleRequired},
		{"blank title", BookRecord{"title": "   ", "author": "A"}, ErrTitleRequired},
		{"missing author", BookRecord{"title": "T"}, ErrAuthorRequired},
		{"missing year", BookRecord{"title": "T", "author": "A", "genre": "G"}, ErrYearRequired},
		{"unparsable year", BookRecord{"title": "T", "author": "A", "year": "abc", "genre": "G", "rating": 5}, ErrYearRequired},
		{"missing genre", BookRecord{"title": "T", "author": "A", "year": 2000}, ErrGenreRequired},
		{"missing rating", BookRecord{"title": "T", "author": "A", "year": 2000, "genre": "G"}, ErrRatingRequired},
		{"empty rating", BookRecord{"title": "T", "author": "A", "year": 2000, "genre": "G", "rating": ""}, ErrRatingRequired},
		{"rating above range", BookRecord{"title": "T", "author": "A", "year": 2000, "genre": "G", "rating": "11"}, ErrRatingOutOfRange},
		{"rating below range", BookRecord{"title": "T", "author": "A", "year": 2000, "genre": "G", "rating": -1}, ErrRatingOutOfRange},
		{"rating not numeric", BookRecord{"title": "T", "author": "A", "year": 2000, "genre": "G", "rating": "good"}, ErrRatingOutOfRange},
		{"rating slightly above range", BookRecord{"title": "T", "author": "A", "year": 2000, "genre": "G", "rating": 10.5}, ErrRatingOutOfRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			book, err := NewBook(tc.record, ZeroIsFalsy)
			assert.Equal(t, tc.expected, err)
			assert.Equal(t, Book{}, book)
		})
	}
}

// TestNewBook_Normalization ensures year and rating are truncated to integers.
func TestNewBook_Normalization(t *testing.T) {
	rec := validRecord()
	rec["year"] = "1866.5"
	rec["rating"] = 10.0
	book, err := NewBook(rec, ZeroIsFalsy)
	require.NoError(t, err)
	assert.Equal(t, 1866, book.Year)
	assert.Equal(t, 10, book.Rating)

	rec["year"] = 1984.9
	rec["rating"] = "0.5"
	book, err = NewBook(rec, ZeroIsFalsy)
	require.NoError(t, err)
	assert.Equal(t, 1984, book.Year)
	assert.Equal(t, 0, book.Rating)
}

// TestNewBook_ZeroPolicy ensures zero values follow the configured policy.
func TestNewBook_ZeroPolicy(t *testing.T) {
	t.Run("falsy rejects a numeric zero year", func(t *testing.T) {
		rec := validRecord()
		rec["year"] = 0.0
		_, err := NewBook(rec, ZeroIsFalsy)
		assert.Equal(t, ErrYearRequired, err)
	})

	t.Run("falsy accepts a textual zero year", func(t *testing.T) {
		rec := validRecord()
		rec["year"] = "0"
		book, err := NewBook(rec, ZeroIsFalsy)
		require.NoError(t, err)
		assert.Equal(t, 0, book.Year)
	})

	t.Run("present accepts a zero year", func(t *testing.T) {
		rec := validRecord()
		rec["year"] = 0
		book, err := NewBook(rec, ZeroIsPresent)
		require.NoError(t, err)
		assert.Equal(t, 0, book.Year)
	})

	t.Run("falsy rejects a numeric zero rating", func(t *testing.T) {
		rec := validRecord()
		rec["rating"] = 0
		_, err := NewBook(rec, ZeroIsFalsy)
		assert.Equal(t, ErrRatingRequired, err)
	})

	t.Run("falsy accepts a textual zero rating", func(t *testing.T) {
		rec := validRecord()
		rec["rating"] = "0"
		book, err := NewBook(rec, ZeroIsFalsy)
		require.NoError(t, err)
		assert.Equal(t, 0, book.Rating)
	})

	t.Run("present accepts a numeric zero rating", func(t *testing.T) {
		rec := validRecord()
		rec["rating"] = 0.0
		book, err := NewBook(rec, ZeroIsPresent)
		require.NoError(t, err)
		assert.Equal(t, 0, book.Rating)
	})
}

// TestNewBook_LegacyRating ensures the legacy field is used when rating is missing.
func TestNewBook_LegacyRating(t *testing.T) {
	rec := validRecord()
	delete(rec, "rating")
	rec["rating_"] = 7.0
	book, err := NewBook(rec, ZeroIsFalsy)
	require.NoError(t, err)
	assert.Equal(t, 7, book.Rating)

	rec["rating"] = 0.0
	rec["rating_"] = "5"
	book, err = NewBook(rec, ZeroIsFalsy)
	require.NoError(t, err)
	assert.Equal(t, 5, book.Rating)

	rec["rating"] = 3.0
	book, err = NewBook(rec, ZeroIsFalsy)
	require.NoError(t, err)
	assert.Equal(t, 3, book.Rating)
}

// TestNewBook_KeepsUUID ensures an identity carried by the record survives validation.
func TestNewBook_KeepsUUID(t *testing.T) {
	rec := validRecord()
	rec["uuid"] = "b:42"
	book, err := NewBook(rec, ZeroIsFalsy)
	require.NoError(t, err)
	assert.Equal(t, "b:42", book.UUID)
}

func TestNormalizeRating(t *testing.T) {
	testCases := []struct {
		value    interface{}
		expected int
		err      error
	}{
		{0, 0, nil},
		{10, 10, nil},
		{"7.9", 7, nil},
		{"1e1", 1, nil},
		{" 8 ", 8, nil},
		{"1e2", 0, ErrRatingOutOfRange},
		{".5", 0, ErrRatingOutOfRange},
		{9.99, 9, nil},
		{math.NaN(), 0, ErrRatingOutOfRange},
		{"abc", 0, ErrRatingOutOfRange},
		{nil, 0, ErrRatingOutOfRange},
		{-0.5, 0, ErrRatingOutOfRange},
		{10.01, 0, ErrRatingOutOfRange},
	}
	for _, tc := range testCases {
		rating, err := NormalizeRating(tc.value)
		assert.Equal(t, tc.err, err, "value %v", tc.value)
		assert.Equal(t, tc.expected, rating, "value %v", tc.value)
	}
}

// TestBook_String ensures the display line keeps the quoted title format.
func TestBook_String(t *testing.T) {
	book := Book{Title: "Шинель", Author: "Николай Гоголь", Year: 1842, Genre: "Повесть", Rating: 8, UUID: "b:1"}
	assert.Equal(t, `"Шинель", Николай Гоголь, 1842, Повесть, 8`, book.String())
}

// TestBook_RecordRoundTrip ensures a book rebuilt from its own record is unchanged.
func TestBook_RecordRoundTrip(t *testing.T) {
	book := Book{Title: "1984", Author: "George Orwell", Year: 1949, Genre: "Dystopia", Rating: 0, UUID: "b:7"}
	rebuilt, err := NewBook(book.Record(), ZeroIsPresent)
	require.NoError(t, err)
	assert.Equal(t, book, rebuilt)

	exported := book.Export()
	assert.Equal(t, BookExport{Title: "1984", Author: "George Orwell", Year: 1949, Genre: "Dystopia", Rating: 0, UUID: "b:7"}, exported)
}
