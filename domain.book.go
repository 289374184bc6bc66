package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ValidationError is the reason a book record was rejected. Only the
// first violated rule is reported.
type ValidationError string

const (
	ErrTitleRequired    ValidationError = "title required"
	ErrAuthorRequired   ValidationError = "author required"
	ErrYearRequired     ValidationError = "year required"
	ErrGenreRequired    ValidationError = "genre required"
	ErrRatingRequired   ValidationError = "rating required"
	ErrRatingOutOfRange ValidationError = "rating out of range"
)

func (v ValidationError) Error() string {
	return string(v)
}

// ZeroPolicy decides whether a zero year or rating counts as a value.
type ZeroPolicy string

const (
	// ZeroIsFalsy treats a zero year as missing and lets a zero rating
	// fall back to the legacy field, as the first releases did.
	ZeroIsFalsy ZeroPolicy = "falsy"
	// ZeroIsPresent accepts zero for both year and rating.
	ZeroIsPresent ZeroPolicy = "present"
)

const (
	MinRating = 0
	MaxRating = 10

	// legacyRatingField is the key under which early versions stored the rating.
	legacyRatingField = "rating_"
)

// BookRecord is a loosely typed book as received from a form, an import or
// the stored blob. Values are strings or JSON numbers.
type BookRecord map[string]interface{}

// Book represents a validated catalog entry. It is handled by value
// and never modified once built.
type Book struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int    `json:"year"`
	Genre  string `json:"genre"`
	Rating int    `json:"rating"`
	UUID   string `json:"uuid,omitempty"`
}

// BookExport is the serialized form of a book inside books.json.
type BookExport struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int    `json:"year"`
	Genre  string `json:"genre"`
	Rating int    `json:"rating"`
	UUID   string `json:"uuid,omitempty"`
}

// NewBook validates the record in a fixed order and returns the first
// violation as a ValidationError.
func NewBook(rec BookRecord, policy ZeroPolicy) (Book, error) {
	title, ok := textField(rec["title"])
	if !ok {
		return Book{}, ErrTitleRequired
	}

	author, ok := textField(rec["author"])
	if !ok {
		return Book{}, ErrAuthorRequired
	}

	year, ok := yearField(rec["year"], policy)
	if !ok {
		return Book{}, ErrYearRequired
	}

	genre, ok := textField(rec["genre"])
	if !ok {
		return Book{}, ErrGenreRequired
	}

	raw, ok := ratingField(rec, policy)
	if !ok {
		return Book{}, ErrRatingRequired
	}
	rating, err := NormalizeRating(raw)
	if err != nil {
		return Book{}, err
	}

	id, _ := textField(rec["uuid"])

	return Book{
		Title:  title,
		Author: author,
		Year:   year,
		Genre:  genre,
		Rating: rating,
		UUID:   id,
	}, nil
}

// NormalizeRating checks the value lies in [0,10] and truncates it to an integer.
// Non numeric values are out of range.
func NormalizeRating(v interface{}) (int, error) {
	f, ok := toNumber(v)
	if !ok || math.IsNaN(f) || f < MinRating || f > MaxRating {
		return 0, ErrRatingOutOfRange
	}
	// text keeps its leading integer only: "1e1" is in range but rates 1.
	if s, isText := v.(string); isText {
		n, ok := leadingInt(s)
		if !ok {
			return 0, ErrRatingOutOfRange
		}
		return n, nil
	}
	return int(f), nil
}

// String returns the display line of the book.
func (b Book) String() string {
	return fmt.Sprintf(`"%s", %s, %d, %s, %d`, b.Title, b.Author, b.Year, b.Genre, b.Rating)
}

// Export returns the form written into books.json.
func (b Book) Export() BookExport {
	return BookExport{
		Title:  b.Title,
		Author: b.Author,
		Year:   b.Year,
		Genre:  b.Genre,
		Rating: b.Rating,
		UUID:   b.UUID,
	}
}

// Record returns the book as a loose record, so it can be merged with
// edited fields and validated again.
func (b Book) Record() BookRecord {
	rec := BookRecord{
		"title":  b.Title,
		"author": b.Author,
		"year":   b.Year,
		"genre":  b.Genre,
		"rating": b.Rating,
	}
	if b.UUID != "" {
		rec["uuid"] = b.UUID
	}
	return rec
}

// textField accepts non blank strings and numbers rendered as text.
func textField(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return t, true
	case float64, int, int64, jsoniter.Number:
		f, ok := toNumber(t)
		if !ok || f == 0 {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	default:
		return "", false
	}
}

// yearField parses the year the way integer parsing of form input does:
// "1866" and "1866.5" both give 1866. Like rating, a non-empty text is
// present even when it reads "0".
func yearField(v interface{}, policy ZeroPolicy) (int, bool) {
	var year int
	switch t := v.(type) {
	case string:
		n, ok := leadingInt(t)
		if !ok {
			return 0, false
		}
		return n, true
	default:
		f, ok := toNumber(t)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		year = int(f)
	}
	if year == 0 && policy != ZeroIsPresent {
		return 0, false
	}
	return year, true
}

// ratingField picks the public rating, falling back to the legacy field.
func ratingField(rec BookRecord, policy ZeroPolicy) (interface{}, bool) {
	present := isTruthy
	if policy == ZeroIsPresent {
		present = isPresent
	}
	if v := rec["rating"]; present(v) {
		return v, true
	}
	if v := rec[legacyRatingField]; present(v) {
		return v, true
	}
	return nil, false
}

// isTruthy mirrors the loose truthiness check of the first releases:
// nil, empty strings, zero and NaN count as missing.
func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	default:
		f, ok := toNumber(t)
		return ok && f != 0 && !math.IsNaN(f)
	}
}

// isPresent only rejects nil and blank strings.
func isPresent(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}

func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case jsoniter.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// leadingInt parses an optional sign followed by digits, ignoring
// anything after the digits.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
