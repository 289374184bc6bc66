package main

import (
	"context"
	"errors"
)

// AnyVersion disables the version check of BlobStore.Put.
const AnyVersion int64 = -1

var ErrBlobNotFound = errors.New("blob not found")

// Blob is the value stored under a key with its write counter.
// An absent key has version 0.
type Blob struct {
	Value   string
	Version int64
}

// BlobStore is a string keyed store of whole values.
type BlobStore interface {
	// Get returns ErrBlobNotFound when nothing was stored under key.
	Get(ctx context.Context, key string) (Blob, error)
	// Put overwrites the value and returns the new version. Unless expected
	// is AnyVersion, it fails with a *ConflictError when the stored version differs.
	Put(ctx context.Context, key, value string, expected int64) (int64, error)
}
