package main

import (
	"context"
	"sync"
)

var _ BlobStore = (*memoryBlobStore)(nil)

type memoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string]Blob
}

// NewMemoryBlobStore provides a process local blob store.
func NewMemoryBlobStore() BlobStore {
	return &memoryBlobStore{blobs: make(map[string]Blob)}
}

// Get returns the blob stored under key.
func (ms *memoryBlobStore) Get(_ context.Context, key string) (Blob, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	blob, ok := ms.blobs[key]
	if !ok {
		return Blob{}, ErrBlobNotFound
	}
	return blob, nil
}

// Put replaces the blob stored under key.
func (ms *memoryBlobStore) Put(_ context.Context, key, value string, expected int64) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	current := ms.blobs[key].Version
	if expected != AnyVersion && expected != current {
		return current, &ConflictError{Key: key, Expected: expected, Actual: current}
	}
	ms.blobs[key] = Blob{Value: value, Version: current + 1}
	return current + 1, nil
}
