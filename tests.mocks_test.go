package main

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.

type MockBlobStore struct {
	GetFunc func(ctx context.Context, key string) (Blob, error)
	PutFunc func(ctx context.Context, key, value string, expected int64) (int64, error)
}

// Get mocks the behavior of reading a blob.
func (m *MockBlobStore) Get(ctx context.Context, key string) (Blob, error) {
	return m.GetFunc(ctx, key)
}

// Put mocks the behavior of writing a blob.
func (m *MockBlobStore) Put(ctx context.Context, key, value string, expected int64) (int64, error) {
	return m.PutFunc(ctx, key, value, expected)
}

// MockQueuer records pushed snapshots and serves popped ones from a channel.
type MockQueuer struct {
	mu      sync.Mutex
	Pushed  []Snapshot
	PushErr error
	PopCh   chan Snapshot
}

func NewMockQueuer() *MockQueuer {
	return &MockQueuer{PopCh: make(chan Snapshot, 8)}
}

// Push mocks the behavior of queueing a snapshot.
func (m *MockQueuer) Push(_ context.Context, qid string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PushErr != nil {
		return m.PushErr
	}
	m.Pushed = append(m.Pushed, snap)
	return nil
}

// Pop blocks until a snapshot is sent on PopCh or ctx is done.
func (m *MockQueuer) Pop(ctx context.Context, qids ...string) (string, Snapshot, error) {
	select {
	case <-ctx.Done():
		return "", Snapshot{}, ctx.Err()
	case snap := <-m.PopCh:
		return qids[0], snap, nil
	}
}

func (m *MockQueuer) pushed() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.Pushed...)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDGenerator.
type MockUIDHandler struct {
	MockedUID string
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// sequenceIDs hands out b:1, b:2 ... so several books get distinct ids.
type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) Generate(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s:%d", prefix, s.n)
}
