package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// TestBackupConsumer_Mirror ensures snapshots land in the mirror and
// older versions never replace newer ones.
func TestBackupConsumer_Mirror(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	queue := NewMockQueuer()
	mirror := NewMemoryBlobStore()
	consumer := NewBackupConsumer(zap.NewNop(), queue, mirror)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, SnapshotQueue)
	}()

	queue.PopCh <- Snapshot{Key: "books", Value: `[{"v":2}]`, Version: 2}
	queue.PopCh <- Snapshot{Key: "books", Value: `[{"v":1}]`, Version: 1}
	queue.PopCh <- Snapshot{Key: "books", Value: `[{"v":3}]`, Version: 3}

	require.Eventually(t, func() bool {
		blob, err := mirror.Get(context.Background(), "books")
		return err == nil && blob.Value == `[{"v":3}]`
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}

	// the stale snapshot was skipped: two writes of the value only.
	blob, err := mirror.Get(context.Background(), "books")
	require.NoError(t, err)
	assert.Equal(t, int64(2), blob.Version)

	meta, err := mirror.Get(context.Background(), snapshotKey("books"))
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(meta.Value), &snap))
	assert.Equal(t, int64(3), snap.Version)
}

// TestBackupConsumer_FailedValueWrite ensures the snapshot metadata is
// left untouched when the catalog value could not be mirrored.
func TestBackupConsumer_FailedValueWrite(t *testing.T) {
	var written []string
	mirror := &MockBlobStore{
		GetFunc: func(_ context.Context, _ string) (Blob, error) {
			return Blob{}, ErrBlobNotFound
		},
		PutFunc: func(_ context.Context, key, _ string, _ int64) (int64, error) {
			written = append(written, key)
			if key == "books" {
				return 0, errors.New("disk full")
			}
			return 1, nil
		},
	}
	consumer := NewBackupConsumer(zap.NewNop(), NewMockQueuer(), mirror).(*backupConsumer)

	err := consumer.mirrorSnapshot(context.Background(), Snapshot{Key: "books", Value: `[]`, Version: 4})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, []string{"books"}, written)
}

// TestBackupConsumer_CancelledContext ensures a done context stops the consumer at once.
func TestBackupConsumer_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	consumer := NewBackupConsumer(zap.NewNop(), NewMockQueuer(), NewMemoryBlobStore())
	assert.NoError(t, consumer.Consume(ctx, SnapshotQueue))
}

// TestCatalogService_Snapshots ensures successful writes queue a snapshot
// and reads or failed writes do not.
func TestCatalogService_Snapshots(t *testing.T) {
	config := &Config{Catalog: testCatalogConfig, Backup: BackupConfig{Enabled: true, Queue: SnapshotQueue}}
	queue := NewMockQueuer()
	store := newTestCatalogStore(t, NewMemoryBlobStore(), config.Catalog)
	svc := NewCatalogService(zap.NewNop(), config, NewMockClocker(), store, queue)
	ctx := context.Background()

	book, err := svc.Add(ctx, validRecord())
	require.NoError(t, err)
	_, err = svc.GetAll(ctx)
	require.NoError(t, err)
	_, err = svc.Add(ctx, BookRecord{})
	require.Error(t, err)
	sorted, err := svc.SortBy(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, sorted)
	require.NoError(t, svc.Delete(ctx, book.UUID))

	pushed := queue.pushed()
	require.Len(t, pushed, 2)
	assert.Equal(t, int64(1), pushed[0].Version)
	assert.Equal(t, int64(2), pushed[1].Version)
	assert.Equal(t, "books", pushed[1].Key)
	assert.JSONEq(t, `[]`, pushed[1].Value)
	assert.Equal(t, NewMockClocker().Now(), pushed[1].TakenAt)
}

// TestCatalogService_ImportSnapshots ensures an import queues a snapshot
// only when it replaced the catalog.
func TestCatalogService_ImportSnapshots(t *testing.T) {
	config := &Config{Catalog: testCatalogConfig, Backup: BackupConfig{Enabled: true, Queue: SnapshotQueue}}
	queue := NewMockQueuer()
	store := newTestCatalogStore(t, NewMemoryBlobStore(), config.Catalog)
	svc := NewCatalogService(zap.NewNop(), config, NewMockClocker(), store, queue)
	ctx := context.Background()

	_, err := svc.Add(ctx, validRecord())
	require.NoError(t, err)

	report, err := svc.Import(ctx, []byte(`[{"title":""}]`))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Imported)
	books, err := svc.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
	require.Len(t, queue.pushed(), 1)

	report, err = svc.Import(ctx, []byte(`[{"title":"T","author":"A","year":2000,"genre":"G","rating":5}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)

	blob, err := store.Raw(ctx)
	require.NoError(t, err)
	pushed := queue.pushed()
	require.Len(t, pushed, 2)
	assert.Equal(t, blob.Version, pushed[1].Version)
	assert.Equal(t, blob.Value, pushed[1].Value)
}
