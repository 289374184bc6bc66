package main

import (
	"context"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// backupConsumer mirrors catalog snapshots into a second blob store.
type backupConsumer struct {
	logger *zap.Logger
	queue  Queuer
	mirror BlobStore
}

func NewBackupConsumer(logger *zap.Logger, q Queuer, mirror BlobStore) Consumer {
	return &backupConsumer{logger, q, mirror}
}

// Consume writes every popped snapshot into the mirror until ctx is done.
// Snapshots may arrive out of order, so an older version never
// overwrites a newer one.
func (bc *backupConsumer) Consume(ctx context.Context, qids ...string) error {
	var snap Snapshot
	var err error
	var qid string
	for {
		qid, snap, err = bc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			bc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			bc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			continue
		}

		if err = bc.mirrorSnapshot(ctx, snap); err != nil {
			bc.logger.Error("consumer: failed to mirror snapshot",
				zap.String("qid", qid),
				zap.String("catalog.key", snap.Key),
				zap.Int64("catalog.version", snap.Version),
				zap.Error(err),
			)
		}
	}
}

func (bc *backupConsumer) mirrorSnapshot(ctx context.Context, snap Snapshot) error {
	var mirrored Snapshot
	blob, err := bc.mirror.Get(ctx, snapshotKey(snap.Key))
	if err == nil {
		if err = json.Unmarshal([]byte(blob.Value), &mirrored); err == nil && mirrored.Version >= snap.Version {
			bc.logger.Debug("consumer: stale snapshot skipped",
				zap.String("catalog.key", snap.Key),
				zap.Int64("catalog.version", snap.Version),
			)
			return nil
		}
	}

	snapBytes, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	// the metadata only moves once the value it describes is stored.
	if _, err = bc.mirror.Put(ctx, snap.Key, snap.Value, AnyVersion); err != nil {
		return err
	}
	_, err = bc.mirror.Put(ctx, snapshotKey(snap.Key), string(snapBytes), AnyVersion)
	return err
}

// snapshotKey names the mirror entry holding the last snapshot metadata.
func snapshotKey(key string) string {
	return key + ".snapshot"
}
