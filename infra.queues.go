package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotQueue is the default queue id of catalog snapshots.
const SnapshotQueue = "catalog.snapshots"

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// Snapshot is a copy of the catalog blob taken after a write.
type Snapshot struct {
	Key     string    `json:"key"`
	Value   string    `json:"value"`
	Version int64     `json:"version"`
	TakenAt time.Time `json:"takenAt"`
}

// Queuer describes a queue of catalog snapshots.
type Queuer interface {
	Push(ctx context.Context, qid string, snap Snapshot) error
	Pop(ctx context.Context, qids ...string) (string, Snapshot, error)
}

// redisQueue represents a queue which implements the Queuer interface.
type redisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) Queuer {
	return &redisQueue{client: client}
}

// Push enqueues a snapshot onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, snap Snapshot) error {
	snapBytes, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, snapBytes).Err()
}

// Pop blocks until a snapshot is available on one of the queue ids.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, Snapshot, error) {
	var snap Snapshot
	var qid string
	infos, err := q.client.BLPop(ctx, 0*time.Second, qids...).Result()
	if err != nil {
		return qid, snap, err
	}

	if err = json.Unmarshal([]byte(infos[1]), &snap); err != nil {
		return qid, snap, err
	}
	qid = infos[0]
	return qid, snap, nil
}
