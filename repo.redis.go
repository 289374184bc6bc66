package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Each blob is a redis hash holding the value and its version.
const (
	hFieldValue   = "value"
	hFieldVersion = "version"
)

var _ BlobStore = (*redisBlobStore)(nil)

type redisBlobStore struct {
	logger *zap.Logger
	client *redis.Client
}

// NewRedisBlobStore provides an instance of redis-based blob storage.
func NewRedisBlobStore(logger *zap.Logger, client *redis.Client) BlobStore {
	return &redisBlobStore{
		logger: logger,
		client: client,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// Get retrieves the blob stored under key.
func (rs *redisBlobStore) Get(ctx context.Context, key string) (Blob, error) {
	fields, err := rs.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Blob{}, err
	}
	value, ok := fields[hFieldValue]
	if !ok {
		return Blob{}, ErrBlobNotFound
	}
	version, err := strconv.ParseInt(fields[hFieldVersion], 10, 64)
	if err != nil {
		return Blob{}, fmt.Errorf("invalid version of %q: %w", key, err)
	}
	return Blob{Value: value, Version: version}, nil
}

// Put overwrites the blob. A conditional write watches the key so
// a concurrent writer makes the transaction fail.
func (rs *redisBlobStore) Put(ctx context.Context, key, value string, expected int64) (int64, error) {
	if expected == AnyVersion {
		var incr *redis.IntCmd
		_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hFieldValue, value)
			incr = pipe.HIncrBy(ctx, key, hFieldVersion, 1)
			return nil
		})
		if err != nil {
			return 0, err
		}
		return incr.Val(), nil
	}

	var version int64
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, hFieldVersion).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != expected {
			return &ConflictError{Key: key, Expected: expected, Actual: current}
		}
		version = current + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hFieldValue, value, hFieldVersion, version)
			return nil
		})
		return err
	}

	err := rs.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		actual, herr := rs.client.HGet(ctx, key, hFieldVersion).Int64()
		if herr != nil && herr != redis.Nil {
			rs.logger.Error("redis: failed to read version after conflict", zap.String("catalog.key", key), zap.Error(herr))
		}
		return actual, &ConflictError{Key: key, Expected: expected, Actual: actual}
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}
