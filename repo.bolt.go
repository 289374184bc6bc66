package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// versionsBucket keeps the version of every blob of the data bucket.
var versionsBucket = []byte("versions")

var _ BlobStore = (*boltBlobStore)(nil)

type boltBlobStore struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
}

// GetBoltDBClient setup the database and the buckets then provides a ready to use client.
func GetBoltDBClient(config *BoltDBConfig) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create the database folder, %v", err)
	}
	db, err := bolt.Open(config.FilePath, 0o600, &bolt.Options{Timeout: config.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{[]byte(config.BucketName), versionsBucket} {
			if _, errB := tx.CreateBucketIfNotExists(name); errB != nil {
				return fmt.Errorf("failed to create %s bucket: %v", name, errB)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up buckets: %v", err)
	}
	return db, nil
}

// NewBoltBlobStore provides an instance of bolt-based blob storage.
func NewBoltBlobStore(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) BlobStore {
	return &boltBlobStore{
		logger: logger,
		client: client,
		config: boltConfig,
	}
}

// Close shuts down the bolt-based blob storage.
func (bs *boltBlobStore) Close() error {
	return bs.client.Close()
}

// Get retrieves the blob stored under key.
func (bs *boltBlobStore) Get(_ context.Context, key string) (Blob, error) {
	var blob Blob
	// initialize a readable transaction.
	tx, err := bs.client.Begin(false)
	if err != nil {
		return blob, err
	}
	defer tx.Rollback()

	value := tx.Bucket([]byte(bs.config.BucketName)).Get([]byte(key))
	if value == nil {
		return blob, ErrBlobNotFound
	}
	blob.Value = string(value)
	blob.Version = decodeVersion(tx.Bucket(versionsBucket).Get([]byte(key)))
	return blob, nil
}

// Put overwrites the blob. Bolt runs a single writable transaction at
// a time, so checking the version inside it is enough.
func (bs *boltBlobStore) Put(_ context.Context, key, value string, expected int64) (int64, error) {
	var version int64
	err := bs.client.Update(func(tx *bolt.Tx) error {
		versions := tx.Bucket(versionsBucket)
		current := decodeVersion(versions.Get([]byte(key)))
		if expected != AnyVersion && expected != current {
			return &ConflictError{Key: key, Expected: expected, Actual: current}
		}
		version = current + 1
		if err := tx.Bucket([]byte(bs.config.BucketName)).Put([]byte(key), []byte(value)); err != nil {
			return err
		}
		return versions.Put([]byte(key), encodeVersion(version))
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func encodeVersion(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func decodeVersion(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
