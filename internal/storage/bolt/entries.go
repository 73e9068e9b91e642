package boltrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
)

const bucketName = "store_entries"

// EntryRepository keeps entries in a single bolt bucket.
type EntryRepository struct {
	db *bolt.DB
}

var _ iface.EntryRepository = (*EntryRepository)(nil)

// Open opens (or creates) the bolt file at path and ensures the bucket exists.
func Open(path string) (*EntryRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt: create folder for %q: %w", path, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: create bucket %q: %w", bucketName, err)
	}
	return &EntryRepository{db: db}, nil
}

// Close releases the bolt file lock.
func (r *EntryRepository) Close() error {
	return r.db.Close()
}

func (r *EntryRepository) Get(_ context.Context, key string) (iface.Entry, error) {
	var value []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if raw == nil {
			return iface.ErrNotFound
		}
		// bolt memory is only valid inside the transaction
		value = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return iface.Entry{}, err
	}
	return iface.Entry{Key: key, Value: value}, nil
}

func (r *EntryRepository) Upsert(_ context.Context, entry iface.Entry) (iface.Entry, error) {
	if err := iface.ValidateKey(entry.Key); err != nil {
		return iface.Entry{}, err
	}
	value := iface.NormalizeValue(entry.Value)
	err := r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.Key), value)
	})
	if err != nil {
		return iface.Entry{}, fmt.Errorf("bolt: put %q: %w", entry.Key, err)
	}
	return iface.Entry{Key: entry.Key, Value: value}, nil
}

func (r *EntryRepository) Delete(_ context.Context, key string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(key)) == nil {
			return iface.ErrNotFound
		}
		return bucket.Delete([]byte(key))
	})
}
