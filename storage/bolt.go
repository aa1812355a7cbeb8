package storage

import (
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

// bucketBundles holds every cache record, keyed by storage key.
var bucketBundles = []byte("bundles")

// Bolt is a bbolt-backed adapter. A single bucket holds all records; keys
// enumerate in byte order, which bbolt guarantees.
type Bolt struct {
	db     *bbolt.DB
	logger *slog.Logger
	noSync bool
}

// BoltOption configures a Bolt adapter.
type BoltOption func(*Bolt)

// WithLogger sets the logger for the adapter.
func WithLogger(logger *slog.Logger) BoltOption {
	return func(b *Bolt) {
		b.logger = logger
	}
}

// WithNoSync disables fsync per transaction.
// WARNING: This improves write performance but risks data loss on crash.
// Use only for testing or benchmarking, never in production.
func WithNoSync(noSync bool) BoltOption {
	return func(b *Bolt) {
		b.noSync = noSync
	}
}

// OpenBolt opens (creating if necessary) a bbolt database at the given path.
func OpenBolt(path string, opts ...BoltOption) (*Bolt, error) {
	b := &Bolt{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
		NoSync:  b.noSync,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBundles); err != nil {
			return fmt.Errorf("creating bucket %s: %w", bucketBundles, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	b.db = db
	b.logger.Debug("opened bolt adapter", "path", path, "noSync", b.noSync)
	return b, nil
}

// Close closes the database.
func (b *Bolt) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Get retrieves the value at the given key.
func (b *Bolt) Get(key string) (string, error) {
	var value string
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketBundles).Get([]byte(key))
		if v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	if !found {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores a value at the given key.
func (b *Bolt) Set(key, value string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBundles).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	return nil
}

// Remove deletes the key.
func (b *Bolt) Remove(key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBundles).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("removing key: %w", err)
	}
	return nil
}

// Keys returns all keys in byte order.
func (b *Bolt) Keys() ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBundles).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}

// Len returns the number of keys.
func (b *Bolt) Len() (int, error) {
	var n int
	err := b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketBundles).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting keys: %w", err)
	}
	return n, nil
}

// Compile-time interface check
var _ Adapter = (*Bolt)(nil)
