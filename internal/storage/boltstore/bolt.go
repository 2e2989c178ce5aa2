package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"snipbin/internal/storage"
)

var (
	pasteBucket  = []byte("pastes")
	expireBucket = []byte("expires")
)

var errBuckets = errors.New("buckets not initialized")

// Store implements storage.Store backed by BoltDB.
//
// Records live in the pastes bucket keyed by id. The expires bucket is the
// secondary index: keys are the big-endian expiry in unix nanoseconds followed
// by the id, so a cursor walks expiries in order. Pastes that never expire
// have no index entry.
type Store struct {
	db *bolt.DB
}

// Open initializes a BoltDB-backed store located at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w: %w", storage.ErrUnavailable, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(pasteBucket); err != nil {
			return fmt.Errorf("create paste bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(expireBucket); err != nil {
			return fmt.Errorf("create expire bucket: %w", err)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Create persists a new paste. The existence check and both writes happen in
// one transaction.
func (s *Store) Create(ctx context.Context, paste *storage.Paste) error {
	if paste == nil {
		return errors.New("paste is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Normalize timestamps to UTC for consistency.
	paste.CreatedAt = paste.CreatedAt.UTC()
	paste.ExpiresAt = paste.ExpiresAt.UTC()

	data, err := json.Marshal(paste)
	if err != nil {
		return fmt.Errorf("marshal paste: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		pBucket := tx.Bucket(pasteBucket)
		eBucket := tx.Bucket(expireBucket)
		if pBucket == nil || eBucket == nil {
			return errBuckets
		}

		if pBucket.Get([]byte(paste.ID)) != nil {
			return storage.ErrConflict
		}
		if err := pBucket.Put([]byte(paste.ID), data); err != nil {
			return fmt.Errorf("save paste: %w", err)
		}
		if paste.HasExpiration() {
			if err := eBucket.Put(expireKey(paste.ExpiresAt, paste.ID), []byte(paste.ID)); err != nil {
				return fmt.Errorf("index expiry: %w", err)
			}
		}
		return nil
	})
	return wrap("create paste", err)
}

// Get retrieves a paste by id if it is live at asOf.
func (s *Store) Get(ctx context.Context, id string, asOf time.Time) (*storage.Paste, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *storage.Paste
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(pasteBucket)
		if bucket == nil {
			return errBuckets
		}
		paste, err := decode(bucket.Get([]byte(id)))
		if err != nil {
			return err
		}
		if !paste.LiveAt(asOf) {
			return storage.ErrNotFound
		}
		out = paste
		return nil
	})
	if err != nil {
		return nil, wrap("get paste", err)
	}
	return out, nil
}

// ListExpired walks the expiry index up to and including asOf.
func (s *Store) ListExpired(ctx context.Context, asOf time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cutoff := toTimestamp(asOf)
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		eBucket := tx.Bucket(expireBucket)
		if eBucket == nil {
			return errBuckets
		}
		cursor := eBucket.Cursor()
		for key, val := cursor.First(); key != nil; key, val = cursor.Next() {
			if binary.BigEndian.Uint64(key[:8]) > cutoff {
				break
			}
			ids = append(ids, string(val))
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list expired", err)
	}
	return ids, nil
}

// DeleteIfExpired removes the paste and its index entry when it is expired at
// asOf. Missing or live pastes are left alone and reported as not deleted.
func (s *Store) DeleteIfExpired(ctx context.Context, id string, asOf time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var deleted bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		pBucket := tx.Bucket(pasteBucket)
		eBucket := tx.Bucket(expireBucket)
		if pBucket == nil || eBucket == nil {
			return errBuckets
		}
		raw := pBucket.Get([]byte(id))
		if raw == nil {
			return nil
		}
		paste, err := decode(raw)
		if err != nil {
			return err
		}
		if !paste.ExpiredAt(asOf) {
			return nil
		}
		if err := eBucket.Delete(expireKey(paste.ExpiresAt, paste.ID)); err != nil {
			return fmt.Errorf("delete expiry index: %w", err)
		}
		if err := pBucket.Delete([]byte(id)); err != nil {
			return fmt.Errorf("delete paste: %w", err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, wrap("delete expired paste", err)
	}
	return deleted, nil
}

// Ping checks that the buckets are readable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap("ping", s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(pasteBucket) == nil || tx.Bucket(expireBucket) == nil {
			return errBuckets
		}
		return nil
	}))
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decode(raw []byte) (*storage.Paste, error) {
	if raw == nil {
		return nil, storage.ErrNotFound
	}
	var paste storage.Paste
	if err := json.Unmarshal(raw, &paste); err != nil {
		return nil, fmt.Errorf("unmarshal paste: %w", err)
	}
	return &paste, nil
}

// wrap tags backend failures with storage.ErrUnavailable and leaves the
// domain sentinels untouched.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrConflict):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
}

func expireKey(t time.Time, id string) []byte {
	key := make([]byte, 8+len(id))
	binary.BigEndian.PutUint64(key, toTimestamp(t))
	copy(key[8:], id)
	return key
}

// toTimestamp flips the sign bit of the unix nanosecond value so keys sort
// by signed time, instants before 1970 included.
func toTimestamp(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UTC().UnixNano()) ^ (1 << 63)
}
