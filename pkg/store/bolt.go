package store

import (
	"context"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
)

var (
	publicBucket  = []byte("public")
	privateBucket = []byte("private")
)

// Bolt is a Store backed by a bbolt file. Each election is a top-level bucket holding a public
// and a private sub-bucket.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &Bolt{db: db}, nil
}

// Close releases the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Commit writes the records of the election in a single transaction.
func (b *Bolt) Commit(ctx context.Context, election string, records ...Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(election, records); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(election))
		if err != nil {
			return err
		}
		public, err := root.CreateBucketIfNotExists(publicBucket)
		if err != nil {
			return err
		}
		private, err := root.CreateBucketIfNotExists(privateBucket)
		if err != nil {
			return err
		}
		for _, r := range records {
			bucket := public
			if r.Private {
				bucket = private
			}
			if err = bucket.Put([]byte(r.Key), r.Value); err != nil {
				return fmt.Errorf("store: put %s: %w", r.Key, err)
			}
		}
		return nil
	})
}

// Get returns a copy of the record.
func (b *Bolt) Get(ctx context.Context, election, name string, private bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(election))
		if root == nil {
			return ErrNotFound
		}
		bucket := root.Bucket(publicBucket)
		if private {
			bucket = root.Bucket(privateBucket)
		}
		if bucket == nil {
			return ErrNotFound
		}
		v := bucket.Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid for the life of the transaction
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Elections lists the elections in the database.
func (b *Bolt) Elections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			out = append(out, string(name))
			return nil
		})
	})
	return out, err
}
