package store

import (
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var accountsBucket = []byte("accounts")

// Bolt stores accounts in a single bbolt bucket
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database file at path
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "error opening bolt db at %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error creating accounts bucket")
	}
	logger.Debugw("opened bolt", "path", path)
	return &Bolt{db: db}, nil
}

func (b *Bolt) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(accountsBucket).Get(key); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err == bolt.ErrDatabaseNotOpen {
		return nil, ErrClosed
	}
	return out, errors.Wrapf(err, "error retrieving bolt key [%x]", key)
}

func (b *Bolt) Commit(puts map[string][]byte, deletes []string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(accountsBucket)
		for _, k := range deletes {
			if err := bucket.Delete([]byte(k)); err != nil {
				return err
			}
		}
		for _, k := range sortedPuts(puts) {
			if err := bucket.Put([]byte(k), puts[k]); err != nil {
				return err
			}
		}
		return nil
	})
	if err == bolt.ErrDatabaseNotOpen {
		return ErrClosed
	}
	return errors.Wrap(err, "error committing bolt transaction")
}

func (b *Bolt) Keys() ([][]byte, error) {
	var out [][]byte
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(k, _ []byte) error {
			out = append(out, append([]byte(nil), k...))
			return nil
		})
	})
	if err == bolt.ErrDatabaseNotOpen {
		return nil, ErrClosed
	}
	return out, errors.Wrap(err, "error iterating bolt bucket")
}

func (b *Bolt) Close() error {
	return errors.Wrap(b.db.Close(), "error closing bolt db")
}
