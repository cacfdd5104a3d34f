package store

import (
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Pebble stores accounts in a pebble database
type Pebble struct {
	mu   sync.RWMutex
	db   *pebble.DB
	path string
}

// OpenPebble opens or creates the database directory at path
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "error opening pebble at %s", path)
	}
	logger.Debugw("opened pebble", "path", path)
	return &Pebble{db: db, path: path}, nil
}

func (p *Pebble) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, ErrClosed
	}
	v, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error retrieving pebble key [%x]", key)
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (p *Pebble) Commit(puts map[string][]byte, deletes []string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return ErrClosed
	}
	b := p.db.NewBatch()
	defer b.Close()
	for _, k := range deletes {
		if err := b.Delete([]byte(k), nil); err != nil {
			return errors.Wrap(err, "commit")
		}
	}
	for _, k := range sortedPuts(puts) {
		if err := b.Set([]byte(k), puts[k], nil); err != nil {
			return errors.Wrap(err, "commit")
		}
	}
	return errors.Wrap(b.Commit(&pebble.WriteOptions{Sync: true}), "commit")
}

func (p *Pebble) Keys() ([][]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, ErrClosed
	}
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "keys")
	}
	var out [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, append([]byte(nil), iter.Key()...))
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "keys")
	}
	return out, nil
}

func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return errors.Wrapf(err, "error closing pebble at %s", p.path)
}
