package store

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"crank25519.mleku.dev/logging"
)

var logger = logging.MustGetLogger("store")

// LevelDB stores accounts in a goleveldb database
type LevelDB struct {
	mu        sync.RWMutex
	db        *leveldb.DB
	path      string
	readOpts  *opt.ReadOptions
	writeOpts *opt.WriteOptions
}

// OpenLevelDB opens or creates the database at path
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ErrorIfMissing: false})
	if err != nil {
		return nil, errors.Wrapf(err, "error opening leveldb at %s", path)
	}
	logger.Debugw("opened leveldb", "path", path)
	return &LevelDB{
		db:        db,
		path:      path,
		readOpts:  &opt.ReadOptions{},
		writeOpts: &opt.WriteOptions{Sync: true},
	}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return nil, ErrClosed
	}
	v, err := l.db.Get(key, l.readOpts)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error retrieving leveldb key [%x]", key)
	}
	return v, nil
}

func (l *LevelDB) Commit(puts map[string][]byte, deletes []string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return ErrClosed
	}
	batch := &leveldb.Batch{}
	for _, k := range deletes {
		batch.Delete([]byte(k))
	}
	for _, k := range sortedPuts(puts) {
		batch.Put([]byte(k), puts[k])
	}
	if err := l.db.Write(batch, l.writeOpts); err != nil {
		return errors.Wrap(err, "error writing batch to leveldb")
	}
	return nil
}

func (l *LevelDB) Keys() ([][]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return nil, ErrClosed
	}
	it := l.db.NewIterator(nil, l.readOpts)
	defer it.Release()
	var out [][]byte
	for it.Next() {
		out = append(out, append([]byte(nil), it.Key()...))
	}
	return out, errors.Wrap(it.Error(), "error iterating leveldb")
}

func (l *LevelDB) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return errors.Wrapf(err, "error closing leveldb at %s", l.path)
}
