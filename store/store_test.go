package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends opens one instance of every Store under a temporary directory
func backends(t *testing.T) map[string]Store {
	dir := t.TempDir()
	out := map[string]Store{"memory": NewMemory()}

	ldb, err := OpenLevelDB(filepath.Join(dir, "leveldb"))
	require.NoError(t, err)
	out["leveldb"] = ldb

	bdb, err := OpenBolt(filepath.Join(dir, "accounts.db"))
	require.NoError(t, err)
	out["bolt"] = bdb

	pdb, err := OpenPebble(filepath.Join(dir, "pebble"))
	require.NoError(t, err)
	out["pebble"] = pdb
	return out
}

func TestStoreCommitAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			v, err := s.Get([]byte("missing"))
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, s.Commit(map[string][]byte{
				"a": []byte("one"),
				"b": []byte("two"),
				"c": {},
			}, nil))

			v, err = s.Get([]byte("a"))
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), v)

			require.NoError(t, s.Commit(map[string][]byte{"a": []byte("uno")}, []string{"b"}))
			v, err = s.Get([]byte("a"))
			require.NoError(t, err)
			assert.Equal(t, []byte("uno"), v)
			v, err = s.Get([]byte("b"))
			require.NoError(t, err)
			assert.Nil(t, v)

			keys, err := s.Keys()
			require.NoError(t, err)
			assert.Equal(t, [][]byte{[]byte("a"), []byte("c")}, keys)
		})
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			val := []byte("value")
			require.NoError(t, s.Commit(map[string][]byte{"k": val}, nil))
			val[0] = 'X'

			v, err := s.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("value"), v)
			v[0] = 'Y'

			again, err := s.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("value"), again)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	_, err := m.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Commit(nil, nil), ErrClosed)

	dir := t.TempDir()
	p, err := OpenPebble(filepath.Join(dir, "pebble"))
	require.NoError(t, err)
	require.NoError(t, p.Close())
	_, err = p.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStoreReopen(t *testing.T) {
	dir := t.TempDir()
	for _, kind := range []string{"leveldb", "bolt", "pebble"} {
		t.Run(kind, func(t *testing.T) {
			path := filepath.Join(dir, kind)
			s, err := Open(kind, path)
			require.NoError(t, err)
			require.NoError(t, s.Commit(map[string][]byte{"persist": []byte("yes")}, nil))
			require.NoError(t, s.Close())

			s, err = Open(kind, path)
			require.NoError(t, err)
			defer s.Close()
			v, err := s.Get([]byte("persist"))
			require.NoError(t, err)
			assert.Equal(t, []byte("yes"), v)
		})
	}

	_, err := Open("redis", "")
	assert.Error(t, err)
}
