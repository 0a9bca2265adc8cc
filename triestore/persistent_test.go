package triestore

import (
	"testing"

	jtrie "github.com/vaultchain/jtrie"
	"github.com/iotaledger/hive.go/core/kvstore/mapdb"
	"github.com/stretchr/testify/require"
)

func TestPersistentGetMissingKeyReturnsFalse(t *testing.T) {
	s := NewPersistent(mapdb.NewMapDB(), nil, nil)
	var key [32]byte
	_, found := s.Get(key)
	require.False(t, found)
}

func TestPersistentUpdateIsInvisibleUntilComputeRoot(t *testing.T) {
	s := NewPersistent(mapdb.NewMapDB(), nil, nil)
	var key [32]byte
	key[0] = 1
	s.Update(key, jtrie.Value{Flags: 1, Words: []jtrie.Word{word(3)}})

	_, found := s.Get(key)
	require.False(t, found)

	s.ComputeRoot()
	v, found := s.Get(key)
	require.True(t, found)
	require.Equal(t, word(3), v.Words[0])
}

func TestPersistentSurvivesAcrossStoreHandles(t *testing.T) {
	kvs := mapdb.NewMapDB()
	writer := NewPersistent(kvs, []byte("t"), []byte("v"))

	var key [32]byte
	key[0] = 7
	writer.Update(key, jtrie.Value{Flags: 2, Words: []jtrie.Word{word(42)}})
	root := writer.ComputeRoot()

	reader := NewPersistent(kvs, []byte("t"), []byte("v"))
	v, found := reader.Get(key)
	require.True(t, found)
	require.Equal(t, word(42), v.Words[0])
	require.Equal(t, root, reader.ComputeRoot())
}

func TestPersistentRemoveHidesValueAfterComputeRoot(t *testing.T) {
	s := NewPersistent(mapdb.NewMapDB(), nil, nil)
	var key [32]byte
	key[0] = 9
	s.Update(key, jtrie.Value{Flags: 1, Words: []jtrie.Word{word(1)}})
	s.ComputeRoot()

	s.Remove(key)
	s.ComputeRoot()

	_, found := s.Get(key)
	require.False(t, found)
}

func TestPersistentDistinctPrefixesDoNotCollide(t *testing.T) {
	kvs := mapdb.NewMapDB()
	a := NewPersistent(kvs, []byte("a-t"), []byte("a-v"))
	b := NewPersistent(kvs, []byte("b-t"), []byte("b-v"))

	var key [32]byte
	key[0] = 5
	a.Update(key, jtrie.Value{Flags: 1, Words: []jtrie.Word{word(11)}})
	a.ComputeRoot()

	_, found := b.Get(key)
	require.False(t, found, "stores under different prefixes must not see each other's writes")
}
