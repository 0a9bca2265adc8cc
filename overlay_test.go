package jtrie

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

var errFakeStorage = errors.New("fakeStorage: induced failure")

// fakeStorage is a minimal, deterministic TrieStorage used to exercise the
// overlay without pulling in the full Merkle trie: its root is the sha256
// of every (key, value) pair in sorted key order, so two independently
// built stores with the same content always agree on a root.
type fakeStorage struct {
	data        map[[32]byte]Value
	updateCalls int
	removeCalls int
	updatedKeys [][32]byte
	failOn      func(key [32]byte) bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{data: make(map[[32]byte]Value)}
}

func (f *fakeStorage) Get(key [32]byte) (Value, bool) {
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeStorage) Update(key [32]byte, value Value) error {
	if f.failOn != nil && f.failOn(key) {
		return errFakeStorage
	}
	f.updateCalls++
	f.updatedKeys = append(f.updatedKeys, key)
	f.data[key] = value
	return nil
}

func (f *fakeStorage) Remove(key [32]byte) error {
	if f.failOn != nil && f.failOn(key) {
		return errFakeStorage
	}
	f.removeCalls++
	delete(f.data, key)
	return nil
}

func (f *fakeStorage) ComputeRoot() [32]byte {
	keys := make([][32]byte, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })

	h := sha256.New()
	for _, k := range keys {
		h.Write(k[:])
		v := f.data[k]
		var flagsBuf [4]byte
		binary.LittleEndian.PutUint32(flagsBuf[:], v.Flags)
		h.Write(flagsBuf[:])
		for _, w := range v.Words {
			h.Write(w[:])
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func key(label string) [32]byte {
	var k [32]byte
	copy(k[:], label)
	return k
}

func val(label string) Value {
	var w Word
	copy(w[:], label)
	return Value{Words: []Word{w}}
}

func rootOf(pairs map[[32]byte]Value) [32]byte {
	s := newFakeStorage()
	for k, v := range pairs {
		s.Update(k, v)
	}
	return s.ComputeRoot()
}

func TestCommitMultipleValuesGrowsRoot(t *testing.T) {
	storage := newFakeStorage()
	o := NewOverlay(storage)

	o.Update(key("key1"), val("val1"))
	o.Update(key("key2"), val("val2"))
	root1, _, err := o.Commit()
	require.NoError(t, err)
	require.Equal(t, rootOf(map[[32]byte]Value{
		key("key1"): val("val1"),
		key("key2"): val("val2"),
	}), root1)

	o.Update(key("key3"), val("val3"))
	root2, _, err := o.Commit()
	require.NoError(t, err)
	require.Equal(t, rootOf(map[[32]byte]Value{
		key("key1"): val("val1"),
		key("key2"): val("val2"),
		key("key3"): val("val3"),
	}), root2)
}

func TestRollbackRestoresPreCheckpointRoot(t *testing.T) {
	storage := newFakeStorage()
	o := NewOverlay(storage)

	o.Update(key("key1"), val("val1"))
	o.Update(key("key2"), val("val2"))
	committedRoot, _, err := o.Commit()
	require.NoError(t, err)

	cp := o.Checkpoint()
	o.Update(key("key3"), val("val3"))
	o.Rollback(cp)
	require.Equal(t, 0, o.state.len())
	require.Equal(t, committedRoot, o.ComputeRoot())

	cp = o.Checkpoint()
	o.Update(key("key2"), val("Hello, World"))
	o.Rollback(cp)
	require.Equal(t, 0, o.state.len())
	require.Equal(t, committedRoot, o.ComputeRoot())
}

func TestRollbackToEmpty(t *testing.T) {
	storage := newFakeStorage()
	o := NewOverlay(storage)
	emptyRoot := o.ComputeRoot()

	cp := o.Checkpoint()
	o.Update(key("key1"), val("val1"))
	o.Update(key("key2"), val("val2"))
	o.Rollback(cp)
	require.Equal(t, emptyRoot, o.ComputeRoot())
	require.Equal(t, 0, o.state.len())

	cp = o.Checkpoint()
	o.Update(key("key3"), val("val3"))
	o.Update(key("key4"), val("val4"))
	o.Rollback(cp)
	require.Equal(t, emptyRoot, o.ComputeRoot())
	require.Equal(t, 0, o.state.len())
}

func TestStorageStoreLoadWarmThenCold(t *testing.T) {
	storage := newFakeStorage()
	o := NewOverlay(storage)
	var address Address
	copy(address[:], "contractaddressAAAA")

	slot := key("slot1")
	require.NoError(t, o.Store(address, Word(slot), Word(key("value1"))))

	v, isCold, found, err := o.Load(address, Word(slot))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, Word(key("value1")), v)
	require.False(t, isCold)

	_, _, commitErr := o.Commit()
	require.NoError(t, commitErr)

	v, isCold, found, err = o.Load(address, Word(slot))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, Word(key("value1")), v)
	require.True(t, isCold)
}

func TestRollbackAcrossNestedCheckpoints(t *testing.T) {
	storage := newFakeStorage()
	o := NewOverlay(storage)

	o.Update(key("k1"), val("v1"))
	cp1 := o.Checkpoint()
	o.Update(key("k2"), val("v2"))
	_ = o.Checkpoint()
	o.Update(key("k3"), val("v3"))

	o.Rollback(cp1)

	v, _, found := o.Get(key("k1"))
	require.True(t, found)
	require.Equal(t, val("v1"), v)

	_, _, found = o.Get(key("k2"))
	require.False(t, found)
	_, _, found = o.Get(key("k3"))
	require.False(t, found)
}

func TestCommitCoalescesByKey(t *testing.T) {
	storage := newFakeStorage()
	o := NewOverlay(storage)

	o.Update(key("k1"), val("first"))
	o.Update(key("k1"), val("second"))
	o.Update(key("k1"), val("third"))

	_, _, err := o.Commit()
	require.NoError(t, err)

	require.Equal(t, 1, storage.updateCalls)
	v, ok := storage.Get(key("k1"))
	require.True(t, ok)
	require.Equal(t, val("third"), v)
}

func TestRollbackPastCommittedWatermarkPanics(t *testing.T) {
	storage := newFakeStorage()
	o := NewOverlay(storage)

	o.Update(key("k1"), val("v1"))
	cp := o.Checkpoint()
	_, _, err := o.Commit()
	require.NoError(t, err)

	o.Update(key("k2"), val("v2"))

	require.Panics(t, func() {
		o.Rollback(cp)
	})
}

func TestCommitWithNothingStagedPanics(t *testing.T) {
	storage := newFakeStorage()
	o := NewOverlay(storage)

	o.Update(key("k1"), val("v1"))
	_, _, err := o.Commit()
	require.NoError(t, err)

	require.Panics(t, func() {
		o.Commit()
	})
}

func TestCommitPropagatesStorageError(t *testing.T) {
	storage := newFakeStorage()
	storage.failOn = func(k [32]byte) bool { return k == key("bad") }
	o := NewOverlay(storage)

	o.Update(key("bad"), val("v1"))

	root, logs, err := o.Commit()
	require.Error(t, err)
	require.Equal(t, [32]byte{}, root)
	require.Nil(t, logs)
	require.Equal(t, 0, storage.updateCalls)
}
