package triestore

import (
	"errors"

	jtrie "github.com/vaultchain/jtrie"
	"github.com/vaultchain/jtrie/trie"
	"github.com/vaultchain/jtrie/triemodel"
	"github.com/iotaledger/hive.go/core/kvstore"
)

// hiveKVStoreAdaptor maps a prefixed partition of a hive.go KVStore onto the
// jtrie.KVReader/KVWriter contract the trie package is built against.
type hiveKVStoreAdaptor struct {
	kvs    kvstore.KVStore
	prefix []byte
}

func newHiveKVStoreAdaptor(kvs kvstore.KVStore, prefix []byte) *hiveKVStoreAdaptor {
	return &hiveKVStoreAdaptor{kvs: kvs, prefix: prefix}
}

func mustNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

func hiveKey(prefix, k []byte) []byte {
	if len(prefix) == 0 {
		return k
	}
	return jtrie.Concat(prefix, k)
}

func (a *hiveKVStoreAdaptor) Get(key []byte) []byte {
	v, err := a.kvs.Get(hiveKey(a.prefix, key))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil
	}
	mustNoErr(err)
	return v
}

func (a *hiveKVStoreAdaptor) Has(key []byte) bool {
	v, err := a.kvs.Has(hiveKey(a.prefix, key))
	mustNoErr(err)
	return v
}

func (a *hiveKVStoreAdaptor) Set(key, value []byte) {
	var err error
	if len(value) == 0 {
		err = a.kvs.Delete(hiveKey(a.prefix, key))
	} else {
		err = a.kvs.Set(hiveKey(a.prefix, key), value)
	}
	mustNoErr(err)
}

func (a *hiveKVStoreAdaptor) Iterate(fun func(k, v []byte) bool) {
	err := a.kvs.Iterate(a.prefix, func(key kvstore.Key, value kvstore.Value) bool {
		return fun(key[len(a.prefix):], value)
	})
	mustNoErr(err)
}

// batchWriter is a jtrie.KVWriter backed by a single hive.go batch, used so
// that every node and value touched by one ComputeRoot lands in the
// underlying store atomically.
type batchWriter struct {
	prefix []byte
	batch  kvstore.BatchedMutations
}

func newBatchWriter(b kvstore.BatchedMutations, prefix []byte) batchWriter {
	return batchWriter{prefix: prefix, batch: b}
}

// Set implements jtrie.KVWriter, for use as the trie's own node store
// during PersistMutations; a failure there is a storage-layer fault, not
// a trie error, so it panics like the rest of this adaptor layer.
func (b batchWriter) Set(key, value []byte) {
	mustNoErr(b.trySet(key, value))
}

// trySet is the fallible twin of Set, used directly by PersistentStore's
// Update/Remove so a hive.go write failure can propagate as a returned
// error instead of a panic.
func (b batchWriter) trySet(key, value []byte) error {
	if len(value) > 0 {
		return b.batch.Set(hiveKey(b.prefix, key), value)
	}
	return b.batch.Delete(hiveKey(b.prefix, key))
}

var (
	defaultTriePrefix       = []byte("t")
	defaultValueStorePrefix = []byte("v")
)

// PersistentStore is a jtrie.TrieStorage backed by a hive.go kvstore.KVStore,
// for hosts that need the Merkle state to survive a process restart. Reads
// go straight to the underlying store; writes are buffered in a hive.go
// batch and only become visible once ComputeRoot commits it.
type PersistentStore struct {
	kvs              kvstore.KVStore
	model            *triemodel.CommitmentModel
	trie             *trie.Trie
	valueReader      *hiveKVStoreAdaptor
	triePrefix       []byte
	valueStorePrefix []byte
	batch            kvstore.BatchedMutations
	wTrie            batchWriter
	wValue           batchWriter
}

// NewPersistent returns a PersistentStore over kvs, partitioning node
// commitments and raw values under the given key prefixes.
func NewPersistent(kvs kvstore.KVStore, triePrefix, valueStorePrefix []byte) *PersistentStore {
	if len(triePrefix) == 0 {
		triePrefix = defaultTriePrefix
	}
	if len(valueStorePrefix) == 0 {
		valueStorePrefix = defaultValueStorePrefix
	}
	model := triemodel.New()
	valueReader := newHiveKVStoreAdaptor(kvs, valueStorePrefix)
	return &PersistentStore{
		kvs:   kvs,
		model: model,
		trie: trie.New(
			model,
			newHiveKVStoreAdaptor(kvs, triePrefix),
			valueReader,
			trie.PathArity256,
			false,
		),
		valueReader:      valueReader,
		triePrefix:       triePrefix,
		valueStorePrefix: valueStorePrefix,
	}
}

// Get returns the value most recently flushed to key, if any.
func (s *PersistentStore) Get(key [32]byte) (jtrie.Value, bool) {
	raw := s.valueReader.Get(key[:])
	if raw == nil {
		return jtrie.Value{}, false
	}
	v, err := decodeValue(raw)
	jtrie.Assert(err == nil, "triestore: corrupt value at key %x: %v", key, err)
	return v, true
}

func (s *PersistentStore) ensureBatch() error {
	if s.batch != nil {
		return nil
	}
	batch, err := s.kvs.Batched()
	if err != nil {
		return err
	}
	s.batch = batch
	s.wTrie = newBatchWriter(s.batch, s.triePrefix)
	s.wValue = newBatchWriter(s.batch, s.valueStorePrefix)
	return nil
}

// Update stages key to hold value, both in the trie's cache and in the
// pending batch. Neither is visible through Get until ComputeRoot commits.
// An error here means the batch could not be opened or written to; the
// store's state is unchanged and the caller's commit is aborted.
func (s *PersistentStore) Update(key [32]byte, value jtrie.Value) error {
	if err := s.ensureBatch(); err != nil {
		return err
	}
	encoded := encodeValue(value)
	if err := s.wValue.trySet(key[:], encoded); err != nil {
		return err
	}
	s.trie.Update(key[:], encoded)
	return nil
}

// Remove stages key for deletion.
func (s *PersistentStore) Remove(key [32]byte) error {
	if err := s.ensureBatch(); err != nil {
		return err
	}
	if err := s.wValue.trySet(key[:], nil); err != nil {
		return err
	}
	s.trie.Update(key[:], nil)
	return nil
}

// ComputeRoot recomputes node commitments, persists the trie's node cache
// and the pending value writes into the same hive.go batch, commits it
// atomically, flushes the store and returns the new 32-byte root.
//
// compute_root is specified as non-fallible (spec.md §4.A lists only
// update/remove as "→ fallible"); a batch commit or store flush failure
// here is a storage-layer fault outside that contract, not the trie error
// Overlay.Commit propagates, so it still surfaces via panic.
func (s *PersistentStore) ComputeRoot() [32]byte {
	if s.batch != nil {
		s.trie.Commit()
		s.trie.PersistMutations(s.wTrie)
		mustNoErr(s.batch.Commit())
		mustNoErr(s.kvs.Flush())
		s.trie.ClearCache()
		s.batch = nil
	}

	root := trie.RootCommitment(s.trie)
	var out [32]byte
	if root == nil {
		return out
	}
	copy(out[:], root.Bytes())
	return out
}

// Proof returns a Merkle inclusion (or absence) proof for key against the
// store's current committed state.
func (s *PersistentStore) Proof(key [32]byte) *triemodel.Proof {
	return s.model.Proof(key[:], s.trie)
}

var _ jtrie.TrieStorage = &PersistentStore{}
