// Package triestore adapts the 256-ary authenticated trie in package trie
// into a jtrie.TrieStorage: the durable backing the journaled overlay
// flushes committed writes into. It keeps node commitments and raw values
// in two separate key/value stores, since the blake2b-256 commitment model
// only inlines a value's bytes with its node when they fit in 32 bytes;
// anything larger is hashed in the node and must be fetched back from the
// value store by key.
package triestore

import (
	jtrie "github.com/vaultchain/jtrie"
	"github.com/vaultchain/jtrie/trie"
	"github.com/vaultchain/jtrie/triemodel"
)

// MerkleStore is an in-memory jtrie.TrieStorage backed by the blake2b-256
// commitment model. It is what a fresh Overlay is normally built around in
// tests and in any execution host that does not need cross-process
// persistence.
//
// The trie package only ever sees a value long enough to derive a terminal
// commitment from it; once that commitment is computed the raw bytes are
// discarded from its own buffers. So MerkleStore keeps its own pending-write
// buffer, keyed the same way the trie keys its nodes, and flushes it to the
// value store in the same beat as PersistMutations flushes node commitments.
type MerkleStore struct {
	model      *triemodel.CommitmentModel
	nodeStore  jtrie.KVStore
	valueStore jtrie.KVStore
	trie       *trie.Trie
	pending    map[[32]byte][]byte
}

// NewMemory returns a MerkleStore with both its node and value stores kept
// entirely in memory.
func NewMemory() *MerkleStore {
	return NewWithStores(jtrie.NewInMemoryKVStore(), jtrie.NewInMemoryKVStore())
}

// NewWithStores returns a MerkleStore backed by the given node and value
// stores, which may be the same KVStore or two independent ones.
func NewWithStores(nodeStore, valueStore jtrie.KVStore) *MerkleStore {
	model := triemodel.New()
	return &MerkleStore{
		model:      model,
		nodeStore:  nodeStore,
		valueStore: valueStore,
		trie:       trie.New(model, nodeStore, valueStore, trie.PathArity256, false),
		pending:    make(map[[32]byte][]byte),
	}
}

// Get returns the value most recently flushed to key, if any. Writes staged
// since the last ComputeRoot are not visible yet, matching the underlying
// trie's own read-after-commit semantics.
func (s *MerkleStore) Get(key [32]byte) (jtrie.Value, bool) {
	raw := s.valueStore.Get(key[:])
	if raw == nil {
		return jtrie.Value{}, false
	}
	v, err := decodeValue(raw)
	jtrie.Assert(err == nil, "triestore: corrupt value at key %x: %v", key, err)
	return v, true
}

// Update stages key to hold value in the trie's in-memory cache. Nothing
// is persisted to either store until ComputeRoot runs the commit. An
// in-memory store never fails a staged write; the error return exists only
// to satisfy jtrie.TrieStorage.
func (s *MerkleStore) Update(key [32]byte, value jtrie.Value) error {
	encoded := encodeValue(value)
	s.trie.Update(key[:], encoded)
	s.pending[key] = encoded
	return nil
}

// Remove stages key for deletion.
func (s *MerkleStore) Remove(key [32]byte) error {
	s.trie.Update(key[:], nil)
	s.pending[key] = nil
	return nil
}

// ComputeRoot recomputes node commitments bottom-up, persists every
// buffered node and value to their stores, clears the trie's cache and
// returns the new 32-byte root.
func (s *MerkleStore) ComputeRoot() [32]byte {
	s.trie.Commit()
	s.trie.PersistMutations(s.nodeStore)
	s.persistValues()
	s.trie.ClearCache()

	root := trie.RootCommitment(s.trie)
	var out [32]byte
	if root == nil {
		return out
	}
	copy(out[:], root.Bytes())
	return out
}

// persistValues flushes the pending key/value buffer into the value store,
// deleting keys that were removed since the last commit, and resets it.
func (s *MerkleStore) persistValues() {
	for key, encoded := range s.pending {
		if encoded == nil {
			s.valueStore.Set(key[:], nil)
			continue
		}
		s.valueStore.Set(key[:], encoded)
	}
	s.pending = make(map[[32]byte][]byte)
}

// Proof returns a Merkle inclusion (or absence) proof for key against the
// store's current committed state.
func (s *MerkleStore) Proof(key [32]byte) *triemodel.Proof {
	return s.model.Proof(key[:], s.trie)
}

var _ jtrie.TrieStorage = &MerkleStore{}
