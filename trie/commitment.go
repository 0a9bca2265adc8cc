package trie

import (
	jtrie "github.com/vaultchain/jtrie"
)

// abstraction of commitment data: aliased to the root package so a
// CommitmentModel implementation can be written against either
// trie.VCommitment or jtrie.VCommitment interchangeably.

// Serializable is a common interface for serialization of commitment data
type Serializable = jtrie.Serializable

// VCommitment represents interface to the vector commitment. It can be hash, or it can be a curve element
type VCommitment = jtrie.VCommitment

// TCommitment represents commitment to the terminal data. Usually it is a hash of the data of a scalar field element
type TCommitment = jtrie.TCommitment

// EqualCommitments a generic way to compare 2 commitments
func EqualCommitments(c1, c2 Serializable) bool {
	return jtrie.EqualCommitments(c1, c2)
}

// KVReader, KVWriter, KVIterator and KVStore are aliased to the root
// package's key/value abstractions so the node store can be built
// directly on top of jtrie.KVStore implementations.
type KVReader = jtrie.KVReader
type KVWriter = jtrie.KVWriter
type KVIterator = jtrie.KVIterator
type KVStore = jtrie.KVStore
