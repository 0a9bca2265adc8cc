package jtrie

import "github.com/vaultchain/jtrie/poseidon"

// Address is a 20-byte contract address.
type Address [20]byte

// StorageKey derives the 32-byte trie key under which (addr, slot) is
// stored, by Poseidon-hashing the address against the slot compressed into
// a single BN254 field element. See package poseidon for the derivation.
func StorageKey(addr Address, slot Word) ([32]byte, error) {
	return poseidon.StorageKey(addr, slot)
}
