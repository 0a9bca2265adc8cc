// Package poseidon derives 32-byte trie keys for (address, slot) storage
// pairs using the Poseidon hash over the BN254 scalar field.
//
// A 32-byte storage slot carries more entropy than fits in a single field
// element, so it is first compressed into one element from its two halves,
// each truncated to 16 bytes, before being combined with the contract
// address under a fixed domain separator.
package poseidon

import (
	"fmt"
	"math/big"

	iden3poseidon "github.com/iden3/go-iden3-crypto/ff/poseidon"
)

// domain separates storage-key hashing from any other use of Poseidon over
// the same field, matching the zero domain used by the reference runtime.
var domain = big.NewInt(0)

const halfLen = 16

// CompressSlot folds a 32-byte storage slot into a single BN254 field
// element by hashing its two 16-byte halves (each zero-extended to 32
// bytes) together under domain.
func CompressSlot(slot [32]byte) (*big.Int, error) {
	v1 := leBytesToBigInt(slot[:halfLen])
	v2 := leBytesToBigInt(slot[halfLen:])
	return iden3poseidon.HashFixedWithDomain([]*big.Int{v1, v2}, domain)
}

// PromoteAddress zero-extends a 20-byte contract address into a BN254
// field element.
func PromoteAddress(addr [20]byte) *big.Int {
	var buf [32]byte
	copy(buf[:20], addr[:])
	return leBytesToBigInt(buf[:])
}

// StorageKey derives the 32-byte trie key for (addr, slot): Poseidon of the
// promoted address and the compressed slot, under domain, encoded back to
// 32 bytes little-endian.
func StorageKey(addr [20]byte, slot [32]byte) ([32]byte, error) {
	compressedSlot, err := CompressSlot(slot)
	if err != nil {
		return [32]byte{}, fmt.Errorf("poseidon: compress slot: %w", err)
	}
	h, err := iden3poseidon.HashFixedWithDomain([]*big.Int{PromoteAddress(addr), compressedSlot}, domain)
	if err != nil {
		return [32]byte{}, fmt.Errorf("poseidon: hash key: %w", err)
	}
	return bigIntToLE32(h), nil
}

func leBytesToBigInt(b []byte) *big.Int {
	rev := make([]byte, len(b))
	for i, c := range b {
		rev[len(b)-1-i] = c
	}
	return new(big.Int).SetBytes(rev)
}

func bigIntToLE32(v *big.Int) [32]byte {
	be := v.Bytes()
	var out [32]byte
	for i, c := range be {
		out[len(be)-1-i] = c
	}
	return out
}
