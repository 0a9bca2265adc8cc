package poseidon

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageKeyDeterministic(t *testing.T) {
	var addr [20]byte
	copy(addr[:], []byte("contractcontractAAAA"))
	var slot [32]byte
	slot[31] = 7

	k1, err := StorageKey(addr, slot)
	require.NoError(t, err)
	k2, err := StorageKey(addr, slot)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}

func TestStorageKeyDiffersBySlot(t *testing.T) {
	var addr [20]byte
	copy(addr[:], []byte("contractcontractAAAA"))
	var slot1, slot2 [32]byte
	slot1[31] = 1
	slot2[31] = 2

	k1, err := StorageKey(addr, slot1)
	require.NoError(t, err)
	k2, err := StorageKey(addr, slot2)
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
}

func TestStorageKeyDiffersByAddress(t *testing.T) {
	var addr1, addr2 [20]byte
	copy(addr1[:], []byte("contractAAAAAAAAAAAA"))
	copy(addr2[:], []byte("contractBBBBBBBBBBBB"))
	var slot [32]byte
	slot[31] = 9

	k1, err := StorageKey(addr1, slot)
	require.NoError(t, err)
	k2, err := StorageKey(addr2, slot)
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
}

func TestCompressSlotMatchesHashFixedWithDomainShape(t *testing.T) {
	var slot [32]byte
	for i := range slot {
		slot[i] = byte(i)
	}
	c, err := CompressSlot(slot)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.True(t, c.Cmp(big.NewInt(0)) >= 0)
}

func TestPromoteAddressZeroExtends(t *testing.T) {
	var addr [20]byte
	copy(addr[:], []byte("\x01\x02\x03\x04\x05\x06\x07\x08\x09\x10contract"))
	p := PromoteAddress(addr)
	require.NotNil(t, p)
	require.LessOrEqual(t, p.BitLen(), 160)
}
