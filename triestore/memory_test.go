package triestore

import (
	"testing"

	jtrie "github.com/vaultchain/jtrie"
	"github.com/vaultchain/jtrie/trie"
	"github.com/stretchr/testify/require"
)

func word(b byte) jtrie.Word {
	var w jtrie.Word
	w[31] = b
	return w
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	s := NewMemory()
	var key [32]byte
	_, found := s.Get(key)
	require.False(t, found)
}

func TestUpdateIsInvisibleUntilComputeRoot(t *testing.T) {
	s := NewMemory()
	var key [32]byte
	key[0] = 1
	s.Update(key, jtrie.Value{Flags: 1, Words: []jtrie.Word{word(7)}})

	_, found := s.Get(key)
	require.False(t, found, "uncommitted update must not be visible")

	s.ComputeRoot()
	v, found := s.Get(key)
	require.True(t, found)
	require.EqualValues(t, 1, v.Flags)
	require.Equal(t, word(7), v.Words[0])
}

func TestRemoveAfterComputeRootHidesValue(t *testing.T) {
	s := NewMemory()
	var key [32]byte
	key[0] = 2
	s.Update(key, jtrie.Value{Flags: 1, Words: []jtrie.Word{word(9)}})
	s.ComputeRoot()

	_, found := s.Get(key)
	require.True(t, found)

	s.Remove(key)
	s.ComputeRoot()

	_, found = s.Get(key)
	require.False(t, found)
}

func TestComputeRootChangesWithContent(t *testing.T) {
	s := NewMemory()
	rootEmpty := s.ComputeRoot()

	var key [32]byte
	key[0] = 3
	s.Update(key, jtrie.Value{Flags: 1, Words: []jtrie.Word{word(5)}})
	rootOne := s.ComputeRoot()

	require.NotEqual(t, rootEmpty, rootOne)

	var key2 [32]byte
	key2[0] = 4
	s.Update(key2, jtrie.Value{Flags: 1, Words: []jtrie.Word{word(6)}})
	rootTwo := s.ComputeRoot()

	require.NotEqual(t, rootOne, rootTwo)
}

func TestComputeRootIsDeterministic(t *testing.T) {
	build := func() [32]byte {
		s := NewMemory()
		for i := byte(0); i < 5; i++ {
			var key [32]byte
			key[0] = i
			s.Update(key, jtrie.Value{Flags: uint32(i), Words: []jtrie.Word{word(i)}})
		}
		return s.ComputeRoot()
	}
	require.Equal(t, build(), build())
}

func TestProofValidatesAgainstRoot(t *testing.T) {
	s := NewMemory()
	var key [32]byte
	key[0] = 42
	s.Update(key, jtrie.Value{Flags: 1, Words: []jtrie.Word{word(11)}})
	s.ComputeRoot()

	proof := s.Proof(key)
	require.NotNil(t, proof)

	root := trie.RootCommitment(s.trie)
	require.NoError(t, proof.Validate(root))
}

func TestProofOfAbsence(t *testing.T) {
	s := NewMemory()
	var present [32]byte
	present[0] = 1
	s.Update(present, jtrie.Value{Flags: 1, Words: []jtrie.Word{word(1)}})
	s.ComputeRoot()

	var absent [32]byte
	absent[0] = 2
	proof := s.Proof(absent)
	require.NotNil(t, proof)
	require.True(t, proof.IsProofOfAbsence())
}
