package jtrie

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageKeyStableAndUnique(t *testing.T) {
	var a1, a2 Address
	copy(a1[:], []byte("aaaaaaaaaaaaaaaaaaaa"))
	copy(a2[:], []byte("bbbbbbbbbbbbbbbbbbbb"))
	var s1, s2 Word
	s1[31] = 1
	s2[31] = 2

	k1, err := StorageKey(a1, s1)
	require.NoError(t, err)
	k1Again, err := StorageKey(a1, s1)
	require.NoError(t, err)
	require.Equal(t, k1, k1Again)

	k2, err := StorageKey(a1, s2)
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)

	k3, err := StorageKey(a2, s1)
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)
}
