package triestore

import (
	"encoding/binary"
	"fmt"

	jtrie "github.com/vaultchain/jtrie"
)

// encodeValue serializes a Value as 4 little-endian flag bytes followed by
// its words, 32 bytes each. This is the byte string committed to (and, for
// values over the model's hash size, stored verbatim in) the value store.
func encodeValue(v jtrie.Value) []byte {
	out := make([]byte, 4+32*len(v.Words))
	binary.LittleEndian.PutUint32(out[:4], v.Flags)
	for i, w := range v.Words {
		copy(out[4+32*i:4+32*(i+1)], w[:])
	}
	return out
}

func decodeValue(data []byte) (jtrie.Value, error) {
	if len(data) < 4 {
		return jtrie.Value{}, fmt.Errorf("triestore: value too short: %d bytes", len(data))
	}
	if (len(data)-4)%32 != 0 {
		return jtrie.Value{}, fmt.Errorf("triestore: value length %d is not 4+32n", len(data))
	}
	flags := binary.LittleEndian.Uint32(data[:4])
	n := (len(data) - 4) / 32
	words := make([]jtrie.Word, n)
	for i := 0; i < n; i++ {
		copy(words[i][:], data[4+32*i:4+32*(i+1)])
	}
	return jtrie.Value{Flags: flags, Words: words}, nil
}
