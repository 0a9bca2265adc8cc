package jtrie

// KVReader is a minimal read-only key/value abstraction. It backs both the
// production Merkle engine (package trie) and the small helpers used around
// the overlay (prefixing, in-memory scratch stores).
type KVReader interface {
	// Get retrieves the value for key. A nil return means the key is absent.
	Get(key []byte) []byte
	// Has reports whether key is present, without paying for a full value copy.
	Has(key []byte) bool
}

// KVWriter is a key/value writer. Set with a nil value deletes the key.
type KVWriter interface {
	Set(key, value []byte)
}

// KVIterator walks a set of key/value pairs. Iteration order is unspecified.
type KVIterator interface {
	Iterate(func(k, v []byte) bool)
}

// KVStore is the compound read/write/iterate interface.
type KVStore interface {
	KVReader
	KVWriter
	KVIterator
}

var _ KVStore = inMemoryKVStore{}

// inMemoryKVStore is a KVStore kept entirely in a Go map. It backs the node
// and value stores of the MerkleStore returned by triestore.NewMemory.
type inMemoryKVStore map[string][]byte

// NewInMemoryKVStore returns a KVStore with no persistence, useful as the
// node store of an in-process trie.Trie and in tests.
func NewInMemoryKVStore() KVStore {
	return make(inMemoryKVStore)
}

func (m inMemoryKVStore) Get(k []byte) []byte {
	return m[string(k)]
}

func (m inMemoryKVStore) Has(k []byte) bool {
	_, ok := m[string(k)]
	return ok
}

func (m inMemoryKVStore) Iterate(f func(k []byte, v []byte) bool) {
	for k, v := range m {
		if !f([]byte(k), v) {
			return
		}
	}
}

func (m inMemoryKVStore) Set(k, v []byte) {
	if len(v) != 0 {
		m[string(k)] = v
	} else {
		delete(m, string(k))
	}
}

// Concat concatenates byte slices, single bytes, strings and anything with a
// Bytes() []byte method into one buffer. Used to build prefixed keys.
func Concat(parts ...interface{}) []byte {
	var out []byte
	for _, p := range parts {
		switch v := p.(type) {
		case []byte:
			out = append(out, v...)
		case byte:
			out = append(out, v)
		case string:
			out = append(out, v...)
		case interface{ Bytes() []byte }:
			out = append(out, v.Bytes()...)
		default:
			Assert(false, "Concat: unsupported type %T", p)
		}
	}
	return out
}
