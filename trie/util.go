package trie

import (
	jtrie "github.com/vaultchain/jtrie"
)

// Concat is a package-local convenience wrapper over jtrie.Concat, so node
// construction code can build keys without qualifying every call site.
func Concat(par ...interface{}) []byte {
	return jtrie.Concat(par...)
}

// Assert is a package-local convenience wrapper over jtrie.Assert.
func Assert(cond bool, format string, args ...interface{}) {
	jtrie.Assert(cond, format, args...)
}
