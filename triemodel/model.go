// Package triemodel implements trie.CommitmentModel using blake2b-256
// hashing, producing the 32-byte state root the overlay's commit engine
// hands back to its caller.
package triemodel

import (
	"encoding/hex"
	"io"

	jtrie "github.com/vaultchain/jtrie"
	"github.com/vaultchain/jtrie/trie"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/xerrors"
)

const hashSize = 32

// terminalCommitment commits to data of arbitrary size.
// If len(data) <= hashSize, lenPlus1 = len(data)+1 and bytes holds the data
// itself, zero-padded. If len(data) > hashSize, bytes holds the blake2b-256
// hash of the data and lenPlus1 = 0. A valid lenPlus1 therefore ranges 0..33.
type terminalCommitment struct {
	bytes    [hashSize]byte
	lenPlus1 uint8
}

// vectorCommitment is the blake2b-256 hash of a node's 258 child slots.
type vectorCommitment [hashSize]byte

// CommitmentModel is the blake2b-256 implementation of trie.CommitmentModel.
type CommitmentModel struct{}

func New() *CommitmentModel {
	return &CommitmentModel{}
}

func (m *CommitmentModel) PathArity() trie.PathArity {
	return trie.PathArity256
}

func (m *CommitmentModel) NewTerminalCommitment() jtrie.TCommitment {
	return &terminalCommitment{}
}

func (m *CommitmentModel) NewVectorCommitment() jtrie.VCommitment {
	return &vectorCommitment{}
}

// UpdateNodeCommitment computes the update to the node data and, if
// requested, the updated vector commitment. For a hash-based model this is
// always a full recomputation: there is no useful additive delta.
func (m *CommitmentModel) UpdateNodeCommitment(mutate *trie.NodeData, childUpdates map[byte]jtrie.VCommitment, _ bool, newTerminalUpdate jtrie.TCommitment, update *jtrie.VCommitment) {
	var hashes [258]*[hashSize]byte

	deleted := make([]byte, 0, 256)
	for i, upd := range childUpdates {
		mutate.ChildCommitments[i] = upd
		if upd == nil {
			deleted = append(deleted, i)
		}
	}
	for _, i := range deleted {
		delete(mutate.ChildCommitments, i)
	}
	for i, c := range mutate.ChildCommitments {
		hashes[i] = (*[hashSize]byte)(c.(*vectorCommitment))
	}
	mutate.Terminal = newTerminalUpdate
	if mutate.Terminal != nil {
		hashes[256] = &mutate.Terminal.(*terminalCommitment).bytes
	}
	if len(mutate.ChildCommitments) == 0 && mutate.Terminal == nil {
		return
	}
	tmp := commitToData(mutate.PathFragment)
	hashes[257] = &tmp
	if update != nil {
		c := vectorCommitment(hashVector(&hashes))
		*update = &c
	}
}

// CalcNodeCommitment computes the commitment of a node from scratch. Used
// to compute the root commitment.
func (m *CommitmentModel) CalcNodeCommitment(par *trie.NodeData) jtrie.VCommitment {
	var hashes [258]*[hashSize]byte

	if len(par.ChildCommitments) == 0 && par.Terminal == nil {
		return nil
	}
	for i, c := range par.ChildCommitments {
		hashes[i] = (*[hashSize]byte)(c.(*vectorCommitment))
	}
	if par.Terminal != nil {
		hashes[256] = &par.Terminal.(*terminalCommitment).bytes
	}
	tmp := commitToData(par.PathFragment)
	hashes[257] = &tmp
	c := vectorCommitment(hashVector(&hashes))
	return &c
}

func (m *CommitmentModel) CommitToData(data []byte) jtrie.TCommitment {
	if len(data) == 0 {
		return nil
	}
	return commitToTerminal(data)
}

func (m *CommitmentModel) Description() string {
	return "trie commitment model implementation based on blake2b-256 hashing"
}

func (m *CommitmentModel) ShortName() string {
	return "b2b256"
}

func (m *CommitmentModel) EqualCommitments(c1, c2 jtrie.TCommitment) bool {
	return jtrie.EqualCommitments(c1, c2)
}

// ForceStoreTerminalWithNode reports whether the terminal must be
// serialized with the node rather than recomputed from a separate value
// store on read. Only small terminals (raw data stored inline) qualify;
// hashed terminals (lenPlus1 == 0) always rely on the value store holding
// the preimage.
func (m *CommitmentModel) ForceStoreTerminalWithNode(t jtrie.TCommitment) bool {
	tc, ok := t.(*terminalCommitment)
	if !ok || tc == nil {
		return false
	}
	return tc.lenPlus1 != 0
}

var _ jtrie.VCommitment = &vectorCommitment{}

func (v *vectorCommitment) Bytes() []byte {
	return jtrie.MustBytes(v)
}

func (v *vectorCommitment) Read(r io.Reader) error {
	_, err := r.Read((*v)[:])
	return err
}

func (v *vectorCommitment) Write(w io.Writer) error {
	_, err := w.Write((*v)[:])
	return err
}

func (v *vectorCommitment) String() string {
	return hex.EncodeToString(v[:])
}

func (v *vectorCommitment) Clone() jtrie.VCommitment {
	if v == nil {
		return nil
	}
	ret := *v
	return &ret
}

func (v *vectorCommitment) Update(delta jtrie.VCommitment) {
	m, ok := delta.(*vectorCommitment)
	if !ok {
		panic("hash commitment expected")
	}
	*v = *m
}

var _ jtrie.TCommitment = &terminalCommitment{}

func (t *terminalCommitment) Write(w io.Writer) error {
	if err := jtrie.WriteByte(w, t.lenPlus1); err != nil {
		return err
	}
	l := byte(hashSize)
	if t.lenPlus1 > 0 {
		l = t.lenPlus1 - 1
	}
	_, err := w.Write(t.bytes[:l])
	return err
}

func (t *terminalCommitment) Read(r io.Reader) error {
	var err error
	if t.lenPlus1, err = jtrie.ReadByte(r); err != nil {
		return err
	}
	if t.lenPlus1 > hashSize+1 {
		return xerrors.New("terminal commitment size byte out of range")
	}
	l := byte(hashSize)
	if t.lenPlus1 > 0 {
		l = t.lenPlus1 - 1
	}
	t.bytes = [hashSize]byte{}
	n, err := r.Read(t.bytes[:l])
	if err != nil {
		return err
	}
	if n != int(l) {
		return xerrors.New("bad data length")
	}
	return nil
}

func (t *terminalCommitment) Bytes() []byte {
	return jtrie.MustBytes(t)
}

func (t *terminalCommitment) String() string {
	return hex.EncodeToString(t.bytes[:])
}

func (t *terminalCommitment) Clone() jtrie.TCommitment {
	if t == nil {
		return nil
	}
	ret := *t
	return &ret
}

// value returns the terminal's raw value and whether it is a hash (true) of
// the original data rather than the data itself.
func (t *terminalCommitment) value() ([]byte, bool) {
	if t.lenPlus1 == 0 {
		return t.bytes[:], true
	}
	return t.bytes[:t.lenPlus1-1], false
}

func hashVector(hashes *[258]*[hashSize]byte) [hashSize]byte {
	var buf [258 * hashSize]byte
	for i, h := range hashes {
		if h == nil {
			continue
		}
		pos := hashSize * i
		copy(buf[pos:pos+hashSize], h[:])
	}
	return blake2b.Sum256(buf[:])
}

func commitToData(data []byte) (ret [hashSize]byte) {
	if len(data) <= hashSize {
		copy(ret[:], data)
	} else {
		ret = blake2b.Sum256(data)
	}
	return
}

func commitToTerminal(data []byte) *terminalCommitment {
	ret := &terminalCommitment{
		bytes: commitToData(data),
	}
	if len(data) <= hashSize {
		ret.lenPlus1 = uint8(len(data)) + 1
	}
	return ret
}
