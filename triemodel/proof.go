package triemodel

import (
	"bytes"
	"fmt"
	"io"

	jtrie "github.com/vaultchain/jtrie"
	"github.com/vaultchain/jtrie/trie"
	"golang.org/x/xerrors"
)

// Proof is a blake2b-256 model-specific Merkle inclusion (or absence) proof.
type Proof struct {
	Key  []byte
	Path []*ProofElement
}

type ProofElement struct {
	PathFragment []byte
	Children     map[byte]*vectorCommitment
	Terminal     *terminalCommitment
	ChildIndex   int
}

func ProofFromBytes(data []byte) (*Proof, error) {
	ret := &Proof{}
	if err := ret.Read(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return ret, nil
}

// Proof converts the generic proof path into this model's Merkle proof.
func (m *CommitmentModel) Proof(key []byte, tr trie.NodeStore) *Proof {
	proofGeneric := trie.GetProofGeneric(tr, key)
	if proofGeneric == nil {
		return nil
	}
	ret := &Proof{
		Key:  proofGeneric.Key,
		Path: make([]*ProofElement, len(proofGeneric.Path)),
	}
	var elemKeyPosition int
	var isLast bool
	var childIndex int

	for i, k := range proofGeneric.Path {
		node, ok := tr.GetNode(k)
		if !ok {
			panic(fmt.Errorf("can't find node key '%x'", k))
		}
		isLast = i == len(proofGeneric.Path)-1
		if !isLast {
			elemKeyPosition += len(node.PathFragment())
			childIndex = int(key[elemKeyPosition])
			elemKeyPosition++
		} else {
			switch proofGeneric.Ending {
			case trie.EndingTerminal:
				childIndex = 256
			case trie.EndingExtend, trie.EndingSplit:
				childIndex = 257
			default:
				panic("wrong ending code")
			}
		}
		em := &ProofElement{
			PathFragment: node.PathFragment(),
			Children:     make(map[byte]*vectorCommitment),
			Terminal:     nil,
			ChildIndex:   childIndex,
		}
		if node.Terminal() != nil {
			em.Terminal = node.Terminal().(*terminalCommitment)
		}
		for k, v := range node.ChildCommitments() {
			if int(k) == childIndex {
				continue
			}
			em.Children[k] = v.(*vectorCommitment)
		}
		ret.Path[i] = em
	}
	return ret
}

func (p *Proof) Bytes() []byte {
	return jtrie.MustBytes(p)
}

// MustKeyWithTerminal returns the key and terminal commitment the proof is
// about. A nil commitment means the proof is one of absence. The returned
// bool is true if the commitment is a hash of the data rather than the
// data itself. Call only after Validate has succeeded.
func (p *Proof) MustKeyWithTerminal() ([]byte, []byte, bool) {
	if len(p.Path) == 0 {
		return nil, nil, false
	}
	lastElem := p.Path[len(p.Path)-1]
	switch {
	case lastElem.ChildIndex < 256:
		if _, ok := lastElem.Children[byte(lastElem.ChildIndex)]; ok {
			panic("nil child commitment expected for proof of absence")
		}
		return p.Key, nil, false
	case lastElem.ChildIndex == 256:
		if lastElem.Terminal == nil {
			return p.Key, nil, false
		}
		d, ishash := lastElem.Terminal.value()
		return p.Key, d, ishash
	case lastElem.ChildIndex == 257:
		return p.Key, nil, false
	}
	panic("wrong lastElem.ChildIndex")
}

// IsProofOfAbsence reports whether the proof shows the trie committing to
// something else where it would commit to the key, if present.
func (p *Proof) IsProofOfAbsence() bool {
	_, r, _ := p.MustKeyWithTerminal()
	return r == nil
}

// Validate checks the proof against root. If value is given, it also checks
// that the commitment to value matches the proof's terminal.
func (p *Proof) Validate(root jtrie.VCommitment, value ...[]byte) error {
	if len(p.Path) == 0 {
		if root != nil {
			return xerrors.New("proof is empty")
		}
		return nil
	}
	c, err := p.verify(0, 0)
	if err != nil {
		return err
	}
	cv := vectorCommitment(c)
	if !jtrie.EqualCommitments(&cv, root) {
		return xerrors.New("invalid proof: commitment not equal to the root")
	}
	if len(value) > 0 {
		tc := p.Path[len(p.Path)-1].Terminal
		tc1 := commitToTerminal(value[0])
		if !jtrie.EqualCommitments(tc1, tc) {
			return xerrors.New("invalid proof: terminal commitment and terminal proof are not equal")
		}
	}
	return nil
}

// CommitmentToTheTerminalNode returns the hash of the last node in the
// proof path: a valid proof always contains a terminal commitment there.
func (p *Proof) CommitmentToTheTerminalNode() jtrie.VCommitment {
	if len(p.Path) == 0 {
		return nil
	}
	ret := p.Path[len(p.Path)-1].hashIt(nil)
	return (*vectorCommitment)(&ret)
}

func (p *Proof) verify(pathIdx, keyIdx int) ([hashSize]byte, error) {
	jtrie.Assert(pathIdx < len(p.Path), "assertion: pathIdx < len(p.Path)")
	jtrie.Assert(keyIdx <= len(p.Key), "assertion: keyIdx <= len(p.Key)")

	elem := p.Path[pathIdx]
	tail := p.Key[keyIdx:]
	isPrefix := bytes.HasPrefix(tail, elem.PathFragment)
	last := pathIdx == len(p.Path)-1
	if !last && !isPrefix {
		return [hashSize]byte{}, fmt.Errorf("wrong proof: proof path does not follow the key. Path position: %d, key position %d", pathIdx, keyIdx)
	}
	if !last {
		jtrie.Assert(isPrefix, "assertion: isPrefix")
		if elem.ChildIndex > 255 {
			return [hashSize]byte{}, fmt.Errorf("wrong proof: wrong child index. Path position: %d, key position %d", pathIdx, keyIdx)
		}
		if _, ok := elem.Children[byte(elem.ChildIndex)]; ok {
			return [hashSize]byte{}, fmt.Errorf("wrong proof: unexpected commitment at child index %d. Path position: %d, key position %d", elem.ChildIndex, pathIdx, keyIdx)
		}
		nextKeyIdx := keyIdx + len(elem.PathFragment) + 1
		if nextKeyIdx > len(p.Key) {
			return [hashSize]byte{}, fmt.Errorf("wrong proof: proof path out of key bounds. Path position: %d, key position %d", pathIdx, keyIdx)
		}
		c, err := p.verify(pathIdx+1, nextKeyIdx)
		if err != nil {
			return [hashSize]byte{}, err
		}
		return elem.hashIt(&c), nil
	}
	if elem.ChildIndex < 256 {
		c := elem.Children[byte(elem.ChildIndex)]
		if c != nil {
			return [hashSize]byte{}, fmt.Errorf("wrong proof: child commitment of the last element expected to be nil. Path position: %d, key position %d", pathIdx, keyIdx)
		}
		return elem.hashIt(nil), nil
	}
	if elem.ChildIndex != 256 && elem.ChildIndex != 257 {
		return [hashSize]byte{}, fmt.Errorf("wrong proof: child index expected to be 256 or 257. Path position: %d, key position %d", pathIdx, keyIdx)
	}
	return elem.hashIt(nil), nil
}

func (e *ProofElement) hashIt(missingCommitment *[hashSize]byte) [hashSize]byte {
	var hashes [258]*[hashSize]byte
	for idx, c := range e.Children {
		hashes[idx] = (*[hashSize]byte)(c)
	}
	if e.Terminal != nil {
		hashes[256] = &e.Terminal.bytes
	}
	cd := commitToData(e.PathFragment)
	hashes[257] = &cd
	if e.ChildIndex < 256 {
		hashes[e.ChildIndex] = missingCommitment
	}
	return hashVector(&hashes)
}

func (p *Proof) Write(w io.Writer) error {
	if err := jtrie.WriteBytes16(w, p.Key); err != nil {
		return err
	}
	if err := jtrie.WriteUint16(w, uint16(len(p.Path))); err != nil {
		return err
	}
	for _, e := range p.Path {
		if err := e.Write(w); err != nil {
			return err
		}
	}
	return nil
}

func (p *Proof) Read(r io.Reader) error {
	var err error
	if p.Key, err = jtrie.ReadBytes16(r); err != nil {
		return err
	}
	var size uint16
	if err = jtrie.ReadUint16(r, &size); err != nil {
		return err
	}
	p.Path = make([]*ProofElement, size)
	for i := range p.Path {
		p.Path[i] = &ProofElement{}
		if err = p.Path[i].Read(r); err != nil {
			return err
		}
	}
	return nil
}

const (
	hasTerminalValueFlag = 0x01
	hasChildrenFlag      = 0x02
)

func (e *ProofElement) Write(w io.Writer) error {
	if err := jtrie.WriteBytes16(w, e.PathFragment); err != nil {
		return err
	}
	if err := jtrie.WriteUint16(w, uint16(e.ChildIndex)); err != nil {
		return err
	}
	var smallFlags byte
	if e.Terminal != nil {
		smallFlags = hasTerminalValueFlag
	}
	var flags [32]byte
	for i := range e.Children {
		flags[i/8] |= 0x1 << (i % 8)
		smallFlags |= hasChildrenFlag
	}
	if err := jtrie.WriteByte(w, smallFlags); err != nil {
		return err
	}
	if smallFlags&hasTerminalValueFlag != 0 {
		if err := e.Terminal.Write(w); err != nil {
			return err
		}
	}
	if smallFlags&hasChildrenFlag != 0 {
		if _, err := w.Write(flags[:]); err != nil {
			return err
		}
		for i := 0; i < 256; i++ {
			child, ok := e.Children[uint8(i)]
			if !ok {
				continue
			}
			if err := child.Write(w); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *ProofElement) Read(r io.Reader) error {
	var err error
	if e.PathFragment, err = jtrie.ReadBytes16(r); err != nil {
		return err
	}
	var idx uint16
	if err := jtrie.ReadUint16(r, &idx); err != nil {
		return err
	}
	e.ChildIndex = int(idx)
	var smallFlags byte
	if smallFlags, err = jtrie.ReadByte(r); err != nil {
		return err
	}
	if smallFlags&hasTerminalValueFlag != 0 {
		e.Terminal = &terminalCommitment{}
		if err := e.Terminal.Read(r); err != nil {
			return err
		}
	} else {
		e.Terminal = nil
	}
	e.Children = make(map[byte]*vectorCommitment)
	if smallFlags&hasChildrenFlag != 0 {
		var flags [32]byte
		if _, err := r.Read(flags[:]); err != nil {
			return err
		}
		for i := 0; i < 256; i++ {
			ib := uint8(i)
			if flags[i/8]&(0x1<<(i%8)) != 0 {
				e.Children[ib] = &vectorCommitment{}
				if err := e.Children[ib].Read(r); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
