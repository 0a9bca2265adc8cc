package jtrie

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

// Serializable is the common read/write/compare surface for commitment data.
type Serializable interface {
	Read(r io.Reader) error
	Write(w io.Writer) error
	Bytes() []byte
	String() string
}

// VCommitment is a commitment to a trie node (an internal vector of child
// commitments plus a terminal). It is produced by a trie.CommitmentModel.
type VCommitment interface {
	Clone() VCommitment
	Serializable
}

// TCommitment is a commitment to the data stored at a single key.
type TCommitment interface {
	Clone() TCommitment
	Serializable
}

// EqualCommitments compares two commitments, treating untyped nil and typed
// nil pointers alike.
func EqualCommitments(c1, c2 Serializable) bool {
	if c1 == c2 {
		return true
	}
	c1Nil := c1 == nil || (reflect.ValueOf(c1).Kind() == reflect.Ptr && reflect.ValueOf(c1).IsNil())
	c2Nil := c2 == nil || (reflect.ValueOf(c2).Kind() == reflect.Ptr && reflect.ValueOf(c2).IsNil())
	if c1Nil && c2Nil {
		return true
	}
	if c1Nil || c2Nil {
		return false
	}
	return bytes.Equal(c1.Bytes(), c2.Bytes())
}

// MustBytes is the common way to serialize a Write-able commitment.
func MustBytes(o interface{ Write(w io.Writer) error }) []byte {
	var buf bytes.Buffer
	if err := o.Write(&buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Assert panics with a formatted message if cond is false. Used throughout
// the trie engine to flag internal inconsistencies that must never occur
// given a correctly operating caller.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// --- small binary helpers used by proof (de)serialization ---

func WriteByte(w io.Writer, val byte) error {
	_, err := w.Write([]byte{val})
	return err
}

func ReadByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func WriteUint16(w io.Writer, val uint16) error {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], val)
	_, err := w.Write(tmp[:])
	return err
}

func ReadUint16(r io.Reader, pval *uint16) error {
	var tmp [2]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return err
	}
	*pval = binary.LittleEndian.Uint16(tmp[:])
	return nil
}

func WriteBytes16(w io.Writer, data []byte) error {
	if len(data) > 0xffff {
		panic(fmt.Sprintf("WriteBytes16: too long data (%v)", len(data)))
	}
	if err := WriteUint16(w, uint16(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

func ReadBytes16(r io.Reader) ([]byte, error) {
	var length uint16
	if err := ReadUint16(r, &length); err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	ret := make([]byte, length)
	if _, err := io.ReadFull(r, ret); err != nil {
		return nil, err
	}
	return ret, nil
}
