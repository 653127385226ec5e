package bitfield

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Bitfield records which pieces of a file are present locally
type Bitfield struct {
	bits *bitset.BitSet
	n    int
}

// New creates a bitfield for n pieces, none of them present
func New(n int) *Bitfield {
	return &Bitfield{bits: bitset.New(uint(n)), n: n}
}

// FromBytes parses the wire form of a bitfield for n pieces. The first piece is
// the high bit of the first byte and spare bits must be zero.
func FromBytes(buf []byte, n int) (*Bitfield, error) {
	if want := (n + 7) / 8; len(buf) != want {
		return nil, fmt.Errorf("expected bitfield of %v bytes for %v pieces, got %v", want, n, len(buf))
	}
	bf := New(n)
	for i := 0; i < len(buf)*8; i++ {
		if buf[i/8]>>(7-i%8)&1 == 0 {
			continue
		}
		if i >= n {
			return nil, fmt.Errorf("bitfield has spare bit %v set", i)
		}
		bf.SetPiece(i)
	}
	return bf, nil
}

// Len is the number of pieces
func (bf *Bitfield) Len() int { return bf.n }

// HasPiece tells if a piece is present. Out of range indexes are not.
func (bf *Bitfield) HasPiece(index int) bool {
	if index < 0 || index >= bf.n {
		return false
	}
	return bf.bits.Test(uint(index))
}

// SetPiece marks a piece as present
func (bf *Bitfield) SetPiece(index int) {
	if index < 0 || index >= bf.n {
		return
	}
	bf.bits.Set(uint(index))
}

// Count is the number of present pieces
func (bf *Bitfield) Count() int { return int(bf.bits.Count()) }

// Complete tells if every piece is present
func (bf *Bitfield) Complete() bool { return bf.Count() == bf.n }

// String renders one '1' or '0' per piece in index order, e.g. "1101"
func (bf *Bitfield) String() string {
	var b strings.Builder
	b.Grow(bf.n)
	for i := 0; i < bf.n; i++ {
		if bf.HasPiece(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Bytes packs the bitfield for the wire, high bit first, padded with zeros
func (bf *Bitfield) Bytes() []byte {
	buf := make([]byte, (bf.n+7)/8)
	for i := 0; i < bf.n; i++ {
		if bf.HasPiece(i) {
			buf[i/8] |= 1 << (7 - i%8)
		}
	}
	return buf
}
