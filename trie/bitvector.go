// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package trie implements the succinct, rank-indexed radix trie that
// backs the blocklist filter: a packed bitvector with O(1) rank/select
// (this file and rank.go), a LOUDS-style frozen trie navigated over it
// (frozentrie.go), and the per-terminal-node list-id codec (tagcodec.go).
package trie

import (
	"github.com/bits-and-blooms/bitset"
)

// BitVector is a read-only bit array with a fixed length. It is never
// mutated after construction: the filter it backs is a single
// immutable snapshot (spec invariant 1).
type BitVector struct {
	b   *bitset.BitSet
	len uint64
}

// NewBitVector wraps an existing bitset as a BitVector of length n bits.
func NewBitVector(b *bitset.BitSet, n uint64) *BitVector {
	return &BitVector{b: b, len: n}
}

// Len returns the number of bits in the vector.
func (v *BitVector) Len() uint64 {
	return v.len
}

// Get returns the bit at position i, 0 or 1.
func (v *BitVector) Get(i uint64) uint8 {
	if i >= v.len {
		panic("trie: bitvector index out of range")
	}
	if v.b.Test(uint(i)) {
		return 1
	}
	return 0
}

// Chunk extracts w consecutive bits starting at i, most-significant
// bit first, as an unsigned integer. 1 <= w <= 32.
func (v *BitVector) Chunk(i uint64, w uint) uint32 {
	if w == 0 || w > 32 {
		panic("trie: chunk width out of range")
	}
	var out uint32
	for k := uint(0); k < w; k++ {
		out <<= 1
		if v.Get(i + uint64(k)) == 1 {
			out |= 1
		}
	}
	return out
}

// BitWriter accumulates bits MSB-first into a growable bitset, used by
// the builder (encode.go) to produce a td blob byte-for-byte compatible
// with what FrozenTrie parses.
type BitWriter struct {
	b   *bitset.BitSet
	pos uint64
}

func NewBitWriter() *BitWriter {
	return &BitWriter{b: bitset.New(1024)}
}

// WriteBit appends a single bit.
func (w *BitWriter) WriteBit(bit uint8) {
	if bit != 0 {
		w.b.Set(uint(w.pos))
	}
	w.pos++
}

// WriteBits appends the low w bits of val, most-significant bit first.
func (w *BitWriter) WriteBits(val uint32, width uint) {
	for k := int(width) - 1; k >= 0; k-- {
		w.WriteBit(uint8((val >> uint(k)) & 1))
	}
}

// Len returns the number of bits written so far.
func (w *BitWriter) Len() uint64 {
	return w.pos
}

// Freeze returns an immutable BitVector over the bits written so far.
func (w *BitWriter) Freeze() *BitVector {
	return NewBitVector(w.b, w.pos)
}
