// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trie

import "github.com/bits-and-blooms/bitset"

// tagCountWidth is the bit width of the inline delta-count header that
// precedes every terminal node's TagCodec value, so a decoder need not
// be told out of band how many deltas to read (spec §4.C: "caller
// provides or the node header declares the number of deltas" — here
// the node header declares it).
const tagCountWidth = 16

// Build parses td (the concatenated trie blob, spec §3) into a
// FrozenTrie. nodecount is the total node count declared out of band
// in the basic config, since the blob itself carries no terminator.
func Build(td []byte, nodecount uint64) (*FrozenTrie, error) {
	src := bitVectorFromBytes(td)

	t := &FrozenTrie{nodecount: nodecount}
	loo := NewBitWriter()
	loo.WriteBit(1) // synthetic super-root: exactly one child (the real root)
	loo.WriteBit(0)

	var pos uint64
	readValue := func() []uint16 {
		if pos+tagCountWidth > src.Len() {
			return nil
		}
		n := int(src.Chunk(pos, tagCountWidth))
		pos += tagCountWidth
		val, consumed := DecodeTagSet(src, pos, n)
		pos += consumed
		return val
	}

	if pos >= src.Len() {
		return nil, ErrTrieFormat
	}
	t.rootTerminal = src.Chunk(pos, 1) == 1
	pos++
	if t.rootTerminal {
		t.rootValue = readValue()
	}

	labels := make([]byte, 0, nodecount)
	terminal := make([]bool, 0, nodecount)
	values := make([][]uint16, 0, nodecount)

	for processed := uint64(0); processed < nodecount; processed++ {
		k := 0
		for pos < src.Len() && src.Chunk(pos, 1) == 1 {
			k++
			pos++
		}
		if pos >= src.Len() {
			return nil, ErrTrieFormat
		}
		pos++ // terminating zero of the unary code

		for i := 0; i < k; i++ {
			loo.WriteBit(1)
		}
		loo.WriteBit(0)

		for c := 0; c < k; c++ {
			if pos+LabelWidth+1 > src.Len() {
				return nil, ErrTrieFormat
			}
			label := byte(src.Chunk(pos, LabelWidth))
			pos += LabelWidth
			isTerm := src.Chunk(pos, 1) == 1
			pos++

			labels = append(labels, label)
			terminal = append(terminal, isTerm)
			if isTerm {
				values = append(values, readValue())
			} else {
				values = append(values, nil)
			}
		}
	}

	if uint64(len(labels)) != nodecount-1 && nodecount > 0 {
		// every non-root node has exactly one parent edge
		return nil, ErrTrieFormat
	}

	t.louds = loo.Freeze()
	t.rank = BuildRankDirectory(t.louds)
	t.labels = labels
	t.terminal = terminal
	t.values = values

	return t, nil
}

// bitVectorFromBytes packs raw bytes, most-significant bit first, into
// a BitVector — the inverse of what the builder (encode.go) produces.
func bitVectorFromBytes(b []byte) *BitVector {
	bs := bitset.New(uint(len(b)) * 8)
	for i, by := range b {
		for bit := 0; bit < 8; bit++ {
			if by&(0x80>>uint(bit)) != 0 {
				bs.Set(uint(i*8 + bit))
			}
		}
	}
	return NewBitVector(bs, uint64(len(b))*8)
}
