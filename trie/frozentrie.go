// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trie

import "errors"

// LabelWidth is W from spec §6: the bit width of a label field. Every
// byte of a canonicalized, reversed domain label is stored verbatim,
// so W spans a full byte.
const LabelWidth = 8

// ErrTrieFormat reports a structurally inconsistent td blob: an empty
// or truncated bitstream, or a node count that doesn't match what the
// bitstream actually encodes.
var ErrTrieFormat = errors.New("trie: malformed trie blob")

// FrozenTrie is the succinct, LOUDS-navigated trie of spec §4.B. It is
// built once (see Build in build.go / loader construction) and never
// mutated; every exported method is safe for concurrent readers.
type FrozenTrie struct {
	louds    *BitVector     // unary child-count bitstream, LOUDS-encoded with a super-root
	rank     *RankDirectory // O(1) rank/select over louds
	labels   []byte         // per-edge label, BFS/child order, len == nodecount-1
	terminal []bool         // per-edge terminal flag, len == nodecount-1
	values   [][]uint16     // per-edge decoded list-id set (nil if non-terminal or empty)

	rootTerminal bool
	rootValue    []uint16

	nodecount uint64
}

// NodeID identifies a trie node; 0 is always the root.
type NodeID uint64

const rootNode NodeID = 0

// blockBounds returns [start, end) of node n's unary code within the
// louds bitstream (the super-root prefix means node ids and select0
// indices are offset by one from each other, per the standard LOUDS
// convention).
func (t *FrozenTrie) blockBounds(n NodeID) (start, end uint64) {
	start = t.rank.Select0(uint64(n)) + 1
	end = t.rank.Select0(uint64(n) + 1)
	return
}

// ChildCount returns the number of children of n.
func (t *FrozenTrie) ChildCount(n NodeID) uint64 {
	start, end := t.blockBounds(n)
	return end - start
}

// FirstChild returns the 0-based index of n's first child within the
// flattened per-edge arrays (labels/terminal/values); the edge's child
// node id is that index + 1.
func (t *FrozenTrie) FirstChild(n NodeID) uint64 {
	start, _ := t.blockBounds(n)
	// Rank1(start) counts the synthetic super-root's one-bit (see
	// build.go) along with every real edge before start, so it runs
	// one high against the 0-based, super-root-excluded edge arrays.
	return t.rank.Rank1(start) - 1
}

// Label returns the label byte stored on the edge ending at child node
// id (edgeIndex + 1).
func (t *FrozenTrie) Label(edgeIndex uint64) byte {
	return t.labels[edgeIndex]
}

// IsTerminal reports whether n is a terminal (name-ending) node.
func (t *FrozenTrie) IsTerminal(n NodeID) bool {
	if n == rootNode {
		return t.rootTerminal
	}
	return t.terminal[n-1]
}

// Value returns the decoded list-id set of terminal node n. Callers
// must check IsTerminal first; Value of a non-terminal node is nil.
func (t *FrozenTrie) Value(n NodeID) []uint16 {
	if n == rootNode {
		return t.rootValue
	}
	return t.values[n-1]
}

// childByLabel binary-searches n's children (stored label-sorted, spec
// §4.B step 2b) for the unique child labeled b. ok is false if none
// matches.
func (t *FrozenTrie) childByLabel(n NodeID, b byte) (child NodeID, ok bool) {
	first := t.FirstChild(n)
	count := t.ChildCount(n)
	if count == 0 {
		return 0, false
	}

	lo, hi := uint64(0), count-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		lbl := t.Label(first + mid)
		switch {
		case lbl == b:
			return NodeID(first + mid + 1), true
		case lbl < b:
			if mid == hi {
				return 0, false
			}
			lo = mid + 1
		default:
			if mid == 0 {
				return 0, false
			}
			hi = mid - 1
		}
	}
	return 0, false
}

// LookupExact walks s byte by byte per spec §4.B's lookup algorithm
// and only matches if the full string is consumed onto a terminal
// node. It does not implement subdomain inheritance; most callers want
// Lookup instead.
func (t *FrozenTrie) LookupExact(s []byte) (ok bool, value []uint16) {
	cur := rootNode
	for _, b := range s {
		child, found := t.childByLabel(cur, b)
		if !found {
			return false, nil
		}
		cur = child
	}
	if !t.IsTerminal(cur) {
		return false, nil
	}
	return true, t.Value(cur)
}

// Lookup walks s (already canonicalized: reversed, sentinel-joined
// labels, see rdns.canonicalize) and returns the deepest terminal node
// reached along the way, per spec §4.D's "for each non-empty suffix,
// progressively longer from the root side, perform a lookup; the
// deepest terminal encountered yields the match". Doing this as one
// pass that remembers the last terminal seen is equivalent to the
// spec's repeated-suffix-lookup description but O(len(s)) instead of
// O(len(s)^2), and it's what gives stored names subdomain-inheriting
// power: the walk does not need to find an exact match for all of s,
// only for a prefix of it ending on a terminal node.
func (t *FrozenTrie) Lookup(s []byte) (ok bool, value []uint16) {
	cur := rootNode
	if t.IsTerminal(cur) {
		ok, value = true, t.Value(cur)
	}
	for _, b := range s {
		child, found := t.childByLabel(cur, b)
		if !found {
			break
		}
		cur = child
		if t.IsTerminal(cur) {
			ok, value = true, t.Value(cur)
		}
	}
	return ok, value
}

// NodeCount returns the total number of nodes (including the root).
func (t *FrozenTrie) NodeCount() uint64 {
	return t.nodecount
}
