// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trie

// RankBlockSize is B from spec §4.A: the number of bits covered by a
// single rank-directory entry. Chosen so a linear popcount scan within
// a block touches at most a handful of machine words.
const RankBlockSize = 512

// RankDirectory gives O(1) rank1/rank0 and near-O(1) select1/select0
// over a BitVector, per spec §4.A: dir[k] holds the cumulative 1-count
// up to bit k*RankBlockSize.
type RankDirectory struct {
	bv  *BitVector
	dir []uint64
}

// BuildRankDirectory computes the rank directory for bv. This is the
// one O(n) pass paid at construction time (spec §2, component A);
// every query afterwards is O(1) block lookup + bounded linear scan.
func BuildRankDirectory(bv *BitVector) *RankDirectory {
	n := bv.Len()
	nblocks := n/RankBlockSize + 1
	dir := make([]uint64, nblocks)

	var cum uint64
	for blk := uint64(0); blk < nblocks; blk++ {
		dir[blk] = cum
		start := blk * RankBlockSize
		end := start + RankBlockSize
		if end > n {
			end = n
		}
		for i := start; i < end; i++ {
			cum += uint64(bv.Get(i))
		}
	}
	return &RankDirectory{bv: bv, dir: dir}
}

// Rank1 returns the number of 1-bits in [0, i).
func (rd *RankDirectory) Rank1(i uint64) uint64 {
	n := rd.bv.Len()
	if i > n {
		i = n
	}
	blk := i / RankBlockSize
	cum := rd.dir[blk]
	start := blk * RankBlockSize
	for j := start; j < i; j++ {
		cum += uint64(rd.bv.Get(j))
	}
	return cum
}

// Rank0 returns the number of 0-bits in [0, i).
func (rd *RankDirectory) Rank0(i uint64) uint64 {
	return i - rd.Rank1(i)
}

// Select1 returns the smallest i such that Rank1(i+1) == k+1; that is,
// the position of the (k+1)-th (0-indexed k-th) 1-bit. Returns bv.Len()
// if there is no such bit.
func (rd *RankDirectory) Select1(k uint64) uint64 {
	return rd.selectBit(k, true)
}

// Select0 is Select1's complement over 0-bits; not named in spec §4.A
// but required by the LOUDS navigation in frozentrie.go, and derived
// the same way (rank0 is free given rank1).
func (rd *RankDirectory) Select0(k uint64) uint64 {
	return rd.selectBit(k, false)
}

func (rd *RankDirectory) selectBit(k uint64, one bool) uint64 {
	cumAt := func(blk uint64) uint64 {
		if one {
			return rd.dir[blk]
		}
		return blk*RankBlockSize - rd.dir[blk]
	}

	lo, hi := uint64(0), uint64(len(rd.dir)-1)
	blk := uint64(0)
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if cumAt(mid) <= k {
			blk = mid
			if mid == hi {
				break
			}
			lo = mid + 1
		} else {
			if mid == 0 {
				break
			}
			hi = mid - 1
		}
	}

	cum := cumAt(blk)
	n := rd.bv.Len()
	i := blk * RankBlockSize
	for i < n {
		bit := rd.bv.Get(i)
		match := (bit == 1) == one
		if match {
			if cum == k {
				return i
			}
			cum++
		}
		i++
	}
	return n
}
