// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import (
	b32 "encoding/base32"
	b64 "encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Blockstamp wire format, spec §3: "version:base64" or "version-base32",
// where the payload is a packed run of uint16 words: a header word whose
// set bits mark which 16-wide groups of list-ids have at least one
// member, followed by one data word per set header bit.
const (
	colonsep  = ":"
	hyphensep = "-"

	stampVer1 = "1"

	stampWordBits = 16
)

// EncType selects the blockstamp's text encoding.
type EncType int

const (
	EncBase64 EncType = iota
	EncBase32
)

// EncodeStamp packs ids into a version-1 blockstamp.
func EncodeStamp(ids IDSet, enc EncType) (string, error) {
	words, err := packWords(ids)
	if err != nil {
		return "", err
	}
	buf := uint16sToBytes(words)
	if enc == EncBase32 {
		out := b32.StdEncoding.WithPadding(b32.NoPadding).EncodeToString(buf)
		return stampVer1 + hyphensep + strings.ToLower(out), nil
	}
	return stampVer1 + colonsep + b64.URLEncoding.EncodeToString(buf), nil
}

// DecodeStamp unpacks a blockstamp (either encoding, either padding) back
// into its member list-ids.
func DecodeStamp(stamp string) (IDSet, error) {
	if len(stamp) == 0 {
		return nil, ErrMissingStamp
	}

	colonIdx := strings.Index(stamp, colonsep)
	hyphenIdx := strings.Index(stamp, hyphensep)
	isB32 := hyphenIdx >= 0 && (colonIdx < 0 || hyphenIdx < colonIdx)
	sep := colonsep
	if isB32 {
		sep = hyphensep
	}

	parts := strings.SplitN(stamp, sep, 2)
	ver, payload := stampVer1, stamp
	if len(parts) == 2 {
		ver, payload = parts[0], parts[1]
	}
	if ver != stampVer1 {
		return nil, fmt.Errorf("rdns: blockstamp version %s unsupported", ver)
	}

	var buf []byte
	var err error
	if isB32 {
		decoder := b32.StdEncoding.WithPadding(b32.NoPadding)
		if strings.Contains(payload, "=") {
			decoder = b32.StdEncoding
		}
		buf, err = decoder.DecodeString(strings.ToUpper(payload))
	} else {
		decoder := b64.RawURLEncoding
		if strings.Contains(payload, "=") {
			decoder = b64.URLEncoding
		}
		buf, err = decoder.DecodeString(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("rdns: decode blockstamp: %w", err)
	}

	words := bytesToUint16s(buf)
	return unpackWords(words)
}

// packWords is the inverse of unpackWords: it builds the header+data word
// run from a set of list-ids, matching the teacher's flagtostamp, but
// built up in a single pass over a fixed-size header instead of repeated
// slice splicing.
func packWords(ids IDSet) ([]uint16, error) {
	if ids.Len() == 0 {
		return []uint16{0}, nil
	}

	maxGroup := 0
	for id := range ids {
		g := int(id) / stampWordBits
		if g > maxGroup {
			maxGroup = g
		}
	}
	if maxGroup >= stampWordBits {
		return nil, fmt.Errorf("rdns: list-id too large for a single header word")
	}

	groups := make(map[int]uint16)
	for id := range ids {
		g := int(id) / stampWordBits
		bit := int(id) % stampWordBits
		groups[g] |= 1 << uint(stampWordBits-1-bit)
	}

	var header uint16
	for g := range groups {
		header |= 1 << uint(stampWordBits-1-g)
	}

	out := make([]uint16, 0, 1+len(groups))
	out = append(out, header)
	for g := 0; g <= maxGroup; g++ {
		if w, ok := groups[g]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

// unpackWords is a direct, table-free restatement of the teacher's
// flagstoinfo: the header's set bits, read msb-first, name which data
// words follow and which 16-id group each belongs to.
func unpackWords(words []uint16) (IDSet, error) {
	if len(words) == 0 {
		return nil, ErrMissingStamp
	}
	header := words[0]

	var groups []int
	for i := 0; i < stampWordBits; i++ {
		mask := uint16(1) << uint(stampWordBits-1-i)
		if header&mask == mask {
			groups = append(groups, i)
		}
	}
	if len(groups) != len(words)-1 {
		return nil, ErrFlagsMismatch
	}

	out := make(IDSet)
	for i, g := range groups {
		word := words[i+1]
		for j := 0; j < stampWordBits; j++ {
			mask := uint16(1) << uint(stampWordBits-1-j)
			if word&mask == mask {
				out.Add(uint16(g*stampWordBits + j))
			}
		}
	}
	return out, nil
}

// FlagsToStamp accepts a comma-separated list of decimal list-ids (the
// on-the-wire form used by clients that haven't computed an IDSet) and
// returns the packed blockstamp.
func FlagsToStamp(flagscsv string, enc EncType) (string, error) {
	parts := strings.Split(flagscsv, ",")
	if len(parts) == 0 || (len(parts) == 1 && parts[0] == "") {
		return "", fmt.Errorf("rdns: empty flag list")
	}
	ids := make(IDSet, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", fmt.Errorf("rdns: bad flag %q: %w", p, err)
		}
		ids.Add(uint16(v))
	}
	return EncodeStamp(ids, enc)
}

// StampToNames decodes stamp and renders its list-ids through m as a
// comma-separated, human-readable string (spec §3's listinfo.name).
func StampToNames(stamp string, m *Manifest) (string, error) {
	ids, err := DecodeStamp(stamp)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, ids.Len())
	for _, s := range ids.Strings() {
		v, _ := strconv.Atoi(s)
		if n := m.Name(uint16(v)); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ","), nil
}

func uint16sToBytes(u16 []uint16) []byte {
	out := make([]byte, len(u16)*2)
	for i, v := range u16 {
		binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], v)
	}
	return out
}

func bytesToUint16s(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[i*2 : (i+1)*2])
	}
	return out
}
