// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import (
	"encoding/json"
	"fmt"
)

// TagRecord is one entry of the file-tags manifest, spec §3.
type TagRecord struct {
	Value   int
	UName   string
	VName   string
	Group   string
	Subg    string
	URL     string
	Show    bool
	Entries int
}

// name renders the flags-array value the way the teacher's load() did:
// subgroup:vname, falling back to group when subg is empty.
func (r TagRecord) name() string {
	group := r.Subg
	if len(group) == 0 {
		group = r.Group
	}
	name := r.VName
	if len(name) == 0 {
		name = group
		group = r.Group
	}
	return group + ":" + name
}

// Manifest is the immutable, parsed file-tags.json (spec §3). N is the
// number of distinct list-ids; every terminal node's decoded set is a
// subset of [0, N) (spec invariant 3).
type Manifest struct {
	byValue map[int]TagRecord
	byUName map[string]TagRecord
	names   []string // value -> "group:name", indexed by value
}

type rawTag struct {
	Value   float64 `json:"value"`
	UName   string  `json:"uname"`
	VName   string  `json:"vname"`
	Group   string  `json:"group"`
	Subg    string  `json:"subg"`
	URL     string  `json:"url"`
	Show    float64 `json:"show"`
	Entries float64 `json:"entries"`
}

// ParseManifest parses a filetag.json payload.
func ParseManifest(data []byte) (*Manifest, error) {
	var obj map[string]rawTag
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("rdns: parse filetag.json: %w", err)
	}

	m := &Manifest{
		byValue: make(map[int]TagRecord, len(obj)),
		byUName: make(map[string]TagRecord, len(obj)),
	}

	maxValue := -1
	for key, raw := range obj {
		rec := TagRecord{
			Value:   int(raw.Value),
			UName:   key,
			VName:   raw.VName,
			Group:   raw.Group,
			Subg:    raw.Subg,
			URL:     raw.URL,
			Show:    raw.Show != 0,
			Entries: int(raw.Entries),
		}
		if len(raw.UName) > 0 {
			rec.UName = raw.UName
		}
		m.byValue[rec.Value] = rec
		m.byUName[rec.UName] = rec
		if rec.Value > maxValue {
			maxValue = rec.Value
		}
	}

	m.names = make([]string, maxValue+1)
	for v, rec := range m.byValue {
		m.names[v] = rec.name()
	}
	return m, nil
}

// N returns the number of distinct list-ids covered by the manifest.
func (m *Manifest) N() int {
	return len(m.byValue)
}

// Record looks up a list-id's metadata by its numeric value.
func (m *Manifest) Record(listID uint16) (TagRecord, bool) {
	rec, ok := m.byValue[int(listID)]
	return rec, ok
}

// Name returns the "group:name" display string for a list-id, or ""
// if out of range.
func (m *Manifest) Name(listID uint16) string {
	i := int(listID)
	if i < 0 || i >= len(m.names) {
		return ""
	}
	return m.names[i]
}

// ValueForUName resolves a manifest key (a short tag, e.g. "XYZ") to
// its numeric list-id, used by FlagsToStamp-style csv-of-names input.
func (m *Manifest) ValueForUName(uname string) (int, bool) {
	rec, ok := m.byUName[uname]
	if !ok {
		return 0, false
	}
	return rec.Value, true
}

// Entries returns the record of each id in ids that the manifest
// knows, keyed by the decimal string of its
// value (spec §3's own framing of the manifest key), for
// lookup_domain_info (spec §4.D).
func (m *Manifest) Entries(ids IDSet) map[string]TagRecord {
	out := make(map[string]TagRecord, ids.Len())
	for id := range ids {
		if rec, ok := m.Record(id); ok {
			out[fmt.Sprint(rec.Value)] = rec
		}
	}
	return out
}
