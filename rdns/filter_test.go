// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import (
	"testing"

	"github.com/celzero/rethinkblock/trie"
)

func reverseLabelKey(name string) []byte {
	labels := splitLabels(name)
	out := make([]byte, 0, len(name)+len(labels))
	for i := len(labels) - 1; i >= 0; i-- {
		out = append(out, labels[i]...)
		out = append(out, 0x00)
	}
	return out
}

func splitLabels(name string) []string {
	var labels []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			labels = append(labels, name[start:i])
			start = i + 1
		}
	}
	labels = append(labels, name[start:])
	return labels
}

func buildTestFilter(t *testing.T, entries map[string][]uint16) *Filter {
	t.Helper()
	b := trie.NewBuilder()
	for name, ids := range entries {
		if err := b.Add(reverseLabelKey(name), ids); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	td, n := b.Build()
	ft, err := trie.Build(td, n)
	if err != nil {
		t.Fatalf("trie.Build: %v", err)
	}
	m, err := ParseManifest([]byte(`{
		"AD": {"value": 1, "vname": "Ads", "group": "privacy", "subg": "ads", "show": 1},
		"TRK": {"value": 2, "vname": "Trackers", "group": "privacy", "subg": "", "show": 1}
	}`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	f, err := NewFilter(ft, m)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	return f
}

func TestClassifyNameNoBitmap(t *testing.T) {
	f := buildTestFilter(t, map[string][]uint16{"ads.example.com": {1}})

	v, err := f.ClassifyName("ads.example.com", nil)
	if err != nil || !v.Blocked || !v.Matched.Has(1) {
		t.Fatalf("expected block on 1, got %+v err=%v", v, err)
	}

	v, err = f.ClassifyName("sub.ads.example.com", nil)
	if err != nil || !v.Blocked {
		t.Fatalf("expected subdomain inheritance to block, got %+v err=%v", v, err)
	}

	v, err = f.ClassifyName("example.com", nil)
	if err != nil || v.Blocked {
		t.Fatalf("unrelated domain should not block, got %+v err=%v", v, err)
	}
}

func TestClassifyNameAllowSubtractsFromDeny(t *testing.T) {
	f := buildTestFilter(t, map[string][]uint16{"ads.example.com": {1, 2}})

	bitmap := &UserBitmap{Allow: NewIDSet(1, 2), Deny: NewIDSet(2)}
	v, err := f.ClassifyName("ads.example.com", bitmap)
	if err != nil {
		t.Fatalf("ClassifyName: %v", err)
	}
	if v.Blocked {
		t.Fatalf("denied id 2 is also allowed, expected no block")
	}
	if v.Matched.Len() != 0 {
		t.Fatalf("expected matched={}, got %v", v.Matched)
	}
}

func TestClassifyNameAllowOnlyDoesNotBlock(t *testing.T) {
	f := buildTestFilter(t, map[string][]uint16{"ads.example.com": {1}})

	bitmap := &UserBitmap{Allow: NewIDSet(1)}
	v, err := f.ClassifyName("ads.example.com", bitmap)
	if err != nil {
		t.Fatalf("ClassifyName: %v", err)
	}
	if v.Blocked {
		t.Fatalf("allow-only id should not block")
	}
}

func TestClassifyAnswersUnionsMatches(t *testing.T) {
	f := buildTestFilter(t, map[string][]uint16{
		"ads.example.com": {1},
		"trk.example.net": {2},
	})

	agg, err := f.ClassifyAnswers("clean.example.org", []string{"ads.example.com", "trk.example.net"}, nil)
	if err != nil {
		t.Fatalf("ClassifyAnswers: %v", err)
	}
	if !agg.Blocked {
		t.Fatalf("expected aggregate block")
	}
	if agg.Matched.Len() != 2 || !agg.Matched.Has(1) || !agg.Matched.Has(2) {
		t.Fatalf("expected union {1,2}, got %v", agg.Matched)
	}
}

func TestOverrideTakesPrecedence(t *testing.T) {
	f := buildTestFilter(t, map[string][]uint16{"ads.example.com": {1}})
	f.Overrides().Allow("ads.example.com")

	agg, err := f.ClassifyAnswers("ads.example.com", nil, nil)
	if err != nil {
		t.Fatalf("ClassifyAnswers: %v", err)
	}
	if agg.Blocked {
		t.Fatalf("override allow should suppress block")
	}
}

func TestLookupDomainInfo(t *testing.T) {
	f := buildTestFilter(t, map[string][]uint16{"ads.example.com": {1, 2}})

	info, err := f.LookupDomainInfo("ads.example.com")
	if err != nil {
		t.Fatalf("LookupDomainInfo: %v", err)
	}
	if info.ListIDs.Len() != 2 {
		t.Fatalf("expected 2 list ids, got %v", info.ListIDs)
	}
	if len(info.TagEntries) != 2 {
		t.Fatalf("expected 2 tag entries, got %v", info.TagEntries)
	}
}

func TestClassifyNameEmptyRejected(t *testing.T) {
	f := buildTestFilter(t, nil)
	if _, err := f.ClassifyName("", nil); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := f.ClassifyName(".", nil); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName for bare dot, got %v", err)
	}
}
