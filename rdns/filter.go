// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/celzero/rethinkblock/trie"
)

// verdictCacheSize bounds the memoization of classify_name's hot path;
// sized the way the teacher sizes its small in-process caches (a few
// thousand entries comfortably covers one resolver's working set of
// repeated query names).
const verdictCacheSize = 4096

// UserBitmap is the caller-supplied allow/deny projection of spec
// §4.D. A nil *UserBitmap means "absent": every non-empty match
// blocks. Otherwise a name blocks on the matched ids that are in Deny
// and not in Allow; an id in both Allow and Deny does not block.
type UserBitmap struct {
	Allow IDSet
	Deny  IDSet
}

// Verdict is the result of classify_name.
type Verdict struct {
	Blocked bool
	Matched IDSet
}

// AggregateVerdict is the result of classify_answers: blocked if any
// individual name (query or answer) blocked, matched sets unioned.
type AggregateVerdict struct {
	Blocked bool
	Matched IDSet
}

// DomainInfo is lookup_domain_info's debug/inspection shape.
type DomainInfo struct {
	ListIDs    IDSet
	TagEntries map[string]TagRecord
}

// Filter is spec §4.D's BlocklistFilter: an immutable frozen trie plus
// manifest, with an optional Bloom prefilter and an LRU verdict cache
// layered in front, and a mutable Overrides set layered in front of
// that. A *Filter is safe for concurrent use by many readers; it is
// never mutated after construction except through its Overrides.
type Filter struct {
	trie      *trie.FrozenTrie
	manifest  *Manifest
	prefilter *bloom.BloomFilter // nil disables the prefilter
	cache     *lru.Cache[string, Verdict]
	overrides *Overrides
}

// FilterOption configures NewFilter.
type FilterOption func(*Filter)

// WithPrefilter attaches a Bloom filter built over names, the stored
// names in canonical form (see canonicalize). len(names) and
// falsePositiveRate size the underlying bitset; an empty names
// disables the prefilter rather than building a degenerate one. The
// loader does not attach a prefilter.
func WithPrefilter(names [][]byte, falsePositiveRate float64) FilterOption {
	return func(f *Filter) {
		if len(names) == 0 {
			return
		}
		bf := bloom.NewWithEstimates(uint(len(names)), falsePositiveRate)
		for _, n := range names {
			bf.Add(n)
		}
		f.prefilter = bf
	}
}

// NewFilter builds a Filter over an already-assembled trie and
// manifest (produced by the loader, spec §4.E).
func NewFilter(ft *trie.FrozenTrie, m *Manifest, opts ...FilterOption) (*Filter, error) {
	cache, err := lru.New[string, Verdict](verdictCacheSize)
	if err != nil {
		return nil, err
	}
	f := &Filter{
		trie:      ft,
		manifest:  m,
		cache:     cache,
		overrides: NewOverrides(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Overrides exposes the filter's session-scoped override set.
func (f *Filter) Overrides() *Overrides {
	return f.overrides
}

// canonicalize lowercases name, strips a trailing dot, validates it's
// non-empty, then reverses the label order and joins with the 0x00
// sentinel byte, per spec §4.D's exact recipe: "ab.c" and "a.bc" must
// never share a byte-string prefix.
func canonicalize(name string) ([]byte, error) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if len(name) == 0 {
		return nil, ErrEmptyName
	}
	labels := strings.Split(name, ".")
	out := make([]byte, 0, len(name)+len(labels))
	for i := len(labels) - 1; i >= 0; i-- {
		out = append(out, labels[i]...)
		out = append(out, 0x00)
	}
	return out, nil
}

// ClassifyName implements spec §4.D's classify_name.
func (f *Filter) ClassifyName(name string, bitmap *UserBitmap) (Verdict, error) {
	canon, err := canonicalize(name)
	if err != nil {
		return Verdict{}, err
	}

	if v, ok := f.cache.Get(string(canon)); ok {
		return applyBitmap(v, bitmap), nil
	}

	if f.prefilter != nil {
		// a stored ancestor blocks its subdomains, so test every
		// label-boundary prefix, not just the full name.
		maybe := false
		for i, c := range canon {
			if c == 0x00 && f.prefilter.Test(canon[:i+1]) {
				maybe = true
				break
			}
		}
		if !maybe {
			v := Verdict{Blocked: false}
			f.cache.Add(string(canon), v)
			return v, nil
		}
	}

	ok, raw := f.trie.Lookup(canon)
	v := Verdict{}
	if ok && len(raw) > 0 {
		v.Matched = NewIDSet(raw...)
	}
	f.cache.Add(string(canon), v)

	return applyBitmap(v, bitmap), nil
}

// applyBitmap evaluates an unfiltered list-id match against the
// caller's allow/deny projection (or lack of one). Session overrides
// are not consulted here; ClassifyAnswers applies them through
// classifyWithOverride.
func applyBitmap(v Verdict, bitmap *UserBitmap) Verdict {
	if bitmap == nil {
		v.Blocked = v.Matched.Len() > 0
		return v
	}
	denied := v.Matched.Intersect(bitmap.Deny)
	matched := denied.Diff(bitmap.Allow)
	return Verdict{Blocked: matched.Len() > 0, Matched: matched}
}

// classifyWithOverride applies the session override set ahead of the
// blocklist verdict: an explicit Allow/Deny entry short-circuits
// classify_name entirely.
func (f *Filter) classifyWithOverride(name string, bitmap *UserBitmap) (Verdict, error) {
	switch f.overrides.Lookup(name) {
	case overrideAllow:
		return Verdict{Blocked: false}, nil
	case overrideDeny:
		return Verdict{Blocked: true}, nil
	}
	return f.ClassifyName(name, bitmap)
}

// ClassifyAnswers implements spec §4.D's classify_answers.
func (f *Filter) ClassifyAnswers(queryName string, answerNames []string, bitmap *UserBitmap) (AggregateVerdict, error) {
	agg := AggregateVerdict{}

	qv, err := f.classifyWithOverride(queryName, bitmap)
	if err != nil {
		return AggregateVerdict{}, err
	}
	agg.Blocked = agg.Blocked || qv.Blocked
	agg.Matched = unionMaybeNil(agg.Matched, qv.Matched)

	for _, a := range answerNames {
		av, err := f.classifyWithOverride(a, bitmap)
		if err != nil {
			continue // ignore malformed answer names, per teacher's blockAnswer
		}
		agg.Blocked = agg.Blocked || av.Blocked
		agg.Matched = unionMaybeNil(agg.Matched, av.Matched)
	}

	return agg, nil
}

func unionMaybeNil(a, b IDSet) IDSet {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return a.Union(b)
}

// LookupDomainInfo implements spec §4.D's debug/inspection helper;
// never called on the hot path, so it bypasses the verdict cache and
// prefilter and always asks the trie directly.
func (f *Filter) LookupDomainInfo(name string) (DomainInfo, error) {
	canon, err := canonicalize(name)
	if err != nil {
		return DomainInfo{}, err
	}
	ok, raw := f.trie.Lookup(canon)
	ids := IDSet{}
	if ok {
		ids = NewIDSet(raw...)
	}
	return DomainInfo{
		ListIDs:    ids,
		TagEntries: f.manifest.Entries(ids),
	}, nil
}
