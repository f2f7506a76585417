// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import (
	"strings"
	"sync"

	"github.com/k-sone/critbitgo"
)

// overrideVerdict is a session-scoped decision that takes precedence
// over whatever the frozen trie says, layered in front of
// classify_name (spec §4.D's algebra already accounts for a caller-
// supplied override taking priority over deny-wins list matching).
type overrideVerdict int

const (
	overrideNone overrideVerdict = iota
	overrideAllow
	overrideDeny
)

// Overrides is a small, thread-safe exact/prefix-match trie of
// session-scoped allow/deny entries, adapted from the teacher's
// CritBit wrapper (intra/dnsx/critbit.go). Unlike the frozen trie it
// is mutable and rebuilt in memory per process lifetime; it never
// touches the on-disk cache.
type Overrides struct {
	mu sync.RWMutex
	t  *critbitgo.Trie
}

// NewOverrides returns an empty override set.
func NewOverrides() *Overrides {
	return &Overrides{t: critbitgo.NewTrie()}
}

// reverseKey mirrors the trie package's canonicalization so overrides
// and the frozen trie agree on subdomain-inheritance direction: a
// reversed, dot-joined key lets LongestPrefix match an ancestor domain.
func reverseKey(name string) []byte {
	labels := strings.Split(name, ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return []byte(strings.Join(labels, "."))
}

// Allow marks name (and its subdomains) as always-allow, overriding any
// blocklist match.
func (o *Overrides) Allow(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.t.Set(reverseKey(name), overrideAllow)
}

// Deny marks name (and its subdomains) as always-deny.
func (o *Overrides) Deny(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.t.Set(reverseKey(name), overrideDeny)
}

// Clear removes name's override, if any.
func (o *Overrides) Clear(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.t.Delete(reverseKey(name))
	return ok
}

// Reset empties the whole override set, e.g. on session end.
func (o *Overrides) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.t.Clear()
}

// Len reports the number of override entries.
func (o *Overrides) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.t.Size()
}

// Lookup returns the override verdict for name, walking up to the
// longest matching ancestor, same inheritance direction as the frozen
// trie's Lookup.
func (o *Overrides) Lookup(name string) overrideVerdict {
	o.mu.RLock()
	defer o.mu.RUnlock()

	key := reverseKey(name)
	if match, v, ok := o.t.LongestPrefix(key); ok {
		if len(match) == len(key) || key[len(match)] == '.' {
			return v.(overrideVerdict)
		}
	}
	return overrideNone
}
