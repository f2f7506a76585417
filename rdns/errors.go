// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package rdns implements the blocklist filter subsystem of spec §4.D-F:
// BlocklistFilter (the classify_* query API), BlocklistLoader (fetch +
// assemble), and BlocklistWrapper (the at-most-one-build concurrency
// gate), layered over the succinct trie in package trie.
package rdns

import (
	"errors"
	"fmt"
)

// Sentinel errors. ErrBuildTimeout and ErrNotReady are returned by
// Wrapper.Get to callers waiting on a build (spec §7); the loader's own
// build failures are what Wrapper.lastErr records. ErrEmptyName is
// returned by the classify_* calls for an empty name. ErrMissingStamp
// and ErrFlagsMismatch come from blockstamp decoding.
var (
	ErrBuildTimeout  = errors.New("rdns: build timeout")
	ErrNotReady      = errors.New("rdns: not ready")
	ErrMissingStamp  = errors.New("rdns: no stamp set")
	ErrEmptyName     = errors.New("rdns: empty domain name")
	ErrFlagsMismatch = errors.New("rdns: flagcsv does not match loaded flags")
)

// ArtifactFetchError reports a non-2xx response while fetching one of
// the three build artifacts (spec §6, §7).
type ArtifactFetchError struct {
	URL    string
	Status int
}

func (e *ArtifactFetchError) Error() string {
	return fmt.Sprintf("rdns: fetch %s: status %d", e.URL, e.Status)
}

// ArtifactAssemblyError reports a part-count mismatch or truncated
// concatenation of a multi-part td blob.
type ArtifactAssemblyError struct {
	Reason string
}

func (e *ArtifactAssemblyError) Error() string {
	return "rdns: artifact assembly: " + e.Reason
}
