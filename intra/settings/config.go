// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
package settings

import "time"

// Defaults for the recognized options of spec §6, mirrored from the
// teacher's own constant naming for tunable knobs.
const (
	DefaultBlocklistURL      = "https://dist.rethinkdns.com/blocklists/"
	DefaultLatestTimestamp   = "1741852800" // known-good bundle at time of writing
	DefaultDownloadTimeoutMs = 5000
	DefaultCacheTTLSeconds   = 1209600 // 14 days
	DefaultTDParts           = -1
)

// Config is the recognized configuration surface of spec §6, loaded
// by cmd/resolver via koanf (defaults, then an optional YAML file,
// then RDNS_-prefixed environment variables, each layer overriding
// the last). DownloadTimeoutMs and CacheTTL are kept as the plain
// integers spec §6 names them (milliseconds, seconds) rather than
// time.Duration, so a YAML/env override of "5000" means what it says
// without a unit-suffix parsing step.
type Config struct {
	BlocklistURL      string `koanf:"blocklistUrl"`
	LatestTimestamp   string `koanf:"latestTimestamp"`
	TDNodecount       uint64 `koanf:"tdNodecount"`
	TDParts           int    `koanf:"tdParts"`
	DownloadTimeoutMs int    `koanf:"downloadTimeout"`
	CacheTTL          int    `koanf:"cacheTtl"`

	// CachePath is where rdns.ArtifactCache opens its bbolt file. Not
	// named in spec §6's list (which only covers network/build
	// tunables), but every complete deployment needs a location for
	// the optional artifact cache, so it lives alongside the rest of
	// the recognized options rather than as a hardcoded path.
	CachePath string `koanf:"cachePath"`

	// ListenAddr is where doh.Server binds, per the same reasoning.
	ListenAddr string `koanf:"listenAddr"`
}

// DownloadTimeout returns DownloadTimeoutMs as a time.Duration.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutMs) * time.Millisecond
}

// Default returns the recognized defaults of spec §6.
func Default() *Config {
	return &Config{
		BlocklistURL:      DefaultBlocklistURL,
		LatestTimestamp:   DefaultLatestTimestamp,
		TDParts:           DefaultTDParts,
		DownloadTimeoutMs: DefaultDownloadTimeoutMs,
		CacheTTL:          DefaultCacheTTLSeconds,
		CachePath:         "rdns-cache.db",
		ListenAddr:        ":8443",
	}
}
