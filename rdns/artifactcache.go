// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import (
	"bytes"
	"encoding/gob"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var artifactBucket = []byte("artifacts")

// ArtifactCache is the embedded, cross-restart cache of downloaded
// build artifacts that spec §1's Non-goals concede a host may provide:
// a bbolt-backed KV store keyed by (url_base, timestamp), holding the
// assembled filetag/rd/td bytes so a restart doesn't always have to
// re-fetch. It never caches the FrozenTrie itself, only its inputs.
type ArtifactCache struct {
	db *bolt.DB
}

// OpenArtifactCache opens (creating if absent) a bbolt database at
// path for use as an ArtifactCache.
func OpenArtifactCache(path string) (*ArtifactCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("rdns: open artifact cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(artifactBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &ArtifactCache{db: db}, nil
}

func (c *ArtifactCache) Close() error {
	return c.db.Close()
}

func cacheKey(urlBase, timestamp string) []byte {
	return []byte(urlBase + "\x00" + timestamp)
}

// Get returns the cached artifact for (urlBase, timestamp), if any.
func (c *ArtifactCache) Get(urlBase, timestamp string) (rawArtifact, bool) {
	var art rawArtifact
	var found bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(artifactBucket)
		v := b.Get(cacheKey(urlBase, timestamp))
		if v == nil {
			return nil
		}
		dec := gob.NewDecoder(bytes.NewReader(v))
		if err := dec.Decode(&art); err != nil {
			return nil // treat a corrupt entry as a cache miss
		}
		found = true
		return nil
	})
	return art, found
}

// Put stores art under (urlBase, timestamp), overwriting any existing
// entry.
func (c *ArtifactCache) Put(urlBase, timestamp string, art rawArtifact) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(art); err != nil {
		return fmt.Errorf("rdns: encode artifact: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(artifactBucket)
		return b.Put(cacheKey(urlBase, timestamp), buf.Bytes())
	})
}
