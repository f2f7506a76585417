// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/celzero/rethinkblock/intra/core"
	"github.com/celzero/rethinkblock/intra/log"
	"github.com/celzero/rethinkblock/trie"
)

// cacheControlHint is set on every fetch so a CDN in front of the
// artifact host can cache content-addressed-by-timestamp blobs for a
// long time, per spec §4.E.
const cacheControlHint = "public, max-age=1209600" // ~14 days

// Source names the three build artifacts of spec §4.E.
type Source struct {
	URLBase  string // e.g. "https://dl.rethinkdns.com/blocklists/"
	Time     string // timestamp path segment
	NodeCnt  uint64
	TDParts  int // <= -1 means single td.txt
}

// Loader implements spec §4.E's BlocklistLoader: fetch the three
// artifacts concurrently, assemble them, and hand back a ready Filter.
// A Loader optionally consults/fills an ArtifactCache first.
type Loader struct {
	Client *http.Client
	Cache  *ArtifactCache // nil disables caching
}

// NewLoader returns a Loader using a short-timeout http.Client, in the
// teacher's style of never relying on http.DefaultClient.
func NewLoader(cache *ArtifactCache) *Loader {
	return &Loader{
		Client: &http.Client{Timeout: 30 * time.Second},
		Cache:  cache,
	}
}

// Load fetches and assembles the three artifacts named by src and
// returns a ready Filter, per spec §4.E steps 1-5.
func (l *Loader) Load(ctx context.Context, src Source) (*Filter, error) {
	baseurl := src.URLBase + src.Time

	if l.Cache != nil {
		if art, ok := l.Cache.Get(src.URLBase, src.Time); ok {
			return l.assemble(art, src)
		}
	}

	var filetagJSON, rd, td []byte
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		filetagJSON, err = l.fetch(gctx, baseurl+"/filetag.json")
		return err
	})
	g.Go(func() (err error) {
		rd, err = l.fetch(gctx, baseurl+"/rd.txt")
		return err
	})
	g.Go(func() (err error) {
		td, err = l.fetchTD(gctx, baseurl, src.TDParts)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	art := rawArtifact{FileTagJSON: filetagJSON, RD: rd, TD: td}
	if l.Cache != nil {
		cache := l.Cache
		// don't make the caller wait on a disk write it doesn't need
		// the result of.
		core.Go("rdns.cacheput", func() {
			if err := cache.Put(src.URLBase, src.Time, art); err != nil {
				log.W("rdns: artifact cache put: %v", err)
			}
		})
	}

	return l.assemble(art, src)
}

// rawArtifact bundles the three fetched/cached blobs.
type rawArtifact struct {
	FileTagJSON []byte
	RD          []byte
	TD          []byte
}

func (l *Loader) assemble(art rawArtifact, src Source) (*Filter, error) {
	m, err := ParseManifest(art.FileTagJSON)
	if err != nil {
		return nil, &ArtifactAssemblyError{Reason: err.Error()}
	}

	h := blake3.New()
	h.Write(art.TD)
	sum := h.Sum(nil)
	log.I("rdns: assembling trie nodecount=%d td=%s rd=%s sum=%x", src.NodeCnt, core.FmtBytes(uint64(len(art.TD))), core.FmtBytes(uint64(len(art.RD))), sum[:8])

	ft, err := trie.Build(art.TD, src.NodeCnt)
	if err != nil {
		return nil, &ArtifactAssemblyError{Reason: err.Error()}
	}

	return NewFilter(ft, m)
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", cacheControlHint)

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ArtifactFetchError{URL: url, Status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// fetchTD implements spec §4.E step 2's multi-part td handling: a
// single td.txt when tdparts <= -1, otherwise tdparts+1 numbered parts
// fetched concurrently and concatenated in order.
func (l *Loader) fetchTD(ctx context.Context, baseurl string, tdparts int) ([]byte, error) {
	if tdparts <= -1 {
		return l.fetch(ctx, baseurl+"/td.txt")
	}

	n := tdparts + 1
	parts := make([][]byte, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			url := fmt.Sprintf("%s/td%02d.txt", baseurl, i)
			b, err := l.fetch(gctx, url)
			if err != nil {
				return err
			}
			parts[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for i, p := range parts {
		if len(p) == 0 {
			return nil, &ArtifactAssemblyError{Reason: fmt.Sprintf("td part %d empty", i)}
		}
		out = append(out, p...)
	}
	return out, nil
}
