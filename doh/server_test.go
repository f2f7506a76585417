// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package doh

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/celzero/rethinkblock/rdns"
	"github.com/celzero/rethinkblock/trie"
)

type stubUpstream struct {
	resp *dns.Msg
}

func (u *stubUpstream) Resolve(ctx context.Context, query *dns.Msg) (*dns.Msg, error) {
	r := new(dns.Msg)
	r.SetReply(query)
	r.Answer = u.resp.Answer
	return r, nil
}

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

func TestHandleQueryBlocks(t *testing.T) {
	td, n := tdBlob(t, map[string][]uint16{"ads.example.com": {1}})
	srv := newArtifactHTTPServer(t, td, n)
	defer srv.Close()

	w := rdns.NewWrapper(rdns.NewLoader(nil), 2*time.Second)
	s := &Server{
		Wrapper:  w,
		Source:   rdns.Source{URLBase: srv.URL + "/", Time: "20260101", NodeCnt: n, TDParts: -1},
		Upstream: &stubUpstream{resp: new(dns.Msg)},
	}

	query := new(dns.Msg)
	query.SetQuestion("ads.example.com.", dns.TypeA)
	wire, err := query.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/dns-query?dns="+base64.RawURLEncoding.EncodeToString(wire), nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := new(dns.Msg)
	if err := resp.Unpack(rec.Body.Bytes()); err != nil {
		t.Fatalf("Unpack response: %v", err)
	}
	if resp.Rcode != dns.RcodeNameError {
		t.Fatalf("rcode = %d, want NXDOMAIN", resp.Rcode)
	}
}

func TestHandleQueryForwardsUnblocked(t *testing.T) {
	td, n := tdBlob(t, map[string][]uint16{"ads.example.com": {1}})
	srv := newArtifactHTTPServer(t, td, n)
	defer srv.Close()

	w := rdns.NewWrapper(rdns.NewLoader(nil), 2*time.Second)
	s := &Server{
		Wrapper:  w,
		Source:   rdns.Source{URLBase: srv.URL + "/", Time: "20260101", NodeCnt: n, TDParts: -1},
		Upstream: &stubUpstream{resp: new(dns.Msg)},
	}

	query := new(dns.Msg)
	query.SetQuestion("clean.example.com.", dns.TypeA)
	wire, err := query.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/dns-query?dns="+base64.RawURLEncoding.EncodeToString(wire), nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := new(dns.Msg)
	if err := resp.Unpack(rec.Body.Bytes()); err != nil {
		t.Fatalf("Unpack response: %v", err)
	}
	if resp.Rcode == dns.RcodeNameError {
		t.Fatalf("unblocked query should not be NXDOMAIN")
	}
}

func tdBlob(t *testing.T, entries map[string][]uint16) ([]byte, uint64) {
	t.Helper()
	b := trie.NewBuilder()
	for name, ids := range entries {
		if err := b.Add(reverseLabelKey(name), ids); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	return b.Build()
}

func newArtifactHTTPServer(t *testing.T, td []byte, n uint64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/20260101/filetag.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"AD": {"value": 1, "vname": "Ads", "group": "privacy"}}`))
	})
	mux.HandleFunc("/20260101/rd.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{})
	})
	mux.HandleFunc("/20260101/td.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write(td)
	})
	return httptest.NewServer(mux)
}
