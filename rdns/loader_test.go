// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/celzero/rethinkblock/trie"
)

func tdBlobFor(t *testing.T, entries map[string][]uint16) ([]byte, uint64) {
	t.Helper()
	b := trie.NewBuilder()
	for name, ids := range entries {
		if err := b.Add(reverseLabelKey(name), ids); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	return b.Build()
}

func TestLoaderFetchesAndAssembles(t *testing.T) {
	td, n := tdBlobFor(t, map[string][]uint16{"ads.example.com": {1}})
	filetag := []byte(`{"AD": {"value": 1, "vname": "Ads", "group": "privacy", "subg": "ads"}}`)

	mux := http.NewServeMux()
	mux.HandleFunc("/20260101/filetag.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(filetag)
	})
	mux.HandleFunc("/20260101/rd.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{}) // rd.txt is unused by trie.Build in this repo's wire format
	})
	mux.HandleFunc("/20260101/td.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write(td)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewLoader(nil)
	src := Source{URLBase: srv.URL + "/", Time: "20260101", NodeCnt: n, TDParts: -1}

	f, err := l.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	v, err := f.ClassifyName("ads.example.com", nil)
	if err != nil || !v.Blocked {
		t.Fatalf("expected block, got %+v err=%v", v, err)
	}
}

func TestLoaderFetchFailureAborts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/20260101/filetag.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/20260101/rd.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{})
	})
	mux.HandleFunc("/20260101/td.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewLoader(nil)
	src := Source{URLBase: srv.URL + "/", Time: "20260101", NodeCnt: 0, TDParts: -1}

	if _, err := l.Load(context.Background(), src); err == nil {
		t.Fatalf("expected fetch failure to abort the build")
	}
}
