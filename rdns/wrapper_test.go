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
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testServer(t *testing.T) (*httptest.Server, Source) {
	t.Helper()
	td, n := tdBlobFor(t, map[string][]uint16{"ads.example.com": {1}})
	filetag := []byte(`{"AD": {"value": 1, "vname": "Ads", "group": "privacy", "subg": "ads"}}`)

	mux := http.NewServeMux()
	mux.HandleFunc("/20260101/filetag.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(filetag)
	})
	mux.HandleFunc("/20260101/rd.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{})
	})
	mux.HandleFunc("/20260101/td.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write(td)
	})
	srv := httptest.NewServer(mux)
	return srv, Source{URLBase: srv.URL + "/", Time: "20260101", NodeCnt: n, TDParts: -1}
}

func TestWrapperBuildsOnce(t *testing.T) {
	srv, src := testServer(t)
	defer srv.Close()

	w := NewWrapper(NewLoader(nil), 2*time.Second)

	var wg sync.WaitGroup
	results := make([]*Filter, 8)
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = w.Get(context.Background(), src)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if results[i] == nil {
			t.Fatalf("caller %d: nil filter", i)
		}
		if results[i] != results[0] {
			t.Fatalf("caller %d: got a different filter than caller 0", i)
		}
	}
	if !w.Ready() {
		t.Fatalf("expected wrapper to be Ready")
	}
}

func TestWrapperBuildFailureAllowsRetry(t *testing.T) {
	var fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/20260101/filetag.json", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/20260101/rd.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{})
	})
	mux.HandleFunc("/20260101/td.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	w := NewWrapper(NewLoader(nil), 2*time.Second)
	src := Source{URLBase: srv.URL + "/", Time: "20260101", TDParts: -1}

	if _, err := w.Get(context.Background(), src); err == nil {
		t.Fatalf("expected build failure")
	}
	if w.Ready() {
		t.Fatalf("wrapper should not be Ready after a failed build")
	}
	if w.LastError() == nil {
		t.Fatalf("expected LastError to be recorded")
	}

	if _, err := w.Get(context.Background(), src); err == nil {
		t.Fatalf("expected retried build to fail again")
	}
	if n := fetches.Load(); n != 2 {
		t.Fatalf("filetag.json fetched %d times, want 2 (one per build attempt)", n)
	}
}

func TestWrapperForceRebuild(t *testing.T) {
	srv, src := testServer(t)
	defer srv.Close()

	w := NewWrapper(NewLoader(nil), 2*time.Second)
	if _, err := w.Get(context.Background(), src); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !w.Ready() {
		t.Fatalf("expected Ready")
	}

	w.ForceRebuild()
	if w.Ready() {
		t.Fatalf("expected not Ready right after ForceRebuild")
	}

	if _, err := w.Get(context.Background(), src); err != nil {
		t.Fatalf("rebuild Get: %v", err)
	}
}
