// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package doh is a thin DoH front end over rdns.Filter. Everything
// about actually serving DNS-over-HTTPS at scale (TLS management,
// connection pooling, retries) is spec §1's Non-goals; this package
// exists only far enough to prove the classify_* API is wired to a
// real transport, not to be a production DoH server.
package doh

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/miekg/dns"

	"github.com/celzero/rethinkblock/dnsx"
	"github.com/celzero/rethinkblock/intra/core"
	"github.com/celzero/rethinkblock/intra/log"
	"github.com/celzero/rethinkblock/rdns"
)

const dohMimeType = "application/dns-message"

const requestTimeout = 10 * time.Second

// noisyClientWindow and noisyClientThreshold bound a purely advisory
// log signal, not an enforced rate limit: spec §1's Non-goals exclude
// actual throttling, but a resolver running unattended still wants a
// breadcrumb when one client dominates query volume.
const (
	noisyClientWindow    = time.Minute
	noisyClientThreshold = 500
)

// Upstream resolves an unblocked query to a response. A real
// deployment would implement this against an actual DNS backend; it
// is left unimplemented by design (spec §1 scopes out the DoH
// server's own network behavior beyond blocklist classification).
type Upstream interface {
	Resolve(ctx context.Context, query *dns.Msg) (*dns.Msg, error)
}

// Server is the minimal go-chi router: decode a wire-format DoH
// query, classify it, and either synthesize a block response or
// delegate to Upstream.
type Server struct {
	Wrapper  *rdns.Wrapper
	Source   rdns.Source
	Upstream Upstream

	clientHitsOnce sync.Once
	clientHits     *core.ExpMap
}

// hits lazily constructs the client-hit tracker so a Server can be
// built as a plain struct literal without a constructor.
func (s *Server) hits() *core.ExpMap {
	s.clientHitsOnce.Do(func() {
		s.clientHits = core.NewExpiringMap()
	})
	return s.clientHits
}

// Router builds the http.Handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Get("/dns-query", s.handleQuery)
	r.Post("/dns-query", s.handleQuery)
	return r
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	hits := s.hits()
	hits.Set(r.RemoteAddr, noisyClientWindow)
	if n := hits.Get(r.RemoteAddr); n == noisyClientThreshold {
		log.W("doh: %s sent %d queries with no gap longer than %s", r.RemoteAddr, n, noisyClientWindow)
	}

	wire, err := readWireQuery(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	query := new(dns.Msg)
	if err := query.Unpack(wire); err != nil {
		http.Error(w, "malformed dns message", http.StatusBadRequest)
		return
	}

	filter, err := s.Wrapper.Get(r.Context(), s.Source)
	if err != nil {
		log.W("doh: filter unavailable, forwarding upstream: %v", err)
		s.forward(w, r.Context(), query)
		return
	}

	qname, err := dnsx.QueryName(query)
	if err != nil {
		s.forward(w, r.Context(), query)
		return
	}

	verdict, err := filter.ClassifyName(qname, nil)
	if err != nil || !verdict.Blocked {
		s.forward(w, r.Context(), query)
		return
	}

	writeWireResponse(w, dnsx.BlockResponse(query))
}

func (s *Server) forward(w http.ResponseWriter, ctx context.Context, query *dns.Msg) {
	if s.Upstream == nil {
		http.Error(w, "no upstream configured", http.StatusServiceUnavailable)
		return
	}
	resp, err := s.Upstream.Resolve(ctx, query)
	if err != nil {
		http.Error(w, "resolution failed", http.StatusBadGateway)
		return
	}
	writeWireResponse(w, resp)
}

func readWireQuery(r *http.Request) ([]byte, error) {
	if r.Method == http.MethodGet {
		return decodeDNSParam(r.URL.Query().Get("dns"))
	}
	return io.ReadAll(io.LimitReader(r.Body, 64*1024))
}

func writeWireResponse(w http.ResponseWriter, msg *dns.Msg) {
	buf, err := msg.Pack()
	if err != nil {
		http.Error(w, "encode failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", dohMimeType)
	w.Write(buf)
}
