// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package dnsx

import (
	"testing"

	"github.com/miekg/dns"
)

func TestQueryName(t *testing.T) {
	m := new(dns.Msg)
	m.SetQuestion("Example.COM.", dns.TypeA)

	name, err := QueryName(m)
	if err != nil {
		t.Fatalf("QueryName: %v", err)
	}
	if name != "example.com" {
		t.Fatalf("got %q, want %q", name, "example.com")
	}
}

func TestQueryNameRejectsUnsupportedType(t *testing.T) {
	m := new(dns.Msg)
	m.SetQuestion("example.com.", dns.TypeMX)

	if _, err := QueryName(m); err != ErrUnsupportedQType {
		t.Fatalf("expected ErrUnsupportedQType, got %v", err)
	}
}

func TestAnswerNamesFollowsCNAMEChain(t *testing.T) {
	m := new(dns.Msg)
	m.SetQuestion("news.ycombinator.com.", dns.TypeA)
	m.Answer = []dns.RR{
		&dns.CNAME{
			Hdr:    dns.RR_Header{Name: "news.ycombinator.com.", Rrtype: dns.TypeCNAME, Class: dns.ClassINET},
			Target: "cloaked.ads.example.",
		},
	}

	names := AnswerNames(m)
	if len(names) != 1 || names[0] != "cloaked.ads.example" {
		t.Fatalf("got %v, want [cloaked.ads.example]", names)
	}
}

func TestAnswerNamesFollowsSVCBPriorityZero(t *testing.T) {
	m := new(dns.Msg)
	m.Answer = []dns.RR{
		&dns.SVCB{
			Hdr:      dns.RR_Header{Name: "a.example.", Rrtype: dns.TypeSVCB, Class: dns.ClassINET},
			Priority: 0,
			Target:   "cloaked.example.",
		},
		&dns.SVCB{
			Hdr:      dns.RR_Header{Name: "a.example.", Rrtype: dns.TypeSVCB, Class: dns.ClassINET},
			Priority: 1,
			Target:   "not-followed.example.",
		},
	}

	names := AnswerNames(m)
	if len(names) != 1 || names[0] != "cloaked.example" {
		t.Fatalf("got %v, want only the priority-0 target", names)
	}
}

func TestBlockResponseIsNameError(t *testing.T) {
	q := new(dns.Msg)
	q.SetQuestion("blocked.example.", dns.TypeA)

	resp := BlockResponse(q)
	if resp.Rcode != dns.RcodeNameError {
		t.Fatalf("got rcode %d, want NXDOMAIN", resp.Rcode)
	}
}
