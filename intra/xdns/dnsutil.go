// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// This file incorporates work covered by the following copyright and
// permission notice:
//
//    ISC License
//
//    Copyright (c) 2018-2021
//    Frank Denis <j at pureftpd dot org>

package xdns

import (
	"strings"
	"unicode/utf8"

	"github.com/miekg/dns"
)

// QName returns the first question's name, or "" if msg has none.
func QName(msg *dns.Msg) string {
	if msg != nil && len(msg.Question) > 0 {
		return msg.Question[0].Name
	}
	return ""
}

// QType returns the first question's qtype, or dns.TypeNone.
func QType(msg *dns.Msg) uint16 {
	if msg != nil && len(msg.Question) > 0 {
		return msg.Question[0].Qtype
	}
	return dns.TypeNone
}

// NormalizeQName lowercases str and strips its trailing dot, per spec
// §4.D's canonicalization step; non-ASCII bytes are an error, since
// callers are expected to supply A-labels (punycode), not raw
// Unicode, per spec §8.
func NormalizeQName(str string) (string, error) {
	if len(str) == 0 || str == "." {
		return ".", nil
	}
	hasUpper := false
	str = strings.TrimSuffix(str, ".")
	strLen := len(str)
	for i := 0; i < strLen; i++ {
		c := str[i]
		if c >= utf8.RuneSelf {
			return str, errNotAscii
		}
		hasUpper = hasUpper || ('A' <= c && c <= 'Z')
	}
	if !hasUpper {
		return str, nil
	}
	var b strings.Builder
	b.Grow(len(str))
	for i := 0; i < strLen; i++ {
		c := str[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// IsAAAAQType reports whether qtype is a AAAA query.
func IsAAAAQType(qtype uint16) bool {
	return qtype == dns.TypeAAAA
}

// IsAQType reports whether qtype is an A query.
func IsAQType(qtype uint16) bool {
	return qtype == dns.TypeA
}

// IsHTTPSQType reports whether qtype is an HTTPS query.
func IsHTTPSQType(qtype uint16) bool {
	return qtype == dns.TypeHTTPS
}

// IsSVCBQType reports whether qtype is an SVCB query.
func IsSVCBQType(qtype uint16) bool {
	return qtype == dns.TypeSVCB
}
