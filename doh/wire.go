// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package doh

import "encoding/base64"

// decodeDNSParam decodes RFC 8484's GET ?dns= parameter: unpadded
// base64url.
func decodeDNSParam(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
