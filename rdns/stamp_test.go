// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import "testing"

func TestStampRoundTripBase64(t *testing.T) {
	ids := NewIDSet(1, 17, 33, 171, 255)
	stamp, err := EncodeStamp(ids, EncBase64)
	if err != nil {
		t.Fatalf("EncodeStamp: %v", err)
	}
	got, err := DecodeStamp(stamp)
	if err != nil {
		t.Fatalf("DecodeStamp(%q): %v", stamp, err)
	}
	if got.Len() != ids.Len() {
		t.Fatalf("got %v, want %v", got, ids)
	}
	for id := range ids {
		if !got.Has(id) {
			t.Fatalf("missing id %d in %v", id, got)
		}
	}
}

func TestStampRoundTripBase32(t *testing.T) {
	ids := NewIDSet(0, 16, 171)
	stamp, err := EncodeStamp(ids, EncBase32)
	if err != nil {
		t.Fatalf("EncodeStamp: %v", err)
	}
	got, err := DecodeStamp(stamp)
	if err != nil {
		t.Fatalf("DecodeStamp(%q): %v", stamp, err)
	}
	if got.Len() != ids.Len() {
		t.Fatalf("got %v, want %v", got, ids)
	}
}

func TestFlagsToStampAndNames(t *testing.T) {
	m, err := ParseManifest([]byte(`{
		"AD": {"value": 1, "vname": "Ads", "group": "privacy", "subg": "ads"}
	}`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}

	stamp, err := FlagsToStamp("1", EncBase64)
	if err != nil {
		t.Fatalf("FlagsToStamp: %v", err)
	}
	names, err := StampToNames(stamp, m)
	if err != nil {
		t.Fatalf("StampToNames: %v", err)
	}
	if names != "ads:Ads" {
		t.Fatalf("got %q, want %q", names, "ads:Ads")
	}
}

func TestDecodeStampEmpty(t *testing.T) {
	if _, err := DecodeStamp(""); err != ErrMissingStamp {
		t.Fatalf("expected ErrMissingStamp, got %v", err)
	}
}
