// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "testing"

func TestParseProcessID(t *testing.T) {
	valid := []string{
		"app",
		"app/ingest/worker-3",
		"billing.importer_v2",
	}
	for _, raw := range valid {
		p, err := ParseProcessID(raw)
		if err != nil {
			t.Errorf("ParseProcessID(%q): %v", raw, err)
			continue
		}
		if p.String() != raw {
			t.Errorf("String() = %q, want %q", p.String(), raw)
		}
		if p.IsZero() {
			t.Errorf("IsZero() = true for %q", raw)
		}
	}

	invalid := []string{
		"",
		"/app",
		"app/",
		"app//worker",
		"App",
		"app worker",
		"app:worker",
	}
	for _, raw := range invalid {
		if _, err := ParseProcessID(raw); err == nil {
			t.Errorf("ParseProcessID(%q): expected error", raw)
		}
	}
}

func TestProcessIDTextRoundTrip(t *testing.T) {
	original := MustParseProcessID("app/worker-1")

	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded ProcessID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip: got %v, want %v", decoded, original)
	}
}

func TestProcessIDZeroMarshalsEmpty(t *testing.T) {
	var zero ProcessID
	data, err := zero.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("zero value marshaled to %q, want empty", data)
	}

	var decoded ProcessID
	if err := decoded.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil): %v", err)
	}
	if !decoded.IsZero() {
		t.Error("empty input should decode to zero value")
	}
}

func TestParseRegionID(t *testing.T) {
	r, err := ParseRegionID("region/app/billing")
	if err != nil {
		t.Fatalf("ParseRegionID: %v", err)
	}
	if r.String() != "region/app/billing" {
		t.Errorf("String() = %q", r.String())
	}

	if _, err := ParseRegionID(""); err == nil {
		t.Error("empty region ID should be rejected")
	}
}

func TestParseDriverID(t *testing.T) {
	d, err := ParseDriverID("driver/net")
	if err != nil {
		t.Fatalf("ParseDriverID: %v", err)
	}
	if d.IsZero() {
		t.Error("parsed driver ID should not be zero")
	}
}
