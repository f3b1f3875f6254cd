// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "testing"

func TestResourceString(t *testing.T) {
	tests := []struct {
		resource ResourceID
		want     string
	}{
		{MustResource(ResourceFile, "/var/data/ledger"), "file:/var/data/ledger"},
		{MustResource(ResourceTopic, "billing.events"), "topic:billing.events"},
		{MustResource(ResourceAuditLog, "main"), "audit-log:main"},
		{MustCustomResource("gpu", "dev0"), "custom(gpu):dev0"},
	}
	for _, tt := range tests {
		if got := tt.resource.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseResourceRoundTrip(t *testing.T) {
	raws := []string{
		"file:/etc/app.conf",
		"database:orders",
		"custom(gpu):dev1",
	}
	for _, raw := range raws {
		r, err := ParseResource(raw)
		if err != nil {
			t.Errorf("ParseResource(%q): %v", raw, err)
			continue
		}
		if r.String() != raw {
			t.Errorf("round trip: got %q, want %q", r.String(), raw)
		}
	}
}

func TestParseResourceRejects(t *testing.T) {
	invalid := []string{
		"",
		"file",              // no separator
		"widget:thing",      // unknown type
		"custom(:x",         // unterminated tag
		"custom():x",        // empty tag
		"custom(file):x",    // shadows built-in
		"file:",             // empty name
	}
	for _, raw := range invalid {
		if _, err := ParseResource(raw); err == nil {
			t.Errorf("ParseResource(%q): expected error", raw)
		}
	}
}

func TestSameType(t *testing.T) {
	fileA := MustResource(ResourceFile, "/a")
	fileB := MustResource(ResourceFile, "/b")
	topic := MustResource(ResourceTopic, "t")
	gpuA := MustCustomResource("gpu", "dev0")
	gpuB := MustCustomResource("gpu", "dev1")
	fpga := MustCustomResource("fpga", "dev0")

	if !fileA.SameType(fileB) {
		t.Error("two file resources should share a type")
	}
	if fileA.SameType(topic) {
		t.Error("file and topic should not share a type")
	}
	if !gpuA.SameType(gpuB) {
		t.Error("same custom tag should share a type")
	}
	if gpuA.SameType(fpga) {
		t.Error("different custom tags should not share a type")
	}
	if gpuA.SameType(fileA) {
		t.Error("custom and built-in should not share a type")
	}
}

func TestResourceTypeParse(t *testing.T) {
	for typ, name := range resourceTypeNames {
		parsed, err := ParseResourceType(name)
		if err != nil {
			t.Errorf("ParseResourceType(%q): %v", name, err)
		}
		if parsed != typ {
			t.Errorf("ParseResourceType(%q) = %v, want %v", name, parsed, typ)
		}
	}
	if _, err := ParseResourceType("custom"); err == nil {
		t.Error("bare \"custom\" should be rejected; tags come from CustomResource")
	}
}
