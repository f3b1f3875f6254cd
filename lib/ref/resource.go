// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// ResourceType tags the kind of resource a capability governs. The
// enumeration is closed except for ResourceCustom, which carries an
// opaque tag on the ResourceID for domain extension. Keeping the set
// closed makes exhaustive switches possible; the single custom escape
// keeps drivers from minting ad-hoc type tags.
type ResourceType uint8

const (
	// ResourceInvalid is the zero value. Never valid on the wire.
	ResourceInvalid ResourceType = iota

	// ResourceMemory is a memory allocation or shared segment.
	ResourceMemory

	// ResourceChannel is an inter-process message channel.
	ResourceChannel

	// ResourceFile is a file or directory path.
	ResourceFile

	// ResourceDatabase is a database instance.
	ResourceDatabase

	// ResourceTopic is a pub/sub topic.
	ResourceTopic

	// ResourceKeyspace is a key-value keyspace.
	ResourceKeyspace

	// ResourceTable is a table within a database or keyspace.
	ResourceTable

	// ResourceModule is a loadable application module.
	ResourceModule

	// ResourceProcess is a hosted process.
	ResourceProcess

	// ResourceAuditLog is the append-only audit stream.
	ResourceAuditLog

	// ResourceConfig is a configuration document.
	ResourceConfig

	// ResourceTimer is a kernel timer.
	ResourceTimer

	// ResourceNetwork is a network endpoint or interface.
	ResourceNetwork

	// ResourceCustom is the open extension point. The type tag for
	// matching purposes is the ResourceID's custom tag, not this
	// constant alone.
	ResourceCustom
)

// resourceTypeNames maps closed-enumeration types to their wire names.
var resourceTypeNames = map[ResourceType]string{
	ResourceMemory:   "memory",
	ResourceChannel:  "channel",
	ResourceFile:     "file",
	ResourceDatabase: "database",
	ResourceTopic:    "topic",
	ResourceKeyspace: "keyspace",
	ResourceTable:    "table",
	ResourceModule:   "module",
	ResourceProcess:  "process",
	ResourceAuditLog: "audit-log",
	ResourceConfig:   "config",
	ResourceTimer:    "timer",
	ResourceNetwork:  "network",
}

// resourceTypesByName is the inverse of resourceTypeNames.
var resourceTypesByName = func() map[string]ResourceType {
	inverse := make(map[string]ResourceType, len(resourceTypeNames))
	for typ, name := range resourceTypeNames {
		inverse[name] = typ
	}
	return inverse
}()

// String returns the wire name of the resource type. ResourceCustom
// renders as "custom"; the tag lives on the ResourceID.
func (t ResourceType) String() string {
	if name, ok := resourceTypeNames[t]; ok {
		return name
	}
	if t == ResourceCustom {
		return "custom"
	}
	return fmt.Sprintf("invalid(%d)", uint8(t))
}

// ParseResourceType parses a wire name into a ResourceType. "custom"
// is rejected here — custom resources are constructed through
// CustomResource with an explicit tag.
func ParseResourceType(name string) (ResourceType, error) {
	if typ, ok := resourceTypesByName[name]; ok {
		return typ, nil
	}
	return ResourceInvalid, fmt.Errorf("unknown resource type: %q", name)
}

// ResourceID identifies a concrete resource: a type tag plus a
// type-specific name (a path for files, a topic name for topics, and
// so on). The name is opaque to the kernel core — only drivers
// interpret it.
//
// ResourceID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type ResourceID struct {
	typ ResourceType

	// customTag is set only when typ is ResourceCustom.
	customTag string

	name string
}

// NewResource builds a ResourceID with a closed-enumeration type.
func NewResource(typ ResourceType, name string) (ResourceID, error) {
	if typ == ResourceInvalid || typ == ResourceCustom {
		return ResourceID{}, fmt.Errorf("resource type %s requires CustomResource or is invalid", typ)
	}
	if _, ok := resourceTypeNames[typ]; !ok {
		return ResourceID{}, fmt.Errorf("unknown resource type: %d", uint8(typ))
	}
	if name == "" {
		return ResourceID{}, fmt.Errorf("empty resource name")
	}
	return ResourceID{typ: typ, name: name}, nil
}

// MustResource is like NewResource but panics on error.
func MustResource(typ ResourceType, name string) ResourceID {
	r, err := NewResource(typ, name)
	if err != nil {
		panic(fmt.Sprintf("ref.MustResource(%v, %q): %v", typ, name, err))
	}
	return r
}

// CustomResource builds a ResourceID with the open custom type and an
// opaque tag (e.g., CustomResource("gpu", "dev0")).
func CustomResource(tag, name string) (ResourceID, error) {
	if tag == "" {
		return ResourceID{}, fmt.Errorf("empty custom resource tag")
	}
	if strings.ContainsAny(tag, ":()") {
		return ResourceID{}, fmt.Errorf("custom resource tag has reserved character: %q", tag)
	}
	if _, reserved := resourceTypesByName[tag]; reserved {
		return ResourceID{}, fmt.Errorf("custom resource tag shadows built-in type: %q", tag)
	}
	if name == "" {
		return ResourceID{}, fmt.Errorf("empty resource name")
	}
	return ResourceID{typ: ResourceCustom, customTag: tag, name: name}, nil
}

// MustCustomResource is like CustomResource but panics on error.
func MustCustomResource(tag, name string) ResourceID {
	r, err := CustomResource(tag, name)
	if err != nil {
		panic(fmt.Sprintf("ref.MustCustomResource(%q, %q): %v", tag, name, err))
	}
	return r
}

// ParseResource parses the "type:name" or "custom(tag):name" wire form.
func ParseResource(raw string) (ResourceID, error) {
	typePart, name, found := strings.Cut(raw, ":")
	if !found {
		return ResourceID{}, fmt.Errorf("resource ID missing ':' separator: %q", raw)
	}
	if inner, isCustom := strings.CutPrefix(typePart, "custom("); isCustom {
		tag, closed := strings.CutSuffix(inner, ")")
		if !closed {
			return ResourceID{}, fmt.Errorf("unterminated custom resource tag: %q", raw)
		}
		return CustomResource(tag, name)
	}
	typ, err := ParseResourceType(typePart)
	if err != nil {
		return ResourceID{}, err
	}
	return NewResource(typ, name)
}

// Type returns the resource type tag.
func (r ResourceID) Type() ResourceType { return r.typ }

// CustomTag returns the opaque tag for custom resources, or "" for
// closed-enumeration types.
func (r ResourceID) CustomTag() string { return r.customTag }

// Name returns the type-specific resource name.
func (r ResourceID) Name() string { return r.name }

// IsZero reports whether the ResourceID is the zero value.
func (r ResourceID) IsZero() bool { return r.typ == ResourceInvalid }

// SameType reports whether two resources share a type tag. For custom
// resources the opaque tags must match. This is the comparison used by
// capability validation — type match, not full identity match.
func (r ResourceID) SameType(other ResourceID) bool {
	if r.typ != other.typ {
		return false
	}
	if r.typ == ResourceCustom {
		return r.customTag == other.customTag
	}
	return true
}

// String returns "type:name", or "custom(tag):name" for custom types.
func (r ResourceID) String() string {
	if r.typ == ResourceCustom {
		return fmt.Sprintf("custom(%s):%s", r.customTag, r.name)
	}
	return r.typ.String() + ":" + r.name
}

// MarshalText implements encoding.TextMarshaler.
func (r ResourceID) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return nil, nil
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ResourceID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = ResourceID{}
		return nil
	}
	parsed, err := ParseResource(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
