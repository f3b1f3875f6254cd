// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"io"
	"log/slog"
	"time"

	"github.com/warden-foundation/warden/lib/ref"
)

// OperationKind enumerates the operations a driver may ask
// authorization for. The closed set matches the standard rights; custom
// operations carry a name and map onto custom rights.
type OperationKind uint8

const (
	OpInvalid OperationKind = iota
	OpRead
	OpWrite
	OpDelete
	OpExecute
	OpCreate
	OpList
	OpCustom
)

// Operation is a driver's intended action on a resource.
type Operation struct {
	Kind OperationKind

	// Custom is the operation name for OpCustom, empty otherwise.
	Custom string
}

// CustomOperation builds an operation requiring the equally named
// custom right.
func CustomOperation(name string) Operation {
	return Operation{Kind: OpCustom, Custom: name}
}

// String returns the operation's wire name.
func (o Operation) String() string {
	switch o.Kind {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	case OpExecute:
		return "execute"
	case OpCreate:
		return "create"
	case OpList:
		return "list"
	case OpCustom:
		return "custom:" + o.Custom
	default:
		return "invalid"
	}
}

// RequiredRights maps the operation to the minimal rights vector a
// capability must carry to authorize it.
func (o Operation) RequiredRights() Rights {
	switch o.Kind {
	case OpRead:
		return Rights{Read: true}
	case OpWrite:
		return Rights{Write: true}
	case OpDelete:
		return Rights{Delete: true}
	case OpExecute:
		return Rights{Execute: true}
	case OpCreate:
		return Rights{Create: true}
	case OpList:
		return Rights{List: true}
	case OpCustom:
		return Rights{Custom: []string{o.Custom}}
	default:
		return Rights{}
	}
}

// AccessDecision is the outcome of an authorization request. Granted
// decisions carry the capability snapshot as proof of authorization;
// denied decisions carry the reason and, for rights failures, the
// missing set.
type AccessDecision struct {
	Granted       bool
	Reason        DenyReason
	MissingRights Rights

	// Capability is the proof snapshot on grant, nil on denial.
	Capability *Capability
}

// Authorizer is the driver capability interface: the only surface
// through which external collaborators ask permission. It translates
// an intended operation into a rights requirement, validates, and on
// grant consumes one use of the capability. There is no
// ambient-authority path around it.
type Authorizer struct {
	store  *Store
	logger *slog.Logger
}

// NewAuthorizer wraps a store. logger may be nil to suppress denial
// diagnostics.
func NewAuthorizer(store *Store, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Authorizer{store: store, logger: logger}
}

// Authorize decides at the store clock's now.
func (a *Authorizer) Authorize(capID ref.CapabilityID, op Operation, resource ref.ResourceID, requestor ref.ProcessID) AccessDecision {
	return a.AuthorizeAt(capID, op, resource, requestor, a.store.clk.Now())
}

// AuthorizeAt decides whether the capability authorizes the requestor
// to perform op on the resource. A grant increments the capability's
// use count; a denial has no side effect beyond the validation
// counters. Denial is terminal for this call — retry policy belongs to
// the caller.
func (a *Authorizer) AuthorizeAt(capID ref.CapabilityID, op Operation, resource ref.ResourceID, requestor ref.ProcessID, now time.Time) AccessDecision {
	required := op.RequiredRights()

	result := a.store.ValidateAt(capID, required, resource, requestor, now)
	if result.Decision != Allow {
		a.logger.Debug("access denied",
			"capability", capID.String(),
			"operation", op.String(),
			"resource", resource.String(),
			"requestor", requestor.String(),
			"reason", result.Reason.String(),
		)
		return AccessDecision{
			Granted:       false,
			Reason:        result.Reason,
			MissingRights: result.MissingRights,
		}
	}

	a.store.incrementUse(capID)

	return AccessDecision{Granted: true, Capability: result.Capability}
}
