// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package containment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/ref"
)

// EventType enumerates the kinds of events that may cross a region
// boundary. The numeric order is the default drain priority: lower
// values drain first.
type EventType uint8

const (
	// EventEscalation reports that in-place recovery is no longer
	// possible and a parent authority must act. Highest priority.
	EventEscalation EventType = iota

	// EventQuarantineRequest asks the target to quarantine a region.
	EventQuarantineRequest

	// EventFault reports a fault across the boundary.
	EventFault

	// EventRestartRequest asks the target to restart a hosted unit.
	EventRestartRequest

	// EventRecoveryComplete reports a successful recovery.
	EventRecoveryComplete

	// EventHealthCheck is a routine liveness probe. Lowest priority.
	EventHealthCheck

	numEventTypes
)

// String returns the event type's wire name.
func (t EventType) String() string {
	switch t {
	case EventEscalation:
		return "escalation"
	case EventQuarantineRequest:
		return "quarantine-request"
	case EventFault:
		return "fault"
	case EventRestartRequest:
		return "restart-request"
	case EventRecoveryComplete:
		return "recovery-complete"
	case EventHealthCheck:
		return "health-check"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(t))
	}
}

// Event is one message crossing a region boundary through the gateway.
type Event struct {
	Type   EventType
	Source ref.RegionID
	Target ref.RegionID

	// At is the instant the event was produced, not submitted.
	At time.Time

	// Detail is event-specific context.
	Detail string

	// Fault carries the originating fault record for EventFault and
	// EventEscalation, when available.
	Fault *FaultRecord
}

// GatewayState is the gateway's operating state.
type GatewayState uint8

const (
	// GatewayOpen accepts submissions and has no pending events.
	GatewayOpen GatewayState = iota

	// GatewayProcessing accepts submissions while events are pending.
	GatewayProcessing

	// GatewayPaused rejects submissions until Resume. Entered when a
	// submission would overflow the pending queue.
	GatewayPaused

	// GatewayClosed is terminal.
	GatewayClosed
)

// String returns the state's wire name.
func (s GatewayState) String() string {
	switch s {
	case GatewayOpen:
		return "open"
	case GatewayProcessing:
		return "processing"
	case GatewayPaused:
		return "paused"
	case GatewayClosed:
		return "closed"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(s))
	}
}

// Errors returned by gateway operations.
var (
	ErrGatewayClosed = errors.New("containment: gateway is closed")
	ErrGatewayPaused = errors.New("containment: gateway is paused")

	// ErrGatewayBackpressure means this submission would overflow the
	// pending queue; the gateway has paused itself in response. The
	// producer must retry after the consumer drains, or escalate —
	// never block indefinitely.
	ErrGatewayBackpressure = errors.New("containment: gateway pending queue is full")
)

// GatewayPolicy configures a gateway.
type GatewayPolicy struct {
	// MaxPendingEvents bounds the total pending queue across all
	// priorities.
	MaxPendingEvents int
}

// DefaultGatewayPolicy returns the policy used for a zero policy.
func DefaultGatewayPolicy() GatewayPolicy {
	return GatewayPolicy{MaxPendingEvents: 128}
}

// Gateway is the sole path by which fault and recovery events cross a
// region boundary. Producers submit, a single consumer drains in
// strict event-type priority with arrival order as the tiebreak within
// a type. Mutex-guarded single-writer value.
type Gateway struct {
	mu sync.Mutex

	clk    clock.Clock
	logger *slog.Logger

	policy GatewayPolicy
	state  GatewayState

	// queues holds one FIFO per event type, indexed by priority.
	queues  [numEventTypes][]Event
	pending int
}

// NewGateway constructs a Gateway. A zero policy takes
// DefaultGatewayPolicy; logger may be nil.
func NewGateway(policy GatewayPolicy, clk clock.Clock, logger *slog.Logger) (*Gateway, error) {
	if clk == nil {
		return nil, errors.New("containment: nil clock")
	}
	if policy.MaxPendingEvents == 0 {
		policy = DefaultGatewayPolicy()
	}
	if policy.MaxPendingEvents < 0 {
		return nil, fmt.Errorf("containment: MaxPendingEvents must be positive, got %d", policy.MaxPendingEvents)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gateway{clk: clk, logger: logger, policy: policy}, nil
}

// Submit offers an event to the gateway. Rejected outright when the
// gateway is closed or paused. A submission that would push the
// pending queue past MaxPendingEvents pauses the gateway and is
// rejected with ErrGatewayBackpressure — the queue never exceeds the
// bound.
func (g *Gateway) Submit(event Event) error {
	if event.Type >= numEventTypes {
		return fmt.Errorf("containment: invalid event type %d", uint8(event.Type))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case GatewayClosed:
		return ErrGatewayClosed
	case GatewayPaused:
		return ErrGatewayPaused
	}

	if g.pending >= g.policy.MaxPendingEvents {
		g.state = GatewayPaused
		g.logger.Warn("gateway paused under backpressure",
			"pending", g.pending,
			"max_pending", g.policy.MaxPendingEvents,
			"rejected_type", event.Type.String(),
		)
		return ErrGatewayBackpressure
	}

	g.queues[event.Type] = append(g.queues[event.Type], event)
	g.pending++
	g.state = GatewayProcessing
	return nil
}

// SubmitRetry submits with bounded exponential-backoff retry on pause
// and backpressure rejections, for producers that prefer waiting out a
// briefly saturated gateway over escalating immediately. The context
// bounds total retry time. Closed-gateway rejections are permanent and
// returned at once.
func (g *Gateway) SubmitRetry(ctx context.Context, event Event, maxAttempts int, baseDelay time.Duration) error {
	var lastError error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-g.clk.After(backoff):
			}
		}

		err := g.Submit(event)
		if err == nil {
			return nil
		}
		lastError = err

		if errors.Is(err, ErrGatewayClosed) {
			return err
		}

		g.logger.Warn("gateway submission rejected, retrying",
			"event_type", event.Type.String(),
			"source", event.Source.String(),
			"attempt", attempt+1,
			"error", err,
		)
	}
	return lastError
}

// Next dequeues the highest-priority pending event. Within a type,
// events drain in arrival order. Returns false when nothing is
// pending. A paused or closed gateway still drains — draining is how
// a paused gateway makes room to be resumed.
func (g *Gateway) Next() (Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for priority := range g.queues {
		queue := g.queues[priority]
		if len(queue) == 0 {
			continue
		}
		event := queue[0]
		g.queues[priority] = queue[1:]
		g.pending--
		if g.pending == 0 && g.state == GatewayProcessing {
			g.state = GatewayOpen
		}
		return event, true
	}
	return Event{}, false
}

// Resume reopens a paused gateway. No-op in any other state.
func (g *Gateway) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GatewayPaused {
		return
	}
	if g.pending > 0 {
		g.state = GatewayProcessing
	} else {
		g.state = GatewayOpen
	}
}

// Close moves the gateway to the terminal closed state. Pending events
// remain drainable.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GatewayClosed
}

// State returns the gateway's operating state.
func (g *Gateway) State() GatewayState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the total pending event count.
func (g *Gateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}
