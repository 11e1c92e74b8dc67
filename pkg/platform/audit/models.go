package audit

import (
	"context"
	"time"
)

// EventType names a wizard action worth keeping a trail of.
type EventType string

const (
	EventStepCompleted   EventType = "step_completed"
	EventStepRejected    EventType = "step_rejected"
	EventChildFolded     EventType = "child_folded"
	EventChildDeleted    EventType = "child_deleted"
	EventFlowDiscarded   EventType = "flow_discarded"
	EventImportStaged    EventType = "import_staged"
	EventImportConfirmed EventType = "import_confirmed"
	EventReturnSubmitted EventType = "return_submitted"
)

// Event is emitted by the wizard engine and the return flows. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Flow      string
	Step      string
	// Session is the browser session the wizard state belongs to.
	Session string
	// Detail is free text: the destination of a completed step, the error
	// summary of a rejected one, or a submission reference.
	Detail    string
	RequestID string
}

// Publisher accepts audit events. Implementations must not block the request
// path for long.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySession(ctx context.Context, session string) ([]Event, error)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }
