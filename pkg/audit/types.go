package audit

import "time"

// EventType categorizes an audit log entry
type EventType string

const (
	// Authentication events
	EventTypeTokenCreated EventType = "auth.token_created"
	EventTypeTokenRevoked EventType = "auth.token_revoked"

	// Authorization events
	EventTypeGrantAdded    EventType = "authz.grant_added"
	EventTypeGrantRemoved  EventType = "authz.grant_removed"
	EventTypeMemberAdded   EventType = "authz.member_added"
	EventTypeMemberRemoved EventType = "authz.member_removed"
	EventTypeAccessDenied  EventType = "authz.access_denied"

	// Invitation events
	EventTypeInvitationCreated  EventType = "invitation.created"
	EventTypeInvitationAccepted EventType = "invitation.accepted"
)

// Event is a single audit log entry. ActorID is the user who performed the
// action; TargetUserID the user affected by it, when any.
type Event struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	EventType    EventType `json:"event_type"`
	ActorID      *int64    `json:"actor_id,omitempty"`
	TargetUserID *int64    `json:"target_user_id,omitempty"`
	ResourceKind string    `json:"resource_kind,omitempty"`
	ResourceID   *int64    `json:"resource_id,omitempty"`
	Level        *int      `json:"level,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// Filter narrows an audit log search. Zero values are ignored.
type Filter struct {
	EventTypes   []EventType
	ActorID      *int64
	TargetUserID *int64
	ResourceKind string
	ResourceID   *int64
	Start        *time.Time
	End          *time.Time

	Limit  int
	Offset int
}
