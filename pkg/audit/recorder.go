package audit

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/contextkeys"
	"github.com/taskhive/taskhive/pkg/observability"
)

// Recorder writes grant mutation events to the audit store. It satisfies the
// authz grant service's audit hook: failures are logged, never surfaced, so
// an audit outage cannot block mutations.
type Recorder struct {
	store     *Store
	logger    *observability.Logger
	mutations *prometheus.CounterVec
}

// NewRecorder creates a new audit recorder
func NewRecorder(store *Store, logger *observability.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// SetMutationCounter attaches a counter incremented per grant mutation,
// labeled by resource kind and action
func (r *Recorder) SetMutationCounter(c *prometheus.CounterVec) {
	r.mutations = c
}

var _ authz.Auditor = (*Recorder)(nil)

// GrantAdded records a grant or membership addition
func (r *Recorder) GrantAdded(ctx context.Context, actorID, userID int64, kind authz.ResourceKind, resourceID int64, level int) {
	eventType := EventTypeGrantAdded
	if kind == authz.KindCompany {
		eventType = EventTypeMemberAdded
	}
	if r.mutations != nil {
		r.mutations.WithLabelValues(string(kind), "add").Inc()
	}
	r.record(ctx, &Event{
		EventType:    eventType,
		ActorID:      &actorID,
		TargetUserID: &userID,
		ResourceKind: string(kind),
		ResourceID:   &resourceID,
		Level:        &level,
	})
}

// GrantRemoved records a grant or membership removal
func (r *Recorder) GrantRemoved(ctx context.Context, actorID, userID int64, kind authz.ResourceKind, resourceID int64) {
	eventType := EventTypeGrantRemoved
	if kind == authz.KindCompany {
		eventType = EventTypeMemberRemoved
	}
	if r.mutations != nil {
		r.mutations.WithLabelValues(string(kind), "remove").Inc()
	}
	r.record(ctx, &Event{
		EventType:    eventType,
		ActorID:      &actorID,
		TargetUserID: &userID,
		ResourceKind: string(kind),
		ResourceID:   &resourceID,
	})
}

// AccessDenied records a denied authorization attempt. The message carries
// the requested method and path.
func (r *Recorder) AccessDenied(ctx context.Context, actorID int64, message string) {
	r.record(ctx, &Event{
		EventType: EventTypeAccessDenied,
		ActorID:   &actorID,
		Message:   message,
	})
}

// TokenCreated records an API token creation
func (r *Recorder) TokenCreated(ctx context.Context, userID, tokenID int64) {
	r.record(ctx, &Event{
		EventType:    EventTypeTokenCreated,
		ActorID:      &userID,
		ResourceKind: "token",
		ResourceID:   &tokenID,
	})
}

// TokenRevoked records an API token revocation
func (r *Recorder) TokenRevoked(ctx context.Context, userID, tokenID int64) {
	r.record(ctx, &Event{
		EventType:    EventTypeTokenRevoked,
		ActorID:      &userID,
		ResourceKind: "token",
		ResourceID:   &tokenID,
	})
}

// InvitationCreated records a company invitation being issued
func (r *Recorder) InvitationCreated(ctx context.Context, actorID, companyID, invitationID int64, level int) {
	r.record(ctx, &Event{
		EventType:    EventTypeInvitationCreated,
		ActorID:      &actorID,
		ResourceKind: string(authz.KindCompany),
		ResourceID:   &companyID,
		Level:        &level,
		Message:      fmt.Sprintf("invitation %d", invitationID),
	})
}

// InvitationAccepted records a company invitation being redeemed
func (r *Recorder) InvitationAccepted(ctx context.Context, userID, companyID int64, level int) {
	r.record(ctx, &Event{
		EventType:    EventTypeInvitationAccepted,
		ActorID:      &userID,
		TargetUserID: &userID,
		ResourceKind: string(authz.KindCompany),
		ResourceID:   &companyID,
		Level:        &level,
	})
}

func (r *Recorder) record(ctx context.Context, event *Event) {
	event.RequestID = contextkeys.GetRequestID(ctx)
	if err := r.store.Record(ctx, event); err != nil {
		r.logger.WithError(err).
			WithField("event_type", string(event.EventType)).
			Error("Failed to record audit event")
	}
}
