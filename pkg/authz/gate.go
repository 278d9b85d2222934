package authz

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gate is the single enforcement point for authorization decisions. Every
// denial surfaces as the same ErrPermissionDenied regardless of cause.
type Gate struct {
	resolver  *Resolver
	decisions *prometheus.CounterVec
}

// NewGate creates an authorization gate. decisions may be nil; when set it
// must carry "kind" and "outcome" labels.
func NewGate(resolver *Resolver, decisions *prometheus.CounterVec) *Gate {
	return &Gate{resolver: resolver, decisions: decisions}
}

// Resolver exposes the gate's resolver for callers that need the effective
// grant itself rather than a yes/no decision
func (g *Gate) Resolver() *Resolver {
	return g.resolver
}

// Authorize resolves the user's effective grant on the resource and checks
// it against the requirement. Returns ErrPermissionDenied when no path
// admits access, when the resource does not exist, or when the resolved
// level does not satisfy the requirement.
func (g *Gate) Authorize(ctx context.Context, userID int64, kind ResourceKind, id int64, req Requirement) error {
	eff, err := g.resolver.Resolve(ctx, userID, kind, id)
	if err != nil {
		return fmt.Errorf("failed to resolve access: %w", err)
	}

	if eff == nil || !req.Satisfied(eff.RoleLevel) {
		g.count(kind, "denied")
		return ErrPermissionDenied
	}

	g.count(kind, "allowed")
	return nil
}

func (g *Gate) count(kind ResourceKind, outcome string) {
	if g.decisions == nil {
		return
	}
	g.decisions.WithLabelValues(string(kind), outcome).Inc()
}
