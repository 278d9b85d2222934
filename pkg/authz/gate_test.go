package authz

import (
	"context"
	"errors"
	"testing"
)

func TestGate_DenialIsOpaque(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	gate := NewGate(newResolver(db), nil)

	user := createUser(t, db, "manager")
	company := createCompany(t, db, "acme")
	project := createProject(t, db, company, "rollout")
	addMembership(t, db, user, company, LevelManager, TierLimited)

	// Insufficient level and missing resource produce the identical error
	errInsufficient := gate.Authorize(ctx, user, KindProject, project, OwnerOnly())
	errMissing := gate.Authorize(ctx, user, KindProject, 9999, OwnerOnly())

	if !errors.Is(errInsufficient, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for insufficient level, got %v", errInsufficient)
	}
	if !errors.Is(errMissing, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for missing resource, got %v", errMissing)
	}
	if errInsufficient.Error() != errMissing.Error() {
		t.Errorf("Denial messages differ: %q vs %q", errInsufficient, errMissing)
	}
}

func TestGate_Requirements(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	gate := NewGate(newResolver(db), nil)

	owner := createUser(t, db, "owner")
	admin := createUser(t, db, "admin")
	company := createCompany(t, db, "acme")
	addMembership(t, db, owner, company, LevelOwner, TierFull)
	addMembership(t, db, admin, company, LevelAdministrator, TierLimited)

	if err := gate.Authorize(ctx, owner, KindCompany, company, OwnerOnly()); err != nil {
		t.Errorf("Expected owner to pass OwnerOnly, got %v", err)
	}
	if err := gate.Authorize(ctx, admin, KindCompany, company, OwnerOnly()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected admin to fail OwnerOnly, got %v", err)
	}

	if err := gate.Authorize(ctx, admin, KindCompany, company, MemberManage); err != nil {
		t.Errorf("Expected admin to pass MemberManage, got %v", err)
	}
	if err := gate.Authorize(ctx, admin, KindCompany, company, AtMost(LevelGuest)); err != nil {
		t.Errorf("Expected admin to pass AtMost(guest), got %v", err)
	}
}

func TestRequirement_Satisfied(t *testing.T) {
	tests := []struct {
		name  string
		req   Requirement
		level int
		want  bool
	}{
		{"at-most passes equal", AtMost(LevelManager), LevelManager, true},
		{"at-most passes stronger", AtMost(LevelManager), LevelOwner, true},
		{"at-most rejects weaker", AtMost(LevelManager), LevelUser, false},
		{"owner-only passes owner", OwnerOnly(), LevelOwner, true},
		{"owner-only rejects admin", OwnerOnly(), LevelAdministrator, false},
		{"owner-only rejects guest", OwnerOnly(), LevelGuest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Satisfied(tt.level); got != tt.want {
				t.Errorf("Satisfied(%d) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}
