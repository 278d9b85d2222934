package companies

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
)

// invitationTTL is how long an invitation stays redeemable
const invitationTTL = 7 * 24 * time.Hour

var (
	// ErrInvitationNotFound is returned for unknown, revoked or already
	// consumed invitation tokens
	ErrInvitationNotFound = errors.New("invitation not found")
	// ErrInvitationAccepted is returned when redeeming a token twice
	ErrInvitationAccepted = errors.New("invitation already accepted")
	// ErrInvitationExpired is returned when the token's TTL has passed
	ErrInvitationExpired = errors.New("invitation expired")
)

// Invite creates (or refreshes) an email invitation into a company. The
// actor needs member management rights. A zero level falls back to the
// default grant level.
func (s *Service) Invite(ctx context.Context, actorID, companyID int64, email string, level int) (*Invitation, error) {
	if err := s.gate.Authorize(ctx, actorID, authz.KindCompany, companyID, authz.MemberManage); err != nil {
		return nil, err
	}

	if level == 0 {
		level = authz.DefaultGrantLevel
	}

	token, err := generateInviteToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	inv := &Invitation{
		CompanyID: companyID,
		Email:     email,
		RoleLevel: level,
		Token:     token,
		InvitedBy: actorID,
		InvitedAt: time.Now(),
		ExpiresAt: time.Now().Add(invitationTTL),
	}

	query := `
		INSERT INTO company_invitations (company_id, email, role_level, token, invited_by, invited_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id, email) DO UPDATE
		SET token = EXCLUDED.token, role_level = EXCLUDED.role_level,
		    invited_at = EXCLUDED.invited_at, expires_at = EXCLUDED.expires_at
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		inv.CompanyID, inv.Email, inv.RoleLevel, inv.Token, inv.InvitedBy, inv.InvitedAt, inv.ExpiresAt,
	).Scan(&inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	return inv, nil
}

// Accept redeems an invitation token and enrolls the user at the invited
// level, marking the invitation accepted in the same transaction
func (s *Service) Accept(ctx context.Context, token string, userID int64) (*authz.CompanyMembership, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id, companyID int64
	var level int
	var expiresAt time.Time
	var acceptedAt sql.NullTime

	err = tx.QueryRowContext(ctx, `
		SELECT id, company_id, role_level, expires_at, accepted_at
		FROM company_invitations
		WHERE token = $1
	`, token).Scan(&id, &companyID, &level, &expiresAt, &acceptedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	if acceptedAt.Valid {
		return nil, ErrInvitationAccepted
	}
	if time.Now().After(expiresAt) {
		return nil, ErrInvitationExpired
	}

	store := authz.NewStore(s.db)
	existing, err := store.GetMembership(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}

	membership := existing
	if membership == nil {
		role, err := store.GetRoleByLevel(ctx, level)
		if err != nil {
			return nil, err
		}
		membership = &authz.CompanyMembership{
			UserID:    userID,
			CompanyID: companyID,
			RoleID:    role.ID,
			Level:     role.Level,
			Tier:      authz.DefaultGrantTier,
		}
		inserted, err := store.InsertMembership(ctx, tx, membership)
		if err != nil {
			return nil, err
		}
		if !inserted {
			// enrolled concurrently since the check above
			membership, err = store.GetMembership(ctx, userID, companyID)
			if err != nil {
				return nil, err
			}
			if membership == nil {
				return nil, fmt.Errorf("failed to enroll member: membership changed concurrently")
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE company_invitations SET accepted_at = $1, accepted_by = $2 WHERE id = $3`,
		time.Now(), userID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update invitation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return membership, nil
}

// Revoke deletes a pending invitation
func (s *Service) Revoke(ctx context.Context, actorID, companyID, invitationID int64) error {
	if err := s.gate.Authorize(ctx, actorID, authz.KindCompany, companyID, authz.MemberManage); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM company_invitations WHERE id = $1 AND company_id = $2 AND accepted_at IS NULL`,
		invitationID, companyID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

// ListInvitations lists a company's pending invitations
func (s *Service) ListInvitations(ctx context.Context, actorID, companyID int64) ([]Invitation, error) {
	if err := s.gate.Authorize(ctx, actorID, authz.KindCompany, companyID, authz.MemberManage); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, email, role_level, token, invited_by, invited_at, expires_at
		FROM company_invitations
		WHERE company_id = $1 AND accepted_at IS NULL
		ORDER BY invited_at DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []Invitation
	for rows.Next() {
		var inv Invitation
		err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.Email, &inv.RoleLevel,
			&inv.Token, &inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// CleanupExpiredInvitations removes unaccepted invitations past their
// expiry. Wired to the cron scheduler.
func (s *Service) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM company_invitations WHERE expires_at < $1 AND accepted_at IS NULL`,
		time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}
	return result.RowsAffected()
}

func generateInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
