// Package auth provides API token management.
//
// Tokens are random 256-bit values carrying a fixed prefix, handed to the
// caller exactly once at creation; only the SHA256 hash is stored. Validation
// looks up the hash, rejects revoked and expired tokens, and touches
// last_used_at.
//
// Token generation:
//
//	manager := auth.NewTokenManager(db)
//	record, token, err := manager.CreateToken(ctx, userID, "CI pipeline", &expiry)
//	// token: taskhive_xxx (display once, never stored)
//
// Token validation:
//
//	record, err := manager.ValidateToken(ctx, bearer)
//	if err != nil {
//		// auth.ErrInvalidToken for unknown, revoked or expired tokens
//	}
//
// The HTTP middleware in pkg/middleware wraps ValidateToken and places an
// AuthContext in the request context.
package auth
