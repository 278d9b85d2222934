// Package middleware provides HTTP middleware: bearer token authentication,
// request ID assignment and token-bucket rate limiting.
//
// Typical chain, outermost first:
//
//	handler = middleware.RequestID(handler)
//	handler = rateLimit.Handler(handler)
//	handler = authMW.Handler(handler)
//
// The auth middleware validates "Authorization: Bearer taskhive_..." headers
// against pkg/auth and places an *auth.AuthContext in the request context.
// Handlers read it back through middleware.UserID.
package middleware
