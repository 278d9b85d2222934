package api

import (
	"errors"
	"net/http"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/observability"
)

// actor returns the authenticated user's ID, writing a 401 when missing
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return 0, false
	}
	return userID, true
}

// writeDomainError maps service errors to HTTP responses. Authorization
// failures and missing resources both surface as 403 so callers cannot
// probe for existence.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrPermissionDenied):
		s.recordDenial(r)
		httputil.WriteForbidden(w, "permission denied")
	case errors.Is(err, authz.ErrNotAssociated):
		httputil.WriteForbidden(w, "permission denied")
	case errors.Is(err, authz.ErrInvalidScope):
		httputil.WriteValidationError(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("Request failed")
		httputil.WriteInternalError(w, errors.New("internal error"))
	}
}

// recordDenial writes denied authorization attempts to the audit trail
func (s *Server) recordDenial(r *http.Request) {
	if s.recorder == nil {
		return
	}
	actorID, ok := middleware.UserID(r)
	if !ok {
		return
	}
	s.recorder.AccessDenied(r.Context(), actorID, r.Method+" "+r.URL.Path)
}
