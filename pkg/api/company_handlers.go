package api

import (
	"errors"
	"net/http"

	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/companies"
	"github.com/taskhive/taskhive/pkg/httputil"
)

type companyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}

	var req companyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	company, err := s.companies.Create(r.Context(), actorID, req.Name, req.Description)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, company)
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}

	list, err := s.companies.ListForUser(r.Context(), actorID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}

	company, err := s.companies.Get(r.Context(), actorID, companyID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, company)
}

func (s *Server) handleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}

	var req companyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	if err := s.companies.Update(r.Context(), actorID, companyID, req.Name, req.Description); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}

	if err := s.companies.Delete(r.Context(), actorID, companyID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type memberRequest struct {
	UserID int64            `json:"user_id"`
	Level  int              `json:"level"`
	Tier   authz.AccessTier `json:"tier"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}

	var req memberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequirePositive(w, req.UserID, "user_id") {
		return
	}

	membership, err := s.companies.AddMember(r.Context(), actorID, req.UserID, companyID, req.Level, req.Tier)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, membership)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}

	members, err := s.companies.ListMembers(r.Context(), actorID, companyID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	if err := s.companies.RemoveMember(r.Context(), actorID, userID, companyID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type inviteRequest struct {
	Email string `json:"email"`
	Level int    `json:"level"`
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}

	var req inviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	inv, err := s.companies.Invite(r.Context(), actorID, companyID, req.Email, req.Level)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if s.recorder != nil {
		s.recorder.InvitationCreated(r.Context(), actorID, companyID, inv.ID, inv.RoleLevel)
	}
	// The token is returned once, to the inviter, and never listed again
	httputil.WriteCreated(w, map[string]interface{}{
		"invitation": inv,
		"token":      inv.Token,
	})
}

func (s *Server) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}

	invitations, err := s.companies.ListInvitations(r.Context(), actorID, companyID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, invitations)
}

func (s *Server) handleRevokeInvitation(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}
	invitationID, ok := httputil.ParsePathInt64OrError(w, r, "invitationID")
	if !ok {
		return
	}

	err := s.companies.Revoke(r.Context(), actorID, companyID, invitationID)
	if errors.Is(err, companies.ErrInvitationNotFound) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}

	var req acceptInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") {
		return
	}

	membership, err := s.companies.Accept(r.Context(), req.Token, actorID)
	switch {
	case errors.Is(err, companies.ErrInvitationNotFound):
		httputil.WriteNotFoundError(w, err.Error())
		return
	case errors.Is(err, companies.ErrInvitationAccepted),
		errors.Is(err, companies.ErrInvitationExpired):
		httputil.WriteConflict(w, err.Error())
		return
	case err != nil:
		s.writeDomainError(w, r, err)
		return
	}
	if s.recorder != nil {
		s.recorder.InvitationAccepted(r.Context(), actorID, membership.CompanyID, membership.Level)
	}
	httputil.WriteSuccess(w, membership)
}

func (s *Server) handleCompanyAudit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}

	// Reading the audit trail needs the same privilege as managing members
	if err := s.companies.Gate().Authorize(r.Context(), actorID, authz.KindCompany, companyID, authz.MemberManage); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	events, err := s.audit.Search(r.Context(), audit.Filter{
		ResourceKind: string(authz.KindCompany),
		ResourceID:   &companyID,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
