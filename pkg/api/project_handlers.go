package api

import (
	"net/http"

	"github.com/taskhive/taskhive/pkg/httputil"
)

type projectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "companyID")
	if !ok {
		return
	}

	var req projectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	project, err := s.projects.Create(r.Context(), actorID, companyID, req.Title, req.Description, req.Color)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}

	list, err := s.projects.ListForUser(r.Context(), actorID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}

	project, err := s.projects.Get(r.Context(), actorID, projectID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}

	var req projectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	if err := s.projects.Update(r.Context(), actorID, projectID, req.Title, req.Description, req.Color); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}

	if err := s.projects.Delete(r.Context(), actorID, projectID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleAddProjectUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
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

	grant, err := s.projects.AddUser(r.Context(), actorID, req.UserID, projectID, req.Level, req.Tier)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, grant)
}

func (s *Server) handleRemoveProjectUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	if err := s.projects.RemoveUser(r.Context(), actorID, userID, projectID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
