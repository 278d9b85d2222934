package api

import (
	"net/http"

	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/notes"
)

type noteRequest struct {
	Content   string `json:"content"`
	CompanyID *int64 `json:"company_id"`
	ProjectID *int64 `json:"project_id"`
	TaskID    *int64 `json:"task_id"`
	SubtaskID *int64 `json:"subtask_id"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Content, "content") {
		return
	}

	note, err := s.notes.Create(r.Context(), actorID, &notes.Note{
		Content:   req.Content,
		CompanyID: req.CompanyID,
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		SubtaskID: req.SubtaskID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}

	list, err := s.notes.ListForUser(r.Context(), actorID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	noteID, ok := httputil.ParsePathInt64OrError(w, r, "noteID")
	if !ok {
		return
	}

	note, err := s.notes.Get(r.Context(), actorID, noteID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	noteID, ok := httputil.ParsePathInt64OrError(w, r, "noteID")
	if !ok {
		return
	}

	var req noteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Content, "content") {
		return
	}

	if err := s.notes.Update(r.Context(), actorID, noteID, req.Content); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	noteID, ok := httputil.ParsePathInt64OrError(w, r, "noteID")
	if !ok {
		return
	}

	if err := s.notes.Delete(r.Context(), actorID, noteID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
