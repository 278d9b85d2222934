package api

import (
	"net/http"
	"time"

	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/tasks"
)

type taskRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      tasks.Status `json:"status"`
	Priority    *int         `json:"priority"`
	DueDate     *time.Time   `json:"due_date"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}

	var req taskRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		httputil.WriteValidationError(w, "invalid status")
		return
	}

	task, err := s.tasks.Create(r.Context(), actorID, projectID, &tasks.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectID")
	if !ok {
		return
	}

	list, err := s.tasks.ListByProject(r.Context(), actorID, projectID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskID")
	if !ok {
		return
	}

	task, err := s.tasks.Get(r.Context(), actorID, taskID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskID")
	if !ok {
		return
	}

	var req taskRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}
	if !req.Status.Valid() {
		httputil.WriteValidationError(w, "invalid status")
		return
	}

	err := s.tasks.Update(r.Context(), actorID, &tasks.Task{
		ID:          taskID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskID")
	if !ok {
		return
	}

	if err := s.tasks.Delete(r.Context(), actorID, taskID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleAddTaskUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskID")
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

	grant, err := s.tasks.AddUser(r.Context(), actorID, req.UserID, taskID, req.Level, req.Tier)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, grant)
}

func (s *Server) handleRemoveTaskUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	if err := s.tasks.RemoveUser(r.Context(), actorID, userID, taskID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type subtaskRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      tasks.Status `json:"status"`
	DueDate     *time.Time   `json:"due_date"`
}

func (s *Server) handleCreateSubtask(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskID")
	if !ok {
		return
	}

	var req subtaskRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		httputil.WriteValidationError(w, "invalid status")
		return
	}

	subtask, err := s.tasks.CreateSubtask(r.Context(), actorID, taskID, &tasks.Subtask{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, subtask)
}

func (s *Server) handleListSubtasks(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskID")
	if !ok {
		return
	}

	list, err := s.tasks.ListSubtasks(r.Context(), actorID, taskID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) handleGetSubtask(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	subtaskID, ok := httputil.ParsePathInt64OrError(w, r, "subtaskID")
	if !ok {
		return
	}

	subtask, err := s.tasks.GetSubtask(r.Context(), actorID, subtaskID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, subtask)
}

func (s *Server) handleUpdateSubtask(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	subtaskID, ok := httputil.ParsePathInt64OrError(w, r, "subtaskID")
	if !ok {
		return
	}

	var req subtaskRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}
	if !req.Status.Valid() {
		httputil.WriteValidationError(w, "invalid status")
		return
	}

	err := s.tasks.UpdateSubtask(r.Context(), actorID, &tasks.Subtask{
		ID:          subtaskID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleDeleteSubtask(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	subtaskID, ok := httputil.ParsePathInt64OrError(w, r, "subtaskID")
	if !ok {
		return
	}

	if err := s.tasks.DeleteSubtask(r.Context(), actorID, subtaskID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleAddSubtaskUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	subtaskID, ok := httputil.ParsePathInt64OrError(w, r, "subtaskID")
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

	grant, err := s.tasks.AddSubtaskUser(r.Context(), actorID, req.UserID, subtaskID, req.Level, req.Tier)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, grant)
}

func (s *Server) handleRemoveSubtaskUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	subtaskID, ok := httputil.ParsePathInt64OrError(w, r, "subtaskID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	if err := s.tasks.RemoveSubtaskUser(r.Context(), actorID, userID, subtaskID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
