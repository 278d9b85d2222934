// Package api exposes the HTTP surface: user registration and login, API
// token management, and CRUD plus access management for companies, projects,
// tasks, subtasks and notes under /api/v1.
//
// Request handling order is fixed: input validation first, then the
// authorization gate inside the domain service. Denials and nonexistent
// resources both answer 403 so the API never confirms whether a resource
// exists to a caller who cannot see it.
package api
