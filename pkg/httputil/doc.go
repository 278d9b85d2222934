// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response helpers
//
//	httputil.WriteSuccess(w, company)
//	httputil.WriteCreated(w, task)
//	httputil.WriteNoContent(w)
//	httputil.WriteForbidden(w, "permission denied")
//	httputil.WriteValidationError(w, "title is required")
//
// # Request parsing
//
//	var req createTaskRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//
//	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskID")
//	limit, err := httputil.ParseQueryInt(r, "limit", 100)
//
// # Validation
//
//	if !httputil.RequireNonEmpty(w, req.Title, "title") {
//		return
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware,
//		httputil.CORSMiddleware(origins),
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related packages
//
//   - pkg/middleware: authentication, request IDs and rate limiting
package httputil
