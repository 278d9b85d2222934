package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/companies"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/notes"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/projects"
	"github.com/taskhive/taskhive/pkg/tasks"
	"github.com/taskhive/taskhive/pkg/users"
)

// Server wires the HTTP API: routing, middleware and handlers over the
// domain services
type Server struct {
	router      *mux.Router
	logger      *observability.Logger
	corsOrigins []string

	users     *users.Store
	companies *companies.Service
	projects  *projects.Service
	tasks     *tasks.Service
	notes     *notes.Service
	tokens    *auth.TokenManager
	audit     *audit.Store
	recorder  *audit.Recorder
	metrics   *observability.Metrics
}

// Deps carries the services the server exposes
type Deps struct {
	Logger    *observability.Logger
	Users     *users.Store
	Companies *companies.Service
	Projects  *projects.Service
	Tasks     *tasks.Service
	Notes     *notes.Service
	Tokens    *auth.TokenManager
	Audit     *audit.Store
	Recorder  *audit.Recorder
	Metrics   *observability.Metrics

	// CORSOrigins lists the origins allowed to call the API. Empty means
	// any origin.
	CORSOrigins []string
}

// NewServer creates the API server and sets up its routes
func NewServer(deps Deps) *Server {
	corsOrigins := deps.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	s := &Server{
		router:      mux.NewRouter(),
		logger:      deps.Logger,
		corsOrigins: corsOrigins,
		users:       deps.Users,
		companies:   deps.Companies,
		projects:    deps.Projects,
		tasks:       deps.Tasks,
		notes:       deps.Notes,
		tokens:      deps.Tokens,
		audit:       deps.Audit,
		recorder:    deps.Recorder,
		metrics:     deps.Metrics,
	}
	s.setupRoutes()
	return s
}

// Handler returns the server's root handler, instrumented for tracing
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "taskhive-api")
}

// Router returns the underlying router, for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// Request bodies have no business being large; the biggest payload is a note
const maxRequestBody = 1 << 20

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RecoveryMiddleware)
	s.router.Use(middleware.RequestID)
	s.router.Use(httputil.CORSMiddleware(s.corsOrigins))
	s.router.Use(httputil.ContentTypeMiddleware)
	s.router.Use(httputil.MaxBytesMiddleware(maxRequestBody))
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	rateLimit := middleware.NewRateLimitMiddleware()
	authMW := middleware.NewAuthMiddleware(s.tokens, false)

	// Unauthenticated endpoints: registration and login
	public := s.router.PathPrefix("/api/v1").Subrouter()
	public.Use(rateLimit.Handler)
	public.HandleFunc("/users", s.handleRegister).Methods("POST")
	public.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	// Everything else requires a bearer token
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Handler)
	api.Use(rateLimit.Handler)

	api.HandleFunc("/users/me", s.handleCurrentUser).Methods("GET")

	api.HandleFunc("/tokens", s.handleCreateToken).Methods("POST")
	api.HandleFunc("/tokens", s.handleListTokens).Methods("GET")
	api.HandleFunc("/tokens/{tokenID}", s.handleRevokeToken).Methods("DELETE")

	api.HandleFunc("/companies", s.handleCreateCompany).Methods("POST")
	api.HandleFunc("/companies", s.handleListCompanies).Methods("GET")
	api.HandleFunc("/companies/{companyID}", s.handleGetCompany).Methods("GET")
	api.HandleFunc("/companies/{companyID}", s.handleUpdateCompany).Methods("PUT")
	api.HandleFunc("/companies/{companyID}", s.handleDeleteCompany).Methods("DELETE")

	api.HandleFunc("/companies/{companyID}/members", s.handleAddMember).Methods("POST")
	api.HandleFunc("/companies/{companyID}/members", s.handleListMembers).Methods("GET")
	api.HandleFunc("/companies/{companyID}/members/{userID}", s.handleRemoveMember).Methods("DELETE")

	api.HandleFunc("/companies/{companyID}/invitations", s.handleInvite).Methods("POST")
	api.HandleFunc("/companies/{companyID}/invitations", s.handleListInvitations).Methods("GET")
	api.HandleFunc("/companies/{companyID}/invitations/{invitationID}", s.handleRevokeInvitation).Methods("DELETE")
	api.HandleFunc("/invitations/accept", s.handleAcceptInvitation).Methods("POST")

	api.HandleFunc("/companies/{companyID}/audit", s.handleCompanyAudit).Methods("GET")

	api.HandleFunc("/companies/{companyID}/projects", s.handleCreateProject).Methods("POST")
	api.HandleFunc("/projects", s.handleListProjects).Methods("GET")
	api.HandleFunc("/projects/{projectID}", s.handleGetProject).Methods("GET")
	api.HandleFunc("/projects/{projectID}", s.handleUpdateProject).Methods("PUT")
	api.HandleFunc("/projects/{projectID}", s.handleDeleteProject).Methods("DELETE")
	api.HandleFunc("/projects/{projectID}/users", s.handleAddProjectUser).Methods("POST")
	api.HandleFunc("/projects/{projectID}/users/{userID}", s.handleRemoveProjectUser).Methods("DELETE")

	api.HandleFunc("/projects/{projectID}/tasks", s.handleCreateTask).Methods("POST")
	api.HandleFunc("/projects/{projectID}/tasks", s.handleListTasks).Methods("GET")
	api.HandleFunc("/tasks/{taskID}", s.handleGetTask).Methods("GET")
	api.HandleFunc("/tasks/{taskID}", s.handleUpdateTask).Methods("PUT")
	api.HandleFunc("/tasks/{taskID}", s.handleDeleteTask).Methods("DELETE")
	api.HandleFunc("/tasks/{taskID}/users", s.handleAddTaskUser).Methods("POST")
	api.HandleFunc("/tasks/{taskID}/users/{userID}", s.handleRemoveTaskUser).Methods("DELETE")

	api.HandleFunc("/tasks/{taskID}/subtasks", s.handleCreateSubtask).Methods("POST")
	api.HandleFunc("/tasks/{taskID}/subtasks", s.handleListSubtasks).Methods("GET")
	api.HandleFunc("/subtasks/{subtaskID}", s.handleGetSubtask).Methods("GET")
	api.HandleFunc("/subtasks/{subtaskID}", s.handleUpdateSubtask).Methods("PUT")
	api.HandleFunc("/subtasks/{subtaskID}", s.handleDeleteSubtask).Methods("DELETE")
	api.HandleFunc("/subtasks/{subtaskID}/users", s.handleAddSubtaskUser).Methods("POST")
	api.HandleFunc("/subtasks/{subtaskID}/users/{userID}", s.handleRemoveSubtaskUser).Methods("DELETE")

	api.HandleFunc("/notes", s.handleCreateNote).Methods("POST")
	api.HandleFunc("/notes", s.handleListNotes).Methods("GET")
	api.HandleFunc("/notes/{noteID}", s.handleGetNote).Methods("GET")
	api.HandleFunc("/notes/{noteID}", s.handleUpdateNote).Methods("PUT")
	api.HandleFunc("/notes/{noteID}", s.handleDeleteNote).Methods("DELETE")
}
