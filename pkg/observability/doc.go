// Package observability centralizes logging, metrics, health checks and
// tracing for the service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("company_id", id).Info("Company created")
//
// Loggers travel through request contexts via WithLogger/GetLogger and pick
// up request and user IDs from pkg/contextkeys with FromContext.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.GrantMutationsTotal.WithLabelValues("project", "add").Inc()
//
// AuthzDecisionsTotal is handed to the authorization gate so every allow or
// deny decision is counted by resource kind. HTTPMetricsMiddleware instruments
// the request path and RegisterMetricsEndpoint exposes /metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
// InitOTel sets up OTLP gRPC trace and metric export when enabled; pair with
// ShutdownOTel during graceful shutdown.
package observability
