// Package config loads application configuration from TASKHIVE_* environment
// variables: HTTP server settings, PostgreSQL connection parameters (primary
// plus optional read replicas) and observability options (log level, metrics,
// OpenTelemetry export).
package config
