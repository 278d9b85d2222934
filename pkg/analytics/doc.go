// Package analytics computes workspace-wide statistics and refreshes the
// business metrics gauges from them.
package analytics
