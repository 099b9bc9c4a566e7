package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authentication
	RecordAuthAttempt(format string, success bool, duration time.Duration)
	RecordRejection(reason string)
	RecordDirectoryCall(strategy string, success bool, duration time.Duration)

	// Provisioning
	RecordUserProvisioned(domain string)
	RecordProvisionConflict()

	// Database Operations
	RecordDatabaseQueryError(operation string)
}
