package metrics

import (
	"time"

	"github.com/go-authgate/exchauth/internal/core"
)

// NoopMetrics is a no-operation implementation of core.Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ core.Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() core.Recorder {
	return &NoopMetrics{}
}

// Authentication - noop implementations
func (n *NoopMetrics) RecordAuthAttempt(format string, success bool, duration time.Duration) {}
func (n *NoopMetrics) RecordRejection(reason string)                                         {}
func (n *NoopMetrics) RecordDirectoryCall(strategy string, success bool, d time.Duration)    {}

// Provisioning - noop implementations
func (n *NoopMetrics) RecordUserProvisioned(domain string) {}
func (n *NoopMetrics) RecordProvisionConflict()            {}

// Database Operations - noop implementations
func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
