package metrics

import "time"

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

func result(success bool) string {
	if success {
		return resultSuccess
	}
	return resultFailure
}

// RecordAuthAttempt records authentication attempt
func (m *Metrics) RecordAuthAttempt(format string, success bool, duration time.Duration) {
	m.AuthAttemptsTotal.WithLabelValues(format, result(success)).Inc()
	m.AuthLoginDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordRejection records the internal reason of a denied login
func (m *Metrics) RecordRejection(reason string) {
	m.AuthRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordDirectoryCall records one directory round trip
func (m *Metrics) RecordDirectoryCall(strategy string, success bool, duration time.Duration) {
	m.DirectoryCallsTotal.WithLabelValues(strategy, result(success)).Inc()
	m.DirectoryCallDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordUserProvisioned records a user created on first login
func (m *Metrics) RecordUserProvisioned(domain string) {
	m.UsersProvisionedTotal.WithLabelValues(domain).Inc()
}

// RecordProvisionConflict records a lost create race
func (m *Metrics) RecordProvisionConflict() {
	m.ProvisionConflictsTotal.Inc()
}

// RecordDatabaseQueryError records a database query error
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}

// String formats the metrics for logging
func (m *Metrics) String() string {
	return "Metrics{Auth: enabled, Directory: enabled, Provisioning: enabled}"
}
