package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/go-authgate/exchauth/internal/core"
)

// Ensure Metrics implements Recorder interface at compile time
var _ core.Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authentication Metrics
	AuthAttemptsTotal   *prometheus.CounterVec
	AuthLoginDuration   *prometheus.HistogramVec
	AuthRejectionsTotal *prometheus.CounterVec

	// Directory Metrics
	DirectoryCallsTotal   *prometheus.CounterVec
	DirectoryCallDuration *prometheus.HistogramVec

	// Provisioning Metrics
	UsersProvisionedTotal   *prometheus.CounterVec
	ProvisionConflictsTotal prometheus.Counter

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics registered on the default registry
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) core.Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics creates all metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Authentication Metrics
		AuthAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"format", "result"}, // format: netbios, email, username, invalid; result: success, failure
		),
		AuthLoginDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_login_duration_seconds",
				Help:    "Time taken to complete an authentication attempt",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		AuthRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_rejections_total",
				Help: "Total number of rejected authentication attempts by internal reason",
			},
			[]string{"reason"}, // format_not_allowed, domain_not_allowed, directory_auth_failed, ...
		),

		// Directory Metrics
		DirectoryCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "directory_calls_total",
				Help: "Total number of directory round trips",
			},
			[]string{"strategy", "result"}, // strategy: autodiscover, static
		),
		DirectoryCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "directory_call_duration_seconds",
				Help: "Time taken for directory round trips",
				Buckets: []float64{
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
					30.0,
				},
			},
			[]string{"strategy"},
		),

		// Provisioning Metrics
		UsersProvisionedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "users_provisioned_total",
				Help: "Total number of local users created on first login",
			},
			[]string{"domain"},
		),
		ProvisionConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "user_provision_conflicts_total",
				Help: "Total number of concurrent first logins that lost the create race",
			},
		),

		// Database Query Metrics
		DatabaseQueryErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"}, // get_user, create_user, update_user, count_users
		),
	}
}
