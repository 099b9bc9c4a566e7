package store

import (
	"time"

	"github.com/go-authgate/exchauth/internal/models"
)

// AuditLogFilters contains filter criteria for querying audit logs
type AuditLogFilters struct {
	EventType     models.EventType     `json:"event_type,omitempty"`
	ActorUsername string               `json:"actor_username,omitempty"`
	Domain        string               `json:"domain,omitempty"`
	Severity      models.EventSeverity `json:"severity,omitempty"`
	Success       *bool                `json:"success,omitempty"`
	StartTime     time.Time            `json:"start_time,omitzero"`
	EndTime       time.Time            `json:"end_time,omitzero"`
}

// AuditLogStats contains statistics about audit logs
type AuditLogStats struct {
	TotalEvents  int64                      `json:"total_events"`
	EventsByType map[models.EventType]int64 `json:"events_by_type"`
	SuccessCount int64                      `json:"success_count"`
	FailureCount int64                      `json:"failure_count"`
}
