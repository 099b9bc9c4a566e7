package store

import (
	"context"

	"github.com/go-authgate/exchauth/internal/models"

	"gorm.io/gorm"
)

// Audit log operations

// CreateAuditLogBatch inserts logs in one statement.
func (s *Store) CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&logs).Error
}

// ListAuditLogs returns one page of audit logs, newest first.
func (s *Store) ListAuditLogs(
	ctx context.Context,
	params PaginationParams,
	filters AuditLogFilters,
) ([]models.AuditLog, PaginationResult, error) {
	query := applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), filters)
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("action LIKE ? OR actor_username LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var logs []models.AuditLog
	offset := (params.Page - 1) * params.PageSize
	if err := query.Order("event_time DESC").
		Offset(offset).
		Limit(params.PageSize).
		Find(&logs).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	return logs, CalculatePagination(total, params.Page, params.PageSize), nil
}

// GetAuditLogStats summarizes audit logs matching filters.
func (s *Store) GetAuditLogStats(ctx context.Context, filters AuditLogFilters) (AuditLogStats, error) {
	stats := AuditLogStats{EventsByType: make(map[models.EventType]int64)}
	base := func() *gorm.DB {
		return applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), filters)
	}

	if err := base().Count(&stats.TotalEvents).Error; err != nil {
		return stats, err
	}
	if err := base().Where("success = ?", true).Count(&stats.SuccessCount).Error; err != nil {
		return stats, err
	}
	stats.FailureCount = stats.TotalEvents - stats.SuccessCount

	var rows []struct {
		EventType models.EventType
		Count     int64
	}
	if err := base().Select("event_type, COUNT(*) AS count").
		Group("event_type").
		Scan(&rows).Error; err != nil {
		return stats, err
	}
	for _, r := range rows {
		stats.EventsByType[r.EventType] = r.Count
	}
	return stats, nil
}

func applyAuditFilters(query *gorm.DB, f AuditLogFilters) *gorm.DB {
	if f.EventType != "" {
		query = query.Where("event_type = ?", f.EventType)
	}
	if f.ActorUsername != "" {
		query = query.Where("actor_username = ?", f.ActorUsername)
	}
	if f.Domain != "" {
		query = query.Where("domain = ?", f.Domain)
	}
	if f.Severity != "" {
		query = query.Where("severity = ?", f.Severity)
	}
	if f.Success != nil {
		query = query.Where("success = ?", *f.Success)
	}
	if !f.StartTime.IsZero() {
		query = query.Where("event_time >= ?", f.StartTime)
	}
	if !f.EndTime.IsZero() {
		query = query.Where("event_time <= ?", f.EndTime)
	}
	return query
}
