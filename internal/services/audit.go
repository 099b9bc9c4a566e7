package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/store"
)

const auditBatchSize = 100

// AuditStore persists and queries audit logs.
type AuditStore interface {
	CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error
	ListAuditLogs(
		ctx context.Context,
		params store.PaginationParams,
		filters store.AuditLogFilters,
	) ([]models.AuditLog, store.PaginationResult, error)
	GetAuditLogStats(ctx context.Context, filters store.AuditLogFilters) (store.AuditLogStats, error)
}

// AuditLogEntry represents the data needed to create an audit log entry
type AuditLogEntry struct {
	EventType     models.EventType
	Severity      models.EventSeverity
	ActorUserID   string
	ActorUsername string
	Domain        string
	Action        string
	Details       models.AuditDetails
	Success       bool
	Reason        string
}

// AuditService handles audit logging operations
type AuditService struct {
	store      AuditStore
	enabled    bool
	bufferSize int
	logger     logrus.FieldLogger

	// Async logging channel
	logChan chan *models.AuditLog

	// Batch buffer
	batchBuffer []*models.AuditLog
	batchMutex  sync.Mutex
	batchTicker *time.Ticker

	// Graceful shutdown
	wg           sync.WaitGroup
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewAuditService creates a new audit service. A nil store disables it.
func NewAuditService(s AuditStore, enabled bool, bufferSize int, logger logrus.FieldLogger) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1000 // Default buffer size
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	enabled = enabled && s != nil

	service := &AuditService{
		store:       s,
		enabled:     enabled,
		bufferSize:  bufferSize,
		logger:      logger,
		logChan:     make(chan *models.AuditLog, bufferSize),
		batchBuffer: make([]*models.AuditLog, 0, auditBatchSize),
		shutdownCh:  make(chan struct{}),
	}

	if enabled {
		service.batchTicker = time.NewTicker(1 * time.Second)
		service.wg.Add(1)
		go service.worker()
		logger.WithField("buffer_size", bufferSize).Info("[Audit] service started")
	} else {
		logger.Debug("[Audit] service is disabled")
	}

	return service
}

// worker is the background goroutine that processes audit logs
func (s *AuditService) worker() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.logChan:
			s.addToBatch(entry)

		case <-s.batchTicker.C:
			s.flushBatch()

		case <-s.shutdownCh:
			// Drain whatever was queued before shutdown
			for {
				select {
				case entry := <-s.logChan:
					s.addToBatch(entry)
				default:
					s.flushBatch()
					return
				}
			}
		}
	}
}

func (s *AuditService) addToBatch(entry *models.AuditLog) {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()

	s.batchBuffer = append(s.batchBuffer, entry)
	if len(s.batchBuffer) >= auditBatchSize {
		s.flushBatchUnsafe()
	}
}

// flushBatch flushes the batch buffer to the database (thread-safe)
func (s *AuditService) flushBatch() {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()
	s.flushBatchUnsafe()
}

// flushBatchUnsafe flushes the batch buffer without locking (caller must hold lock)
func (s *AuditService) flushBatchUnsafe() {
	if len(s.batchBuffer) == 0 {
		return
	}

	toWrite := make([]*models.AuditLog, len(s.batchBuffer))
	copy(toWrite, s.batchBuffer)
	s.batchBuffer = s.batchBuffer[:0]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.CreateAuditLogBatch(ctx, toWrite); err != nil {
		s.logger.WithError(err).WithField("count", len(toWrite)).
			Error("[Audit] failed to write audit log batch")
	}
}

func (s *AuditService) buildLog(entry AuditLogEntry) *models.AuditLog {
	now := time.Now()
	return &models.AuditLog{
		ID:            uuid.New().String(),
		EventType:     entry.EventType,
		EventTime:     now,
		Severity:      entry.Severity,
		ActorUserID:   entry.ActorUserID,
		ActorUsername: entry.ActorUsername,
		Domain:        entry.Domain,
		Action:        entry.Action,
		Details:       maskSensitiveDetails(entry.Details),
		Success:       entry.Success,
		Reason:        entry.Reason,
		CreatedAt:     now,
	}
}

// Log records an audit log entry asynchronously. Entries are dropped when
// the buffer is full.
func (s *AuditService) Log(_ context.Context, entry AuditLogEntry) {
	if s == nil || !s.enabled {
		return
	}

	select {
	case <-s.shutdownCh:
		return
	default:
	}

	select {
	case s.logChan <- s.buildLog(entry):
	default:
		s.logger.WithField("action", entry.Action).Warn("[Audit] buffer full, dropping event")
	}
}

// GetAuditLogs retrieves audit logs with pagination and filtering
func (s *AuditService) GetAuditLogs(
	ctx context.Context,
	params store.PaginationParams,
	filters store.AuditLogFilters,
) ([]models.AuditLog, store.PaginationResult, error) {
	if s == nil || s.store == nil {
		return nil, store.PaginationResult{}, nil
	}
	return s.store.ListAuditLogs(ctx, params, filters)
}

// GetAuditLogStats returns statistics about audit logs
func (s *AuditService) GetAuditLogStats(
	ctx context.Context,
	filters store.AuditLogFilters,
) (store.AuditLogStats, error) {
	if s == nil || s.store == nil {
		return store.AuditLogStats{EventsByType: map[models.EventType]int64{}}, nil
	}
	return s.store.GetAuditLogStats(ctx, filters)
}

// Shutdown flushes pending entries and stops the worker.
func (s *AuditService) Shutdown(ctx context.Context) error {
	if s == nil || !s.enabled {
		return nil
	}

	s.shutdownOnce.Do(func() {
		s.batchTicker.Stop()
		close(s.shutdownCh)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("[Audit] service shut down gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit service shutdown timeout: %w", ctx.Err())
	}
}

// maskSensitiveDetails masks sensitive information in audit log details
func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return details
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		if isSensitiveField(key) {
			masked[key] = "***REDACTED***"
			continue
		}
		masked[key] = value
	}
	return masked
}

// isSensitiveField checks if a field should be completely masked
func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	for _, field := range []string{"password", "passwd", "secret", "credential", "token"} {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}
