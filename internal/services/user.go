package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/auth"
	"github.com/go-authgate/exchauth/internal/config"
	"github.com/go-authgate/exchauth/internal/core"
	"github.com/go-authgate/exchauth/internal/identity"
	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/store"
)

// DefaultProvisionHookTimeout bounds one provisioning hook call.
const DefaultProvisionHookTimeout = 5 * time.Second

// formatInvalid labels attempts that never parsed into an identity.
const formatInvalid = "invalid"

// Rejection reasons as they appear in metrics and the audit trail.
const (
	reasonFormatNotAllowed   = "format_not_allowed"
	reasonDomainNotAllowed   = "domain_not_allowed"
	reasonDirectoryFailed    = "directory_auth_failed"
	reasonDirectoryTimeout   = "directory_timeout"
	reasonNotProvisioned     = "unknown_user_not_provisioned"
	reasonRepositoryConflict = "repository_conflict"
	reasonCanceled           = "canceled"
)

type UserService struct {
	repo          core.UserRepository
	policies      config.PolicySource
	authenticator *auth.Authenticator
	hook          core.ProvisionHook
	audit         *AuditService
	metrics       core.Recorder
	logger        logrus.FieldLogger
	userCache     core.Cache[models.User]
	userCacheTTL  time.Duration
	hookTimeout   time.Duration
	now           func() time.Time
}

// NewUserService creates the authentication engine. hook may be nil; a nil
// audit service disables the audit trail.
func NewUserService(
	repo core.UserRepository,
	policies config.PolicySource,
	authenticator *auth.Authenticator,
	hook core.ProvisionHook,
	auditService *AuditService,
	m core.Recorder,
	logger logrus.FieldLogger,
	userCache core.Cache[models.User],
	userCacheTTL time.Duration,
) *UserService {
	if auditService == nil {
		auditService = NewAuditService(nil, false, 0, logger)
	}
	return &UserService{
		repo:          repo,
		policies:      policies,
		authenticator: authenticator,
		hook:          hook,
		audit:         auditService,
		metrics:       m,
		logger:        logger,
		userCache:     userCache,
		userCacheTTL:  userCacheTTL,
		hookTimeout:   DefaultProvisionHookTimeout,
		now:           time.Now,
	}
}

// SetProvisionHookTimeout changes how long a provisioning hook may hold up
// a login. Non-positive values are ignored.
func (s *UserService) SetProvisionHookTimeout(d time.Duration) {
	if d > 0 {
		s.hookTimeout = d
	}
}

// attempt carries what is known about one login for logs and audit.
type attempt struct {
	started  time.Time
	username string // lower-cased input until parsed, canonical login after
	format   string
	domain   string
	strategy string
}

// Authenticate proves username/password against the directory and returns
// the reconciled local user. Every rejection yields ErrAuthenticationDenied;
// any other error is an unexpected fault such as the repository being down.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	p := s.policies.Policy()
	at := attempt{
		started:  time.Now(),
		username: strings.ToLower(username),
		format:   formatInvalid,
	}

	id, err := identity.Parse(username, p)
	if err != nil {
		return nil, s.deny(ctx, at, rejectionReason(err), err)
	}
	at.username = id.CanonicalLogin
	at.format = string(id.Format)
	at.domain = id.Domain

	endpoint, _ := p.Endpoint(id.Domain)
	res := s.authenticator.Authenticate(ctx, id, endpoint, password)
	at.strategy = string(res.Strategy)
	if !res.Authenticated {
		return nil, s.deny(ctx, at, rejectionReason(res.Reason), res.Reason)
	}

	// Nothing may be written for a caller that has gone away.
	if err := ctx.Err(); err != nil {
		return nil, s.deny(ctx, at, reasonCanceled, err)
	}

	user, provisioned, err := s.reconcile(ctx, id, p)
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			return nil, s.deny(ctx, at, reason, err)
		}
		return nil, s.fail(ctx, at, err)
	}

	s.metrics.RecordAuthAttempt(at.format, true, time.Since(at.started))
	s.logger.WithFields(logrus.Fields{
		"username":    user.Username,
		"domain":      at.domain,
		"strategy":    at.strategy,
		"provisioned": provisioned,
	}).Info("[Auth] login succeeded")
	s.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventAuthenticationSuccess,
		Severity:      models.SeverityInfo,
		ActorUserID:   user.ID,
		ActorUsername: user.Username,
		Domain:        at.domain,
		Action:        "login",
		Details: models.AuditDetails{
			"format":      at.format,
			"strategy":    at.strategy,
			"provisioned": provisioned,
		},
		Success: true,
	})
	return user, nil
}

// deny records a rejection and returns the one error callers see.
func (s *UserService) deny(ctx context.Context, at attempt, reason string, cause error) error {
	s.metrics.RecordAuthAttempt(at.format, false, time.Since(at.started))
	s.metrics.RecordRejection(reason)

	s.logger.WithFields(logrus.Fields{
		"username": at.username,
		"domain":   at.domain,
		"strategy": at.strategy,
		"reason":   reason,
	}).WithError(cause).Info("[Auth] login denied")

	s.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventAuthenticationFailure,
		Severity:      models.SeverityWarning,
		ActorUsername: at.username,
		Domain:        at.domain,
		Action:        "login denied",
		Details: models.AuditDetails{
			"format":   at.format,
			"strategy": at.strategy,
		},
		Reason: reason,
	})
	return ErrAuthenticationDenied
}

// fail records an unexpected fault and passes it through.
func (s *UserService) fail(ctx context.Context, at attempt, err error) error {
	s.metrics.RecordAuthAttempt(at.format, false, time.Since(at.started))
	s.logger.WithFields(logrus.Fields{
		"username": at.username,
		"domain":   at.domain,
	}).WithError(err).Error("[Auth] login failed with internal error")

	s.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventAuthenticationFailure,
		Severity:      models.SeverityError,
		ActorUsername: at.username,
		Domain:        at.domain,
		Action:        "login error",
		Reason:        "internal_error",
	})
	return err
}

// rejectionReason names a rejection cause, or returns "" for errors that
// are faults rather than rejections.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, identity.ErrFormatNotAllowed):
		return reasonFormatNotAllowed
	case errors.Is(err, identity.ErrDomainNotAllowed):
		return reasonDomainNotAllowed
	case errors.Is(err, auth.ErrDirectoryTimeout):
		return reasonDirectoryTimeout
	case errors.Is(err, auth.ErrDirectoryAuthFailed):
		return reasonDirectoryFailed
	case errors.Is(err, ErrUnknownUserNotProvisioned):
		return reasonNotProvisioned
	case errors.Is(err, ErrRepositoryConflict):
		return reasonRepositoryConflict
	default:
		return ""
	}
}

func userCacheKey(id string) string {
	return "user:" + id
}

// GetUserByID returns a user by primary key, reading through the user cache.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userCache.GetWithFetch(
		ctx,
		userCacheKey(id),
		s.userCacheTTL,
		func(ctx context.Context, _ string) (models.User, error) {
			u, err := s.repo.GetUserByID(ctx, id)
			if err != nil {
				return models.User{}, err
			}
			return *u, nil
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.metrics.RecordDatabaseQueryError("get_user")
		return nil, err
	}
	return &user, nil
}

// InvalidateUserCache drops the cached copy of a user.
func (s *UserService) InvalidateUserCache(ctx context.Context, userID string) {
	if err := s.userCache.Delete(ctx, userCacheKey(userID)); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("[Cache] failed to invalidate user")
	}
}
