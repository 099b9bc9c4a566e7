package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/config"
	"github.com/go-authgate/exchauth/internal/identity"
	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/store"
)

// reconcile maps an authenticated identity onto its local user: lookup,
// provision when allowed, apply domain policy, persist. It returns one of
// the rejection sentinels or an unexpected repository fault on failure.
func (s *UserService) reconcile(
	ctx context.Context,
	id *identity.Identity,
	p *config.Policy,
) (user *models.User, provisioned bool, err error) {
	user, err = s.repo.GetUserByUsername(ctx, id.CanonicalLogin)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrRecordNotFound):
		if !p.CreateUnknownUser {
			return nil, false, ErrUnknownUserNotProvisioned
		}
		user, provisioned, err = s.provision(ctx, id)
		if err != nil {
			return nil, false, err
		}
	default:
		s.metrics.RecordDatabaseQueryError("get_user")
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	policy := p.UserPolicy(id.Domain)
	policy.Apply(user)
	if identity.IsDNSDomain(id.Domain) {
		user.Email = id.CanonicalLogin
	}
	now := s.now()
	user.LastLoginAt = &now

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		s.metrics.RecordDatabaseQueryError("update_user")
		return nil, false, fmt.Errorf("failed to save user: %w", err)
	}
	s.InvalidateUserCache(ctx, user.ID)

	if !policy.IsEmpty() {
		s.audit.Log(ctx, AuditLogEntry{
			EventType:     models.EventUserPolicyApplied,
			Severity:      models.SeverityInfo,
			ActorUserID:   user.ID,
			ActorUsername: user.Username,
			Domain:        id.Domain,
			Action:        "domain policy applied",
			Success:       true,
		})
	}
	return user, provisioned, nil
}

// provision creates the local user. When a concurrent login wins the create
// race the winner's record is read back once and the hook is not fired
// again.
func (s *UserService) provision(ctx context.Context, id *identity.Identity) (*models.User, bool, error) {
	user := &models.User{
		Username: id.CanonicalLogin,
		Role:     "user",
		IsActive: true,
		Domain:   id.Domain,
	}

	err := s.repo.CreateUser(ctx, user)
	if errors.Is(err, store.ErrUsernameConflict) {
		s.metrics.RecordProvisionConflict()
		s.logger.WithField("username", id.CanonicalLogin).
			Debug("[Auth] concurrent provisioning detected, re-reading user")

		existing, rerr := s.repo.GetUserByUsername(ctx, id.CanonicalLogin)
		switch {
		case rerr == nil:
			return existing, false, nil
		case errors.Is(rerr, store.ErrRecordNotFound):
			return nil, false, ErrRepositoryConflict
		default:
			s.metrics.RecordDatabaseQueryError("get_user")
			return nil, false, fmt.Errorf("failed to re-read user after conflict: %w", rerr)
		}
	}
	if err != nil {
		s.metrics.RecordDatabaseQueryError("create_user")
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordUserProvisioned(id.Domain)
	s.logger.WithFields(logrus.Fields{
		"username": user.Username,
		"domain":   id.Domain,
		"user_id":  user.ID,
	}).Info("[Auth] provisioned new user")
	s.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventUserProvisioned,
		Severity:      models.SeverityInfo,
		ActorUserID:   user.ID,
		ActorUsername: user.Username,
		Domain:        id.Domain,
		Action:        "user provisioned",
		Success:       true,
	})

	s.runProvisionHook(ctx, user, id.Domain)
	return user, true, nil
}

// runProvisionHook calls the hook under its own deadline and swallows its
// errors and panics.
func (s *UserService) runProvisionHook(ctx context.Context, user *models.User, domain string) {
	if s.hook == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.hookTimeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{"username": user.Username, "domain": domain})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("[Auth] provisioning hook panicked")
		}
	}()
	if err := s.hook.OnUserProvisioned(ctx, user, domain); err != nil {
		log.WithError(err).Warn("[Auth] provisioning hook failed")
	}
}
