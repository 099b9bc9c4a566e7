package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/store"
)

// OrganizationStore is the slice of the store OrganizationService needs.
type OrganizationStore interface {
	GetOrganizationByDomain(ctx context.Context, domain string) (*models.Organization, error)
	CreateOrganization(ctx context.Context, org *models.Organization) error
	AddOrganizationMember(ctx context.Context, orgID, userID string) error
}

// OrganizationService associates newly provisioned users with the
// organization of their domain, creating it on first use.
type OrganizationService struct {
	store  OrganizationStore
	logger logrus.FieldLogger
}

func NewOrganizationService(s OrganizationStore, logger logrus.FieldLogger) *OrganizationService {
	return &OrganizationService{store: s, logger: logger}
}

// OnUserProvisioned implements core.ProvisionHook.
func (s *OrganizationService) OnUserProvisioned(ctx context.Context, user *models.User, domain string) error {
	org, err := s.ensureOrganization(ctx, domain)
	if err != nil {
		return err
	}
	if err := s.store.AddOrganizationMember(ctx, org.ID, user.ID); err != nil {
		return fmt.Errorf("failed to add %s to organization %s: %w", user.Username, org.Domain, err)
	}

	s.logger.WithFields(logrus.Fields{
		"username":        user.Username,
		"organization_id": org.ID,
		"domain":          domain,
	}).Debug("[Org] user associated")
	return nil
}

func (s *OrganizationService) ensureOrganization(ctx context.Context, domain string) (*models.Organization, error) {
	org, err := s.store.GetOrganizationByDomain(ctx, domain)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up organization for %s: %w", domain, err)
	}

	org = &models.Organization{Name: domain, Domain: domain}
	err = s.store.CreateOrganization(ctx, org)
	if errors.Is(err, store.ErrOrganizationConflict) {
		// Another login created it first.
		return s.store.GetOrganizationByDomain(ctx, domain)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create organization for %s: %w", domain, err)
	}

	s.logger.WithField("domain", domain).Info("[Org] organization created")
	return org, nil
}
