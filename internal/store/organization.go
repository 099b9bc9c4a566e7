package store

import (
	"context"
	"errors"

	"github.com/go-authgate/exchauth/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization operations
func (s *Store) GetOrganizationByDomain(ctx context.Context, domain string) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).Where("domain = ?", domain).First(&org).Error; err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

// CreateOrganization inserts org. A domain that already has an organization
// yields ErrOrganizationConflict.
func (s *Store) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrOrganizationConflict
		}
		return err
	}
	return nil
}

// AddOrganizationMember links a user to an organization. Adding an existing
// member is not an error.
func (s *Store) AddOrganizationMember(ctx context.Context, orgID, userID string) error {
	member := &models.OrganizationMember{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		UserID:         userID,
	}
	err := s.db.WithContext(ctx).Create(member).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return nil
}

// ListOrganizationMembers returns the users belonging to an organization.
func (s *Store) ListOrganizationMembers(ctx context.Context, orgID string) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN organization_members ON organization_members.user_id = users.id").
		Where("organization_members.organization_id = ?", orgID).
		Order("users.username ASC").
		Find(&users).Error
	return users, err
}
