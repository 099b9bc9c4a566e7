package models

import "time"

// Organization groups the users of one mail domain.
type Organization struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string `gorm:"not null"                    json:"name"`
	Domain    string `gorm:"uniqueIndex;not null"        json:"domain"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrganizationMember links a user to an organization.
type OrganizationMember struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	OrganizationID string `gorm:"uniqueIndex:idx_org_member;not null"`
	UserID         string `gorm:"uniqueIndex:idx_org_member;not null"`
	CreatedAt      time.Time
}
