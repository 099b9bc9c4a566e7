package models

import (
	"time"
)

type User struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username    string `gorm:"uniqueIndex;not null"        json:"username"` // canonical login
	Email       string `gorm:"index"                       json:"email"`
	FirstName   string `                                   json:"first_name"`
	LastName    string `                                   json:"last_name"`
	Role        string `gorm:"not null;default:'user'"     json:"role"`
	IsActive    bool   `gorm:"not null"                    json:"is_active"`
	IsStaff     bool   `gorm:"not null"                    json:"is_staff"`
	IsSuperuser bool   `gorm:"not null"                    json:"is_superuser"`

	// Domain the user was first authenticated under.
	Domain string `gorm:"index" json:"domain"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == "admin" || u.IsSuperuser
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
