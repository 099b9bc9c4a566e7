package models

// UserPolicy is the closed set of user attributes a domain may stamp onto
// its users. Nil fields are left untouched.
type UserPolicy struct {
	IsActive    *bool   `yaml:"is_active"    json:"is_active,omitempty"`
	IsStaff     *bool   `yaml:"is_staff"     json:"is_staff,omitempty"`
	IsSuperuser *bool   `yaml:"is_superuser" json:"is_superuser,omitempty"`
	Role        *string `yaml:"role"         json:"role,omitempty"         validate:"omitempty,oneof=user admin"`
	FirstName   *string `yaml:"first_name"   json:"first_name,omitempty"`
	LastName    *string `yaml:"last_name"    json:"last_name,omitempty"`
}

// IsEmpty reports whether the policy sets nothing.
func (p UserPolicy) IsEmpty() bool {
	return p.IsActive == nil && p.IsStaff == nil && p.IsSuperuser == nil &&
		p.Role == nil && p.FirstName == nil && p.LastName == nil
}

// Apply overwrites every attribute the policy sets.
func (p UserPolicy) Apply(u *User) {
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.IsStaff != nil {
		u.IsStaff = *p.IsStaff
	}
	if p.IsSuperuser != nil {
		u.IsSuperuser = *p.IsSuperuser
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
}
