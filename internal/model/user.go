package model

import "time"

// Roles a user can hold. Roles are assigned at signup (customer) or by the
// staff-management tooling; nothing in the auth core changes them.
const (
	RoleCustomer     = "customer"
	RoleReceptionist = "receptionist"
	RoleManager      = "manager"
	RoleCleaner      = "cleaner"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleReceptionist, RoleManager, RoleCleaner:
		return true
	}
	return false
}

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	// PasswordHash is empty for accounts created through the external
	// identity exchange; such accounts cannot use password login or reset.
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	MFAEnabled   bool      `json:"mfa_enabled"`
	MFASecret    string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
