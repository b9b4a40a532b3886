package models

import "strings"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

func ParseRole(raw string) Role {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleStaff, RoleManager, RoleAdmin:
		return role
	default:
		return RoleCustomer
	}
}

// Principal is the authenticated caller.
type Principal struct {
	ID   string
	Role Role
}

func (p Principal) IsStaff() bool {
	return p.Role == RoleStaff || p.Role == RoleManager || p.Role == RoleAdmin
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
