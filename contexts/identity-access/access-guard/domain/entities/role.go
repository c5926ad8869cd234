package entities

import "time"

type Role string

const (
	// RoleAdmin may change fees, pause state, and role assignments.
	RoleAdmin Role = "admin"
	// RoleOperator receives the marketplace fee cut.
	RoleOperator Role = "operator"
	// RoleAssetAdapter marks the in-house asset contracts allowed to
	// request token royalty resets.
	RoleAssetAdapter Role = "asset-adapter"
)

func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleAssetAdapter:
		return true
	}
	return false
}

type RoleAssignment struct {
	Account   string
	Role      Role
	GrantedBy string
	GrantedAt time.Time
}
