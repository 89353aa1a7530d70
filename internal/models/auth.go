package models

import "slices"

const RoleAdmin = "admin"

// Actor is the authenticated caller as supplied by the identity provider.
type Actor struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
}

func (a Actor) IsAdmin() bool {
	return slices.Contains(a.Roles, RoleAdmin)
}

// TokenClaims is the subset of the bearer token claims the service reads.
type TokenClaims struct {
	Sub         string `json:"sub"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	Roles []string `json:"roles"`
}

// Actor merges realm and top level roles into an Actor.
func (c TokenClaims) Actor() Actor {
	roles := append([]string{}, c.RealmAccess.Roles...)
	roles = append(roles, c.Roles...)
	return Actor{UserID: c.Sub, Roles: roles}
}
