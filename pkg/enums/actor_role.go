package enums

import "fmt"

// ActorRole identifies who is acting on the pipeline. Roles are resolved
// server-side from verified credentials, never trusted from request bodies.
type ActorRole string

const (
	RoleCustomer   ActorRole = "customer"
	RoleStoreOwner ActorRole = "store_owner"
	RoleDriver     ActorRole = "driver"
	RoleAdmin      ActorRole = "admin"
	// RoleSystem marks automated transitions (webhooks, cron retries).
	RoleSystem ActorRole = "system"
)

var validActorRoles = []ActorRole{
	RoleCustomer,
	RoleStoreOwner,
	RoleDriver,
	RoleAdmin,
	RoleSystem,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
