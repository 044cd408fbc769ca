package types

// Role is the privilege level attached to a connection or required by a tool.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

var roleLevels = map[Role]int{
	RoleViewer: 0,
	RoleEditor: 1,
	RoleAdmin:  2,
}

// ParseRole maps a claim string to a Role. Anything unrecognized degrades to
// viewer rather than failing the connection.
func ParseRole(s string) Role {
	r := Role(s)
	if _, ok := roleLevels[r]; !ok {
		return RoleViewer
	}
	return r
}

// AtLeast reports whether r grants at least the privilege of min on the
// ordering viewer < editor < admin.
func (r Role) AtLeast(min Role) bool {
	return roleLevels[r] >= roleLevels[min]
}

// Identity is the authentication context fixed at connection open. A zero
// TenantID means the connection is anonymous.
type Identity struct {
	TenantID string
	UserID   string
	Role     Role
}

// Anonymous is the identity used when no valid bearer token was presented.
func Anonymous() Identity {
	return Identity{Role: RoleViewer}
}

// Authenticated reports whether the connection carries a tenant.
func (id Identity) Authenticated() bool {
	return id.TenantID != ""
}
