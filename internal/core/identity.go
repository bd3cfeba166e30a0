package core

// Role is what a logged-in member may do.
type Role string

const (
	RoleMember       Role = "member"
	RoleLimitedAdmin Role = "limited_admin"
	RoleAdmin        Role = "admin"
)

// Identity is the logged-in member as carried in the session.
type Identity struct {
	Team               string `json:"team"`
	Member             string `json:"member"`
	Role               Role   `json:"role"`
	ActingForAdminTeam bool   `json:"acting,omitempty"`
}

// RoleFor assigns a role to a resolved login. Members of adminTeam are
// limited admins; the configured admin member is the full admin.
func RoleFor(team, member, adminTeam, adminMember string) Role {
	switch {
	case team == adminTeam && member == adminMember:
		return RoleAdmin
	case team == adminTeam:
		return RoleLimitedAdmin
	default:
		return RoleMember
	}
}

// CanViewAdmin reports whether admin pages are visible.
func (id Identity) CanViewAdmin() bool {
	return id.Role == RoleAdmin || id.Role == RoleLimitedAdmin
}

// CanEditAdmin reports whether budgets, menu and roster may be replaced.
func (id Identity) CanEditAdmin() bool {
	return id.Role == RoleAdmin
}

// CanOrder is false for the full admin until they act for the admin team.
func (id Identity) CanOrder() bool {
	return id.Role != RoleAdmin || id.ActingForAdminTeam
}

// Valid reports whether the identity names a member.
func (id Identity) Valid() bool {
	return id.Team != "" && id.Member != "" && id.Role != ""
}
