package shared

// AdminRoleName is the role that bypasses every permission check.
const AdminRoleName = "Administrator"

// GrantRights mirrors the three booleans stored on a capability grant.
type GrantRights struct {
	CanCreate bool `json:"can_create"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

// Principal is the logged-in operator as cached on the session: identity,
// role, the role's master switches copied at login, and the resolved grant
// set. It is rebuilt on login and on an explicit refresh, never mutated in
// between.
type Principal struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	RoleID   int64  `json:"role_id"`
	RoleName string `json:"role_name"`

	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanPrint  bool `json:"can_print"`

	Grants map[string]GrantRights `json:"grants"`
}

// IsAdmin reports whether the principal carries the administrator role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.RoleName == AdminRoleName
}

// HasGrant reports whether a grant row exists for the capability code.
func (p *Principal) HasGrant(code string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Grants[code]
	return ok
}

// GrantCodes returns the capability codes the principal was granted.
func (p *Principal) GrantCodes() []string {
	if p == nil {
		return nil
	}
	codes := make([]string, 0, len(p.Grants))
	for code := range p.Grants {
		codes = append(codes, code)
	}
	return codes
}
