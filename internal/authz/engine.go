package authz

import (
	"github.com/clinea-his/clinea-his/internal/shared"
)

// Engine resolves the effective rights of a principal over a capability.
// All checks are pure reads over the session-cached principal: the grant set
// is resolved once at login (and on refresh), so no check performs I/O.
type Engine struct{}

// NewEngine constructs an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// CheckGranular computes the effective rights for one capability code.
// The administrator bypass is evaluated before any grant lookup; a missing
// grant denies everything; the role master switches cached on the principal
// veto create/update (edit switch) and delete (delete switch) regardless of
// what the grant row allows.
func (e *Engine) CheckGranular(p *shared.Principal, code Code) Rights {
	if p == nil {
		return NoRights()
	}
	if p.IsAdmin() {
		return FullRights()
	}
	grant, ok := p.Grants[string(code)]
	if !ok {
		return NoRights()
	}
	masterEdit := p.CanEdit
	masterDelete := p.CanDelete
	return Rights{
		CanRead:   true,
		CanCreate: grant.CanCreate && masterEdit,
		CanUpdate: grant.CanUpdate && masterEdit,
		CanDelete: grant.CanDelete && masterDelete,
	}
}

// HasPermission is the coarse membership check used for navigation: the
// administrator passes unconditionally, everyone else needs a grant row for
// the code.
func (e *Engine) HasPermission(p *shared.Principal, code Code) bool {
	if p == nil {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	return p.HasGrant(string(code))
}

// CanPrint applies the print master switch, which has no per-capability
// granularity.
func (e *Engine) CanPrint(p *shared.Principal) bool {
	if p == nil {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	return p.CanPrint
}
