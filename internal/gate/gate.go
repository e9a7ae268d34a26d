package gate

import (
	"github.com/clinea-his/clinea-his/internal/authz"
	"github.com/clinea-his/clinea-his/internal/businessday"
	"github.com/clinea-his/clinea-his/internal/shared"
)

// Gate is the single decision surface in front of every protected feature.
// It layers the restricted-mode rule on top of the authorization engine:
// while a business day awaits closure, non-administrators are confined to
// the cash desk.
type Gate struct {
	engine *authz.Engine
}

// New constructs a Gate over the given engine.
func New(engine *authz.Engine) *Gate {
	return &Gate{engine: engine}
}

// IsRestricted reports whether the principal is confined by a pending
// closure. Administrators are never restricted; everyone else is restricted
// exactly while the business date lags the wall clock.
func (g *Gate) IsRestricted(state businessday.DayState, p *shared.Principal) bool {
	if p != nil && p.IsAdmin() {
		return false
	}
	return state.Drifted
}

// CanNavigate decides view access. Under restriction only the cash desk view
// stays reachable (the closure is performed from there); otherwise the
// capability membership check applies.
func (g *Gate) CanNavigate(state businessday.DayState, p *shared.Principal, view authz.Code) bool {
	if g.IsRestricted(state, p) && view != authz.CaisseView {
		return false
	}
	return g.engine.HasPermission(p, view)
}

// CanAct decides one verb on one capability. Restriction is a navigation
// concern and is deliberately not re-applied here.
func (g *Gate) CanAct(p *shared.Principal, code authz.Code, verb authz.Verb) bool {
	return g.engine.CheckGranular(p, code).For(verb)
}

// CanPrint applies the print master switch.
func (g *Gate) CanPrint(p *shared.Principal) bool {
	return g.engine.CanPrint(p)
}
