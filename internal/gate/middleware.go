package gate

import (
	"log/slog"
	"net/http"

	"github.com/clinea-his/clinea-his/internal/authz"
	"github.com/clinea-his/clinea-his/internal/shared"
)

// Middleware wires gate checks into HTTP routing. A failed check is an
// expected 403, never an error.
type Middleware struct {
	gate     *Gate
	logger   *slog.Logger
	onDenied func(code authz.Code)
}

var _ authz.Guard = (*Middleware)(nil)

// NewMiddleware constructs the gate middleware.
func NewMiddleware(gate *Gate, logger *slog.Logger) *Middleware {
	return &Middleware{gate: gate, logger: logger}
}

// OnDenied registers a hook fired for every refused request, used by the
// metrics layer.
func (m *Middleware) OnDenied(fn func(code authz.Code)) {
	m.onDenied = fn
}

// RequireAuth rejects requests without an authenticated principal.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.PrincipalFromContext(r.Context()) == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require ensures the current principal holds the capability. Membership
// only; verb-level decisions belong to the handlers via CanAct.
func (m *Middleware) Require(code authz.Code) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !m.gate.engine.HasPermission(principal, code) {
				m.deny(principal, code)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerb ensures the principal may perform one verb on the capability.
func (m *Middleware) RequireVerb(code authz.Code, verb authz.Verb) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !m.gate.CanAct(principal, code, verb) {
				m.deny(principal, code)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) deny(p *shared.Principal, code authz.Code) {
	m.logger.Info("access denied",
		slog.Int64("user_id", p.UserID),
		slog.String("role", p.RoleName),
		slog.String("capability", string(code)),
	)
	if m.onDenied != nil {
		m.onDenied(code)
	}
}
