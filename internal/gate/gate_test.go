package gate

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinea-his/clinea-his/internal/authz"
	"github.com/clinea-his/clinea-his/internal/businessday"
	"github.com/clinea-his/clinea-his/internal/shared"
	"log/slog"
)

var (
	calm = businessday.DayState{
		BusinessDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		WallClockDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	drifted = businessday.DayState{
		BusinessDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		WallClockDate: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		Drifted:       true,
	}
)

func admin() *shared.Principal {
	return &shared.Principal{UserID: 1, RoleName: shared.AdminRoleName}
}

func cashier() *shared.Principal {
	return &shared.Principal{
		UserID:   2,
		RoleName: "Caissier",
		CanEdit:  true,
		Grants: map[string]shared.GrantRights{
			string(authz.CaisseView):     {},
			string(authz.CaisseValidate): {CanCreate: true, CanUpdate: true},
			string(authz.StockView):      {},
		},
	}
}

func TestIsRestricted(t *testing.T) {
	g := New(authz.NewEngine())

	require.False(t, g.IsRestricted(calm, cashier()))
	require.True(t, g.IsRestricted(drifted, cashier()))
	require.False(t, g.IsRestricted(drifted, admin()))
	require.True(t, g.IsRestricted(drifted, nil))
}

func TestCanNavigate(t *testing.T) {
	g := New(authz.NewEngine())
	p := cashier()

	// Normal mode follows capability membership.
	require.True(t, g.CanNavigate(calm, p, authz.CaisseView))
	require.True(t, g.CanNavigate(calm, p, authz.StockView))
	require.False(t, g.CanNavigate(calm, p, authz.LaboView))

	// Restricted mode confines everyone but admins to the cash desk.
	require.True(t, g.CanNavigate(drifted, p, authz.CaisseView))
	require.False(t, g.CanNavigate(drifted, p, authz.StockView))
	require.True(t, g.CanNavigate(drifted, admin(), authz.StockView))
}

func TestCanAct(t *testing.T) {
	g := New(authz.NewEngine())
	p := cashier()

	require.True(t, g.CanAct(p, authz.CaisseValidate, authz.VerbCreate))
	require.True(t, g.CanAct(p, authz.CaisseValidate, authz.VerbUpdate))
	// No master delete switch on the role.
	require.False(t, g.CanAct(p, authz.CaisseValidate, authz.VerbDelete))
	require.False(t, g.CanAct(p, authz.LaboView, authz.VerbRead))
}

func TestRequireMiddleware(t *testing.T) {
	m := NewMiddleware(New(authz.NewEngine()), slog.New(slog.DiscardHandler))

	var deniedCodes []authz.Code
	m.OnDenied(func(code authz.Code) { deniedCodes = append(deniedCodes, code) })

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(handler http.Handler, p *shared.Principal) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if p != nil {
			sess := &shared.Session{}
			sess.SetPrincipal(p)
			req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	protected := m.Require(authz.StockView)(next)
	require.Equal(t, http.StatusUnauthorized, serve(protected, nil))
	require.Equal(t, http.StatusOK, serve(protected, cashier()))
	require.Equal(t, http.StatusOK, serve(protected, admin()))

	forbidden := m.Require(authz.LaboView)(next)
	require.Equal(t, http.StatusForbidden, serve(forbidden, cashier()))
	require.Equal(t, []authz.Code{authz.LaboView}, deniedCodes)

	verbGuard := m.RequireVerb(authz.CaisseValidate, authz.VerbDelete)(next)
	require.Equal(t, http.StatusForbidden, serve(verbGuard, cashier()))
	require.Equal(t, http.StatusOK, serve(verbGuard, admin()))
}
