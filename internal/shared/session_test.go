package shared_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/clinea-his/clinea-his/internal/shared"
	_ "github.com/clinea-his/clinea-his/testing"
)

func newManager(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == "test_session" {
			return c
		}
	}
	t.Fatalf("expected session cookie in response")
	return nil
}

func TestSessionPrincipalRoundTrip(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	sess, err := manager.Load(ctx, req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.SetUser("7")
	sess.SetPrincipal(&shared.Principal{
		UserID:   7,
		Username: "caissier1",
		RoleID:   2,
		RoleName: "Caissier",
		CanEdit:  true,
		Grants: map[string]shared.GrantRights{
			"CAISSE_VIEW": {CanCreate: true},
		},
	})

	res := httptest.NewRecorder()
	if err := manager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	cookie := sessionCookie(t, res)

	next := httptest.NewRequest(http.MethodGet, "/me", nil)
	next.AddCookie(cookie)
	loaded, err := manager.Load(ctx, next)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if loaded.User() != "7" {
		t.Fatalf("expected user 7, got %q", loaded.User())
	}
	principal := loaded.Principal()
	if principal == nil {
		t.Fatalf("expected cached principal")
	}
	if principal.Username != "caissier1" || !principal.CanEdit {
		t.Fatalf("principal lost fields: %+v", principal)
	}
	if !principal.HasGrant("CAISSE_VIEW") {
		t.Fatalf("expected CAISSE_VIEW grant to survive the round trip")
	}
	if principal.IsAdmin() {
		t.Fatalf("cashier must not be admin")
	}
}

func TestSessionDestroyClearsCookieAndStore(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	sess, err := manager.Load(ctx, req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.SetUser("7")
	res := httptest.NewRecorder()
	if err := manager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	cookie := sessionCookie(t, res)

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.AddCookie(cookie)
	sess, err = manager.Load(ctx, logout)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	manager.Destroy(sess)
	res = httptest.NewRecorder()
	if err := manager.Commit(ctx, res, logout, sess); err != nil {
		t.Fatalf("commit destroy: %v", err)
	}
	cleared := sessionCookie(t, res)
	if cleared.MaxAge != -1 {
		t.Fatalf("expected cookie MaxAge -1, got %d", cleared.MaxAge)
	}

	again := httptest.NewRequest(http.MethodGet, "/me", nil)
	again.AddCookie(cookie)
	reloaded, err := manager.Load(ctx, again)
	if err != nil {
		t.Fatalf("reload destroyed session: %v", err)
	}
	if reloaded.User() != "" {
		t.Fatalf("expected empty session after destroy, got user %q", reloaded.User())
	}
}

func TestCSRFTokenLifecycle(t *testing.T) {
	manager := newManager(t)
	csrf := shared.NewCSRFManager("csrfsecret")
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(ctx, req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	token, err := csrf.EnsureToken(ctx, sess)
	if err != nil {
		t.Fatalf("ensure token: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	repeat, err := csrf.EnsureToken(ctx, sess)
	if err != nil {
		t.Fatalf("ensure token twice: %v", err)
	}
	if repeat != token {
		t.Fatalf("token must be stable within a session")
	}

	if err := csrf.VerifyToken(ctx, sess, token); err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if err := csrf.VerifyToken(ctx, sess, "forged"); !errors.Is(err, shared.ErrCSRFTokenMismatch) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	if err := csrf.VerifyToken(ctx, sess, ""); !errors.Is(err, shared.ErrCSRFTokenMissing) {
		t.Fatalf("expected missing error, got %v", err)
	}
}
