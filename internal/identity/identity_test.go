package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/challengely/challengely/internal/domain"
	"github.com/challengely/challengely/internal/prefs"
	"github.com/challengely/challengely/internal/store"
)

func runThroughMiddleware(t *testing.T, st store.Store, req *http.Request) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	var userID, sessionID string
	handler := Middleware(st, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = UserIDFromContext(r.Context())
		sessionID = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, userID, sessionID
}

func TestMiddlewareAssignsAnonID(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, userID, sessionID := runThroughMiddleware(t, st, req)

	if !isValidAnonID(userID) {
		t.Fatalf("assigned user id %q is not a valid anon id", userID)
	}
	if sessionID != DefaultSessionIDValue {
		t.Fatalf("session id = %q, want default", sessionID)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == AnonCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("anon cookie not set")
	}
	if cookie.Value != userID {
		t.Fatalf("cookie %q != context user id %q", cookie.Value, userID)
	}
	if !cookie.HttpOnly {
		t.Fatal("anon cookie must be HttpOnly")
	}

	// First contact seeds the Guest preference record.
	if !prefs.Exists(req.Context(), st, userID) {
		t.Fatal("guest preferences not seeded")
	}
	if p := prefs.Load(req.Context(), st, userID); p.Name != domain.GuestName {
		t.Fatalf("seeded prefs = %+v", p)
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	existing := "anon_0123456789abcdef0123456789abcdef"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: existing})
	_, userID, _ := runThroughMiddleware(t, st, req)

	if userID != existing {
		t.Fatalf("user id = %q, want the cookie value", userID)
	}
}

func TestMiddlewareRejectsForgedCookie(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()

	for _, forged := range []string{
		"anon_short",
		"admin",
		"anon_ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ",
		"anon_0123456789abcdef0123456789abcdef0", // too long
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: forged})
		_, userID, _ := runThroughMiddleware(t, st, req)

		if userID == forged {
			t.Fatalf("forged id %q accepted", forged)
		}
		if !isValidAnonID(userID) {
			t.Fatalf("replacement id %q invalid", userID)
		}
	}
}

func TestSessionIDSources(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeaderName, "tab-1")
	_, _, sessionID := runThroughMiddleware(t, st, req)
	if sessionID != "tab-1" {
		t.Fatalf("header session id = %q", sessionID)
	}

	// Falls back to the query parameter (the websocket client cannot set
	// custom headers).
	req = httptest.NewRequest(http.MethodGet, "/?session_id=tab-2", nil)
	_, _, sessionID = runThroughMiddleware(t, st, req)
	if sessionID != "tab-2" {
		t.Fatalf("query session id = %q", sessionID)
	}

	// Garbage collapses to the default.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeaderName, "bad value\nwith newline")
	_, _, sessionID = runThroughMiddleware(t, st, req)
	if sessionID != DefaultSessionIDValue {
		t.Fatalf("invalid session id passed through: %q", sessionID)
	}
}

func TestIPFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	if got := IPFromRequest(req); got != "10.1.2.3" {
		t.Fatalf("IPFromRequest = %q", got)
	}

	req.RemoteAddr = "10.1.2.3"
	if got := IPFromRequest(req); got != "10.1.2.3" {
		t.Fatalf("IPFromRequest without port = %q", got)
	}
}
