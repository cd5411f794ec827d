package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/slotbook-backend/internal/guestsession"
)

func TestGuestSessionRequiresHeader(t *testing.T) {
	called := false
	handler := GuestSession(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if called {
		t.Fatal("handler should not run without a credential")
	}
}

func TestGuestSessionPassesCredential(t *testing.T) {
	credential := guestsession.FormatCredential(uuid.New(), "token")
	var got string
	handler := GuestSession(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GuestCredentialFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(guestsession.HeaderName, "  "+credential+" ")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != credential {
		t.Fatalf("expected credential %q got %q", credential, got)
	}
}
