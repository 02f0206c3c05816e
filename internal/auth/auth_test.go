package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify(t *testing.T) {
	a := New("test-secret", "penne")

	tok, err := a.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	userID, err := a.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("expected user-1, got %q", userID)
	}
}

func TestVerify_Rejects(t *testing.T) {
	a := New("test-secret", "penne")
	good, _ := a.Issue("user-1", time.Minute)

	expired := New("test-secret", "penne")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.Issue("user-1", time.Minute)

	otherIssuer, _ := New("test-secret", "someone-else").Issue("user-1", time.Minute)
	otherSecret, _ := New("wrong-secret", "penne").Issue("user-1", time.Minute)
	noSubject, _ := a.Issue("", time.Minute)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "penne",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"expired", old},
		{"wrong issuer", otherIssuer},
		{"wrong secret", otherSecret},
		{"no subject", noSubject},
		{"alg none", unsigned},
		{"tampered", good[:len(good)-2] + "xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Verify(tt.token); err == nil {
				t.Error("expected verification failure")
			}
		})
	}
}

func TestDisabled(t *testing.T) {
	a := New("", "")
	if a.Enabled() {
		t.Error("expected disabled without secret")
	}
	if _, err := a.Issue("u", time.Minute); err == nil {
		t.Error("expected Issue to fail without secret")
	}
	if _, err := a.Verify("x"); err == nil {
		t.Error("expected Verify to fail without secret")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		url    string
		want   string
	}{
		{"bearer header", "Bearer abc", "/", "abc"},
		{"lowercase bearer", "bearer abc", "/", "abc"},
		{"basic header ignored", "Basic abc", "/?access_token=q", ""},
		{"query param", "", "/ws?access_token=q", "q"},
		{"none", "", "/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := TokenFromRequest(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOptional(t *testing.T) {
	a := New("test-secret", "")
	tok, _ := a.Issue("user-1", time.Minute)

	var seen string
	h := a.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// anonymous
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || seen != "" {
		t.Errorf("anonymous: code %d user %q", rec.Code, seen)
	}

	// valid token
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != "user-1" {
		t.Errorf("valid: code %d user %q", rec.Code, seen)
	}

	// invalid token
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid: expected 401, got %d", rec.Code)
	}
}

func TestRequired(t *testing.T) {
	a := New("test-secret", "")
	tok, _ := a.Issue("user-1", time.Minute)

	h := a.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := FromContext(r.Context())
		if id.Token == "" {
			t.Error("expected raw token in identity")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "UNAUTHORIZED") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/?access_token="+tok, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
