package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// QueryParam carries the token for clients that cannot set headers (websocket upgrades)
	QueryParam    = "access_token"
	DefaultExpiry = time.Hour
)

// Claims are the access token claims. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller attached to a request context
type Identity struct {
	UserID string
	Token  string
}

// Auth verifies (and for local development, issues) HS256 access tokens
type Auth struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// New creates a new Auth instance with the given signing secret. A non-empty
// issuer is required on every verified token.
func New(secret, issuer string) *Auth {
	return &Auth{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Enabled reports whether a signing secret is configured
func (a *Auth) Enabled() bool {
	return len(a.secret) > 0
}

// Issue signs a token for userID valid for ttl
func (a *Auth) Issue(userID string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("no signing secret configured")
	}
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	now := a.now()
	claims := Claims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a token and returns the user id it was issued for
func (a *Auth) Verify(tokenString string) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("no signing secret configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid or expired token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header or
// the access_token query parameter
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return r.URL.Query().Get(QueryParam)
}

type ctxKey struct{}

// WithIdentity attaches a verified identity to ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity attached by the middleware
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// UserID returns the caller's user id, or "" when anonymous
func UserID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

// Optional middleware attaches the identity when a valid token is present.
// Requests without a token continue anonymously; an invalid token is
// rejected.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := TokenFromRequest(r)
		if tok == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := a.Verify(tok)
		if err != nil {
			unauthorized(w, "Invalid or expired access token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{UserID: userID, Token: tok})))
	})
}

// Required middleware for endpoints that need a signed-in user (returns 401)
func (a *Auth) Required(next http.Handler) http.Handler {
	return a.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			unauthorized(w, "Unauthorized - please sign in")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":"UNAUTHORIZED","error":"` + msg + `"}`))
}
