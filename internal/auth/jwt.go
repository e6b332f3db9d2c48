// Package auth authenticates callers of the write endpoints with HS256 JWTs.
// The token subject is the caller address; the ledger decides what that
// address may do.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/baselume-ledger/internal/domain"
)

// Roles carried in tokens
const (
	RoleOwner     = "owner"
	RoleSubmitter = "submitter"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey string

const callerContextKey contextKey = "caller"

// Claims are the JWT claims issued to ledger callers
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Caller is the authenticated identity of a request
type Caller struct {
	Address domain.Address
	Role    string
}

// ErrorWriter renders an authentication failure
type ErrorWriter func(w http.ResponseWriter, status int, err error)

// Authenticator issues and verifies tokens
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator creates an authenticator for the given HMAC secret
func NewAuthenticator(secret, issuer string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for addr with the given role
func (a *Authenticator) Issue(addr domain.Address, role string) (string, error) {
	if addr.IsZero() {
		return "", domain.ErrInvalidAddress
	}
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns its caller
func (a *Authenticator) Verify(tokenString string) (Caller, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return Caller{}, fmt.Errorf("%w: issuer %q", ErrInvalidToken, claims.Issuer)
	}
	addr, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return Caller{Address: addr, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func (a *Authenticator) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				onError(w, http.StatusUnauthorized, ErrMissingToken)
				return
			}
			caller, err := a.Verify(raw)
			if err != nil {
				onError(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// WithCaller returns a context carrying caller
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext returns the authenticated caller, if any
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(Caller)
	return caller, ok
}
