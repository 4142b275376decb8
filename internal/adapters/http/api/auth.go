package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the token's role claim.
const (
	RoleOperator = "operator"
	RoleJudge    = "judge"
	RolePublic   = "public"
)

// Claims is the bearer token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	Role    string
	Subject string
}

type principalKey struct{}

// PrincipalFrom returns the caller attached to ctx, public when absent.
func PrincipalFrom(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Principal{Role: RolePublic}
}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// Authenticator resolves callers from HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator returns an authenticator for secret. With an empty
// secret every caller is an operator.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Authenticate resolves the caller of r. A request without an
// Authorization header is public.
func (a *Authenticator) Authenticate(r *http.Request) (Principal, error) {
	if len(a.secret) == 0 {
		return Principal{Role: RoleOperator}, nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return Principal{Role: RolePublic}, nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return Principal{}, fmt.Errorf("%w: expected a bearer token", ErrUnauthorized)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %s", ErrUnauthorized, err.Error())
	}
	switch claims.Role {
	case RoleOperator, RoleJudge:
	default:
		return Principal{}, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, claims.Role)
	}
	if claims.Role == RoleJudge && claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: judge token without subject", ErrUnauthorized)
	}
	return Principal{Role: claims.Role, Subject: claims.Subject}, nil
}

// Require authenticates the caller and admits only the given roles. With no
// roles every authenticated caller, public included, is admitted.
func (a *Authenticator) Require(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err)
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, p.Role) {
				if p.Role == RolePublic {
					writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
					return
				}
				writeError(w, http.StatusForbidden, "forbidden", ErrForbidden)
				return
			}
			next(w, r.WithContext(WithPrincipal(r.Context(), p)))
		}
	}
}

// IssueToken signs a token for role and subject valid for ttl from now.
func IssueToken(secret, role, subject string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
