package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/verimarket/backend/internal/response"
)

type contextKey string

const ctxPrincipalKey contextKey = "principal"

// TokenValidator resolves a bearer token to an account id and role.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
}

// Principal is the authenticated caller.
type Principal struct {
	AccountID uuid.UUID
	Role      string
}

// Authenticate validates the Bearer token and stores the Principal in the
// request context.
func Authenticate(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "missing or malformed Authorization header", nil)
				return
			}
			id, role, err := v.ValidateToken(r.Context(), raw)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token", nil)
				return
			}
			p := Principal{AccountID: id, Role: role}
			recordCaller(r.Context(), p)
			ctx := WithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role is not listed. Must run after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromCtx(r.Context())
			if !ok {
				response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
				return
			}
			if !slices.Contains(roles, p.Role) {
				response.Error(w, http.StatusForbidden, "FORBIDDEN", "role "+p.Role+" may not perform this action", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromCtx returns the authenticated caller, if any.
func PrincipalFromCtx(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey).(Principal)
	return p, ok
}

// WithPrincipal returns a context carrying the given caller.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
