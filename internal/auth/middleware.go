package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

// Middleware wires token verification and principal resolution into the HTTP
// request chain. It is constructed once at startup and passed by reference;
// there are no package-level singletons.
type Middleware struct {
	Verifier Verifier
	Resolver Resolver
	Logger   *slog.Logger
}

// BearerToken extracts the bearer credential from the Authorization header,
// empty when absent or not bearer-shaped.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireAuth verifies the bearer token, resolves the principal and attaches
// both to the request context. Every failure aborts the request.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.Verifier.Verify(r.Context(), BearerToken(r))
		if err != nil {
			if errors.Is(err, ErrNoToken) {
				httpx.Error(w, http.StatusUnauthorized, CodeNoToken, "Access denied. No token provided.")
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("token verification failed", slog.Any("error", err))
			}
			httpx.Error(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
			return
		}

		principal, err := m.Resolver.ResolvePrincipal(r.Context(), claims)
		if err != nil {
			if errors.Is(err, ErrMissingEmail) {
				httpx.Error(w, http.StatusBadRequest, CodeMissingEmail, "Identity provider returned no email address")
				return
			}
			if errors.Is(err, ErrDeactivated) {
				httpx.Error(w, http.StatusUnauthorized, CodeNoAuthUser, "Account is deactivated")
				return
			}
			if m.Logger != nil {
				m.Logger.Error("principal resolution failed", slog.String("sub", claims.Subject), slog.Any("error", err))
			}
			httpx.Error(w, http.StatusInternalServerError, CodeUserCreateError, "Authentication error")
			return
		}

		ctx := ContextWithClaims(r.Context(), claims)
		ctx = ContextWithPrincipal(ctx, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth runs the same verification and resolution chain but collapses
// every failure into an anonymous request. This is the only place a
// verification failure is swallowed rather than surfaced.
func (m Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.Verifier.Verify(r.Context(), BearerToken(r))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := ContextWithClaims(r.Context(), claims)
		if principal, err := m.Resolver.ResolvePrincipal(ctx, claims); err == nil {
			ctx = ContextWithPrincipal(ctx, principal)
		} else if m.Logger != nil {
			m.Logger.Debug("optional principal resolution failed", slog.String("sub", claims.Subject), slog.Any("error", err))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates the route on a declarative capability set. An empty set
// only requires an authenticated principal.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Error(w, http.StatusUnauthorized, CodeNoUser, "Authentication required")
				return
			}
			if len(roles) > 0 && !Allowed(principal, roles) {
				httpx.Error(w, http.StatusForbidden, CodeInsufficientRole,
					fmt.Sprintf("Access denied. Required role: %s. Your role: %s", joinRoles(roles), principal.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func joinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, role := range roles {
		parts[i] = string(role)
	}
	return strings.Join(parts, " or ")
}
