package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Middleware wires role checks for HTTP handlers. Roles are flat: a route
// names the roles it accepts and the actor needs one of them.
type Middleware struct {
	Logger *slog.Logger
}

// RequireRole ensures the current actor holds one of the given roles.
// Requests without an authenticated actor get 401, authenticated actors
// without a matching role get 403.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if len(normalized) == 0 || hasRole(actor.Role, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("role denied",
					slog.Int64("actor_id", actor.ID),
					slog.String("role", actor.Role),
					slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func normalizeRoles(roles []string) []string {
	unique := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		unique[role] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for role := range unique {
		normalized = append(normalized, role)
	}
	return normalized
}

func hasRole(role string, required []string) bool {
	role = strings.ToLower(role)
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}
