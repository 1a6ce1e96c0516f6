package middleware

import (
	"net/http"

	"github.com/angelmondragon/shiftledger/api/responses"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

// RequireRole admits callers whose token role is one of roles. With no roles
// it admits nobody.
func RequireRole(logg *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if _, ok := allowed[role]; ok && role != "" {
				next.ServeHTTP(w, r)
				return
			}
			logg.Warn(logg.WithFields(r.Context(), map[string]any{"actor_role": role, "path": r.URL.Path}), "auth.role_denied")
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
		})
	}
}
