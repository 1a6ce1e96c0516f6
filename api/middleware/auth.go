package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/shiftledger/api/responses"
	pkgAuth "github.com/angelmondragon/shiftledger/pkg/auth"
	"github.com/angelmondragon/shiftledger/pkg/config"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

// Auth verifies the bearer token and seeds the request context with the
// caller's id, role, display name and active store.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier := pkgAuth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, pkgAuth.ErrTokenExpired) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), logg, claims)))
		})
	}
}

func withClaims(ctx context.Context, logg *logger.Logger, claims *pkgAuth.AccessTokenClaims) context.Context {
	role := claims.Role.String()
	ctx = WithUserID(ctx, claims.UserID)
	ctx = WithRole(ctx, role)
	ctx = WithUserName(ctx, claims.Name)
	fields := map[string]any{"user_id": claims.UserID, "actor_role": role}
	if claims.HasStore() {
		ctx = WithStoreID(ctx, claims.ActiveStoreID)
		fields["store_id"] = claims.ActiveStoreID
	}
	return logg.WithFields(ctx, fields)
}

// bearerToken reads the Authorization header. EventSource cannot set headers,
// so GET requests may pass the token as access_token instead.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		if r.Method != http.MethodGet {
			return ""
		}
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	scheme, token, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return header
}
