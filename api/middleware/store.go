package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/shiftledger/api/responses"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

const terminalIDHeader = "X-Terminal-Id"

// StoreContext rejects tokens without an active store. Shift routes are always
// scoped to the store on the token, so every log line below this point carries
// the store, the cashier and, when the till sends one, the terminal id.
func StoreContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			storeID := StoreIDFromContext(r.Context())
			if storeID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "token has no active store"))
				return
			}

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithStoreID(ctx, storeID)
				if cashierID := UserIDFromContext(ctx); cashierID != "" {
					ctx = logg.WithCashierID(ctx, cashierID)
				}
				if terminal := strings.TrimSpace(r.Header.Get(terminalIDHeader)); terminal != "" {
					ctx = logg.WithField(ctx, "terminal_id", terminal)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
