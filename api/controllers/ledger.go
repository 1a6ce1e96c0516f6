package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/shiftledger/api/middleware"
	"github.com/angelmondragon/shiftledger/api/responses"
	"github.com/angelmondragon/shiftledger/api/validators"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

type ledgerLister interface {
	ListByStore(ctx context.Context, storeID string, since time.Time, limit int) ([]models.LedgerEntry, error)
}

// LedgerEntries lists the newest mirrored ledger entries for the token's store.
// Back-office sync passes ?since=<RFC3339> to fetch only what it has not seen.
func LedgerEntries(repo ledgerLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		since, err := validators.ParseQueryTime(r, "since")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := repo.ListByStore(r.Context(), middleware.StoreIDFromContext(r.Context()), since, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
