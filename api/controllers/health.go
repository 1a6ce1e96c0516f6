package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/shiftledger/api/responses"
	"github.com/angelmondragon/shiftledger/pkg/db"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/redis"
)

func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// HealthReady reports ready once the database and redis answer a ping.
func HealthReady(database db.Pinger, cache redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if database != nil {
			if err := database.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
