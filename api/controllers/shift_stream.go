package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/shiftledger/api/middleware"
	"github.com/angelmondragon/shiftledger/api/responses"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

const defaultStreamHeartbeat = 25 * time.Second

// ShiftObserver streams the active shift of a store.
type ShiftObserver interface {
	Observe(ctx context.Context, storeID string) (<-chan *models.Shift, error)
}

// ShiftStream serves the store's active shift as server-sent events. Each
// change emits `event: shift` with the shift JSON, or `null` once no shift is
// open.
func ShiftStream(observer ShiftObserver, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = defaultStreamHeartbeat
	}
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		updates, err := observer.Observe(ctx, middleware.StoreIDFromContext(ctx))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case shift, open := <-updates:
				if !open {
					return
				}
				if err := writeShiftEvent(w, shift); err != nil {
					if logg != nil {
						logg.Warn(ctx, fmt.Sprintf("shift stream write failed: %v", err))
					}
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeShiftEvent(w http.ResponseWriter, shift *models.Shift) error {
	data := []byte("null")
	if shift != nil {
		encoded, err := json.Marshal(shift)
		if err != nil {
			return err
		}
		data = encoded
	}
	_, err := fmt.Fprintf(w, "event: shift\ndata: %s\n\n", data)
	return err
}
