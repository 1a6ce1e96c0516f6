package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/shiftledger/api/responses"
	"github.com/angelmondragon/shiftledger/api/validators"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/outbox"
)

type dlqLister interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
}

type dlqReplayer interface {
	Replay(ctx context.Context, eventID uuid.UUID) error
}

// AdminListDeadLetters lists shift events the publisher parked, newest first.
// Optional filters: event_type, reason, limit.
func AdminListDeadLetters(repo dlqLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := outbox.DLQFilter{Limit: limit}
		if raw := strings.TrimSpace(r.URL.Query().Get("event_type")); raw != "" {
			eventType, err := enums.ParseOutboxEventType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown event_type"))
				return
			}
			filter.EventType = eventType
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("reason")); raw != "" {
			reason, err := enums.ParseOutboxDLQErrorReason(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown reason"))
				return
			}
			filter.Reason = reason
		}

		rows, err := repo.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AdminReplayDeadLetter queues a parked event for the publisher again.
func AdminReplayDeadLetter(replayer dlqReplayer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := uuid.Parse(chi.URLParam(r, "eventId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid event id"))
			return
		}
		if err := replayer.Replay(r.Context(), eventID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{
			"event_id": eventID.String(),
			"status":   "requeued",
		})
	}
}
