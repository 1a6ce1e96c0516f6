package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Replayer hands a dead-lettered event back to the publisher. Typical cause:
// the shift events topic was missing or misconfigured when the event fired.
type Replayer struct {
	db   txRunner
	dlq  *DLQRepository
	logg *logger.Logger
}

func NewReplayer(db txRunner, dlq *DLQRepository, logg *logger.Logger) (*Replayer, error) {
	if db == nil || dlq == nil {
		return nil, errors.New("db and dlq repository are required")
	}
	return &Replayer{db: db, dlq: dlq, logg: logg}, nil
}

// Replay resets the outbox row's attempts so the next publisher poll picks it
// up, recreating the row from the DLQ payload when retention already removed
// it. The DLQ rows for the event are deleted in the same transaction.
func (r *Replayer) Replay(ctx context.Context, eventID uuid.UUID) error {
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		dead, err := r.dlq.findByEventID(tx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeWrite, err, "load dlq entry")
		}
		if dead == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no dead-lettered event with that id")
		}

		var row models.OutboxEvent
		err = tx.Where("id = ?", eventID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.OutboxEvent{
				ID:            dead.EventID,
				EventType:     dead.EventType,
				AggregateType: dead.AggregateType,
				AggregateID:   dead.AggregateID,
				Payload:       dead.Payload,
			}
			if err := tx.Create(&row).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeWrite, err, "recreate outbox event")
			}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeWrite, err, "load outbox event")
		case row.PublishedAt != nil:
			return pkgerrors.New(pkgerrors.CodeConflict, "event was already published")
		default:
			if err := tx.Model(&models.OutboxEvent{}).Where("id = ?", eventID).
				Updates(map[string]any{"attempt_count": 0, "last_error": nil}).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeWrite, err, "requeue outbox event")
			}
		}

		if _, err := r.dlq.DeleteByEventIDTx(tx, eventID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeWrite, err, "clear dlq entry")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if r.logg != nil {
		r.logg.Info(r.logg.WithField(ctx, "event_id", eventID.String()), "outbox.dlq_replayed")
	}
	return nil
}
