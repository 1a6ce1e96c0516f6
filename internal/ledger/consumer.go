package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/shiftledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/outbox/payloads"
	"github.com/angelmondragon/shiftledger/pkg/outbox/registry"
)

const ledgerMirrorConsumer = "ledger-mirror"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyChecker interface {
	Processed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer drains cash_movement_recorded events into the general ledger.
// Other shift events on the topic are acknowledged and skipped.
type Consumer struct {
	subscription receiver
	decoders     *registry.Decoders
	service      Service
	manager      idempotencyChecker
	outcomes     outcomeRecorder
	logg         *logger.Logger
}

type outcomeRecorder interface {
	ObserveOutcome(outcome string)
}

type noopOutcomes struct{}

func (noopOutcomes) ObserveOutcome(string) {}

const (
	outcomeMirrored  = "mirrored"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"
	outcomeDropped   = "dropped"
	outcomeRetried   = "retried"
)

// NewConsumer builds a ledger mirror consumer.
func NewConsumer(subscription receiver, service Service, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("ledger mirror subscription is required")
	}
	if service == nil {
		return nil, errors.New("ledger service is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		decoders:     NewDecoders(),
		service:      service,
		manager:      manager,
		outcomes:     noopOutcomes{},
		logg:         logg,
	}, nil
}

// WithMetrics records the outcome of every delivery on m.
func (c *Consumer) WithMetrics(m outcomeRecorder) *Consumer {
	if m != nil {
		c.outcomes = m
	}
	return c
}

// NewDecoders registers the payload versions the ledger mirror understands.
func NewDecoders() *registry.Decoders {
	decoders := registry.NewDecoders()
	registry.RegisterJSON[payloads.CashMovementRecordedEvent](decoders, enums.EventCashMovementRecorded, 1)
	return decoders
}

// Run consumes messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		res := c.process(innerCtx, msg)
		c.outcomes.ObserveOutcome(res.outcome)
		if res.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack    bool
	outcome string
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	eventType := strings.TrimSpace(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != string(enums.EventCashMovementRecorded) {
		c.logg.Debug(logCtx, "skipping event not mirrored to ledger")
		return processResult{outcome: outcomeSkipped}
	}

	decoded, err := c.decoders.DecodeMessage(enums.EventCashMovementRecorded, msg.Data)
	if err != nil {
		// Redelivery cannot repair a malformed envelope.
		c.logg.Error(logCtx, "failed to decode cash movement event", err)
		return processResult{outcome: outcomeDropped}
	}
	eventID := decoded.EventID
	logCtx = c.logg.WithEventID(logCtx, eventID.String())

	event, ok := decoded.Payload.(*payloads.CashMovementRecordedEvent)
	if !ok {
		c.logg.Error(logCtx, "unexpected payload type", fmt.Errorf("got %T", decoded.Payload))
		return processResult{outcome: outcomeDropped}
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"store_id":    event.StoreID,
		"shift_id":    event.ShiftID.String(),
		"movement_id": event.MovementID.String(),
	})

	// The ledger entry is unique on ref_id, so the Redis mark only saves a
	// write. It is set after the mirror succeeds and never gates a retry.
	already, err := c.manager.Processed(logCtx, ledgerMirrorConsumer, eventID)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "idempotency check failed, mirroring anyway")
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{outcome: outcomeDuplicate}
	}

	result, err := c.service.MirrorMovement(logCtx, *event)
	if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		// Redelivery cannot fix a malformed movement.
		c.logg.Error(logCtx, "dropping invalid cash movement event", err)
		return processResult{outcome: outcomeDropped}
	}
	if err != nil {
		c.logg.Error(logCtx, "ledger mirror failed", err)
		return processResult{nack: true, outcome: outcomeRetried}
	}
	if err := c.manager.MarkProcessed(logCtx, ledgerMirrorConsumer, eventID); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "failed to mark event processed")
	}
	if result.Duplicate {
		c.logg.Info(logCtx, "ledger entry already present")
		return processResult{outcome: outcomeDuplicate}
	}
	c.logg.Info(c.logg.WithField(logCtx, "ledger_entry_id", result.Entry.ID.String()), "cash movement mirrored to ledger")
	return processResult{outcome: outcomeMirrored}
}
