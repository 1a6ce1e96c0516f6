package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shiftledger/pkg/config"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	"github.com/angelmondragon/shiftledger/pkg/outbox"
	"github.com/angelmondragon/shiftledger/pkg/outbox/payloads"
)

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{ShiftEventsTopic: "shift-events"})
	require.NoError(t, err)
	return reg
}

func envelopeFor(t *testing.T, eventID uuid.UUID, version int, data any) json.RawMessage {
	t.Helper()
	raw, ok := data.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(data)
		require.NoError(t, err)
	}
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return out
}

func TestEventRegistryResolvesCashMovement(t *testing.T) {
	reg := newTestEventRegistry(t)
	rowID, movementID := uuid.New(), uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		ID:            rowID,
		EventType:     enums.EventCashMovementRecorded,
		AggregateType: enums.AggregateCashMovement,
		AggregateID:   movementID,
		Payload: envelopeFor(t, rowID, 1, payloads.CashMovementRecordedEvent{
			MovementID: movementID,
			ShiftID:    uuid.New(),
			StoreID:    "store-1",
			Type:       enums.CashMovementOut,
			Amount:     decimal.NewFromInt(20000),
			Reason:     "Beli galon",
			Category:   "General",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, "shift-events", resolved.Descriptor.Topic)
	assert.Equal(t, rowID.String(), resolved.Envelope.EventID)
	payload, ok := resolved.Payload.(*payloads.CashMovementRecordedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, movementID, payload.MovementID)
	assert.True(t, payload.Amount.Equal(decimal.NewFromInt(20000)))
}

func TestEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	assert.Error(t, err)
}

func TestEventRegistryRejectsUnpublishableRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	rowID := uuid.New()

	tests := []struct {
		name  string
		event models.OutboxEvent
	}{
		{"unknown event type", models.OutboxEvent{
			EventType: "shift_paused", AggregateType: enums.AggregateShift, AggregateID: uuid.New(),
			Payload: envelopeFor(t, uuid.New(), 1, map[string]string{"reason": "none"}),
		}},
		{"aggregate mismatch", models.OutboxEvent{
			EventType: enums.EventShiftOpened, AggregateType: enums.AggregateCashMovement, AggregateID: uuid.New(),
			Payload: envelopeFor(t, uuid.New(), 1, map[string]string{"store_id": "store-1"}),
		}},
		{"missing aggregate id", models.OutboxEvent{
			EventType: enums.EventShiftClosed, AggregateType: enums.AggregateShift,
			Payload: envelopeFor(t, uuid.New(), 1, map[string]string{}),
		}},
		{"null payload", models.OutboxEvent{
			EventType: enums.EventShiftTerminated, AggregateType: enums.AggregateShift, AggregateID: uuid.New(),
			Payload: envelopeFor(t, uuid.New(), 1, []byte("null")),
		}},
		{"envelope id differs from row", models.OutboxEvent{
			ID: rowID, EventType: enums.EventShiftOpened, AggregateType: enums.AggregateShift, AggregateID: uuid.New(),
			Payload: envelopeFor(t, uuid.New(), 1, map[string]string{"store_id": "store-1"}),
		}},
		{"unknown payload version", models.OutboxEvent{
			EventType: enums.EventShiftOpened, AggregateType: enums.AggregateShift, AggregateID: uuid.New(),
			Payload: envelopeFor(t, uuid.New(), 9, map[string]string{"store_id": "store-1"}),
		}},
		{"payload of wrong shape", models.OutboxEvent{
			EventType: enums.EventCashMovementRecorded, AggregateType: enums.AggregateCashMovement, AggregateID: uuid.New(),
			Payload: envelopeFor(t, uuid.New(), 1, []byte(`"just a string"`)),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Resolve(tt.event)
			require.Error(t, err)
			assert.True(t, IsNonRetryable(err), "expected non-retryable, got %T", err)
		})
	}
}

func TestIsNonRetryableSeesWrappedErrors(t *testing.T) {
	err := NewNonRetryableError(assert.AnError)
	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, IsNonRetryable(assert.AnError))
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}
