package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/shiftledger/pkg/config"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	"github.com/angelmondragon/shiftledger/pkg/outbox"
	"github.com/angelmondragon/shiftledger/pkg/outbox/payloads"
)

// EventDescriptor is where an event type is published and which aggregate
// it must be attached to.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row checked against its descriptor, with the
// payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry is the publishing side of the event catalog. Payloads are
// decoded with the same Decoders consumers use, so a row the publisher
// accepts is one a consumer can read.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *Decoders
}

// NonRetryableError marks rows that no amount of retrying will publish.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// IsNonRetryable reports whether err's chain holds a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.ShiftEventsTopic
	if topic == "" {
		return nil, errors.New("shift events topic is required")
	}

	decoders := NewDecoders()
	RegisterJSON[payloads.ShiftOpenedEvent](decoders, enums.EventShiftOpened, outbox.CurrentVersion)
	RegisterJSON[payloads.ShiftClosedEvent](decoders, enums.EventShiftClosed, outbox.CurrentVersion)
	RegisterJSON[payloads.ShiftTerminatedEvent](decoders, enums.EventShiftTerminated, outbox.CurrentVersion)
	RegisterJSON[payloads.CashMovementRecordedEvent](decoders, enums.EventCashMovementRecorded, outbox.CurrentVersion)

	routes := map[enums.OutboxEventType]EventDescriptor{}
	for eventType, aggregate := range map[enums.OutboxEventType]enums.OutboxAggregateType{
		enums.EventShiftOpened:          enums.AggregateShift,
		enums.EventShiftClosed:          enums.AggregateShift,
		enums.EventShiftTerminated:      enums.AggregateShift,
		enums.EventCashMovementRecorded: enums.AggregateCashMovement,
	} {
		routes[eventType] = EventDescriptor{EventType: eventType, AggregateType: aggregate, Topic: topic}
	}
	return &EventRegistry{routes: routes, decoders: decoders}, nil
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	resolved, err := r.resolve(event)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	return resolved, nil
}

func (r *EventRegistry) resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, errors.New("unsupported event type")
	case desc.AggregateType != event.AggregateType:
		return nil, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, errors.New("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	if event.ID != uuid.Nil && envelope.EventID != event.ID.String() {
		return nil, fmt.Errorf("envelope event id %s does not match row %s", envelope.EventID, event.ID)
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
