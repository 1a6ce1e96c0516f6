package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateShift        OutboxAggregateType = "shift"
	AggregateCashMovement OutboxAggregateType = "cash_movement"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateShift,
	AggregateCashMovement,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event carried through the outbox.
type OutboxEventType string

const (
	EventShiftOpened          OutboxEventType = "shift_opened"
	EventShiftClosed          OutboxEventType = "shift_closed"
	EventShiftTerminated      OutboxEventType = "shift_terminated"
	EventCashMovementRecorded OutboxEventType = "cash_movement_recorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventShiftOpened,
	EventShiftClosed,
	EventShiftTerminated,
	EventCashMovementRecorded,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
