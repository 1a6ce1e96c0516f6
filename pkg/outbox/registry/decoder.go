package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/shiftledger/pkg/enums"
	"github.com/angelmondragon/shiftledger/pkg/outbox"
)

// ErrNoDecoder is returned for event type and version pairs nobody registered.
var ErrNoDecoder = errors.New("no decoder registered")

type decodeFunc func(json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders maps versioned shift events to payload types on the consuming
// side. Register everything before the first Decode; lookups are not locked.
type Decoders struct {
	byKey map[decoderKey]decodeFunc
}

func NewDecoders() *Decoders {
	return &Decoders{byKey: make(map[decoderKey]decodeFunc)}
}

// RegisterJSON teaches d to decode eventType at version into a *T.
func RegisterJSON[T any](d *Decoders, eventType enums.OutboxEventType, version int) {
	d.byKey[decoderKey{eventType, version}] = func(raw json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Decode runs the decoder registered for eventType at version.
func (d *Decoders) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	fn, ok := d.byKey[decoderKey{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("%s@v%d: %w", eventType, version, ErrNoDecoder)
	}
	return fn(data)
}

// Message is a Pub/Sub delivery decoded down to its typed payload.
type Message struct {
	EventID  uuid.UUID
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// DecodeMessage unpacks a published envelope. Envelopes written before
// versioning carry no version and are read as the current one.
func (d *Decoders) DecodeMessage(eventType enums.OutboxEventType, raw []byte) (*Message, error) {
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		return nil, fmt.Errorf("envelope event id %q: %w", env.EventID, err)
	}
	version := env.Version
	if version <= 0 {
		version = outbox.CurrentVersion
	}
	payload, err := d.Decode(eventType, version, env.Data)
	if err != nil {
		return nil, err
	}
	return &Message{EventID: eventID, Envelope: env, Payload: payload}, nil
}
