package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who touched the shift: the cashier for normal
// operations, an admin for terminations.
type ActorRef struct {
	UserID  string `json:"userId"`
	StoreID string `json:"storeId,omitempty"`
	Role    string `json:"role,omitempty"`
}

// PayloadEnvelope wraps every shift event stored in outbox_events and
// published to Pub/Sub. EventID is what consumers dedupe on.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses raw and checks the fields every consumer relies on.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version <= 0 {
		return env, fmt.Errorf("envelope version missing")
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		return env, fmt.Errorf("envelope event id %q: %w", env.EventID, err)
	}
	if d := bytes.TrimSpace(env.Data); len(d) == 0 || bytes.Equal(d, []byte("null")) {
		return env, fmt.Errorf("envelope data missing")
	}
	return env, nil
}
