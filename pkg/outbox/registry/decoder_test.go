package registry

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shiftledger/pkg/enums"
	"github.com/angelmondragon/shiftledger/pkg/outbox/payloads"
)

func movementDecoders() *Decoders {
	d := NewDecoders()
	RegisterJSON[payloads.CashMovementRecordedEvent](d, enums.EventCashMovementRecorded, 1)
	return d
}

func TestDecodersDispatchByVersion(t *testing.T) {
	d := movementDecoders()
	data := []byte(`{"store_id":"store-1","type":"out","amount":"20000","reason":"Beli galon"}`)

	out, err := d.Decode(enums.EventCashMovementRecorded, 1, data)
	require.NoError(t, err)
	event, ok := out.(*payloads.CashMovementRecordedEvent)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, "Beli galon", event.Reason)
	assert.Equal(t, enums.CashMovementOut, event.Type)

	_, err = d.Decode(enums.EventCashMovementRecorded, 2, data)
	assert.True(t, errors.Is(err, ErrNoDecoder))
	_, err = d.Decode(enums.EventShiftClosed, 1, data)
	assert.True(t, errors.Is(err, ErrNoDecoder))
}

func TestDecodeMessageDefaultsVersion(t *testing.T) {
	d := movementDecoders()
	id := uuid.New()
	raw := []byte(`{"eventId":"` + id.String() + `","data":{"store_id":"store-1","type":"in","amount":"5000","reason":"modal"}}`)

	msg, err := d.DecodeMessage(enums.EventCashMovementRecorded, raw)
	require.NoError(t, err)
	assert.Equal(t, id, msg.EventID)
	event := msg.Payload.(*payloads.CashMovementRecordedEvent)
	assert.Equal(t, "store-1", event.StoreID)
}

func TestDecodeMessageRejectsBadEnvelopes(t *testing.T) {
	d := movementDecoders()
	for name, raw := range map[string]string{
		"not json":     `{`,
		"bad event id": `{"eventId":"nope","version":1,"data":{}}`,
		"bad payload":  `{"eventId":"` + uuid.NewString() + `","version":1,"data":{"amount":[]}}`,
	} {
		_, err := d.DecodeMessage(enums.EventCashMovementRecorded, []byte(raw))
		assert.Error(t, err, name)
	}
}
