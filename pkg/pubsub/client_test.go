package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shiftledger/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		project string
		kind    resourceKind
		name    string
		want    string
	}{
		{"proj", kindTopic, "shift-events", "projects/proj/topics/shift-events"},
		{"proj", kindTopic, "projects/other/topics/t", "projects/other/topics/t"},
		{"proj", kindSubscription, " ledger ", "projects/proj/subscriptions/ledger"},
		{"proj", kindSubscription, "projects/other/topics/t", "projects/proj/subscriptions/projects/other/topics/t"},
		{"proj", kindSubscription, " ", ""},
		{"", kindTopic, "t", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, resourceName(tc.project, tc.kind, tc.name), "%s %s", tc.kind, tc.name)
	}
}

func TestNewClientValidatesInputs(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "proj"}, config.PubSubConfig{}, nil, CheckSubscription(" "))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription name is required")
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t"))
	assert.Nil(t, c.ShiftEventsPublisher())
	assert.Nil(t, c.Subscription("s"))
	assert.Nil(t, c.LedgerMirrorSubscription())
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}

func TestClientOptionsPrecedence(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/key.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/key.json"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}
