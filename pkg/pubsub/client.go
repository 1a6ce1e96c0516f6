package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/shiftledger/pkg/config"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

// Check names a topic or subscription that must exist before the client is
// handed out. Each binary checks only what it uses.
type Check struct {
	kind resourceKind
	name string
}

func CheckTopic(name string) Check        { return Check{kind: kindTopic, name: name} }
func CheckSubscription(name string) Check { return Check{kind: kindSubscription, name: name} }

// Client wraps a Pub/Sub v2 client. Publishers are cached per topic and
// stopped on Close so buffered shift events are flushed.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	checks    []Check

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, checks ...Check) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	for _, check := range checks {
		if strings.TrimSpace(check.name) == "" {
			return nil, fmt.Errorf("pubsub %s name is required", strings.TrimSuffix(string(check.kind), "s"))
		}
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     psClient,
		projectID:  projectID,
		cfg:        cfg,
		checks:     checks,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.verify(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{"project_id": projectID, "checked": len(checks)}), "pubsub.client_ready")
	return c, nil
}

func (c *Client) verify(ctx context.Context) error {
	for _, check := range c.checks {
		full := resourceName(c.projectID, check.kind, check.name)
		var err error
		switch check.kind {
		case kindTopic:
			_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		case kindSubscription:
			_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
		}
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("%s %q does not exist", check.kind, full)
		default:
			return fmt.Errorf("checking %s %q: %w", check.kind, full, err)
		}
	}
	return nil
}

// Ping re-runs the existence checks the client was built with.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.verify(ctx)
}

// Subscription returns a subscriber for an ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindSubscription, name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// LedgerMirrorSubscription feeds the general ledger mirror.
func (c *Client) LedgerMirrorSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.LedgerMirrorSubscription)
}

// Publisher returns the cached publisher for a topic. Message ordering is on
// so events sharing a store ordering key arrive in order.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindTopic, name)
	if full == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[full]; ok {
		return pub
	}
	pub := c.client.Publisher(full)
	pub.EnableMessageOrdering = true
	c.publishers[full] = pub
	return pub
}

// ShiftEventsPublisher publishes shift lifecycle and cash movement events.
func (c *Client) ShiftEventsPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.cfg.ShiftEventsTopic)
}

// Close flushes cached publishers, then releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for full, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, full)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// clientOptions prefers inline credentials, then a key file, then ambient
// application default credentials.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// resourceName expands a short ID under project. Names already in
// projects/<p>/<kind>/<id> form pass through untouched.
func resourceName(project string, kind resourceKind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+string(kind)+"/") {
		return n
	}
	if project = strings.TrimSpace(project); project == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, n)
}
