package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/config"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	maxJitter          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publishMetrics interface {
	ObservePublished(eventType string, createdAt time.Time)
	IncFailed(eventType string)
	IncDeadLettered(reason string)
	IncDeferred()
}

// storeScoped payloads name the store they belong to. A store is the Pub/Sub
// ordering key, so its events reach consumers in emit order.
type storeScoped interface {
	StoreRef() string
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	PubSub        pubSubClient
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       publishMetrics
	// PublisherFor overrides how topics map to publishers. Tests use it.
	PublisherFor func(topic string) publisher
}

// Service drains outbox_events into Pub/Sub. Rows are claimed with
// SKIP LOCKED inside one transaction per batch, so several replicas can run.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	metrics      publishMetrics
	publisherFor func(topic string) publisher
	batchSize    int
	maxAttempts  int
	poll         time.Duration
	now          func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	case p.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	s := &Service{
		logg:         p.Logger,
		db:           p.DB,
		pubsub:       p.PubSub,
		repo:         p.Repository,
		registry:     p.Registry,
		dlq:          p.DLQRepository,
		metrics:      p.Metrics,
		publisherFor: p.PublisherFor,
		batchSize:    p.Config.Outbox.BatchSize,
		maxAttempts:  p.Config.Outbox.MaxAttempts,
		poll:         time.Duration(p.Config.Outbox.PollIntervalMS) * time.Millisecond,
		now:          time.Now,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.poll <= 0 {
		s.poll = defaultPoll
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.publisherFor == nil {
		s.publisherFor = func(topic string) publisher {
			return newGCPPublisher(p.PubSub.Publisher(topic))
		}
	}
	return s, nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// the next one; an empty or failed batch waits, backing off on failures.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"batch_size":   s.batchSize,
		"max_attempts": s.maxAttempts,
		"poll":         s.poll.String(),
	}), "outbox.publisher_started")

	wait := s.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats, err := s.drain(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case stats.claimed > 0:
			s.logg.Debug(s.logg.WithFields(ctx, stats.fields()), "outbox.batch_done")
			wait = s.poll
			if stats.claimed == s.batchSize {
				continue
			}
		default:
			wait = s.poll
		}
		if err := sleep(ctx, wait+rand.N(maxJitter)); err != nil {
			return err
		}
	}
}

type batchStats struct {
	claimed, published, retried, deadLettered, deferred int
}

func (b batchStats) fields() map[string]any {
	return map[string]any{
		"claimed":       b.claimed,
		"published":     b.published,
		"retried":       b.retried,
		"dead_lettered": b.deadLettered,
		"deferred":      b.deferred,
	}
}

// drain claims one batch and settles every row in it. Once a store's event
// fails, that store's later events in the batch are left untouched so they
// cannot overtake it.
func (s *Service) drain(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		stats.claimed = len(events)
		blocked := map[string]bool{}

		for _, event := range events {
			resolved, err := s.registry.Resolve(event)
			if err != nil {
				if err := s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err); err != nil {
					return err
				}
				stats.deadLettered++
				continue
			}
			store := storeOf(resolved)
			if store != "" && blocked[store] {
				stats.deferred++
				s.metrics.IncDeferred()
				continue
			}

			logCtx := s.logg.WithFields(ctx, eventFields(event, resolved, store))
			pubErr := s.publish(ctx, event, resolved, store)
			switch {
			case pubErr == nil:
				if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
					return fmt.Errorf("mark published %s: %w", event.ID, err)
				}
				stats.published++
				s.metrics.ObservePublished(string(event.EventType), event.CreatedAt)
				s.logg.Info(logCtx, "outbox.event_published")
				continue
			case registry.IsNonRetryable(pubErr):
				if err := s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr); err != nil {
					return err
				}
				stats.deadLettered++
			case event.AttemptCount+1 >= s.maxAttempts:
				terminal := fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, pubErr)
				if err := s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminal); err != nil {
					return err
				}
				stats.deadLettered++
			default:
				if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
					return fmt.Errorf("mark failed %s: %w", event.ID, err)
				}
				stats.retried++
				s.metrics.IncFailed(string(event.EventType))
				s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
					"error":         pubErr.Error(),
					"attempt_count": event.AttemptCount + 1,
				}), "outbox.publish_retry")
			}
			if store != "" {
				blocked[store] = true
			}
		}
		return nil
	})
	return stats, err
}

// deadLetter parks event in the DLQ and stops further attempts on the row.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.IncDeadLettered(reason.String())
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"outbox_id":    event.ID.String(),
		"event_type":   event.EventType,
		"error_reason": reason,
		"error":        msg,
	}), "outbox.event_dead_lettered")
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent, store string) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFor(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if store != "" {
		msg.Attributes["store_id"] = store
		msg.OrderingKey = store
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for %s returned no result", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func storeOf(resolved *registry.ResolvedEvent) string {
	if scoped, ok := resolved.Payload.(storeScoped); ok {
		return scoped.StoreRef()
	}
	return ""
}

func eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent, store string) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
		"topic":         resolved.Descriptor.Topic,
		"event_id":      resolved.Envelope.EventID,
	}
	if store != "" {
		fields["store_id"] = store
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopMetrics struct{}

func (noopMetrics) ObservePublished(string, time.Time) {}
func (noopMetrics) IncFailed(string)                   {}
func (noopMetrics) IncDeadLettered(string)             {}
func (noopMetrics) IncDeferred()                       {}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return orderedResult{res: g.pub.Publish(ctx, msg), pub: g.pub, key: msg.OrderingKey}
}

// orderedResult resumes a paused ordering key after a failed publish. The
// client pauses a key on error, and the next poll retries it.
type orderedResult struct {
	res *gcppubsub.PublishResult
	pub *gcppubsub.Publisher
	key string
}

func (r orderedResult) Get(ctx context.Context) (string, error) {
	id, err := r.res.Get(ctx)
	if err != nil && r.key != "" {
		r.pub.ResumePublish(r.key)
	}
	return id, err
}
