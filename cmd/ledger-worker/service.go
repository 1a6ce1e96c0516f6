package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/shiftledger/pkg/logger"
)

const (
	restartBackoff    = 2 * time.Second
	maxRestartBackoff = time.Minute
)

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	PubSub   pinger
	Consumer consumer
	// Backoff overrides restartBackoff, for tests.
	Backoff time.Duration
}

type dependency struct {
	name string
	p    pinger
}

// Service runs the ledger mirror consumer once its dependencies answer. A
// subscription stream dropped by a transient Pub/Sub error is reopened with
// backoff; any other consumer error stops the worker.
type Service struct {
	logg     *logger.Logger
	deps     []dependency
	consumer consumer
	backoff  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("ledger consumer is required")
	}
	deps := []dependency{{"database", params.DB}, {"redis", params.Redis}, {"pubsub", params.PubSub}}
	for _, dep := range deps {
		if dep.p == nil {
			return nil, fmt.Errorf("%s client is required", dep.name)
		}
	}
	backoff := params.Backoff
	if backoff <= 0 {
		backoff = restartBackoff
	}
	return &Service{logg: params.Logger, deps: deps, consumer: params.Consumer, backoff: backoff}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.p.Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.name), "ledger_worker.dependency_unready", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "ledger_worker.ready")
	return nil
}

// Run blocks until the context is canceled or the consumer fails for good.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	wait := s.backoff
	for {
		err := s.consumer.Run(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.Canceled):
			return err
		case err == nil:
			s.logg.Warn(ctx, "ledger_worker.receive_returned")
		case !transient(err):
			s.logg.Error(ctx, "ledger_worker.consumer_failed", err)
			return err
		default:
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"error": err.Error(), "backoff": wait.String()}), "ledger_worker.consumer_restarting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRestartBackoff)
	}
}

// transient reports gRPC failures the Pub/Sub client gives up on but a fresh
// stream usually survives.
func transient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return true
	}
	return false
}
