package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/logger"
)

const (
	defaultPublishedRetentionDays  = 30
	defaultDeadLetterRetentionDays = 90
	// Unpublished rows are only purged once they burned this many attempts.
	defaultRetentionMinAttempts = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configures the outbox cleanup. DeadLetters is
// optional; without it parked events are never purged.
type OutboxRetentionJobParams struct {
	Logger         *logger.Logger
	DB             txRunner
	Published      publishedPurger
	DeadLetters    deadLetterPurger
	PublishedDays  int
	DeadLetterDays int
	MinAttempts    int
}

type outboxRetentionJob struct {
	logg           *logger.Logger
	db             txRunner
	published      publishedPurger
	deadLetters    deadLetterPurger
	publishedDays  int
	deadLetterDays int
	minAttempts    int
	now            func() time.Time
}

func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Published == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:           p.Logger,
		db:             p.DB,
		published:      p.Published,
		deadLetters:    p.DeadLetters,
		publishedDays:  positiveOr(p.PublishedDays, defaultPublishedRetentionDays),
		deadLetterDays: positiveOr(p.DeadLetterDays, defaultDeadLetterRetentionDays),
		minAttempts:    positiveOr(p.MinAttempts, defaultRetentionMinAttempts),
		now:            time.Now,
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	publishedCutoff := now.AddDate(0, 0, -j.publishedDays)
	deadLetterCutoff := now.AddDate(0, 0, -j.deadLetterDays)

	var published, parked int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.published.DeletePublishedBefore(ctx, tx, publishedCutoff, j.minAttempts)
		if err != nil {
			return fmt.Errorf("published rows: %w", err)
		}
		published = n
		if j.deadLetters == nil {
			return nil
		}
		n, err = j.deadLetters.DeleteFailedBefore(ctx, tx, deadLetterCutoff)
		if err != nil {
			return fmt.Errorf("dead letters: %w", err)
		}
		parked = n
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_cutoff":     publishedCutoff,
		"dead_letter_cutoff":   deadLetterCutoff,
		"published_deleted":    published,
		"dead_letters_deleted": parked,
	}), "cron.outbox_retention_done")
	return nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
