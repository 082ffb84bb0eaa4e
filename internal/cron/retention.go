package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
)

const (
	defaultJournalRetentionDays = 365
	defaultOutboxRetentionDays  = 30
	defaultOutboxGiveUpAttempts = 10
	day                         = 24 * time.Hour
)

// retentionJob deletes rows that fell out of a rolling window. Inventory rows
// are never pruned; only the journal and the outbox grow without bound.
type retentionJob struct {
	name    string
	logg    *logger.Logger
	metrics *metrics.CronJobMetrics
	days    int
	now     func() time.Time
	prune   func(ctx context.Context, cutoff time.Time) (int64, error)
	fields  map[string]any
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.days) * day)
	deleted, err := j.prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.metrics.AddAffected(j.name, deleted)

	fields := map[string]any{
		"cutoff":         cutoff.Format(time.RFC3339),
		"retention_days": j.days,
		"rows_deleted":   deleted,
	}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "retention sweep done")
	return nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type journalPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

type JournalRetentionJobParams struct {
	Logger        *logger.Logger
	Journal       journalPruner
	Metrics       *metrics.CronJobMetrics
	RetentionDays int
}

// NewJournalRetentionJob prunes movement journal entries older than
// RetentionDays (365 by default).
func NewJournalRetentionJob(p JournalRetentionJobParams) (Job, error) {
	if p.Logger == nil || p.Journal == nil {
		return nil, errors.New("cron: journal retention needs a logger and the movement journal")
	}
	days := positiveOr(p.RetentionDays, defaultJournalRetentionDays)
	return &retentionJob{
		name:    "journal-retention",
		logg:    p.Logger,
		metrics: p.Metrics,
		days:    days,
		now:     time.Now,
		prune: func(ctx context.Context, _ time.Time) (int64, error) {
			return p.Journal.Prune(ctx, time.Duration(days)*day)
		},
	}, nil
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxSweeper interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    outboxSweeper
	Metrics       *metrics.CronJobMetrics
	RetentionDays int
	// GiveUpAttempts must match the publisher's max attempts so rows it
	// abandoned are swept along with published ones.
	GiveUpAttempts int
}

// NewOutboxRetentionJob deletes published and abandoned outbox rows older than
// RetentionDays. Pending rows are kept whatever their age.
func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	if p.Logger == nil || p.DB == nil || p.Repository == nil {
		return nil, errors.New("cron: outbox retention needs a logger, a tx runner and the outbox repository")
	}
	attempts := positiveOr(p.GiveUpAttempts, defaultOutboxGiveUpAttempts)
	return &retentionJob{
		name:    "outbox-retention",
		logg:    p.Logger,
		metrics: p.Metrics,
		days:    positiveOr(p.RetentionDays, defaultOutboxRetentionDays),
		now:     time.Now,
		fields:  map[string]any{"give_up_attempts": attempts},
		prune: func(ctx context.Context, cutoff time.Time) (deleted int64, err error) {
			err = p.DB.WithTx(ctx, func(tx *gorm.DB) error {
				deleted, err = p.Repository.DeletePublishedBefore(ctx, tx, cutoff, attempts)
				return err
			})
			return deleted, err
		},
	}, nil
}
