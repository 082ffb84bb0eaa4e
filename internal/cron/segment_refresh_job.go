package cron

import (
	"context"
	"fmt"

	"github.com/harvestdesk/farmops-backend/internal/customers"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
)

type segmenter interface {
	Calculate(ctx context.Context) ([]customers.Score, error)
	Apply(ctx context.Context, updates []customers.SegmentUpdate) (*customers.ApplyResult, error)
}

type SegmentRefreshJobParams struct {
	Logger   *logger.Logger
	Segments segmenter
	Metrics  *metrics.CronJobMetrics
	// AutoApply writes changed segments. Off, the job only logs the preview.
	AutoApply bool
}

func NewSegmentRefreshJob(params SegmentRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Segments == nil {
		return nil, fmt.Errorf("segmentation service required")
	}
	return &segmentRefreshJob{
		logg:      params.Logger,
		segments:  params.Segments,
		metrics:   params.Metrics,
		autoApply: params.AutoApply,
	}, nil
}

type segmentRefreshJob struct {
	logg      *logger.Logger
	segments  segmenter
	metrics   *metrics.CronJobMetrics
	autoApply bool
}

func (j *segmentRefreshJob) Name() string { return "segment-refresh" }

func (j *segmentRefreshJob) Run(ctx context.Context) error {
	scores, err := j.segments.Calculate(ctx)
	if err != nil {
		return fmt.Errorf("calculate segments: %w", err)
	}

	counts := map[string]int{}
	var changed []customers.SegmentUpdate
	for _, s := range scores {
		counts[s.Segment.String()]++
		if s.Segment != s.CurrentSegment {
			changed = append(changed, customers.SegmentUpdate{ID: s.ID, Segment: s.Segment.String()})
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"customers":  len(scores),
		"changed":    len(changed),
		"segments":   counts,
		"auto_apply": j.autoApply,
	})
	if !j.autoApply || len(changed) == 0 {
		j.logg.Info(logCtx, "segment preview computed")
		return nil
	}

	result, err := j.segments.Apply(ctx, changed)
	if err != nil {
		return fmt.Errorf("apply segments: %w", err)
	}
	j.metrics.AddAffected(j.Name(), int64(result.Applied))
	if err := result.Err(); err != nil {
		return fmt.Errorf("apply segments: %d of %d failed: %w", len(result.Failed), len(changed), err)
	}
	j.logg.Info(j.logg.WithField(logCtx, "applied", result.Applied), "segments refreshed")
	return nil
}
