package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/petalroute/petalroute-backend/internal/settlements"
	"github.com/petalroute/petalroute-backend/pkg/logger"
)

type settlementBatchRunner interface {
	RunBatch(ctx context.Context, period settlements.Period) (*settlements.BatchResult, error)
}

// SettlementJobParams configure the weekly settlement batch job.
type SettlementJobParams struct {
	Logger   *logger.Logger
	Batch    settlementBatchRunner
	Weekday  time.Weekday
	Hour     int
	Location *time.Location
	Now      func() time.Time
}

// NewSettlementJob builds the job that settles the most recent closed weekly
// window. The job runs every worker tick but only acts during the configured
// boundary hour; claimed orders are never re-selected, so a duplicate fire
// inside that hour settles nothing twice.
func NewSettlementJob(params SettlementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Batch == nil {
		return nil, fmt.Errorf("settlement batch runner required")
	}
	if params.Hour < 0 || params.Hour > 23 {
		return nil, fmt.Errorf("boundary hour must be in [0,23], got %d", params.Hour)
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &settlementJob{
		logg:    params.Logger,
		batch:   params.Batch,
		weekday: params.Weekday,
		hour:    params.Hour,
		loc:     loc,
		now:     now,
	}, nil
}

type settlementJob struct {
	logg    *logger.Logger
	batch   settlementBatchRunner
	weekday time.Weekday
	hour    int
	loc     *time.Location
	now     func() time.Time
}

func (j *settlementJob) Name() string { return "weekly-settlement" }

func (j *settlementJob) Run(ctx context.Context) error {
	now := j.now()
	if !settlements.DueNow(now, j.weekday, j.hour, j.loc) {
		return nil
	}

	period := settlements.WeeklyPeriod(now, j.weekday, j.hour, j.loc)
	result, err := j.batch.RunBatch(ctx, period)
	if result != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"period":  period.String(),
			"created": len(result.Created),
			"skipped": result.Skipped,
			"failed":  result.Failed,
		})
		j.logg.Info(logCtx, "settlement batch finished")
	}
	if err != nil {
		return fmt.Errorf("settlement batch for %s: %w", period, err)
	}
	return nil
}
