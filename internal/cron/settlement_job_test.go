package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petalroute/petalroute-backend/internal/settlements"
	"github.com/petalroute/petalroute-backend/pkg/logger"
)

type fakeBatchRunner struct {
	periods []settlements.Period
	result  *settlements.BatchResult
	err     error
}

func (f *fakeBatchRunner) RunBatch(ctx context.Context, period settlements.Period) (*settlements.BatchResult, error) {
	f.periods = append(f.periods, period)
	if f.result == nil {
		return &settlements.BatchResult{}, f.err
	}
	return f.result, f.err
}

func newSettlementJobTest(t *testing.T, batch *fakeBatchRunner, now time.Time) Job {
	t.Helper()
	job, err := NewSettlementJob(SettlementJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Batch:    batch,
		Weekday:  time.Monday,
		Hour:     9,
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewSettlementJob: %v", err)
	}
	return job
}

func TestSettlementJobRunsDuringBoundaryHour(t *testing.T) {
	// Monday 09:30: inside the boundary hour
	now := time.Date(2025, 9, 8, 9, 30, 0, 0, time.UTC)
	batch := &fakeBatchRunner{}
	job := newSettlementJobTest(t, batch, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(batch.periods) != 1 {
		t.Fatalf("expected 1 batch run, got %d", len(batch.periods))
	}
	period := batch.periods[0]
	wantEnd := time.Date(2025, 9, 8, 9, 0, 0, 0, time.UTC)
	if !period.End.Equal(wantEnd) {
		t.Fatalf("unexpected period end: %s", period.End)
	}
	if !period.Start.Equal(wantEnd.AddDate(0, 0, -7)) {
		t.Fatalf("unexpected period start: %s", period.Start)
	}
}

func TestSettlementJobSkipsOutsideBoundaryHour(t *testing.T) {
	// Monday 10:00: one hour past the boundary
	now := time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC)
	batch := &fakeBatchRunner{}
	job := newSettlementJobTest(t, batch, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(batch.periods) != 0 {
		t.Fatalf("expected no batch runs, got %d", len(batch.periods))
	}
}

func TestSettlementJobPropagatesBatchError(t *testing.T) {
	now := time.Date(2025, 9, 8, 9, 0, 0, 0, time.UTC)
	batch := &fakeBatchRunner{err: errors.New("merchant batch halted")}
	job := newSettlementJobTest(t, batch, now)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error from failed batch")
	}
}
