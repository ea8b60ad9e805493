package sweeper

import (
	"context"
	"time"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos"
	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	jobstatus "github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/envutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

const InterruptedMessage = "grading was interrupted"

type Config struct {
	Interval      time.Duration
	StaleAfter    time.Duration
	MaxDeliveries int
	BatchSize     int
}

func LoadConfig() Config {
	return Config{
		Interval:      envutil.Duration("REPORT_SWEEP_INTERVAL", time.Minute),
		StaleAfter:    envutil.Duration("JOB_STALE_AFTER", 10*time.Minute),
		MaxDeliveries: envutil.Int("GRADING_MAX_DELIVERIES", 3),
		BatchSize:     100,
	}
}

// Sweeper finds reports left in processing with no live grading job. It
// enqueues another delivery, or fails the report once MaxDeliveries job rows exist.
type Sweeper struct {
	log     *logger.Logger
	reports repos.ReportRepo
	jobRuns repos.JobRunRepo
	jobs    services.JobService
	notify  services.ReportNotifier
	cfg     Config
	now     func() time.Time
}

type Result struct {
	Requeued int
	Failed   int
	Skipped  int
}

func New(baseLog *logger.Logger, reports repos.ReportRepo, jobRuns repos.JobRunRepo, jobs services.JobService, notify services.ReportNotifier, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.MaxDeliveries < 1 {
		cfg.MaxDeliveries = 1
	}
	return &Sweeper{
		log:     baseLog.With("component", "ReportSweeper"),
		reports: reports,
		jobRuns: jobRuns,
		jobs:    jobs,
		notify:  notify,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(s.cfg.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				res, err := s.SweepOnce(ctx)
				if err != nil {
					if ctx.Err() == nil {
						s.log.Warn("Report sweep failed", "error", err)
					}
					continue
				}
				if res.Requeued > 0 || res.Failed > 0 {
					s.log.Info("Report sweep recovered reports", "requeued", res.Requeued, "failed", res.Failed, "skipped", res.Skipped)
				}
			}
		}
	}()
}

func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	var res Result
	dbc := dbctx.Context{Ctx: ctx}
	stale, err := s.reports.ListStaleProcessing(dbc, s.now().Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
	if err != nil {
		return res, err
	}
	for _, rep := range stale {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		outcome, err := s.recover(dbc, rep)
		if err != nil {
			s.log.Warn("Report recovery failed", "report_id", rep.ID, "error", err)
			continue
		}
		switch outcome {
		case outcomeRequeued:
			res.Requeued++
		case outcomeFailed:
			res.Failed++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeRequeued
	outcomeFailed
)

func (s *Sweeper) recover(dbc dbctx.Context, rep *types.Report) (outcome, error) {
	live, err := s.jobRuns.HasRunnableForEntity(dbc, rep.OwnerUserID, jobstatus.EntityReport, rep.ID, jobstatus.JobTypeGradeReport)
	if err != nil {
		return outcomeSkipped, err
	}
	if live {
		return outcomeSkipped, nil
	}

	deliveries, err := s.jobRuns.CountForEntity(dbc, jobstatus.EntityReport, rep.ID, jobstatus.JobTypeGradeReport)
	if err != nil {
		return outcomeSkipped, err
	}
	if deliveries >= int64(s.cfg.MaxDeliveries) {
		ok, err := s.reports.MarkFailed(dbc, rep.ID, InterruptedMessage)
		if err != nil || !ok {
			return outcomeSkipped, err
		}
		s.log.Warn("Report failed after exhausting deliveries", "report_id", rep.ID, "deliveries", deliveries)
		if s.notify != nil {
			rep.Status = types.ReportFailed
			rep.Error = InterruptedMessage
			rep.GradingResult = nil
			s.notify.ReportUpdated(rep.OwnerUserID, rep)
		}
		return outcomeFailed, nil
	}

	id := rep.ID
	if _, err := s.jobs.Enqueue(dbc, rep.OwnerUserID, jobstatus.JobTypeGradeReport, jobstatus.EntityReport, &id, map[string]any{
		"report_id": id.String(),
		"recovered": true,
	}); err != nil {
		return outcomeSkipped, err
	}
	if err := s.reports.Touch(dbc, id); err != nil {
		s.log.Warn("Touch after requeue failed", "report_id", id, "error", err)
	}
	return outcomeRequeued, nil
}
