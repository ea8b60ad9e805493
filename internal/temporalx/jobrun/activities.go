package jobrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"gorm.io/gorm"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos"
	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	jobstatus "github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
	jobrt "github.com/checkyourpaper/checkyourpaper-backend/internal/jobs/runtime"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

type Activities struct {
	Log         *logger.Logger
	DB          *gorm.DB
	Jobs        repos.JobRunRepo
	Registry    *jobrt.Registry
	Notify      services.JobNotifier
	MaxAttempts int
}

// Tick runs one delivery of the job named by jobID through the shared handler
// registry and reports the row's state afterwards.
func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Jobs == nil || a.Registry == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}
	id, err := uuid.Parse(res.JobID)
	if err != nil || id == uuid.Nil {
		return res, fmt.Errorf("jobrun: invalid job_id %q", jobID)
	}
	log := a.Log
	if log == nil {
		log = logger.Nop()
	}

	job, err := a.loadJob(ctx, id)
	if err != nil {
		return res, err
	}
	if job == nil {
		return res, fmt.Errorf("jobrun: job %s not found", id)
	}

	maxAttempts := a.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	switch job.Status {
	case jobstatus.StatusSucceeded:
		return fill(res, job, maxAttempts), nil
	case jobstatus.StatusFailed:
		if job.Attempts >= maxAttempts {
			return fill(res, job, maxAttempts), nil
		}
	}

	stop := a.startHeartbeat(ctx, id)
	defer stop()

	now := time.Now()
	if _, err := a.Jobs.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx, Tx: a.DB}, id, []string{jobstatus.StatusSucceeded}, map[string]interface{}{
		"status":       jobstatus.StatusRunning,
		"attempts":     gorm.Expr("attempts + 1"),
		"locked_at":    now,
		"heartbeat_at": now,
	}); err != nil {
		return res, err
	}
	job.Status = jobstatus.StatusRunning
	job.Attempts++
	job.LockedAt = &now
	job.HeartbeatAt = &now

	jc := jobrt.NewContext(ctx, a.DB, job, a.Jobs, a.Notify)
	h, ok := a.Registry.Get(job.JobType)
	if !ok {
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("Job handler panic", "job_id", id, "job_type", job.JobType, "panic", r)
					jc.Fail("panic", fmt.Errorf("panic: %v", r))
				}
			}()
			if runErr := h.Run(jc); runErr != nil {
				jc.Fail("run", runErr)
			}
		}()
	}

	updated, err := a.loadJob(ctx, id)
	if err != nil {
		return res, err
	}
	if updated == nil {
		return res, fmt.Errorf("jobrun: job %s vanished during tick", id)
	}
	return fill(res, updated, maxAttempts), nil
}

func fill(res TickResult, job *types.JobRun, maxAttempts int) TickResult {
	res.Status = job.Status
	res.Stage = job.Stage
	res.Progress = job.Progress
	res.Message = job.Message
	res.Attempts = job.Attempts
	res.Exhausted = job.Status == jobstatus.StatusFailed && job.Attempts >= maxAttempts
	return res
}

func (a *Activities) loadJob(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	rows, err := a.Jobs.GetByIDs(dbctx.Context{Ctx: ctx, Tx: a.DB}, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, nil
	}
	return rows[0], nil
}

func (a *Activities) startHeartbeat(ctx context.Context, id uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		temporalHB := time.NewTicker(10 * time.Second)
		defer temporalHB.Stop()
		dbHB := time.NewTicker(30 * time.Second)
		defer dbHB.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-temporalHB.C:
				if activity.IsActivity(ctx) {
					activity.RecordHeartbeat(ctx)
				}
			case <-dbHB.C:
				_ = a.Jobs.Heartbeat(dbctx.Context{Ctx: ctx, Tx: a.DB}, id)
			}
		}
	}()
	return func() { close(done) }
}
