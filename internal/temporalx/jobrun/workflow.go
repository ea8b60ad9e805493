package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"

	jobstatus "github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
)

const pollInterval = 2 * time.Second

// Workflow drives the job whose id is the workflow id. A failed tick ends the
// run with an error so the workflow retry policy schedules the next delivery;
// once attempts are exhausted the workflow completes.
func Workflow(ctx workflow.Context) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    time.Minute,
	})

	for {
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, jobID).Get(ctx, &out); err != nil {
			return err
		}
		switch out.Status {
		case jobstatus.StatusSucceeded:
			return nil
		case jobstatus.StatusFailed:
			if out.Exhausted {
				workflow.GetLogger(ctx).Warn("Job attempts exhausted", "job_id", jobID, "attempts", out.Attempts)
				return nil
			}
			return fmt.Errorf("job failed (stage=%s attempt=%d)", out.Stage, out.Attempts)
		default:
			if err := workflow.Sleep(ctx, pollInterval); err != nil {
				return err
			}
		}
	}
}
