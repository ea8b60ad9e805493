package jobrun

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	jobstatus "github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
	jobrt "github.com/checkyourpaper/checkyourpaper-backend/internal/jobs/runtime"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

type oneJobRepo struct {
	job *types.JobRun
}

func (r *oneJobRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	return jobs, nil
}

func (r *oneJobRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	if r.job == nil || len(ids) == 0 || ids[0] != r.job.ID {
		return nil, nil
	}
	cp := *r.job
	return []*types.JobRun{&cp}, nil
}

func (r *oneJobRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay, stale time.Duration) (*types.JobRun, error) {
	return nil, nil
}

func (r *oneJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []string, updates map[string]interface{}) (bool, error) {
	for _, d := range disallowed {
		if r.job.Status == d {
			return false, nil
		}
	}
	if s, ok := updates["status"].(string); ok {
		r.job.Status = s
	}
	if _, ok := updates["attempts"]; ok {
		r.job.Attempts++
	}
	if s, ok := updates["stage"].(string); ok {
		r.job.Stage = s
	}
	return true, nil
}

func (r *oneJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error { return nil }

func (r *oneJobRepo) HasRunnableForEntity(dbc dbctx.Context, owner uuid.UUID, et string, eid uuid.UUID, jt string) (bool, error) {
	return false, nil
}

func (r *oneJobRepo) CountForEntity(dbc dbctx.Context, et string, eid uuid.UUID, jt string) (int64, error) {
	return 0, nil
}

type resultHandler struct{ err error }

func (h resultHandler) Type() string { return jobstatus.JobTypeGradeReport }

func (h resultHandler) Run(jc *jobrt.Context) error {
	if h.err != nil {
		return h.err
	}
	jc.Succeed("done", nil)
	return nil
}

func newActivities(t *testing.T, job *types.JobRun, h jobrt.Handler) (*Activities, *oneJobRepo) {
	t.Helper()
	reg := jobrt.NewRegistry()
	if err := reg.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	repo := &oneJobRepo{job: job}
	return &Activities{Log: logger.Nop(), Jobs: repo, Registry: reg, MaxAttempts: 3}, repo
}

func TestTickRunsHandler(t *testing.T) {
	job := &types.JobRun{ID: uuid.New(), OwnerUserID: uuid.New(), JobType: jobstatus.JobTypeGradeReport, Status: jobstatus.StatusQueued}
	acts, repo := newActivities(t, job, resultHandler{})
	out, err := acts.Tick(context.Background(), job.ID.String())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if out.Status != jobstatus.StatusSucceeded || repo.job.Attempts != 1 {
		t.Fatalf("tick: want=succeeded/1 got=%s/%d", out.Status, repo.job.Attempts)
	}

	// A second delivery of a succeeded job does not run the handler again.
	out, err = acts.Tick(context.Background(), job.ID.String())
	if err != nil || out.Status != jobstatus.StatusSucceeded || repo.job.Attempts != 1 {
		t.Fatalf("redelivery: got=%+v err=%v", out, err)
	}
}

func TestTickReportsExhaustion(t *testing.T) {
	job := &types.JobRun{ID: uuid.New(), OwnerUserID: uuid.New(), JobType: jobstatus.JobTypeGradeReport, Status: jobstatus.StatusFailed, Attempts: 2}
	acts, _ := newActivities(t, job, resultHandler{err: errors.New("storage down")})
	out, err := acts.Tick(context.Background(), job.ID.String())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if out.Status != jobstatus.StatusFailed || !out.Exhausted || out.Attempts != 3 {
		t.Fatalf("tick: want failed+exhausted at 3 got=%+v", out)
	}
}

func TestTickRejectsBadID(t *testing.T) {
	acts, _ := newActivities(t, &types.JobRun{ID: uuid.New()}, resultHandler{})
	if _, err := acts.Tick(context.Background(), "nope"); err == nil {
		t.Fatalf("Tick: want error for invalid id")
	}
}

func TestWorkflowOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		results []TickResult
		wantErr bool
	}{
		{"succeeds after running tick", []TickResult{{Status: jobstatus.StatusRunning}, {Status: jobstatus.StatusSucceeded}}, false},
		{"retryable failure", []TickResult{{Status: jobstatus.StatusFailed, Attempts: 1}}, true},
		{"exhausted failure completes", []TickResult{{Status: jobstatus.StatusFailed, Attempts: 3, Exhausted: true}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var suite testsuite.WorkflowTestSuite
			env := suite.NewTestWorkflowEnvironment()
			calls := 0
			env.RegisterActivityWithOptions(func(ctx context.Context, jobID string) (TickResult, error) {
				out := tc.results[calls]
				calls++
				return out, nil
			}, activity.RegisterOptions{Name: ActivityTick})
			env.RegisterWorkflow(Workflow)
			env.ExecuteWorkflow(Workflow)

			if !env.IsWorkflowCompleted() {
				t.Fatalf("workflow did not complete")
			}
			if gotErr := env.GetWorkflowError() != nil; gotErr != tc.wantErr {
				t.Fatalf("workflow error: want=%v got=%v", tc.wantErr, env.GetWorkflowError())
			}
			if calls != len(tc.results) {
				t.Fatalf("ticks: want=%d got=%d", len(tc.results), calls)
			}
		})
	}
}
