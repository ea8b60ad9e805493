package gradereport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	jobstatus "github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/jobs/runtime"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

type stubGrading struct {
	rep   *types.Report
	err   error
	calls []uuid.UUID
	owner uuid.UUID
}

func (s *stubGrading) GradeReport(ctx context.Context, reportID, ownerUserID uuid.UUID) (*types.Report, error) {
	s.calls = append(s.calls, reportID)
	s.owner = ownerUserID
	return s.rep, s.err
}

func jobFor(reportID *uuid.UUID, payload map[string]any) *types.JobRun {
	raw, _ := json.Marshal(payload)
	return &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		JobType:     jobstatus.JobTypeGradeReport,
		EntityType:  jobstatus.EntityReport,
		EntityID:    reportID,
		Status:      jobstatus.StatusRunning,
		Payload:     datatypes.JSON(raw),
	}
}

func TestRunGradesReportAndSucceeds(t *testing.T) {
	id := uuid.New()
	g := &stubGrading{rep: &types.Report{ID: id, Status: types.ReportCompleted}}
	job := jobFor(&id, nil)
	jc := runtime.NewContext(context.Background(), nil, job, nil, nil)

	if err := New(logger.Nop(), g).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(g.calls) != 1 || g.calls[0] != id || g.owner != job.OwnerUserID {
		t.Fatalf("GradeReport calls: got=%v owner=%v", g.calls, g.owner)
	}
	if job.Status != jobstatus.StatusSucceeded {
		t.Fatalf("job status: want=succeeded got=%s", job.Status)
	}
	var res map[string]string
	_ = json.Unmarshal(job.Result, &res)
	if res["status"] != "completed" {
		t.Fatalf("result: got=%v", res)
	}
}

func TestRunFallsBackToPayloadReportID(t *testing.T) {
	id := uuid.New()
	g := &stubGrading{rep: &types.Report{ID: id, Status: types.ReportFailed}}
	jc := runtime.NewContext(context.Background(), nil, jobFor(nil, map[string]any{"report_id": id.String()}), nil, nil)
	if err := New(logger.Nop(), g).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(g.calls) != 1 || g.calls[0] != id {
		t.Fatalf("report id: want=%s got=%v", id, g.calls)
	}
}

func TestRunOutcomes(t *testing.T) {
	id := uuid.New()

	t.Run("missing report is skipped", func(t *testing.T) {
		job := jobFor(&id, nil)
		if err := New(logger.Nop(), &stubGrading{}).Run(runtime.NewContext(context.Background(), nil, job, nil, nil)); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if job.Status != jobstatus.StatusSucceeded || job.Stage != "skipped" {
			t.Fatalf("job: want=succeeded/skipped got=%s/%s", job.Status, job.Stage)
		}
	})

	t.Run("storage error is returned for retry", func(t *testing.T) {
		job := jobFor(&id, nil)
		err := New(logger.Nop(), &stubGrading{err: errors.New("connection reset")}).Run(runtime.NewContext(context.Background(), nil, job, nil, nil))
		if err == nil {
			t.Fatalf("Run: want error")
		}
		if job.Status == jobstatus.StatusSucceeded {
			t.Fatalf("job must not succeed on storage error")
		}
	})

	t.Run("no report id fails the job", func(t *testing.T) {
		job := jobFor(nil, map[string]any{"report_id": "not-a-uuid"})
		g := &stubGrading{}
		if err := New(logger.Nop(), g).Run(runtime.NewContext(context.Background(), nil, job, nil, nil)); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if job.Status != jobstatus.StatusFailed || len(g.calls) != 0 {
			t.Fatalf("job: want=failed with no grading got=%s calls=%d", job.Status, len(g.calls))
		}
	})
}
