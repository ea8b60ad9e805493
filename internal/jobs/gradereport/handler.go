package gradereport

import (
	"fmt"

	jobstatus "github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/jobs/runtime"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

// Handler runs one grading delivery for the report named by the job.
// Grading outcomes land on the report itself, so the job succeeds whenever
// the report reached (or already was in) a terminal status.
type Handler struct {
	log     *logger.Logger
	grading services.GradingService
}

func New(baseLog *logger.Logger, grading services.GradingService) *Handler {
	return &Handler{log: baseLog.With("component", "GradeReportHandler"), grading: grading}
}

func (h *Handler) Type() string { return jobstatus.JobTypeGradeReport }

func (h *Handler) Run(jc *runtime.Context) error {
	reportID, ok := jc.EntityID("report_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("grade_report job without report id"))
		return nil
	}
	jc.Progress("grading", 10, "Grading report")

	rep, err := h.grading.GradeReport(jc.Ctx, reportID, jc.Job.OwnerUserID)
	if err != nil {
		return err
	}
	if rep == nil {
		h.log.Info("Report gone before grading; nothing to do", "report_id", reportID, "job_id", jc.Job.ID)
		jc.Succeed("skipped", map[string]any{"report_id": reportID.String(), "status": "missing"})
		return nil
	}
	jc.Succeed("done", map[string]any{"report_id": reportID.String(), "status": string(rep.Status)})
	return nil
}
