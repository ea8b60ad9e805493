package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
)

// =========================
// Job notifier
// =========================

type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type jobNotifier struct {
	emit SSEEmitter
}

func NewJobNotifier(emit SSEEmitter) JobNotifier {
	return &jobNotifier{emit: emit}
}

func (n *jobNotifier) send(userID uuid.UUID, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   event,
		Data:    data,
	})
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.send(userID, realtime.SSEEventJobCreated, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	n.send(userID, realtime.SSEEventJobProgress, map[string]any{
		"job_id":   safeJobID(job),
		"job_type": safeJobType(job),
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.send(userID, realtime.SSEEventJobFailed, map[string]any{
		"job_id":   safeJobID(job),
		"job_type": safeJobType(job),
		"stage":    stage,
		"error":    errorMessage,
	})
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.send(userID, realtime.SSEEventJobDone, map[string]any{
		"job_id":   safeJobID(job),
		"job_type": safeJobType(job),
	})
}

func safeJobID(job *types.JobRun) uuid.UUID {
	if job == nil {
		return uuid.Nil
	}
	return job.ID
}

func safeJobType(job *types.JobRun) string {
	if job == nil {
		return ""
	}
	return job.JobType
}

// =========================
// Report notifier
// =========================

type ReportNotifier interface {
	ReportUpdated(userID uuid.UUID, rep *types.Report)
	ReportDeleted(userID uuid.UUID, reportID uuid.UUID)
}

type reportNotifier struct {
	emit SSEEmitter
}

func NewReportNotifier(emit SSEEmitter) ReportNotifier {
	return &reportNotifier{emit: emit}
}

func (n *reportNotifier) ReportUpdated(userID uuid.UUID, rep *types.Report) {
	if n == nil || n.emit == nil || userID == uuid.Nil || rep == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventReportUpdated,
		Data: map[string]any{
			"report_id": rep.ID,
			"status":    rep.Status,
			"report":    rep,
		},
	})
}

func (n *reportNotifier) ReportDeleted(userID uuid.UUID, reportID uuid.UUID) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventReportDeleted,
		Data:    map[string]any{"report_id": reportID},
	})
}

// =========================
// Profile notifier
// =========================

type ProfileNotifier interface {
	ProfileStatusChanged(p *types.UserProfile, previous types.UserStatus)
}

type profileNotifier struct {
	emit SSEEmitter
}

func NewProfileNotifier(emit SSEEmitter) ProfileNotifier {
	return &profileNotifier{emit: emit}
}

// ProfileStatusChanged tells the user and every connected admin.
func (n *profileNotifier) ProfileStatusChanged(p *types.UserProfile, previous types.UserStatus) {
	if n == nil || n.emit == nil || p == nil {
		return
	}
	data := map[string]any{
		"uid":      p.ID,
		"status":   p.Status,
		"previous": previous,
	}
	for _, ch := range []string{p.ID.String(), realtime.AdminChannel} {
		n.emit.Emit(context.Background(), realtime.SSEMessage{
			Channel: ch,
			Event:   realtime.SSEEventProfileStatusChanged,
			Data:    data,
		})
	}
}
