package domain

import (
	"errors"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/report"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/user"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInvalidRecord     = report.ErrInvalidRecord
	ErrInvalidTransition = report.ErrInvalidTransition
)

type Report = report.Report
type ReportStatus = report.Status
type ReportOptions = report.Options
type WorksheetType = report.WorksheetType
type MarkschemeType = report.MarkschemeType
type GradingResult = report.GradingResult
type QuestionBreakdown = report.QuestionBreakdown

const (
	ReportProcessing = report.StatusProcessing
	ReportCompleted  = report.StatusCompleted
	ReportFailed     = report.StatusFailed

	ReportSchemaVersion = report.CurrentSchemaVersion
)

type UserProfile = user.UserProfile
type UserStatus = user.Status

const (
	UserPending  = user.StatusPending
	UserApproved = user.StatusApproved
	UserRejected = user.StatusRejected
	UserAdmin    = user.StatusAdmin
)

type JobRun = jobs.JobRun
