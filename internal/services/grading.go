package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos"
	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/grading"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/gemini"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

const DefaultModelTimeout = 120 * time.Second

const (
	msgNoData        = "Report has no data"
	msgMissingAPIKey = "Server configuration error: API key not set"
	msgParseFailed   = "Failed to parse AI response"
)

type ModelClient interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

type AttachmentFetcher interface {
	FetchForReport(ctx context.Context, r *types.Report) (grading.Attachment, *grading.Attachment, error)
}

type GradingService interface {
	// GradeReport drives a processing report to a terminal status. Grading
	// outcomes are recorded on the report; the returned error covers only
	// storage problems and cancellation, which leave the report processing.
	GradeReport(ctx context.Context, reportID, ownerUserID uuid.UUID) (*types.Report, error)
}

type gradingService struct {
	log          *logger.Logger
	reports      repos.ReportRepo
	model        ModelClient
	fetcher      AttachmentFetcher
	dispatch     *grading.Dispatch
	notify       ReportNotifier
	modelTimeout time.Duration
}

// NewGradingService accepts a nil model when no API key is configured; every
// report graded in that state fails with a configuration error.
func NewGradingService(
	baseLog *logger.Logger,
	reports repos.ReportRepo,
	model ModelClient,
	fetcher AttachmentFetcher,
	dispatch *grading.Dispatch,
	notify ReportNotifier,
	modelTimeout time.Duration,
) GradingService {
	if modelTimeout <= 0 {
		modelTimeout = DefaultModelTimeout
	}
	return &gradingService{
		log:          baseLog.With("service", "GradingService"),
		reports:      reports,
		model:        model,
		fetcher:      fetcher,
		dispatch:     dispatch,
		notify:       notify,
		modelTimeout: modelTimeout,
	}
}

func (s *gradingService) GradeReport(ctx context.Context, reportID, ownerUserID uuid.UUID) (*types.Report, error) {
	ctx, span := otel.Tracer("checkyourpaper/grading").Start(ctx, "GradeReport")
	defer span.End()
	span.SetAttributes(attribute.String("report.id", reportID.String()))
	log := s.log.WithContext(ctx).With("report_id", reportID)

	rep, err := s.reports.GetForOwner(dbctx.Context{Ctx: ctx}, ownerUserID, reportID)
	if errors.Is(err, types.ErrInvalidRecord) {
		log.Error("Report failed validation; marking failed", "error", err)
		return nil, s.failUnreadable(ctx, reportID, ownerUserID, fmt.Sprintf("%s: %v", msgNoData, err))
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load report: %w", err)
	}
	if rep == nil {
		log.Warn("Report not found; nothing to grade")
		return nil, nil
	}
	if rep.Status.Terminal() {
		log.Debug("Report already terminal", "status", rep.Status)
		return rep, nil
	}
	if s.model == nil {
		return s.fail(ctx, rep, msgMissingAPIKey)
	}

	profile := s.dispatch.Select(rep.WorksheetType)
	span.SetAttributes(
		attribute.String("report.worksheet_type", string(rep.WorksheetType)),
		attribute.String("grading.model", profile.Model),
		attribute.String("grading.profile", profile.Name),
	)

	worksheet, markscheme, err := s.fetcher.FetchForReport(ctx, rep)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return s.fail(ctx, rep, err.Error())
	}

	req := grading.BuildRequest(profile, rep, worksheet, markscheme)
	callCtx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	started := time.Now()
	raw, err := s.model.Generate(callCtx, req)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return s.fail(ctx, rep, fmt.Sprintf("model call timed out after %s", s.modelTimeout))
		}
		return s.fail(ctx, rep, err.Error())
	}
	log.Info("Model replied", "model", profile.Model, "duration_ms", time.Since(started).Milliseconds())

	result, err := grading.ParseReply(raw)
	if err != nil {
		return s.fail(ctx, rep, fmt.Sprintf("%s: %v", msgParseFailed, err))
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return s.fail(ctx, rep, fmt.Sprintf("%s: %v", msgParseFailed, err))
	}

	ok, err := s.reports.MarkCompleted(dbctx.Context{Ctx: ctx}, rep.ID, datatypes.JSON(encoded))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	span.SetAttributes(attribute.Int("grading.questions", len(result.Questions)))
	return s.finish(ctx, rep, ok)
}

// fail records message as the single terminal failure for rep.
func (s *gradingService) fail(ctx context.Context, rep *types.Report, message string) (*types.Report, error) {
	s.log.Warn("Grading failed", "report_id", rep.ID, "reason", message)
	ok, err := s.reports.MarkFailed(dbctx.Context{Ctx: ctx}, rep.ID, message)
	if err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}
	trace.SpanFromContext(ctx).SetStatus(codes.Error, message)
	return s.finish(ctx, rep, ok)
}

// failUnreadable handles rows that cannot be decoded, so there is nothing to reload.
func (s *gradingService) failUnreadable(ctx context.Context, reportID, ownerUserID uuid.UUID, message string) error {
	ok, err := s.reports.MarkFailed(dbctx.Context{Ctx: ctx}, reportID, message)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if ok && s.notify != nil {
		s.notify.ReportUpdated(ownerUserID, &types.Report{
			ID:          reportID,
			OwnerUserID: ownerUserID,
			Status:      types.ReportFailed,
			Error:       message,
		})
	}
	return nil
}

// finish reloads the stored report and announces it when this call wrote the
// terminal status.
func (s *gradingService) finish(ctx context.Context, rep *types.Report, wrote bool) (*types.Report, error) {
	stored, err := s.reports.GetForOwner(dbctx.Context{Ctx: ctx}, rep.OwnerUserID, rep.ID)
	if err != nil {
		return nil, fmt.Errorf("reload report: %w", err)
	}
	if stored == nil {
		return nil, nil
	}
	if wrote && s.notify != nil {
		s.notify.ReportUpdated(stored.OwnerUserID, stored)
	}
	return stored, nil
}
