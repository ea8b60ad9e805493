package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos"
	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	jobstatus "github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/report"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/apierr"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/ctxutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/objectstore"
)

type CreateReportInput struct {
	Title          string               `json:"title"`
	WorksheetType  types.WorksheetType  `json:"worksheet_type"`
	WorksheetURL   string               `json:"worksheet_url"`
	MarkschemeType types.MarkschemeType `json:"markscheme_type"`
	MarkschemeID   *uuid.UUID           `json:"markscheme_id"`
	MarkschemeURL  string               `json:"markscheme_url"`
	ReportOptions  *types.ReportOptions `json:"report_options"`
}

type MarkschemeSummary struct {
	ID            uuid.UUID           `json:"id"`
	Title         string              `json:"title"`
	WorksheetType types.WorksheetType `json:"worksheet_type"`
	MarkschemeURL string              `json:"markscheme_url"`
	CreatedAt     time.Time           `json:"created_at"`
}

type ReportService interface {
	Create(ctx context.Context, in CreateReportInput) (*types.Report, error)
	List(ctx context.Context, query string) ([]*types.Report, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Report, error)
	Rename(ctx context.Context, id uuid.UUID, title string) (*types.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListMarkschemes(ctx context.Context) ([]MarkschemeSummary, error)
}

type reportService struct {
	db      *gorm.DB
	log     *logger.Logger
	reports repos.ReportRepo
	jobs    JobService
	store   objectstore.Store
	notify  ReportNotifier
}

func NewReportService(db *gorm.DB, baseLog *logger.Logger, reports repos.ReportRepo, jobs JobService, store objectstore.Store, notify ReportNotifier) ReportService {
	return &reportService{
		db:      db,
		log:     baseLog.With("service", "ReportService"),
		reports: reports,
		jobs:    jobs,
		store:   store,
		notify:  notify,
	}
}

func requireUser(ctx context.Context) (uuid.UUID, error) {
	uid := ctxutil.UserID(ctx)
	if uid == uuid.Nil {
		return uuid.Nil, apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("not signed in"))
	}
	return uid, nil
}

// inTx runs fn in a transaction, or directly when no database is wired.
func (s *reportService) inTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if s.db == nil {
		return fn(dbctx.Context{Ctx: ctx})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// ownsUpload reports whether rawURL points at an object this user uploaded.
func (s *reportService) ownsUpload(owner uuid.UUID, rawURL string) bool {
	if s.store == nil {
		return false
	}
	key, ok := s.store.KeyFromURL(strings.TrimSpace(rawURL))
	return ok && strings.HasPrefix(key, "users/"+owner.String()+"/")
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || len([]rune(title)) > report.MaxTitleLength {
		return "", apierr.BadRequest("invalid_title", "title must be 1-%d characters", report.MaxTitleLength)
	}
	return title, nil
}

// buildReport applies the wizard rules and returns an unsaved report.
func (s *reportService) buildReport(ctx context.Context, owner uuid.UUID, in CreateReportInput) (*types.Report, error) {
	title, err := validTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if in.WorksheetType == "" {
		in.WorksheetType = report.WorksheetBalanced
	}
	if !in.WorksheetType.Valid() {
		return nil, apierr.BadRequest("invalid_worksheet_type", "worksheet_type must be Math, Balanced or Essay-Heavy")
	}
	if strings.TrimSpace(in.WorksheetURL) == "" {
		return nil, apierr.BadRequest("missing_worksheet", "worksheet_url is required")
	}
	if !s.ownsUpload(owner, in.WorksheetURL) {
		return nil, apierr.BadRequest("invalid_worksheet_url", "worksheet_url must reference your own upload")
	}

	opts := report.DefaultOptions()
	if in.ReportOptions != nil {
		opts = *in.ReportOptions
	}
	rep := &types.Report{
		OwnerUserID:    owner,
		Title:          title,
		WorksheetType:  in.WorksheetType,
		WorksheetURL:   strings.TrimSpace(in.WorksheetURL),
		MarkschemeType: in.MarkschemeType,
		ReportOptions:  datatypes.NewJSONType(opts),
	}
	if rep.MarkschemeType == "" {
		rep.MarkschemeType = report.MarkschemeExisting
	}

	switch rep.MarkschemeType {
	case report.MarkschemeSkip:
		rep.MarkschemeID = nil
		rep.MarkschemeURL = ""
	case report.MarkschemeNew:
		if strings.TrimSpace(in.MarkschemeURL) == "" {
			return nil, apierr.BadRequest("missing_markscheme", "markscheme_url is required for a new markscheme")
		}
		if !s.ownsUpload(owner, in.MarkschemeURL) {
			return nil, apierr.BadRequest("invalid_markscheme_url", "markscheme_url must reference your own upload")
		}
		rep.MarkschemeURL = strings.TrimSpace(in.MarkschemeURL)
	case report.MarkschemeExisting:
		if in.MarkschemeID == nil || *in.MarkschemeID == uuid.Nil {
			return nil, apierr.BadRequest("missing_markscheme", "markscheme_id is required for an existing markscheme")
		}
		src, err := s.reports.GetForOwner(dbctx.Context{Ctx: ctx}, owner, *in.MarkschemeID)
		if err != nil && !errors.Is(err, types.ErrInvalidRecord) {
			return nil, fmt.Errorf("load markscheme source: %w", err)
		}
		if src == nil || !src.HasMarkscheme() {
			return nil, apierr.BadRequest("invalid_markscheme", "markscheme_id does not name one of your markschemes")
		}
		id := src.ID
		rep.MarkschemeID = &id
		rep.MarkschemeURL = src.MarkschemeURL
	default:
		return nil, apierr.BadRequest("invalid_markscheme_type", "markscheme_type must be skip, existing or new")
	}
	return rep, nil
}

// Create stores the report and its grading job together and returns
// immediately; grading happens in the background.
func (s *reportService) Create(ctx context.Context, in CreateReportInput) (*types.Report, error) {
	owner, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	rep, err := s.buildReport(ctx, owner, in)
	if err != nil {
		return nil, err
	}

	var job *types.JobRun
	err = s.inTx(ctx, func(dbc dbctx.Context) error {
		created, err := s.reports.Create(dbc, rep)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		rep = created
		entityID := rep.ID
		job, err = s.jobs.Enqueue(dbc, owner, jobstatus.JobTypeGradeReport, jobstatus.EntityReport, &entityID, map[string]any{
			"report_id": rep.ID.String(),
		})
		if err != nil {
			return fmt.Errorf("enqueue grading: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Without a transaction Enqueue has already dispatched.
	if s.db != nil {
		if derr := s.jobs.Dispatch(dbctx.Context{Ctx: ctx}, job.ID); derr != nil {
			s.log.Warn("Grading dispatch failed; poll worker or sweeper will retry", "report_id", rep.ID, "job_id", job.ID, "error", derr)
		}
	}
	s.log.Info("Report created", "report_id", rep.ID, "owner_user_id", owner, "worksheet_type", rep.WorksheetType, "markscheme_type", rep.MarkschemeType)
	if s.notify != nil {
		s.notify.ReportUpdated(owner, rep)
	}
	return rep, nil
}

func (s *reportService) List(ctx context.Context, query string) ([]*types.Report, error) {
	owner, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.reports.List(dbctx.Context{Ctx: ctx}, owner, query, 0)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

func (s *reportService) Get(ctx context.Context, id uuid.UUID) (*types.Report, error) {
	owner, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	rep, err := s.reports.GetForOwner(dbctx.Context{Ctx: ctx}, owner, id)
	if errors.Is(err, types.ErrInvalidRecord) {
		s.log.Error("Stored report failed validation", "report_id", id, "error", err)
		return nil, apierr.New(http.StatusInternalServerError, "invalid_record", err)
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if rep == nil {
		return nil, apierr.NotFound("report_not_found", fmt.Errorf("report not found"))
	}
	return rep, nil
}

func (s *reportService) Rename(ctx context.Context, id uuid.UUID, title string) (*types.Report, error) {
	owner, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	title, err = validTitle(title)
	if err != nil {
		return nil, err
	}
	ok, err := s.reports.Rename(dbctx.Context{Ctx: ctx}, owner, id, title)
	if err != nil {
		return nil, fmt.Errorf("rename report: %w", err)
	}
	if !ok {
		return nil, apierr.NotFound("report_not_found", fmt.Errorf("report not found"))
	}
	rep, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.ReportUpdated(owner, rep)
	}
	return rep, nil
}

// Delete soft-deletes the report, then removes its blobs best-effort. A
// markscheme stays while another report still points at it.
func (s *reportService) Delete(ctx context.Context, id uuid.UUID) error {
	owner, err := requireUser(ctx)
	if err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx}
	rep, err := s.reports.GetForOwner(dbc, owner, id)
	if err != nil && !errors.Is(err, types.ErrInvalidRecord) {
		return fmt.Errorf("load report: %w", err)
	}
	ok, err := s.reports.SoftDelete(dbc, owner, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if !ok {
		return apierr.NotFound("report_not_found", fmt.Errorf("report not found"))
	}
	if rep != nil {
		s.removeBlob(ctx, owner, rep.WorksheetURL)
		if rep.HasMarkscheme() {
			refs, cerr := s.reports.CountMarkschemeRefs(dbc, owner, rep.MarkschemeURL, rep.ID)
			switch {
			case cerr != nil:
				s.log.Warn("Could not count markscheme references; keeping blob", "report_id", id, "error", cerr)
			case refs == 0:
				s.removeBlob(ctx, owner, rep.MarkschemeURL)
			}
		}
	}
	if s.notify != nil {
		s.notify.ReportDeleted(owner, id)
	}
	return nil
}

func (s *reportService) removeBlob(ctx context.Context, owner uuid.UUID, rawURL string) {
	if s.store == nil || !s.ownsUpload(owner, rawURL) {
		return
	}
	key, _ := s.store.KeyFromURL(rawURL)
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn("Blob delete failed", "key", key, "error", err)
	}
}

func (s *reportService) ListMarkschemes(ctx context.Context) ([]MarkschemeSummary, error) {
	owner, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.reports.ListMarkschemes(dbctx.Context{Ctx: ctx}, owner)
	if err != nil {
		return nil, fmt.Errorf("list markschemes: %w", err)
	}
	out := make([]MarkschemeSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, MarkschemeSummary{
			ID:            r.ID,
			Title:         r.Title,
			WorksheetType: r.WorksheetType,
			MarkschemeURL: r.MarkschemeURL,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}
