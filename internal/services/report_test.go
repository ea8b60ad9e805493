package services

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	jobstatus "github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/report"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
)

type reportFixture struct {
	repo    *fakeReportRepo
	jobs    *fakeJobs
	store   *fakeStore
	emitter *recordingEmitter
	svc     ReportService
	owner   uuid.UUID
}

func newReportFixture() *reportFixture {
	f := &reportFixture{
		repo:    newFakeReportRepo(),
		jobs:    &fakeJobs{},
		store:   newFakeStore(),
		emitter: &recordingEmitter{},
		owner:   uuid.New(),
	}
	f.svc = NewReportService(nil, logger.Nop(), f.repo, f.jobs, f.store, NewReportNotifier(f.emitter))
	return f
}

func (f *reportFixture) url(kind, name string) string {
	return fakeStoreBase + "users/" + f.owner.String() + "/" + kind + "/1-" + name
}

func TestCreateReportEnqueuesGrading(t *testing.T) {
	f := newReportFixture()
	rep, err := f.svc.Create(userCtx(f.owner), CreateReportInput{
		Title:          " Algebra ",
		WorksheetType:  report.WorksheetMath,
		WorksheetURL:   f.url("worksheet", "ws.pdf"),
		MarkschemeType: report.MarkschemeSkip,
		MarkschemeURL:  f.url("markscheme", "ignored.pdf"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rep.Status != types.ReportProcessing || rep.Title != "Algebra" {
		t.Fatalf("report: status=%s title=%q", rep.Status, rep.Title)
	}
	if rep.MarkschemeURL != "" {
		t.Fatalf("skip mode must clear the markscheme url, got=%q", rep.MarkschemeURL)
	}
	if !rep.Options().FullGrade {
		t.Fatalf("default options not applied: %+v", rep.Options())
	}
	if len(f.jobs.enqueued) != 1 {
		t.Fatalf("jobs: want=1 got=%d", len(f.jobs.enqueued))
	}
	job := f.jobs.enqueued[0]
	if job.JobType != jobstatus.JobTypeGradeReport || job.EntityID == nil || *job.EntityID != rep.ID {
		t.Fatalf("job: got=%+v", job)
	}
	if n := len(f.emitter.events(realtime.SSEEventReportUpdated)); n != 1 {
		t.Fatalf("ReportUpdated events: want=1 got=%d", n)
	}
}

func TestCreateReportValidation(t *testing.T) {
	f := newReportFixture()
	other := uuid.New()
	otherURL := fakeStoreBase + "users/" + other.String() + "/worksheet/1-ws.pdf"
	cases := []struct {
		name string
		in   CreateReportInput
		code string
	}{
		{"missing title", CreateReportInput{WorksheetType: report.WorksheetMath, WorksheetURL: f.url("worksheet", "a.pdf")}, "invalid_title"},
		{"bad worksheet type", CreateReportInput{Title: "t", WorksheetType: "Poetry", WorksheetURL: f.url("worksheet", "a.pdf")}, "invalid_worksheet_type"},
		{"missing worksheet", CreateReportInput{Title: "t", WorksheetType: report.WorksheetMath}, "missing_worksheet"},
		{"foreign worksheet", CreateReportInput{Title: "t", WorksheetType: report.WorksheetMath, WorksheetURL: otherURL}, "invalid_worksheet_url"},
		{"external worksheet", CreateReportInput{Title: "t", WorksheetType: report.WorksheetMath, WorksheetURL: "http://169.254.169.254/latest"}, "invalid_worksheet_url"},
		{"new without url", CreateReportInput{Title: "t", WorksheetType: report.WorksheetMath, WorksheetURL: f.url("worksheet", "a.pdf"), MarkschemeType: report.MarkschemeNew}, "missing_markscheme"},
		{"existing without id", CreateReportInput{Title: "t", WorksheetType: report.WorksheetMath, WorksheetURL: f.url("worksheet", "a.pdf"), MarkschemeType: report.MarkschemeExisting}, "missing_markscheme"},
		{"default mode without id", CreateReportInput{Title: "t", WorksheetURL: f.url("worksheet", "a.pdf")}, "missing_markscheme"},
		{"bad markscheme type", CreateReportInput{Title: "t", WorksheetType: report.WorksheetMath, WorksheetURL: f.url("worksheet", "a.pdf"), MarkschemeType: "maybe"}, "invalid_markscheme_type"},
	}
	for _, tc := range cases {
		_, err := f.svc.Create(userCtx(f.owner), tc.in)
		if err == nil {
			t.Fatalf("%s: want error", tc.name)
		}
		wantStatus(t, err, http.StatusBadRequest, tc.code)
	}
	if len(f.jobs.enqueued) != 0 {
		t.Fatalf("invalid input must not enqueue jobs")
	}
}

func TestCreateReportReusesExistingMarkscheme(t *testing.T) {
	f := newReportFixture()
	ctx := userCtx(f.owner)
	src, err := f.svc.Create(ctx, CreateReportInput{
		Title: "First", WorksheetType: report.WorksheetMath, WorksheetURL: f.url("worksheet", "a.pdf"),
		MarkschemeType: report.MarkschemeNew, MarkschemeURL: f.url("markscheme", "ms.pdf"),
	})
	if err != nil {
		t.Fatalf("Create source: %v", err)
	}
	id := src.ID
	reuse, err := f.svc.Create(ctx, CreateReportInput{
		Title: "Second", WorksheetType: report.WorksheetMath, WorksheetURL: f.url("worksheet", "b.pdf"),
		MarkschemeType: report.MarkschemeExisting, MarkschemeID: &id,
	})
	if err != nil {
		t.Fatalf("Create reuse: %v", err)
	}
	if reuse.MarkschemeURL != src.MarkschemeURL || reuse.MarkschemeID == nil || *reuse.MarkschemeID != src.ID {
		t.Fatalf("reuse: url=%q id=%v", reuse.MarkschemeURL, reuse.MarkschemeID)
	}

	stranger := uuid.New()
	_, err = f.svc.Create(userCtx(stranger), CreateReportInput{
		Title: "Steal", WorksheetType: report.WorksheetMath,
		WorksheetURL:   fakeStoreBase + "users/" + stranger.String() + "/worksheet/1-c.pdf",
		MarkschemeType: report.MarkschemeExisting, MarkschemeID: &id,
	})
	wantStatus(t, err, http.StatusBadRequest, "invalid_markscheme")
}

func TestCreateReportAppliesWizardDefaults(t *testing.T) {
	f := newReportFixture()
	ctx := userCtx(f.owner)
	src, err := f.svc.Create(ctx, CreateReportInput{
		Title: "First", WorksheetType: report.WorksheetMath, WorksheetURL: f.url("worksheet", "a.pdf"),
		MarkschemeType: report.MarkschemeNew, MarkschemeURL: f.url("markscheme", "ms.pdf"),
	})
	if err != nil {
		t.Fatalf("Create source: %v", err)
	}
	id := src.ID
	rep, err := f.svc.Create(ctx, CreateReportInput{Title: "Second", WorksheetURL: f.url("worksheet", "b.pdf"), MarkschemeID: &id})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rep.WorksheetType != report.WorksheetBalanced {
		t.Fatalf("worksheet_type: want=%s got=%s", report.WorksheetBalanced, rep.WorksheetType)
	}
	if rep.MarkschemeType != report.MarkschemeExisting || rep.MarkschemeURL != src.MarkschemeURL {
		t.Fatalf("markscheme: type=%s url=%q", rep.MarkschemeType, rep.MarkschemeURL)
	}
}

func TestDeleteKeepsSharedMarkscheme(t *testing.T) {
	f := newReportFixture()
	ctx := userCtx(f.owner)
	msURL := f.url("markscheme", "ms.pdf")
	src, _ := f.svc.Create(ctx, CreateReportInput{
		Title: "First", WorksheetType: report.WorksheetMath, WorksheetURL: f.url("worksheet", "a.pdf"),
		MarkschemeType: report.MarkschemeNew, MarkschemeURL: msURL,
	})
	id := src.ID
	reuse, _ := f.svc.Create(ctx, CreateReportInput{
		Title: "Second", WorksheetType: report.WorksheetMath, WorksheetURL: f.url("worksheet", "b.pdf"),
		MarkschemeType: report.MarkschemeExisting, MarkschemeID: &id,
	})

	if err := f.svc.Delete(ctx, src.ID); err != nil {
		t.Fatalf("Delete source: %v", err)
	}
	msKey, _ := f.store.KeyFromURL(msURL)
	for _, k := range f.store.deleted {
		if k == msKey {
			t.Fatalf("shared markscheme deleted while still referenced")
		}
	}
	if err := f.svc.Delete(ctx, reuse.ID); err != nil {
		t.Fatalf("Delete reuse: %v", err)
	}
	found := false
	for _, k := range f.store.deleted {
		found = found || k == msKey
	}
	if !found {
		t.Fatalf("markscheme should be deleted with its last reference, deleted=%v", f.store.deleted)
	}

	err := f.svc.Delete(ctx, src.ID)
	wantStatus(t, err, http.StatusNotFound, "report_not_found")
}

func TestGetRenameAndOwnership(t *testing.T) {
	f := newReportFixture()
	ctx := userCtx(f.owner)
	rep, _ := f.svc.Create(ctx, CreateReportInput{Title: "Old", WorksheetType: report.WorksheetBalanced, WorksheetURL: f.url("worksheet", "a.pdf"), MarkschemeType: report.MarkschemeSkip})

	renamed, err := f.svc.Rename(ctx, rep.ID, "New")
	if err != nil || renamed.Title != "New" {
		t.Fatalf("Rename: title=%v err=%v", renamed, err)
	}
	_, err = f.svc.Get(userCtx(uuid.New()), rep.ID)
	wantStatus(t, err, http.StatusNotFound, "report_not_found")
	_, err = f.svc.Rename(ctx, rep.ID, "  ")
	wantStatus(t, err, http.StatusBadRequest, "invalid_title")

	list, err := f.svc.ListMarkschemes(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("ListMarkschemes: want empty got=%v err=%v", list, err)
	}
}
