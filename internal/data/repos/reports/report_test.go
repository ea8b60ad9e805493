package reports

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos/testutil"
	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/report"
)

func newReport(owner uuid.UUID, title string) *types.Report {
	return &types.Report{
		OwnerUserID:    owner,
		Title:          title,
		WorksheetType:  report.WorksheetMath,
		WorksheetURL:   "https://storage.example.com/ws.pdf",
		MarkschemeType: report.MarkschemeSkip,
		ReportOptions:  datatypes.NewJSONType(report.DefaultOptions()),
	}
}

func TestReportRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	repo := NewReportRepo(db, testutil.Logger(t))

	owner := uuid.New()
	created, err := repo.Create(dbc, newReport(owner, "Algebra"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != types.ReportProcessing {
		t.Fatalf("Create: want=processing got=%s", created.Status)
	}

	if got, err := repo.GetForOwner(dbc, uuid.New(), created.ID); err != nil || got != nil {
		t.Fatalf("GetForOwner other owner: want=nil got=%v err=%v", got, err)
	}

	result := datatypes.JSON(`{"grade":"A","totalMarks":10,"marksObtained":9,"feedback":"f","questions":[{"question":"1","marksAvailable":10,"marksAwarded":9,"explanation":"e"}],"tips":[]}`)
	ok, err := repo.MarkCompleted(dbc, created.ID, result)
	if err != nil || !ok {
		t.Fatalf("MarkCompleted: ok=%v err=%v", ok, err)
	}
	// Terminal states never change again.
	ok, err = repo.MarkFailed(dbc, created.ID, "late failure")
	if err != nil || ok {
		t.Fatalf("MarkFailed after completed: ok=%v err=%v", ok, err)
	}

	got, err := repo.GetForOwner(dbc, owner, created.ID)
	if err != nil || got == nil {
		t.Fatalf("GetForOwner: got=%v err=%v", got, err)
	}
	if got.Status != types.ReportCompleted || got.Error != "" || got.CompletedAt == nil {
		t.Fatalf("GetForOwner: unexpected terminal state %+v", got)
	}
	res, err := got.Result()
	if err != nil || res == nil || len(res.Questions) != 1 || res.MarksObtained != 9 {
		t.Fatalf("Result: got=%+v err=%v", res, err)
	}
}

func TestReportRepoMarkFailedOnce(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	repo := NewReportRepo(db, testutil.Logger(t))

	created, err := repo.Create(dbc, newReport(uuid.New(), "Essay"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, err := repo.MarkFailed(dbc, created.ID, "boom"); err != nil || !ok {
		t.Fatalf("MarkFailed: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.MarkCompleted(dbc, created.ID, datatypes.JSON(`{}`)); err != nil || ok {
		t.Fatalf("MarkCompleted after failed: ok=%v err=%v", ok, err)
	}
}

func TestReportRepoListSearchAndOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	repo := NewReportRepo(db, testutil.Logger(t))

	owner := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"Physics mock", "Algebra 100%", "History essay"} {
		r := newReport(owner, title)
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := repo.Create(dbc, r); err != nil {
			t.Fatalf("Create %q: %v", title, err)
		}
	}

	all, err := repo.List(dbc, owner, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Title != "History essay" || all[2].Title != "Physics mock" {
		t.Fatalf("List: want newest first, got %d rows", len(all))
	}

	hits, err := repo.List(dbc, owner, "ALGEBRA", 0)
	if err != nil || len(hits) != 1 {
		t.Fatalf("List search: want=1 got=%d err=%v", len(hits), err)
	}
	hits, err = repo.List(dbc, owner, "%", 0)
	if err != nil || len(hits) != 1 {
		t.Fatalf("List literal percent: want=1 got=%d err=%v", len(hits), err)
	}
	hits, err = repo.List(dbc, owner, "math", 0)
	if err != nil || len(hits) != 3 {
		t.Fatalf("List by worksheet type: want=3 got=%d err=%v", len(hits), err)
	}
}

func TestReportRepoSkipsInvalidRows(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	repo := NewReportRepo(db, testutil.Logger(t))

	owner := uuid.New()
	good, err := repo.Create(dbc, newReport(owner, "Good"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	bad, err := repo.Create(dbc, newReport(owner, "Bad"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Completed without a result violates the record invariants.
	if err := tx.Exec(`UPDATE report SET status = 'completed' WHERE id = ?`, bad.ID).Error; err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	if _, err := repo.GetForOwner(dbc, owner, bad.ID); !errors.Is(err, types.ErrInvalidRecord) {
		t.Fatalf("GetForOwner invalid: want ErrInvalidRecord got=%v", err)
	}
	rows, err := repo.List(dbc, owner, "", 0)
	if err != nil || len(rows) != 1 || rows[0].ID != good.ID {
		t.Fatalf("List: want only the valid row, got=%d err=%v", len(rows), err)
	}
}

func TestReportRepoMarkschemes(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	repo := NewReportRepo(db, testutil.Logger(t))

	owner := uuid.New()
	src := newReport(owner, "With scheme")
	src.MarkschemeType = report.MarkschemeNew
	src.MarkschemeURL = "https://storage.example.com/ms.pdf"
	if _, err := repo.Create(dbc, src); err != nil {
		t.Fatalf("Create src: %v", err)
	}
	reuse := newReport(owner, "Reuse")
	reuse.MarkschemeType = report.MarkschemeExisting
	reuse.MarkschemeID = &src.ID
	reuse.MarkschemeURL = src.MarkschemeURL
	if _, err := repo.Create(dbc, reuse); err != nil {
		t.Fatalf("Create reuse: %v", err)
	}

	list, err := repo.ListMarkschemes(dbc, owner)
	if err != nil || len(list) != 1 || list[0].ID != src.ID {
		t.Fatalf("ListMarkschemes: got=%d err=%v", len(list), err)
	}
	refs, err := repo.CountMarkschemeRefs(dbc, owner, src.MarkschemeURL, src.ID)
	if err != nil || refs != 1 {
		t.Fatalf("CountMarkschemeRefs: want=1 got=%d err=%v", refs, err)
	}

	if ok, err := repo.SoftDelete(dbc, owner, reuse.ID); err != nil || !ok {
		t.Fatalf("SoftDelete: ok=%v err=%v", ok, err)
	}
	refs, err = repo.CountMarkschemeRefs(dbc, owner, src.MarkschemeURL, src.ID)
	if err != nil || refs != 0 {
		t.Fatalf("CountMarkschemeRefs after delete: want=0 got=%d err=%v", refs, err)
	}
}

func TestReportRepoStaleProcessing(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	repo := NewReportRepo(db, testutil.Logger(t))

	created, err := repo.Create(dbc, newReport(uuid.New(), "Stuck"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tx.Exec(`UPDATE report SET updated_at = ? WHERE id = ?`, time.Now().Add(-time.Hour), created.ID).Error; err != nil {
		t.Fatalf("age row: %v", err)
	}
	rows, err := repo.ListStaleProcessing(dbc, time.Now().Add(-30*time.Minute), 1000)
	if err != nil {
		t.Fatalf("ListStaleProcessing: %v", err)
	}
	found := false
	for _, r := range rows {
		found = found || r.ID == created.ID
	}
	if !found {
		t.Fatalf("ListStaleProcessing: stuck report missing")
	}
	if err := repo.Touch(dbc, created.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	rows, err = repo.ListStaleProcessing(dbc, time.Now().Add(-30*time.Minute), 1000)
	if err != nil {
		t.Fatalf("ListStaleProcessing after touch: %v", err)
	}
	for _, r := range rows {
		if r.ID == created.ID {
			t.Fatalf("ListStaleProcessing: touched report still listed")
		}
	}
}
