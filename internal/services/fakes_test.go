package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	jobstatus "github.com/checkyourpaper/checkyourpaper-backend/internal/domain/jobs"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/grading"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/ctxutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/gemini"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
)

func userCtx(uid uuid.UUID) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: uid})
}

// ---- reports ----

type fakeReportRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*types.Report
	invalid   map[uuid.UUID]bool
	failCalls int
	doneCalls int
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{rows: map[uuid.UUID]*types.Report{}, invalid: map[uuid.UUID]bool{}}
}

func (f *fakeReportRepo) put(r *types.Report) *types.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.SchemaVersion == 0 {
		r.SchemaVersion = types.ReportSchemaVersion
	}
	cp := *r
	f.rows[r.ID] = &cp
	return r
}

func (f *fakeReportRepo) get(id uuid.UUID) *types.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (f *fakeReportRepo) Create(dbc dbctx.Context, r *types.Report) (*types.Report, error) {
	r.Status = types.ReportProcessing
	r.SchemaVersion = types.ReportSchemaVersion
	r.CreatedAt = time.Now()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return f.put(r), nil
}

func (f *fakeReportRepo) GetForOwner(dbc dbctx.Context, owner, id uuid.UUID) (*types.Report, error) {
	f.mu.Lock()
	bad := f.invalid[id]
	f.mu.Unlock()
	if bad {
		return nil, fmt.Errorf("report %s: %w: missing worksheet_url", id, types.ErrInvalidRecord)
	}
	r := f.get(id)
	if r == nil || r.OwnerUserID != owner {
		return nil, nil
	}
	return r, nil
}

func (f *fakeReportRepo) List(dbc dbctx.Context, owner uuid.UUID, q string, limit int) ([]*types.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*types.Report{}
	for _, r := range f.rows {
		if r.OwnerUserID != owner {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(q)) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeReportRepo) ListMarkschemes(dbc dbctx.Context, owner uuid.UUID) ([]*types.Report, error) {
	all, _ := f.List(dbc, owner, "", 0)
	out := []*types.Report{}
	for _, r := range all {
		if r.MarkschemeType == "new" && r.MarkschemeURL != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReportRepo) CountMarkschemeRefs(dbc dbctx.Context, owner uuid.UUID, url string, exclude uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.OwnerUserID == owner && r.MarkschemeURL == url && r.ID != exclude {
			n++
		}
	}
	return n, nil
}

func (f *fakeReportRepo) Rename(dbc dbctx.Context, owner, id uuid.UUID, title string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.OwnerUserID != owner {
		return false, nil
	}
	r.Title = title
	return true, nil
}

func (f *fakeReportRepo) SoftDelete(dbc dbctx.Context, owner, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.OwnerUserID != owner {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

func (f *fakeReportRepo) finish(id uuid.UUID, apply func(r *types.Report)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.Status != types.ReportProcessing {
		return false
	}
	apply(r)
	return true
}

func (f *fakeReportRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, result datatypes.JSON) (bool, error) {
	f.mu.Lock()
	f.doneCalls++
	f.mu.Unlock()
	now := time.Now()
	return f.finish(id, func(r *types.Report) {
		r.Status = types.ReportCompleted
		r.GradingResult = result
		r.CompletedAt = &now
	}), nil
}

func (f *fakeReportRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, msg string) (bool, error) {
	f.mu.Lock()
	f.failCalls++
	delete(f.invalid, id)
	f.mu.Unlock()
	now := time.Now()
	return f.finish(id, func(r *types.Report) {
		r.Status = types.ReportFailed
		r.Error = msg
		r.FailedAt = &now
	}), nil
}

func (f *fakeReportRepo) ListStaleProcessing(dbc dbctx.Context, before time.Time, limit int) ([]*types.Report, error) {
	return nil, nil
}

func (f *fakeReportRepo) Touch(dbc dbctx.Context, id uuid.UUID) error { return nil }

// ---- profiles ----

type fakeProfileRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.UserProfile
}

func newFakeProfileRepo(profiles ...*types.UserProfile) *fakeProfileRepo {
	f := &fakeProfileRepo{rows: map[uuid.UUID]*types.UserProfile{}}
	for _, p := range profiles {
		cp := *p
		f.rows[p.ID] = &cp
	}
	return f
}

func (f *fakeProfileRepo) Create(dbc dbctx.Context, p *types.UserProfile) (*types.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.GoogleSub == p.GoogleSub || row.Email == p.Email {
			return nil, fmt.Errorf("create profile: %w", types.ErrConflict)
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	f.rows[p.ID] = &cp
	return p, nil
}

func (f *fakeProfileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeProfileRepo) GetByGoogleSub(dbc dbctx.Context, sub string) (*types.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.GoogleSub == sub {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeProfileRepo) ListByStatus(dbc dbctx.Context, status types.UserStatus, limit int) ([]*types.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*types.UserProfile{}
	for _, p := range f.rows {
		if p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeProfileRepo) SetStatusIf(dbc dbctx.Context, id uuid.UUID, from, to types.UserStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (f *fakeProfileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil
	}
	if v, ok := updates["display_name"].(string); ok {
		p.DisplayName = v
	}
	if v, ok := updates["photo_url"].(string); ok {
		p.PhotoURL = v
	}
	return nil
}

// ---- jobs ----

type fakeJobs struct {
	mu         sync.Mutex
	enqueued   []*types.JobRun
	dispatched []uuid.UUID
}

func (f *fakeJobs) Enqueue(dbc dbctx.Context, owner uuid.UUID, jobType, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := &types.JobRun{ID: uuid.New(), OwnerUserID: owner, JobType: jobType, EntityType: entityType, EntityID: entityID, Status: jobstatus.StatusQueued}
	f.enqueued = append(f.enqueued, job)
	return job, nil
}

func (f *fakeJobs) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, jobID)
	return nil
}

// ---- store ----

const fakeStoreBase = "https://cdn.test/"

type fakeStore struct {
	mu      sync.Mutex
	puts    map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore { return &fakeStore{puts: map[string][]byte{}} }

func (s *fakeStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts[key] = b
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) PublicURL(key string) string { return fakeStoreBase + key }

func (s *fakeStore) KeyFromURL(raw string) (string, bool) {
	if !strings.HasPrefix(raw, fakeStoreBase) {
		return "", false
	}
	return strings.TrimPrefix(raw, fakeStoreBase), true
}

// ---- model / fetch ----

type fakeModel struct {
	mu    sync.Mutex
	reply string
	err   error
	block bool
	calls []gemini.Request
}

func (m *fakeModel) Generate(ctx context.Context, req gemini.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.reply, m.err
}

type fakeFetcher struct {
	err   error
	calls int
}

func (f *fakeFetcher) FetchForReport(ctx context.Context, r *types.Report) (grading.Attachment, *grading.Attachment, error) {
	f.calls++
	if f.err != nil {
		return grading.Attachment{}, nil, f.err
	}
	ws := grading.Attachment{MIMEType: "application/pdf", Data: []byte("%PDF-ws")}
	if !r.HasMarkscheme() {
		return ws, nil, nil
	}
	return ws, &grading.Attachment{MIMEType: "application/pdf", Data: []byte("%PDF-ms")}, nil
}

// ---- events ----

type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (e *recordingEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
}

func (e *recordingEmitter) events(event realtime.SSEEvent) []realtime.SSEMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []realtime.SSEMessage{}
	for _, m := range e.msgs {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func dbcBackground() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }
