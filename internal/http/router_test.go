package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/access"
	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/user"
	httpH "github.com/checkyourpaper/checkyourpaper-backend/internal/http/handlers"
	httpMW "github.com/checkyourpaper/checkyourpaper-backend/internal/http/middleware"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/ctxutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

// tokenAuth accepts "tok-<uuid>" bearer tokens.
type tokenAuth struct{}

func (tokenAuth) SignInWithGoogle(ctx context.Context, idToken string) (*services.SignInResult, error) {
	return nil, errors.New("not used")
}

func (tokenAuth) SetContextFromToken(ctx context.Context, tok string) (context.Context, error) {
	id, err := uuid.Parse(strings.TrimPrefix(tok, "tok-"))
	if err != nil {
		return nil, errors.New("bad token")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: id, SessionID: uuid.New()}), nil
}

func (tokenAuth) GetAccessTTL() time.Duration { return time.Hour }

type statusProfiles struct {
	status map[uuid.UUID]user.Status
}

func (p *statusProfiles) EnsureProfile(ctx context.Context, ident *services.ExternalIdentity) (*types.UserProfile, error) {
	return nil, errors.New("not used")
}

func (p *statusProfiles) Me(ctx context.Context) (*types.UserProfile, error) {
	uid := ctxutil.UserID(ctx)
	return &types.UserProfile{ID: uid, Status: p.status[uid]}, nil
}

func (p *statusProfiles) Update(ctx context.Context, in services.UpdateProfileInput) (*types.UserProfile, error) {
	return p.Me(ctx)
}

func (p *statusProfiles) Viewer(ctx context.Context) (*access.Viewer, error) {
	uid := ctxutil.UserID(ctx)
	st, ok := p.status[uid]
	if uid == uuid.Nil || !ok {
		return nil, nil
	}
	return &access.Viewer{Status: st}, nil
}

type countingStore struct{ puts int }

func (s *countingStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	s.puts++
	_, err := io.Copy(io.Discard, body)
	return err
}
func (s *countingStore) Delete(ctx context.Context, key string) error { return nil }
func (s *countingStore) PublicURL(key string) string                  { return "https://cdn.test/" + key }
func (s *countingStore) KeyFromURL(raw string) (string, bool) {
	return strings.TrimPrefix(raw, "https://cdn.test/"), strings.HasPrefix(raw, "https://cdn.test/")
}

type fixture struct {
	router   *gin.Engine
	store    *countingStore
	approved uuid.UUID
	pending  uuid.UUID
	admin    uuid.UUID
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{store: &countingStore{}, approved: uuid.New(), pending: uuid.New(), admin: uuid.New()}
	profiles := &statusProfiles{status: map[uuid.UUID]user.Status{
		f.approved: user.StatusApproved,
		f.pending:  user.StatusPending,
		f.admin:    user.StatusAdmin,
	}}
	log := logger.Nop()
	f.router = NewRouter(RouterConfig{
		Log:               log,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, tokenAuth{}, profiles),
		UserHandler:       httpH.NewUserHandler(profiles),
		UploadHandler:     httpH.NewUploadHandler(services.NewUploadService(log, f.store, maxBytes)),
		NavigationHandler: httpH.NewNavigationHandler(profiles),
		HealthHandler:     httpH.NewHealthHandler(nil),
	})
	return f
}

func (f *fixture) do(t *testing.T, req *http.Request, uid uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	if uid != uuid.Nil {
		req.Header.Set("Authorization", "Bearer tok-"+uid.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return env.Error.Code
}

func multipartUpload(t *testing.T, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("kind", "worksheet")
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="paper.bin"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	_, _ = part.Write(body)
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadRejectsDisallowedTypeBeforeStorage(t *testing.T) {
	f := newFixture(t, 1<<20)
	rec := f.do(t, multipartUpload(t, "application/x-msdownload", []byte("MZ")), f.approved)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "unsupported_content_type" {
		t.Fatalf("code: want=unsupported_content_type got=%s", code)
	}
	if f.store.puts != 0 {
		t.Fatalf("store touched: puts=%d", f.store.puts)
	}
}

func TestUploadStoresAllowedFile(t *testing.T) {
	f := newFixture(t, 1<<20)
	rec := f.do(t, multipartUpload(t, "application/pdf", []byte("%PDF-1.7")), f.approved)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var res services.UploadResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(res.Key, "users/"+f.approved.String()+"/worksheet/") || res.ContentType != "application/pdf" {
		t.Fatalf("result: got=%+v", res)
	}
	if f.store.puts != 1 {
		t.Fatalf("puts: want=1 got=%d", f.store.puts)
	}
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, 16)
	rec := f.do(t, multipartUpload(t, "application/pdf", bytes.Repeat([]byte("x"), 64)), f.approved)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: want=413 got=%d", rec.Code)
	}
	if f.store.puts != 0 {
		t.Fatalf("store touched: puts=%d", f.store.puts)
	}
}

func TestDataRoutesRequireApproval(t *testing.T) {
	f := newFixture(t, 1<<20)

	rec := f.do(t, multipartUpload(t, "application/pdf", []byte("%PDF")), uuid.Nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: want=401 got=%d", rec.Code)
	}
	rec = f.do(t, multipartUpload(t, "application/pdf", []byte("%PDF")), f.pending)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "waitlisted" {
		t.Fatalf("pending: want=403 waitlisted got=%d %s", rec.Code, rec.Body.String())
	}
	// Waitlisted users can still read their own profile.
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/me", nil), f.pending)
	if rec.Code != http.StatusOK {
		t.Fatalf("pending /api/me: want=200 got=%d", rec.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	f := newFixture(t, 1<<20)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil), f.approved)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "admin_only" {
		t.Fatalf("approved on admin route: want=403 admin_only got=%d %s", rec.Code, rec.Body.String())
	}
}

func TestNavigationResolve(t *testing.T) {
	f := newFixture(t, 1<<20)
	cases := []struct {
		name     string
		uid      uuid.UUID
		path     string
		allow    bool
		redirect string
	}{
		{"anonymous public", uuid.Nil, "/about", true, ""},
		{"anonymous private", uuid.Nil, "/reports", false, "/login"},
		{"pending private", f.pending, "/reports?tab=1", false, "/waitlist"},
		{"pending waitlist", f.pending, "/waitlist", true, ""},
		{"approved waitlist", f.approved, "/waitlist", false, "/"},
		{"admin dashboard", f.admin, "/admin", true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/navigation/resolve?path="+strings.ReplaceAll(tc.path, "?", "%3F"), nil)
			rec := f.do(t, req, tc.uid)
			if rec.Code != http.StatusOK {
				t.Fatalf("status: want=200 got=%d", rec.Code)
			}
			var out struct {
				Allow    bool   `json:"allow"`
				Redirect string `json:"redirect"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Allow != tc.allow || out.Redirect != tc.redirect {
				t.Fatalf("decision: want=%v/%q got=%v/%q", tc.allow, tc.redirect, out.Allow, out.Redirect)
			}
		})
	}
}

func TestInvalidTokenIsAnonymousOnNavigation(t *testing.T) {
	f := newFixture(t, 1<<20)
	req := httptest.NewRequest(http.MethodGet, "/api/navigation/resolve?path=/reports", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"/login"`) {
		t.Fatalf("want redirect to /login, got=%d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthcheck(t *testing.T) {
	f := newFixture(t, 1<<20)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthcheck", nil), uuid.Nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: got=%d %q", rec.Code, rec.Body.String())
	}
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil), uuid.Nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db: want=503 got=%d", rec.Code)
	}
}
