package services

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/apierr"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
)

type adminFixture struct {
	repo    *fakeProfileRepo
	emitter *recordingEmitter
	svc     AdminService
	admin   *types.UserProfile
	pending *types.UserProfile
}

func newAdminFixture() *adminFixture {
	admin := &types.UserProfile{ID: uuid.New(), GoogleSub: "a", Email: "admin@example.com", Status: types.UserAdmin}
	pending := &types.UserProfile{ID: uuid.New(), GoogleSub: "p", Email: "p@example.com", Status: types.UserPending}
	repo := newFakeProfileRepo(admin, pending)
	emitter := &recordingEmitter{}
	notify := NewProfileNotifier(emitter)
	profiles := NewProfileService(logger.Nop(), repo, notify, "")
	return &adminFixture{
		repo:    repo,
		emitter: emitter,
		svc:     NewAdminService(logger.Nop(), repo, profiles, notify),
		admin:   admin,
		pending: pending,
	}
}

func wantStatus(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae, ok := apierr.As(err)
	if !ok {
		t.Fatalf("want apierr %d/%s got=%v", status, code, err)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("apierr: want=%d/%s got=%d/%s", status, code, ae.Status, ae.Code)
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	f := newAdminFixture()
	ctx := userCtx(f.admin.ID)

	got, err := f.svc.Approve(ctx, f.pending.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.Status != types.UserApproved {
		t.Fatalf("status: want=approved got=%s", got.Status)
	}
	again, err := f.svc.Approve(ctx, f.pending.ID)
	if err != nil {
		t.Fatalf("second Approve: %v", err)
	}
	if again.Status != types.UserApproved {
		t.Fatalf("second status: want=approved got=%s", again.Status)
	}

	events := f.emitter.events(realtime.SSEEventProfileStatusChanged)
	if len(events) != 2 {
		t.Fatalf("events: want=2 (user + admins) got=%d", len(events))
	}
	if events[0].Channel != f.pending.ID.String() || events[1].Channel != realtime.AdminChannel {
		t.Fatalf("channels: got=%s,%s", events[0].Channel, events[1].Channel)
	}
}

func TestDecisionConflicts(t *testing.T) {
	f := newAdminFixture()
	ctx := userCtx(f.admin.ID)
	if _, err := f.svc.Reject(ctx, f.pending.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	_, err := f.svc.Approve(ctx, f.pending.ID)
	wantStatus(t, err, http.StatusConflict, "invalid_status_transition")

	_, err = f.svc.Reject(ctx, f.admin.ID)
	wantStatus(t, err, http.StatusConflict, "admin_immutable")

	_, err = f.svc.Approve(ctx, uuid.New())
	wantStatus(t, err, http.StatusNotFound, "profile_not_found")
}

func TestNonAdminIsForbidden(t *testing.T) {
	f := newAdminFixture()
	ctx := userCtx(f.pending.ID)
	_, err := f.svc.ListPending(ctx)
	wantStatus(t, err, http.StatusForbidden, "admin_only")
	_, err = f.svc.Approve(ctx, f.pending.ID)
	wantStatus(t, err, http.StatusForbidden, "admin_only")

	if p, _ := f.repo.GetByID(dbcBackground(), f.pending.ID); p.Status != types.UserPending {
		t.Fatalf("status changed by non-admin: %s", p.Status)
	}
}

func TestListPending(t *testing.T) {
	f := newAdminFixture()
	got, err := f.svc.ListPending(userCtx(f.admin.ID))
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 1 || got[0].ID != f.pending.ID {
		t.Fatalf("pending: want=[%s] got=%v", f.pending.ID, got)
	}
}
