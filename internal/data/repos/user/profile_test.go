package user

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos/testutil"
	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
)

func TestUserProfileRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	repo := NewUserProfileRepo(db, testutil.Logger(t))

	sub := "google-" + uuid.NewString()
	p, err := repo.Create(dbc, &types.UserProfile{
		GoogleSub:   sub,
		Email:       "Student-" + uuid.NewString() + "@Example.com",
		DisplayName: "Student",
		Status:      types.UserPending,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByGoogleSub(dbc, sub)
	if err != nil || got == nil || got.ID != p.ID {
		t.Fatalf("GetByGoogleSub: got=%v err=%v", got, err)
	}

	pending, err := repo.ListByStatus(dbc, types.UserPending, 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	found := false
	for _, row := range pending {
		found = found || row.ID == p.ID
	}
	if !found {
		t.Fatalf("ListByStatus: pending profile missing")
	}

	ok, err := repo.SetStatusIf(dbc, p.ID, types.UserPending, types.UserApproved)
	if err != nil || !ok {
		t.Fatalf("SetStatusIf: ok=%v err=%v", ok, err)
	}
	ok, err = repo.SetStatusIf(dbc, p.ID, types.UserPending, types.UserRejected)
	if err != nil || ok {
		t.Fatalf("SetStatusIf stale source: ok=%v err=%v", ok, err)
	}

	if err := repo.UpdateFields(dbc, p.ID, map[string]interface{}{"status": "admin"}); err == nil {
		t.Fatalf("UpdateFields: status change must be refused")
	}
	if err := repo.UpdateFields(dbc, p.ID, map[string]interface{}{"display_name": "Renamed"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err = repo.GetByID(dbc, p.ID)
	if err != nil || got == nil || got.DisplayName != "Renamed" || got.Status != types.UserApproved {
		t.Fatalf("GetByID: got=%+v err=%v", got, err)
	}
}

func TestUserProfileRepoDuplicateSubIsConflict(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewUserProfileRepo(db, testutil.Logger(t))

	sub := "google-" + uuid.NewString()
	first := &types.UserProfile{GoogleSub: sub, Email: uuid.NewString() + "@example.com", Status: types.UserPending}
	if _, err := repo.Create(testutil.DBC(tx), first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// A savepoint keeps the outer transaction usable after the violation.
	err := tx.Transaction(func(inner *gorm.DB) error {
		_, err := repo.Create(testutil.DBC(inner), &types.UserProfile{GoogleSub: sub, Email: uuid.NewString() + "@example.com", Status: types.UserPending})
		return err
	})
	if !errors.Is(err, types.ErrConflict) {
		t.Fatalf("Create duplicate: want ErrConflict got=%v", err)
	}
}
