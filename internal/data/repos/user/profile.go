package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

const pgUniqueViolation = "23505"

type UserProfileRepo interface {
	Create(dbc dbctx.Context, p *types.UserProfile) (*types.UserProfile, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.UserProfile, error)
	GetByGoogleSub(dbc dbctx.Context, sub string) (*types.UserProfile, error)
	ListByStatus(dbc dbctx.Context, status types.UserStatus, limit int) ([]*types.UserProfile, error)
	SetStatusIf(dbc dbctx.Context, id uuid.UUID, from types.UserStatus, to types.UserStatus) (bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type userProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	return &userProfileRepo{db: db, log: baseLog.With("repo", "UserProfileRepo")}
}

// Create inserts a new profile. A concurrent first sign-in for the same Google
// account surfaces as types.ErrConflict.
func (r *userProfileRepo) Create(dbc dbctx.Context, p *types.UserProfile) (*types.UserProfile, error) {
	if p == nil {
		return nil, fmt.Errorf("nil profile")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if !p.Status.Valid() {
		return nil, fmt.Errorf("invalid profile status %q", p.Status)
	}
	if err := dbc.Resolve(r.db).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create profile: %w", types.ErrConflict)
		}
		return nil, err
	}
	return p, nil
}

func (r *userProfileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.UserProfile, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "id = ?", id)
}

func (r *userProfileRepo) GetByGoogleSub(dbc dbctx.Context, sub string) (*types.UserProfile, error) {
	if strings.TrimSpace(sub) == "" {
		return nil, nil
	}
	return r.first(dbc, "google_sub = ?", sub)
}

func (r *userProfileRepo) first(dbc dbctx.Context, where string, arg interface{}) (*types.UserProfile, error) {
	var p types.UserProfile
	err := dbc.Resolve(r.db).Where(where, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByStatus returns profiles oldest first so the waitlist is served in order.
func (r *userProfileRepo) ListByStatus(dbc dbctx.Context, status types.UserStatus, limit int) ([]*types.UserProfile, error) {
	out := []*types.UserProfile{}
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	if err := dbc.Resolve(r.db).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatusIf moves id from -> to in one conditional write and reports whether a row changed.
func (r *userProfileRepo) SetStatusIf(dbc dbctx.Context, id uuid.UUID, from types.UserStatus, to types.UserStatus) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.Resolve(r.db).
		Model(&types.UserProfile{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *userProfileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["status"]; ok {
		return fmt.Errorf("status is changed through SetStatusIf only")
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.Resolve(r.db).
		Model(&types.UserProfile{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
