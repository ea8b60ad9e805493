package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/access"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos"
	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/apierr"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/ctxutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

const maxDisplayNameLength = 120

type UpdateProfileInput struct {
	DisplayName *string `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}

type ProfileService interface {
	EnsureProfile(ctx context.Context, ident *ExternalIdentity) (*types.UserProfile, error)
	Me(ctx context.Context) (*types.UserProfile, error)
	Update(ctx context.Context, in UpdateProfileInput) (*types.UserProfile, error)
	// Viewer returns nil for an anonymous request.
	Viewer(ctx context.Context) (*access.Viewer, error)
}

type profileService struct {
	log        *logger.Logger
	repo       repos.UserProfileRepo
	notify     ProfileNotifier
	adminEmail string
}

func NewProfileService(baseLog *logger.Logger, repo repos.UserProfileRepo, notify ProfileNotifier, adminEmail string) ProfileService {
	return &profileService{
		log:        baseLog.With("service", "ProfileService"),
		repo:       repo,
		notify:     notify,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
	}
}

func (s *profileService) isAdminEmail(email string) bool {
	return s.adminEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.adminEmail)
}

// EnsureProfile returns the profile for ident, creating it as pending (admin
// for ADMIN_EMAIL) on first sign-in. An existing profile is returned as
// stored; its status moves only through admin decisions. Two concurrent
// first sign-ins converge on the same row.
func (s *profileService) EnsureProfile(ctx context.Context, ident *ExternalIdentity) (*types.UserProfile, error) {
	if ident == nil || ident.Sub == "" {
		return nil, fmt.Errorf("missing identity")
	}
	dbc := dbctx.Context{Ctx: ctx}
	existing, err := s.repo.GetByGoogleSub(dbc, ident.Sub)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	status := types.UserPending
	if s.isAdminEmail(ident.Email) {
		status = types.UserAdmin
	}
	created, err := s.repo.Create(dbc, &types.UserProfile{
		GoogleSub:   ident.Sub,
		Email:       ident.Email,
		DisplayName: ident.Name,
		PhotoURL:    ident.Picture,
		Status:      status,
	})
	if errors.Is(err, types.ErrConflict) {
		again, gerr := s.repo.GetByGoogleSub(dbc, ident.Sub)
		if gerr != nil {
			return nil, fmt.Errorf("load profile after conflict: %w", gerr)
		}
		if again == nil {
			return nil, apierr.Conflict("email_in_use", fmt.Errorf("email already belongs to another account"))
		}
		return again, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.log.Info("Created user profile", "user_id", created.ID, "status", created.Status)
	if s.notify != nil && created.Status == types.UserPending {
		s.notify.ProfileStatusChanged(created, "")
	}
	return created, nil
}

func (s *profileService) Me(ctx context.Context) (*types.UserProfile, error) {
	uid := ctxutil.UserID(ctx)
	if uid == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("not signed in"))
	}
	p, err := s.repo.GetByID(dbctx.Context{Ctx: ctx}, uid)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p == nil {
		return nil, apierr.NotFound("profile_not_found", fmt.Errorf("profile not found"))
	}
	return p, nil
}

func (s *profileService) Update(ctx context.Context, in UpdateProfileInput) (*types.UserProfile, error) {
	p, err := s.Me(ctx)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" || len([]rune(name)) > maxDisplayNameLength {
			return nil, apierr.BadRequest("invalid_display_name", "display_name must be 1-%d characters", maxDisplayNameLength)
		}
		updates["display_name"] = name
		p.DisplayName = name
	}
	if in.PhotoURL != nil {
		photo := strings.TrimSpace(*in.PhotoURL)
		if photo != "" {
			u, perr := url.Parse(photo)
			if perr != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
				return nil, apierr.BadRequest("invalid_photo_url", "photo_url must be an http(s) URL")
			}
		}
		updates["photo_url"] = photo
		p.PhotoURL = photo
	}
	if len(updates) == 0 {
		return p, nil
	}
	if err := s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, p.ID, updates); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

func (s *profileService) Viewer(ctx context.Context) (*access.Viewer, error) {
	if rd := ctxutil.GetRequestData(ctx); rd == nil {
		return nil, nil
	}
	p, err := s.Me(ctx)
	if err != nil {
		if ae, ok := apierr.As(err); ok && ae.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &access.Viewer{Status: p.Status}, nil
}
