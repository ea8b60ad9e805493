package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos"
	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/user"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/apierr"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

type AdminService interface {
	ListPending(ctx context.Context) ([]*types.UserProfile, error)
	Approve(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error)
	Reject(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error)
}

type adminService struct {
	log      *logger.Logger
	repo     repos.UserProfileRepo
	profiles ProfileService
	notify   ProfileNotifier
}

func NewAdminService(baseLog *logger.Logger, repo repos.UserProfileRepo, profiles ProfileService, notify ProfileNotifier) AdminService {
	return &adminService{
		log:      baseLog.With("service", "AdminService"),
		repo:     repo,
		profiles: profiles,
		notify:   notify,
	}
}

func (s *adminService) requireAdmin(ctx context.Context) (*types.UserProfile, error) {
	caller, err := s.profiles.Me(ctx)
	if err != nil {
		return nil, err
	}
	if caller.Status != types.UserAdmin {
		return nil, apierr.Forbidden("admin_only", fmt.Errorf("admin access required"))
	}
	return caller, nil
}

func (s *adminService) ListPending(ctx context.Context) ([]*types.UserProfile, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	out, err := s.repo.ListByStatus(dbctx.Context{Ctx: ctx}, types.UserPending, 0)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return out, nil
}

func (s *adminService) Approve(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	return s.decide(ctx, userID, types.UserApproved)
}

func (s *adminService) Reject(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	return s.decide(ctx, userID, types.UserRejected)
}

// decide applies one conditional write pending -> to. Repeating a recorded
// decision is a no-op that returns the profile.
func (s *adminService) decide(ctx context.Context, userID uuid.UUID, to types.UserStatus) (*types.UserProfile, error) {
	caller, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	target, err := s.repo.GetByID(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if target == nil {
		return nil, apierr.NotFound("profile_not_found", fmt.Errorf("profile not found"))
	}
	if target.Status == types.UserAdmin {
		return nil, apierr.Conflict("admin_immutable", fmt.Errorf("admin profiles cannot be changed"))
	}
	if !user.CanDecide(target.Status, to) {
		return nil, apierr.Conflict("invalid_status_transition", fmt.Errorf("cannot move %s profile to %s", target.Status, to))
	}
	if target.Status == to {
		return target, nil
	}

	ok, err := s.repo.SetStatusIf(dbc, target.ID, types.UserPending, to)
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	if !ok {
		// Lost a race with another decision; report what is stored now.
		now, gerr := s.repo.GetByID(dbc, target.ID)
		if gerr != nil {
			return nil, fmt.Errorf("reload profile: %w", gerr)
		}
		if now != nil && now.Status == to {
			return now, nil
		}
		return nil, apierr.Conflict("invalid_status_transition", fmt.Errorf("profile is no longer pending"))
	}

	prev := target.Status
	target.Status = to
	s.log.Info("Waitlist decision recorded", "user_id", target.ID, "admin_user_id", caller.ID, "status", to)
	if s.notify != nil {
		s.notify.ProfileStatusChanged(target, prev)
	}
	return target, nil
}
