package services

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// AdminService is the user-management surface. Every call checks that the
// caller holds the admin role.
type AdminService struct {
	repo *storage.Repository
	now  func() time.Time
	mutationHooks
}

func NewAdminService(repo *storage.Repository) *AdminService {
	return &AdminService{repo: repo, now: time.Now}
}

// RequireAdmin fails with ErrForbidden unless callerID is an active admin.
func (s *AdminService) RequireAdmin(ctx context.Context, callerID string) error {
	caller, err := s.repo.Queries().GetUser(ctx, callerID)
	if err != nil {
		return core.ErrForbidden
	}
	if caller.Role != core.RoleAdmin || caller.Status != core.StatusActive {
		return core.ErrForbidden
	}
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, callerID string) ([]core.User, error) {
	if err := s.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	return s.repo.Queries().ListUsers(ctx)
}

// SetStatus locks or unlocks an account.
func (s *AdminService) SetStatus(ctx context.Context, callerID, userID string, status int) error {
	if err := s.RequireAdmin(ctx, callerID); err != nil {
		return err
	}
	if status != core.StatusActive && status != core.StatusLocked {
		return &core.ValidationError{Field: "status", Reason: "must be 0 or 1"}
	}
	if err := s.repo.Queries().UpdateUserStatus(ctx, userID, status, s.now().UTC()); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User status changed", "user_id", userID, "status", status, "by", callerID)
	return nil
}

// DeleteUser removes the account and everything it owns.
func (s *AdminService) DeleteUser(ctx context.Context, callerID, userID string) error {
	if err := s.RequireAdmin(ctx, callerID); err != nil {
		return err
	}
	if callerID == userID {
		return &core.ValidationError{Field: "user_id", Reason: "admins cannot delete themselves"}
	}
	if err := s.repo.Queries().DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.notify(userID)
	slog.InfoContext(ctx, "User deleted", "user_id", userID, "by", callerID)
	return nil
}
