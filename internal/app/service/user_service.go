package service

import (
	"context"
	"fmt"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/common/security"
	"innovate_api/internal/domain/model"
	"innovate_api/internal/domain/repository"
	"innovate_api/internal/platform/cache"
)

type UserService struct {
	userRepo repository.UserRepository
	denylist cache.TokenDenylist
	now      func() time.Time
}

func NewUserService(userRepo repository.UserRepository, denylist cache.TokenDenylist) *UserService {
	return &UserService{userRepo: userRepo, denylist: denylist, now: time.Now}
}

type UserPage struct {
	Users    []model.User `json:"users"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

func (s *UserService) ListUsers(ctx context.Context, role string, page, pageSize int) (*UserPage, error) {
	if role != "" && !model.IsValidRole(role) {
		return nil, fmt.Errorf("unknown role %q: %w", role, common.ErrValidation)
	}
	limit, offset := Page(page, pageSize)
	users, total, err := s.userRepo.List(ctx, role, limit, offset)
	if err != nil {
		return nil, common.Errorf("failed to list users: %w", err)
	}
	return &UserPage{Users: users, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=student judge admin"`
}

// ChangeRole lets an admin set any role except demoting themselves.
// The user's outstanding tokens are revoked so the change applies immediately.
func (s *UserService) ChangeRole(ctx context.Context, actor Actor, userID string, req ChangeRoleRequest) (*model.User, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, common.ErrForbidden
	}
	if actor.UserID == userID && req.Role != model.RoleAdmin {
		return nil, fmt.Errorf("admins cannot demote themselves: %w", common.ErrInvalidState)
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, common.Errorf("failed to load user: %w", err)
	}
	if user.Role == req.Role {
		user.HashedPassword = ""
		return user, nil
	}

	// Tokens carry the role, so the old ones have to go before the new role takes effect.
	if s.denylist != nil {
		if err := s.denylist.RevokeUser(ctx, userID, s.now(), security.TokenTTL()); err != nil {
			return nil, fmt.Errorf("failed to revoke existing sessions: %v: %w", err, common.ErrServiceUnavailable)
		}
	}
	if err := s.userRepo.UpdateRole(ctx, userID, req.Role); err != nil {
		return nil, common.Errorf("failed to change role: %w", err)
	}
	user.Role = req.Role
	user.HashedPassword = ""
	return user, nil
}
