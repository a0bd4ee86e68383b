package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/common/security"
	"innovate_api/internal/domain/model"
	"innovate_api/internal/domain/repository"
	"innovate_api/internal/platform/cache"

	"github.com/google/uuid"
)

type AuthService struct {
	userRepo repository.UserRepository
	phase    PhaseGuard
	denylist cache.TokenDenylist
}

func NewAuthService(userRepo repository.UserRepository, phase PhaseGuard, denylist cache.TokenDenylist) *AuthService {
	return &AuthService{userRepo: userRepo, phase: phase, denylist: denylist}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=2,max=100"`
	GithubURL  *string `json:"github_url" validate:"omitempty,url,max=255"`
	TshirtSize *string `json:"tshirt_size" validate:"omitempty,oneof=XS S M L XL XXL"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register always creates a student; judges and admins are promoted by an admin.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if len(req.Password) > security.MaxPasswordBytes {
		return nil, fmt.Errorf("password must be at most %d bytes: %w", security.MaxPasswordBytes, common.ErrValidation)
	}
	if err := s.phase.Require(ctx, model.ActionRegister); err != nil {
		return nil, err
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Role:           model.RoleStudent,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("invalid email or password: %w", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, fmt.Errorf("invalid email or password: %w", common.ErrUnauthorized)
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResponse, error) {
	token, err := security.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = ""
	return &AuthResponse{User: user, Token: token}, nil
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, principal *security.Principal) error {
	if s.denylist == nil || principal.TokenID == "" {
		return nil
	}
	if err := s.denylist.Revoke(ctx, principal.TokenID, time.Until(principal.ExpiresAt)); err != nil {
		return fmt.Errorf("failed to revoke token: %v: %w", err, common.ErrServiceUnavailable)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	user.HashedPassword = ""
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*model.User, error) {
	req.Name = trimPtr(req.Name)
	req.GithubURL = trimPtr(req.GithubURL)
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.GithubURL != nil {
		user.GithubURL = req.GithubURL
	}
	if req.TshirtSize != nil {
		user.TshirtSize = req.TshirtSize
	}
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	user.HashedPassword = ""
	return user, nil
}

// EnsureAdmin creates the bootstrap admin, or promotes an existing account with that email.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = normalizeEmail(email)
	existing, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == model.RoleAdmin {
			return nil
		}
		log.Printf("INFO: promoting existing user %s to admin", email)
		return s.userRepo.UpdateRole(ctx, existing.ID, model.RoleAdmin)
	case !errors.Is(err, common.ErrNotFound):
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}

	if len(password) > security.MaxPasswordBytes {
		return fmt.Errorf("bootstrap admin password must be at most %d bytes: %w", security.MaxPasswordBytes, common.ErrValidation)
	}
	hashedPassword, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &model.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		HashedPassword: hashedPassword,
		Role:           model.RoleAdmin,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	log.Printf("INFO: bootstrap admin %s created", email)
	return nil
}
