package handler

import (
	"context"
	"net/http"

	"innovate_api/internal/api/middleware"
	"innovate_api/internal/app/service"
	"innovate_api/internal/common"
	"innovate_api/internal/common/security"
	"innovate_api/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type authService interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.AuthResponse, error)
	Login(ctx context.Context, req service.LoginRequest) (*service.AuthResponse, error)
	Logout(ctx context.Context, principal *security.Principal) error
	Me(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, req service.UpdateProfileRequest) (*model.User, error)
}

type AuthHandler struct {
	authService authService
}

func NewAuthHandler(authService authService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterPublicRoutes mounts the endpoints reachable without a token.
func (h *AuthHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/logout", h.logout)
	r.Get("/me", h.me)
	r.Patch("/me", h.updateProfile)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		common.RespondWithDomainError(w, common.ErrUnauthorized)
		return
	}
	if err := h.authService.Logout(r.Context(), principal); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	user, err := h.authService.Me(r.Context(), actor.UserID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var req service.UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.authService.UpdateProfile(r.Context(), actor.UserID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}
