package handler

import (
	"context"
	"net/http"

	"innovate_api/internal/app/service"
	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type submissionService interface {
	CreateDraft(ctx context.Context, userID string, req service.CreateSubmissionRequest) (*model.Submission, error)
	UpdateDraft(ctx context.Context, userID, submissionID string, fields service.DraftFields) (*model.Submission, error)
	Finalize(ctx context.Context, userID, submissionID string) (*model.Submission, error)
	Get(ctx context.Context, actor service.Actor, submissionID string) (*model.Submission, error)
	ListByTeam(ctx context.Context, actor service.Actor, teamID string) ([]model.Submission, error)
}

type SubmissionHandler struct {
	submissionService submissionService
}

func NewSubmissionHandler(ss submissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: ss}
}

// RegisterRoutes expects an authenticated router.
func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/submissions", h.create)
	r.Get("/submissions/{submissionID}", h.get)
	r.Patch("/submissions/{submissionID}", h.update)
	r.Post("/submissions/{submissionID}/finalize", h.finalize)
	r.Get("/teams/{teamID}/submissions", h.listByTeam)
}

func (h *SubmissionHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var req service.CreateSubmissionRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.submissionService.CreateDraft(r.Context(), actor.UserID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, sub)
}

func (h *SubmissionHandler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	sub, err := h.submissionService.Get(r.Context(), actor, chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}

func (h *SubmissionHandler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var fields service.DraftFields
	if !decode(w, r, &fields) {
		return
	}
	sub, err := h.submissionService.UpdateDraft(r.Context(), actor.UserID, chi.URLParam(r, "submissionID"), fields)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}

func (h *SubmissionHandler) finalize(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	sub, err := h.submissionService.Finalize(r.Context(), actor.UserID, chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}

func (h *SubmissionHandler) listByTeam(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	subs, err := h.submissionService.ListByTeam(r.Context(), actor, chi.URLParam(r, "teamID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}
