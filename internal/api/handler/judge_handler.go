package handler

import (
	"context"
	"net/http"

	"innovate_api/internal/app/service"
	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type judgeScoringService interface {
	ListAssignments(ctx context.Context, judgeID string, status model.AssignmentStatus) ([]model.JudgeAssignment, error)
	SubmitScore(ctx context.Context, judgeID, submissionID string, req service.SubmitScoreRequest) (*model.Score, error)
	SkipAssignment(ctx context.Context, judgeID, assignmentID string) error
	ListCriteria(ctx context.Context) ([]model.Criterion, error)
}

type submittedLister interface {
	ListSubmitted(ctx context.Context) ([]model.Submission, error)
}

type JudgeHandler struct {
	scoringService judgeScoringService
	submissions    submittedLister
}

func NewJudgeHandler(scoringService judgeScoringService, submissions submittedLister) *JudgeHandler {
	return &JudgeHandler{scoringService: scoringService, submissions: submissions}
}

// RegisterRoutes expects a router already restricted to judges.
func (h *JudgeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/judge/assignments", h.listAssignments)
	r.Post("/judge/assignments/{assignmentID}/skip", h.skip)
	r.Get("/judge/criteria", h.listCriteria)
	r.Get("/judge/submissions", h.listSubmissions)
	r.Post("/judge/submissions/{submissionID}/scores", h.submitScore)
}

func (h *JudgeHandler) listAssignments(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	status := model.AssignmentStatus(r.URL.Query().Get("status"))
	assignments, err := h.scoringService.ListAssignments(r.Context(), actor.UserID, status)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, assignments)
}

func (h *JudgeHandler) skip(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	if err := h.scoringService.SkipAssignment(r.Context(), actor.UserID, chi.URLParam(r, "assignmentID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JudgeHandler) listCriteria(w http.ResponseWriter, r *http.Request) {
	criteria, err := h.scoringService.ListCriteria(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, criteria)
}

func (h *JudgeHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.submissions.ListSubmitted(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

func (h *JudgeHandler) submitScore(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var req service.SubmitScoreRequest
	if !decode(w, r, &req) {
		return
	}
	score, err := h.scoringService.SubmitScore(r.Context(), actor.UserID, chi.URLParam(r, "submissionID"), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, score)
}
