package handler

import (
	"context"
	"net/http"

	"innovate_api/internal/app/service"
	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type adminUserService interface {
	ListUsers(ctx context.Context, role string, page, pageSize int) (*service.UserPage, error)
	ChangeRole(ctx context.Context, actor service.Actor, userID string, req service.ChangeRoleRequest) (*model.User, error)
}

type adminTeamService interface {
	ListTeams(ctx context.Context, actor service.Actor, page, pageSize int) (*service.TeamPage, error)
}

type adminPhaseService interface {
	Advance(ctx context.Context, req service.AdvancePhaseRequest) (*model.Event, error)
	UpdateSchedule(ctx context.Context, req service.UpdateEventRequest) (*model.Event, error)
}

type adminTicketService interface {
	SetPricing(ctx context.Context, req service.SetPricingRequest) (*model.Event, error)
	CheckIn(ctx context.Context, req service.CheckInRequest) (*model.Ticket, error)
}

type adminScoringService interface {
	ReplaceCriteria(ctx context.Context, req service.ReplaceCriteriaRequest) ([]model.Criterion, error)
	Assign(ctx context.Context, req service.AssignJudgeRequest) (*model.JudgeAssignment, error)
	ListScores(ctx context.Context, submissionID string) ([]model.Score, error)
}

type analyticsService interface {
	Summary(ctx context.Context) (*model.Analytics, error)
}

// AdminServices groups the services behind the admin console.
type AdminServices struct {
	Users     adminUserService
	Teams     adminTeamService
	Phase     adminPhaseService
	Tickets   adminTicketService
	Scoring   adminScoringService
	Analytics analyticsService
}

type AdminHandler struct {
	svc AdminServices
}

func NewAdminHandler(svc AdminServices) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// RegisterRoutes expects a router already restricted to admins.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/users", h.listUsers)
	r.Patch("/admin/users/{userID}/role", h.changeRole)
	r.Get("/admin/teams", h.listTeams)
	r.Post("/admin/phase", h.advancePhase)
	r.Put("/admin/event", h.updateEvent)
	r.Put("/admin/pricing", h.setPricing)
	r.Put("/admin/criteria", h.replaceCriteria)
	r.Post("/admin/assignments", h.assignJudge)
	r.Get("/admin/submissions/{submissionID}/scores", h.listScores)
	r.Post("/admin/tickets/check-in", h.checkIn)
	r.Get("/admin/analytics", h.analytics)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Users.ListUsers(r.Context(), r.URL.Query().Get("role"), queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) changeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var req service.ChangeRoleRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.svc.Users.ChangeRole(r.Context(), actor, chi.URLParam(r, "userID"), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) listTeams(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	page, err := h.svc.Teams.ListTeams(r.Context(), actor, queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) advancePhase(w http.ResponseWriter, r *http.Request) {
	var req service.AdvancePhaseRequest
	if !decode(w, r, &req) {
		return
	}
	event, err := h.svc.Phase.Advance(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, event)
}

func (h *AdminHandler) updateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateEventRequest
	if !decode(w, r, &req) {
		return
	}
	event, err := h.svc.Phase.UpdateSchedule(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, event)
}

func (h *AdminHandler) setPricing(w http.ResponseWriter, r *http.Request) {
	var req service.SetPricingRequest
	if !decode(w, r, &req) {
		return
	}
	event, err := h.svc.Tickets.SetPricing(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, event)
}

func (h *AdminHandler) replaceCriteria(w http.ResponseWriter, r *http.Request) {
	var req service.ReplaceCriteriaRequest
	if !decode(w, r, &req) {
		return
	}
	criteria, err := h.svc.Scoring.ReplaceCriteria(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, criteria)
}

func (h *AdminHandler) assignJudge(w http.ResponseWriter, r *http.Request) {
	var req service.AssignJudgeRequest
	if !decode(w, r, &req) {
		return
	}
	assignment, err := h.svc.Scoring.Assign(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, assignment)
}

func (h *AdminHandler) listScores(w http.ResponseWriter, r *http.Request) {
	scores, err := h.svc.Scoring.ListScores(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, scores)
}

func (h *AdminHandler) checkIn(w http.ResponseWriter, r *http.Request) {
	var req service.CheckInRequest
	if !decode(w, r, &req) {
		return
	}
	ticket, err := h.svc.Tickets.CheckIn(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ticket)
}

func (h *AdminHandler) analytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Analytics.Summary(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, summary)
}
