package handler

import (
	"context"
	"net/http"

	"innovate_api/internal/app/service"
	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type teamService interface {
	CreateTeam(ctx context.Context, leaderID string, req service.CreateTeamRequest) (*model.Team, error)
	RequestJoin(ctx context.Context, userID string, req service.JoinTeamRequest) (*model.JoinRequest, error)
	ApproveRequest(ctx context.Context, actorID, requestID string) (*model.TeamMember, error)
	RejectRequest(ctx context.Context, actorID, requestID string) (*model.JoinRequest, error)
	RemoveMember(ctx context.Context, actorID, memberID string) error
	LeaveTeam(ctx context.Context, userID string) error
	TransferLeadership(ctx context.Context, actorID, teamID string, req service.TransferLeadershipRequest) (*model.Team, error)
	DeleteTeam(ctx context.Context, actor service.Actor, teamID string) error
	UpdateTeam(ctx context.Context, actorID, teamID string, req service.UpdateTeamRequest) (*model.Team, error)
	RotateInviteCode(ctx context.Context, actorID, teamID string) (*model.Team, error)
	ListTeams(ctx context.Context, actor service.Actor, page, pageSize int) (*service.TeamPage, error)
	GetTeam(ctx context.Context, actor service.Actor, teamID string) (*model.Team, error)
	MyTeam(ctx context.Context, userID string) (*model.Team, error)
	ListJoinRequests(ctx context.Context, actor service.Actor, teamID string, status model.MembershipStatus) ([]model.JoinRequest, error)
}

type TeamHandler struct {
	teamService teamService
}

func NewTeamHandler(teamService teamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

// RegisterRoutes expects an authenticated router.
func (h *TeamHandler) RegisterRoutes(r chi.Router) {
	r.Get("/teams", h.list)
	r.Post("/teams", h.create)
	r.Get("/teams/me", h.mine)
	r.Post("/teams/join", h.join)
	r.Post("/teams/leave", h.leave)
	r.Post("/teams/requests/{requestID}/approve", h.approve)
	r.Post("/teams/requests/{requestID}/reject", h.reject)
	r.Delete("/teams/members/{memberID}", h.removeMember)
	r.Get("/teams/{teamID}", h.get)
	r.Patch("/teams/{teamID}", h.update)
	r.Delete("/teams/{teamID}", h.delete)
	r.Post("/teams/{teamID}/invite-code", h.rotateInviteCode)
	r.Post("/teams/{teamID}/leader", h.transferLeadership)
	r.Get("/teams/{teamID}/requests", h.listRequests)
}

func (h *TeamHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	page, err := h.teamService.ListTeams(r.Context(), actor, queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *TeamHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var req service.CreateTeamRequest
	if !decode(w, r, &req) {
		return
	}
	team, err := h.teamService.CreateTeam(r.Context(), actor.UserID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, team)
}

func (h *TeamHandler) mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	team, err := h.teamService.MyTeam(r.Context(), actor.UserID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) join(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var req service.JoinTeamRequest
	if !decode(w, r, &req) {
		return
	}
	jr, err := h.teamService.RequestJoin(r.Context(), actor.UserID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, jr)
}

func (h *TeamHandler) leave(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	if err := h.teamService.LeaveTeam(r.Context(), actor.UserID); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	member, err := h.teamService.ApproveRequest(r.Context(), actor.UserID, chi.URLParam(r, "requestID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, member)
}

func (h *TeamHandler) reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	jr, err := h.teamService.RejectRequest(r.Context(), actor.UserID, chi.URLParam(r, "requestID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, jr)
}

func (h *TeamHandler) removeMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	if err := h.teamService.RemoveMember(r.Context(), actor.UserID, chi.URLParam(r, "memberID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	team, err := h.teamService.GetTeam(r.Context(), actor, chi.URLParam(r, "teamID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var req service.UpdateTeamRequest
	if !decode(w, r, &req) {
		return
	}
	team, err := h.teamService.UpdateTeam(r.Context(), actor.UserID, chi.URLParam(r, "teamID"), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	if err := h.teamService.DeleteTeam(r.Context(), actor, chi.URLParam(r, "teamID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) rotateInviteCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	team, err := h.teamService.RotateInviteCode(r.Context(), actor.UserID, chi.URLParam(r, "teamID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) transferLeadership(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var req service.TransferLeadershipRequest
	if !decode(w, r, &req) {
		return
	}
	team, err := h.teamService.TransferLeadership(r.Context(), actor.UserID, chi.URLParam(r, "teamID"), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) listRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	status := model.MembershipStatus(r.URL.Query().Get("status"))
	requests, err := h.teamService.ListJoinRequests(r.Context(), actor, chi.URLParam(r, "teamID"), status)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, requests)
}
