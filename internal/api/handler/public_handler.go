package handler

import (
	"context"
	"net/http"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type phaseReader interface {
	Current(ctx context.Context) (*model.Event, error)
}

type leaderboardReader interface {
	Leaderboard(ctx context.Context) (*model.LeaderboardSnapshot, error)
}

// PublicHandler serves the unauthenticated read endpoints.
type PublicHandler struct {
	phase       phaseReader
	leaderboard leaderboardReader
}

func NewPublicHandler(phase phaseReader, leaderboard leaderboardReader) *PublicHandler {
	return &PublicHandler{phase: phase, leaderboard: leaderboard}
}

func (h *PublicHandler) RegisterRoutes(r chi.Router) {
	r.Get("/phase", h.currentPhase)
	r.Get("/leaderboard", h.getLeaderboard)
}

func (h *PublicHandler) currentPhase(w http.ResponseWriter, r *http.Request) {
	event, err := h.phase.Current(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, event)
}

func (h *PublicHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.leaderboard.Leaderboard(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, snap)
}
