package handler

import (
	"context"
	"net/http"

	"innovate_api/internal/app/service"
	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ticketService interface {
	Quote(ctx context.Context) (*model.Quote, error)
	CreateOrder(ctx context.Context, userID string) (*model.Payment, error)
	ConfirmPayment(ctx context.Context, userID, paymentID string, req service.ConfirmPaymentRequest) (*model.Ticket, error)
	MyTicket(ctx context.Context, userID string) (*model.Ticket, error)
}

type TicketHandler struct {
	ticketService ticketService
}

func NewTicketHandler(ticketService ticketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

func (h *TicketHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/tickets/quote", h.quote)
}

func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tickets/orders", h.createOrder)
	r.Post("/tickets/orders/{paymentID}/confirm", h.confirm)
	r.Get("/tickets/me", h.mine)
}

func (h *TicketHandler) quote(w http.ResponseWriter, r *http.Request) {
	q, err := h.ticketService.Quote(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, q)
}

func (h *TicketHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	payment, err := h.ticketService.CreateOrder(r.Context(), actor.UserID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, payment)
}

func (h *TicketHandler) confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var req service.ConfirmPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	ticket, err := h.ticketService.ConfirmPayment(r.Context(), actor.UserID, chi.URLParam(r, "paymentID"), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, ticket)
}

func (h *TicketHandler) mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	ticket, err := h.ticketService.MyTicket(r.Context(), actor.UserID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ticket)
}
