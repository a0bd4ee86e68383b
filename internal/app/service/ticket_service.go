package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
	"innovate_api/internal/domain/repository"
	"innovate_api/internal/platform/database"
	"innovate_api/internal/platform/events"

	"github.com/google/uuid"
)

// PaymentGateway is the card processor. Only a mock ships with the service.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountCents int, receipt string) (string, error)
	Verify(ctx context.Context, orderID, paymentID string) error
}

// MockGateway accepts any payment id starting with "pay_".
type MockGateway struct{}

func (MockGateway) CreateOrder(_ context.Context, _ int, _ string) (string, error) {
	return "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14], nil
}

func (MockGateway) Verify(_ context.Context, _ string, paymentID string) error {
	if !strings.HasPrefix(paymentID, "pay_") || len(paymentID) <= len("pay_") {
		return errors.New("payment signature mismatch")
	}
	return nil
}

type TicketService struct {
	ticketRepo repository.TicketRepository
	eventRepo  repository.EventRepository
	gateway    PaymentGateway
	tx         database.Transactor
	phase      PhaseGuard
	publisher  events.Publisher
	now        func() time.Time
}

func NewTicketService(
	ticketRepo repository.TicketRepository,
	eventRepo repository.EventRepository,
	gateway PaymentGateway,
	tx database.Transactor,
	phase PhaseGuard,
	publisher events.Publisher,
) *TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		eventRepo:  eventRepo,
		gateway:    gateway,
		tx:         tx,
		phase:      phase,
		publisher:  publisher,
		now:        time.Now,
	}
}

type ConfirmPaymentRequest struct {
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required,max=100"`
}

type SetPricingRequest struct {
	DefaultPriceCents int                 `json:"default_price_cents" validate:"gte=0"`
	Pricing           model.PricingConfig `json:"pricing"`
}

type CheckInRequest struct {
	QRCode string `json:"qr_code" validate:"required,max=100"`
}

const qrCodePrefix = "INNOVATE-"

func (s *TicketService) Quote(ctx context.Context) (*model.Quote, error) {
	event, err := s.eventRepo.Get(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to load event: %w", err)
	}
	q := event.QuoteAt(s.now())
	return &q, nil
}

// CreateOrder opens a pending payment at the current price.
func (s *TicketService) CreateOrder(ctx context.Context, userID string) (*model.Payment, error) {
	if err := s.phase.Require(ctx, model.ActionTicketPurchase); err != nil {
		return nil, err
	}
	if _, err := s.ticketRepo.FindTicketByUser(ctx, userID); err == nil {
		return nil, fmt.Errorf("you already have a ticket: %w", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to check ticket: %w", err)
	}

	quote, err := s.Quote(ctx)
	if err != nil {
		return nil, err
	}
	paymentID := uuid.NewString()
	orderID, err := s.gateway.CreateOrder(ctx, quote.PriceCents, paymentID)
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %v: %w", err, common.ErrServiceUnavailable)
	}

	p := &model.Payment{
		ID:             paymentID,
		UserID:         userID,
		AmountCents:    quote.PriceCents,
		TierName:       quote.TierName,
		GatewayOrderID: orderID,
		Status:         model.PaymentPending,
	}
	if err := s.ticketRepo.CreatePayment(ctx, nil, p); err != nil {
		return nil, common.Errorf("failed to create order: %w", err)
	}
	return p, nil
}

// ConfirmPayment verifies the gateway payment and issues the ticket. A rejected
// verification leaves the payment failed.
func (s *TicketService) ConfirmPayment(ctx context.Context, userID, paymentID string, req ConfirmPaymentRequest) (*model.Ticket, error) {
	req.GatewayPaymentID = strings.TrimSpace(req.GatewayPaymentID)
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	var (
		ticket    *model.Ticket
		verifyErr error
	)
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		p, err := s.ticketRepo.FindPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return common.ErrNotFound
		}
		if p.Status != model.PaymentPending {
			return fmt.Errorf("payment is already %s: %w", p.Status, common.ErrConflict)
		}

		p.GatewayPaymentID = &req.GatewayPaymentID
		if verifyErr = s.gateway.Verify(ctx, p.GatewayOrderID, req.GatewayPaymentID); verifyErr != nil {
			p.Status = model.PaymentFailed
			return s.ticketRepo.UpdatePaymentStatus(ctx, tx, p)
		}

		now := s.now()
		p.Status = model.PaymentConfirmed
		p.ConfirmedAt = &now
		if err := s.ticketRepo.UpdatePaymentStatus(ctx, tx, p); err != nil {
			return err
		}
		ticket = &model.Ticket{
			ID:        uuid.NewString(),
			PaymentID: p.ID,
			UserID:    userID,
			QRCode:    qrCodePrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")),
		}
		return s.ticketRepo.CreateTicket(ctx, tx, ticket)
	})
	if err != nil {
		return nil, common.Errorf("failed to confirm payment: %w", err)
	}
	if verifyErr != nil {
		return nil, fmt.Errorf("payment verification failed: %v: %w", verifyErr, common.ErrValidation)
	}

	events.PublishAsync(s.publisher, events.New(events.TypeTicketIssued, ticket.UserID, map[string]interface{}{
		"ticket_id":  ticket.ID,
		"user_id":    ticket.UserID,
		"payment_id": ticket.PaymentID,
	}))
	return ticket, nil
}

func (s *TicketService) MyTicket(ctx context.Context, userID string) (*model.Ticket, error) {
	t, err := s.ticketRepo.FindTicketByUser(ctx, userID)
	if err != nil {
		return nil, common.Errorf("failed to load ticket: %w", err)
	}
	return t, nil
}

func (s *TicketService) CheckIn(ctx context.Context, req CheckInRequest) (*model.Ticket, error) {
	req.QRCode = strings.ToUpper(strings.TrimSpace(req.QRCode))
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	var ticket *model.Ticket
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if ticket, err = s.ticketRepo.FindTicketByQRCode(ctx, tx, req.QRCode); err != nil {
			return err
		}
		if ticket.CheckedIn {
			return fmt.Errorf("ticket already checked in at %s: %w", ticket.CheckedInAt.Format(time.RFC3339), common.ErrConflict)
		}
		now := s.now()
		if err := s.ticketRepo.MarkCheckedIn(ctx, tx, ticket.ID, now); err != nil {
			return err
		}
		ticket.CheckedIn = true
		ticket.CheckedInAt = &now
		return nil
	})
	if err != nil {
		return nil, common.Errorf("failed to check in: %w", err)
	}
	return ticket, nil
}

func (s *TicketService) SetPricing(ctx context.Context, req SetPricingRequest) (*model.Event, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	names := map[string]bool{}
	for _, tier := range req.Pricing.Tiers {
		key := strings.ToLower(strings.TrimSpace(tier.Name))
		if names[key] {
			return nil, fmt.Errorf("duplicate tier %q: %w", tier.Name, common.ErrValidation)
		}
		names[key] = true
	}
	if req.Pricing.Tiers == nil {
		req.Pricing.Tiers = []model.PriceTier{}
	}
	if err := s.eventRepo.UpdatePricing(ctx, req.DefaultPriceCents, req.Pricing); err != nil {
		return nil, common.Errorf("failed to update pricing: %w", err)
	}
	event, err := s.eventRepo.Get(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to load event: %w", err)
	}
	return event, nil
}
