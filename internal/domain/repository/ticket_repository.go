package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
)

const constraintTicketUser = "tickets_user_id_key"

type TicketRepository interface {
	CreatePayment(ctx context.Context, tx *sql.Tx, p *model.Payment) error
	// FindPayment locks the payment row when tx is non-nil.
	FindPayment(ctx context.Context, tx *sql.Tx, id string) (*model.Payment, error)
	UpdatePaymentStatus(ctx context.Context, tx *sql.Tx, p *model.Payment) error

	CreateTicket(ctx context.Context, tx *sql.Tx, t *model.Ticket) error
	FindTicketByUser(ctx context.Context, userID string) (*model.Ticket, error)
	// FindTicketByQRCode locks the ticket row when tx is non-nil.
	FindTicketByQRCode(ctx context.Context, tx *sql.Tx, qrCode string) (*model.Ticket, error)
	MarkCheckedIn(ctx context.Context, tx *sql.Tx, ticketID string, at time.Time) error
	CountTickets(ctx context.Context) (confirmed, checkedIn int, err error)
}

type pgTicketRepository struct {
	db *sql.DB
}

func NewPgTicketRepository(db *sql.DB) TicketRepository {
	return &pgTicketRepository{db: db}
}

func (r *pgTicketRepository) CreatePayment(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	err := pick(r.db, tx).QueryRowContext(ctx,
		`INSERT INTO payments (id, user_id, amount_cents, tier_name, gateway_order_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		p.ID, p.UserID, p.AmountCents, p.TierName, p.GatewayOrderID, p.Status).Scan(&p.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, "") {
			return fmt.Errorf("payment order already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTicketRepository.CreatePayment: %w", err)
	}
	return nil
}

func (r *pgTicketRepository) FindPayment(ctx context.Context, tx *sql.Tx, id string) (*model.Payment, error) {
	p := &model.Payment{}
	err := pick(r.db, tx).QueryRowContext(ctx,
		`SELECT id, user_id, amount_cents, tier_name, gateway_order_id, gateway_payment_id, status, created_at, confirmed_at
		 FROM payments WHERE id = $1`+forUpdate(tx), id).
		Scan(&p.ID, &p.UserID, &p.AmountCents, &p.TierName, &p.GatewayOrderID, &p.GatewayPaymentID, &p.Status, &p.CreatedAt, &p.ConfirmedAt)
	if err != nil {
		return nil, notFound("pgTicketRepository.FindPayment", err)
	}
	return p, nil
}

func (r *pgTicketRepository) UpdatePaymentStatus(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE payments SET status = $1, gateway_payment_id = $2, confirmed_at = $3 WHERE id = $4`,
		p.Status, p.GatewayPaymentID, p.ConfirmedAt, p.ID)
	return expectOne("pgTicketRepository.UpdatePaymentStatus", res, err)
}

func (r *pgTicketRepository) CreateTicket(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	err := pick(r.db, tx).QueryRowContext(ctx,
		`INSERT INTO tickets (id, payment_id, user_id, qr_code) VALUES ($1, $2, $3, $4) RETURNING issued_at`,
		t.ID, t.PaymentID, t.UserID, t.QRCode).Scan(&t.IssuedAt)
	if err != nil {
		if common.IsUniqueViolation(err, constraintTicketUser) {
			return fmt.Errorf("user already holds a ticket: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTicketRepository.CreateTicket: %w", err)
	}
	return nil
}

const ticketColumns = `tk.id, tk.payment_id, tk.user_id, tk.qr_code, tk.checked_in, tk.checked_in_at, tk.issued_at, u.name`

func scanTicket(row interface{ Scan(...interface{}) error }, t *model.Ticket) error {
	return row.Scan(&t.ID, &t.PaymentID, &t.UserID, &t.QRCode, &t.CheckedIn, &t.CheckedInAt, &t.IssuedAt, &t.UserName)
}

func (r *pgTicketRepository) FindTicketByUser(ctx context.Context, userID string) (*model.Ticket, error) {
	t := &model.Ticket{}
	err := scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets tk JOIN users u ON u.id = tk.user_id WHERE tk.user_id = $1`, userID), t)
	if err != nil {
		return nil, notFound("pgTicketRepository.FindTicketByUser", err)
	}
	return t, nil
}

func (r *pgTicketRepository) FindTicketByQRCode(ctx context.Context, tx *sql.Tx, qrCode string) (*model.Ticket, error) {
	lock := ""
	if tx != nil {
		lock = " FOR UPDATE OF tk"
	}
	t := &model.Ticket{}
	err := scanTicket(pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets tk JOIN users u ON u.id = tk.user_id WHERE tk.qr_code = $1`+lock, qrCode), t)
	if err != nil {
		return nil, notFound("pgTicketRepository.FindTicketByQRCode", err)
	}
	return t, nil
}

func (r *pgTicketRepository) MarkCheckedIn(ctx context.Context, tx *sql.Tx, ticketID string, at time.Time) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE tickets SET checked_in = TRUE, checked_in_at = $1 WHERE id = $2`, at, ticketID)
	return expectOne("pgTicketRepository.MarkCheckedIn", res, err)
}

func (r *pgTicketRepository) CountTickets(ctx context.Context) (int, int, error) {
	var confirmed, checkedIn int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE checked_in) FROM tickets`).Scan(&confirmed, &checkedIn)
	if err != nil {
		return 0, 0, fmt.Errorf("pgTicketRepository.CountTickets: %w", err)
	}
	return confirmed, checkedIn, nil
}
