package model

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

type PriceTier struct {
	Name       string    `json:"name" validate:"required,max=60"`
	Deadline   time.Time `json:"deadline" validate:"required"`
	PriceCents int       `json:"price_cents" validate:"gte=0"`
}

type PricingConfig struct {
	Enabled bool        `json:"enabled"`
	Tiers   []PriceTier `json:"tiers" validate:"max=10,dive"`
}

const DefaultTierName = "Standard"

// Quote is the price a buyer would pay right now.
type Quote struct {
	TierName   string     `json:"tier_name"`
	PriceCents int        `json:"price_cents"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// QuoteAt picks the earliest-deadline tier still open at now, falling back to
// the default price when pricing is disabled or every tier has passed.
func (e *Event) QuoteAt(now time.Time) Quote {
	if e.Pricing.Enabled {
		var best *PriceTier
		for i := range e.Pricing.Tiers {
			tier := &e.Pricing.Tiers[i]
			if !now.Before(tier.Deadline) {
				continue
			}
			if best == nil || tier.Deadline.Before(best.Deadline) {
				best = tier
			}
		}
		if best != nil {
			deadline := best.Deadline
			return Quote{TierName: best.Name, PriceCents: best.PriceCents, ValidUntil: &deadline}
		}
	}
	return Quote{TierName: DefaultTierName, PriceCents: e.DefaultPriceCents}
}

type Payment struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	AmountCents      int           `json:"amount_cents"`
	TierName         string        `json:"tier_name"`
	GatewayOrderID   string        `json:"gateway_order_id"`
	GatewayPaymentID *string       `json:"gateway_payment_id,omitempty"`
	Status           PaymentStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	ConfirmedAt      *time.Time    `json:"confirmed_at,omitempty"`
}

type Ticket struct {
	ID          string     `json:"id"`
	PaymentID   string     `json:"payment_id"`
	UserID      string     `json:"user_id"`
	QRCode      string     `json:"qr_code"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	IssuedAt    time.Time  `json:"issued_at"`
	UserName    string     `json:"user_name,omitempty"`
}

// Analytics is the admin dashboard counter set.
type Analytics struct {
	UsersByRole         map[string]int `json:"users_by_role"`
	Teams               int            `json:"teams"`
	SubmissionsByStatus map[string]int `json:"submissions_by_status"`
	Scores              int            `json:"scores"`
	TicketsConfirmed    int            `json:"tickets_confirmed"`
	TicketsCheckedIn    int            `json:"tickets_checked_in"`
}
