package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"innovate_api/internal/domain/model"
)

type EventRepository interface {
	// Get locks the singleton row when tx is non-nil.
	Get(ctx context.Context, tx *sql.Tx) (*model.Event, error)
	UpdatePhase(ctx context.Context, tx *sql.Tx, phase model.Phase) error
	UpdateSchedule(ctx context.Context, event *model.Event) error
	UpdatePricing(ctx context.Context, defaultPriceCents int, pricing model.PricingConfig) error
}

type pgEventRepository struct {
	db *sql.DB
}

func NewPgEventRepository(db *sql.DB) EventRepository {
	return &pgEventRepository{db: db}
}

func (r *pgEventRepository) Get(ctx context.Context, tx *sql.Tx) (*model.Event, error) {
	query := `SELECT name, phase, start_time, end_time, registration_deadline, submission_deadline,
	                 default_price_cents, pricing, updated_at
	          FROM events WHERE id = 1` + forUpdate(tx)
	var (
		e       model.Event
		pricing []byte
	)
	err := pick(r.db, tx).QueryRowContext(ctx, query).Scan(
		&e.Name, &e.Phase, &e.StartTime, &e.EndTime, &e.RegistrationDeadline, &e.SubmissionDeadline,
		&e.DefaultPriceCents, &pricing, &e.UpdatedAt,
	)
	if err != nil {
		return nil, notFound("pgEventRepository.Get", err)
	}
	if err := json.Unmarshal(pricing, &e.Pricing); err != nil {
		return nil, fmt.Errorf("pgEventRepository.Get pricing: %w", err)
	}
	return &e, nil
}

func (r *pgEventRepository) UpdatePhase(ctx context.Context, tx *sql.Tx, phase model.Phase) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE events SET phase = $1, updated_at = NOW() WHERE id = 1`, phase)
	return expectOne("pgEventRepository.UpdatePhase", res, err)
}

func (r *pgEventRepository) UpdateSchedule(ctx context.Context, e *model.Event) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET name = $1, start_time = $2, end_time = $3,
		        registration_deadline = $4, submission_deadline = $5, updated_at = NOW()
		 WHERE id = 1`,
		e.Name, e.StartTime, e.EndTime, e.RegistrationDeadline, e.SubmissionDeadline)
	return expectOne("pgEventRepository.UpdateSchedule", res, err)
}

func (r *pgEventRepository) UpdatePricing(ctx context.Context, defaultPriceCents int, pricing model.PricingConfig) error {
	if pricing.Tiers == nil {
		pricing.Tiers = []model.PriceTier{}
	}
	raw, err := toJSON(pricing)
	if err != nil {
		return fmt.Errorf("pgEventRepository.UpdatePricing encode: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET default_price_cents = $1, pricing = $2, updated_at = NOW() WHERE id = 1`,
		defaultPriceCents, raw)
	return expectOne("pgEventRepository.UpdatePricing", res, err)
}
