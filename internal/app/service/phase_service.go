package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
	"innovate_api/internal/domain/repository"
	"innovate_api/internal/platform/database"
	"innovate_api/internal/platform/events"
)

// PhaseGuard is consulted by every phase-gated operation.
type PhaseGuard interface {
	Require(ctx context.Context, action model.Action) error
}

type PhaseService struct {
	eventRepo repository.EventRepository
	tx        database.Transactor
	publisher events.Publisher
}

func NewPhaseService(eventRepo repository.EventRepository, tx database.Transactor, publisher events.Publisher) *PhaseService {
	return &PhaseService{eventRepo: eventRepo, tx: tx, publisher: publisher}
}

func (s *PhaseService) Current(ctx context.Context) (*model.Event, error) {
	event, err := s.eventRepo.Get(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to load event: %w", err)
	}
	return event, nil
}

func (s *PhaseService) Require(ctx context.Context, action model.Action) error {
	event, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if !event.Phase.Permits(action) {
		return fmt.Errorf("%s is not allowed during phase %s: %w", action, event.Phase, common.ErrPhaseClosed)
	}
	return nil
}

type AdvancePhaseRequest struct {
	Phase model.Phase `json:"phase" validate:"required,oneof=PRE LIVE POST"`
}

// Advance moves the event exactly one step forward (PRE -> LIVE -> POST).
func (s *PhaseService) Advance(ctx context.Context, req AdvancePhaseRequest) (*model.Event, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	var (
		event *model.Event
		from  model.Phase
	)
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if event, err = s.eventRepo.Get(ctx, tx); err != nil {
			return err
		}
		from = event.Phase
		next, ok := event.Phase.Next()
		if !ok || next != req.Phase {
			return fmt.Errorf("cannot move from %s to %s: %w", event.Phase, req.Phase, common.ErrInvalidState)
		}
		if err := s.eventRepo.UpdatePhase(ctx, tx, next); err != nil {
			return err
		}
		event.Phase = next
		return nil
	})
	if err != nil {
		return nil, common.Errorf("failed to advance phase: %w", err)
	}

	events.PublishAsync(s.publisher, events.New(events.TypePhaseChanged, "event", map[string]interface{}{
		"from": from,
		"to":   event.Phase,
	}))
	return event, nil
}

type UpdateEventRequest struct {
	Name                 string     `json:"name" validate:"required,max=200"`
	StartTime            *time.Time `json:"start_time"`
	EndTime              *time.Time `json:"end_time"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	SubmissionDeadline   *time.Time `json:"submission_deadline"`
}

// UpdateSchedule stores the displayed timeline. Deadlines are informational;
// only the phase gates actions.
func (s *PhaseService) UpdateSchedule(ctx context.Context, req UpdateEventRequest) (*model.Event, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if req.StartTime != nil && req.EndTime != nil && !req.EndTime.After(*req.StartTime) {
		return nil, fmt.Errorf("end_time must be after start_time: %w", common.ErrValidation)
	}

	event, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	event.Name = req.Name
	event.StartTime = req.StartTime
	event.EndTime = req.EndTime
	event.RegistrationDeadline = req.RegistrationDeadline
	event.SubmissionDeadline = req.SubmissionDeadline
	if err := s.eventRepo.UpdateSchedule(ctx, event); err != nil {
		return nil, common.Errorf("failed to update event: %w", err)
	}
	return event, nil
}
