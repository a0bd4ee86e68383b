package service

import (
	"context"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
	"innovate_api/internal/domain/repository"
)

type AnalyticsService struct {
	userRepo       repository.UserRepository
	teamRepo       repository.TeamRepository
	submissionRepo repository.SubmissionRepository
	scoringRepo    repository.ScoringRepository
	ticketRepo     repository.TicketRepository
}

func NewAnalyticsService(
	userRepo repository.UserRepository,
	teamRepo repository.TeamRepository,
	submissionRepo repository.SubmissionRepository,
	scoringRepo repository.ScoringRepository,
	ticketRepo repository.TicketRepository,
) *AnalyticsService {
	return &AnalyticsService{
		userRepo:       userRepo,
		teamRepo:       teamRepo,
		submissionRepo: submissionRepo,
		scoringRepo:    scoringRepo,
		ticketRepo:     ticketRepo,
	}
}

func (s *AnalyticsService) Summary(ctx context.Context) (*model.Analytics, error) {
	var (
		a   model.Analytics
		err error
	)
	if a.UsersByRole, err = s.userRepo.CountByRole(ctx); err != nil {
		return nil, common.Errorf("failed to count users: %w", err)
	}
	if a.Teams, err = s.teamRepo.Count(ctx); err != nil {
		return nil, common.Errorf("failed to count teams: %w", err)
	}
	if a.SubmissionsByStatus, err = s.submissionRepo.CountByStatus(ctx); err != nil {
		return nil, common.Errorf("failed to count submissions: %w", err)
	}
	if a.Scores, err = s.scoringRepo.CountScores(ctx); err != nil {
		return nil, common.Errorf("failed to count scores: %w", err)
	}
	if a.TicketsConfirmed, a.TicketsCheckedIn, err = s.ticketRepo.CountTickets(ctx); err != nil {
		return nil, common.Errorf("failed to count tickets: %w", err)
	}
	return &a, nil
}
