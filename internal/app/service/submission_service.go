package service

import (
	"context"
	"database/sql"
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

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	teamRepo       repository.TeamRepository
	tx             database.Transactor
	phase          PhaseGuard
	publisher      events.Publisher
	now            func() time.Time
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	teamRepo repository.TeamRepository,
	tx database.Transactor,
	phase PhaseGuard,
	publisher events.Publisher,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		teamRepo:       teamRepo,
		tx:             tx,
		phase:          phase,
		publisher:      publisher,
		now:            time.Now,
	}
}

// DraftFields are checked only when present; a draft may be incomplete.
type DraftFields struct {
	Title            *string   `json:"title" validate:"omitempty,min=5,max=100"`
	Description      *string   `json:"description" validate:"omitempty,min=20,max=500"`
	ProblemStatement *string   `json:"problem_statement" validate:"omitempty,min=50,max=1000"`
	Solution         *string   `json:"solution" validate:"omitempty,min=50,max=1000"`
	TechStack        *[]string `json:"tech_stack" validate:"omitempty,max=15,dive,max=50"`
	RepoURL          *string   `json:"repo_url" validate:"omitempty,url,max=500"`
	DemoURL          *string   `json:"demo_url" validate:"omitempty,url,max=500"`
	VideoURL         *string   `json:"video_url" validate:"omitempty,url,max=500"`
}

type CreateSubmissionRequest struct {
	TeamID string `json:"team_id" validate:"required"`
	DraftFields
}

// finalSubmission is the complete field set a submission needs before it can be finalized.
type finalSubmission struct {
	Title            string   `json:"title" validate:"required,min=5,max=100"`
	Description      string   `json:"description" validate:"required,min=20,max=500"`
	ProblemStatement string   `json:"problem_statement" validate:"required,min=50,max=1000"`
	Solution         string   `json:"solution" validate:"required,min=50,max=1000"`
	TechStack        []string `json:"tech_stack" validate:"max=15,dive,max=50"`
	RepoURL          string   `json:"repo_url" validate:"required,url,max=500"`
	DemoURL          *string  `json:"demo_url" validate:"omitempty,url,max=500"`
	VideoURL         *string  `json:"video_url" validate:"omitempty,url,max=500"`
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (f *DraftFields) normalize() {
	f.Title = trimPtr(f.Title)
	f.Description = trimPtr(f.Description)
	f.ProblemStatement = trimPtr(f.ProblemStatement)
	f.Solution = trimPtr(f.Solution)
	f.RepoURL = trimPtr(f.RepoURL)
	f.DemoURL = trimPtr(f.DemoURL)
	f.VideoURL = trimPtr(f.VideoURL)
	if f.TechStack != nil {
		stack := normalizeTags(*f.TechStack)
		f.TechStack = &stack
	}
	// An emptied optional URL clears it rather than failing url validation.
	if f.DemoURL != nil && *f.DemoURL == "" {
		f.DemoURL = nil
	}
	if f.VideoURL != nil && *f.VideoURL == "" {
		f.VideoURL = nil
	}
}

func (f DraftFields) applyTo(sub *model.Submission) {
	if f.Title != nil {
		sub.Title = *f.Title
	}
	if f.Description != nil {
		sub.Description = *f.Description
	}
	if f.ProblemStatement != nil {
		sub.ProblemStatement = *f.ProblemStatement
	}
	if f.Solution != nil {
		sub.Solution = *f.Solution
	}
	if f.TechStack != nil {
		sub.TechStack = *f.TechStack
	}
	if f.RepoURL != nil {
		sub.RepoURL = *f.RepoURL
	}
	if f.DemoURL != nil {
		sub.DemoURL = f.DemoURL
	}
	if f.VideoURL != nil {
		sub.VideoURL = f.VideoURL
	}
}

func (s *SubmissionService) CreateDraft(ctx context.Context, userID string, req CreateSubmissionRequest) (*model.Submission, error) {
	req.normalize()
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if err := s.phase.Require(ctx, model.ActionSubmissionEdit); err != nil {
		return nil, err
	}
	if err := requireMember(ctx, s.teamRepo, nil, userID, req.TeamID); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}

	sub := &model.Submission{
		ID:        uuid.NewString(),
		TeamID:    req.TeamID,
		TechStack: []string{},
		Status:    model.SubmissionDraft,
		CreatedBy: userID,
	}
	req.DraftFields.applyTo(sub)
	if err := s.submissionRepo.Create(ctx, nil, sub); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}
	return sub, nil
}

func (s *SubmissionService) UpdateDraft(ctx context.Context, userID, submissionID string, fields DraftFields) (*model.Submission, error) {
	fields.normalize()
	if err := common.Validate(fields); err != nil {
		return nil, err
	}
	if err := s.phase.Require(ctx, model.ActionSubmissionEdit); err != nil {
		return nil, err
	}

	var sub *model.Submission
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if sub, err = s.submissionRepo.FindByID(ctx, tx, submissionID); err != nil {
			return err
		}
		if err := requireMember(ctx, s.teamRepo, tx, userID, sub.TeamID); err != nil {
			return err
		}
		if sub.Status != model.SubmissionDraft {
			return fmt.Errorf("submission is %s and can no longer be edited: %w", sub.Status, common.ErrInvalidState)
		}
		fields.applyTo(sub)
		return s.submissionRepo.UpdateContent(ctx, tx, sub)
	})
	if err != nil {
		return nil, common.Errorf("failed to update submission: %w", err)
	}
	return sub, nil
}

// Finalize moves a complete draft to submitted and stamps submitted_at.
func (s *SubmissionService) Finalize(ctx context.Context, userID, submissionID string) (*model.Submission, error) {
	if err := s.phase.Require(ctx, model.ActionSubmissionFinalize); err != nil {
		return nil, err
	}

	var sub *model.Submission
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if sub, err = s.submissionRepo.FindByID(ctx, tx, submissionID); err != nil {
			return err
		}
		if err := requireMember(ctx, s.teamRepo, tx, userID, sub.TeamID); err != nil {
			return err
		}
		if !sub.Status.CanTransitionTo(model.SubmissionSubmitted) {
			return fmt.Errorf("submission is already %s: %w", sub.Status, common.ErrInvalidState)
		}
		if err := common.Validate(finalSubmission{
			Title:            sub.Title,
			Description:      sub.Description,
			ProblemStatement: sub.ProblemStatement,
			Solution:         sub.Solution,
			TechStack:        sub.TechStack,
			RepoURL:          sub.RepoURL,
			DemoURL:          sub.DemoURL,
			VideoURL:         sub.VideoURL,
		}); err != nil {
			return err
		}
		now := s.now()
		if err := s.submissionRepo.UpdateStatus(ctx, tx, sub.ID, model.SubmissionSubmitted, &now); err != nil {
			return err
		}
		sub.Status = model.SubmissionSubmitted
		sub.SubmittedAt = &now
		return nil
	})
	if err != nil {
		return nil, common.Errorf("failed to finalize submission: %w", err)
	}

	events.PublishAsync(s.publisher, events.New(events.TypeSubmissionFinalized, sub.ID, map[string]interface{}{
		"submission_id": sub.ID,
		"team_id":       sub.TeamID,
		"submitted_at":  sub.SubmittedAt,
	}))
	return sub, nil
}

// Get returns a submission to its team members, judges and admins.
func (s *SubmissionService) Get(ctx context.Context, actor Actor, submissionID string) (*model.Submission, error) {
	sub, err := s.submissionRepo.FindByID(ctx, nil, submissionID)
	if err != nil {
		return nil, common.Errorf("failed to load submission: %w", err)
	}
	if actor.IsAdmin() || actor.Role == model.RoleJudge {
		return sub, nil
	}
	if err := requireMember(ctx, s.teamRepo, nil, actor.UserID, sub.TeamID); err != nil {
		return nil, common.Errorf("failed to load submission: %w", err)
	}
	return sub, nil
}

func (s *SubmissionService) ListByTeam(ctx context.Context, actor Actor, teamID string) ([]model.Submission, error) {
	if !actor.IsAdmin() {
		if err := requireMember(ctx, s.teamRepo, nil, actor.UserID, teamID); err != nil {
			return nil, common.Errorf("failed to list submissions: %w", err)
		}
	}
	subs, err := s.submissionRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, common.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

// ListSubmitted is the judges' view: everything past draft.
func (s *SubmissionService) ListSubmitted(ctx context.Context) ([]model.Submission, error) {
	subs, err := s.submissionRepo.ListByStatus(ctx, model.SubmissionSubmitted, model.SubmissionScored)
	if err != nil {
		return nil, common.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

// MarkScored moves a submitted submission to scored inside the caller's transaction.
func (s *SubmissionService) MarkScored(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	if sub.Status == model.SubmissionScored {
		return nil
	}
	if !sub.Status.CanTransitionTo(model.SubmissionScored) {
		return fmt.Errorf("submission is %s: %w", sub.Status, common.ErrInvalidState)
	}
	if err := s.submissionRepo.UpdateStatus(ctx, tx, sub.ID, model.SubmissionScored, sub.SubmittedAt); err != nil {
		return err
	}
	sub.Status = model.SubmissionScored
	return nil
}
