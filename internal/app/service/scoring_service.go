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

// LeaderboardInvalidator is told when a committed write changes team scores.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context)
}

type scoredMarker interface {
	MarkScored(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
}

type ScoringService struct {
	scoringRepo    repository.ScoringRepository
	submissionRepo repository.SubmissionRepository
	userRepo       repository.UserRepository
	submissions    scoredMarker
	tx             database.Transactor
	phase          PhaseGuard
	leaderboard    LeaderboardInvalidator
	publisher      events.Publisher
	now            func() time.Time
}

func NewScoringService(
	scoringRepo repository.ScoringRepository,
	submissionRepo repository.SubmissionRepository,
	userRepo repository.UserRepository,
	submissions *SubmissionService,
	tx database.Transactor,
	phase PhaseGuard,
	leaderboard LeaderboardInvalidator,
	publisher events.Publisher,
) *ScoringService {
	return &ScoringService{
		scoringRepo:    scoringRepo,
		submissionRepo: submissionRepo,
		userRepo:       userRepo,
		submissions:    submissions,
		tx:             tx,
		phase:          phase,
		leaderboard:    leaderboard,
		publisher:      publisher,
		now:            time.Now,
	}
}

type AssignJudgeRequest struct {
	JudgeID      string     `json:"judge_id" validate:"required"`
	SubmissionID string     `json:"submission_id" validate:"required"`
	DueAt        *time.Time `json:"due_at"`
}

type SubmitScoreRequest struct {
	Scores   []model.CriterionScore `json:"scores" validate:"required,min=1,max=20"`
	Comments string                 `json:"comments" validate:"max=2000"`
}

type CriterionInput struct {
	Name        string  `json:"name" validate:"required,max=60"`
	Description string  `json:"description" validate:"max=500"`
	MaxScore    int     `json:"max_score" validate:"required,min=1,max=100"`
	Weight      float64 `json:"weight" validate:"gte=0,lte=10"`
}

type ReplaceCriteriaRequest struct {
	Criteria []CriterionInput `json:"criteria" validate:"required,min=1,max=20,dive"`
}

// Assign pairs a judge with a finalized submission.
func (s *ScoringService) Assign(ctx context.Context, req AssignJudgeRequest) (*model.JudgeAssignment, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	judge, err := s.userRepo.FindByID(ctx, req.JudgeID)
	if err != nil {
		return nil, common.Errorf("failed to load judge: %w", err)
	}
	if judge.Role != model.RoleJudge {
		return nil, fmt.Errorf("user %s is not a judge: %w", judge.ID, common.ErrValidation)
	}

	sub, err := s.submissionRepo.FindByID(ctx, nil, req.SubmissionID)
	if err != nil {
		return nil, common.Errorf("failed to load submission: %w", err)
	}
	if sub.Status == model.SubmissionDraft {
		return nil, fmt.Errorf("draft submissions cannot be judged: %w", common.ErrInvalidState)
	}

	if _, err := s.scoringRepo.FindScore(ctx, nil, sub.ID, judge.ID); err == nil {
		return nil, common.ErrAlreadyScored
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to check existing score: %w", err)
	}

	a := &model.JudgeAssignment{
		ID:           uuid.NewString(),
		JudgeID:      judge.ID,
		SubmissionID: sub.ID,
		Status:       model.AssignmentPending,
		DueAt:        req.DueAt,
	}
	if err := s.scoringRepo.CreateAssignment(ctx, nil, a); err != nil {
		return nil, common.Errorf("failed to create assignment: %w", err)
	}
	return a, nil
}

// validateCriterionScores checks every entry against the rubric and returns the total.
func validateCriterionScores(rubric []model.Criterion, scores []model.CriterionScore) (float64, error) {
	byID := make(map[string]model.Criterion, len(rubric))
	for _, c := range rubric {
		byID[c.ID] = c
	}

	var (
		total float64
		seen  = map[string]bool{}
		msgs  []string
	)
	for _, cs := range scores {
		c, ok := byID[cs.CriterionID]
		switch {
		case !ok:
			msgs = append(msgs, fmt.Sprintf("unknown criterion %q", cs.CriterionID))
		case seen[cs.CriterionID]:
			msgs = append(msgs, fmt.Sprintf("criterion %q scored twice", cs.CriterionID))
		case cs.Score < 0 || cs.Score > float64(c.MaxScore):
			msgs = append(msgs, fmt.Sprintf("%s must be between 0 and %d", c.ID, c.MaxScore))
		case cs.Feedback != nil && len(*cs.Feedback) > 1000:
			msgs = append(msgs, fmt.Sprintf("%s feedback must be at most 1000 characters", c.ID))
		default:
			total += cs.Score
		}
		seen[cs.CriterionID] = true
	}
	if len(msgs) > 0 {
		return 0, fmt.Errorf("%s: %w", strings.Join(msgs, "; "), common.ErrValidation)
	}
	return total, nil
}

// SubmitScore records the one score a judge may give a submission. The score
// insert, assignment completion and submission status change commit together.
func (s *ScoringService) SubmitScore(ctx context.Context, judgeID, submissionID string, req SubmitScoreRequest) (*model.Score, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if err := s.phase.Require(ctx, model.ActionScore); err != nil {
		return nil, err
	}

	rubric, err := s.scoringRepo.ListCriteria(ctx)
	if err != nil {
		return nil, common.Errorf("failed to load criteria: %w", err)
	}

	var score *model.Score
	err = s.tx.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		sub, err := s.submissionRepo.FindByID(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		if _, err := s.scoringRepo.FindScore(ctx, tx, sub.ID, judgeID); err == nil {
			return common.ErrAlreadyScored
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		assignment, err := s.scoringRepo.FindAssignment(ctx, tx, judgeID, sub.ID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("submission is not assigned to you: %w", common.ErrForbidden)
			}
			return err
		}
		if assignment.Status != model.AssignmentPending {
			return common.ErrAlreadyScored
		}

		total, err := validateCriterionScores(rubric, req.Scores)
		if err != nil {
			return err
		}

		score = &model.Score{
			ID:           uuid.NewString(),
			SubmissionID: sub.ID,
			JudgeID:      judgeID,
			Scores:       req.Scores,
			TotalScore:   total,
			Comments:     strings.TrimSpace(req.Comments),
		}
		if err := s.scoringRepo.CreateScore(ctx, tx, score); err != nil {
			return err
		}
		if err := s.scoringRepo.CompleteAssignment(ctx, tx, assignment.ID, s.now()); err != nil {
			return err
		}
		pending, err := s.scoringRepo.CountPendingAssignments(ctx, tx, sub.ID)
		if err != nil {
			return err
		}
		if pending == 0 {
			return s.submissions.MarkScored(ctx, tx, sub)
		}
		return nil
	})
	if err != nil {
		return nil, common.Errorf("failed to submit score: %w", err)
	}

	s.leaderboard.Invalidate(ctx)
	events.PublishAsync(s.publisher, events.New(events.TypeScoreSubmitted, score.SubmissionID, map[string]interface{}{
		"submission_id": score.SubmissionID,
		"judge_id":      score.JudgeID,
		"total_score":   score.TotalScore,
	}))
	return score, nil
}

// SkipAssignment drops a pending assignment without scoring it. If that was the
// last pending judge and someone already scored, the submission becomes scored.
func (s *ScoringService) SkipAssignment(ctx context.Context, judgeID, assignmentID string) error {
	markedScored := false
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		peek, err := s.scoringRepo.FindAssignmentByID(ctx, nil, assignmentID)
		if err != nil {
			return err
		}
		// Submission row first, as in SubmitScore, so a concurrent score and skip serialize.
		sub, err := s.submissionRepo.FindByID(ctx, tx, peek.SubmissionID)
		if err != nil {
			return err
		}
		a, err := s.scoringRepo.FindAssignmentByID(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if a.JudgeID != judgeID {
			return fmt.Errorf("assignment belongs to another judge: %w", common.ErrForbidden)
		}
		if a.Status != model.AssignmentPending {
			return fmt.Errorf("assignment is already %s: %w", a.Status, common.ErrInvalidState)
		}
		if err := s.scoringRepo.DeleteAssignment(ctx, tx, a.ID); err != nil {
			return err
		}

		pending, err := s.scoringRepo.CountPendingAssignments(ctx, tx, sub.ID)
		if err != nil || pending > 0 {
			return err
		}
		scored, err := s.scoringRepo.CountScoresForSubmission(ctx, tx, sub.ID)
		if err != nil || scored == 0 || sub.Status == model.SubmissionScored {
			return err
		}
		markedScored = true
		return s.submissions.MarkScored(ctx, tx, sub)
	})
	if err != nil {
		return common.Errorf("failed to skip assignment: %w", err)
	}
	if markedScored {
		s.leaderboard.Invalidate(ctx)
	}
	return nil
}

func (s *ScoringService) ListAssignments(ctx context.Context, judgeID string, status model.AssignmentStatus) ([]model.JudgeAssignment, error) {
	switch status {
	case "", model.AssignmentPending, model.AssignmentCompleted:
	default:
		return nil, fmt.Errorf("unknown status %q: %w", status, common.ErrValidation)
	}
	out, err := s.scoringRepo.ListAssignmentsByJudge(ctx, judgeID, status)
	if err != nil {
		return nil, common.Errorf("failed to list assignments: %w", err)
	}
	return out, nil
}

func (s *ScoringService) ListScores(ctx context.Context, submissionID string) ([]model.Score, error) {
	if _, err := s.submissionRepo.FindByID(ctx, nil, submissionID); err != nil {
		return nil, common.Errorf("failed to load submission: %w", err)
	}
	out, err := s.scoringRepo.ListScoresBySubmission(ctx, submissionID)
	if err != nil {
		return nil, common.Errorf("failed to list scores: %w", err)
	}
	return out, nil
}

func (s *ScoringService) ListCriteria(ctx context.Context) ([]model.Criterion, error) {
	out, err := s.scoringRepo.ListCriteria(ctx)
	if err != nil {
		return nil, common.Errorf("failed to list criteria: %w", err)
	}
	return out, nil
}

// ReplaceCriteria swaps the rubric. Criterion ids are slugs of their names.
// Scores already given keep the ids they were recorded with.
func (s *ScoringService) ReplaceCriteria(ctx context.Context, req ReplaceCriteriaRequest) ([]model.Criterion, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	criteria := make([]model.Criterion, 0, len(req.Criteria))
	seen := map[string]bool{}
	for i, in := range req.Criteria {
		id := boundedSlug(in.Name, model.MaxCriterionIDLen)
		if id == "" || seen[id] {
			return nil, fmt.Errorf("criterion names must be distinct and non-empty (%q): %w", in.Name, common.ErrValidation)
		}
		seen[id] = true
		weight := in.Weight
		if weight == 0 {
			weight = 1
		}
		criteria = append(criteria, model.Criterion{
			ID:          id,
			Name:        strings.TrimSpace(in.Name),
			Description: strings.TrimSpace(in.Description),
			MaxScore:    in.MaxScore,
			Weight:      weight,
			SortOrder:   i + 1,
		})
	}

	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		return s.scoringRepo.ReplaceCriteria(ctx, tx, criteria)
	})
	if err != nil {
		return nil, common.Errorf("failed to replace criteria: %w", err)
	}
	return criteria, nil
}
