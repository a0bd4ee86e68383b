package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
	"innovate_api/internal/platform/events"
)

// scoresTotalling spreads total across the four default criteria.
func scoresTotalling(total float64) []model.CriterionScore {
	quarter := total / 4
	return []model.CriterionScore{
		{CriterionID: "innovation", Score: quarter},
		{CriterionID: "technical", Score: quarter},
		{CriterionID: "impact", Score: quarter},
		{CriterionID: "presentation", Score: quarter},
	}
}

func assign(t *testing.T, env *testEnv, judgeID, submissionID string) *model.JudgeAssignment {
	t.Helper()
	a, err := env.scoring.Assign(context.Background(), AssignJudgeRequest{JudgeID: judgeID, SubmissionID: submissionID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

// Two judges score 80 and 90; the team averages 85 with two judges.
func TestScoringScenario_Average(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("j1", model.RoleJudge)
	env.store.addUser("j2", model.RoleJudge)
	sub := finalizedSubmission(t, env, "leader", "Crusaders")
	assign(t, env, "j1", sub.ID)
	assign(t, env, "j2", sub.ID)

	first, err := env.scoring.SubmitScore(ctx, "j1", sub.ID, SubmitScoreRequest{Scores: scoresTotalling(80)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalScore != 80 {
		t.Fatalf("unexpected total %v", first.TotalScore)
	}
	if env.store.submissions[sub.ID].Status != model.SubmissionSubmitted {
		t.Fatalf("submission should wait for the second judge")
	}
	if _, err := env.scoring.SubmitScore(ctx, "j2", sub.ID, SubmitScoreRequest{Scores: scoresTotalling(90)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.store.submissions[sub.ID].Status != model.SubmissionScored {
		t.Fatalf("submission should be scored once every assignment is done")
	}
	waitForEvent(t, env.publisher, events.TypeScoreSubmitted)

	board, err := env.leaderboard.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(board.Entries) != 1 {
		t.Fatalf("unexpected entries: %+v", board.Entries)
	}
	entry := board.Entries[0]
	if entry.Rank != 1 || entry.AvgScore != 85 || entry.JudgeCount != 2 || entry.TeamName != "Crusaders" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if env.lbCache.version != 2 || len(env.queue.jobs) != 2 {
		t.Fatalf("each score should bump the version and queue a recompute: v=%d jobs=%d", env.lbCache.version, len(env.queue.jobs))
	}
}

// A judge scoring the same submission twice is rejected and the first score stands.
func TestSubmitScore_AtMostOncePerJudge(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("j1", model.RoleJudge)
	sub := finalizedSubmission(t, env, "leader", "Crusaders")
	assign(t, env, "j1", sub.ID)

	if _, err := env.scoring.SubmitScore(ctx, "j1", sub.ID, SubmitScoreRequest{Scores: scoresTotalling(60)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := env.scoring.SubmitScore(ctx, "j1", sub.ID, SubmitScoreRequest{Scores: scoresTotalling(100)})
	if !errors.Is(err, common.ErrAlreadyScored) || !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected already scored conflict, got %v", err)
	}

	scores, err := env.scoring.ListScores(ctx, sub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 1 || scores[0].TotalScore != 60 {
		t.Fatalf("expected the original score only, got %+v", scores)
	}

	if _, err := env.scoring.Assign(ctx, AssignJudgeRequest{JudgeID: "j1", SubmissionID: sub.ID}); !errors.Is(err, common.ErrAlreadyScored) {
		t.Fatalf("re-assigning a scored pair should fail, got %v", err)
	}
}

func TestSubmitScore_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("j1", model.RoleJudge)
	sub := finalizedSubmission(t, env, "leader", "Crusaders")
	assign(t, env, "j1", sub.ID)

	cases := map[string][]model.CriterionScore{
		"empty":     {},
		"unknown":   {{CriterionID: "vibes", Score: 3}},
		"too high":  {{CriterionID: "impact", Score: 26}},
		"negative":  {{CriterionID: "impact", Score: -1}},
		"duplicate": {{CriterionID: "impact", Score: 5}, {CriterionID: "impact", Score: 5}},
	}
	for name, scores := range cases {
		_, err := env.scoring.SubmitScore(ctx, "j1", sub.ID, SubmitScoreRequest{Scores: scores})
		if !errors.Is(err, common.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if len(env.store.scores) != 0 {
		t.Fatalf("no score should be stored")
	}

	partial, err := env.scoring.SubmitScore(ctx, "j1", sub.ID, SubmitScoreRequest{
		Scores: []model.CriterionScore{{CriterionID: "impact", Score: 25}, {CriterionID: "technical", Score: 12.5}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partial.TotalScore != 37.5 {
		t.Fatalf("unexpected total %v", partial.TotalScore)
	}
}

func TestSubmitScore_RequiresAssignmentAndPhase(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("j1", model.RoleJudge)
	sub := finalizedSubmission(t, env, "leader", "Crusaders")

	if _, err := env.scoring.SubmitScore(ctx, "j1", sub.ID, SubmitScoreRequest{Scores: scoresTotalling(40)}); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected forbidden without assignment, got %v", err)
	}

	assign(t, env, "j1", sub.ID)
	env.setPhase(model.PhasePost)
	if _, err := env.scoring.SubmitScore(ctx, "j1", sub.ID, SubmitScoreRequest{Scores: scoresTotalling(40)}); err != nil {
		t.Fatalf("scoring stays open after the event: %v", err)
	}
}

func TestSubmitScore_PhaseClosedBeforeEvent(t *testing.T) {
	env := newTestEnv()
	env.setPhase(model.PhasePre)
	_, err := env.scoring.SubmitScore(context.Background(), "j1", "s1", SubmitScoreRequest{Scores: scoresTotalling(40)})
	if !errors.Is(err, common.ErrPhaseClosed) {
		t.Fatalf("expected phase closed, got %v", err)
	}
}

func TestAssign_Guards(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("j1", model.RoleJudge)
	env.store.addUser("student", model.RoleStudent)
	sub := finalizedSubmission(t, env, "leader", "Crusaders")

	if _, err := env.scoring.Assign(ctx, AssignJudgeRequest{JudgeID: "student", SubmissionID: sub.ID}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for non-judge, got %v", err)
	}

	due := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	a, err := env.scoring.Assign(ctx, AssignJudgeRequest{JudgeID: "j1", SubmissionID: sub.ID, DueAt: &due})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != model.AssignmentPending || a.DueAt == nil {
		t.Fatalf("unexpected assignment: %+v", a)
	}
	if _, err := env.scoring.Assign(ctx, AssignJudgeRequest{JudgeID: "j1", SubmissionID: sub.ID}); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	team := createTeam(t, env, "drafter", "Drafters", 4)
	draft, err := env.submissions.CreateDraft(ctx, "drafter", CreateSubmissionRequest{TeamID: team.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.scoring.Assign(ctx, AssignJudgeRequest{JudgeID: "j1", SubmissionID: draft.ID}); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected invalid state for draft, got %v", err)
	}
}

func TestSkipAssignment(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("j1", model.RoleJudge)
	env.store.addUser("j2", model.RoleJudge)
	sub := finalizedSubmission(t, env, "leader", "Crusaders")
	a := assign(t, env, "j1", sub.ID)

	if err := env.scoring.SkipAssignment(ctx, "j2", a.ID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := env.scoring.SkipAssignment(ctx, "j1", a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.scoring.SkipAssignment(ctx, "j1", a.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(env.store.scores) != 0 {
		t.Fatalf("skip must not create a score")
	}

	// Reassignment after a skip is allowed.
	b := assign(t, env, "j1", sub.ID)
	if _, err := env.scoring.SubmitScore(ctx, "j1", sub.ID, SubmitScoreRequest{Scores: scoresTotalling(20)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.scoring.SkipAssignment(ctx, "j1", b.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("expected invalid state for completed assignment, got %v", err)
	}
}

func TestSkipAssignment_LastPendingJudgeCompletesScoring(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("j1", model.RoleJudge)
	env.store.addUser("j2", model.RoleJudge)
	sub := finalizedSubmission(t, env, "leader", "Crusaders")
	assign(t, env, "j1", sub.ID)
	pending := assign(t, env, "j2", sub.ID)

	if _, err := env.scoring.SubmitScore(ctx, "j1", sub.ID, SubmitScoreRequest{Scores: scoresTotalling(80)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := env.store.submissions[sub.ID].Status; got != model.SubmissionSubmitted {
		t.Fatalf("submission should wait for j2, got %s", got)
	}

	if err := env.scoring.SkipAssignment(ctx, "j2", pending.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := env.store.submissions[sub.ID].Status; got != model.SubmissionScored {
		t.Fatalf("expected scored after the last pending judge skipped, got %s", got)
	}
}

func TestListAssignments(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addUser("j1", model.RoleJudge)
	first := finalizedSubmission(t, env, "l1", "Alpha Team")
	second := finalizedSubmission(t, env, "l2", "Beta Team")
	assign(t, env, "j1", first.ID)
	assign(t, env, "j1", second.ID)
	if _, err := env.scoring.SubmitScore(ctx, "j1", first.ID, SubmitScoreRequest{Scores: scoresTotalling(50)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := env.scoring.ListAssignments(ctx, "j1", model.AssignmentPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].SubmissionID != second.ID {
		t.Fatalf("unexpected pending: %+v", pending)
	}
	all, err := env.scoring.ListAssignments(ctx, "j1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(all))
	}
	if _, err := env.scoring.ListAssignments(ctx, "j1", "bogus"); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReplaceCriteria(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	criteria, err := env.scoring.ReplaceCriteria(ctx, ReplaceCriteriaRequest{Criteria: []CriterionInput{
		{Name: "Design Quality", MaxScore: 50},
		{Name: "Business Value", MaxScore: 50, Weight: 2},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if criteria[0].ID != "design-quality" || criteria[0].Weight != 1 || criteria[1].SortOrder != 2 {
		t.Fatalf("unexpected criteria: %+v", criteria)
	}

	_, err = env.scoring.ReplaceCriteria(ctx, ReplaceCriteriaRequest{Criteria: []CriterionInput{
		{Name: "Impact", MaxScore: 10},
		{Name: "impact", MaxScore: 10},
	}})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for duplicate names, got %v", err)
	}

	listed, err := env.scoring.ListCriteria(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected the first replacement to stick, got %+v", listed)
	}
}
