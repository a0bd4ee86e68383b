package model

import (
	"testing"
	"time"
)

func TestRankLeaderboard_OrdersByScoreThenCreation(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	aggs := []TeamScoreAggregate{
		{TeamID: "c", TeamName: "Gamma", TeamCreatedAt: base.Add(2 * time.Hour), AvgScore: 70, JudgeCount: 1},
		{TeamID: "b", TeamName: "Beta", TeamCreatedAt: base.Add(time.Hour), AvgScore: 85, JudgeCount: 2},
		{TeamID: "a", TeamName: "Alpha", TeamCreatedAt: base.Add(3 * time.Hour), AvgScore: 85, JudgeCount: 3},
		{TeamID: "d", TeamName: "Delta", TeamCreatedAt: base, AvgScore: 92.5, JudgeCount: 2, SubmissionID: "s-d", SubmissionTitle: "Delta Drone"},
	}

	got := RankLeaderboard(aggs)

	wantOrder := []string{"d", "b", "a", "c"}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d entries, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].TeamID != id {
			t.Fatalf("position %d: got %s, want %s", i, got[i].TeamID, id)
		}
		if got[i].Rank != i+1 {
			t.Fatalf("position %d: rank %d, want %d", i, got[i].Rank, i+1)
		}
	}
	if sub := got[0].Submission; sub == nil || sub.ID != "s-d" || sub.Title != "Delta Drone" {
		t.Fatalf("unexpected submission on the leader: %+v", got[0].Submission)
	}
	if got[3].Submission != nil {
		t.Fatalf("entries without a submission id must omit it: %+v", got[3].Submission)
	}
	if aggs[0].TeamID != "c" {
		t.Fatalf("input slice must not be reordered")
	}
}

func TestRankLeaderboard_IDBreaksExactTies(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	got := RankLeaderboard([]TeamScoreAggregate{
		{TeamID: "zz", TeamCreatedAt: created, AvgScore: 50},
		{TeamID: "aa", TeamCreatedAt: created, AvgScore: 50},
	})
	if got[0].TeamID != "aa" || got[1].TeamID != "zz" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestRankLeaderboard_Empty(t *testing.T) {
	if got := RankLeaderboard(nil); len(got) != 0 {
		t.Fatalf("expected empty leaderboard, got %+v", got)
	}
}
