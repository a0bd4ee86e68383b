package model

import (
	"sort"
	"time"
)

// TeamScoreAggregate is one team's raw score totals before ranking.
type TeamScoreAggregate struct {
	TeamID        string
	TeamName      string
	TeamCreatedAt time.Time
	AvgScore      float64
	JudgeCount    int
	ScoreCount    int

	// The team's most recently submitted entry.
	SubmissionID    string
	SubmissionTitle string
}

type LeaderboardSubmission struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type LeaderboardEntry struct {
	Rank       int                    `json:"rank"`
	TeamID     string                 `json:"team_id"`
	TeamName   string                 `json:"team_name"`
	AvgScore   float64                `json:"avg_score"`
	JudgeCount int                    `json:"judge_count"`
	Submission *LeaderboardSubmission `json:"submission,omitempty"`
}

type LeaderboardSnapshot struct {
	Version     int64              `json:"version"`
	GeneratedAt time.Time          `json:"generated_at"`
	Entries     []LeaderboardEntry `json:"entries"`
}

// RankLeaderboard orders by average score descending, then earlier team
// creation, then team id, and numbers the result 1..N.
func RankLeaderboard(aggs []TeamScoreAggregate) []LeaderboardEntry {
	sorted := make([]TeamScoreAggregate, len(aggs))
	copy(sorted, aggs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.AvgScore != b.AvgScore {
			return a.AvgScore > b.AvgScore
		}
		if !a.TeamCreatedAt.Equal(b.TeamCreatedAt) {
			return a.TeamCreatedAt.Before(b.TeamCreatedAt)
		}
		return a.TeamID < b.TeamID
	})

	entries := make([]LeaderboardEntry, len(sorted))
	for i, agg := range sorted {
		entries[i] = LeaderboardEntry{
			Rank:       i + 1,
			TeamID:     agg.TeamID,
			TeamName:   agg.TeamName,
			AvgScore:   agg.AvgScore,
			JudgeCount: agg.JudgeCount,
		}
		if agg.SubmissionID != "" {
			entries[i].Submission = &LeaderboardSubmission{ID: agg.SubmissionID, Title: agg.SubmissionTitle}
		}
	}
	return entries
}
