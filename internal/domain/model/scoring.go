package model

import "time"

// MaxCriterionIDLen bounds the slug used as a criterion id.
const MaxCriterionIDLen = 40

type Criterion struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MaxScore    int     `json:"max_score"`
	Weight      float64 `json:"weight"`
	SortOrder   int     `json:"sort_order"`
}

type CriterionScore struct {
	CriterionID string  `json:"criterion_id"`
	Score       float64 `json:"score"`
	Feedback    *string `json:"feedback,omitempty"`
}

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentCompleted AssignmentStatus = "completed"
)

type JudgeAssignment struct {
	ID           string           `json:"id"`
	JudgeID      string           `json:"judge_id"`
	SubmissionID string           `json:"submission_id"`
	Status       AssignmentStatus `json:"status"`
	DueAt        *time.Time       `json:"due_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Submission   *Submission      `json:"submission,omitempty"`
}

type Score struct {
	ID           string           `json:"id"`
	SubmissionID string           `json:"submission_id"`
	JudgeID      string           `json:"judge_id"`
	Scores       []CriterionScore `json:"scores"`
	TotalScore   float64          `json:"total_score"`
	Comments     string           `json:"comments"`
	CreatedAt    time.Time        `json:"created_at"`
}
