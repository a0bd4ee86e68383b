package model

import "time"

type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionScored    SubmissionStatus = "scored"
)

func (s SubmissionStatus) rank() int {
	switch s {
	case SubmissionDraft:
		return 0
	case SubmissionSubmitted:
		return 1
	case SubmissionScored:
		return 2
	}
	return -1
}

// CanTransitionTo allows exactly one step forward: draft -> submitted -> scored.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to == from+1
}

type Submission struct {
	ID               string           `json:"id"`
	TeamID           string           `json:"team_id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	ProblemStatement string           `json:"problem_statement"`
	Solution         string           `json:"solution"`
	TechStack        []string         `json:"tech_stack"`
	RepoURL          string           `json:"repo_url"`
	DemoURL          *string          `json:"demo_url,omitempty"`
	VideoURL         *string          `json:"video_url,omitempty"`
	Status           SubmissionStatus `json:"status"`
	CreatedBy        string           `json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	TeamName         string           `json:"team_name,omitempty"`
}
