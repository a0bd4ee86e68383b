package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
)

const constraintOneDraft = "submissions_one_draft_per_team"

type SubmissionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	// FindByID locks the submission row when tx is non-nil.
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Submission, error)
	UpdateContent(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status model.SubmissionStatus, submittedAt *time.Time) error
	ListByTeam(ctx context.Context, teamID string) ([]model.Submission, error)
	ListByStatus(ctx context.Context, statuses ...model.SubmissionStatus) ([]model.Submission, error)
	CountFinalizedByTeam(ctx context.Context, tx *sql.Tx, teamID string) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `s.id, s.team_id, s.title, s.description, s.problem_statement, s.solution, s.tech_stack,
	s.repo_url, s.demo_url, s.video_url, s.status, s.created_by, s.created_at, s.updated_at, s.submitted_at, t.name`

func scanSubmission(row interface{ Scan(...interface{}) error }, s *model.Submission) error {
	var techStack []byte
	err := row.Scan(&s.ID, &s.TeamID, &s.Title, &s.Description, &s.ProblemStatement, &s.Solution, &techStack,
		&s.RepoURL, &s.DemoURL, &s.VideoURL, &s.Status, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &s.SubmittedAt, &s.TeamName)
	if err != nil {
		return err
	}
	s.TechStack, err = jsonToStrings(techStack)
	return err
}

func (r *pgSubmissionRepository) Create(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	techStack, err := stringsToJSON(s.TechStack)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create tech stack: %w", err)
	}
	err = pick(r.db, tx).QueryRowContext(ctx,
		`INSERT INTO submissions (id, team_id, title, description, problem_statement, solution, tech_stack,
		                          repo_url, demo_url, video_url, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		s.ID, s.TeamID, s.Title, s.Description, s.ProblemStatement, s.Solution, techStack,
		s.RepoURL, s.DemoURL, s.VideoURL, s.Status, s.CreatedBy,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, constraintOneDraft) {
			return fmt.Errorf("team already has a draft submission: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Submission, error) {
	lock := ""
	if tx != nil {
		lock = " FOR UPDATE OF s"
	}
	s := &model.Submission{}
	err := scanSubmission(pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions s JOIN teams t ON t.id = s.team_id
		 WHERE s.id = $1`+lock, id), s)
	if err != nil {
		return nil, notFound("pgSubmissionRepository.FindByID", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) UpdateContent(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	techStack, err := stringsToJSON(s.TechStack)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.UpdateContent tech stack: %w", err)
	}
	err = pick(r.db, tx).QueryRowContext(ctx,
		`UPDATE submissions SET title = $1, description = $2, problem_statement = $3, solution = $4,
		        tech_stack = $5, repo_url = $6, demo_url = $7, video_url = $8, updated_at = NOW()
		 WHERE id = $9 AND status = 'draft' RETURNING updated_at`,
		s.Title, s.Description, s.ProblemStatement, s.Solution, techStack, s.RepoURL, s.DemoURL, s.VideoURL, s.ID,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return notFound("pgSubmissionRepository.UpdateContent", err)
	}
	return nil
}

func (r *pgSubmissionRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status model.SubmissionStatus, submittedAt *time.Time) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE submissions SET status = $1, submitted_at = COALESCE($2, submitted_at), updated_at = NOW()
		 WHERE id = $3`, status, submittedAt, id)
	return expectOne("pgSubmissionRepository.UpdateStatus", res, err)
}

func (r *pgSubmissionRepository) list(ctx context.Context, op, where string, args ...interface{}) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions s JOIN teams t ON t.id = s.team_id
		 WHERE `+where+` ORDER BY s.created_at ASC, s.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := scanSubmission(rows, &s); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *pgSubmissionRepository) ListByTeam(ctx context.Context, teamID string) ([]model.Submission, error) {
	return r.list(ctx, "pgSubmissionRepository.ListByTeam", "s.team_id = $1", teamID)
}

func (r *pgSubmissionRepository) ListByStatus(ctx context.Context, statuses ...model.SubmissionStatus) ([]model.Submission, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	raw, err := stringsToJSON(names)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, "pgSubmissionRepository.ListByStatus",
		"s.status IN (SELECT jsonb_array_elements_text($1::jsonb))", string(raw))
}

func (r *pgSubmissionRepository) CountFinalizedByTeam(ctx context.Context, tx *sql.Tx, teamID string) (int, error) {
	var n int
	err := pick(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE team_id = $1 AND status <> 'draft'`, teamID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountFinalizedByTeam: %w", err)
	}
	return n, nil
}

func (r *pgSubmissionRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.CountByStatus: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		string(model.SubmissionDraft): 0, string(model.SubmissionSubmitted): 0, string(model.SubmissionScored): 0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.CountByStatus scan: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
