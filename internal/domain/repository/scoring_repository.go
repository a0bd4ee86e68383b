package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
)

const (
	constraintAssignmentPair = "judge_assignments_judge_submission_key"
	constraintScorePair      = "scores_submission_judge_key"
)

type ScoringRepository interface {
	ListCriteria(ctx context.Context) ([]model.Criterion, error)
	ReplaceCriteria(ctx context.Context, tx *sql.Tx, criteria []model.Criterion) error

	CreateAssignment(ctx context.Context, tx *sql.Tx, a *model.JudgeAssignment) error
	// FindAssignmentByID locks the assignment row when tx is non-nil.
	FindAssignmentByID(ctx context.Context, tx *sql.Tx, id string) (*model.JudgeAssignment, error)
	FindAssignment(ctx context.Context, tx *sql.Tx, judgeID, submissionID string) (*model.JudgeAssignment, error)
	ListAssignmentsByJudge(ctx context.Context, judgeID string, status model.AssignmentStatus) ([]model.JudgeAssignment, error)
	CompleteAssignment(ctx context.Context, tx *sql.Tx, id string, at time.Time) error
	DeleteAssignment(ctx context.Context, tx *sql.Tx, id string) error
	CountPendingAssignments(ctx context.Context, tx *sql.Tx, submissionID string) (int, error)
	CountScoresForSubmission(ctx context.Context, tx *sql.Tx, submissionID string) (int, error)

	CreateScore(ctx context.Context, tx *sql.Tx, score *model.Score) error
	FindScore(ctx context.Context, tx *sql.Tx, submissionID, judgeID string) (*model.Score, error)
	ListScoresBySubmission(ctx context.Context, submissionID string) ([]model.Score, error)
	CountScores(ctx context.Context) (int, error)

	// TeamAggregates is a single statement, so it always sees one consistent snapshot.
	TeamAggregates(ctx context.Context) ([]model.TeamScoreAggregate, error)
}

type pgScoringRepository struct {
	db *sql.DB
}

func NewPgScoringRepository(db *sql.DB) ScoringRepository {
	return &pgScoringRepository{db: db}
}

func (r *pgScoringRepository) ListCriteria(ctx context.Context) ([]model.Criterion, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, max_score, weight, sort_order FROM scoring_criteria ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("pgScoringRepository.ListCriteria: %w", err)
	}
	defer rows.Close()

	out := []model.Criterion{}
	for rows.Next() {
		var c model.Criterion
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.MaxScore, &c.Weight, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("pgScoringRepository.ListCriteria scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgScoringRepository) ReplaceCriteria(ctx context.Context, tx *sql.Tx, criteria []model.Criterion) error {
	q := pick(r.db, tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM scoring_criteria`); err != nil {
		return fmt.Errorf("pgScoringRepository.ReplaceCriteria delete: %w", err)
	}
	for _, c := range criteria {
		_, err := q.ExecContext(ctx,
			`INSERT INTO scoring_criteria (id, name, description, max_score, weight, sort_order)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.Name, c.Description, c.MaxScore, c.Weight, c.SortOrder)
		if err != nil {
			if common.IsUniqueViolation(err, "") {
				return fmt.Errorf("duplicate criterion id %q: %w", c.ID, common.ErrValidation)
			}
			return fmt.Errorf("pgScoringRepository.ReplaceCriteria insert: %w", err)
		}
	}
	return nil
}

func (r *pgScoringRepository) CreateAssignment(ctx context.Context, tx *sql.Tx, a *model.JudgeAssignment) error {
	err := pick(r.db, tx).QueryRowContext(ctx,
		`INSERT INTO judge_assignments (id, judge_id, submission_id, status, due_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		a.ID, a.JudgeID, a.SubmissionID, a.Status, a.DueAt).Scan(&a.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, constraintAssignmentPair) {
			return fmt.Errorf("judge is already assigned to this submission: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgScoringRepository.CreateAssignment: %w", err)
	}
	return nil
}

const assignmentColumns = `id, judge_id, submission_id, status, due_at, created_at, completed_at`

func scanAssignment(row interface{ Scan(...interface{}) error }, a *model.JudgeAssignment) error {
	return row.Scan(&a.ID, &a.JudgeID, &a.SubmissionID, &a.Status, &a.DueAt, &a.CreatedAt, &a.CompletedAt)
}

func (r *pgScoringRepository) FindAssignmentByID(ctx context.Context, tx *sql.Tx, id string) (*model.JudgeAssignment, error) {
	a := &model.JudgeAssignment{}
	err := scanAssignment(pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM judge_assignments WHERE id = $1`+forUpdate(tx), id), a)
	if err != nil {
		return nil, notFound("pgScoringRepository.FindAssignmentByID", err)
	}
	return a, nil
}

func (r *pgScoringRepository) FindAssignment(ctx context.Context, tx *sql.Tx, judgeID, submissionID string) (*model.JudgeAssignment, error) {
	a := &model.JudgeAssignment{}
	err := scanAssignment(pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM judge_assignments WHERE judge_id = $1 AND submission_id = $2`+forUpdate(tx),
		judgeID, submissionID), a)
	if err != nil {
		return nil, notFound("pgScoringRepository.FindAssignment", err)
	}
	return a, nil
}

// ListAssignmentsByJudge embeds each assignment's submission; an empty status lists all.
func (r *pgScoringRepository) ListAssignmentsByJudge(ctx context.Context, judgeID string, status model.AssignmentStatus) ([]model.JudgeAssignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.judge_id, a.submission_id, a.status, a.due_at, a.created_at, a.completed_at,
		        `+submissionColumns+`
		 FROM judge_assignments a
		 JOIN submissions s ON s.id = a.submission_id
		 JOIN teams t ON t.id = s.team_id
		 WHERE a.judge_id = $1 AND ($2 = '' OR a.status = $2)
		 ORDER BY a.due_at ASC NULLS LAST, a.created_at ASC`, judgeID, string(status))
	if err != nil {
		return nil, fmt.Errorf("pgScoringRepository.ListAssignmentsByJudge: %w", err)
	}
	defer rows.Close()

	out := []model.JudgeAssignment{}
	for rows.Next() {
		var (
			a         model.JudgeAssignment
			s         model.Submission
			techStack []byte
		)
		err := rows.Scan(&a.ID, &a.JudgeID, &a.SubmissionID, &a.Status, &a.DueAt, &a.CreatedAt, &a.CompletedAt,
			&s.ID, &s.TeamID, &s.Title, &s.Description, &s.ProblemStatement, &s.Solution, &techStack,
			&s.RepoURL, &s.DemoURL, &s.VideoURL, &s.Status, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &s.SubmittedAt, &s.TeamName)
		if err != nil {
			return nil, fmt.Errorf("pgScoringRepository.ListAssignmentsByJudge scan: %w", err)
		}
		if s.TechStack, err = jsonToStrings(techStack); err != nil {
			return nil, fmt.Errorf("pgScoringRepository.ListAssignmentsByJudge tech stack: %w", err)
		}
		a.Submission = &s
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *pgScoringRepository) CompleteAssignment(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE judge_assignments SET status = 'completed', completed_at = $1 WHERE id = $2 AND status = 'pending'`,
		at, id)
	return expectOne("pgScoringRepository.CompleteAssignment", res, err)
}

func (r *pgScoringRepository) DeleteAssignment(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM judge_assignments WHERE id = $1`, id)
	return expectOne("pgScoringRepository.DeleteAssignment", res, err)
}

func (r *pgScoringRepository) CountPendingAssignments(ctx context.Context, tx *sql.Tx, submissionID string) (int, error) {
	var n int
	err := pick(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM judge_assignments WHERE submission_id = $1 AND status = 'pending'`, submissionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgScoringRepository.CountPendingAssignments: %w", err)
	}
	return n, nil
}

func (r *pgScoringRepository) CountScoresForSubmission(ctx context.Context, tx *sql.Tx, submissionID string) (int, error) {
	var n int
	err := pick(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scores WHERE submission_id = $1`, submissionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgScoringRepository.CountScoresForSubmission: %w", err)
	}
	return n, nil
}

func (r *pgScoringRepository) CreateScore(ctx context.Context, tx *sql.Tx, s *model.Score) error {
	criteria, err := json.Marshal(s.Scores)
	if err != nil {
		return fmt.Errorf("pgScoringRepository.CreateScore encode: %w", err)
	}
	err = pick(r.db, tx).QueryRowContext(ctx,
		`INSERT INTO scores (id, submission_id, judge_id, criteria, total_score, comments)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		s.ID, s.SubmissionID, s.JudgeID, criteria, s.TotalScore, s.Comments).Scan(&s.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, constraintScorePair) {
			return common.ErrAlreadyScored
		}
		return fmt.Errorf("pgScoringRepository.CreateScore: %w", err)
	}
	return nil
}

func scanScore(row interface{ Scan(...interface{}) error }, s *model.Score) error {
	var criteria []byte
	if err := row.Scan(&s.ID, &s.SubmissionID, &s.JudgeID, &criteria, &s.TotalScore, &s.Comments, &s.CreatedAt); err != nil {
		return err
	}
	return json.Unmarshal(criteria, &s.Scores)
}

func (r *pgScoringRepository) FindScore(ctx context.Context, tx *sql.Tx, submissionID, judgeID string) (*model.Score, error) {
	s := &model.Score{}
	err := scanScore(pick(r.db, tx).QueryRowContext(ctx,
		`SELECT id, submission_id, judge_id, criteria, total_score, comments, created_at
		 FROM scores WHERE submission_id = $1 AND judge_id = $2`, submissionID, judgeID), s)
	if err != nil {
		return nil, notFound("pgScoringRepository.FindScore", err)
	}
	return s, nil
}

func (r *pgScoringRepository) ListScoresBySubmission(ctx context.Context, submissionID string) ([]model.Score, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, submission_id, judge_id, criteria, total_score, comments, created_at
		 FROM scores WHERE submission_id = $1 ORDER BY created_at ASC`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("pgScoringRepository.ListScoresBySubmission: %w", err)
	}
	defer rows.Close()

	out := []model.Score{}
	for rows.Next() {
		var s model.Score
		if err := scanScore(rows, &s); err != nil {
			return nil, fmt.Errorf("pgScoringRepository.ListScoresBySubmission scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgScoringRepository) CountScores(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgScoringRepository.CountScores: %w", err)
	}
	return n, nil
}

func (r *pgScoringRepository) TeamAggregates(ctx context.Context) ([]model.TeamScoreAggregate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at,
		       agg.avg_score, agg.judge_count, agg.score_count,
		       latest.id, latest.title
		FROM teams t
		JOIN (
			SELECT s.team_id,
			       AVG(sc.total_score)::double precision AS avg_score,
			       COUNT(DISTINCT sc.judge_id) AS judge_count,
			       COUNT(sc.id) AS score_count
			FROM submissions s
			JOIN scores sc ON sc.submission_id = s.id
			WHERE s.status IN ('submitted', 'scored')
			GROUP BY s.team_id
		) agg ON agg.team_id = t.id
		JOIN LATERAL (
			SELECT s.id, s.title
			FROM submissions s
			WHERE s.team_id = t.id AND s.status IN ('submitted', 'scored')
			ORDER BY s.submitted_at DESC NULLS LAST, s.id
			LIMIT 1
		) latest ON TRUE`)
	if err != nil {
		return nil, fmt.Errorf("pgScoringRepository.TeamAggregates: %w", err)
	}
	defer rows.Close()

	out := []model.TeamScoreAggregate{}
	for rows.Next() {
		var a model.TeamScoreAggregate
		if err := rows.Scan(&a.TeamID, &a.TeamName, &a.TeamCreatedAt, &a.AvgScore, &a.JudgeCount, &a.ScoreCount,
			&a.SubmissionID, &a.SubmissionTitle); err != nil {
			return nil, fmt.Errorf("pgScoringRepository.TeamAggregates scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
