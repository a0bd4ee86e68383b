package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
)

// ErrInviteCodeTaken signals an invite-code collision; callers retry with a fresh code.
var ErrInviteCodeTaken = fmt.Errorf("invite code already in use: %w", common.ErrConflict)

const (
	constraintInviteCode     = "teams_invite_code_key"
	constraintTeamSlug       = "teams_slug_key"
	constraintMemberUser     = "team_members_user_id_key"
	constraintPendingRequest = "join_requests_pending_key"
)

type TeamRepository interface {
	Create(ctx context.Context, tx *sql.Tx, team *model.Team) error
	// FindByID locks the team row when tx is non-nil.
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Team, error)
	FindByInviteCode(ctx context.Context, code string) (*model.Team, error)
	List(ctx context.Context, includePrivate bool, limit, offset int) ([]model.Team, int, error)
	Update(ctx context.Context, tx *sql.Tx, team *model.Team) error
	UpdateInviteCode(ctx context.Context, tx *sql.Tx, teamID, code string) error
	UpdateLeader(ctx context.Context, tx *sql.Tx, teamID, leaderID string) error
	Delete(ctx context.Context, tx *sql.Tx, id string) error
	Count(ctx context.Context) (int, error)

	AddMember(ctx context.Context, tx *sql.Tx, member *model.TeamMember) error
	FindMemberByID(ctx context.Context, tx *sql.Tx, id string) (*model.TeamMember, error)
	FindMembershipByUser(ctx context.Context, tx *sql.Tx, userID string) (*model.TeamMember, error)
	ListMembers(ctx context.Context, teamID string) ([]model.TeamMember, error)
	CountMembers(ctx context.Context, tx *sql.Tx, teamID string) (int, error)
	UpdateMemberRole(ctx context.Context, tx *sql.Tx, memberID, role string) error
	DeleteMember(ctx context.Context, tx *sql.Tx, memberID string) error

	CreateJoinRequest(ctx context.Context, tx *sql.Tx, req *model.JoinRequest) error
	// FindJoinRequest locks the request row when tx is non-nil.
	FindJoinRequest(ctx context.Context, tx *sql.Tx, id string) (*model.JoinRequest, error)
	ResolveJoinRequest(ctx context.Context, tx *sql.Tx, id string, status model.MembershipStatus, at time.Time) error
	ListJoinRequests(ctx context.Context, teamID string, status model.MembershipStatus) ([]model.JoinRequest, error)
}

type pgTeamRepository struct {
	db *sql.DB
}

func NewPgTeamRepository(db *sql.DB) TeamRepository {
	return &pgTeamRepository{db: db}
}

const teamColumns = `t.id, t.name, t.slug, t.description, t.invite_code, t.privacy, t.leader_id, t.max_members,
	t.tags, t.created_at, t.updated_at`

func scanTeam(row interface{ Scan(...interface{}) error }, t *model.Team, extra ...interface{}) error {
	var tags []byte
	dest := []interface{}{&t.ID, &t.Name, &t.Slug, &t.Description, &t.InviteCode, &t.Privacy, &t.LeaderID,
		&t.MaxMembers, &tags, &t.CreatedAt, &t.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	var err error
	t.Tags, err = jsonToStrings(tags)
	return err
}

func teamWriteError(op string, err error) error {
	switch {
	case common.IsUniqueViolation(err, constraintInviteCode):
		return ErrInviteCodeTaken
	case common.IsUniqueViolation(err, constraintTeamSlug):
		return fmt.Errorf("a team with a similar name already exists: %w", common.ErrConflict)
	case common.IsUniqueViolation(err, ""):
		return fmt.Errorf("%s: %w", op, common.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *pgTeamRepository) Create(ctx context.Context, tx *sql.Tx, t *model.Team) error {
	tags, err := stringsToJSON(t.Tags)
	if err != nil {
		return fmt.Errorf("pgTeamRepository.Create tags: %w", err)
	}
	query := `INSERT INTO teams (id, name, slug, description, invite_code, privacy, leader_id, max_members, tags)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING created_at, updated_at`
	err = pick(r.db, tx).QueryRowContext(ctx, query,
		t.ID, t.Name, t.Slug, t.Description, t.InviteCode, t.Privacy, t.LeaderID, t.MaxMembers, tags,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return teamWriteError("pgTeamRepository.Create", err)
	}
	return nil
}

func (r *pgTeamRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Team, error) {
	// FOR UPDATE cannot be combined with the aggregate, so count separately.
	team := &model.Team{}
	err := scanTeam(pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams t WHERE t.id = $1`+forUpdate(tx), id), team)
	if err != nil {
		return nil, notFound("pgTeamRepository.FindByID", err)
	}
	if team.MemberCount, err = r.CountMembers(ctx, tx, id); err != nil {
		return nil, err
	}
	return team, nil
}

func (r *pgTeamRepository) FindByInviteCode(ctx context.Context, code string) (*model.Team, error) {
	team := &model.Team{}
	err := scanTeam(r.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+`, (SELECT COUNT(*) FROM team_members m WHERE m.team_id = t.id)
		 FROM teams t WHERE t.invite_code = UPPER($1)`, code), team, &team.MemberCount)
	if err != nil {
		return nil, notFound("pgTeamRepository.FindByInviteCode", err)
	}
	return team, nil
}

func (r *pgTeamRepository) List(ctx context.Context, includePrivate bool, limit, offset int) ([]model.Team, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teams WHERE ($1 OR privacy = 'public')`, includePrivate).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgTeamRepository.List count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+teamColumns+`, (SELECT COUNT(*) FROM team_members m WHERE m.team_id = t.id)
		 FROM teams t WHERE ($1 OR t.privacy = 'public')
		 ORDER BY t.created_at ASC, t.id ASC LIMIT $2 OFFSET $3`, includePrivate, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgTeamRepository.List: %w", err)
	}
	defer rows.Close()

	teams := []model.Team{}
	for rows.Next() {
		var t model.Team
		if err := scanTeam(rows, &t, &t.MemberCount); err != nil {
			return nil, 0, fmt.Errorf("pgTeamRepository.List scan: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, total, rows.Err()
}

func (r *pgTeamRepository) Update(ctx context.Context, tx *sql.Tx, t *model.Team) error {
	tags, err := stringsToJSON(t.Tags)
	if err != nil {
		return fmt.Errorf("pgTeamRepository.Update tags: %w", err)
	}
	err = pick(r.db, tx).QueryRowContext(ctx,
		`UPDATE teams SET name = $1, slug = $2, description = $3, privacy = $4, max_members = $5,
		        tags = $6, updated_at = NOW()
		 WHERE id = $7 RETURNING updated_at`,
		t.Name, t.Slug, t.Description, t.Privacy, t.MaxMembers, tags, t.ID).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return teamWriteError("pgTeamRepository.Update", err)
	}
	return nil
}

func (r *pgTeamRepository) UpdateInviteCode(ctx context.Context, tx *sql.Tx, teamID, code string) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE teams SET invite_code = $1, updated_at = NOW() WHERE id = $2`, code, teamID)
	if err != nil {
		return teamWriteError("pgTeamRepository.UpdateInviteCode", err)
	}
	return expectOne("pgTeamRepository.UpdateInviteCode", res, nil)
}

func (r *pgTeamRepository) UpdateLeader(ctx context.Context, tx *sql.Tx, teamID, leaderID string) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE teams SET leader_id = $1, updated_at = NOW() WHERE id = $2`, leaderID, teamID)
	return expectOne("pgTeamRepository.UpdateLeader", res, err)
}

func (r *pgTeamRepository) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	q := pick(r.db, tx)
	// Draft submissions go with the team; finalized ones block deletion upstream.
	if _, err := q.ExecContext(ctx, `DELETE FROM submissions WHERE team_id = $1 AND status = 'draft'`, id); err != nil {
		return fmt.Errorf("pgTeamRepository.Delete drafts: %w", err)
	}
	res, err := q.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	return expectOne("pgTeamRepository.Delete", res, err)
}

func (r *pgTeamRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgTeamRepository.Count: %w", err)
	}
	return n, nil
}

func (r *pgTeamRepository) AddMember(ctx context.Context, tx *sql.Tx, m *model.TeamMember) error {
	err := pick(r.db, tx).QueryRowContext(ctx,
		`INSERT INTO team_members (id, team_id, user_id, status, role)
		 VALUES ($1, $2, $3, $4, $5) RETURNING joined_at`,
		m.ID, m.TeamID, m.UserID, m.Status, m.Role).Scan(&m.JoinedAt)
	if err != nil {
		if common.IsUniqueViolation(err, constraintMemberUser) {
			return fmt.Errorf("user already belongs to a team: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTeamRepository.AddMember: %w", err)
	}
	return nil
}

const memberColumns = `m.id, m.team_id, m.user_id, m.status, m.role, m.joined_at, u.name, u.email`

func scanMember(row interface{ Scan(...interface{}) error }, m *model.TeamMember) error {
	return row.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Status, &m.Role, &m.JoinedAt, &m.UserName, &m.UserEmail)
}

func (r *pgTeamRepository) FindMemberByID(ctx context.Context, tx *sql.Tx, id string) (*model.TeamMember, error) {
	m := &model.TeamMember{}
	err := scanMember(pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM team_members m JOIN users u ON u.id = m.user_id WHERE m.id = $1`, id), m)
	if err != nil {
		return nil, notFound("pgTeamRepository.FindMemberByID", err)
	}
	return m, nil
}

func (r *pgTeamRepository) FindMembershipByUser(ctx context.Context, tx *sql.Tx, userID string) (*model.TeamMember, error) {
	m := &model.TeamMember{}
	err := scanMember(pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM team_members m JOIN users u ON u.id = m.user_id WHERE m.user_id = $1`, userID), m)
	if err != nil {
		return nil, notFound("pgTeamRepository.FindMembershipByUser", err)
	}
	return m, nil
}

func (r *pgTeamRepository) ListMembers(ctx context.Context, teamID string) ([]model.TeamMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM team_members m JOIN users u ON u.id = m.user_id
		 WHERE m.team_id = $1 ORDER BY (m.role = 'leader') DESC, m.joined_at ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("pgTeamRepository.ListMembers: %w", err)
	}
	defer rows.Close()

	members := []model.TeamMember{}
	for rows.Next() {
		var m model.TeamMember
		if err := scanMember(rows, &m); err != nil {
			return nil, fmt.Errorf("pgTeamRepository.ListMembers scan: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *pgTeamRepository) CountMembers(ctx context.Context, tx *sql.Tx, teamID string) (int, error) {
	var n int
	err := pick(r.db, tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND status = 'approved'`, teamID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgTeamRepository.CountMembers: %w", err)
	}
	return n, nil
}

func (r *pgTeamRepository) UpdateMemberRole(ctx context.Context, tx *sql.Tx, memberID, role string) error {
	res, err := pick(r.db, tx).ExecContext(ctx, `UPDATE team_members SET role = $1 WHERE id = $2`, role, memberID)
	return expectOne("pgTeamRepository.UpdateMemberRole", res, err)
}

func (r *pgTeamRepository) DeleteMember(ctx context.Context, tx *sql.Tx, memberID string) error {
	res, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM team_members WHERE id = $1`, memberID)
	return expectOne("pgTeamRepository.DeleteMember", res, err)
}

func (r *pgTeamRepository) CreateJoinRequest(ctx context.Context, tx *sql.Tx, req *model.JoinRequest) error {
	err := pick(r.db, tx).QueryRowContext(ctx,
		`INSERT INTO join_requests (id, team_id, user_id, message, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		req.ID, req.TeamID, req.UserID, req.Message, req.Status).Scan(&req.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, constraintPendingRequest) {
			return fmt.Errorf("a pending request for this team already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTeamRepository.CreateJoinRequest: %w", err)
	}
	return nil
}

const joinRequestColumns = `j.id, j.team_id, j.user_id, j.message, j.status, j.created_at, j.resolved_at, u.name`

func scanJoinRequest(row interface{ Scan(...interface{}) error }, j *model.JoinRequest) error {
	return row.Scan(&j.ID, &j.TeamID, &j.UserID, &j.Message, &j.Status, &j.CreatedAt, &j.ResolvedAt, &j.UserName)
}

func (r *pgTeamRepository) FindJoinRequest(ctx context.Context, tx *sql.Tx, id string) (*model.JoinRequest, error) {
	lock := ""
	if tx != nil {
		lock = " FOR UPDATE OF j"
	}
	j := &model.JoinRequest{}
	err := scanJoinRequest(pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+joinRequestColumns+` FROM join_requests j JOIN users u ON u.id = j.user_id
		 WHERE j.id = $1`+lock, id), j)
	if err != nil {
		return nil, notFound("pgTeamRepository.FindJoinRequest", err)
	}
	return j, nil
}

func (r *pgTeamRepository) ResolveJoinRequest(ctx context.Context, tx *sql.Tx, id string, status model.MembershipStatus, at time.Time) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE join_requests SET status = $1, resolved_at = $2 WHERE id = $3 AND status = 'pending'`,
		status, at, id)
	if err := expectOne("pgTeamRepository.ResolveJoinRequest", res, err); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("join request already resolved: %w", common.ErrConflict)
		}
		return err
	}
	return nil
}

// ListJoinRequests returns every request for the team when status is empty.
func (r *pgTeamRepository) ListJoinRequests(ctx context.Context, teamID string, status model.MembershipStatus) ([]model.JoinRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+joinRequestColumns+` FROM join_requests j JOIN users u ON u.id = j.user_id
		 WHERE j.team_id = $1 AND ($2 = '' OR j.status = $2)
		 ORDER BY j.created_at ASC`, teamID, string(status))
	if err != nil {
		return nil, fmt.Errorf("pgTeamRepository.ListJoinRequests: %w", err)
	}
	defer rows.Close()

	out := []model.JoinRequest{}
	for rows.Next() {
		var j model.JoinRequest
		if err := scanJoinRequest(rows, &j); err != nil {
			return nil, fmt.Errorf("pgTeamRepository.ListJoinRequests scan: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
