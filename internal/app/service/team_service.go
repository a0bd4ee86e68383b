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
	"github.com/gosimple/slug"
)

const defaultMaxMembers = 4

type TeamService struct {
	teamRepo        repository.TeamRepository
	submissionRepo  repository.SubmissionRepository
	tx              database.Transactor
	phase           PhaseGuard
	publisher       events.Publisher
	newInviteCode   func() (string, error)
	maxCodeAttempts int
	now             func() time.Time
}

func NewTeamService(
	teamRepo repository.TeamRepository,
	submissionRepo repository.SubmissionRepository,
	tx database.Transactor,
	phase PhaseGuard,
	publisher events.Publisher,
	maxCodeAttempts int,
) *TeamService {
	if maxCodeAttempts < 1 {
		maxCodeAttempts = 1
	}
	return &TeamService{
		teamRepo:        teamRepo,
		submissionRepo:  submissionRepo,
		tx:              tx,
		phase:           phase,
		publisher:       publisher,
		newInviteCode:   GenerateInviteCode,
		maxCodeAttempts: maxCodeAttempts,
		now:             time.Now,
	}
}

type CreateTeamRequest struct {
	Name        string            `json:"name" validate:"required,min=3,max=50"`
	Description string            `json:"description" validate:"required,min=10,max=500"`
	Privacy     model.TeamPrivacy `json:"privacy" validate:"omitempty,oneof=public private"`
	MaxMembers  int               `json:"max_members" validate:"omitempty,min=2,max=10"`
	Tags        []string          `json:"tags" validate:"max=5,dive,max=30"`
}

type UpdateTeamRequest struct {
	Name        *string            `json:"name" validate:"omitempty,min=3,max=50"`
	Description *string            `json:"description" validate:"omitempty,min=10,max=500"`
	Privacy     *model.TeamPrivacy `json:"privacy" validate:"omitempty,oneof=public private"`
	MaxMembers  *int               `json:"max_members" validate:"omitempty,min=2,max=10"`
	Tags        *[]string          `json:"tags" validate:"omitempty,max=5,dive,max=30"`
}

type JoinTeamRequest struct {
	InviteCode string  `json:"invite_code" validate:"required,len=6,alphanum"`
	Message    *string `json:"message" validate:"omitempty,max=200"`
}

type TransferLeadershipRequest struct {
	MemberID string `json:"member_id" validate:"required"`
}

type TeamPage struct {
	Teams    []model.Team `json:"teams"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// normalizeTags trims tags and drops ones that collapse to the same slug.
func normalizeTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := slug.Make(tag)
		if tag == "" || key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

// boundedSlug slugs s and cuts the result to at most max runes.
func boundedSlug(s string, max int) string {
	key := slug.Make(s)
	if runes := []rune(key); len(runes) > max {
		key = strings.TrimRight(string(runes[:max]), "-")
	}
	return key
}

// withFreshInviteCode retries fn with a new code each time the code collides.
func (s *TeamService) withFreshInviteCode(fn func(code string) error) error {
	for attempt := 1; attempt <= s.maxCodeAttempts; attempt++ {
		code, err := s.newInviteCode()
		if err != nil {
			return fmt.Errorf("failed to generate invite code: %w", err)
		}
		err = fn(code)
		if !errors.Is(err, repository.ErrInviteCodeTaken) {
			return err
		}
	}
	return fmt.Errorf("could not allocate a unique invite code after %d attempts: %w", s.maxCodeAttempts, common.ErrConflict)
}

func (s *TeamService) CreateTeam(ctx context.Context, leaderID string, req CreateTeamRequest) (*model.Team, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Tags = normalizeTags(req.Tags)
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
		return nil, err
	}
	if req.Privacy == "" {
		req.Privacy = model.PrivacyPublic
	}
	if req.MaxMembers == 0 {
		req.MaxMembers = defaultMaxMembers
	}

	team := &model.Team{
		Name:        req.Name,
		Slug:        boundedSlug(req.Name, model.MaxTeamSlugLen),
		Description: req.Description,
		Privacy:     req.Privacy,
		LeaderID:    leaderID,
		MaxMembers:  req.MaxMembers,
		Tags:        req.Tags,
	}
	if team.Slug == "" {
		return nil, fmt.Errorf("name must contain letters or digits: %w", common.ErrValidation)
	}

	var leader *model.TeamMember
	err := s.withFreshInviteCode(func(code string) error {
		team.ID = uuid.NewString()
		team.InviteCode = code
		return s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
			if _, err := s.teamRepo.FindMembershipByUser(ctx, tx, leaderID); err == nil {
				return fmt.Errorf("you already belong to a team: %w", common.ErrConflict)
			} else if !errors.Is(err, common.ErrNotFound) {
				return err
			}
			if err := s.teamRepo.Create(ctx, tx, team); err != nil {
				return err
			}
			leader = &model.TeamMember{
				ID:     uuid.NewString(),
				TeamID: team.ID,
				UserID: leaderID,
				Status: model.MembershipApproved,
				Role:   model.MemberRoleLeader,
			}
			return s.teamRepo.AddMember(ctx, tx, leader)
		})
	})
	if err != nil {
		return nil, common.Errorf("failed to create team: %w", err)
	}

	team.MemberCount = 1
	team.Members = []model.TeamMember{*leader}
	return team, nil
}

func (s *TeamService) RequestJoin(ctx context.Context, userID string, req JoinTeamRequest) (*model.JoinRequest, error) {
	req.InviteCode = NormalizeInviteCode(req.InviteCode)
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
		return nil, err
	}

	team, err := s.teamRepo.FindByInviteCode(ctx, req.InviteCode)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("no team with that invite code: %w", common.ErrNotFound)
		}
		return nil, common.Errorf("failed to look up team: %w", err)
	}

	if _, err := s.teamRepo.FindMembershipByUser(ctx, nil, userID); err == nil {
		return nil, fmt.Errorf("you already belong to a team: %w", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to check membership: %w", err)
	}

	joinReq := &model.JoinRequest{
		ID:      uuid.NewString(),
		TeamID:  team.ID,
		UserID:  userID,
		Message: req.Message,
		Status:  model.MembershipPending,
	}
	if err := s.teamRepo.CreateJoinRequest(ctx, nil, joinReq); err != nil {
		return nil, common.Errorf("failed to create join request: %w", err)
	}
	return joinReq, nil
}

// loadForLeader locks the team and checks that actor leads it.
func (s *TeamService) loadForLeader(ctx context.Context, tx *sql.Tx, actorID, teamID string) (*model.Team, error) {
	team, err := s.teamRepo.FindByID(ctx, tx, teamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != actorID {
		return nil, fmt.Errorf("only the team leader can do this: %w", common.ErrForbidden)
	}
	return team, nil
}

// ApproveRequest checks capacity under the team row lock, so concurrent
// approvals for one team are serialised and never exceed max_members.
func (s *TeamService) ApproveRequest(ctx context.Context, actorID, requestID string) (*model.TeamMember, error) {
	if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
		return nil, err
	}

	var member *model.TeamMember
	err := s.tx.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		joinReq, err := s.teamRepo.FindJoinRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		team, err := s.loadForLeader(ctx, tx, actorID, joinReq.TeamID)
		if err != nil {
			return err
		}
		if joinReq.Status != model.MembershipPending {
			return fmt.Errorf("join request already %s: %w", joinReq.Status, common.ErrConflict)
		}
		if team.IsFull() {
			return fmt.Errorf("team has %d/%d members: %w", team.MemberCount, team.MaxMembers, common.ErrCapacityExceeded)
		}
		if _, err := s.teamRepo.FindMembershipByUser(ctx, tx, joinReq.UserID); err == nil {
			return fmt.Errorf("requester already joined a team: %w", common.ErrConflict)
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		member = &model.TeamMember{
			ID:       uuid.NewString(),
			TeamID:   team.ID,
			UserID:   joinReq.UserID,
			Status:   model.MembershipApproved,
			Role:     model.MemberRoleMember,
			UserName: joinReq.UserName,
		}
		if err := s.teamRepo.AddMember(ctx, tx, member); err != nil {
			return err
		}
		return s.teamRepo.ResolveJoinRequest(ctx, tx, joinReq.ID, model.MembershipApproved, s.now())
	})
	if err != nil {
		return nil, common.Errorf("failed to approve join request: %w", err)
	}

	events.PublishAsync(s.publisher, events.New(events.TypeTeamMemberApproved, member.TeamID, map[string]interface{}{
		"team_id": member.TeamID,
		"user_id": member.UserID,
	}))
	return member, nil
}

func (s *TeamService) RejectRequest(ctx context.Context, actorID, requestID string) (*model.JoinRequest, error) {
	if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
		return nil, err
	}

	var joinReq *model.JoinRequest
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if joinReq, err = s.teamRepo.FindJoinRequest(ctx, tx, requestID); err != nil {
			return err
		}
		if _, err := s.loadForLeader(ctx, tx, actorID, joinReq.TeamID); err != nil {
			return err
		}
		if joinReq.Status != model.MembershipPending {
			return fmt.Errorf("join request already %s: %w", joinReq.Status, common.ErrConflict)
		}
		now := s.now()
		if err := s.teamRepo.ResolveJoinRequest(ctx, tx, joinReq.ID, model.MembershipRejected, now); err != nil {
			return err
		}
		joinReq.Status = model.MembershipRejected
		joinReq.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, common.Errorf("failed to reject join request: %w", err)
	}
	return joinReq, nil
}

func (s *TeamService) RemoveMember(ctx context.Context, actorID, memberID string) error {
	if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
		return err
	}
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		member, err := s.teamRepo.FindMemberByID(ctx, tx, memberID)
		if err != nil {
			return err
		}
		team, err := s.loadForLeader(ctx, tx, actorID, member.TeamID)
		if err != nil {
			return err
		}
		if member.Role == model.MemberRoleLeader || member.UserID == team.LeaderID {
			return fmt.Errorf("the leader cannot be removed; transfer leadership first: %w", common.ErrInvalidState)
		}
		return s.teamRepo.DeleteMember(ctx, tx, member.ID)
	})
	if err != nil {
		return common.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// LeaveTeam is refused for the leader, who must transfer leadership or delete the team.
func (s *TeamService) LeaveTeam(ctx context.Context, userID string) error {
	if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
		return err
	}
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		member, err := s.teamRepo.FindMembershipByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if member.Role == model.MemberRoleLeader {
			return fmt.Errorf("the leader must transfer leadership or delete the team before leaving: %w", common.ErrInvalidState)
		}
		return s.teamRepo.DeleteMember(ctx, tx, member.ID)
	})
	if err != nil {
		return common.Errorf("failed to leave team: %w", err)
	}
	return nil
}

func (s *TeamService) TransferLeadership(ctx context.Context, actorID, teamID string, req TransferLeadershipRequest) (*model.Team, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
		return nil, err
	}

	var team *model.Team
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if team, err = s.loadForLeader(ctx, tx, actorID, teamID); err != nil {
			return err
		}
		target, err := s.teamRepo.FindMemberByID(ctx, tx, req.MemberID)
		if err != nil {
			return err
		}
		if target.TeamID != team.ID {
			return fmt.Errorf("member is not part of this team: %w", common.ErrNotFound)
		}
		if target.UserID == actorID {
			return fmt.Errorf("you already lead this team: %w", common.ErrInvalidState)
		}
		current, err := s.teamRepo.FindMembershipByUser(ctx, tx, actorID)
		if err != nil {
			return err
		}
		if err := s.teamRepo.UpdateMemberRole(ctx, tx, current.ID, model.MemberRoleMember); err != nil {
			return err
		}
		if err := s.teamRepo.UpdateMemberRole(ctx, tx, target.ID, model.MemberRoleLeader); err != nil {
			return err
		}
		if err := s.teamRepo.UpdateLeader(ctx, tx, team.ID, target.UserID); err != nil {
			return err
		}
		team.LeaderID = target.UserID
		return nil
	})
	if err != nil {
		return nil, common.Errorf("failed to transfer leadership: %w", err)
	}
	return team, nil
}

// DeleteTeam dissolves a team that has no finalized submissions.
func (s *TeamService) DeleteTeam(ctx context.Context, actor Actor, teamID string) error {
	if !actor.IsAdmin() {
		if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
			return err
		}
	}
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		team, err := s.teamRepo.FindByID(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if team.LeaderID != actor.UserID && !actor.IsAdmin() {
			return fmt.Errorf("only the team leader can delete the team: %w", common.ErrForbidden)
		}
		n, err := s.submissionRepo.CountFinalizedByTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("team has %d finalized submissions: %w", n, common.ErrInvalidState)
		}
		return s.teamRepo.Delete(ctx, tx, teamID)
	})
	if err != nil {
		return common.Errorf("failed to delete team: %w", err)
	}
	return nil
}

func (s *TeamService) UpdateTeam(ctx context.Context, actorID, teamID string, req UpdateTeamRequest) (*model.Team, error) {
	var newSlug string
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
		newSlug = boundedSlug(name, model.MaxTeamSlugLen)
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		req.Description = &description
	}
	if req.Tags != nil {
		tags := normalizeTags(*req.Tags)
		req.Tags = &tags
	}
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if req.Name != nil && newSlug == "" {
		return nil, fmt.Errorf("name must contain letters or digits: %w", common.ErrValidation)
	}
	if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
		return nil, err
	}

	var team *model.Team
	err := s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if team, err = s.loadForLeader(ctx, tx, actorID, teamID); err != nil {
			return err
		}
		if req.Name != nil {
			team.Name = *req.Name
			team.Slug = newSlug
		}
		if req.Description != nil {
			team.Description = *req.Description
		}
		if req.Privacy != nil {
			team.Privacy = *req.Privacy
		}
		if req.MaxMembers != nil {
			if *req.MaxMembers < team.MemberCount {
				return fmt.Errorf("max_members cannot be below the current %d members: %w", team.MemberCount, common.ErrValidation)
			}
			team.MaxMembers = *req.MaxMembers
		}
		if req.Tags != nil {
			team.Tags = *req.Tags
		}
		return s.teamRepo.Update(ctx, tx, team)
	})
	if err != nil {
		return nil, common.Errorf("failed to update team: %w", err)
	}
	return team, nil
}

func (s *TeamService) RotateInviteCode(ctx context.Context, actorID, teamID string) (*model.Team, error) {
	if err := s.phase.Require(ctx, model.ActionTeamManage); err != nil {
		return nil, err
	}

	var team *model.Team
	err := s.withFreshInviteCode(func(code string) error {
		return s.tx.RunInTx(ctx, nil, func(tx *sql.Tx) error {
			var err error
			if team, err = s.loadForLeader(ctx, tx, actorID, teamID); err != nil {
				return err
			}
			if err := s.teamRepo.UpdateInviteCode(ctx, tx, teamID, code); err != nil {
				return err
			}
			team.InviteCode = code
			return nil
		})
	})
	if err != nil {
		return nil, common.Errorf("failed to rotate invite code: %w", err)
	}
	return team, nil
}

func (s *TeamService) ListTeams(ctx context.Context, actor Actor, page, pageSize int) (*TeamPage, error) {
	limit, offset := Page(page, pageSize)
	teams, total, err := s.teamRepo.List(ctx, actor.IsAdmin(), limit, offset)
	if err != nil {
		return nil, common.Errorf("failed to list teams: %w", err)
	}
	if !actor.IsAdmin() {
		for i := range teams {
			teams[i].InviteCode = ""
		}
	}
	return &TeamPage{Teams: teams, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

// GetTeam hides private teams from outsiders and the invite code from non-members.
func (s *TeamService) GetTeam(ctx context.Context, actor Actor, teamID string) (*model.Team, error) {
	team, err := s.teamRepo.FindByID(ctx, nil, teamID)
	if err != nil {
		return nil, common.Errorf("failed to load team: %w", err)
	}
	members, err := s.teamRepo.ListMembers(ctx, teamID)
	if err != nil {
		return nil, common.Errorf("failed to load members: %w", err)
	}

	isMember := false
	for _, m := range members {
		if m.UserID == actor.UserID {
			isMember = true
			break
		}
	}
	if !isMember && !actor.IsAdmin() {
		if team.Privacy == model.PrivacyPrivate {
			return nil, common.ErrNotFound
		}
		team.InviteCode = ""
	}
	team.Members = members
	return team, nil
}

func (s *TeamService) MyTeam(ctx context.Context, userID string) (*model.Team, error) {
	membership, err := s.teamRepo.FindMembershipByUser(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("you are not in a team: %w", common.ErrNotFound)
		}
		return nil, common.Errorf("failed to load membership: %w", err)
	}
	return s.GetTeam(ctx, Actor{UserID: userID}, membership.TeamID)
}

func (s *TeamService) ListJoinRequests(ctx context.Context, actor Actor, teamID string, status model.MembershipStatus) ([]model.JoinRequest, error) {
	switch status {
	case "", model.MembershipPending, model.MembershipApproved, model.MembershipRejected:
	default:
		return nil, fmt.Errorf("unknown status %q: %w", status, common.ErrValidation)
	}
	team, err := s.teamRepo.FindByID(ctx, nil, teamID)
	if err != nil {
		return nil, common.Errorf("failed to load team: %w", err)
	}
	if team.LeaderID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("only the team leader can view join requests: %w", common.ErrForbidden)
	}
	reqs, err := s.teamRepo.ListJoinRequests(ctx, teamID, status)
	if err != nil {
		return nil, common.Errorf("failed to list join requests: %w", err)
	}
	return reqs, nil
}

// requireMember returns the caller's membership in teamID, or ErrForbidden.
func requireMember(ctx context.Context, repo repository.TeamRepository, tx *sql.Tx, userID, teamID string) error {
	m, err := repo.FindMembershipByUser(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("you are not a member of this team: %w", common.ErrForbidden)
		}
		return err
	}
	if m.TeamID != teamID || m.Status != model.MembershipApproved {
		return fmt.Errorf("you are not a member of this team: %w", common.ErrForbidden)
	}
	return nil
}
