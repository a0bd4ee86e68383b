package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"innovate_api/internal/common"
	"innovate_api/internal/domain/model"
	"innovate_api/internal/domain/repository"
	"innovate_api/internal/platform/cache"
	"innovate_api/internal/platform/events"
)

// memStore backs every fake repository so workflows can span services.
type memStore struct {
	mu          sync.Mutex
	clock       time.Time
	users       map[string]*model.User
	teams       map[string]*model.Team
	members     map[string]*model.TeamMember
	joinReqs    map[string]*model.JoinRequest
	submissions map[string]*model.Submission
	criteria    []model.Criterion
	assignments map[string]*model.JudgeAssignment
	scores      map[string]*model.Score
	payments    map[string]*model.Payment
	tickets     map[string]*model.Ticket
	event       model.Event
}

func newMemStore() *memStore {
	return &memStore{
		clock:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		users:       map[string]*model.User{},
		teams:       map[string]*model.Team{},
		members:     map[string]*model.TeamMember{},
		joinReqs:    map[string]*model.JoinRequest{},
		submissions: map[string]*model.Submission{},
		criteria: []model.Criterion{
			{ID: "innovation", Name: "Innovation", MaxScore: 25, Weight: 1, SortOrder: 1},
			{ID: "technical", Name: "Technical", MaxScore: 25, Weight: 1, SortOrder: 2},
			{ID: "impact", Name: "Impact", MaxScore: 25, Weight: 1, SortOrder: 3},
			{ID: "presentation", Name: "Presentation", MaxScore: 25, Weight: 1, SortOrder: 4},
		},
		assignments: map[string]*model.JudgeAssignment{},
		scores:      map[string]*model.Score{},
		payments:    map[string]*model.Payment{},
		tickets:     map[string]*model.Ticket{},
		event: model.Event{
			Name:              "Innovate",
			Phase:             model.PhaseLive,
			DefaultPriceCents: 49900,
			Pricing:           model.PricingConfig{Tiers: []model.PriceTier{}},
		},
	}
}

// tick hands out strictly increasing timestamps so creation order is stable.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) addUser(id, role string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{ID: id, Name: "User " + id, Email: id + "@example.com", Role: role, CreatedAt: s.tick()}
	s.users[id] = u
	return u
}

func (s *memStore) memberCount(teamID string) int {
	n := 0
	for _, m := range s.members {
		if m.TeamID == teamID && m.Status == model.MembershipApproved {
			n++
		}
	}
	return n
}

// fakeTx serialises transactions, standing in for the row locks Postgres takes.
type fakeTx struct {
	mu sync.Mutex
}

func (t *fakeTx) RunInTx(_ context.Context, _ *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(nil)
}

type fakePhase struct {
	store *memStore
}

func (p *fakePhase) Require(_ context.Context, action model.Action) error {
	p.store.mu.Lock()
	phase := p.store.event.Phase
	p.store.mu.Unlock()
	if !phase.Permits(action) {
		return fmt.Errorf("%s closed in %s: %w", action, phase, common.ErrPhaseClosed)
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

// ---- users ----

type fakeUserRepo struct{ s *memStore }

func (r fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("user with given email already exists: %w", common.ErrConflict)
		}
	}
	u.CreatedAt = r.s.tick()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUserRepo) List(_ context.Context, role string, limit, offset int) ([]model.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.User{}
	for _, u := range r.s.users {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (r fakeUserRepo) UpdateRole(_ context.Context, id, role string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.Role = role
	return nil
}

func (r fakeUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[user.ID]
	if !ok {
		return common.ErrNotFound
	}
	u.Name, u.GithubURL, u.TshirtSize = user.Name, user.GithubURL, user.TshirtSize
	return nil
}

func (r fakeUserRepo) CountByRole(_ context.Context) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int{}
	for _, u := range r.s.users {
		out[u.Role]++
	}
	return out, nil
}

// ---- event ----

type fakeEventRepo struct{ s *memStore }

func (r fakeEventRepo) Get(_ context.Context, _ *sql.Tx) (*model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := r.s.event
	return &cp, nil
}

func (r fakeEventRepo) UpdatePhase(_ context.Context, _ *sql.Tx, phase model.Phase) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.event.Phase = phase
	return nil
}

func (r fakeEventRepo) UpdateSchedule(_ context.Context, e *model.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.event.Name = e.Name
	r.s.event.StartTime, r.s.event.EndTime = e.StartTime, e.EndTime
	r.s.event.RegistrationDeadline, r.s.event.SubmissionDeadline = e.RegistrationDeadline, e.SubmissionDeadline
	return nil
}

func (r fakeEventRepo) UpdatePricing(_ context.Context, defaultPriceCents int, pricing model.PricingConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.event.DefaultPriceCents = defaultPriceCents
	r.s.event.Pricing = pricing
	return nil
}

// ---- teams ----

type fakeTeamRepo struct{ s *memStore }

var _ repository.TeamRepository = fakeTeamRepo{}

func (r fakeTeamRepo) Create(_ context.Context, _ *sql.Tx, t *model.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.teams {
		if existing.InviteCode == t.InviteCode {
			return repository.ErrInviteCodeTaken
		}
		if existing.Slug == t.Slug {
			return fmt.Errorf("a team with a similar name already exists: %w", common.ErrConflict)
		}
	}
	t.CreatedAt = r.s.tick()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	cp.Tags = append([]string(nil), t.Tags...)
	r.s.teams[t.ID] = &cp
	return nil
}

func (r fakeTeamRepo) snapshot(t *model.Team) *model.Team {
	cp := *t
	cp.MemberCount = r.s.memberCount(t.ID)
	cp.Members = nil
	return &cp
}

func (r fakeTeamRepo) FindByID(_ context.Context, _ *sql.Tx, id string) (*model.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.snapshot(t), nil
}

func (r fakeTeamRepo) FindByInviteCode(_ context.Context, code string) (*model.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.teams {
		if t.InviteCode == strings.ToUpper(code) {
			return r.snapshot(t), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r fakeTeamRepo) List(_ context.Context, includePrivate bool, limit, offset int) ([]model.Team, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Team{}
	for _, t := range r.s.teams {
		if includePrivate || t.Privacy == model.PrivacyPublic {
			out = append(out, *r.snapshot(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (r fakeTeamRepo) Update(_ context.Context, _ *sql.Tx, t *model.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.teams[t.ID]
	if !ok {
		return common.ErrNotFound
	}
	existing.Name, existing.Slug, existing.Description = t.Name, t.Slug, t.Description
	existing.Privacy, existing.MaxMembers, existing.Tags = t.Privacy, t.MaxMembers, t.Tags
	return nil
}

func (r fakeTeamRepo) UpdateInviteCode(_ context.Context, _ *sql.Tx, teamID, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.teams {
		if t.InviteCode == code && t.ID != teamID {
			return repository.ErrInviteCodeTaken
		}
	}
	t, ok := r.s.teams[teamID]
	if !ok {
		return common.ErrNotFound
	}
	t.InviteCode = code
	return nil
}

func (r fakeTeamRepo) UpdateLeader(_ context.Context, _ *sql.Tx, teamID, leaderID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[teamID]
	if !ok {
		return common.ErrNotFound
	}
	t.LeaderID = leaderID
	return nil
}

func (r fakeTeamRepo) Delete(_ context.Context, _ *sql.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teams[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.teams, id)
	for mid, m := range r.s.members {
		if m.TeamID == id {
			delete(r.s.members, mid)
		}
	}
	for jid, j := range r.s.joinReqs {
		if j.TeamID == id {
			delete(r.s.joinReqs, jid)
		}
	}
	for sid, sub := range r.s.submissions {
		if sub.TeamID == id && sub.Status == model.SubmissionDraft {
			delete(r.s.submissions, sid)
		}
	}
	return nil
}

func (r fakeTeamRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.teams), nil
}

func (r fakeTeamRepo) AddMember(_ context.Context, _ *sql.Tx, m *model.TeamMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.members {
		if existing.UserID == m.UserID {
			return fmt.Errorf("user already belongs to a team: %w", common.ErrConflict)
		}
	}
	m.JoinedAt = r.s.tick()
	cp := *m
	r.s.members[m.ID] = &cp
	return nil
}

func (r fakeTeamRepo) FindMemberByID(_ context.Context, _ *sql.Tx, id string) (*model.TeamMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r fakeTeamRepo) FindMembershipByUser(_ context.Context, _ *sql.Tx, userID string) (*model.TeamMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members {
		if m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r fakeTeamRepo) ListMembers(_ context.Context, teamID string) ([]model.TeamMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.TeamMember{}
	for _, m := range r.s.members {
		if m.TeamID == teamID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r fakeTeamRepo) CountMembers(_ context.Context, _ *sql.Tx, teamID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.memberCount(teamID), nil
}

func (r fakeTeamRepo) UpdateMemberRole(_ context.Context, _ *sql.Tx, memberID, role string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[memberID]
	if !ok {
		return common.ErrNotFound
	}
	m.Role = role
	return nil
}

func (r fakeTeamRepo) DeleteMember(_ context.Context, _ *sql.Tx, memberID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.members[memberID]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.members, memberID)
	return nil
}

func (r fakeTeamRepo) CreateJoinRequest(_ context.Context, _ *sql.Tx, req *model.JoinRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.joinReqs {
		if existing.TeamID == req.TeamID && existing.UserID == req.UserID && existing.Status == model.MembershipPending {
			return fmt.Errorf("a pending request for this team already exists: %w", common.ErrConflict)
		}
	}
	req.CreatedAt = r.s.tick()
	cp := *req
	r.s.joinReqs[req.ID] = &cp
	return nil
}

func (r fakeTeamRepo) FindJoinRequest(_ context.Context, _ *sql.Tx, id string) (*model.JoinRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.joinReqs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r fakeTeamRepo) ResolveJoinRequest(_ context.Context, _ *sql.Tx, id string, status model.MembershipStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.joinReqs[id]
	if !ok {
		return common.ErrNotFound
	}
	if j.Status != model.MembershipPending {
		return fmt.Errorf("join request already resolved: %w", common.ErrConflict)
	}
	j.Status = status
	j.ResolvedAt = &at
	return nil
}

func (r fakeTeamRepo) ListJoinRequests(_ context.Context, teamID string, status model.MembershipStatus) ([]model.JoinRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.JoinRequest{}
	for _, j := range r.s.joinReqs {
		if j.TeamID == teamID && (status == "" || j.Status == status) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

// ---- submissions ----

type fakeSubmissionRepo struct{ s *memStore }

var _ repository.SubmissionRepository = fakeSubmissionRepo{}

func (r fakeSubmissionRepo) Create(_ context.Context, _ *sql.Tx, sub *model.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.submissions {
		if existing.TeamID == sub.TeamID && existing.Status == model.SubmissionDraft {
			return fmt.Errorf("team already has a draft submission: %w", common.ErrConflict)
		}
	}
	sub.CreatedAt = r.s.tick()
	sub.UpdatedAt = sub.CreatedAt
	cp := *sub
	r.s.submissions[sub.ID] = &cp
	return nil
}

func (r fakeSubmissionRepo) FindByID(_ context.Context, _ *sql.Tx, id string) (*model.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r fakeSubmissionRepo) UpdateContent(_ context.Context, _ *sql.Tx, sub *model.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.submissions[sub.ID]
	if !ok || existing.Status != model.SubmissionDraft {
		return common.ErrNotFound
	}
	status, created, createdAt := existing.Status, existing.CreatedBy, existing.CreatedAt
	*existing = *sub
	existing.Status, existing.CreatedBy, existing.CreatedAt = status, created, createdAt
	return nil
}

func (r fakeSubmissionRepo) UpdateStatus(_ context.Context, _ *sql.Tx, id string, status model.SubmissionStatus, submittedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[id]
	if !ok {
		return common.ErrNotFound
	}
	sub.Status = status
	if submittedAt != nil {
		sub.SubmittedAt = submittedAt
	}
	return nil
}

func (r fakeSubmissionRepo) filter(keep func(*model.Submission) bool) []model.Submission {
	out := []model.Submission{}
	for _, sub := range r.s.submissions {
		if keep(sub) {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r fakeSubmissionRepo) ListByTeam(_ context.Context, teamID string) ([]model.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(sub *model.Submission) bool { return sub.TeamID == teamID }), nil
}

func (r fakeSubmissionRepo) ListByStatus(_ context.Context, statuses ...model.SubmissionStatus) ([]model.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(sub *model.Submission) bool {
		for _, st := range statuses {
			if sub.Status == st {
				return true
			}
		}
		return false
	}), nil
}

func (r fakeSubmissionRepo) CountFinalizedByTeam(_ context.Context, _ *sql.Tx, teamID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.filter(func(sub *model.Submission) bool {
		return sub.TeamID == teamID && sub.Status != model.SubmissionDraft
	})), nil
}

func (r fakeSubmissionRepo) CountByStatus(_ context.Context) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int{}
	for _, sub := range r.s.submissions {
		out[string(sub.Status)]++
	}
	return out, nil
}

// ---- scoring ----

type fakeScoringRepo struct{ s *memStore }

var _ repository.ScoringRepository = fakeScoringRepo{}

func (r fakeScoringRepo) ListCriteria(_ context.Context) ([]model.Criterion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]model.Criterion(nil), r.s.criteria...), nil
}

func (r fakeScoringRepo) ReplaceCriteria(_ context.Context, _ *sql.Tx, criteria []model.Criterion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.criteria = append([]model.Criterion(nil), criteria...)
	return nil
}

func (r fakeScoringRepo) CreateAssignment(_ context.Context, _ *sql.Tx, a *model.JudgeAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.assignments {
		if existing.JudgeID == a.JudgeID && existing.SubmissionID == a.SubmissionID {
			return fmt.Errorf("judge already assigned to this submission: %w", common.ErrConflict)
		}
	}
	a.CreatedAt = r.s.tick()
	cp := *a
	r.s.assignments[a.ID] = &cp
	return nil
}

func (r fakeScoringRepo) FindAssignmentByID(_ context.Context, _ *sql.Tx, id string) (*model.JudgeAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r fakeScoringRepo) FindAssignment(_ context.Context, _ *sql.Tx, judgeID, submissionID string) (*model.JudgeAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.JudgeID == judgeID && a.SubmissionID == submissionID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r fakeScoringRepo) ListAssignmentsByJudge(_ context.Context, judgeID string, status model.AssignmentStatus) ([]model.JudgeAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.JudgeAssignment{}
	for _, a := range r.s.assignments {
		if a.JudgeID == judgeID && (status == "" || a.Status == status) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r fakeScoringRepo) CompleteAssignment(_ context.Context, _ *sql.Tx, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok || a.Status != model.AssignmentPending {
		return common.ErrNotFound
	}
	a.Status = model.AssignmentCompleted
	a.CompletedAt = &at
	return nil
}

func (r fakeScoringRepo) DeleteAssignment(_ context.Context, _ *sql.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.assignments[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.assignments, id)
	return nil
}

func (r fakeScoringRepo) CountPendingAssignments(_ context.Context, _ *sql.Tx, submissionID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, a := range r.s.assignments {
		if a.SubmissionID == submissionID && a.Status == model.AssignmentPending {
			n++
		}
	}
	return n, nil
}

func (r fakeScoringRepo) CountScoresForSubmission(_ context.Context, _ *sql.Tx, submissionID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, sc := range r.s.scores {
		if sc.SubmissionID == submissionID {
			n++
		}
	}
	return n, nil
}

func (r fakeScoringRepo) CreateScore(_ context.Context, _ *sql.Tx, score *model.Score) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.scores {
		if existing.SubmissionID == score.SubmissionID && existing.JudgeID == score.JudgeID {
			return common.ErrAlreadyScored
		}
	}
	score.CreatedAt = r.s.tick()
	cp := *score
	r.s.scores[score.ID] = &cp
	return nil
}

func (r fakeScoringRepo) FindScore(_ context.Context, _ *sql.Tx, submissionID, judgeID string) (*model.Score, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sc := range r.s.scores {
		if sc.SubmissionID == submissionID && sc.JudgeID == judgeID {
			cp := *sc
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r fakeScoringRepo) ListScoresBySubmission(_ context.Context, submissionID string) ([]model.Score, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Score{}
	for _, sc := range r.s.scores {
		if sc.SubmissionID == submissionID {
			out = append(out, *sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r fakeScoringRepo) CountScores(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.scores), nil
}

func (r fakeScoringRepo) TeamAggregates(_ context.Context) ([]model.TeamScoreAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	type acc struct {
		sum    float64
		count  int
		judges map[string]bool
		latest *model.Submission
	}
	byTeam := map[string]*acc{}
	for _, sc := range r.s.scores {
		sub := r.s.submissions[sc.SubmissionID]
		if sub == nil || sub.Status == model.SubmissionDraft {
			continue
		}
		a := byTeam[sub.TeamID]
		if a == nil {
			a = &acc{judges: map[string]bool{}}
			byTeam[sub.TeamID] = a
		}
		a.sum += sc.TotalScore
		a.count++
		a.judges[sc.JudgeID] = true
		if a.latest == nil || (sub.SubmittedAt != nil && a.latest.SubmittedAt != nil && sub.SubmittedAt.After(*a.latest.SubmittedAt)) {
			a.latest = sub
		}
	}
	out := []model.TeamScoreAggregate{}
	for teamID, a := range byTeam {
		t := r.s.teams[teamID]
		out = append(out, model.TeamScoreAggregate{
			TeamID:          teamID,
			TeamName:        t.Name,
			TeamCreatedAt:   t.CreatedAt,
			AvgScore:        a.sum / float64(a.count),
			JudgeCount:      len(a.judges),
			ScoreCount:      a.count,
			SubmissionID:    a.latest.ID,
			SubmissionTitle: a.latest.Title,
		})
	}
	return out, nil
}

// ---- tickets ----

type fakeTicketRepo struct{ s *memStore }

var _ repository.TicketRepository = fakeTicketRepo{}

func (r fakeTicketRepo) CreatePayment(_ context.Context, _ *sql.Tx, p *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.CreatedAt = r.s.tick()
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

func (r fakeTicketRepo) FindPayment(_ context.Context, _ *sql.Tx, id string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r fakeTicketRepo) UpdatePaymentStatus(_ context.Context, _ *sql.Tx, p *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.payments[p.ID]
	if !ok {
		return common.ErrNotFound
	}
	existing.Status, existing.GatewayPaymentID, existing.ConfirmedAt = p.Status, p.GatewayPaymentID, p.ConfirmedAt
	return nil
}

func (r fakeTicketRepo) CreateTicket(_ context.Context, _ *sql.Tx, t *model.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tickets {
		if existing.UserID == t.UserID {
			return fmt.Errorf("user already holds a ticket: %w", common.ErrConflict)
		}
	}
	t.IssuedAt = r.s.tick()
	cp := *t
	r.s.tickets[t.ID] = &cp
	return nil
}

func (r fakeTicketRepo) FindTicketByUser(_ context.Context, userID string) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.UserID == userID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r fakeTicketRepo) FindTicketByQRCode(_ context.Context, _ *sql.Tx, qrCode string) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.QRCode == qrCode {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r fakeTicketRepo) MarkCheckedIn(_ context.Context, _ *sql.Tx, ticketID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[ticketID]
	if !ok {
		return common.ErrNotFound
	}
	t.CheckedIn = true
	t.CheckedInAt = &at
	return nil
}

func (r fakeTicketRepo) CountTickets(_ context.Context) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	checkedIn := 0
	for _, t := range r.s.tickets {
		if t.CheckedIn {
			checkedIn++
		}
	}
	return len(r.s.tickets), checkedIn, nil
}

// ---- leaderboard cache + queue ----

type fakeLeaderboardCache struct {
	mu         sync.Mutex
	version    int64
	snap       *model.LeaderboardSnapshot
	versionErr error
	stores     int
}

var _ cache.LeaderboardCache = (*fakeLeaderboardCache)(nil)

func (c *fakeLeaderboardCache) Version(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, c.versionErr
}

func (c *fakeLeaderboardCache) BumpVersion(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versionErr != nil {
		return 0, c.versionErr
	}
	c.version++
	return c.version, nil
}

func (c *fakeLeaderboardCache) Snapshot(_ context.Context) (*model.LeaderboardSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return nil, cache.ErrCacheMiss
	}
	cp := *c.snap
	return &cp, nil
}

func (c *fakeLeaderboardCache) StoreIfCurrent(_ context.Context, snap *model.LeaderboardSnapshot) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap.Version != c.version {
		return false, nil
	}
	cp := *snap
	c.snap = &cp
	c.stores++
	return true, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []string
}

func (q *fakeQueue) Push(_ context.Context, payload string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, payload)
	return nil
}

// ---- wiring ----

type testEnv struct {
	store       *memStore
	publisher   *recordingPublisher
	lbCache     *fakeLeaderboardCache
	queue       *fakeQueue
	phase       *PhaseService
	auth        *AuthService
	users       *UserService
	teams       *TeamService
	submissions *SubmissionService
	scoring     *ScoringService
	leaderboard *LeaderboardService
	tickets     *TicketService
	analytics   *AnalyticsService
	denylist    *fakeDenylist
}

func newTestEnv() *testEnv {
	store := newMemStore()
	tx := &fakeTx{}
	guard := &fakePhase{store: store}
	pub := &recordingPublisher{}
	lbCache := &fakeLeaderboardCache{}
	q := &fakeQueue{}
	denylist := &fakeDenylist{revoked: map[string]time.Duration{}, userCutoffs: map[string]time.Time{}}

	userRepo := fakeUserRepo{store}
	teamRepo := fakeTeamRepo{store}
	subRepo := fakeSubmissionRepo{store}
	scoringRepo := fakeScoringRepo{store}
	ticketRepo := fakeTicketRepo{store}
	eventRepo := fakeEventRepo{store}

	submissions := NewSubmissionService(subRepo, teamRepo, tx, guard, pub)
	leaderboard := NewLeaderboardService(scoringRepo, lbCache, q)
	return &testEnv{
		store:       store,
		publisher:   pub,
		lbCache:     lbCache,
		queue:       q,
		phase:       NewPhaseService(eventRepo, tx, pub),
		auth:        NewAuthService(userRepo, guard, nil),
		users:       NewUserService(userRepo, denylist),
		teams:       NewTeamService(teamRepo, subRepo, tx, guard, pub, 10),
		submissions: submissions,
		scoring:     NewScoringService(scoringRepo, subRepo, userRepo, submissions, tx, guard, leaderboard, pub),
		leaderboard: leaderboard,
		tickets:     NewTicketService(ticketRepo, eventRepo, MockGateway{}, tx, guard, pub),
		analytics:   NewAnalyticsService(userRepo, teamRepo, subRepo, scoringRepo, ticketRepo),
		denylist:    denylist,
	}
}

func (e *testEnv) setPhase(p model.Phase) {
	e.store.mu.Lock()
	e.store.event.Phase = p
	e.store.mu.Unlock()
}
