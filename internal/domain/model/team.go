package model

import "time"

type TeamPrivacy string

const (
	PrivacyPublic  TeamPrivacy = "public"
	PrivacyPrivate TeamPrivacy = "private"
)

type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipApproved MembershipStatus = "approved"
	MembershipRejected MembershipStatus = "rejected"
)

const (
	MemberRoleLeader = "leader"
	MemberRoleMember = "member"
)

const (
	InviteCodeLength = 6
	MinTeamMembers   = 2
	MaxTeamMembers   = 10
	MaxTeamTags      = 5
	MaxTeamSlugLen   = 80
)

type Team struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	InviteCode  string       `json:"invite_code,omitempty"`
	Privacy     TeamPrivacy  `json:"privacy"`
	LeaderID    string       `json:"leader_id"`
	MaxMembers  int          `json:"max_members"`
	Tags        []string     `json:"tags"`
	MemberCount int          `json:"member_count"`
	Members     []TeamMember `json:"members,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (t *Team) IsFull() bool { return t.MemberCount >= t.MaxMembers }

type TeamMember struct {
	ID        string           `json:"id"`
	TeamID    string           `json:"team_id"`
	UserID    string           `json:"user_id"`
	Status    MembershipStatus `json:"status"`
	Role      string           `json:"role"`
	JoinedAt  time.Time        `json:"joined_at"`
	UserName  string           `json:"user_name,omitempty"`
	UserEmail string           `json:"user_email,omitempty"`
}

type JoinRequest struct {
	ID         string           `json:"id"`
	TeamID     string           `json:"team_id"`
	UserID     string           `json:"user_id"`
	Message    *string          `json:"message,omitempty"`
	Status     MembershipStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
	UserName   string           `json:"user_name,omitempty"`
}
