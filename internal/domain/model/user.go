package model

import (
	"time"
)

const (
	RoleStudent = "student"
	RoleJudge   = "judge"
	RoleAdmin   = "admin"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleJudge, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	GithubURL      *string   `json:"github_url,omitempty"`
	TshirtSize     *string   `json:"tshirt_size,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
func (u *User) IsJudge() bool { return u.Role == RoleJudge }
