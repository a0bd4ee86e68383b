package service

import "innovate_api/internal/domain/model"

// Actor is the authenticated caller as seen by the services.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page converts 1-based page/pageSize into limit/offset with sane bounds.
func Page(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
