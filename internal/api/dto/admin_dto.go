package dto

import "github.com/spec-kit/auth-service/internal/domain"

// SetRolesRequest replaces a user's roles.
type SetRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,role"`
}

// RoleSet converts the validated request into a domain role set.
func (r SetRolesRequest) RoleSet() (domain.RoleSet, error) {
	return domain.ParseRoles(r.Roles)
}

// SetStatusRequest activates or suspends a user.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,status"`
}

// Pagination metadata for list responses.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// UserListResponse is a page of users.
type UserListResponse struct {
	Users      []UserResponse `json:"users"`
	Pagination Pagination     `json:"pagination"`
}
