package domain

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoleNotFound = errors.New("role not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrUnknownRole  = errors.New("unknown role")
)
