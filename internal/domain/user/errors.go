package user

import "errors"

var (
	ErrOperatorRequired        = errors.New("operator identity is required")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrUnknownRole             = errors.New("unknown role")
)
