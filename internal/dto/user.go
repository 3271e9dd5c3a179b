package dto

import "github.com/emailgen-labs/emailgen-api/internal/models"

// CreateUserRequest provisions a new account.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	FullName string          `json:"full_name" validate:"required,max=200"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN EDITOR REVIEWER"`
}

// UpdateUserRequest mutates account metadata.
type UpdateUserRequest struct {
	FullName *string          `json:"full_name,omitempty" validate:"omitempty,max=200"`
	Role     *models.UserRole `json:"role,omitempty" validate:"omitempty,oneof=ADMIN EDITOR REVIEWER"`
	Active   *bool            `json:"active,omitempty"`
}
