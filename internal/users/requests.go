package users

import (
	"strings"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/validation"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
}

func (req *RegisterRequest) Normalize() {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = NormalizeEmail(req.Email)
}

func (req *RegisterRequest) Validate() error {
	req.Normalize()
	return validation.Struct(req)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (req *LoginRequest) Validate() error {
	req.Email = NormalizeEmail(req.Email)
	return validation.Struct(req)
}

type ProfileRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=255"`
}

func (req *ProfileRequest) Validate() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = NormalizeEmail(req.Email)
	return validation.Struct(req)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,maxbytes=72"`
}

func (req *ChangePasswordRequest) Validate() error {
	return validation.Struct(req)
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
	Role     string `json:"role" validate:"omitempty,oneof=USER ADMIN"`
	LevelID  *int   `json:"levelId" validate:"omitempty,min=1"`
}

func (req *CreateUserRequest) Validate() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = NormalizeEmail(req.Email)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	return validation.Struct(req)
}

func (req *CreateUserRequest) RoleOrDefault() auth.Role {
	if req.Role == "" {
		return auth.RoleUser
	}
	return auth.Role(req.Role)
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

func (req *SetRoleRequest) Validate() error {
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	return validation.Struct(req)
}

// AssignLevelRequest with a null levelId removes the user's level.
type AssignLevelRequest struct {
	LevelID *int `json:"levelId" validate:"omitempty,min=1"`
}

func (req *AssignLevelRequest) Validate() error {
	return validation.Struct(req)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
