package users

import (
	"errors"
	"time"

	"github.com/2beens/gymtracker/internal/auth"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrLevelNotFound      = errors.New("level not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWrongPassword      = errors.New("current password is wrong")
	ErrSelfModification   = errors.New("admins cannot change their own role or delete themselves")
	ErrLastAdmin          = errors.New("cannot remove the last admin")
)

type User struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Role              auth.Role  `json:"role"`
	LevelID           *int       `json:"levelId"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginIP       string     `json:"lastLoginIp,omitempty"`
	LastLoginLocation string     `json:"lastLoginLocation,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == auth.RoleAdmin
}

// UserWithStats is a user row as shown in the admin users list.
type UserWithStats struct {
	User
	LevelName       string     `json:"levelName"`
	WorkoutsCount   int        `json:"workoutsCount"`
	LastWorkoutDate *time.Time `json:"lastWorkoutDate"`
}

type ListParams struct {
	Search string
	Role   auth.Role
	Page   int
	Size   int
}
