package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role carried by users and their tokens
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a registered account
type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	Role         Role
	IsBlocked    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can log in with a local password.
// Accounts created through federated login have none.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// NewUser carries the data needed to create a user
type NewUser struct {
	Email        string
	Username     string
	PasswordHash string
	Role         Role
}

// OtpRecord is the stored state of a pending one-time passcode
type OtpRecord struct {
	Email     string
	CodeHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Movie is the provider projection returned to clients
type Movie struct {
	ImdbID string `json:"imdbID"`
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	Poster string `json:"Poster"`
	Type   string `json:"Type"`
}

// MovieView is a Movie annotated with the caller's favourite status
type MovieView struct {
	Movie
	IsFavorite bool `json:"isFavorite"`
}
