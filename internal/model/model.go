package model

import (
	"errors"
	"time"
)

var (
	ErrAccountExists      = errors.New("account already registered")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidResetToken  = errors.New("invalid reset token")
)

type Account struct {
	ID             string
	Email          string
	EmailConfirmed bool
	CreatedAt      time.Time
}

// NewAccount is what register forwards to the credential store. The password
// is never kept by this service.
type NewAccount struct {
	Email          string
	Password       string
	FullName       string
	EmailConfirmed bool
}

type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token,omitempty"`
	UserID       string `json:"user_id"`
}

type Profile struct {
	ID          string
	FullName    string
	Phone       string
	Email       string
	Gender      string
	DateOfBirth string
	Profession  Profession
	Country     string
	State       string
	Pincode     string
	CreatedAt   time.Time
}
