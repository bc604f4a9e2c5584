package models

import (
	"time"

	"github.com/google/uuid"
)

// Account roles.
const (
	RoleProvider   = "provider"
	RoleFreelancer = "freelancer"
	RoleVerifier   = "verifier"
)

// ValidRole reports whether role is one of the marketplace roles.
func ValidRole(role string) bool {
	switch role {
	case RoleProvider, RoleFreelancer, RoleVerifier:
		return true
	}
	return false
}

type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	BalanceCents int64     `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
