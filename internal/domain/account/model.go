package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/platform/auth"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     *string   `json:"phone_number,omitempty"`
	IsStaff   bool      `json:"is_staff"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile carries the user's role. Every user has exactly one, created in
// the same transaction as the user.
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Account struct {
	User
	Role auth.Role `json:"role"`
}

// Actor is the authorization identity for the account.
func (a *Account) Actor() auth.Actor {
	return auth.Actor{UserID: a.ID, Role: a.Role, Staff: a.IsStaff}
}

type NewUser struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      auth.Role
	Staff     bool
}
