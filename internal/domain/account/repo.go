package account

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	CreateProfile(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
}
