package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Patient, int, error)
	// LockOwner serializes patient creation for one account until the
	// transaction ends and returns the relations already in use.
	LockOwner(ctx context.Context, ownerID uuid.UUID) ([]Relation, error)
}
