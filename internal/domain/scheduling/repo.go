package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebook/carebook/pkg/civil"
)

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// GetForUpdate locks the doctor row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	ListActive(ctx context.Context, specialization Specialization, limit, offset int) ([]*Doctor, int, error)
}

type SlotRepository interface {
	Create(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// GetForUpdate locks the slot row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]*Slot, error)
	SearchAvailable(ctx context.Context, f SlotFilter, limit, offset int) ([]*Slot, int, error)
	SetAvailable(ctx context.Context, id uuid.UUID, available bool) error
}
