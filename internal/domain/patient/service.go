package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/db"
)

// AppointmentPurger removes a patient's appointments and frees their slots
// as part of deleting the patient.
type AppointmentPurger interface {
	PurgeForPatient(ctx context.Context, patientID uuid.UUID) error
}

type Service struct {
	repo   Repository
	tx     db.Transactor
	purger AppointmentPurger
	log    zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, purger AppointmentPurger, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, purger: purger, log: logger}
}

func checkFields(p *Patient) error {
	fields := map[string]string{}
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.MedicalHistory = strings.TrimSpace(p.MedicalHistory)

	if p.Title != "" && !titles[p.Title] {
		fields["title"] = "must be one of: Mr, Mrs, Ms, Dr, Prof"
	}
	if p.FirstName == "" {
		fields["first_name"] = "this field is required"
	}
	if p.LastName == "" {
		fields["last_name"] = "this field is required"
	}
	if !p.Relation.Valid() {
		fields["relation"] = "unknown relation"
	}
	if !genders[p.Gender] {
		fields["gender"] = "must be one of: male, female, other"
	}
	if p.Age < 1 || p.Age > 150 {
		fields["age"] = "must be between 1 and 150"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// Create adds a patient under the actor's account. An account holds at most
// MaxPerOwner patients and one per relation.
func (s *Service) Create(ctx context.Context, actor auth.Actor, p *Patient) error {
	p.UserID = actor.UserID
	if err := checkFields(p); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		taken, err := s.repo.LockOwner(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if len(taken) >= MaxPerOwner {
			return apperr.Validation("non_field_errors", fmt.Sprintf("you can only have up to %d patients", MaxPerOwner))
		}
		for _, r := range taken {
			if r == p.Relation {
				return apperr.Validation("relation", "you already have a patient with this relation")
			}
		}
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("patient_id", p.ID.String()).Str("user_id", p.UserID.String()).Msg("patient created")
	return nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanRead(actor, p).Allowed {
		// Foreign records are indistinguishable from missing ones.
		return nil, apperr.NotFound("patient")
	}
	return p, nil
}

// Lookup returns a patient without access checks, for collaborators that
// enforce their own ownership rules.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, actor auth.Actor, limit, offset int) ([]*Patient, int, error) {
	return s.repo.ListByOwner(ctx, actor.UserID, limit, offset)
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, patch Patch) (*Patient, error) {
	var out *Patient
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.Get(ctx, actor, id)
		if err != nil {
			return err
		}
		if err := auth.Enforce(auth.CanWrite(actor, p)); err != nil {
			return err
		}
		before := p.Relation
		p.apply(patch)
		if err := checkFields(p); err != nil {
			return err
		}
		if p.Relation != before {
			taken, err := s.repo.LockOwner(ctx, p.UserID)
			if err != nil {
				return err
			}
			for _, r := range taken {
				if r == p.Relation {
					return apperr.Validation("relation", "you already have a patient with this relation")
				}
			}
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// Delete removes the patient together with its appointments, releasing any
// slots they held.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.Get(ctx, actor, id)
		if err != nil {
			return err
		}
		if err := auth.Enforce(auth.CanWrite(actor, p)); err != nil {
			return err
		}
		if s.purger != nil {
			if err := s.purger.PurgeForPatient(ctx, id); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}
