package booking

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/domain/patient"
	"github.com/carebook/carebook/internal/domain/scheduling"
	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/internal/platform/metrics"
	"github.com/carebook/carebook/internal/platform/notification"
)

// SlotRegistry is the part of the scheduling service the booking flow uses.
type SlotRegistry interface {
	LockSlot(ctx context.Context, id uuid.UUID) (*scheduling.Slot, error)
	MarkUnavailable(ctx context.Context, id uuid.UUID) error
	MarkAvailable(ctx context.Context, id uuid.UUID) error
	GetDoctorAny(ctx context.Context, id uuid.UUID) (*scheduling.Doctor, error)
	Location() *time.Location
}

type PatientDirectory interface {
	Lookup(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// RecipientDirectory resolves the address notifications for a user go to.
type RecipientDirectory interface {
	Email(ctx context.Context, userID uuid.UUID) (string, error)
}

type Notifier interface {
	Notify(ev notification.Event)
}

type Options struct {
	Recipients RecipientDirectory
	Notifier   Notifier
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Service is the booking engine: it claims slots for appointments and moves
// appointments through their status lifecycle.
type Service struct {
	repo       Repository
	slots      SlotRegistry
	patients   PatientDirectory
	tx         db.Transactor
	recipients RecipientDirectory
	notifier   Notifier
	now        func() time.Time
	log        zerolog.Logger
}

func NewService(repo Repository, slots SlotRegistry, patients PatientDirectory, tx db.Transactor, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:       repo,
		slots:      slots,
		patients:   patients,
		tx:         tx,
		recipients: opts.Recipients,
		notifier:   opts.Notifier,
		now:        opts.Now,
		log:        opts.Logger,
	}
}

type BookRequest struct {
	PatientID uuid.UUID
	SlotID    uuid.UUID
	Symptoms  string
	Notes     string
	// Fee overrides the doctor's consultation fee. Administrators only.
	Fee *float64
}

func checkSymptoms(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len([]rune(s)) < MinSymptomsLength {
		return "", apperr.Validation("symptoms", "please provide more detailed symptoms (at least 10 characters)")
	}
	return s, nil
}

// Book claims the slot for a new PENDING appointment. The slot row stays
// locked from the availability check until the appointment is written and
// the slot is flipped, so concurrent bookings of one slot have one winner.
func (s *Service) Book(ctx context.Context, actor auth.Actor, req BookRequest) (*Appointment, error) {
	var a *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.Lookup(ctx, req.PatientID)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("patient_id", "patient not found")
		}
		if err != nil {
			return err
		}
		if p.UserID != actor.UserID {
			return apperr.Ownership("you can only book appointments for your own patients")
		}

		sl, err := s.slots.LockSlot(ctx, req.SlotID)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("availability_id", "availability slot not found")
		}
		if err != nil {
			return err
		}
		if !sl.IsAvailable {
			return apperr.SlotUnavailable("this time slot is not available")
		}
		if !sl.StartsAt(s.slots.Location()).After(s.now()) {
			return apperr.PastSlot()
		}

		symptoms, err := checkSymptoms(req.Symptoms)
		if err != nil {
			return err
		}

		doc, err := s.slots.GetDoctorAny(ctx, sl.DoctorID)
		if err != nil {
			return err
		}
		fee := doc.ConsultationFee
		if req.Fee != nil {
			if !actor.IsAdmin() {
				return apperr.Validation("appointment_fee", "only administrators may set the fee")
			}
			if *req.Fee < 0 || math.IsNaN(*req.Fee) {
				return apperr.Validation("appointment_fee", "must not be negative")
			}
			if *req.Fee > scheduling.MaxFee {
				return apperr.Validation("appointment_fee", "must not exceed 99999999.99")
			}
			fee = math.Round(*req.Fee*100) / 100
		}

		a = &Appointment{
			UserID:    actor.UserID,
			PatientID: p.ID,
			DoctorID:  doc.ID,
			SlotID:    sl.ID,
			Symptoms:  symptoms,
			Notes:     strings.TrimSpace(req.Notes),
			Status:    StatusPending,
			Fee:       fee,

			PatientName:          p.FullName(),
			DoctorName:           doc.FullName(),
			DoctorSpecialization: doc.Specialization.Label(),
			Date:                 sl.Date,
			StartTime:            sl.StartTime,
			EndTime:              sl.EndTime,
			DoctorUserID:         doc.UserID,
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		return s.slots.MarkUnavailable(ctx, sl.ID)
	})
	if err != nil {
		metrics.Bookings.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	metrics.Bookings.WithLabelValues("booked").Inc()
	s.log.Info().Str("appointment_id", a.ID.String()).Str("slot_id", a.SlotID.String()).
		Str("user_id", a.UserID.String()).Msg("appointment booked")
	s.notify(ctx, notification.KindBooked, a, "")
	return a, nil
}

func outcome(err error) string {
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// Get returns the appointment if the actor may see it. Appointments the
// actor may not see are reported as missing.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanRead(actor, a).Allowed {
		return nil, apperr.NotFound("appointment")
	}
	return a, nil
}

// List returns appointments visible to the actor: their own and, for
// doctors, those they attend. Admins and staff see all.
func (s *Service) List(ctx context.Context, actor auth.Actor, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("status", "unknown status")
	}
	if !actor.IsAdmin() && !actor.Staff {
		uid := actor.UserID
		f.Visible = &uid
	}
	return s.repo.List(ctx, f, limit, offset)
}

// lockForWrite loads and locks an appointment the actor may modify.
func (s *Service) lockForWrite(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanRead(actor, a).Allowed {
		return nil, apperr.NotFound("appointment")
	}
	if err := auth.Enforce(auth.CanWrite(actor, a)); err != nil {
		return nil, err
	}
	return a, nil
}

// Changes is a partial update; nil fields are left unchanged.
type Changes struct {
	Symptoms *string
	Notes    *string
	Status   *Status
}

// Update edits symptoms and notes and applies a status transition. Content
// may only change while the appointment is still open. Moving to CANCELLED
// releases the slot.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, ch Changes) (*Appointment, error) {
	var (
		a    *Appointment
		from Status
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.lockForWrite(ctx, actor, id)
		if err != nil {
			return err
		}
		from = a.Status

		if ch.Symptoms != nil || ch.Notes != nil {
			if !a.Status.Cancellable() {
				return apperr.Validation("status", "an appointment that is "+string(a.Status)+" can no longer be edited")
			}
		}
		if ch.Symptoms != nil {
			symptoms, err := checkSymptoms(*ch.Symptoms)
			if err != nil {
				return err
			}
			a.Symptoms = symptoms
		}
		if ch.Notes != nil {
			a.Notes = strings.TrimSpace(*ch.Notes)
		}
		if ch.Status != nil {
			next := *ch.Status
			if !next.Valid() {
				return apperr.Validation("status", "unknown status")
			}
			if !a.Status.CanTransitionTo(next) {
				return apperr.InvalidTransition(string(a.Status), string(next))
			}
			a.Status = next
		}

		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		if from != a.Status && !a.Status.holdsSlot() {
			return s.slots.MarkAvailable(ctx, a.SlotID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != a.Status {
		s.transitioned(ctx, a, from)
	}
	return a, nil
}

// Cancel moves a PENDING or CONFIRMED appointment to CANCELLED and releases
// its slot.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	var (
		a    *Appointment
		from Status
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.lockForWrite(ctx, actor, id)
		if err != nil {
			return err
		}
		if !a.Status.Cancellable() {
			return apperr.InvalidCancellation(string(a.Status))
		}
		from = a.Status
		a.Status = StatusCancelled
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		return s.slots.MarkAvailable(ctx, a.SlotID)
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, a, from)
	return a, nil
}

// Delete removes an appointment record outright. An appointment still
// holding its slot releases it first. Administrators only.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("only administrators may delete appointments")
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return s.remove(ctx, a)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("appointment_id", id.String()).Str("actor", actor.UserID.String()).Msg("appointment deleted")
	return nil
}

// PurgeForPatient deletes every appointment of a patient, releasing held
// slots. It joins the caller's transaction.
func (s *Service) PurgeForPatient(ctx context.Context, patientID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		items, err := s.repo.ListByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		for _, a := range items {
			if err := s.remove(ctx, a); err != nil {
				return err
			}
		}
		if len(items) > 0 {
			s.log.Info().Str("patient_id", patientID.String()).Int("count", len(items)).Msg("appointments purged")
		}
		return nil
	})
}

func (s *Service) remove(ctx context.Context, a *Appointment) error {
	// A cancelled appointment already gave its slot back, and the slot may
	// since have been booked again.
	if a.Status.holdsSlot() {
		if err := s.slots.MarkAvailable(ctx, a.SlotID); err != nil {
			return err
		}
		metrics.SlotsReleased.Inc()
	}
	return s.repo.Delete(ctx, a.ID)
}

func (s *Service) transitioned(ctx context.Context, a *Appointment, from Status) {
	metrics.StatusTransitions.WithLabelValues(string(from), string(a.Status)).Inc()
	if a.Status == StatusCancelled {
		metrics.SlotsReleased.Inc()
	}
	s.log.Info().Str("appointment_id", a.ID.String()).Str("from", string(from)).
		Str("to", string(a.Status)).Msg("appointment status changed")
	s.notify(ctx, notification.KindStatusChanged, a, from)
}

func (s *Service) notify(ctx context.Context, kind notification.Kind, a *Appointment, from Status) {
	if s.notifier == nil {
		return
	}
	ev := notification.Event{
		Kind:           kind,
		AppointmentID:  a.ID,
		Status:         string(a.Status),
		PreviousStatus: string(from),
		PatientName:    a.PatientName,
		DoctorName:     a.DoctorName,
		Specialization: a.DoctorSpecialization,
		Date:           a.Date.String(),
		StartTime:      a.StartTime.String(),
		EndTime:        a.EndTime.String(),
		Fee:            a.Fee,
	}
	if s.recipients != nil {
		email, err := s.recipients.Email(ctx, a.UserID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", a.UserID.String()).Msg("resolve notification recipient")
		}
		ev.RecipientEmail = email
	}
	s.notifier.Notify(ev)
}
