package scheduling

import (
	"context"
	"iter"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/internal/platform/metrics"
	"github.com/carebook/carebook/pkg/civil"
)

type Options struct {
	Location   *time.Location
	WindowDays int
	DefaultFee float64
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Service owns doctors and their availability slots.
type Service struct {
	doctors DoctorRepository
	slots   SlotRepository
	tx      db.Transactor
	loc     *time.Location
	window  int
	fee     float64
	now     func() time.Time
	log     zerolog.Logger
}

func NewService(doctors DoctorRepository, slots SlotRepository, tx db.Transactor, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		doctors: doctors,
		slots:   slots,
		tx:      tx,
		loc:     opts.Location,
		window:  opts.WindowDays,
		fee:     opts.DefaultFee,
		now:     opts.Now,
		log:     opts.Logger,
	}
}

// Location is the zone slot dates and times are expressed in.
func (s *Service) Location() *time.Location { return s.loc }

// -- Doctor --

func validateDoctor(d *Doctor) error {
	fields := map[string]string{}
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.LicenseNumber = strings.TrimSpace(d.LicenseNumber)

	if d.FirstName == "" {
		fields["first_name"] = "this field is required"
	}
	if d.LastName == "" {
		fields["last_name"] = "this field is required"
	}
	if _, err := mail.ParseAddress(d.Email); err != nil {
		fields["email"] = "must be a valid email address"
	}
	if d.LicenseNumber == "" {
		fields["license_number"] = "this field is required"
	}
	if !d.Specialization.Valid() {
		fields["specialization"] = "unknown specialization"
	}
	if d.ExperienceYears < 0 || d.ExperienceYears > 60 {
		fields["experience_years"] = "must be between 0 and 60"
	}
	if d.Age < 25 || d.Age > 80 {
		fields["age"] = "must be between 25 and 80"
	}
	switch {
	case d.ConsultationFee < 0 || math.IsNaN(d.ConsultationFee):
		fields["consultation_fee"] = "must not be negative"
	case d.ConsultationFee > MaxFee:
		fields["consultation_fee"] = "must not exceed 99999999.99"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	d.ConsultationFee = math.Round(d.ConsultationFee*100) / 100
	return nil
}

// CreateDoctor registers a doctor. A nil fee takes the configured default.
func (s *Service) CreateDoctor(ctx context.Context, actor auth.Actor, d *Doctor, fee *float64) error {
	if err := auth.Enforce(auth.CanManageDoctors(actor)); err != nil {
		return err
	}
	d.ConsultationFee = s.fee
	if fee != nil {
		d.ConsultationFee = *fee
	}
	d.IsActive = true
	if err := validateDoctor(d); err != nil {
		return err
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return err
	}
	s.log.Info().Str("doctor_id", d.ID.String()).Str("specialization", string(d.Specialization)).Msg("doctor created")
	return nil
}

// UpdateDoctor applies an administrative edit.
func (s *Service) UpdateDoctor(ctx context.Context, actor auth.Actor, d *Doctor) error {
	if err := auth.Enforce(auth.CanManageDoctors(actor)); err != nil {
		return err
	}
	if err := validateDoctor(d); err != nil {
		return err
	}
	return s.doctors.Update(ctx, d)
}

// GetDoctor returns an active doctor.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, apperr.NotFound("doctor")
	}
	return d, nil
}

// GetDoctorAny returns a doctor regardless of its active flag.
func (s *Service) GetDoctorAny(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, spec Specialization, limit, offset int) ([]*Doctor, int, error) {
	if spec != "" && !spec.Valid() {
		return nil, 0, apperr.Validation("specialization", "unknown specialization")
	}
	return s.doctors.ListActive(ctx, spec, limit, offset)
}

// -- Slot --

// CreateSlot publishes a new available slot after checking ordering, the
// date and overlap with the doctor's other slots that day. The doctor row is
// locked so concurrent creations for one doctor are serialized.
func (s *Service) CreateSlot(ctx context.Context, actor auth.Actor, sl *Slot) error {
	if err := auth.Enforce(auth.CanManageSlots(actor)); err != nil {
		return err
	}

	fields := map[string]string{}
	if sl.DoctorID == uuid.Nil {
		fields["doctor_id"] = "this field is required"
	}
	if sl.Date.IsZero() {
		fields["date"] = "this field is required"
	} else if sl.Date.Before(civil.Today(s.now(), s.loc)) {
		fields["date"] = "cannot create availability for past dates"
	}
	if !sl.StartTime.Valid() || !sl.EndTime.Valid() {
		fields["start_time"] = "must be a time of day"
	} else if sl.EndTime <= sl.StartTime {
		fields["end_time"] = "end time must be after start time"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		doc, err := s.doctors.GetForUpdate(ctx, sl.DoctorID)
		if err != nil {
			return err
		}
		if !doc.IsActive {
			return apperr.Validation("doctor_id", "doctor is not active")
		}

		existing, err := s.slots.ListByDoctorDate(ctx, sl.DoctorID, sl.Date)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if sl.Overlaps(other) {
				return apperr.Validation("start_time", "this time slot overlaps with an existing slot ("+
					other.StartTime.String()+"-"+other.EndTime.String()+")")
			}
		}

		sl.IsAvailable = true
		return s.slots.Create(ctx, sl)
	})
	if err != nil {
		return err
	}

	metrics.SlotsCreated.Inc()
	s.log.Info().Str("slot_id", sl.ID.String()).Str("doctor_id", sl.DoctorID.String()).
		Str("date", sl.Date.String()).Str("start", sl.StartTime.String()).Msg("availability slot created")
	return nil
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetByID(ctx, id)
}

// LockSlot reads a slot and locks it until the surrounding transaction ends.
func (s *Service) LockSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetForUpdate(ctx, id)
}

// MarkUnavailable and MarkAvailable flip the slot flag. Both are idempotent.
func (s *Service) MarkUnavailable(ctx context.Context, id uuid.UUID) error {
	return s.slots.SetAvailable(ctx, id, false)
}

func (s *Service) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	return s.slots.SetAvailable(ctx, id, true)
}

// SlotQuery narrows the availability listing. Zero dates fall back to today
// and today plus the configured window.
type SlotQuery struct {
	DoctorID *uuid.UUID
	From     civil.Date
	To       civil.Date
}

func (s *Service) filter(q SlotQuery) (SlotFilter, error) {
	now := s.now().In(s.loc)
	today := civil.DateOf(now)

	from, to := q.From, q.To
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = from.AddDays(s.window)
	}
	if to.Before(from) {
		return SlotFilter{}, apperr.Validation("date_to", "must not be before date_from")
	}

	f := SlotFilter{DoctorID: q.DoctorID, From: from, To: to}
	if !from.After(today) {
		// Only slots that have not started yet.
		f.From = today
		f.FromTime = civil.TimeOf(now) + 1
		if !f.FromTime.Valid() {
			f.From, f.FromTime = today.AddDays(1), 0
		}
	}
	return f, nil
}

// ListAvailableSlots returns one page of available future slots ordered by
// date and start time.
func (s *Service) ListAvailableSlots(ctx context.Context, q SlotQuery, limit, offset int) ([]*Slot, int, error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, 0, err
	}
	return s.slots.SearchAvailable(ctx, f, limit, offset)
}

const slotBatch = 50

// AvailableSlots yields every available future slot matching q, fetching
// from the store in batches as the caller ranges. Each range restarts from
// the first slot.
func (s *Service) AvailableSlots(ctx context.Context, q SlotQuery) iter.Seq2[*Slot, error] {
	return func(yield func(*Slot, error) bool) {
		f, err := s.filter(q)
		if err != nil {
			yield(nil, err)
			return
		}
		for offset := 0; ; offset += slotBatch {
			page, total, err := s.slots.SearchAvailable(ctx, f, slotBatch, offset)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, sl := range page {
				if !yield(sl, nil) {
					return
				}
			}
			if len(page) < slotBatch || offset+len(page) >= total {
				return
			}
		}
	}
}
