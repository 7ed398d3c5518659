package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/pkg/civil"
)

type Specialization string

const (
	Cardiology    Specialization = "cardiology"
	Dermatology   Specialization = "dermatology"
	Neurology     Specialization = "neurology"
	Pediatrics    Specialization = "pediatrics"
	Psychiatry    Specialization = "psychiatry"
	Orthopedics   Specialization = "orthopedics"
	Gynecology    Specialization = "gynecology"
	Ophthalmology Specialization = "ophthalmology"
	ENT           Specialization = "ent"
	General       Specialization = "general"
)

var specializationLabels = map[Specialization]string{
	Cardiology:    "Cardiology",
	Dermatology:   "Dermatology",
	Neurology:     "Neurology",
	Pediatrics:    "Pediatrics",
	Psychiatry:    "Psychiatry",
	Orthopedics:   "Orthopedics",
	Gynecology:    "Gynecology",
	Ophthalmology: "Ophthalmology",
	ENT:           "ENT",
	General:       "General Medicine",
}

func (s Specialization) Valid() bool {
	_, ok := specializationLabels[s]
	return ok
}

// Label is the human readable name used in notifications.
func (s Specialization) Label() string {
	if l, ok := specializationLabels[s]; ok {
		return l
	}
	return string(s)
}

// MaxFee is the largest amount a NUMERIC(10,2) fee column holds.
const MaxFee = 99999999.99

type Doctor struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	UserID          *uuid.UUID     `db:"user_id" json:"user_id,omitempty"`
	FirstName       string         `db:"first_name" json:"first_name"`
	LastName        string         `db:"last_name" json:"last_name"`
	Email           string         `db:"email" json:"email"`
	Phone           string         `db:"phone" json:"phone"`
	Specialization  Specialization `db:"specialization" json:"specialization"`
	Qualification   string         `db:"qualification" json:"qualification"`
	LicenseNumber   string         `db:"license_number" json:"license_number"`
	ExperienceYears int            `db:"experience_years" json:"experience_years"`
	Age             int            `db:"age" json:"age"`
	ConsultationFee float64        `db:"consultation_fee" json:"consultation_fee"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

func (d *Doctor) FullName() string {
	return "Dr. " + d.FirstName + " " + d.LastName
}

// Slot is a doctor's bookable window on one date. The window is half-open:
// [StartTime, EndTime).
type Slot struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Date        civil.Date `db:"slot_date" json:"date"`
	StartTime   civil.Time `db:"start_time" json:"start_time"`
	EndTime     civil.Time `db:"end_time" json:"end_time"`
	IsAvailable bool       `db:"is_available" json:"is_available"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether s and o belong to the same doctor and date and
// their windows intersect.
func (s *Slot) Overlaps(o *Slot) bool {
	return s.DoctorID == o.DoctorID &&
		s.Date == o.Date &&
		s.StartTime < o.EndTime &&
		o.StartTime < s.EndTime
}

// StartsAt is the instant the slot begins in loc.
func (s *Slot) StartsAt(loc *time.Location) time.Time {
	return s.Date.At(s.StartTime, loc)
}

// SlotFilter selects available slots ordered by date and start time.
// Slots on From start no earlier than FromTime.
type SlotFilter struct {
	DoctorID *uuid.UUID
	From     civil.Date
	FromTime civil.Time
	To       civil.Date
}
