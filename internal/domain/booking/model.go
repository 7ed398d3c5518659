package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/pkg/civil"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
)

// transitions is the complete set of legal status changes. Statuses with no
// outgoing edges are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCancelled: nil,
	StatusCompleted: nil,
	StatusNoShow:    nil,
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an appointment in s may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// holdsSlot reports whether an appointment in s keeps its slot claimed.
func (s Status) holdsSlot() bool {
	return s != StatusCancelled
}

// MinSymptomsLength is the minimum length of trimmed symptoms text.
const MinSymptomsLength = 10

type Appointment struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	SlotID    uuid.UUID `json:"availability_id"`
	Symptoms  string    `json:"symptoms"`
	Notes     string    `json:"additional_notes"`
	Status    Status    `json:"status"`
	Fee       float64   `json:"appointment_fee"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Read-only values joined from the patient, doctor and slot.
	PatientName          string     `json:"patient_name"`
	DoctorName           string     `json:"doctor_name"`
	DoctorSpecialization string     `json:"doctor_specialization"`
	Date                 civil.Date `json:"date"`
	StartTime            civil.Time `json:"start_time"`
	EndTime              civil.Time `json:"end_time"`
	DoctorUserID         *uuid.UUID `json:"-"`
}

func (a *Appointment) OwnerID() uuid.UUID { return a.UserID }

// AttendingUserID is the account of the doctor seeing the patient, or
// uuid.Nil when the doctor has no account.
func (a *Appointment) AttendingUserID() uuid.UUID {
	if a.DoctorUserID == nil {
		return uuid.Nil
	}
	return *a.DoctorUserID
}

// Filter narrows appointment listings. Visible, when set, limits results to
// appointments the user owns or attends.
type Filter struct {
	Visible   *uuid.UUID
	Status    Status
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
}
