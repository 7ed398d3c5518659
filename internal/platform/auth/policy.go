package auth

import (
	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/platform/apperr"
)

// Owned is a record created under a user account.
type Owned interface {
	OwnerID() uuid.UUID
}

// Attended is an Owned record that clinical staff may act on: admins and the
// doctor whose account is returned by AttendingUserID.
type Attended interface {
	Owned
	AttendingUserID() uuid.UUID
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// CanRead grants the owner, admins and staff, and the attending doctor.
func CanRead(a Actor, r Owned) Decision {
	switch {
	case r.OwnerID() == a.UserID:
		return allow("owner")
	case a.IsAdmin() || a.Staff:
		return allow("elevated")
	}
	if at, ok := r.(Attended); ok && isAttending(a, at) {
		return allow("attending doctor")
	}
	return deny("you do not have access to this record")
}

// CanWrite grants the owner. Attended records are also writable by admins
// and the attending doctor; plain Owned records are owner-only.
func CanWrite(a Actor, r Owned) Decision {
	if r.OwnerID() == a.UserID {
		return allow("owner")
	}
	at, ok := r.(Attended)
	if !ok {
		return deny("only the owner may modify this record")
	}
	if a.IsAdmin() {
		return allow("admin")
	}
	if isAttending(a, at) {
		return allow("attending doctor")
	}
	return deny("you do not have permission to modify this record")
}

// CanManageDoctors covers creating and editing doctor records.
func CanManageDoctors(a Actor) Decision {
	if a.IsAdmin() || a.Staff || a.Role == RoleDoctor {
		return allow("clinical staff")
	}
	return deny("doctor management requires a doctor or administrator")
}

// CanManageSlots covers publishing availability slots.
func CanManageSlots(a Actor) Decision {
	if a.IsAdmin() || a.Staff {
		return allow("elevated")
	}
	return deny("only administrators may publish availability")
}

func isAttending(a Actor, r Attended) bool {
	uid := r.AttendingUserID()
	return a.Role == RoleDoctor && uid != uuid.Nil && uid == a.UserID
}

// Enforce turns a denial into an apperr Forbidden error.
func Enforce(d Decision) error {
	if d.Allowed {
		return nil
	}
	return apperr.Forbidden(d.Reason)
}
