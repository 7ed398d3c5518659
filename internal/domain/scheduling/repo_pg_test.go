package scheduling

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carebook/carebook/internal/platform/apperr"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		resource string
		want     apperr.Kind
		field    string
	}{
		{"doctor missing", pgx.ErrNoRows, "doctor", apperr.KindNotFound, ""},
		{"slot missing", pgx.ErrNoRows, "availability slot", apperr.KindNotFound, ""},
		{"duplicate email", &pgconn.PgError{Code: "23505", ConstraintName: "doctors_email_key"}, "doctor", apperr.KindValidation, "email"},
		{"duplicate license", &pgconn.PgError{Code: "23505", ConstraintName: "doctors_license_number_key"}, "doctor", apperr.KindValidation, "license_number"},
		{"user already linked", &pgconn.PgError{Code: "23505", ConstraintName: "doctors_user_id_key"}, "doctor", apperr.KindValidation, "user_id"},
		{"slot start taken", &pgconn.PgError{Code: "23505", ConstraintName: "availability_slots_doctor_start_key"}, "availability slot", apperr.KindValidation, "start_time"},
		{"unknown constraint", &pgconn.PgError{Code: "23505", ConstraintName: "doctors_pkey"}, "doctor", apperr.KindConflict, ""},
		{"fee out of range", &pgconn.PgError{Code: "22003"}, "doctor", apperr.KindValidation, "consultation_fee"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err, tt.resource)
			var ae *apperr.Error
			if !errors.As(got, &ae) {
				t.Fatalf("expected *apperr.Error, got %T (%v)", got, got)
			}
			if ae.Kind != tt.want {
				t.Errorf("expected kind %v, got %v", tt.want, ae.Kind)
			}
			if tt.field != "" {
				if _, ok := ae.Fields[tt.field]; !ok {
					t.Errorf("expected error for %s, got %v", tt.field, ae.Fields)
				}
			}
		})
	}

	if translate(nil, "doctor") != nil {
		t.Error("nil should stay nil")
	}
	plain := errors.New("connection reset")
	if got := translate(plain, "doctor"); got != plain {
		t.Errorf("unclassified errors should pass through, got %v", got)
	}
}
