package booking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carebook/carebook/internal/platform/apperr"
)

func TestTranslate(t *testing.T) {
	plain := errors.New("connection reset")

	tests := []struct {
		name  string
		err   error
		want  apperr.Kind
		field string
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound, ""},
		{"wrapped no rows", fmt.Errorf("get appointment: %w", pgx.ErrNoRows), apperr.KindNotFound, ""},
		{"active slot taken", &pgconn.PgError{Code: "23505", ConstraintName: activeSlotKey}, apperr.KindSlotUnavailable, ""},
		{"other unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"}, apperr.KindConflict, ""},
		{"fee out of range", &pgconn.PgError{Code: "22003"}, apperr.KindValidation, "appointment_fee"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err)
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

	if translate(nil) != nil {
		t.Error("nil should stay nil")
	}
	if got := translate(plain); got != plain {
		t.Errorf("unclassified errors should pass through, got %v", got)
	}
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "appointments_slot_id_fkey"}
	if got := translate(fk); got != error(fk) {
		t.Errorf("foreign key violation should pass through, got %v", got)
	}
}

func TestTranslate_SlotTakenMatchesSentinel(t *testing.T) {
	err := translate(fmt.Errorf("insert appointment: %w",
		&pgconn.PgError{Code: "23505", ConstraintName: activeSlotKey}))
	if !errors.Is(err, apperr.ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}
}
