package patient

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carebook/carebook/internal/platform/apperr"
)

func TestTranslate(t *testing.T) {
	if err := translate(pgx.ErrNoRows); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("no rows: expected not found, got %v", err)
	}

	err := translate(&pgconn.PgError{Code: "23505", ConstraintName: "patients_user_relation_key"})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("relation clash: expected validation error, got %v", err)
	}
	if _, ok := ae.Fields["relation"]; !ok {
		t.Errorf("expected error for relation, got %v", ae.Fields)
	}

	other := &pgconn.PgError{Code: "23505", ConstraintName: "patients_pkey"}
	if err := translate(other); err != error(other) {
		t.Errorf("unmapped violation should pass through, got %v", err)
	}
	if translate(nil) != nil {
		t.Error("nil should stay nil")
	}
}
