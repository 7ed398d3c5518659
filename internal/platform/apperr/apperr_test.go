package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestErrorsIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("book: %w", SlotUnavailable("slot already booked"))
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Error("expected wrapped slot error to match ErrSlotUnavailable")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("slot error must not match ErrNotFound")
	}
	if KindOf(err) != KindSlotUnavailable {
		t.Errorf("expected kind %s, got %s", KindSlotUnavailable, KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("expected empty kind for plain errors")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindSlotUnavailable, http.StatusBadRequest},
		{KindPastSlot, http.StatusBadRequest},
		{KindInvalidTransition, http.StatusBadRequest},
		{KindInvalidCancellation, http.StatusBadRequest},
		{KindForbidden, http.StatusForbidden},
		{KindOwnership, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{Kind("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.kind); got != tt.want {
			t.Errorf("StatusCode(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func serveError(t *testing.T, err error) (*httptest.ResponseRecorder, Body) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop())(err, c)

	var body Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec, body
}

func TestHTTPErrorHandler_ValidationFields(t *testing.T) {
	rec, body := serveError(t, Validation("symptoms", "symptoms must be at least 10 characters"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body.Errors["symptoms"] == "" {
		t.Errorf("expected field error for symptoms, got %v", body.Errors)
	}
	if body.Code != KindValidation {
		t.Errorf("expected code %s, got %s", KindValidation, body.Code)
	}
}

func TestHTTPErrorHandler_InvalidTransition(t *testing.T) {
	rec, body := serveError(t, InvalidTransition("COMPLETED", "CANCELLED"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body.CurrentStatus != "COMPLETED" || body.RequestedStatus != "CANCELLED" {
		t.Errorf("unexpected statuses: %+v", body)
	}
}

func TestHTTPErrorHandler_EchoAndUnknown(t *testing.T) {
	rec, body := serveError(t, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header"))
	if rec.Code != http.StatusUnauthorized || body.Message != "missing authorization header" {
		t.Errorf("unexpected response %d %+v", rec.Code, body)
	}

	rec, body = serveError(t, errors.New("connection reset"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body.Message != "internal server error" {
		t.Errorf("internal error leaked: %q", body.Message)
	}
}
