package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/validate"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture(&serialTx{})
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(f.svc), f, e
}

func newRequest(method, body string, actor *auth.Actor) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if actor != nil {
		req = req.WithContext(auth.WithActor(req.Context(), *actor))
	}
	return req
}

func withID(c echo.Context, id fmt.Stringer) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id.String())
	return c
}

func TestHandler_Book(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.addPatient(owner.UserID)
	s := f.addSlot(today.AddDays(2), "14:00", "14:30")

	body := fmt.Sprintf(`{"patient_id":%q,"availability_id":%q,"symptoms":%q}`, p.ID, s.ID, symptoms)
	rec := httptest.NewRecorder()
	if err := h.Book(e.NewContext(newRequest(http.MethodPost, body, &owner), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "Appointment booked successfully" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if resp.Data["status"] != "PENDING" || resp.Data["appointment_fee"] != 650.0 {
		t.Errorf("unexpected data: %v", resp.Data)
	}
	if resp.Data["date"] != s.Date.String() || resp.Data["start_time"] != "14:00" {
		t.Errorf("expected slot date and time in response, got %v %v", resp.Data["date"], resp.Data["start_time"])
	}
}

func TestHandler_Book_ValidationErrors(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"nope","symptoms":"  "}`
	err := h.Book(e.NewContext(newRequest(http.MethodPost, body, &owner), httptest.NewRecorder()))

	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"patient_id", "availability_id", "symptoms"} {
		if _, ok := ae.Fields[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, ae.Fields)
		}
	}
}

func TestHandler_Book_FeeTooLarge(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.addPatient(admin.UserID)
	s := f.addSlot(today.AddDays(2), "14:00", "14:30")

	body := fmt.Sprintf(`{"patient_id":%q,"availability_id":%q,"symptoms":%q,"appointment_fee":1e10}`, p.ID, s.ID, symptoms)
	err := h.Book(e.NewContext(newRequest(http.MethodPost, body, &admin), httptest.NewRecorder()))

	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := ae.Fields["appointment_fee"]; !ok {
		t.Errorf("expected appointment_fee error, got %v", ae.Fields)
	}
}

func TestHandler_Book_Unauthenticated(t *testing.T) {
	h, _, e := newTestHandler()
	err := h.Book(e.NewContext(newRequest(http.MethodPost, `{}`, nil), httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_Patch_InvalidTransition(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, owner, f.addPatient(owner.UserID), f.addSlot(today.AddDays(1), "09:00", "09:30"))
	f.setStatus(t, a.ID, StatusCompleted)

	c := withID(e.NewContext(newRequest(http.MethodPatch, `{"status":"CANCELLED"}`, &owner), httptest.NewRecorder()), a.ID)
	err := h.Patch(c)
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if apperr.StatusCode(apperr.KindOf(err)) != http.StatusBadRequest {
		t.Error("invalid transitions must map to 400")
	}
}

func TestHandler_Patch_Confirm(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, owner, f.addPatient(owner.UserID), f.addSlot(today.AddDays(1), "09:00", "09:30"))

	rec := httptest.NewRecorder()
	c := withID(e.NewContext(newRequest(http.MethodPatch, `{"status":"CONFIRMED"}`, &owner), rec), a.ID)
	if err := h.Patch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.status(t, a.ID) != StatusConfirmed {
		t.Error("expected CONFIRMED")
	}
}

func TestHandler_Patch_RejectsUnknownStatus(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, owner, f.addPatient(owner.UserID), f.addSlot(today.AddDays(1), "09:00", "09:30"))

	c := withID(e.NewContext(newRequest(http.MethodPatch, `{"status":"ARCHIVED"}`, &owner), httptest.NewRecorder()), a.ID)
	var ae *apperr.Error
	if err := h.Patch(c); !errors.As(err, &ae) || ae.Fields["status"] == "" {
		t.Fatalf("expected status validation error, got %v", err)
	}
}

func TestHandler_Cancel(t *testing.T) {
	h, f, e := newTestHandler()
	s := f.addSlot(today.AddDays(1), "09:00", "09:30")
	a := f.book(t, owner, f.addPatient(owner.UserID), s)

	rec := httptest.NewRecorder()
	c := withID(e.NewContext(newRequest(http.MethodDelete, "", &owner), rec), a.ID)
	if err := h.Cancel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Appointment cancelled successfully") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if f.repo.count() != 1 || !f.slots.available(s.ID) {
		t.Error("expected record kept and slot released")
	}

	// A second cancel is a state-machine violation.
	c = withID(e.NewContext(newRequest(http.MethodDelete, "", &owner), httptest.NewRecorder()), a.ID)
	if err := h.Cancel(c); !errors.Is(err, apperr.ErrInvalidCancellation) {
		t.Errorf("expected invalid cancellation, got %v", err)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, owner, f.addPatient(owner.UserID), f.addSlot(today.AddDays(1), "09:00", "09:30"))

	rec := httptest.NewRecorder()
	c := withID(e.NewContext(newRequest(http.MethodDelete, "", &admin), rec), a.ID)
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if f.repo.count() != 0 {
		t.Error("expected record removed")
	}
}

func TestHandler_List_FilterValidation(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?doctor_id=xyz", nil)
	req = req.WithContext(auth.WithActor(req.Context(), owner))
	err := h.List(e.NewContext(req, httptest.NewRecorder()))
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Fields["doctor_id"] == "" {
		t.Fatalf("expected doctor_id validation error, got %v", err)
	}
}

func TestHandler_Get_Invalid(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(newRequest(http.MethodGet, "", &owner), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if err := h.Get(c); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
