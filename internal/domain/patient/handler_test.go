package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/validate"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService()
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(svc), svc, e
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

func TestHandler_Create(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"title":"Mr","first_name":"Omar","last_name":"Haddad","relation":"self","gender":"male","age":41}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, body, &owner), rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Data Patient `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.UserID != owner.UserID || resp.Data.Relation != RelationSelf {
		t.Errorf("unexpected patient: %+v", resp.Data)
	}
}

func TestHandler_Create_ValidationErrors(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"title":"Sir","first_name":"Omar","relation":"cousin","gender":"male","age":151}`
	c := e.NewContext(newRequest(http.MethodPost, body, &owner), httptest.NewRecorder())

	err := h.Create(c)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, f := range []string{"title", "last_name", "relation", "age"} {
		if _, ok := ae.Fields[f]; !ok {
			t.Errorf("expected error for %s, got %v", f, ae.Fields)
		}
	}
}

func TestHandler_Create_Unauthenticated(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(newRequest(http.MethodPost, `{}`, nil), httptest.NewRecorder())

	err := h.Create(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_Get_Foreign(t *testing.T) {
	h, svc, e := newTestHandler()
	p := newPatient(t, svc, owner, RelationSelf)

	c := e.NewContext(newRequest(http.MethodGet, "", &stranger), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.Get(c); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHandler_Patch(t *testing.T) {
	h, svc, e := newTestHandler()
	p := newPatient(t, svc, owner, RelationSelf)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPatch, `{"age":36}`, &owner), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.Patch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data Patient `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Age != 36 || resp.Data.FirstName != p.FirstName {
		t.Errorf("unexpected patient after patch: %+v", resp.Data)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, svc, e := newTestHandler()
	p := newPatient(t, svc, owner, RelationSelf)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodDelete, "", &owner), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_List(t *testing.T) {
	h, svc, e := newTestHandler()
	newPatient(t, svc, owner, RelationSelf)
	newPatient(t, svc, stranger, RelationSelf)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "", &owner), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Patient `json:"data"`
		Total int       `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Errorf("expected one patient, got %d/%d", len(resp.Data), resp.Total)
	}
}
