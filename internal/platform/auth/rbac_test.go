package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func callWithActor(t *testing.T, mw echo.MiddlewareFunc, actor *Actor) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor != nil {
		req = req.WithContext(WithActor(req.Context(), *actor))
	}
	c := e.NewContext(req, httptest.NewRecorder())
	return mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name  string
		actor *Actor
		want  int
	}{
		{"matching role", &Actor{UserID: uuid.New(), Role: RoleDoctor}, 0},
		{"admin bypass", &Actor{UserID: uuid.New(), Role: RoleAdmin}, 0},
		{"other role", &Actor{UserID: uuid.New(), Role: RolePatient}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := callWithActor(t, RequireRole(RoleDoctor), tt.actor)
			if tt.want == 0 {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			assertStatus(t, err, tt.want)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	assertStatus(t, callWithActor(t, RequireAuth(), nil), http.StatusUnauthorized)
	if err := callWithActor(t, RequireAuth(), &Actor{UserID: uuid.New(), Role: RolePatient}); err != nil {
		t.Errorf("expected success, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"admin", "doctor", "patient"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q) error: %v", s, err)
		}
	}
	if _, err := ParseRole("ADMIN"); err == nil {
		t.Error("expected error for upper-case role")
	}
}
