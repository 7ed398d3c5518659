package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testCfg = JWTConfig{Issuer: "carebook-test", SigningKey: []byte("test-secret-key-for-unit-tests-only")}

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (Actor, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	var got Actor
	var found bool
	err := mw(func(c echo.Context) error {
		got, found = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})(c)
	return got, found, err
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != want {
		t.Errorf("expected %d, got %d", want, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, _, err := runMiddleware(t, JWTMiddleware(testCfg), "")
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	for _, header := range []string{"Token abc123", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz"} {
		t.Run(header, func(t *testing.T) {
			_, _, err := runMiddleware(t, JWTMiddleware(testCfg), header)
			assertStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	uid := uuid.New()
	token, err := IssueToken(testCfg, Actor{UserID: uid, Role: RoleDoctor, Staff: true}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	actor, found, err := runMiddleware(t, JWTMiddleware(testCfg), "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected actor in context")
	}
	if actor.UserID != uid || actor.Role != RoleDoctor || !actor.Staff {
		t.Errorf("unexpected actor: %+v", actor)
	}
}

func TestJWTMiddleware_RejectsBadTokens(t *testing.T) {
	now := time.Now()
	base := func() Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.NewString(),
				Issuer:    testCfg.Issuer,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			Role: "patient",
		}
	}

	expired := base()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	wrongIssuer := base()
	wrongIssuer.Issuer = "someone-else"
	badSubject := base()
	badSubject.Subject = "not-a-uuid"
	badRole := base()
	badRole.Role = "superuser"
	noExpiry := base()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name   string
		claims Claims
		key    []byte
	}{
		{"expired", expired, testCfg.SigningKey},
		{"wrong issuer", wrongIssuer, testCfg.SigningKey},
		{"wrong key", base(), []byte("another-key")},
		{"subject not a uuid", badSubject, testCfg.SigningKey},
		{"unknown role", badRole, testCfg.SigningKey},
		{"no expiry", noExpiry, testCfg.SigningKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := createTestToken(t, tt.claims, tt.key)
			_, _, err := runMiddleware(t, JWTMiddleware(testCfg), "Bearer "+token)
			assertStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	fallback := Actor{UserID: uuid.New(), Role: RoleAdmin}

	actor, found, err := runMiddleware(t, DevAuthMiddleware(testCfg, fallback), "")
	if err != nil || !found {
		t.Fatalf("expected fallback actor, err=%v", err)
	}
	if actor != fallback {
		t.Errorf("expected %+v, got %+v", fallback, actor)
	}

	_, _, err = runMiddleware(t, DevAuthMiddleware(testCfg, fallback), "Bearer garbage")
	assertStatus(t, err, http.StatusUnauthorized)
}
