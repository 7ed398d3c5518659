package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/v1/doctors/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("/api/v1/doctors/:id", http.MethodGet, "200"))
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors/"+strings.Repeat("a", i+1), nil)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("/api/v1/doctors/:id", http.MethodGet, "200"))

	if after-before != 3 {
		t.Errorf("expected 3 requests recorded, got %v", after-before)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	Bookings.WithLabelValues("booked").Inc()

	e := echo.New()
	e.GET("/metrics", Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "carebook_bookings_total") {
		t.Error("expected carebook_bookings_total in exposition")
	}
}
