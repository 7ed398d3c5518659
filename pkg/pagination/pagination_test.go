package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=500", MaxLimit, 0},
		{"?limit=-1&offset=-4", DefaultLimit, 0},
		{"?limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/doctors"+tt.query, nil)
			c := e.NewContext(req, httptest.NewRecorder())

			p := FromContext(c)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got %+v, want limit=%d offset=%d", p, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse[string]("ok", nil, 25, Params{Limit: 10, Offset: 10})
	if resp.Data == nil || len(resp.Data) != 0 {
		t.Errorf("expected empty non-nil data, got %v", resp.Data)
	}
	if !resp.HasMore {
		t.Error("expected HasMore with 25 total at offset 10")
	}

	last := NewResponse("ok", []string{"a"}, 21, Params{Limit: 10, Offset: 20})
	if last.HasMore {
		t.Error("expected no more results on last page")
	}
}
