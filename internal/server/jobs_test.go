package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestLimitParam(t *testing.T) {
	e := echo.New()
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", defaultEntryLimit, false},
		{"limit=0", defaultEntryLimit, false},
		{"limit=25", 25, false},
		{"limit=50000", maxEntryLimit, false},
		{"limit=-1", 0, true},
		{"limit=x", 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/x/entries?"+tt.query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		got, err := limitParam(c, defaultEntryLimit, maxEntryLimit)
		if (err != nil) != tt.wantErr {
			t.Errorf("limitParam(%q) err = %v", tt.query, err)
			continue
		}
		if got != tt.want {
			t.Errorf("limitParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
