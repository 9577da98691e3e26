package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/model"
)

func TestHTTPSource_Rows(t *testing.T) {
	var gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"logs": [
			{"ip": "10.0.0.5", "path": "/index.html", "status": 200},
			{"ip": "10.0.0.6", "path": "/contact.php", "status": 302, "agent": "curl"}
		]}`))
	}))
	defer srv.Close()

	src, err := NewHTTP(model.SourceConfig{Name: "api", URL: srv.URL, APIKey: "secret"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	rows, header, err := src.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if gotKey != "secret" || gotAuth != "Bearer secret" {
		t.Errorf("auth headers = %q, %q", gotKey, gotAuth)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if n, ok := rows[1]["status"].(json.Number); !ok || n.String() != "302" {
		t.Errorf("status = %#v", rows[1]["status"])
	}
	want := []string{"agent", "ip", "path", "status"}
	if len(header) != len(want) {
		t.Fatalf("header = %v", header)
	}
	for i := range want {
		if header[i] != want[i] {
			t.Errorf("header = %v, want %v", header, want)
			break
		}
	}
}

func TestHTTPSource_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ip":"1.1.1.1"},{"ip":"2.2.2.2"},{"ip":"3.3.3.3"}]`))
	}))
	defer srv.Close()

	src, _ := NewHTTP(model.SourceConfig{Name: "api", URL: srv.URL, Limit: 2}, zerolog.Nop())
	rows, _, err := src.Rows(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows", len(rows))
	}
}

func TestHTTPSource_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	src, _ := NewHTTP(model.SourceConfig{Name: "api", URL: srv.URL}, zerolog.Nop())
	if err := src.Ping(context.Background()); err == nil {
		t.Error("expected ping to fail on 401")
	}
	if _, _, err := src.Rows(context.Background()); err == nil {
		t.Error("expected rows to fail on 401")
	}
}

func TestDecodeRows(t *testing.T) {
	tests := []struct {
		body    string
		rows    int
		wantErr bool
	}{
		{`[]`, 0, false},
		{`{"data": [{"a": 1}]}`, 1, false},
		{`{"items": [{"a": 1}, {"a": 2}]}`, 2, false},
		{`{"count": 3}`, 0, true},
		{`[1, 2]`, 0, true},
		{`"text"`, 0, true},
		{`{`, 0, true},
	}
	for _, tt := range tests {
		rows, err := decodeRows([]byte(tt.body))
		if (err != nil) != tt.wantErr {
			t.Errorf("decodeRows(%s) err = %v", tt.body, err)
			continue
		}
		if len(rows) != tt.rows {
			t.Errorf("decodeRows(%s) = %d rows", tt.body, len(rows))
		}
	}
}
