package logparse

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestDetector() *Detector {
	return NewDetector(newTestMapper(), zerolog.Nop())
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		first, hint string
		want        Format
	}{
		{"time,client,verb,path,code", "", FormatTabular},
		{"08:15:23 10.0.0.5 GET /index.html 200", "access.log", FormatLines},
		{"08:15:23 10.0.0.5 GET /index.html 200", "export.CSV", FormatTabular},
		{"#Software: Microsoft Internet Information Services", "", FormatLines},
		{"", "", FormatLines},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.first, tt.hint); got != tt.want {
			t.Errorf("DetectFormat(%q, %q) = %s, want %s", tt.first, tt.hint, got, tt.want)
		}
	}
}

func TestParse_ScenarioLines(t *testing.T) {
	d := newTestDetector()
	records, summary := d.Parse([]byte("08:15:23 10.0.0.5 GET /index.html 200\n"), "")
	if len(records) != 1 {
		t.Fatalf("got %d records, summary %+v", len(records), summary)
	}
	if summary.Format != string(FormatLines) {
		t.Errorf("format = %s", summary.Format)
	}
	r := records[0]
	if r.IPAddress != "10.0.0.5" || r.HTTPMethod != "GET" || r.Resource != "/index.html" || r.StatusCode != 200 {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestParse_LinesSkipCommentsAndJunk(t *testing.T) {
	input := strings.Join([]string{
		"#Software: Microsoft Internet Information Services 10.0",
		"#Fields: time c-ip cs-method cs-uri-stem sc-status",
		"",
		"08:15:23 10.0.0.5 GET /index.html 200",
		"garbage line",
		"   ",
		"08:15:24 10.0.0.6 POST /contact.php 302\r",
	}, "\n")
	d := newTestDetector()
	records, summary := d.Parse([]byte(input), "u_ex240614.log")
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if summary.Rows != 3 || summary.Skipped != 1 || summary.Reasons[0].Row != 5 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestParse_CommaInFirstLineForcesTabular(t *testing.T) {
	input := "time,client,verb,path,code\n" +
		"09:00:00,1.2.3.4,GET,/contact.php,200\n" +
		"08:15:23 10.0.0.5 GET /index.html 200\n"
	d := newTestDetector()
	records, summary := d.Parse([]byte(input), "")
	if summary.Format != string(FormatTabular) {
		t.Fatalf("format = %s, want tabular", summary.Format)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0].IPAddress != "1.2.3.4" || records[0].Resource != "/contact.php" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	// The IIS line lands entirely in the first column.
	if records[1].Resource != "/index.html" || records[1].IPAddress != "0.0.0.0" {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}

func TestParse_CSVHintWithoutComma(t *testing.T) {
	d := newTestDetector()
	records, summary := d.Parse([]byte("path\n/about.html\n/css/site.css\n"), "pages.csv")
	if summary.Format != string(FormatTabular) || len(records) != 2 {
		t.Fatalf("format %s, %d records", summary.Format, len(records))
	}
	if records[1].Resource != "/css/site.css" {
		t.Errorf("resource = %q", records[1].Resource)
	}
}

func TestParse_FallbackOnStructuralError(t *testing.T) {
	input := "time,client,verb,path,code\n" +
		"09:00:00,1.2.3.4,GET,/a\"b.php,200\n" +
		"09:00:01,1.2.3.5,GET,/c.php,404,extra\n"
	d := newTestDetector()
	records, summary := d.Parse([]byte(input), "")
	if !summary.Fallback {
		t.Fatal("expected positional fallback")
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0].Resource != `/a"b.php` || records[1].StatusCode != 404 {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	d := newTestDetector()
	records, summary := d.Parse(nil, "")
	if len(records) != 0 {
		t.Fatalf("got %d records", len(records))
	}
	if summary.Failure != "" {
		t.Errorf("empty input should not be a failure: %q", summary.Failure)
	}
}

func TestParse_BinaryInput(t *testing.T) {
	d := newTestDetector()
	records, summary := d.Parse([]byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0x00}, "archive.zip")
	if len(records) != 0 {
		t.Fatalf("got %d records", len(records))
	}
	if summary.Failure == "" {
		t.Error("expected a failure reason")
	}
}

func TestParse_HeaderOnlyCSV(t *testing.T) {
	d := newTestDetector()
	records, _ := d.Parse([]byte("timestamp,ip,method,resource,status\n"), "")
	if len(records) != 0 {
		t.Fatalf("got %d records", len(records))
	}
}

func TestParse_CSVOutOfRangeStatusDefaults(t *testing.T) {
	input := "time,client,verb,path,code\n" +
		"09:00:00,1.2.3.4,GET,/a,3000000000\n" +
		"09:00:01,1.2.3.5,GET,/b,-5\n" +
		"09:00:02,1.2.3.6,GET,/c,404\n"
	records, summary := newTestDetector().Parse([]byte(input), "export.csv")
	if len(records) != 3 {
		t.Fatalf("got %d records, summary %+v", len(records), summary)
	}
	for i, want := range []int{200, 200, 404} {
		if records[i].StatusCode != want {
			t.Errorf("record %d status = %d, want %d", i, records[i].StatusCode, want)
		}
	}
}
