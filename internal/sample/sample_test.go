package sample

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/logparse"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/parquetread"
)

var anchor = time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)

func newDetector() *logparse.Detector {
	return logparse.NewDetector(logparse.NewMapper(zerolog.Nop(), func() time.Time { return anchor }, nil), zerolog.Nop())
}

func TestLinesParse(t *testing.T) {
	var buf bytes.Buffer
	if err := New(7, anchor).WriteLines(&buf, 200); err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if logparse.ParseLine(line, anchor) == nil {
			t.Fatalf("generated line does not parse: %q", line)
		}
	}
}

func TestDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	_ = New(42, anchor).WriteCSV(&a, 50)
	_ = New(42, anchor).WriteCSV(&b, 50)
	if a.String() != b.String() {
		t.Error("same seed produced different output")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := New(3, anchor).WriteCSV(&buf, 100); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), strings.Join(model.RecordFields(), ",")+"\n") {
		t.Errorf("unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}
	records, sum := newDetector().Parse(buf.Bytes(), "sample.csv")
	if len(records) != 100 || sum.Skipped != 0 {
		t.Fatalf("parsed %d records, summary %+v", len(records), sum)
	}
	oldest := anchor.Add(-30 * 24 * time.Hour)
	for _, r := range records {
		if r.Timestamp.Before(oldest) || r.Timestamp.After(anchor) {
			t.Errorf("timestamp %v outside the last 30 days", r.Timestamp)
		}
	}
}

func TestParquetReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := New(9, anchor).WriteParquet(f, 25); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := parquetread.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.NumRows() != 25 {
		t.Errorf("NumRows = %d", r.NumRows())
	}
	if err := parquetread.ValidateSchema(r.Schema(), logparse.KnownColumn); err != nil {
		t.Errorf("ValidateSchema: %v", err)
	}
}

func TestUnknownFormat(t *testing.T) {
	if err := New(1, anchor).Write(&bytes.Buffer{}, "xml", 1); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v", err)
	}
}
