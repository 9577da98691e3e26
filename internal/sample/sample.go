// Package sample generates synthetic access logs for demos and load tests.
package sample

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"time"

	goparquet "github.com/parquet-go/parquet-go"

	"github.com/gyeh/logstats/internal/enrich"
	"github.com/gyeh/logstats/internal/model"
)

// Output formats.
const (
	FormatIIS     = "iis"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// ErrUnknownFormat is returned by Write for an unsupported format.
var ErrUnknownFormat = errors.New("unknown sample format")

var (
	methods   = []string{"GET", "POST", "PUT", "DELETE"}
	statuses  = []int{200, 301, 302, 404, 500}
	ipPrefix  = []string{"192.168.1.", "10.0.0.", "172.16.0.", "157.20.0.", "128.1.0."}
	resources = []string{
		"/index.html",
		"/images/logo.png",
		"/event.php",
		"/scheduledemo.php",
		"/prototype.php",
		"/virtual-assistant.php",
		"/about.html",
		"/contact.php",
	}
)

// historyDays is how far back CSV and Parquet timestamps reach.
const historyDays = 30

const csvTimeLayout = "2006-01-02 15:04:05"

// Generator produces deterministic records for a seed.
type Generator struct {
	rng      *rand.Rand
	now      time.Time
	enricher *enrich.Enricher
}

// New returns a generator anchored at now.
func New(seed uint64, now time.Time) *Generator {
	return &Generator{
		rng:      rand.New(rand.NewPCG(seed, seed+1)),
		now:      now,
		enricher: enrich.New(enrich.NewRandomResolver(seed)),
	}
}

func pick[T any](g *Generator, items []T) T {
	return items[g.rng.IntN(len(items))]
}

func (g *Generator) ip() string {
	return pick(g, ipPrefix) + strconv.Itoa(1+g.rng.IntN(255))
}

// Line returns one IIS-style line: time, client, method, resource, status.
func (g *Generator) Line() string {
	return fmt.Sprintf("%02d:%02d:%02d %s %s %s %d",
		g.rng.IntN(24), g.rng.IntN(60), g.rng.IntN(60),
		g.ip(), pick(g, methods), pick(g, resources), pick(g, statuses))
}

// Record returns one enriched record timestamped within the last 30 days.
func (g *Generator) Record() model.LogRecord {
	offset := time.Duration(g.rng.Int64N(int64(historyDays * 24 * time.Hour)))
	rec := model.LogRecord{
		Timestamp:  g.now.Add(-offset).Truncate(time.Second),
		IPAddress:  g.ip(),
		HTTPMethod: pick(g, methods),
		Resource:   pick(g, resources),
		StatusCode: pick(g, statuses),
	}
	g.enricher.EnrichRecord(&rec)
	return rec
}

// Write emits n entries to w in format.
func (g *Generator) Write(w io.Writer, format string, n int) error {
	switch format {
	case FormatIIS:
		return g.WriteLines(w, n)
	case FormatCSV:
		return g.WriteCSV(w, n)
	case FormatParquet:
		return g.WriteParquet(w, n)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteLines writes n IIS-style lines.
func (g *Generator) WriteLines(w io.Writer, n int) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		if _, err := bw.WriteString(g.Line() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCSV writes a header and n enriched records in the canonical
// column order.
func (g *Generator) WriteCSV(w io.Writer, n int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.RecordFields()); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		r := g.Record()
		row := []string{
			r.Timestamp.Format(csvTimeLayout),
			r.IPAddress,
			r.HTTPMethod,
			r.Resource,
			strconv.Itoa(r.StatusCode),
			r.CountryOr(""),
			r.CategoryOr(""),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteParquet writes n enriched records as a Parquet file.
func (g *Generator) WriteParquet(w io.Writer, n int) error {
	rows := make([]model.ParquetRecord, n)
	for i := range rows {
		r := g.Record()
		rows[i] = r.ToParquet()
	}
	writer := goparquet.NewGenericWriter[model.ParquetRecord](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
