package db

import (
	"fmt"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gyeh/logstats/internal/model"
)

// EntryColumns is the COPY column order for access_log_entries.
var EntryColumns = []string{
	"job_id", "ts", "ip_address", "http_method", "resource", "status_code", "country", "page_category",
}

// RecordSource implements pgx.CopyFromSource over a slice of records
// belonging to one job.
type RecordSource struct {
	jobID   uuid.UUID
	records []model.LogRecord
	idx     int
	err     error
}

// NewRecordSource creates a CopyFromSource for records of jobID.
func NewRecordSource(jobID uuid.UUID, records []model.LogRecord) *RecordSource {
	return &RecordSource{jobID: jobID, records: records, idx: -1}
}

func (s *RecordSource) Next() bool {
	if s.err != nil {
		return false
	}
	s.idx++
	return s.idx < len(s.records)
}

// Values returns the current record in EntryColumns order.
func (s *RecordSource) Values() ([]any, error) {
	r := &s.records[s.idx]
	ip, err := EntryAddr(r.IPAddress)
	if err != nil {
		s.err = fmt.Errorf("entry %d: %w", s.idx+1, err)
		return nil, s.err
	}
	return []any{s.jobID, r.Timestamp, ip, r.HTTPMethod, r.Resource, r.StatusCode, r.Country, r.PageCategory}, nil
}

func (s *RecordSource) Err() error {
	return s.err
}

// EntryAddr parses an address for the inet column as a single-host prefix.
func EntryAddr(s string) (netip.Prefix, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid ip address %q: %w", s, err)
	}
	addr = addr.WithZone("")
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Compile-time check that RecordSource satisfies the interface.
var _ pgx.CopyFromSource = (*RecordSource)(nil)
