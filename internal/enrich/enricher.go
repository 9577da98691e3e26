package enrich

import (
	"time"

	"github.com/gyeh/logstats/internal/model"
)

// GeographyResolver maps an IP address to a country name.
type GeographyResolver interface {
	Resolve(ip string) string
}

// Enricher fills in the derived fields of canonical records.
type Enricher struct {
	geo GeographyResolver
}

// New returns an Enricher backed by geo. A nil geo uses a RandomResolver
// seeded from the clock.
func New(geo GeographyResolver) *Enricher {
	if geo == nil {
		geo = NewRandomResolver(uint64(time.Now().UnixNano()))
	}
	return &Enricher{geo: geo}
}

// EnrichRecord sets the country and page category of r.
func (e *Enricher) EnrichRecord(r *model.LogRecord) {
	r.Country = model.StrPtr(e.geo.Resolve(r.IPAddress))
	r.PageCategory = model.StrPtr(Categorize(r.Resource))
}

// Enrich enriches records in place and returns them.
func (e *Enricher) Enrich(records []model.LogRecord) []model.LogRecord {
	for i := range records {
		e.EnrichRecord(&records[i])
	}
	return records
}
