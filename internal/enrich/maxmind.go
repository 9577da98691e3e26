package enrich

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/maxminddb-golang"
)

// UnknownCountry is returned by StaticResolver's zero value and used when a
// lookup finds nothing and no fallback is configured.
const UnknownCountry = "Unknown"

// StaticResolver always returns the same country.
type StaticResolver string

func (s StaticResolver) Resolve(string) string {
	if s == "" {
		return UnknownCountry
	}
	return string(s)
}

type countryRecord struct {
	Country struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	RegisteredCountry struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"registered_country"`
}

// MaxMindResolver looks addresses up in a GeoIP2 or GeoLite2 country or
// city database. Addresses the database does not know go to fallback.
type MaxMindResolver struct {
	db       *maxminddb.Reader
	fallback GeographyResolver
}

// OpenMaxMind opens the mmdb file at path. A nil fallback resolves misses
// to UnknownCountry.
func OpenMaxMind(path string, fallback GeographyResolver) (*MaxMindResolver, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	if !strings.Contains(db.Metadata.DatabaseType, "Country") && !strings.Contains(db.Metadata.DatabaseType, "City") {
		db.Close()
		return nil, fmt.Errorf("geoip database %s has type %q, want a country or city database", path, db.Metadata.DatabaseType)
	}
	if fallback == nil {
		fallback = StaticResolver(UnknownCountry)
	}
	return &MaxMindResolver{db: db, fallback: fallback}, nil
}

func (m *MaxMindResolver) Resolve(ip string) string {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return m.fallback.Resolve(ip)
	}
	var rec countryRecord
	if err := m.db.Lookup(addr, &rec); err != nil {
		return m.fallback.Resolve(ip)
	}
	if name := rec.Country.Names["en"]; name != "" {
		return name
	}
	if name := rec.RegisteredCountry.Names["en"]; name != "" {
		return name
	}
	return m.fallback.Resolve(ip)
}

// Close releases the database.
func (m *MaxMindResolver) Close() error {
	return m.db.Close()
}
