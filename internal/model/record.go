package model

import (
	"time"
)

// Defaults substituted for a required field the source could not supply.
const (
	DefaultIPAddress  = "0.0.0.0"
	DefaultHTTPMethod = "GET"
	DefaultResource   = "/index.html"
	DefaultStatusCode = 200
)

// UnknownLabel stands in for an unset country or category in reports.
const UnknownLabel = "Unknown"

// LogRecord is the canonical access-log entry. The five required fields are
// always populated once a parser has emitted the record; Country and
// PageCategory stay nil until enrichment.
type LogRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	IPAddress    string    `json:"ip_address"`
	HTTPMethod   string    `json:"http_method"`
	Resource     string    `json:"resource"`
	StatusCode   int       `json:"status_code"`
	Country      *string   `json:"country"`
	PageCategory *string   `json:"page_category"`
}

// DefaultRecord returns a record with every required field set to its default.
func DefaultRecord(now time.Time) LogRecord {
	return LogRecord{
		Timestamp:  now,
		IPAddress:  DefaultIPAddress,
		HTTPMethod: DefaultHTTPMethod,
		Resource:   DefaultResource,
		StatusCode: DefaultStatusCode,
	}
}

// Flat returns the record as a mapping keyed by the seven canonical field
// names. Unset optional fields map to nil.
func (r *LogRecord) Flat() map[string]any {
	m := map[string]any{
		FieldTimestamp:    r.Timestamp,
		FieldIPAddress:    r.IPAddress,
		FieldHTTPMethod:   r.HTTPMethod,
		FieldResource:     r.Resource,
		FieldStatusCode:   r.StatusCode,
		FieldCountry:      nil,
		FieldPageCategory: nil,
	}
	if r.Country != nil {
		m[FieldCountry] = *r.Country
	}
	if r.PageCategory != nil {
		m[FieldPageCategory] = *r.PageCategory
	}
	return m
}

// CountryOr returns the enriched country or fallback when unset.
func (r *LogRecord) CountryOr(fallback string) string {
	if r.Country == nil {
		return fallback
	}
	return *r.Country
}

// CategoryOr returns the enriched page category or fallback when unset.
func (r *LogRecord) CategoryOr(fallback string) string {
	if r.PageCategory == nil {
		return fallback
	}
	return *r.PageCategory
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
