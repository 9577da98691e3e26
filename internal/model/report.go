package model

// SeededStatusCodes are always present in AggregateReport.ByStatus.
var SeededStatusCodes = []int{200, 301, 302, 404, 500}

// AggregateReport is the per-dimension breakdown of a set of records.
type AggregateReport struct {
	TotalEntries int            `json:"total_entries"`
	ByCategory   map[string]int `json:"by_category"`
	ByCountry    map[string]int `json:"by_country"`
	ByMethod     map[string]int `json:"by_method"`
	ByHour       map[int]int    `json:"by_hour"`
	ByDay        map[string]int `json:"by_day"`
	ByStatus     map[int]int    `json:"by_status"`
}

// NewAggregateReport returns an empty report for total records with the
// common status codes seeded at zero.
func NewAggregateReport(total int) AggregateReport {
	r := AggregateReport{
		TotalEntries: total,
		ByCategory:   map[string]int{},
		ByCountry:    map[string]int{},
		ByMethod:     map[string]int{},
		ByHour:       map[int]int{},
		ByDay:        map[string]int{},
		ByStatus:     make(map[int]int, len(SeededStatusCodes)),
	}
	for _, code := range SeededStatusCodes {
		r.ByStatus[code] = 0
	}
	return r
}

// DailyCount is a visit count for one calendar day (YYYY-MM-DD).
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TrafficReport summarizes volume and outcome rates.
type TrafficReport struct {
	TotalVisits    int            `json:"total_visits"`
	UniqueVisitors int            `json:"unique_visitors"`
	SuccessRate    float64        `json:"success_rate"`
	ErrorRate      float64        `json:"error_rate"`
	SuccessCount   int            `json:"success_count"`
	ErrorCount     int            `json:"error_count"`
	DailyTraffic   []DailyCount   `json:"daily_traffic"`
	ByCategory     map[string]int `json:"by_category"`
	ByStatus       map[int]int    `json:"by_status"`
}

// CountryCount is the number of visits from one country.
type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// GeoReport breaks visits down by country, and by category within the top
// countries.
type GeoReport struct {
	Countries         []CountryCount            `json:"countries"`
	CountryCategories map[string]map[string]int `json:"country_categories"`
}

// PageCount is the number of visits to one resource.
type PageCount struct {
	Resource string `json:"resource"`
	Count    int    `json:"count"`
}

// ConversionRate relates converting visitors to all visitors for one key
// (a country or a date).
type ConversionRate struct {
	Key         string  `json:"key"`
	Visitors    int     `json:"visitors"`
	Conversions int     `json:"conversions"`
	Rate        float64 `json:"rate"`
}

// ConversionReport measures how many visitors reached a conversion page.
type ConversionReport struct {
	TotalVisitors      int              `json:"total_visitors"`
	ConvertingVisitors int              `json:"converting_visitors"`
	ConversionRate     float64          `json:"conversion_rate"`
	ByPage             []PageCount      `json:"by_page"`
	ByCountry          []ConversionRate `json:"by_country"`
	ByDate             []ConversionRate `json:"by_date"`
}
