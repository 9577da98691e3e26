package aggregate

import (
	"math"

	"github.com/gyeh/logstats/internal/model"
)

// guarded runs build and returns zero() instead if build panics. The
// report functions never fail.
func guarded[T any](build func() T, zero func() T) (out T) {
	defer func() {
		if recover() != nil {
			out = zero()
		}
	}()
	return build()
}

// Summarize counts records along every report dimension. If counting panics
// the zeroed report for len(records) is returned.
func Summarize(records []model.LogRecord) model.AggregateReport {
	return guarded(
		func() model.AggregateReport { return summarize(records) },
		func() model.AggregateReport { return model.NewAggregateReport(len(records)) },
	)
}

func summarize(records []model.LogRecord) model.AggregateReport {
	report := model.NewAggregateReport(len(records))
	for i := range records {
		r := &records[i]
		if r.PageCategory != nil {
			report.ByCategory[*r.PageCategory]++
		}
		if r.Country != nil {
			report.ByCountry[*r.Country]++
		}
		report.ByMethod[r.HTTPMethod]++
		report.ByHour[r.Timestamp.Hour()]++
		report.ByDay[r.Timestamp.Weekday().String()]++
		report.ByStatus[r.StatusCode]++
	}
	return report
}

// percent returns part/whole as a percentage rounded to two decimals, or 0
// when whole is 0.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)*10000/float64(whole)) / 100
}

const dateLayout = "2006-01-02"
