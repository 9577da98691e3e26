package aggregate

import (
	"sort"

	"github.com/gyeh/logstats/internal/model"
)

// Traffic reports volume, distinct visitors and outcome rates. A request
// succeeded when its status is below 400.
func Traffic(records []model.LogRecord) model.TrafficReport {
	return guarded(
		func() model.TrafficReport { return traffic(records) },
		func() model.TrafficReport {
			return model.TrafficReport{TotalVisits: len(records), ByCategory: map[string]int{}, ByStatus: map[int]int{}}
		},
	)
}

func traffic(records []model.LogRecord) model.TrafficReport {
	rep := model.TrafficReport{
		TotalVisits: len(records),
		ByCategory:  map[string]int{},
		ByStatus:    map[int]int{},
	}
	visitors := map[string]struct{}{}
	daily := map[string]int{}
	var ok, failed int

	for i := range records {
		r := &records[i]
		visitors[r.IPAddress] = struct{}{}
		daily[r.Timestamp.Format(dateLayout)]++
		rep.ByCategory[r.CategoryOr(model.UnknownLabel)]++
		rep.ByStatus[r.StatusCode]++

		if r.StatusCode < 400 {
			ok++
		} else {
			failed++
		}
		if r.StatusCode == 200 {
			rep.SuccessCount++
		}
		if r.StatusCode >= 400 {
			rep.ErrorCount++
		}
	}

	rep.UniqueVisitors = len(visitors)
	rep.SuccessRate = percent(ok, len(records))
	rep.ErrorRate = percent(failed, len(records))
	rep.DailyTraffic = make([]model.DailyCount, 0, len(daily))
	for d, n := range daily {
		rep.DailyTraffic = append(rep.DailyTraffic, model.DailyCount{Date: d, Count: n})
	}
	sort.Slice(rep.DailyTraffic, func(i, j int) bool {
		return rep.DailyTraffic[i].Date < rep.DailyTraffic[j].Date
	})
	return rep
}
