package aggregate

import (
	"sort"

	"github.com/gyeh/logstats/internal/model"
)

// TopCountries bounds the country x category breakdown.
const TopCountries = 10

// Geography counts visits per country, most visited first, and breaks the
// top countries down by page category.
func Geography(records []model.LogRecord) model.GeoReport {
	return guarded(
		func() model.GeoReport { return geography(records) },
		func() model.GeoReport {
			return model.GeoReport{Countries: []model.CountryCount{}, CountryCategories: map[string]map[string]int{}}
		},
	)
}

func geography(records []model.LogRecord) model.GeoReport {
	counts := map[string]int{}
	for i := range records {
		counts[records[i].CountryOr(model.UnknownLabel)]++
	}

	rep := model.GeoReport{
		Countries:         make([]model.CountryCount, 0, len(counts)),
		CountryCategories: map[string]map[string]int{},
	}
	for c, n := range counts {
		rep.Countries = append(rep.Countries, model.CountryCount{Country: c, Count: n})
	}
	sort.Slice(rep.Countries, func(i, j int) bool {
		a, b := rep.Countries[i], rep.Countries[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Country < b.Country
	})

	top := map[string]bool{}
	for i := 0; i < len(rep.Countries) && i < TopCountries; i++ {
		top[rep.Countries[i].Country] = true
		rep.CountryCategories[rep.Countries[i].Country] = map[string]int{}
	}
	for i := range records {
		c := records[i].CountryOr(model.UnknownLabel)
		if top[c] {
			rep.CountryCategories[c][records[i].CategoryOr(model.UnknownLabel)]++
		}
	}
	return rep
}
