package aggregate

import (
	"sort"
	"strings"

	"github.com/gyeh/logstats/internal/model"
)

// ConversionPages are the resources whose visit counts as a conversion.
var ConversionPages = []string{"/scheduledemo.php", "/contact.php", "/virtual-assistant.php"}

// conversionPage returns the conversion page resource hits, matching
// case-insensitively anywhere in the path, or "".
func conversionPage(resource string) string {
	r := strings.ToLower(resource)
	for _, p := range ConversionPages {
		if strings.Contains(r, p) {
			return p
		}
	}
	return ""
}

type visitorSet map[string]struct{}

func (s visitorSet) add(ip string) { s[ip] = struct{}{} }

// Conversions measures how many distinct visitors reached a conversion
// page, overall, per country (top 10 by rate) and per day.
func Conversions(records []model.LogRecord) model.ConversionReport {
	return guarded(
		func() model.ConversionReport { return conversions(records) },
		func() model.ConversionReport { return model.ConversionReport{} },
	)
}

func conversions(records []model.LogRecord) model.ConversionReport {
	all, converted := visitorSet{}, visitorSet{}
	byPage := map[string]int{}
	countryAll := map[string]visitorSet{}
	countryConv := map[string]visitorSet{}
	dayAll := map[string]visitorSet{}
	dayConv := map[string]int{}

	for i := range records {
		r := &records[i]
		country := r.CountryOr(model.UnknownLabel)
		day := r.Timestamp.Format(dateLayout)

		all.add(r.IPAddress)
		if countryAll[country] == nil {
			countryAll[country] = visitorSet{}
		}
		countryAll[country].add(r.IPAddress)
		if dayAll[day] == nil {
			dayAll[day] = visitorSet{}
		}
		dayAll[day].add(r.IPAddress)

		page := conversionPage(r.Resource)
		if page == "" {
			continue
		}
		byPage[page]++
		converted.add(r.IPAddress)
		if countryConv[country] == nil {
			countryConv[country] = visitorSet{}
		}
		countryConv[country].add(r.IPAddress)
		dayConv[day]++
	}

	rep := model.ConversionReport{
		TotalVisitors:      len(all),
		ConvertingVisitors: len(converted),
		ConversionRate:     percent(len(converted), len(all)),
		ByPage:             make([]model.PageCount, 0, len(ConversionPages)),
		ByCountry:          []model.ConversionRate{},
		ByDate:             make([]model.ConversionRate, 0, len(dayAll)),
	}
	for _, p := range ConversionPages {
		rep.ByPage = append(rep.ByPage, model.PageCount{Resource: p, Count: byPage[p]})
	}

	for c, conv := range countryConv {
		visitors := len(countryAll[c])
		rep.ByCountry = append(rep.ByCountry, model.ConversionRate{
			Key:         c,
			Visitors:    visitors,
			Conversions: len(conv),
			Rate:        percent(len(conv), visitors),
		})
	}
	sort.Slice(rep.ByCountry, func(i, j int) bool {
		a, b := rep.ByCountry[i], rep.ByCountry[j]
		if a.Rate != b.Rate {
			return a.Rate > b.Rate
		}
		return a.Key < b.Key
	})
	if len(rep.ByCountry) > TopCountries {
		rep.ByCountry = rep.ByCountry[:TopCountries]
	}

	for d, v := range dayAll {
		rep.ByDate = append(rep.ByDate, model.ConversionRate{
			Key:         d,
			Visitors:    len(v),
			Conversions: dayConv[d],
			Rate:        percent(dayConv[d], len(v)),
		})
	}
	sort.Slice(rep.ByDate, func(i, j int) bool { return rep.ByDate[i].Key < rep.ByDate[j].Key })
	return rep
}
