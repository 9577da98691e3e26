package enrich

import "strings"

// CategoryOther is assigned when no pattern matches.
const CategoryOther = "other"

type categoryPattern struct {
	substr   string
	category string
}

// categoryPatterns are tested in order against the lower-cased resource.
// Patterns are substrings and overlap, so the order decides ties.
var categoryPatterns = []categoryPattern{
	{"index.html", "home"},
	{"event.php", "events"},
	{"scheduledemo.php", "demo"},
	{"prototype.php", "product"},
	{"virtual-assistant.php", "product"},
	{"contact.php", "contact"},
	{"about.html", "about"},
	{"images/", "static"},
	{"css/", "static"},
	{"js/", "static"},
	{"api/", "api"},
}

// Categories returns every category Categorize can produce, in pattern
// order, followed by CategoryOther.
func Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range categoryPatterns {
		if !seen[p.category] {
			seen[p.category] = true
			out = append(out, p.category)
		}
	}
	return append(out, CategoryOther)
}

// Categorize maps a request path to its page category.
func Categorize(resource string) string {
	r := strings.ToLower(resource)
	for _, p := range categoryPatterns {
		if strings.Contains(r, p.substr) {
			return p.category
		}
	}
	return CategoryOther
}
