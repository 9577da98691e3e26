package model

// Field describes one column of the canonical record.
type Field struct {
	Name     string // canonical name, e.g. "ip_address"
	Required bool   // emitted on every record, defaulted when the source lacks it
}

// Canonical field names.
const (
	FieldTimestamp    = "timestamp"
	FieldIPAddress    = "ip_address"
	FieldHTTPMethod   = "http_method"
	FieldResource     = "resource"
	FieldStatusCode   = "status_code"
	FieldCountry      = "country"
	FieldPageCategory = "page_category"
)

// AllFields lists the canonical fields in export column order.
var AllFields = []Field{
	{Name: FieldTimestamp, Required: true},
	{Name: FieldIPAddress, Required: true},
	{Name: FieldHTTPMethod, Required: true},
	{Name: FieldResource, Required: true},
	{Name: FieldStatusCode, Required: true},
	{Name: FieldCountry},
	{Name: FieldPageCategory},
}

// RecordFields returns the canonical field names in export column order.
func RecordFields() []string {
	names := make([]string, len(AllFields))
	for i, f := range AllFields {
		names[i] = f.Name
	}
	return names
}

// RequiredFields returns the names of the fields every parsed record carries.
func RequiredFields() []string {
	var names []string
	for _, f := range AllFields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// FieldByName returns the Field for the given name, or ok=false.
func FieldByName(name string) (Field, bool) {
	for _, f := range AllFields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
