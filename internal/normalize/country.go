package normalize

import (
	"strings"

	"github.com/biter777/countries"
)

// Business country codes used as warehouse/SKU mapping keys. The carrier
// data feeds predate ISO codes here, so the core markets keep their
// historical identifiers.
var countryAliases = map[string]string{
	"saudi arabia":         "KSA",
	"ksa":                  "KSA",
	"uae":                  "UAE",
	"united arab emirates": "UAE",
	"jordan":               "JORDAN",
	"lebanon":              "LEBANON",
	"bahrain":              "BAHRAIN",
	"qatar":                "QATAR",
	"kuwait":               "KUWAIT",
}

// CountryCode maps a destination country display name to the mapping-table
// key. Unlisted countries fall back to their ISO alpha-2 code; unknown
// names come back upper-cased as-is so lookups fail loudly downstream.
func CountryCode(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}

	if code, ok := countryAliases[strings.ToLower(trimmed)]; ok {
		return code
	}

	if c := countries.ByName(trimmed); c != countries.Unknown {
		return c.Alpha2()
	}

	return strings.ToUpper(trimmed)
}
