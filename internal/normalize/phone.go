package normalize

import "strings"

// Dialing codes of the markets the business ships to. Order matters only
// for determinism; at most one code can prefix a stripped number.
var dialingCodes = []struct {
	country string
	code    string
}{
	{"Lebanon", "961"},
	{"Jordan", "962"},
	{"Kuwait", "965"},
	{"Saudi Arabia", "966"},
	{"UAE", "971"},
	{"Bahrain", "973"},
	{"Qatar", "974"},
}

// Countries whose local numbers are 8 digits and conventionally written
// with a leading zero.
var nineDigitCountries = map[string]struct{}{
	"Bahrain": {},
	"Qatar":   {},
	"Kuwait":  {},
}

// Phone converts a raw CRM phone number into the local form carriers
// expect: international prefixes and known dialing codes stripped, and a
// leading 0 re-added for the 8-digit Gulf markets. Pure function.
func Phone(raw, country string) string {
	number := strings.TrimSpace(raw)
	if number == "" {
		return ""
	}

	number = strings.TrimPrefix(number, "+")
	if strings.HasPrefix(number, "00") {
		number = number[2:]
	}

	for _, dc := range dialingCodes {
		if strings.HasPrefix(number, dc.code) {
			number = number[len(dc.code):]
			break
		}
	}

	if _, ok := nineDigitCountries[country]; ok && len(number) == 8 {
		return "0" + number
	}

	return number
}
