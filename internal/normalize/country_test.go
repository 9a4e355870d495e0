package normalize_test

import (
	"testing"

	"github.com/unifarma/shipping-service/internal/normalize"

	"github.com/stretchr/testify/assert"
)

func TestCountryCode(t *testing.T) {
	testCases := []struct {
		name string
		want string
	}{
		{"Saudi Arabia", "KSA"},
		{"saudi arabia", "KSA"},
		{"KSA", "KSA"},
		{"United Arab Emirates", "UAE"},
		{"UAE", "UAE"},
		{"Jordan", "JORDAN"},
		{"Lebanon", "LEBANON"},
		{"Bahrain", "BAHRAIN"},
		{"Qatar", "QATAR"},
		{"Kuwait", "KUWAIT"},
		{" Kuwait ", "KUWAIT"},
		{"Germany", "DE"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalize.CountryCode(tc.name))
		})
	}
}
