package entities

import "time"

// Carrier is a shipping company. Code is the stable lower-case key the
// adapter registry is looked up by.
type Carrier struct {
	ID          int64
	Name        string
	Code        string
	Website     string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AccountType string

const (
	AccountTypeDomestic        AccountType = "domestic"
	AccountTypeInternational   AccountType = "international"
	AccountTypeSpecificCountry AccountType = "specific_country"
)

// Account is a credential and scope bundle for one carrier. Accounts of
// type specific_country only serve destinations in SpecificCountries.
type Account struct {
	ID        int64
	CarrierID int64
	Title     string
	Type      AccountType

	SpecificCountries []string

	Passkey    string
	CustomerID string
	// Default warehouse, used when no WarehouseMapping matches the destination.
	WarehouseID string
	APIBaseURL  string

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServesCountry reports whether a specific_country account covers the destination.
func (a Account) ServesCountry(country string) bool {
	for _, c := range a.SpecificCountries {
		if c == country {
			return true
		}
	}
	return false
}
