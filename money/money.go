package money

import (
	"github.com/shopspring/decimal"
)

// Amounts are carried with four fractional digits internally. Everything
// crossing a package boundary (invoices, rail calls, ledger entries) is
// rounded to two digits with Round2.
const (
	InternalPlaces = 4
	DisplayPlaces  = 2
)

// CurrencyEUR is the only currency accepted for new invoices.
const CurrencyEUR = "EUR"

// Round2 rounds to two fractional digits using banker's rounding.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(DisplayPlaces)
}

// TaxLocation classifies the billing country for VAT purposes.
type TaxLocation string

const (
	TaxLocationNL    TaxLocation = "NL"
	TaxLocationEU    TaxLocation = "EU"
	TaxLocationWorld TaxLocation = "WORLD"
)

// euCountries is the closed list of billing countries treated as EU for
// VAT classification. UK, IS, LI, NO and CH are included on purpose.
var euCountries = map[string]bool{
	"BE": true, "BG": true, "CZ": true, "DK": true, "DE": true,
	"EE": true, "IE": true, "EL": true, "ES": true, "FR": true,
	"HR": true, "IT": true, "CY": true, "LV": true, "LT": true,
	"LU": true, "HU": true, "MT": true, "AT": true, "PL": true,
	"PT": true, "RO": true, "SI": true, "SK": true, "FI": true,
	"SE": true, "UK": true, "IS": true, "LI": true, "NO": true,
	"CH": true,
}

// TaxLocationFor maps an ISO country code to its tax location.
func TaxLocationFor(country string) TaxLocation {
	switch {
	case country == "NL":
		return TaxLocationNL
	case euCountries[country]:
		return TaxLocationEU
	default:
		return TaxLocationWorld
	}
}

var (
	rateNL   = decimal.NewFromInt(21)
	rateZero = decimal.Zero
)

// TaxRateFor returns the VAT percentage for the effective billing country.
// companyCountry takes precedence over profileCountry when present.
func TaxRateFor(companyCountry, profileCountry string) decimal.Decimal {
	country := companyCountry
	if country == "" {
		country = profileCountry
	}

	if country == "NL" {
		return rateNL
	}

	return rateZero
}

// VATCode selects the ledger VAT code for a tax location.
type Code string

const (
	VATCodeDomestic     Code = "VH"     // NL sales, 21% high rate
	VATCodeIntraEU      Code = "ICP"    // intra-community supply
	VATCodeOutsideScope Code = "EXPORT" // outside EU scope
)

func VATCode(location TaxLocation) Code {
	switch location {
	case TaxLocationNL:
		return VATCodeDomestic
	case TaxLocationEU:
		return VATCodeIntraEU
	default:
		return VATCodeOutsideScope
	}
}
