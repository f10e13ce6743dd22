package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no rounding needed",
			in:   "937.50",
			want: "937.5",
		},
		{
			name: "round down",
			in:   "208.333333",
			want: "208.33",
		},
		{
			name: "round up",
			in:   "208.336",
			want: "208.34",
		},
		{
			name: "half rounds to even down",
			in:   "2.125",
			want: "2.12",
		},
		{
			name: "half rounds to even up",
			in:   "2.135",
			want: "2.14",
		},
		{
			name: "negative half to even",
			in:   "-2.125",
			want: "-2.12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.in)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, Round2(d).String())
		})
	}
}

func TestTaxLocationFor(t *testing.T) {
	tests := []struct {
		country string
		want    TaxLocation
	}{
		{country: "NL", want: TaxLocationNL},
		{country: "DE", want: TaxLocationEU},
		{country: "BE", want: TaxLocationEU},
		{country: "UK", want: TaxLocationEU},
		{country: "CH", want: TaxLocationEU},
		{country: "NO", want: TaxLocationEU},
		{country: "US", want: TaxLocationWorld},
		{country: "NG", want: TaxLocationWorld},
		{country: "", want: TaxLocationWorld},
	}

	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			assert.Equal(t, tt.want, TaxLocationFor(tt.country))
		})
	}
}

func TestTaxRateFor(t *testing.T) {
	type args struct {
		companyCountry string
		profileCountry string
	}

	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "dutch company",
			args: args{companyCountry: "NL", profileCountry: "US"},
			want: "21",
		},
		{
			name: "company country wins over profile",
			args: args{companyCountry: "DE", profileCountry: "NL"},
			want: "0",
		},
		{
			name: "falls back to profile country",
			args: args{companyCountry: "", profileCountry: "NL"},
			want: "21",
		},
		{
			name: "non-NL everywhere",
			args: args{companyCountry: "", profileCountry: "US"},
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TaxRateFor(tt.args.companyCountry, tt.args.profileCountry)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestVATCode(t *testing.T) {
	assert.Equal(t, VATCodeDomestic, VATCode(TaxLocationNL))
	assert.Equal(t, VATCodeIntraEU, VATCode(TaxLocationEU))
	assert.Equal(t, VATCodeOutsideScope, VATCode(TaxLocationWorld))
}
