package enums

import "fmt"

// PaymentProvider identifies how a checkout is settled.
type PaymentProvider string

const (
	PaymentProviderBkash PaymentProvider = "bkash"
	PaymentProviderNagad PaymentProvider = "nagad"
	PaymentProviderCard  PaymentProvider = "card"
	PaymentProviderCash  PaymentProvider = "cash"
)

// PaymentProviders lists accepted providers in display order.
var PaymentProviders = []PaymentProvider{
	PaymentProviderBkash,
	PaymentProviderNagad,
	PaymentProviderCard,
	PaymentProviderCash,
}

func (p PaymentProvider) IsValid() bool {
	for _, candidate := range PaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePaymentProvider(value string) (PaymentProvider, error) {
	p := PaymentProvider(value)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment provider %q", value)
	}
	return p, nil
}
