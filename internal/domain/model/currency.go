package model

import "iran-payment/internal/domain"

// Currency codes accepted by the gateway layer. Iranian gateways settle in
// rial; merchant apps commonly price in toman.
type Currency string

const (
	CurrencyIRR Currency = "IRR" // rial
	CurrencyIRT Currency = "IRT" // toman, 1 IRT == 10 IRR
)

func (c Currency) Valid() bool {
	return c == CurrencyIRR || c == CurrencyIRT
}

// NormalizeAmount converts amount from the transaction's currency into the
// integer unit a gateway expects. Pure function, no state.
func NormalizeAmount(amount int64, from, to Currency) (int64, error) {
	if !from.Valid() || !to.Valid() {
		return 0, domain.ErrInvalidData
	}
	if from == to {
		return amount, nil
	}
	if from == CurrencyIRT { // toman -> rial
		return amount * 10, nil
	}
	// rial -> toman
	return amount / 10, nil
}
