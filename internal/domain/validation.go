package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// minorUnitFactor converts between major currency units and the int64 minor
// units the ledger stores (two decimal places for all supported currencies).
var minorUnitFactor = decimal.NewFromInt(100)

// maxMinorUnits is the largest amount representable in the ledger's int64
// minor units. IntPart on anything larger keeps the low 64 bits, so the
// bound must be checked before converting.
var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a positive decimal string such as "150.00" into minor
// units. At most two decimal places are accepted.
func ParseAmount(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("%w: %q has more than two decimal places", ErrInvalidAmount, value)
	}
	minor := d.Mul(minorUnitFactor)
	if minor.Cmp(maxMinorUnits) > 0 {
		return 0, fmt.Errorf("%w: %q exceeds the representable range", ErrInvalidAmount, value)
	}
	return minor.IntPart(), nil
}

// ParseSignedAmount converts a decimal string into minor units, accepting
// zero and negative values in any spelling ("0.0", "-0", "-20.00"). Balance
// fields use this; operation amounts go through ParseAmount.
func ParseSignedAmount(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if d.IsZero() {
		return 0, nil
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("%w: %q has more than two decimal places", ErrInvalidAmount, value)
	}
	minor := d.Mul(minorUnitFactor)
	if minor.Abs().Cmp(maxMinorUnits) > 0 {
		return 0, fmt.Errorf("%w: %q exceeds the representable range", ErrInvalidAmount, value)
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units as a decimal string with two places,
// the inverse of ParseAmount.
func FormatAmount(minorUnits int64) string {
	return decimal.NewFromInt(minorUnits).Div(minorUnitFactor).StringFixed(2)
}

// ValidateCurrency checks that a currency code follows the ISO 4217 shape:
// exactly three uppercase letters.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return nil
}

// Validate rejects malformed requests before any storage access.
func (r *TransactionRequest) Validate() error {
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ValidateCurrency(r.Currency); err != nil {
		return err
	}
	if r.ReferenceID == "" {
		return ErrMissingReference
	}
	switch r.Operation {
	case OperationCredit, OperationDebit, OperationReserve, OperationCapture, OperationReversal:
		if r.DestinationAccountID != nil {
			return fmt.Errorf("%w: destination account only valid for transfers", ErrInvalidOperation)
		}
	case OperationTransfer:
		if r.DestinationAccountID == nil {
			return ErrMissingDestination
		}
		if *r.DestinationAccountID == r.AccountID {
			return ErrSameAccount
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOperation, r.Operation)
	}
	return nil
}
