package validation

import (
	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"
)

// Amount validates a non-negative decimal string, such as "25.99".
// Empty strings pass so that Required decides whether the field is mandatory.
var Amount = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_amount_type", "must be a decimal string")
	}
	if s == "" {
		return nil
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return validation.NewError("validation_amount_format", "must be a decimal number")
	}
	if amount.IsNegative() {
		return validation.NewError("validation_amount_negative", "must not be negative")
	}
	return nil
})
