package proration

import (
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/shopspring/decimal"
)

// currencyPrecision is the number of decimal places all monetary
// intermediates are rounded to. Each intermediate is rounded before it
// feeds the next formula so that downstream totals reproduce the exact
// cent-level figures billed historically.
const currencyPrecision = 2

// Calculator computes linear pro-rata charges and credits over the days of
// a billing month. It is pure and owns no state.
type Calculator struct{}

// NewCalculator creates a proration calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// AdditionResult is the outcome of prorating a mid-month addition.
type AdditionResult struct {
	DailyRate     decimal.Decimal `json:"daily_rate"`
	ProRataAmount decimal.Decimal `json:"pro_rata_amount"`
}

// RemovalResult is the outcome of prorating a mid-month removal.
type RemovalResult struct {
	DailyRate    decimal.Decimal `json:"daily_rate"`
	ActualCharge decimal.Decimal `json:"actual_charge"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
}

// CalculateAddition prorates a monthly price over the days remaining in the
// billing month for a seat added mid-cycle.
func (c *Calculator) CalculateAddition(monthlyPrice decimal.Decimal, daysRemaining, daysInMonth int) (*AdditionResult, error) {
	if err := validateInputs(monthlyPrice, daysRemaining, daysInMonth); err != nil {
		return nil, err
	}

	dailyRate := monthlyPrice.Div(decimal.NewFromInt(int64(daysInMonth))).Round(currencyPrecision)
	proRataAmount := dailyRate.Mul(decimal.NewFromInt(int64(daysRemaining))).Round(currencyPrecision)

	return &AdditionResult{
		DailyRate:     dailyRate,
		ProRataAmount: proRataAmount,
	}, nil
}

// CalculateRemoval charges a removed seat for the days it was active this
// month and credits the remainder of the monthly price.
func (c *Calculator) CalculateRemoval(monthlyPrice decimal.Decimal, daysActive, daysInMonth int) (*RemovalResult, error) {
	if err := validateInputs(monthlyPrice, daysActive, daysInMonth); err != nil {
		return nil, err
	}

	dailyRate := monthlyPrice.Div(decimal.NewFromInt(int64(daysInMonth))).Round(currencyPrecision)
	actualCharge := dailyRate.Mul(decimal.NewFromInt(int64(daysActive))).Round(currencyPrecision)
	creditAmount := monthlyPrice.Sub(actualCharge).Round(currencyPrecision)

	return &RemovalResult{
		DailyRate:    dailyRate,
		ActualCharge: actualCharge,
		CreditAmount: creditAmount,
	}, nil
}

func validateInputs(monthlyPrice decimal.Decimal, days, daysInMonth int) error {
	if daysInMonth <= 0 {
		return ierr.NewError("invalid days in month").
			WithHintf("Days in month must be positive, got %d", daysInMonth).
			Mark(ierr.ErrValidation)
	}
	if days < 0 {
		return ierr.NewError("invalid day count").
			WithHintf("Day count must be non negative, got %d", days).
			Mark(ierr.ErrValidation)
	}
	if days > daysInMonth {
		return ierr.NewError("invalid day count").
			WithHintf("Day count %d exceeds days in month %d", days, daysInMonth).
			Mark(ierr.ErrValidation)
	}
	if monthlyPrice.IsNegative() {
		return ierr.NewError("invalid monthly price").
			WithHint("Monthly price must be non negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}
