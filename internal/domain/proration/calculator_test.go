package proration

import (
	"testing"

	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateAddition(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name          string
		monthlyPrice  decimal.Decimal
		daysRemaining int
		daysInMonth   int
		wantDaily     string
		wantProRata   string
	}{
		{
			name:          "half month at 30.00",
			monthlyPrice:  decimal.NewFromFloat(30.00),
			daysRemaining: 15,
			daysInMonth:   30,
			wantDaily:     "1",
			wantProRata:   "15",
		},
		{
			name:          "full month remaining",
			monthlyPrice:  decimal.NewFromFloat(30.00),
			daysRemaining: 30,
			daysInMonth:   30,
			wantDaily:     "1",
			wantProRata:   "30",
		},
		{
			name:          "no days remaining",
			monthlyPrice:  decimal.NewFromFloat(30.00),
			daysRemaining: 0,
			daysInMonth:   30,
			wantDaily:     "1",
			wantProRata:   "0",
		},
		{
			name:          "daily rate rounds before multiplication",
			monthlyPrice:  decimal.NewFromFloat(10.00),
			daysRemaining: 31,
			daysInMonth:   31,
			// 10/31 = 0.3225..., rounded to 0.32 before multiplying
			wantDaily:   "0.32",
			wantProRata: "9.92",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.CalculateAddition(tt.monthlyPrice, tt.daysRemaining, tt.daysInMonth)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDaily, got.DailyRate.String())
			assert.Equal(t, tt.wantProRata, got.ProRataAmount.String())
		})
	}
}

func TestCalculateRemoval(t *testing.T) {
	calc := NewCalculator()

	got, err := calc.CalculateRemoval(decimal.NewFromFloat(30.00), 10, 30)
	require.NoError(t, err)
	assert.Equal(t, "1", got.DailyRate.String())
	assert.Equal(t, "10", got.ActualCharge.String())
	assert.Equal(t, "20", got.CreditAmount.String())
}

func TestCalculateRemovalRoundsEachStep(t *testing.T) {
	calc := NewCalculator()

	// 10/31 rounds to 0.32; 0.32*20 = 6.40; credit = 10 - 6.40 = 3.60
	got, err := calc.CalculateRemoval(decimal.NewFromFloat(10.00), 20, 31)
	require.NoError(t, err)
	assert.Equal(t, "0.32", got.DailyRate.String())
	assert.Equal(t, "6.4", got.ActualCharge.String())
	assert.Equal(t, "3.6", got.CreditAmount.String())
}

func TestCalculatorInvalidInputs(t *testing.T) {
	calc := NewCalculator()

	_, err := calc.CalculateAddition(decimal.NewFromFloat(30.00), 15, 0)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	_, err = calc.CalculateRemoval(decimal.NewFromFloat(30.00), 10, -1)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	_, err = calc.CalculateAddition(decimal.NewFromFloat(30.00), 31, 30)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	_, err = calc.CalculateAddition(decimal.NewFromFloat(-1), 5, 30)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
