package amortize

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(t time.Time) *time.Time { return &t }

func thirtyYearTerms() LoanTerms {
	return LoanTerms{
		OriginalPrincipal: decimal.NewFromInt(200_000),
		AnnualRatePercent: decimal.NewFromInt(6),
		TermMonths:        360,
		OriginationDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		FirstPaymentDate:  datePtr(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestComputeScheduledSplit_FirstPayment(t *testing.T) {
	terms := thirtyYearTerms()

	split, err := ComputeScheduledSplit(terms, 1)
	require.NoError(t, err)

	// First month interest = 200000 * 0.005 = $1000.00 exactly.
	assert.True(t, split.Interest.Equal(decimal.NewFromInt(1000)),
		"first interest should be $1000.00, got %s", split.Interest)

	// Level payment for $200K at 6% over 360 months is ~$1199.10.
	expectedPrincipal := decimal.NewFromFloat(199.10)
	assert.True(t, split.Principal.Sub(expectedPrincipal).Abs().LessThan(decimal.NewFromFloat(0.02)),
		"first principal should be approximately $199.10, got %s", split.Principal)
}

func TestComputeScheduledSplit_LevelPaymentHolds(t *testing.T) {
	terms := LoanTerms{
		OriginalPrincipal: decimal.NewFromInt(10_000),
		AnnualRatePercent: decimal.NewFromInt(8),
		TermMonths:        24,
		OriginationDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	first, err := ComputeScheduledSplit(terms, 1)
	require.NoError(t, err)
	payment := first.Principal.Add(first.Interest)

	// Every payment except possibly the last reproduces the level payment.
	for n := 2; n < terms.TermMonths; n++ {
		split, err := ComputeScheduledSplit(terms, n)
		require.NoError(t, err)
		assert.True(t, split.Principal.Add(split.Interest).Equal(payment),
			"payment %d should equal level payment %s, got %s",
			n, payment, split.Principal.Add(split.Interest))
	}
}

func TestComputeScheduledSplit_ZeroRate(t *testing.T) {
	terms := LoanTerms{
		OriginalPrincipal: decimal.NewFromInt(12_000),
		AnnualRatePercent: decimal.Zero,
		TermMonths:        12,
		OriginationDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for n := 1; n <= terms.TermMonths; n++ {
		split, err := ComputeScheduledSplit(terms, n)
		require.NoError(t, err)
		assert.True(t, split.Interest.Equal(decimal.Zero), "interest should be zero at 0%% rate")
		assert.True(t, split.Principal.Equal(decimal.NewFromInt(1000)),
			"payment %d principal should be $1000, got %s", n, split.Principal)
	}
}

func TestComputeScheduledSplit_Idempotent(t *testing.T) {
	terms := thirtyYearTerms()

	a, err := ComputeScheduledSplit(terms, 180)
	require.NoError(t, err)
	b, err := ComputeScheduledSplit(terms, 180)
	require.NoError(t, err)

	assert.True(t, a.Principal.Equal(b.Principal))
	assert.True(t, a.Interest.Equal(b.Interest))
}

func TestComputeScheduledSplit_ClampsPaymentNumber(t *testing.T) {
	terms := thirtyYearTerms()

	low, err := ComputeScheduledSplit(terms, -5)
	require.NoError(t, err)
	first, err := ComputeScheduledSplit(terms, 1)
	require.NoError(t, err)
	assert.True(t, low.Principal.Equal(first.Principal))

	high, err := ComputeScheduledSplit(terms, 9999)
	require.NoError(t, err)
	last, err := ComputeScheduledSplit(terms, terms.TermMonths)
	require.NoError(t, err)
	assert.True(t, high.Principal.Equal(last.Principal))
	assert.False(t, last.Principal.IsNegative(), "final principal must not go negative")
}

func TestComputeScheduledSplit_InvalidTerms(t *testing.T) {
	cases := map[string]LoanTerms{
		"zero term": {
			OriginalPrincipal: decimal.NewFromInt(1000),
			AnnualRatePercent: decimal.NewFromInt(5),
			TermMonths:        0,
		},
		"negative principal": {
			OriginalPrincipal: decimal.NewFromInt(-100),
			AnnualRatePercent: decimal.NewFromInt(5),
			TermMonths:        12,
		},
		"negative rate": {
			OriginalPrincipal: decimal.NewFromInt(1000),
			AnnualRatePercent: decimal.NewFromInt(-1),
			TermMonths:        12,
		},
	}

	for name, terms := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeScheduledSplit(terms, 1)
			require.Error(t, err)
			var invalid *InvalidTermsError
			assert.True(t, errors.As(err, &invalid), "expected InvalidTermsError, got %v", err)
		})
	}
}

func TestComputeMortgageSplit_InferredEscrow(t *testing.T) {
	terms := thirtyYearTerms()
	query := PaymentQuery{
		PaymentDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromInt(1500),
	}

	split, err := ComputeMortgageSplit(terms, query)
	require.NoError(t, err)

	assert.Equal(t, 1, split.PaymentNumber)
	assert.True(t, split.Interest.Equal(decimal.NewFromInt(1000)))
	assert.True(t, split.EscrowInferred)
	assert.Contains(t, split.Warnings, WarnEscrowInferred)

	// 1500 - 1199.10 = 300.90 of escrow, split 50/50 since no monthly
	// amounts are configured.
	assert.True(t, split.EscrowTaxes.Equal(decimal.NewFromFloat(150.45)),
		"escrow taxes should be $150.45, got %s", split.EscrowTaxes)
	assert.True(t, split.EscrowInsurance.Equal(decimal.NewFromFloat(150.45)),
		"escrow insurance should be $150.45, got %s", split.EscrowInsurance)

	// The inferred split reconciles, so no mismatch warning is added.
	assert.True(t, split.Total().Sub(query.TotalPaymentAmount).Abs().LessThanOrEqual(decimal.NewFromFloat(0.02)))
}

func TestComputeMortgageSplit_ExactLevelPayment(t *testing.T) {
	terms := thirtyYearTerms()
	query := PaymentQuery{
		PaymentDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromFloat(1199.10),
	}

	split, err := ComputeMortgageSplit(terms, query)
	require.NoError(t, err)

	assert.False(t, split.EscrowInferred)
	assert.True(t, split.EscrowTaxes.Equal(decimal.Zero))
	assert.True(t, split.EscrowInsurance.Equal(decimal.Zero))
	assert.Empty(t, split.Warnings)
}

func TestComputeMortgageSplit_ProportionalEscrow(t *testing.T) {
	terms := thirtyYearTerms()
	terms.MonthlyEscrowTaxes = decimal.NewFromInt(300)
	terms.MonthlyEscrowInsurance = decimal.NewFromInt(100)

	// 1199.10 + 400 fixed escrow = 1599.10 expected; pay 1799.10 instead
	// so 600 of escrow is inferred, split 3:1.
	query := PaymentQuery{
		PaymentDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromFloat(1799.10),
	}

	split, err := ComputeMortgageSplit(terms, query)
	require.NoError(t, err)

	require.True(t, split.EscrowInferred)
	assert.True(t, split.EscrowTaxes.Equal(decimal.NewFromInt(450)),
		"escrow taxes should be $450, got %s", split.EscrowTaxes)
	assert.True(t, split.EscrowInsurance.Equal(decimal.NewFromInt(150)),
		"escrow insurance should be $150, got %s", split.EscrowInsurance)
}

func TestComputeMortgageSplit_FallbackDate(t *testing.T) {
	terms := thirtyYearTerms()
	terms.FirstPaymentDate = nil

	split, err := ComputeMortgageSplit(terms, PaymentQuery{
		PaymentDate:        time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromFloat(1199.10),
	})
	require.NoError(t, err)

	assert.Contains(t, split.Warnings, WarnFallbackDate)
	assert.Equal(t, 3, split.PaymentNumber, "number anchors on the origination date")
}

func TestComputeMortgageSplit_OutOfRangeDates(t *testing.T) {
	terms := thirtyYearTerms()

	early, err := ComputeMortgageSplit(terms, PaymentQuery{
		PaymentDate:        time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromFloat(1199.10),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, early.PaymentNumber)
	assert.NotEmpty(t, early.Warnings)

	late, err := ComputeMortgageSplit(terms, PaymentQuery{
		PaymentDate:        time.Date(2090, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromFloat(1199.10),
	})
	require.NoError(t, err)
	assert.Equal(t, terms.TermMonths, late.PaymentNumber)
	assert.NotEmpty(t, late.Warnings)
}

func TestComputeMortgageSplit_ReportsMismatch(t *testing.T) {
	terms := thirtyYearTerms()

	// A total below principal+interest cannot reconcile: escrow clamps
	// to zero and the residual is reported, never dropped.
	split, err := ComputeMortgageSplit(terms, PaymentQuery{
		PaymentDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromInt(900),
	})
	require.NoError(t, err)

	assert.True(t, split.EscrowInferred)
	assert.True(t, split.EscrowTaxes.Equal(decimal.Zero))
	assert.True(t, split.EscrowInsurance.Equal(decimal.Zero))

	withinTolerance := split.Total().Sub(decimal.NewFromInt(900)).Abs().LessThanOrEqual(decimal.NewFromFloat(0.02))
	hasMismatchWarning := false
	for _, w := range split.Warnings {
		if strings.HasPrefix(w, "Computed split differs") {
			hasMismatchWarning = true
		}
	}
	assert.True(t, withinTolerance || hasMismatchWarning,
		"split must balance or carry a mismatch warning: %v", split.Warnings)
	assert.True(t, hasMismatchWarning, "a $299.10 shortfall must be reported")
}

func TestSchedule_ThirtyYearMortgage(t *testing.T) {
	terms := LoanTerms{
		OriginalPrincipal: decimal.NewFromInt(100_000),
		AnnualRatePercent: decimal.NewFromInt(5),
		TermMonths:        360,
		OriginationDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		FirstPaymentDate:  datePtr(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
	}

	schedule, err := Schedule(terms)
	require.NoError(t, err)
	require.Len(t, schedule, 360)

	first := schedule[0]
	assert.Equal(t, 1, first.Period)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), first.DueDate)

	// Monthly payment for $100K at 5% over 30 years is ~$536.82.
	assert.True(t, first.Payment.Sub(decimal.NewFromFloat(536.82)).Abs().LessThan(decimal.NewFromFloat(0.02)),
		"first payment should be approximately $536.82, got %s", first.Payment)

	last := schedule[359]
	assert.True(t, last.RemainingBalance.Equal(decimal.Zero),
		"final balance should be zero, got %s", last.RemainingBalance)

	totalPrincipal := decimal.Zero
	for _, e := range schedule {
		totalPrincipal = totalPrincipal.Add(e.Principal)
	}
	assert.True(t, totalPrincipal.Sub(terms.OriginalPrincipal).Abs().LessThan(decimal.NewFromFloat(0.01)),
		"total principal should equal the amount financed, got %s", totalPrincipal)
}

func TestSchedule_InvalidTerms(t *testing.T) {
	_, err := Schedule(LoanTerms{
		OriginalPrincipal: decimal.Zero,
		TermMonths:        12,
	})
	var invalid *InvalidTermsError
	require.True(t, errors.As(err, &invalid))
}
