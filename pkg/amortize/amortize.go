// Package amortize computes fixed-rate amortization schedules and the
// principal/interest/escrow decomposition of individual mortgage payments.
// All functions are pure and safe for concurrent use.
package amortize

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	two     = decimal.NewFromInt(2)

	// reconcileTolerance is the maximum difference, in currency units,
	// between a computed split and the actual cash paid before the split
	// is considered out of balance.
	reconcileTolerance = decimal.NewFromFloat(0.02)
)

// Warning texts surfaced to callers in PaymentSplit.Warnings.
const (
	WarnFallbackDate   = "Using close/origination date as fallback"
	WarnEscrowInferred = "Escrow inferred from payment difference."
)

// LoanTerms describes a fixed-rate, fixed-term loan as set at origination.
type LoanTerms struct {
	OriginalPrincipal decimal.Decimal `json:"original_principal"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent"`
	TermMonths        int             `json:"term_months"`
	OriginationDate   time.Time       `json:"origination_date"`
	// FirstPaymentDate anchors the schedule. When nil the origination
	// date is used instead and a fallback warning is raised, since the
	// two typically differ by a month.
	FirstPaymentDate       *time.Time      `json:"first_payment_date,omitempty"`
	MonthlyEscrowTaxes     decimal.Decimal `json:"monthly_escrow_taxes"`
	MonthlyEscrowInsurance decimal.Decimal `json:"monthly_escrow_insurance"`
}

// PaymentQuery identifies one actual payment to be decomposed.
type PaymentQuery struct {
	PaymentDate        time.Time       `json:"payment_date"`
	TotalPaymentAmount decimal.Decimal `json:"total_payment_amount"`
}

// ScheduledSplit is the theoretical principal/interest portion of one
// scheduled payment.
type ScheduledSplit struct {
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
}

// PaymentSplit is the full PITI decomposition of an actual payment.
type PaymentSplit struct {
	PaymentNumber   int             `json:"payment_number"`
	Principal       decimal.Decimal `json:"principal"`
	Interest        decimal.Decimal `json:"interest"`
	EscrowTaxes     decimal.Decimal `json:"escrow_taxes"`
	EscrowInsurance decimal.Decimal `json:"escrow_insurance"`
	// EscrowInferred is true when the escrow amounts were back-solved
	// from the payment total rather than taken from the configured
	// monthly amounts.
	EscrowInferred bool     `json:"escrow_inferred"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Total sums all four components of the split.
func (s PaymentSplit) Total() decimal.Decimal {
	return s.Principal.Add(s.Interest).Add(s.EscrowTaxes).Add(s.EscrowInsurance)
}

// ScheduleEntry is one period of a projected amortization table.
type ScheduleEntry struct {
	Period           int             `json:"period"`
	DueDate          time.Time       `json:"due_date"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	Payment          decimal.Decimal `json:"payment"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// InvalidTermsError reports structurally impossible loan terms. No split
// can be produced from them.
type InvalidTermsError struct {
	Reason string
}

func (e *InvalidTermsError) Error() string {
	return "invalid loan terms: " + e.Reason
}

// ValidateTerms checks the structural validity of loan terms.
func ValidateTerms(terms LoanTerms) error {
	if terms.OriginalPrincipal.LessThanOrEqual(decimal.Zero) {
		return &InvalidTermsError{Reason: "principal must be positive"}
	}
	if terms.TermMonths <= 0 {
		return &InvalidTermsError{Reason: "term must be at least one month"}
	}
	if terms.AnnualRatePercent.IsNegative() {
		return &InvalidTermsError{Reason: "rate must not be negative"}
	}
	return nil
}

// monthlyRate converts the nominal annual percent rate to a periodic
// decimal fraction.
func monthlyRate(terms LoanTerms) decimal.Decimal {
	return terms.AnnualRatePercent.Div(hundred).Div(twelve)
}

// levelPayment computes the fixed monthly payment using the standard
// annuity formula. The exponent is evaluated in float64 and the result
// brought back to decimal for monetary arithmetic. A zero-rate loan
// degrades to an even split over the term.
func levelPayment(terms LoanTerms) decimal.Decimal {
	r := monthlyRate(terms)
	if r.IsZero() {
		return terms.OriginalPrincipal.Div(decimal.NewFromInt(int64(terms.TermMonths)))
	}
	rf, _ := r.Float64()
	factor := math.Pow(1+rf, float64(terms.TermMonths))
	payment := terms.OriginalPrincipal.InexactFloat64() * rf * factor / (factor - 1)
	return decimal.NewFromFloat(payment).Round(2)
}

// anchorDate picks the date payment #1 is measured from. The second
// return value is true when the origination date was substituted for a
// missing first payment date.
func anchorDate(terms LoanTerms) (time.Time, bool) {
	if terms.FirstPaymentDate != nil {
		return *terms.FirstPaymentDate, false
	}
	return terms.OriginationDate, true
}

// elapsedWholeMonths counts complete calendar months from one date to
// another. Negative when to precedes from.
func elapsedWholeMonths(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	return months
}

// ComputeScheduledSplit returns the theoretical principal and interest
// portions of payment number n under standard amortization. The payment
// number is clamped to [1, TermMonths]. The balance before payment n is
// found by iterating the amortization recurrence from the first payment,
// so rounding accumulates exactly as it would in a printed table.
func ComputeScheduledSplit(terms LoanTerms, paymentNumber int) (ScheduledSplit, error) {
	if err := ValidateTerms(terms); err != nil {
		return ScheduledSplit{}, err
	}
	if paymentNumber < 1 {
		paymentNumber = 1
	} else if paymentNumber > terms.TermMonths {
		paymentNumber = terms.TermMonths
	}

	r := monthlyRate(terms)
	payment := levelPayment(terms)

	balance := terms.OriginalPrincipal
	for n := 1; n < paymentNumber; n++ {
		interest := balance.Mul(r).Round(2)
		balance = balance.Sub(payment.Sub(interest))
	}

	interest := balance.Mul(r).Round(2)
	principal := payment.Sub(interest)
	// The final payment absorbs rounding drift; principal never exceeds
	// what is still owed.
	if principal.GreaterThan(balance) {
		principal = balance
	}
	if principal.IsNegative() {
		principal = decimal.Zero
	}

	return ScheduledSplit{Principal: principal.Round(2), Interest: interest}, nil
}

// Schedule projects the complete amortization table for the given terms.
// Due dates step monthly from the anchor date (first payment date, or
// origination date when absent).
func Schedule(terms LoanTerms) ([]ScheduleEntry, error) {
	if err := ValidateTerms(terms); err != nil {
		return nil, err
	}

	anchor, _ := anchorDate(terms)
	r := monthlyRate(terms)
	payment := levelPayment(terms)

	entries := make([]ScheduleEntry, 0, terms.TermMonths)
	balance := terms.OriginalPrincipal
	for n := 1; n <= terms.TermMonths; n++ {
		interest := balance.Mul(r).Round(2)
		principal := payment.Sub(interest)
		if n == terms.TermMonths || principal.GreaterThan(balance) {
			principal = balance
		}
		balance = balance.Sub(principal)

		entries = append(entries, ScheduleEntry{
			Period:           n,
			DueDate:          anchor.AddDate(0, n-1, 0),
			Principal:        principal.Round(2),
			Interest:         interest,
			Payment:          principal.Add(interest).Round(2),
			RemainingBalance: balance.Round(2),
		})
	}
	return entries, nil
}

// ComputeMortgageSplit decomposes an actual payment into principal,
// interest, and escrow. Escrow comes from the configured monthly amounts
// when the total reconciles against them, and is otherwise back-solved
// from the payment difference. The split is always best-effort: only
// invalid terms fail, every other condition degrades to a warning.
func ComputeMortgageSplit(terms LoanTerms, query PaymentQuery) (PaymentSplit, error) {
	if err := ValidateTerms(terms); err != nil {
		return PaymentSplit{}, err
	}

	var warnings []string
	anchor, fellBack := anchorDate(terms)
	if fellBack {
		warnings = append(warnings, WarnFallbackDate)
	}

	number := elapsedWholeMonths(anchor, query.PaymentDate) + 1
	if number < 1 {
		warnings = append(warnings, fmt.Sprintf(
			"Payment date %s is before the first scheduled payment",
			query.PaymentDate.Format("2006-01-02")))
		number = 1
	} else if number > terms.TermMonths {
		warnings = append(warnings, fmt.Sprintf(
			"Payment date %s is past the end of the %d-month term",
			query.PaymentDate.Format("2006-01-02"), terms.TermMonths))
		number = terms.TermMonths
	}

	scheduled, err := ComputeScheduledSplit(terms, number)
	if err != nil {
		return PaymentSplit{}, err
	}

	split := PaymentSplit{
		PaymentNumber:   number,
		Principal:       scheduled.Principal,
		Interest:        scheduled.Interest,
		EscrowTaxes:     terms.MonthlyEscrowTaxes,
		EscrowInsurance: terms.MonthlyEscrowInsurance,
	}

	if split.Total().Sub(query.TotalPaymentAmount).Abs().GreaterThan(reconcileTolerance) {
		combined := query.TotalPaymentAmount.Sub(scheduled.Principal).Sub(scheduled.Interest)
		if combined.IsNegative() {
			combined = decimal.Zero
		}
		split.EscrowTaxes, split.EscrowInsurance = splitEscrow(
			combined, terms.MonthlyEscrowTaxes, terms.MonthlyEscrowInsurance)
		split.EscrowInferred = true
		warnings = append(warnings, WarnEscrowInferred)
	}

	if delta := split.Total().Sub(query.TotalPaymentAmount).Abs(); delta.GreaterThan(reconcileTolerance) {
		warnings = append(warnings, fmt.Sprintf(
			"Computed split differs from total by %s", delta.StringFixed(2)))
	}

	split.Warnings = warnings
	return split, nil
}

// splitEscrow divides a combined escrow amount between taxes and
// insurance in the ratio of the configured monthly amounts, or evenly
// when no monthly amounts are configured.
func splitEscrow(combined, monthlyTaxes, monthlyInsurance decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	base := monthlyTaxes.Add(monthlyInsurance)
	if base.IsZero() {
		taxes := combined.Div(two).Round(2)
		return taxes, combined.Sub(taxes)
	}
	taxes := combined.Mul(monthlyTaxes).Div(base).Round(2)
	return taxes, combined.Sub(taxes)
}
