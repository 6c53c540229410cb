// Command shopbooks inspects loan amortization offline: full schedule
// tables and single payment splits, without touching the database.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"shopbooks/pkg/amortize"
)

const dateLayout = "2006-01-02"

type termFlags struct {
	principal       string
	ratePercent     string
	termMonths      int
	origination     string
	firstPayment    string
	escrowTaxes     string
	escrowInsurance string
}

func (f *termFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.principal, "principal", "", "Amount financed (required)")
	cmd.Flags().StringVar(&f.ratePercent, "rate", "", "Annual interest rate percent (required)")
	cmd.Flags().IntVar(&f.termMonths, "term", 0, "Term in months (required)")
	cmd.Flags().StringVar(&f.origination, "origination", "", "Origination date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.firstPayment, "first-payment", "", "First payment date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.escrowTaxes, "escrow-taxes", "0", "Monthly escrow for taxes")
	cmd.Flags().StringVar(&f.escrowInsurance, "escrow-insurance", "0", "Monthly escrow for insurance")
	cobra.CheckErr(cmd.MarkFlagRequired("principal"))
	cobra.CheckErr(cmd.MarkFlagRequired("rate"))
	cobra.CheckErr(cmd.MarkFlagRequired("term"))
	cobra.CheckErr(cmd.MarkFlagRequired("origination"))
}

func (f *termFlags) toTerms() (amortize.LoanTerms, error) {
	principal, err := decimal.NewFromString(f.principal)
	if err != nil {
		return amortize.LoanTerms{}, fmt.Errorf("invalid principal: %w", err)
	}
	rate, err := decimal.NewFromString(f.ratePercent)
	if err != nil {
		return amortize.LoanTerms{}, fmt.Errorf("invalid rate: %w", err)
	}
	origination, err := time.Parse(dateLayout, f.origination)
	if err != nil {
		return amortize.LoanTerms{}, fmt.Errorf("invalid origination date: %w", err)
	}
	taxes, err := decimal.NewFromString(f.escrowTaxes)
	if err != nil {
		return amortize.LoanTerms{}, fmt.Errorf("invalid escrow taxes: %w", err)
	}
	insurance, err := decimal.NewFromString(f.escrowInsurance)
	if err != nil {
		return amortize.LoanTerms{}, fmt.Errorf("invalid escrow insurance: %w", err)
	}

	terms := amortize.LoanTerms{
		OriginalPrincipal:      principal,
		AnnualRatePercent:      rate,
		TermMonths:             f.termMonths,
		OriginationDate:        origination,
		MonthlyEscrowTaxes:     taxes,
		MonthlyEscrowInsurance: insurance,
	}
	if f.firstPayment != "" {
		first, err := time.Parse(dateLayout, f.firstPayment)
		if err != nil {
			return amortize.LoanTerms{}, fmt.Errorf("invalid first payment date: %w", err)
		}
		terms.FirstPaymentDate = &first
	}
	return terms, nil
}

func newScheduleCmd() *cobra.Command {
	var flags termFlags

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the full amortization table for a loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			terms, err := flags.toTerms()
			if err != nil {
				return err
			}
			entries, err := amortize.Schedule(terms)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "#\tDue\tPayment\tPrincipal\tInterest\tBalance\t")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
					e.Period, e.DueDate.Format(dateLayout),
					e.Payment.StringFixed(2), e.Principal.StringFixed(2),
					e.Interest.StringFixed(2), e.RemainingBalance.StringFixed(2))
			}
			return w.Flush()
		},
	}
	flags.register(cmd)
	return cmd
}

func newSplitCmd() *cobra.Command {
	var flags termFlags
	var paymentDate, amount string

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Compute the PITI split for one payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			terms, err := flags.toTerms()
			if err != nil {
				return err
			}
			date, err := time.Parse(dateLayout, paymentDate)
			if err != nil {
				return fmt.Errorf("invalid payment date: %w", err)
			}
			total, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}

			split, err := amortize.ComputeMortgageSplit(terms, amortize.PaymentQuery{
				PaymentDate:        date,
				TotalPaymentAmount: total,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Payment #%d\n", split.PaymentNumber)
			fmt.Fprintf(out, "  Principal:        %s\n", split.Principal.StringFixed(2))
			fmt.Fprintf(out, "  Interest:         %s\n", split.Interest.StringFixed(2))
			fmt.Fprintf(out, "  Escrow taxes:     %s\n", split.EscrowTaxes.StringFixed(2))
			fmt.Fprintf(out, "  Escrow insurance: %s\n", split.EscrowInsurance.StringFixed(2))
			fmt.Fprintf(out, "  Total:            %s\n", split.Total().StringFixed(2))
			if split.EscrowInferred {
				fmt.Fprintln(out, "  (escrow inferred)")
			}
			for _, warning := range split.Warnings {
				fmt.Fprintf(out, "  ! %s\n", warning)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&paymentDate, "date", "", "Payment date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "Total cash paid (required)")
	cobra.CheckErr(cmd.MarkFlagRequired("date"))
	cobra.CheckErr(cmd.MarkFlagRequired("amount"))
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:           "shopbooks",
		Short:         "Bookkeeping utilities for loan amortization",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newSplitCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
