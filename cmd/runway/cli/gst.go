package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/runway/internal/tax"
)

func newGSTCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gst",
		Short: "GST calculations",
	}
	cmd.AddCommand(newGSTCalcCommand(s), newGSTReverseCommand(s))
	return cmd
}

func newGSTCalcCommand(s *session) *cobra.Command {
	var rate string
	var interState bool
	cmd := &cobra.Command{
		Use:   "calc <base-amount>",
		Short: "Add GST to a base amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := parseMoney("base_amount", args[0])
			if err != nil {
				return err
			}
			r, err := tax.ParseRate(rate)
			if err != nil {
				return err
			}
			calc, err := tax.Calculate(base, r, interState)
			if err != nil {
				return err
			}
			return s.render(cmd, calc, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Base:  %s\n", s.money(calc.BaseAmount))
				if calc.IsInterState {
					_, _ = fmt.Fprintf(w, "IGST:  %s\n", s.money(calc.IGST))
				} else {
					_, _ = fmt.Fprintf(w, "CGST:  %s\n", s.money(calc.CGST))
					_, _ = fmt.Fprintf(w, "SGST:  %s\n", s.money(calc.SGST))
				}
				_, _ = fmt.Fprintf(w, "Tax:   %s\n", s.money(calc.TaxAmount))
				_, _ = fmt.Fprintf(w, "Total: %s\n", s.money(calc.TotalAmount))
			})
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "18", "GST rate (0, 5, 12, 18, 28)")
	cmd.Flags().BoolVar(&interState, "inter-state", false, "inter-state supply (IGST)")
	return cmd
}

func newGSTReverseCommand(s *session) *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "reverse <total-amount>",
		Short: "Split a tax-inclusive total into base and GST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := parseMoney("total_amount", args[0])
			if err != nil {
				return err
			}
			r, err := tax.ParseRate(rate)
			if err != nil {
				return err
			}
			ex, err := tax.ReverseExtract(total, r)
			if err != nil {
				return err
			}
			return s.render(cmd, ex, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Total: %s\n", s.money(ex.TotalAmount))
				_, _ = fmt.Fprintf(w, "Base:  %s\n", s.money(ex.BaseAmount))
				_, _ = fmt.Fprintf(w, "Tax:   %s\n", s.money(ex.TaxAmount))
			})
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "18", "GST rate (0, 5, 12, 18, 28)")
	return cmd
}
