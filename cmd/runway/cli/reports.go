package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/runway/internal/accounting/reports"
	"github.com/odyssey-erp/runway/internal/app"
)

func newTrialBalanceCommand(s *session) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Aggregate the ledger into a trial balance",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			on, err := parseDate("as-of", asOf, today())
			if err != nil {
				return err
			}
			tb, err := c.Reports.CalculateTrialBalance(cmd.Context(), companyID, on)
			if err != nil {
				return err
			}
			return s.render(cmd, tb, func(w io.Writer) { s.renderTrialBalance(w, tb) })
		}),
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "include entries dated on or before YYYY-MM-DD (default today)")
	return cmd
}

func (s *session) renderTrialBalance(w io.Writer, tb reports.TrialBalance) {
	_, _ = fmt.Fprintf(w, "Trial balance for %s as of %s\n", tb.CompanyID, tb.AsOf.Format("2006-01-02"))
	for _, e := range tb.Entries {
		_, _ = fmt.Fprintf(w, "%-6s %-32s %18s %18s\n", e.AccountCode, e.AccountName, s.money(e.Debit), s.money(e.Credit))
	}
	_, _ = fmt.Fprintf(w, "%-39s %18s %18s\n", "Total", s.money(tb.TotalDebits), s.money(tb.TotalCredits))
	if tb.IsBalanced {
		_, _ = fmt.Fprintln(w, "Balanced.")
		return
	}
	_, _ = fmt.Fprintf(w, "NOT BALANCED: difference %s\n", s.money(tb.Difference))
}

func newVerifyCommand(s *session) *cobra.Command {
	var asOf string
	var strict bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the trial balance, accounting equation and reconciliation checks",
		Long:  "Exits with code 10 when the ledger has findings.",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			on, err := parseDate("as-of", asOf, today())
			if err != nil {
				return err
			}
			var opts []reports.ReadOption
			if strict {
				opts = append(opts, reports.ReadSerializable())
			}
			report, err := c.Reports.CheckIntegrity(cmd.Context(), companyID, on, opts...)
			if err != nil {
				return err
			}
			c.Metrics.Ledger().ObserveIntegrity(companyID.String(), len(report.Findings))
			if err := s.render(cmd, report, func(w io.Writer) { s.renderIntegrity(w, report) }); err != nil {
				return err
			}
			if !report.Healthy() {
				return &ExitError{Code: ExitFindings, Err: fmt.Errorf("ledger for company %s has %d finding(s)", companyID, len(report.Findings))}
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "trial balance cut-off YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&strict, "strict", false, "read from a serializable snapshot")
	return cmd
}

func (s *session) renderIntegrity(w io.Writer, report reports.IntegrityReport) {
	_, _ = fmt.Fprintf(w, "Integrity check for %s as of %s\n", report.CompanyID, report.AsOf.Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Trial balance: debits %s, credits %s\n", s.money(report.TrialBalance.TotalDebits), s.money(report.TrialBalance.TotalCredits))
	_, _ = fmt.Fprintf(w, "Equation: assets %s, liabilities and equity %s\n", s.money(report.Equation.Assets), s.money(report.Equation.LiabilitiesAndEquity))
	if report.Healthy() {
		_, _ = fmt.Fprintln(w, "No findings.")
		return
	}
	_, _ = fmt.Fprintf(w, "%d finding(s):\n", len(report.Findings))
	for _, f := range report.Findings {
		_, _ = fmt.Fprintf(w, " - %s\n", f)
	}
}

func newBalanceSheetCommand(s *session) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "balance-sheet",
		Short: "Present assets, liabilities and equity",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			on, err := parseDate("as-of", asOf, today())
			if err != nil {
				return err
			}
			bs, err := c.Reports.BalanceSheet(cmd.Context(), companyID, on)
			if err != nil {
				return err
			}
			return s.render(cmd, bs, func(w io.Writer) {
				for _, section := range []reports.BalanceSheetSection{bs.Assets, bs.Liabilities, bs.Equity} {
					_, _ = fmt.Fprintln(w, section.Label)
					for _, a := range section.Accounts {
						_, _ = fmt.Fprintf(w, "  %-6s %-32s %18s\n", a.Code, a.Name, s.money(a.Balance))
					}
					_, _ = fmt.Fprintf(w, "  %-39s %18s\n", "Total", s.money(section.Total))
				}
				_, _ = fmt.Fprintf(w, "Current earnings %s\n", s.money(bs.CurrentEarnings))
				_, _ = fmt.Fprintf(w, "Liabilities and equity %s\n", s.money(bs.TotalLiabilitiesAndEquity))
			})
		}),
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "cut-off YYYY-MM-DD (default today)")
	return cmd
}

func newProfitLossCommand(s *session) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "pl",
		Short: "Present revenue, expenses and net income",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			on, err := parseDate("as-of", asOf, today())
			if err != nil {
				return err
			}
			pl, err := c.Reports.ProfitAndLoss(cmd.Context(), companyID, on)
			if err != nil {
				return err
			}
			return s.render(cmd, pl, func(w io.Writer) {
				for _, section := range []reports.ProfitAndLossSection{pl.Revenue, pl.Expense} {
					_, _ = fmt.Fprintln(w, section.Label)
					for _, a := range section.Accounts {
						_, _ = fmt.Fprintf(w, "  %-6s %-32s %18s\n", a.Code, a.Name, s.money(a.Amount))
					}
					_, _ = fmt.Fprintf(w, "  %-39s %18s\n", "Total", s.money(section.Total))
				}
				_, _ = fmt.Fprintf(w, "Net income %s\n", s.money(pl.NetIncome))
			})
		}),
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "cut-off YYYY-MM-DD (default today)")
	return cmd
}
