package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/runway/internal/accounting/journals"
	"github.com/odyssey-erp/runway/internal/analytics"
	"github.com/odyssey-erp/runway/internal/app"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/tax"
	"github.com/odyssey-erp/runway/internal/transactions"
)

type demoResult struct {
	CompanyID uuid.UUID         `json:"company_id"`
	Postings  int               `json:"postings"`
	Degraded  int               `json:"degraded"`
	Summary   analytics.Summary `json:"summary"`
	Findings  []string          `json:"findings"`
}

type demoLine struct {
	category    string
	description string
	amount      money.Money
	rate        tax.Rate
	interState  bool
}

// demoMonth is six months of a small SaaS company whose payroll grows
// faster than its subscription revenue.
func demoMonth(i int) []demoLine {
	growth := money.FromMajor(int64(i) * 15000)
	return []demoLine{
		{category: "payroll", description: "Monthly salaries", amount: money.FromMajor(300000) + growth},
		{category: "rent", description: "Office rent", amount: money.FromMajor(50000), rate: tax.Rate18},
		{category: "cloud_hosting", description: "AWS invoice", amount: money.FromMajor(20000), rate: tax.Rate18, interState: true},
		{category: "software", description: "Team tooling", amount: money.FromMajor(7000), rate: tax.Rate18},
		{category: "", description: "Stripe payout MRR", amount: -(money.FromMajor(120000) + money.FromMajor(int64(i)*5000))},
		{category: "snacks", description: "Pantry restock", amount: money.FromMajor(4200)},
	}
}

func newDemoCommand(s *session) *cobra.Command {
	var cash string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Post six months of sample transactions into an in-memory ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			available, err := parseMoney("cash", cash)
			if err != nil {
				return err
			}
			cfg := app.Config{StoreDriver: app.StoreDriverMemory, CurrencyLocale: "en-IN"}
			if s.opts.Config != nil {
				cfg = *s.opts.Config
				cfg.StoreDriver = app.StoreDriverMemory
			}
			c, err := app.NewContainer(cmd.Context(), &cfg, s.opts.Logger, app.WithoutRedis())
			if err != nil {
				return err
			}
			defer c.Close()

			companyID := uuid.New()
			if s.company != "" {
				if companyID, err = s.companyID(); err != nil {
					return err
				}
			}
			result, err := runDemo(cmd.Context(), c, companyID, available)
			if err != nil {
				return err
			}
			return s.render(cmd, result, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Company %s: %d postings, %d on fallback accounts\n", result.CompanyID, result.Postings, result.Degraded)
				for _, b := range result.Summary.Trend.Months {
					_, _ = fmt.Fprintf(w, "  %s burn %18s\n", b.Month, s.money(b.Burn))
				}
				_, _ = fmt.Fprintf(w, "Monthly burn: %s\n", s.money(result.Summary.MonthlyBurn))
				_, _ = fmt.Fprintf(w, "Runway on %s: %s\n", s.money(result.Summary.Cash), result.Summary.Runway)
				_, _ = fmt.Fprintf(w, "Trend: %s (%.2f%%)\n", result.Summary.Trend.Trend, result.Summary.Trend.AccelerationPct)
				if len(result.Findings) == 0 {
					_, _ = fmt.Fprintln(w, "Ledger integrity: no findings.")
					return
				}
				for _, f := range result.Findings {
					_, _ = fmt.Fprintf(w, "Ledger integrity: %s\n", f)
				}
			})
		},
	}
	cmd.Flags().StringVar(&cash, "cash", "2500000.00", "cash on hand for the runway figure")
	return cmd
}

func runDemo(ctx context.Context, c *app.Container, companyID uuid.UUID, cash money.Money) (demoResult, error) {
	result := demoResult{CompanyID: companyID, Findings: []string{}}
	if _, err := c.Accounts.Initialize(ctx, companyID); err != nil {
		return result, err
	}
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		date := start.AddDate(0, i, 4)
		for _, line := range demoMonth(i) {
			tx := transactions.Transaction{
				ID:          uuid.New(),
				CompanyID:   companyID,
				Date:        date,
				Amount:      line.amount,
				Category:    line.category,
				Description: line.description,
				InterState:  line.interState,
				CreatedAt:   time.Now().UTC(),
			}
			if line.rate != tax.RateExempt {
				calc, err := tax.Calculate(line.amount.Abs(), line.rate, line.interState)
				if err != nil {
					return result, err
				}
				t := calc.TaxAmount
				tx.TaxAmount = &t
			}
			if err := c.Transactions.Insert(ctx, tx); err != nil {
				return result, err
			}
			posted, err := c.Poster.PostTransaction(ctx, journals.InputFromTransaction(tx))
			if err != nil {
				return result, fmt.Errorf("demo: post %s: %w", line.description, err)
			}
			result.Postings++
			result.Degraded += len(posted.Warnings)
		}
	}
	summary, err := c.Analytics.Summary(ctx, companyID, cash)
	if err != nil {
		return result, err
	}
	result.Summary = summary
	report, err := c.Reports.CheckIntegrity(ctx, companyID, start.AddDate(0, 6, 0))
	if err != nil {
		return result, err
	}
	result.Findings = append(result.Findings, report.Findings...)
	return result, nil
}
