package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/analytics"
	"github.com/odyssey-erp/runway/internal/app"
	"github.com/odyssey-erp/runway/internal/money"
)

type burnResult struct {
	CompanyID   uuid.UUID             `json:"company_id"`
	MonthlyBurn money.Money           `json:"monthly_burn"`
	Months      []analytics.MonthBurn `json:"months"`
}

func newBurnCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "burn",
		Short: "Average monthly burn over the months with transactions",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			buckets, err := c.Analytics.MonthBuckets(cmd.Context(), companyID)
			if err != nil {
				return err
			}
			result := burnResult{CompanyID: companyID, MonthlyBurn: analytics.MeanBurn(buckets), Months: buckets}
			return s.render(cmd, result, func(w io.Writer) {
				for _, b := range buckets {
					_, _ = fmt.Fprintf(w, "%s %18s  (%d transactions)\n", b.Month, s.money(b.Burn), b.TransactionCount)
				}
				_, _ = fmt.Fprintf(w, "Monthly burn: %s\n", s.money(result.MonthlyBurn))
			})
		}),
	}
}

func newRunwayCommand(s *session) *cobra.Command {
	var cash string
	cmd := &cobra.Command{
		Use:   "runway",
		Short: "Months of runway left at the current burn",
		Long:  "Uses --cash when given, otherwise the cached balance of the cash accounts.",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			available, err := s.cashPosition(cmd.Context(), c, companyID, cash)
			if err != nil {
				return err
			}
			summary, err := c.Analytics.Summary(cmd.Context(), companyID, available)
			if err != nil {
				return err
			}
			return s.render(cmd, summary, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Cash:         %s\n", s.money(summary.Cash))
				_, _ = fmt.Fprintf(w, "Monthly burn: %s\n", s.money(summary.MonthlyBurn))
				_, _ = fmt.Fprintf(w, "Runway:       %s\n", summary.Runway)
				_, _ = fmt.Fprintf(w, "Trend:        %s (%.2f%%)\n", summary.Trend.Trend, summary.Trend.AccelerationPct)
			})
		}),
	}
	cmd.Flags().StringVar(&cash, "cash", "", "cash on hand, e.g. 500000.00")
	return cmd
}

// cashPosition parses raw or, when empty, sums the active cash accounts.
func (s *session) cashPosition(ctx context.Context, c *app.Container, companyID uuid.UUID, raw string) (money.Money, error) {
	if raw != "" {
		return parseMoney("cash", raw)
	}
	asset := accounts.AccountTypeAsset
	list, err := c.Accounts.GetAccounts(ctx, companyID, accounts.Filter{Type: &asset})
	if err != nil {
		return 0, err
	}
	var total money.Money
	for _, a := range list {
		if a.Category == "cash" {
			total += a.Balance
		}
	}
	return total, nil
}

func newTrendCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "trend",
		Short: "Compare the latest two months of burn",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			trend, err := c.Analytics.BurnTrend(cmd.Context(), companyID)
			if err != nil {
				return err
			}
			return s.render(cmd, trend, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Burn is %s: %s vs %s (%.2f%%)\n", trend.Trend, s.money(trend.Current), s.money(trend.Previous), trend.AccelerationPct)
				for _, b := range trend.Months {
					_, _ = fmt.Fprintf(w, "  %s %18s\n", b.Month, s.money(b.Burn))
				}
			})
		}),
	}
}
