package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/accounting/journals"
	"github.com/odyssey-erp/runway/internal/app"
	"github.com/odyssey-erp/runway/internal/tax"
	"github.com/odyssey-erp/runway/internal/transactions"
	"github.com/odyssey-erp/runway/jobs"
)

type seedResult struct {
	CompanyID uuid.UUID `json:"company_id"`
	Created   int       `json:"created"`
}

func newSeedCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default chart of accounts for a company",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			created, err := c.Accounts.Initialize(cmd.Context(), companyID)
			if err != nil {
				return err
			}
			return s.render(cmd, seedResult{CompanyID: companyID, Created: created}, func(w io.Writer) {
				if created == 0 {
					_, _ = fmt.Fprintf(w, "Company %s already has a chart of accounts.\n", companyID)
					return
				}
				_, _ = fmt.Fprintf(w, "Created %d accounts for company %s.\n", created, companyID)
			})
		}),
	}
}

func newAccountsCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect and maintain the chart of accounts",
	}
	cmd.AddCommand(newAccountsListCommand(s), newAccountsCreateCommand(s), newAccountsArchiveCommand(s))
	return cmd
}

func newAccountsListCommand(s *session) *cobra.Command {
	var typeName string
	var archived bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their cached balances",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			filter := accounts.Filter{IncludeArchived: archived}
			if typeName != "" {
				t, err := accounts.ParseAccountType(typeName)
				if err != nil {
					return err
				}
				filter.Type = &t
			}
			list, err := c.Accounts.GetAccounts(cmd.Context(), companyID, filter)
			if err != nil {
				return err
			}
			return s.render(cmd, list, func(w io.Writer) {
				for _, a := range list {
					status := ""
					if !a.IsActive {
						status = " (archived)"
					}
					_, _ = fmt.Fprintf(w, "%-6s %-32s %-9s %18s%s\n", a.Code, a.Name, a.Type, s.money(a.Balance), status)
				}
			})
		}),
	}
	cmd.Flags().StringVar(&typeName, "type", "", "only accounts of this type (ASSET, LIABILITY, EQUITY, REVENUE, EXPENSE)")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived accounts")
	return cmd
}

func newAccountsCreateCommand(s *session) *cobra.Command {
	var input accounts.CreateAccountInput
	var typeName string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add an account to the chart",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			t, err := accounts.ParseAccountType(typeName)
			if err != nil {
				return err
			}
			input.CompanyID = companyID
			input.Type = t
			acc, err := c.Accounts.CreateAccount(cmd.Context(), input)
			if err != nil {
				return err
			}
			return s.render(cmd, acc, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Created account %s %s (%s).\n", acc.Code, acc.Name, acc.Type)
			})
		}),
	}
	cmd.Flags().StringVar(&input.Code, "code", "", "numeric account code (required)")
	cmd.Flags().StringVar(&input.Name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&typeName, "type", "", "account type (required)")
	cmd.Flags().StringVar(&input.Subtype, "subtype", "", "account subtype")
	cmd.Flags().StringVar(&input.Category, "category", "", "account category")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newAccountsArchiveCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <code>",
		Short: "Archive an account; its history stays in the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, args []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			acc, err := c.Accounts.ArchiveAccount(cmd.Context(), companyID, args[0])
			if err != nil {
				return err
			}
			return s.render(cmd, acc, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Archived account %s %s.\n", acc.Code, acc.Name)
			})
		}),
	}
}

type postFlags struct {
	transactionID string
	id            string
	amount        string
	category      string
	description   string
	date          string
	taxAmount     string
	taxRate       string
	interState    bool
	async         bool
}

type enqueueResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Queue         string    `json:"queue"`
}

func newPostCommand(s *session) *cobra.Command {
	var f postFlags
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a source transaction into the ledger",
		Long: "Records a new source transaction from flags and posts it, or posts a stored one with --transaction.\n" +
			"Positive amounts are cash out, negative amounts are cash in. GST from --tax or --gst-rate is added on top.",
		Args: cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			tx, err := s.resolveTransaction(cmd, c, companyID, f)
			if err != nil {
				return err
			}
			if f.async {
				client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: c.Config.RedisAddr})
				if err != nil {
					return err
				}
				defer func() { _ = client.Close() }()
				if err := client.EnqueueLedgerPost(ctx, jobs.LedgerPostPayload{CompanyID: companyID, TransactionID: tx.ID}); err != nil {
					return fmt.Errorf("enqueue posting: %w", err)
				}
				return s.render(cmd, enqueueResult{TransactionID: tx.ID, Queue: jobs.QueueLedger}, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Queued transaction %s on %s.\n", tx.ID, jobs.QueueLedger)
				})
			}
			result, err := c.Poster.PostTransaction(ctx, journals.InputFromTransaction(tx))
			if err != nil {
				return err
			}
			return s.render(cmd, result, func(w io.Writer) { s.renderPosting(w, result) })
		}),
	}
	cmd.Flags().StringVar(&f.transactionID, "transaction", "", "post a stored transaction by id")
	cmd.Flags().StringVar(&f.id, "id", "", "id for the new transaction (generated when empty)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "signed amount before tax, e.g. 1000.00 or -5000.00")
	cmd.Flags().StringVar(&f.category, "category", "", "transaction category")
	cmd.Flags().StringVar(&f.description, "description", "", "free text description")
	cmd.Flags().StringVar(&f.date, "date", "", "transaction date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.taxAmount, "tax", "", "GST charged on top of the amount")
	cmd.Flags().StringVar(&f.taxRate, "gst-rate", "", "compute the GST on the amount at a rate (0, 5, 12, 18, 28)")
	cmd.Flags().BoolVar(&f.interState, "inter-state", false, "inter-state supply (IGST)")
	cmd.Flags().BoolVar(&f.async, "async", false, "enqueue the posting for the worker instead of posting now")
	cmd.MarkFlagsMutuallyExclusive("transaction", "amount")
	cmd.MarkFlagsMutuallyExclusive("tax", "gst-rate")
	return cmd
}

// resolveTransaction loads the stored transaction named by --transaction or
// records a new one built from the remaining flags.
func (s *session) resolveTransaction(cmd *cobra.Command, c *app.Container, companyID uuid.UUID, f postFlags) (transactions.Transaction, error) {
	ctx := cmd.Context()
	if f.transactionID != "" {
		id, err := uuid.Parse(f.transactionID)
		if err != nil {
			return transactions.Transaction{}, fmt.Errorf("--transaction: invalid id %q", f.transactionID)
		}
		return c.Transactions.Get(ctx, companyID, id)
	}
	if f.amount == "" {
		return transactions.Transaction{}, errors.New("either --transaction or --amount is required")
	}
	amount, err := parseMoney("amount", f.amount)
	if err != nil {
		return transactions.Transaction{}, err
	}
	date, err := parseDate("date", f.date, today())
	if err != nil {
		return transactions.Transaction{}, err
	}
	tx := transactions.Transaction{
		ID:          uuid.New(),
		CompanyID:   companyID,
		Date:        date,
		Amount:      amount,
		Category:    strings.TrimSpace(f.category),
		Description: strings.TrimSpace(f.description),
		InterState:  f.interState,
		CreatedAt:   time.Now().UTC(),
	}
	if f.id != "" {
		if tx.ID, err = uuid.Parse(f.id); err != nil {
			return transactions.Transaction{}, fmt.Errorf("--id: invalid id %q", f.id)
		}
	}
	switch {
	case f.taxAmount != "":
		t, err := parseMoney("tax", f.taxAmount)
		if err != nil {
			return transactions.Transaction{}, err
		}
		tx.TaxAmount = &t
	case f.taxRate != "":
		rate, err := tax.ParseRate(f.taxRate)
		if err != nil {
			return transactions.Transaction{}, err
		}
		calc, err := tax.Calculate(amount.Abs(), rate, f.interState)
		if err != nil {
			return transactions.Transaction{}, err
		}
		t := calc.TaxAmount
		tx.TaxAmount = &t
	}
	if err := c.Transactions.Insert(ctx, tx); err != nil {
		return transactions.Transaction{}, err
	}
	return tx, nil
}

func newReverseCommand(s *session) *cobra.Command {
	var date, memo string
	cmd := &cobra.Command{
		Use:   "reverse <transaction-id>",
		Short: "Book a mirror posting that cancels an earlier transaction",
		Args:  cobra.ExactArgs(1),
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, args []string) error {
			companyID, err := s.companyID()
			if err != nil {
				return err
			}
			txID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			on, err := parseDate("date", date, today())
			if err != nil {
				return err
			}
			result, err := c.Poster.ReverseTransaction(cmd.Context(), journals.ReverseInput{
				CompanyID:     companyID,
				TransactionID: txID,
				Date:          on,
				Memo:          memo,
			})
			if err != nil {
				return err
			}
			return s.render(cmd, result, func(w io.Writer) { s.renderPosting(w, result) })
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "reversal date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&memo, "memo", "", "reversal description")
	return cmd
}

func (s *session) renderPosting(w io.Writer, result journals.PostingResult) {
	_, _ = fmt.Fprintf(w, "Posted %s (%s) to %s via %s\n", result.TransactionID, result.Kind, result.Resolution.AccountCode, result.Resolution.Source)
	for _, e := range result.Entries {
		side, amount := "DR", e.Debit
		if e.Debit.IsZero() {
			side, amount = "CR", e.Credit
		}
		_, _ = fmt.Fprintf(w, "  %s %-6s %18s\n", side, e.AccountCode, s.money(amount))
	}
	if result.Tax != nil {
		_, _ = fmt.Fprintf(w, "  GST %s (CGST %s, SGST %s, IGST %s)\n",
			s.money(result.Tax.Amount), s.money(result.Tax.CGST), s.money(result.Tax.SGST), s.money(result.Tax.IGST))
	}
	for _, warning := range result.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warning.Error())
	}
}
