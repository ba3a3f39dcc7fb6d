// Package cli implements the runway operator commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/runway/internal/app"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
)

// Exit codes returned by the runway binary.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitFindings = 10
)

// OpenFunc builds the service container for one command.
type OpenFunc func(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*app.Container, error)

// Options wires the CLI to its configuration and output streams.
type Options struct {
	Config *app.Config
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
	// Open defaults to app.NewContainer.
	Open OpenFunc
}

// ExitError carries a process exit code other than ExitFailure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

type session struct {
	opts    Options
	json    bool
	company string
}

// NewRootCommand assembles every runway subcommand.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Open == nil {
		opts.Open = func(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*app.Container, error) {
			return app.NewContainer(ctx, cfg, logger)
		}
	}
	s := &session{opts: opts}

	root := &cobra.Command{
		Use:   "runway",
		Short: "Double-entry ledger and runway analytics for SaaS companies",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.PersistentFlags().BoolVar(&s.json, "json", false, "emit JSON instead of text")
	root.PersistentFlags().StringVar(&s.company, "company", "", "company id")

	root.AddCommand(
		newMigrateCommand(s),
		newSeedCommand(s),
		newAccountsCommand(s),
		newPostCommand(s),
		newReverseCommand(s),
		newTrialBalanceCommand(s),
		newVerifyCommand(s),
		newBalanceSheetCommand(s),
		newProfitLossCommand(s),
		newBurnCommand(s),
		newRunwayCommand(s),
		newTrendCommand(s),
		newGSTCommand(s),
		newOpsCommand(s),
		newJobsCommand(s),
		newDemoCommand(s),
	)
	return root
}

type containerRunE func(cmd *cobra.Command, c *app.Container, args []string) error

// withContainer opens the container for the duration of one command.
func (s *session) withContainer(fn containerRunE) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if s.opts.Config == nil {
			return errors.New("runway: configuration not loaded")
		}
		c, err := s.opts.Open(cmd.Context(), s.opts.Config, s.opts.Logger)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(cmd, c, args)
	}
}

func (s *session) companyID() (uuid.UUID, error) {
	raw := strings.TrimSpace(s.company)
	if raw == "" {
		return uuid.Nil, shared.Validation("company", "--company is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.Validation("company", "invalid id %q", raw)
	}
	return id, nil
}

func (s *session) locale() language.Tag {
	if s.opts.Config == nil {
		return money.DefaultLocale
	}
	return money.ParseLocale(s.opts.Config.CurrencyLocale)
}

func (s *session) money(m money.Money) string {
	return m.Format(s.locale())
}

// render writes v as JSON under --json and through human otherwise.
func (s *session) render(cmd *cobra.Command, v any, human func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if s.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
	human(out)
	return nil
}

func parseDate(flag, raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.Validation(flag, "invalid date %q (expected YYYY-MM-DD)", raw)
	}
	return t, nil
}

func parseMoney(flag, raw string) (money.Money, error) {
	m, err := money.Parse(strings.TrimSpace(raw))
	if err != nil {
		return 0, shared.Validation(flag, "invalid amount %q", raw)
	}
	return m, nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
