package mappings

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
)

//go:embed default.yaml
var defaultYAML []byte

// SupportedVersions is the range of table versions this build understands.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// ErrInvalidTable is wrapped by every load or validation failure.
var ErrInvalidTable = errors.New("mappings: invalid category table")

// Default returns the embedded table, validated against the default chart.
func Default() (*Table, error) {
	return Parse(defaultYAML)
}

// Load reads a table from path. An empty path yields Default.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mappings: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML table.
func Parse(raw []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	normalized := make(map[string]string, len(t.Categories))
	for k, v := range t.Categories {
		normalized[Normalize(k)] = strings.TrimSpace(v)
	}
	t.Categories = normalized
	for i := range t.Rules {
		t.Rules[i].Category = Normalize(t.Rules[i].Category)
		for j, kw := range t.Rules[i].Keywords {
			t.Rules[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	if err := t.Validate(accounts.DefaultCodes()); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the version and that every referenced code exists in
// chart with a compatible account type.
func (t *Table) Validate(chart map[string]accounts.Template) error {
	v, err := semver.NewVersion(t.Version)
	if err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrInvalidTable, t.Version, err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: version %s outside %s", ErrInvalidTable, v, SupportedVersions)
	}
	var problems []string
	expect := func(field, code string, types ...accounts.AccountType) {
		tmpl, ok := chart[code]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown account %q", field, code))
			return
		}
		if len(types) == 0 {
			return
		}
		for _, typ := range types {
			if tmpl.Type == typ {
				return
			}
		}
		problems = append(problems, fmt.Sprintf("%s: account %s is %s", field, code, tmpl.Type))
	}
	expect("clearing_account", t.ClearingAccount, accounts.AccountTypeAsset)
	expect("fallback.expense", t.Fallback.Expense, accounts.AccountTypeExpense)
	expect("fallback.income", t.Fallback.Income, accounts.AccountTypeRevenue)
	expect("tax_input.cgst", t.TaxInput.CGST, accounts.AccountTypeAsset)
	expect("tax_input.sgst", t.TaxInput.SGST, accounts.AccountTypeAsset)
	expect("tax_input.igst", t.TaxInput.IGST, accounts.AccountTypeAsset)
	expect("tax_output.cgst", t.TaxOutput.CGST, accounts.AccountTypeLiability)
	expect("tax_output.sgst", t.TaxOutput.SGST, accounts.AccountTypeLiability)
	expect("tax_output.igst", t.TaxOutput.IGST, accounts.AccountTypeLiability)
	if len(t.Categories) == 0 {
		problems = append(problems, "categories: empty")
	}
	for category, code := range t.Categories {
		if category == "" {
			problems = append(problems, "categories: blank key")
			continue
		}
		expect("categories."+category, code)
		if code == t.ClearingAccount {
			problems = append(problems, fmt.Sprintf("categories.%s: maps to the clearing account", category))
		}
	}
	for i, rule := range t.Rules {
		if _, ok := t.Categories[rule.Category]; !ok {
			problems = append(problems, fmt.Sprintf("keywords[%d]: unknown category %q", i, rule.Category))
		}
		if len(rule.Keywords) == 0 {
			problems = append(problems, fmt.Sprintf("keywords[%d]: no keywords", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTable, strings.Join(problems, "; "))
	}
	return nil
}

// Classify picks a category from free text using the keyword rules.
func (t *Table) Classify(description string) (string, bool) {
	text := strings.ToLower(description)
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for _, rule := range t.Rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(text, kw) {
				return rule.Category, true
			}
		}
	}
	return "", false
}

// Resolve maps a category to an account code. An explicit category is looked
// up exactly; only an empty category falls back to keyword classification of
// the description. Anything unresolved lands on the fallback account for the
// cash direction (income when the amount is an inflow).
func (t *Table) Resolve(category, description string, inflow bool) Resolution {
	key := Normalize(category)
	if key != "" {
		if code, ok := t.Categories[key]; ok {
			return Resolution{Category: key, AccountCode: code, Source: SourceExact}
		}
		return t.fallback(key, inflow, fmt.Sprintf("no mapping for category %q in table %s", key, t.Version))
	}
	if guessed, ok := t.Classify(description); ok {
		return Resolution{Category: guessed, AccountCode: t.Categories[guessed], Source: SourceKeyword}
	}
	return t.fallback("", inflow, "no category given and no keyword matched the description")
}

// FallbackFor builds a fallback resolution, used when a mapped account is unusable.
func (t *Table) FallbackFor(category string, inflow bool, reason string) Resolution {
	return t.fallback(Normalize(category), inflow, reason)
}

func (t *Table) fallback(category string, inflow bool, reason string) Resolution {
	code := t.Fallback.Expense
	if inflow {
		code = t.Fallback.Income
	}
	return Resolution{Category: category, AccountCode: code, Source: SourceFallback, Reason: reason}
}
