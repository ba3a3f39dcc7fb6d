package mappings

import "strings"

// Source records how a category was resolved.
type Source string

const (
	SourceExact    Source = "exact"
	SourceKeyword  Source = "keyword"
	SourceFallback Source = "fallback"
)

// Rule maps description keywords to a category. Rules are evaluated in file
// order and the first match wins.
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// TaxAccounts names the CGST/SGST/IGST accounts on one side of the ledger.
type TaxAccounts struct {
	CGST string `yaml:"cgst"`
	SGST string `yaml:"sgst"`
	IGST string `yaml:"igst"`
}

// Fallback names the accounts used when a category cannot be mapped.
type Fallback struct {
	Expense string `yaml:"expense"`
	Income  string `yaml:"income"`
}

// Table is the versioned category to account-code mapping.
type Table struct {
	Version         string            `yaml:"version"`
	ClearingAccount string            `yaml:"clearing_account"`
	Fallback        Fallback          `yaml:"fallback"`
	TaxInput        TaxAccounts       `yaml:"tax_input"`
	TaxOutput       TaxAccounts       `yaml:"tax_output"`
	Categories      map[string]string `yaml:"categories"`
	Rules           []Rule            `yaml:"keywords"`
}

// Resolution is the outcome of Table.Resolve.
type Resolution struct {
	Category    string `json:"category"`
	AccountCode string `json:"account_code"`
	Source      Source `json:"source"`
	// Reason is set when Source is SourceFallback.
	Reason string `json:"reason,omitempty"`
}

// Degraded reports whether the posting lands on a fallback account.
func (r Resolution) Degraded() bool {
	return r.Source == SourceFallback
}

// Normalize folds a category key: lower case, trimmed, separators as underscores.
func Normalize(category string) string {
	s := strings.ToLower(strings.TrimSpace(category))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '/', '.':
			return '_'
		}
		return r
	}, s)
}
