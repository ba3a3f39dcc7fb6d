package accounts

// Well-known codes the poster and reports rely on.
const (
	CodeCash            = "1000"
	CodeBankClearing    = "1010"
	CodeGSTInputCGST    = "1310"
	CodeGSTInputSGST    = "1320"
	CodeGSTInputIGST    = "1330"
	CodeGSTOutputCGST   = "2310"
	CodeGSTOutputSGST   = "2320"
	CodeGSTOutputIGST   = "2330"
	CodeRetainedEarning = "3300"
	CodeOtherIncome     = "4900"
	CodeGeneralExpense  = "6900"
)

// Template is one row of the seeded chart.
type Template struct {
	Code     string
	Name     string
	Type     AccountType
	Subtype  string
	Category string
}

var defaultChart = []Template{
	{"1000", "Cash on Hand", AccountTypeAsset, "current_asset", "cash"},
	{"1010", "Bank - Operating", AccountTypeAsset, "current_asset", "cash"},
	{"1100", "Accounts Receivable", AccountTypeAsset, "current_asset", "receivables"},
	{"1150", "Prepaid Expenses", AccountTypeAsset, "current_asset", "prepaid"},
	{"1200", "Security Deposits", AccountTypeAsset, "current_asset", "deposits"},
	{"1310", "GST Input - CGST", AccountTypeAsset, "tax_asset", "gst_input"},
	{"1320", "GST Input - SGST", AccountTypeAsset, "tax_asset", "gst_input"},
	{"1330", "GST Input - IGST", AccountTypeAsset, "tax_asset", "gst_input"},
	{"1500", "Computer Equipment", AccountTypeAsset, "fixed_asset", "equipment"},
	{"1510", "Furniture and Fixtures", AccountTypeAsset, "fixed_asset", "equipment"},
	{"1520", "Accumulated Depreciation", AccountTypeAsset, "contra_asset", "depreciation"},

	{"2000", "Accounts Payable", AccountTypeLiability, "current_liability", "payables"},
	{"2100", "Credit Card Payable", AccountTypeLiability, "current_liability", "payables"},
	{"2200", "Accrued Expenses", AccountTypeLiability, "current_liability", "accruals"},
	{"2310", "GST Output - CGST", AccountTypeLiability, "tax_liability", "gst_output"},
	{"2320", "GST Output - SGST", AccountTypeLiability, "tax_liability", "gst_output"},
	{"2330", "GST Output - IGST", AccountTypeLiability, "tax_liability", "gst_output"},
	{"2500", "Salaries Payable", AccountTypeLiability, "current_liability", "payroll"},
	{"2600", "Short-term Loans", AccountTypeLiability, "current_liability", "debt"},
	{"2800", "Deferred Revenue", AccountTypeLiability, "current_liability", "deferred"},

	{"3000", "Founder Capital", AccountTypeEquity, "capital", "capital"},
	{"3100", "Share Capital", AccountTypeEquity, "capital", "capital"},
	{"3300", "Retained Earnings", AccountTypeEquity, "retained_earnings", "earnings"},
	{"3900", "Opening Balance Equity", AccountTypeEquity, "opening_balance", "capital"},

	{"4000", "Sales Revenue", AccountTypeRevenue, "operating_revenue", "sales"},
	{"4100", "Subscription Revenue", AccountTypeRevenue, "operating_revenue", "subscriptions"},
	{"4200", "Service Revenue", AccountTypeRevenue, "operating_revenue", "services"},
	{"4300", "Interest Income", AccountTypeRevenue, "other_revenue", "interest"},
	{"4900", "Other Income", AccountTypeRevenue, "other_revenue", "other"},

	{"5000", "Cost of Goods Sold", AccountTypeExpense, "cost_of_sales", "cogs"},
	{"5100", "Salaries and Wages", AccountTypeExpense, "operating_expense", "payroll"},
	{"5200", "Rent", AccountTypeExpense, "operating_expense", "facilities"},
	{"5300", "Utilities", AccountTypeExpense, "operating_expense", "facilities"},
	{"5400", "Software Subscriptions", AccountTypeExpense, "operating_expense", "software"},
	{"5500", "Marketing and Advertising", AccountTypeExpense, "operating_expense", "marketing"},
	{"5600", "Travel", AccountTypeExpense, "operating_expense", "travel"},
	{"5700", "Professional Fees", AccountTypeExpense, "operating_expense", "professional"},
	{"5800", "Office Supplies", AccountTypeExpense, "operating_expense", "office"},
	{"5900", "Bank Charges", AccountTypeExpense, "operating_expense", "bank"},
	{"6000", "Depreciation", AccountTypeExpense, "non_cash_expense", "depreciation"},
	{"6300", "Cloud Hosting", AccountTypeExpense, "operating_expense", "infrastructure"},
	{"6900", "General Expense", AccountTypeExpense, "operating_expense", "other"},
}

// DefaultChart returns a copy of the canonical chart seeded at onboarding.
// The order is by code and never changes between releases.
func DefaultChart() []Template {
	out := make([]Template, len(defaultChart))
	copy(out, defaultChart)
	return out
}

// DefaultCodes indexes DefaultChart by code.
func DefaultCodes() map[string]Template {
	out := make(map[string]Template, len(defaultChart))
	for _, t := range defaultChart {
		out[t.Code] = t
	}
	return out
}
