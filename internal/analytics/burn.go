package analytics

import (
	"sort"

	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/transactions"
)

// MonthLayout is the bucket key format.
const MonthLayout = "2006-01"

// MonthBurn is the summed amount of one calendar month.
type MonthBurn struct {
	Month            string      `json:"month"`
	Burn             money.Money `json:"burn"`
	TransactionCount int         `json:"transaction_count"`
}

// MonthlyBuckets groups transactions by the calendar month of their date and
// sums the signed amounts. Outflows are positive, so a refund lowers burn.
// Buckets are returned in ascending month order.
func MonthlyBuckets(txs []transactions.Transaction) []MonthBurn {
	index := make(map[string]int)
	var buckets []MonthBurn
	for _, tx := range txs {
		key := tx.Date.Format(MonthLayout)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, MonthBurn{Month: key})
		}
		buckets[i].Burn += tx.Amount
		buckets[i].TransactionCount++
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Month < buckets[j].Month })
	return buckets
}

// MeanBurn is the arithmetic mean across observed months, zero when empty.
func MeanBurn(buckets []MonthBurn) money.Money {
	if len(buckets) == 0 {
		return 0
	}
	total := money.Money(0)
	for _, b := range buckets {
		total += b.Burn
	}
	return total.MulDiv(1, int64(len(buckets)))
}
