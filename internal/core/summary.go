package core

import (
	"sort"
	"time"
)

// UncategorizedLabel names the bucket of transactions without a category.
const UncategorizedLabel = "Uncategorized"

// UnknownWalletLabel is used in export rows whose wallet reference was cleared.
const UnknownWalletLabel = "Unknown"

// Report output types.
type (
	CategoryAmount struct {
		Label  string `json:"label"`
		Amount Money  `json:"amount"`
	}

	Cashflow struct {
		Income   Money `json:"income"`
		Expense  Money `json:"expense"`
		Transfer Money `json:"transfer"`
		// Net excludes transfers, which move money between the user's own wallets.
		Net Money `json:"net"`
	}

	TrendPoint struct {
		Date   Date  `json:"date"`
		Amount Money `json:"amount"`
	}

	TopSpending struct {
		Label   string  `json:"label"`
		Amount  Money   `json:"amount"`
		Percent float64 `json:"percent"`
	}

	ExportRow struct {
		Date        Date   `json:"date"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Kind        string `json:"kind"`
		Wallet      string `json:"wallet"`
	}

	Dashboard struct {
		From      Date             `json:"from"`
		To        Date             `json:"to"`
		Kind      Kind             `json:"kind"`
		Breakdown []CategoryAmount `json:"breakdown"`
		Cashflow  Cashflow         `json:"cashflow"`
		Trend     []TrendPoint     `json:"trend"`
		Top       []TopSpending    `json:"top_spending"`
	}
)

// NewCashflow fills Net from the income and expense totals.
func NewCashflow(income, expense, transfer Money) Cashflow {
	return Cashflow{
		Income:   income,
		Expense:  expense,
		Transfer: transfer,
		Net:      income.Sub(expense),
	}
}

// MergeBuckets folds rows with an empty label into the Uncategorized bucket,
// merges equal labels, and orders the result by amount descending then label.
func MergeBuckets(rows []CategoryAmount) []CategoryAmount {
	index := make(map[string]int, len(rows))
	out := make([]CategoryAmount, 0, len(rows))
	for _, r := range rows {
		label := r.Label
		if label == "" {
			label = UncategorizedLabel
		}
		if i, ok := index[label]; ok {
			out[i].Amount = out[i].Amount.Add(r.Amount)
			continue
		}
		index[label] = len(out)
		out = append(out, CategoryAmount{Label: label, Amount: r.Amount})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// RankTopSpending ranks expense buckets and attaches each bucket's share of
// the period total, rounded to one decimal. n <= 0 keeps every bucket.
func RankTopSpending(buckets []CategoryAmount, n int) []TopSpending {
	merged := MergeBuckets(buckets)

	var total Money
	for _, b := range merged {
		total = total.Add(b.Amount)
	}

	if n > 0 && len(merged) > n {
		merged = merged[:n]
	}
	out := make([]TopSpending, 0, len(merged))
	for _, b := range merged {
		out = append(out, TopSpending{
			Label:   b.Label,
			Amount:  b.Amount,
			Percent: Percent(b.Amount, total, 1),
		})
	}
	return out
}

// RangeFor resolves a report range preset relative to today. Unknown presets
// fall back to the current month.
func RangeFor(preset string, today Date) (from, to Date) {
	year, month := today.Year(), int(today.Month())
	switch preset {
	case "last_month":
		firstOfThis := NewDate(year, month, 1)
		to = firstOfThis.AddDays(-1)
		from = NewDate(to.Year(), int(to.Month()), 1)
	case "year":
		from = NewDate(year, 1, 1)
		to = NewDate(year, 12, 31)
	default:
		from = NewDate(year, month, 1)
		to = Date{Time: from.AddDate(0, 1, -1)}
	}
	return from, to
}

// ChatRetention is how long chat logs are kept before they become purge-eligible.
const ChatRetention = 30 * 24 * time.Hour
