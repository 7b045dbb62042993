package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PostedTransaction is one posted movement on a client's account: an invoice
// shows up as a debit, a payment as a credit.
type PostedTransaction struct {
	Date      time.Time
	Reference string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// StatementEntry is one row of a client statement with the balance after the
// transaction has been applied.
type StatementEntry struct {
	Date           time.Time
	Reference      string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	RunningBalance decimal.Decimal
}

// StatementTotals is the report's footer row. TotalDebit - TotalCredit always
// equals the last entry's running balance exactly.
type StatementTotals struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balance     decimal.Decimal
}

// BuildStatement folds posted transactions into a running-balance statement.
// Transactions are ordered by date ascending; same-date ties keep their
// original posting order. The balance starts at zero and each row carries the
// balance after that row's debit and credit are applied.
func BuildStatement(transactions []PostedTransaction) ([]StatementEntry, StatementTotals) {
	ordered := make([]PostedTransaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	entries := make([]StatementEntry, 0, len(ordered))
	balance := decimal.Zero
	totals := StatementTotals{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero, Balance: decimal.Zero}
	for _, tx := range ordered {
		balance = balance.Add(tx.Debit).Sub(tx.Credit)
		entries = append(entries, StatementEntry{
			Date:           tx.Date,
			Reference:      tx.Reference,
			Debit:          tx.Debit,
			Credit:         tx.Credit,
			RunningBalance: balance,
		})
		totals.TotalDebit = totals.TotalDebit.Add(tx.Debit)
		totals.TotalCredit = totals.TotalCredit.Add(tx.Credit)
	}
	totals.Balance = balance
	return entries, totals
}
