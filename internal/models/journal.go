package models

import (
	"time"

	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// JournalDetail is one leg of a posted journal entry. Exactly one of Debit
// and Credit is non-zero; the ledger core enforces this before posting.
type JournalDetail struct {
	ID          utils.SixID `bson:"id" json:"id"`
	AccountID   utils.SixID `bson:"account_id" json:"accountId"`
	AccountName string      `bson:"account_name" json:"accountName"`
	Debit       string      `bson:"debit" json:"debit"`
	Credit      string      `bson:"credit" json:"credit"`
	Description string      `bson:"description,omitempty" json:"description,omitempty"`
}

// JournalEntry is a balanced double-entry transaction.
type JournalEntry struct {
	Base            `bson:",inline"`
	JournalNo       int             `bson:"journal_no" json:"journalNo"`
	TransactionDate time.Time       `bson:"transaction_date" json:"transactionDate"`
	TransactionID   string          `bson:"transaction_id" json:"transactionId"` // uuid, groups system postings
	Details         []JournalDetail `bson:"details" json:"details"`
	Deleted         bool            `bson:"deleted" json:"-"`
	Audit           `bson:",inline"`
}
