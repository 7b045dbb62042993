package models

import "github.com/nckmackenzie/atarah-api/internal/utils"

// AccountType classifies a ledger account in the chart of accounts.
type AccountType string

const (
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeDividend  AccountType = "dividend"
)

// ValidAccountType reports whether s is a known account type.
func ValidAccountType(s string) bool {
	switch AccountType(s) {
	case AccountTypeIncome, AccountTypeExpense, AccountTypeAsset,
		AccountTypeLiability, AccountTypeEquity, AccountTypeDividend:
		return true
	}
	return false
}

// Account is one entry in the chart of accounts. Accounts form a two-level
// hierarchy: a subcategory points at its parent via ParentID.
type Account struct {
	Base          `bson:",inline"`
	Name          string       `bson:"name" json:"name"`
	AccountType   AccountType  `bson:"account_type" json:"accountType"`
	IsSubcategory bool         `bson:"is_subcategory" json:"isSubcategory"`
	ParentID      *utils.SixID `bson:"parent_id,omitempty" json:"parentId,omitempty"`
	AccountNo     string       `bson:"account_no,omitempty" json:"accountNo,omitempty"`
	IsBank        bool         `bson:"is_bank" json:"isBank"`
	Description   string       `bson:"description,omitempty" json:"description,omitempty"`
	Active        bool         `bson:"active" json:"active"`
	// System accounts (e.g. Accounts Receivable) cannot be renamed or removed.
	IsEditable bool `bson:"is_editable" json:"isEditable"`
	Deleted    bool `bson:"deleted" json:"-"`
	Audit      `bson:",inline"`
}
