package models

import (
	"time"

	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// ExpenseDetail is one voucher line charged to an expense account.
type ExpenseDetail struct {
	ID          utils.SixID  `bson:"id" json:"id"`
	AccountID   utils.SixID  `bson:"account_id" json:"accountId"`
	AccountName string       `bson:"account_name" json:"accountName"`
	ProjectID   *utils.SixID `bson:"project_id,omitempty" json:"projectId,omitempty"`
	Amount      string       `bson:"amount" json:"amount"`
	Description string       `bson:"description,omitempty" json:"description,omitempty"`
}

// ExpenseAttachment is an uploaded receipt stored in S3. ThumbKey is filled
// in by the background image task once the thumbnail exists.
type ExpenseAttachment struct {
	ID       utils.SixID `bson:"id" json:"id"`
	FileKey  string      `bson:"file_key" json:"-"`
	FileURL  string      `bson:"file_url" json:"fileUrl"`
	ThumbKey string      `bson:"thumb_key,omitempty" json:"-"`
}

// Expense is a numbered expense voucher.
type Expense struct {
	Base             `bson:",inline"`
	ExpenseNo        int           `bson:"expense_no" json:"expenseNo"`
	ExpenseDate      time.Time     `bson:"expense_date" json:"expenseDate"`
	Payee            string        `bson:"payee" json:"payee"`
	PaymentMethod    PaymentMethod `bson:"payment_method" json:"paymentMethod"`
	PaymentReference string        `bson:"payment_reference,omitempty" json:"paymentReference,omitempty"`

	Details     []ExpenseDetail     `bson:"details" json:"details"`
	Attachments []ExpenseAttachment `bson:"attachments,omitempty" json:"attachments,omitempty"`

	// Sum of detail amounts, computed server-side.
	ExpenseTotal string `bson:"expense_total" json:"expenseTotal"`

	Deleted bool `bson:"deleted" json:"-"`
	Audit   `bson:",inline"`
}
