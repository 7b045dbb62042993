package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// InvoiceStatus is derived from amounts and dates, never stored.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// InvoiceDetail is one stored invoice line. Amounts are decimal strings in
// KES; the server never holds money in binary floats.
type InvoiceDetail struct {
	ID          utils.SixID `bson:"id" json:"id"`
	ServiceID   utils.SixID `bson:"service_id" json:"serviceId"`
	ServiceName string      `bson:"service_name" json:"serviceName"` // denormalized for display
	Quantity    string      `bson:"quantity" json:"quantity"`
	Rate        string      `bson:"rate" json:"rate"`
	Discount    string      `bson:"discount" json:"discount"`
	Amount      string      `bson:"amount" json:"amount"`
	Remarks     string      `bson:"remarks,omitempty" json:"remarks,omitempty"`
}

// Invoice is a computed, immutable invoice document. Totals are produced by
// the ledger core from the detail lines; an edit replaces the whole snapshot
// with a freshly computed one.
type Invoice struct {
	Base        `bson:",inline"`
	InvoiceNo   string      `bson:"invoice_no" json:"invoiceNo"`
	ClientID    utils.SixID `bson:"client_id" json:"clientId"`
	ClientName  string      `bson:"client_name" json:"clientName"`
	InvoiceDate time.Time   `bson:"invoice_date" json:"invoiceDate"`
	Terms       string      `bson:"terms" json:"terms"` // "0", "30" or "60"
	DueDate     time.Time   `bson:"due_date" json:"dueDate"`

	VatType string `bson:"vat_type" json:"vatType"`
	VatRate string `bson:"vat_rate,omitempty" json:"vat,omitempty"`

	Details []InvoiceDetail `bson:"details" json:"details"`

	SubTotal      string `bson:"sub_total" json:"subTotal"`
	TotalDiscount string `bson:"discount" json:"discount"`
	VatAmount     string `bson:"vat_amount" json:"vatAmount"`
	TotalAmount   string `bson:"total_amount" json:"totalAmount"`
	AmountPaid    string `bson:"amount_paid" json:"amountPaid"`

	OverdueNotified bool `bson:"overdue_notified" json:"-"`
	Deleted         bool `bson:"deleted" json:"-"`
	Audit           `bson:",inline"`
}

// Balance is the unpaid remainder of the invoice. Malformed stored amounts
// count as zero.
func (inv *Invoice) Balance() decimal.Decimal {
	total, err := decimal.NewFromString(inv.TotalAmount)
	if err != nil {
		return decimal.Zero
	}
	paid, err := decimal.NewFromString(inv.AmountPaid)
	if err != nil {
		paid = decimal.Zero
	}
	return total.Sub(paid)
}

// Status derives the display status from amounts and the due date at the
// given instant. It is computed on every read, never stored.
func (inv *Invoice) Status(now time.Time) InvoiceStatus {
	balance := inv.Balance()
	if balance.Sign() <= 0 {
		return InvoiceStatusPaid
	}
	if now.After(inv.DueDate) {
		return InvoiceStatusOverdue
	}
	paid, err := decimal.NewFromString(inv.AmountPaid)
	if err == nil && paid.Sign() > 0 {
		return InvoiceStatusPartial
	}
	return InvoiceStatusPending
}

// InvoicePayment records money received against one invoice. Bulk payments
// fan out into one record per allocation, sharing a reference.
type InvoicePayment struct {
	Base             `bson:",inline"`
	InvoiceID        utils.SixID   `bson:"invoice_id" json:"invoiceId"`
	InvoiceNo        string        `bson:"invoice_no" json:"invoiceNo"`
	ClientID         utils.SixID   `bson:"client_id" json:"clientId"`
	ClientName       string        `bson:"client_name" json:"clientName"`
	PaymentDate      time.Time     `bson:"payment_date" json:"paymentDate"`
	Amount           string        `bson:"amount" json:"amount"`
	PaymentMethod    PaymentMethod `bson:"payment_method" json:"paymentMethod"`
	PaymentReference string        `bson:"payment_reference,omitempty" json:"paymentReference,omitempty"`
	Deleted          bool          `bson:"deleted" json:"-"`
	Audit            `bson:",inline"`
}
