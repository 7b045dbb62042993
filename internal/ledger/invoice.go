// Package ledger implements the computation core of the Atarah accounting
// app: invoice totals and VAT, double-entry validation, payment allocation
// and statement reconciliation. Every function here is pure, with no I/O,
// clock reads or shared state, so the same input always produces the same
// output. Persistence and transport live with the callers in services and
// handlers.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// VatType selects how VAT applies to an invoice's sub total.
type VatType string

const (
	VatNone      VatType = "no_vat"
	VatInclusive VatType = "inclusive"
	VatExclusive VatType = "exclusive"
)

// ParseVatType converts the wire value used by the client app.
func ParseVatType(s string) (VatType, error) {
	switch VatType(s) {
	case VatNone, VatInclusive, VatExclusive:
		return VatType(s), nil
	}
	return "", fmt.Errorf("unknown vat type %q", s)
}

// Terms is the number of days between invoice date and due date.
type Terms int

const (
	TermsDueOnReceipt Terms = 0
	TermsNet30        Terms = 30
	TermsNet60        Terms = 60
)

// ParseTerms converts the wire value ("0", "30" or "60").
func ParseTerms(s string) (Terms, error) {
	switch s {
	case "0":
		return TermsDueOnReceipt, nil
	case "30":
		return TermsNet30, nil
	case "60":
		return TermsNet60, nil
	}
	return 0, fmt.Errorf("unknown terms %q", s)
}

// Valid reports whether t is one of the supported term lengths.
func (t Terms) Valid() bool {
	return t == TermsDueOnReceipt || t == TermsNet30 || t == TermsNet60
}

// LineItem is a single raw invoice line as supplied by the form layer.
type LineItem struct {
	ID       string
	Quantity decimal.Decimal
	Rate     decimal.Decimal
	Discount decimal.Decimal
}

// Amount is quantity*rate - discount, unrounded.
func (l LineItem) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.Rate).Sub(l.Discount)
}

// ComputedInvoiceTotals is the derived monetary summary of an invoice.
// It is produced whole by ComputeInvoice and never mutated independently of
// the lines it was computed from; an edit recomputes a fresh value.
type ComputedInvoiceTotals struct {
	SubTotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	VatAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
}

// ComputeInvoice derives the document totals for a set of line items.
//
// Per line, amount = quantity*rate - discount. The sub total is the sum of
// line amounts rounded once, half-up, to the currency minor unit; VAT is then
// rounded at the single point it is computed:
//
//	exclusive: vat = round(subTotal * rate / 100), total = subTotal + vat
//	inclusive: vat = round(subTotal * rate / (100 + rate)), total = subTotal
//	no_vat:    vat = 0, total = subTotal
//
// Business-rule violations are returned as a list, one entry per offending
// field, so the client can highlight every bad line at once. An empty items
// slice is a caller bug (the form never submits one) and panics.
func ComputeInvoice(items []LineItem, vatType VatType, vatRate *decimal.Decimal) (ComputedInvoiceTotals, []ValidationError) {
	if len(items) == 0 {
		panic("ledger: ComputeInvoice called with no line items")
	}

	var errs []ValidationError
	subTotal := decimal.Zero
	totalDiscount := decimal.Zero

	for i, item := range items {
		if !isPositive(item.Quantity) {
			errs = append(errs, newError(fmt.Sprintf("items.%d.quantity", i), CodeInvalidLine,
				"quantity must be greater than zero"))
			continue
		}
		if isNegative(item.Rate) {
			errs = append(errs, newError(fmt.Sprintf("items.%d.rate", i), CodeInvalidLine,
				"rate cannot be negative"))
			continue
		}
		amount := item.Amount()
		if isNegative(amount) {
			errs = append(errs, newError(fmt.Sprintf("items.%d.discount", i), CodeInvalidLine,
				"discount exceeds line amount"))
			continue
		}
		subTotal = subTotal.Add(amount)
		totalDiscount = totalDiscount.Add(item.Discount)
	}

	if vatType != VatNone && (vatRate == nil || !isPositive(*vatRate)) {
		errs = append(errs, newError("vat", CodeVatRateRequired, "vat rate is required"))
	}
	if len(errs) > 0 {
		return ComputedInvoiceTotals{}, errs
	}

	subTotal = KES.Round(subTotal)
	totals := ComputedInvoiceTotals{
		SubTotal:      subTotal,
		TotalDiscount: KES.Round(totalDiscount),
		VatAmount:     decimal.Zero,
		TotalAmount:   subTotal,
	}

	hundred := decimal.NewFromInt(100)
	switch vatType {
	case VatExclusive:
		totals.VatAmount = KES.Round(subTotal.Mul(*vatRate).Div(hundred))
		totals.TotalAmount = subTotal.Add(totals.VatAmount)
	case VatInclusive:
		// The stated amounts already contain VAT; the split is informational
		// and the total stays put.
		totals.VatAmount = KES.Round(subTotal.Mul(*vatRate).Div(hundred.Add(*vatRate)))
	}
	return totals, nil
}

// DeriveDueDate computes invoiceDate + terms days. The result is never stored
// as an independent fact: whenever the invoice date or terms change, the
// caller re-invokes this to get the new due date.
func DeriveDueDate(invoiceDate time.Time, terms Terms) time.Time {
	return invoiceDate.AddDate(0, 0, int(terms))
}

// ValidateDueDate checks an explicitly supplied due date against the invoice
// date. Used when the client sends both instead of deriving.
func ValidateDueDate(invoiceDate, dueDate time.Time) []ValidationError {
	if dueDate.Before(invoiceDate) {
		return []ValidationError{newError("dueDate", CodeInvalidDueDate,
			"due date cannot be earlier than invoice date")}
	}
	return nil
}
