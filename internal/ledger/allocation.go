package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OutstandingInvoice is a read-only snapshot of an invoice with money still
// owed on it. Balance() is what remains payable.
type OutstandingInvoice struct {
	InvoiceID   string
	InvoiceNo   string
	InvoiceDate time.Time
	TotalAmount decimal.Decimal
	AmountPaid  decimal.Decimal
}

// Balance is the unpaid remainder of the invoice.
func (o OutstandingInvoice) Balance() decimal.Decimal {
	return o.TotalAmount.Sub(o.AmountPaid)
}

// PaymentAllocation assigns a portion of a single payment to one invoice.
// Allocations are only ever produced by the engine below, never by hand.
type PaymentAllocation struct {
	InvoiceID string
	Amount    decimal.Decimal
}

// ExplicitAllocation is a caller-chosen amount for one invoice, used when the
// user edits the per-invoice amounts on the bulk payment form.
type ExplicitAllocation struct {
	InvoiceID string
	Amount    decimal.Decimal
}

// Allocate distributes payment across the outstanding invoices,
// oldest invoice first (ties broken by invoice ID for determinism), applying
// the remaining payment to each balance until the payment runs out or every
// invoice is settled. Invoices without a balance never appear in the result.
//
// A zero payment or an empty invoice list yields an empty allocation, not an
// error. The input slice is not modified; persisting amountPaid updates is
// the caller's job.
func Allocate(invoices []OutstandingInvoice, payment decimal.Decimal) ([]PaymentAllocation, []ValidationError) {
	if isNegative(payment) {
		return nil, []ValidationError{newError("amount", CodeInvalidPayment, "payment amount cannot be negative")}
	}
	if payment.IsZero() || len(invoices) == 0 {
		return []PaymentAllocation{}, nil
	}

	ordered := make([]OutstandingInvoice, len(invoices))
	copy(ordered, invoices)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].InvoiceDate.Equal(ordered[j].InvoiceDate) {
			return ordered[i].InvoiceDate.Before(ordered[j].InvoiceDate)
		}
		return ordered[i].InvoiceID < ordered[j].InvoiceID
	})

	allocations := []PaymentAllocation{}
	remaining := payment
	for _, inv := range ordered {
		if !isPositive(remaining) {
			break
		}
		balance := inv.Balance()
		if !isPositive(balance) {
			continue
		}
		amount := decimal.Min(remaining, balance)
		allocations = append(allocations, PaymentAllocation{InvoiceID: inv.InvoiceID, Amount: amount})
		remaining = remaining.Sub(amount)
	}
	return allocations, nil
}

// ValidateAllocations checks caller-supplied per-invoice amounts instead of
// computing them: each amount must be non-negative and within that invoice's
// remaining balance, and the amounts together must not exceed the payment.
// Accepted rows consume the tracked balance, so repeated rows for one invoice
// are checked against what is left, not the full balance each time. Zero
// amounts and zero-balance invoices are skipped, mirroring Allocate's output
// shape.
func ValidateAllocations(invoices []OutstandingInvoice, payment decimal.Decimal, explicit []ExplicitAllocation) ([]PaymentAllocation, []ValidationError) {
	if isNegative(payment) {
		return nil, []ValidationError{newError("amount", CodeInvalidPayment, "payment amount cannot be negative")}
	}

	balances := make(map[string]decimal.Decimal, len(invoices))
	for _, inv := range invoices {
		balances[inv.InvoiceID] = inv.Balance()
	}

	var errs []ValidationError
	allocations := []PaymentAllocation{}
	total := decimal.Zero
	for i, alloc := range explicit {
		balance, ok := balances[alloc.InvoiceID]
		if !ok {
			errs = append(errs, newError(fieldAt("invoices", i, "invoiceId"), CodeInvalidAllocation,
				"invoice %s is not outstanding", alloc.InvoiceID))
			continue
		}
		if isNegative(alloc.Amount) {
			errs = append(errs, newError(fieldAt("invoices", i, "amount"), CodeInvalidAllocation,
				"amount cannot be negative"))
			continue
		}
		if alloc.Amount.Cmp(balance) > 0 {
			errs = append(errs, newError(fieldAt("invoices", i, "amount"), CodeOverAllocation,
				"amount %s exceeds balance %s of invoice %s", alloc.Amount.String(), balance.String(), alloc.InvoiceID))
			continue
		}
		if alloc.Amount.IsZero() {
			continue
		}
		balances[alloc.InvoiceID] = balance.Sub(alloc.Amount)
		allocations = append(allocations, PaymentAllocation{InvoiceID: alloc.InvoiceID, Amount: alloc.Amount})
		total = total.Add(alloc.Amount)
	}

	if len(errs) == 0 && total.Cmp(payment) > 0 {
		errs = append(errs, newError("amount", CodeOverAllocation,
			"allocated total %s exceeds payment amount %s", total.String(), payment.String()))
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return allocations, nil
}

func fieldAt(prefix string, index int, field string) string {
	return fmt.Sprintf("%s.%d.%s", prefix, index, field)
}
