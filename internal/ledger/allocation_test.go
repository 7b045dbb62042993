package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestAllocate_OldestFirst(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "B", InvoiceDate: day(10), TotalAmount: d("700"), AmountPaid: d("0")},
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("300"), AmountPaid: d("0")},
	}

	allocations, errs := Allocate(invoices, d("500"))

	require.Empty(t, errs)
	require.Len(t, allocations, 2)
	assert.Equal(t, "A", allocations[0].InvoiceID)
	assert.True(t, d("300").Equal(allocations[0].Amount))
	assert.Equal(t, "B", allocations[1].InvoiceID)
	assert.True(t, d("200").Equal(allocations[1].Amount))
}

func TestAllocate_TieBreakByInvoiceID(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "INV-2", InvoiceDate: day(5), TotalAmount: d("100"), AmountPaid: d("0")},
		{InvoiceID: "INV-1", InvoiceDate: day(5), TotalAmount: d("100"), AmountPaid: d("0")},
	}

	allocations, errs := Allocate(invoices, d("150"))

	require.Empty(t, errs)
	require.Len(t, allocations, 2)
	assert.Equal(t, "INV-1", allocations[0].InvoiceID)
	assert.True(t, d("100").Equal(allocations[0].Amount))
	assert.Equal(t, "INV-2", allocations[1].InvoiceID)
	assert.True(t, d("50").Equal(allocations[1].Amount))
}

func TestAllocate_SkipsSettledInvoices(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("300"), AmountPaid: d("300")},
		{InvoiceID: "B", InvoiceDate: day(2), TotalAmount: d("200"), AmountPaid: d("50")},
	}

	allocations, errs := Allocate(invoices, d("100"))

	require.Empty(t, errs)
	require.Len(t, allocations, 1)
	assert.Equal(t, "B", allocations[0].InvoiceID)
	assert.True(t, d("100").Equal(allocations[0].Amount))
}

func TestAllocate_NoOpCases(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("300"), AmountPaid: d("0")},
	}

	allocations, errs := Allocate(invoices, decimal.Zero)
	require.Empty(t, errs)
	assert.Empty(t, allocations)

	allocations, errs = Allocate(nil, d("100"))
	require.Empty(t, errs)
	assert.Empty(t, allocations)
}

func TestAllocate_NegativePayment(t *testing.T) {
	_, errs := Allocate(nil, d("-1"))

	require.Len(t, errs, 1)
	assert.Equal(t, CodeInvalidPayment, errs[0].Code)
}

func TestAllocate_Conservation(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "A", InvoiceDate: day(3), TotalAmount: d("120.75"), AmountPaid: d("20.25")},
		{InvoiceID: "B", InvoiceDate: day(1), TotalAmount: d("80.10"), AmountPaid: d("0")},
		{InvoiceID: "C", InvoiceDate: day(2), TotalAmount: d("45"), AmountPaid: d("45")},
	}

	for _, payment := range []string{"0.01", "50", "80.10", "180.60", "500"} {
		allocations, errs := Allocate(invoices, d(payment))
		require.Empty(t, errs)

		total := decimal.Zero
		balances := map[string]decimal.Decimal{}
		for _, inv := range invoices {
			balances[inv.InvoiceID] = inv.Balance()
		}
		for _, alloc := range allocations {
			assert.True(t, isPositive(alloc.Amount))
			assert.True(t, alloc.Amount.Cmp(balances[alloc.InvoiceID]) <= 0,
				"allocation for %s exceeds balance", alloc.InvoiceID)
			total = total.Add(alloc.Amount)
		}
		assert.True(t, total.Cmp(d(payment)) <= 0, "payment %s over-allocated to %s", payment, total)
	}
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "B", InvoiceDate: day(2), TotalAmount: d("100"), AmountPaid: d("0")},
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("100"), AmountPaid: d("0")},
	}

	_, errs := Allocate(invoices, d("150"))

	require.Empty(t, errs)
	assert.Equal(t, "B", invoices[0].InvoiceID)
	assert.Equal(t, "A", invoices[1].InvoiceID)
	assert.True(t, invoices[0].AmountPaid.IsZero())
}

func TestValidateAllocations_Valid(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("300"), AmountPaid: d("100")},
		{InvoiceID: "B", InvoiceDate: day(2), TotalAmount: d("500"), AmountPaid: d("0")},
	}
	explicit := []ExplicitAllocation{
		{InvoiceID: "A", Amount: d("200")},
		{InvoiceID: "B", Amount: decimal.Zero}, // untouched row on the form
	}

	allocations, errs := ValidateAllocations(invoices, d("200"), explicit)

	require.Empty(t, errs)
	require.Len(t, allocations, 1)
	assert.Equal(t, "A", allocations[0].InvoiceID)
	assert.True(t, d("200").Equal(allocations[0].Amount))
}

func TestValidateAllocations_OverAllocation(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("300"), AmountPaid: d("250")},
	}
	explicit := []ExplicitAllocation{{InvoiceID: "A", Amount: d("100")}}

	_, errs := ValidateAllocations(invoices, d("100"), explicit)

	require.Len(t, errs, 1)
	assert.Equal(t, CodeOverAllocation, errs[0].Code)
	assert.Contains(t, errs[0].Message, "A")
	assert.Equal(t, "invoices.0.amount", errs[0].Field)
}

func TestValidateAllocations_TotalExceedsPayment(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("300"), AmountPaid: d("0")},
		{InvoiceID: "B", InvoiceDate: day(2), TotalAmount: d("300"), AmountPaid: d("0")},
	}
	explicit := []ExplicitAllocation{
		{InvoiceID: "A", Amount: d("300")},
		{InvoiceID: "B", Amount: d("300")},
	}

	_, errs := ValidateAllocations(invoices, d("500"), explicit)

	require.Len(t, errs, 1)
	assert.Equal(t, CodeOverAllocation, errs[0].Code)
	assert.Equal(t, "amount", errs[0].Field)
}

func TestValidateAllocations_DuplicateRowsConsumeBalance(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("100"), AmountPaid: d("0")},
	}
	explicit := []ExplicitAllocation{
		{InvoiceID: "A", Amount: d("100")},
		{InvoiceID: "A", Amount: d("100")},
	}

	_, errs := ValidateAllocations(invoices, d("200"), explicit)

	require.Len(t, errs, 1)
	assert.Equal(t, CodeOverAllocation, errs[0].Code)
	assert.Equal(t, "invoices.1.amount", errs[0].Field)
}

func TestValidateAllocations_DuplicateRowsWithinBalance(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("100"), AmountPaid: d("0")},
	}
	explicit := []ExplicitAllocation{
		{InvoiceID: "A", Amount: d("60")},
		{InvoiceID: "A", Amount: d("40")},
	}

	allocations, errs := ValidateAllocations(invoices, d("100"), explicit)

	require.Empty(t, errs)
	require.Len(t, allocations, 2)
	total := allocations[0].Amount.Add(allocations[1].Amount)
	assert.True(t, d("100").Equal(total))
}

func TestValidateAllocations_UnknownInvoiceAndNegativeAmount(t *testing.T) {
	invoices := []OutstandingInvoice{
		{InvoiceID: "A", InvoiceDate: day(1), TotalAmount: d("300"), AmountPaid: d("0")},
	}
	explicit := []ExplicitAllocation{
		{InvoiceID: "X", Amount: d("10")},
		{InvoiceID: "A", Amount: d("-5")},
	}

	_, errs := ValidateAllocations(invoices, d("100"), explicit)

	require.Len(t, errs, 2)
	assert.Equal(t, CodeInvalidAllocation, errs[0].Code)
	assert.Equal(t, "invoices.0.invoiceId", errs[0].Field)
	assert.Equal(t, CodeInvalidAllocation, errs[1].Code)
	assert.Equal(t, "invoices.1.amount", errs[1].Field)
}
