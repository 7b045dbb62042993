package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nckmackenzie/atarah-api/internal/ledger"
	"github.com/nckmackenzie/atarah-api/internal/models"
)

func TestInvoiceCreateComputesTotalsAndPostsJournal(t *testing.T) {
	ts := setupServices(t)

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")

	invoice := ts.createInvoice(t, client.ID, item.ID, "2", "5000")

	assert.Equal(t, "INV-0001", invoice.InvoiceNo)
	assert.Equal(t, "10000", invoice.SubTotal)
	assert.Equal(t, "1600", invoice.VatAmount)
	assert.Equal(t, "11600", invoice.TotalAmount)
	assert.Equal(t, "0", invoice.AmountPaid)
	assert.Equal(t, "Acme Ltd", invoice.ClientName)
	// 30-day terms from Aug 1.
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), invoice.DueDate)

	// Receivable posting: debit AR 11600, credit Sales 10000, credit VAT 1600.
	entries := ts.journalsFor(t, "invoice:"+invoice.ID.String())
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Details, 3)

	totals := map[string]string{}
	for _, detail := range entries[0].Details {
		if detail.Debit != "0" {
			totals[detail.AccountName] = "D" + detail.Debit
		} else {
			totals[detail.AccountName] = "C" + detail.Credit
		}
	}
	assert.Equal(t, "D11600", totals[SystemAccountReceivable])
	assert.Equal(t, "C10000", totals[SystemAccountSales])
	assert.Equal(t, "C1600", totals[SystemAccountVatPayable])

	// Numbers advance per invoice.
	second := ts.createInvoice(t, client.ID, item.ID, "1", "1000")
	assert.Equal(t, "INV-0002", second.InvoiceNo)
}

func TestInvoiceCreateRejectsBadLines(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")

	_, err := ts.invoices.Create(ctx, InvoiceInput{
		ClientID:    client.ID,
		InvoiceDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Terms:       "30",
		VatType:     "no_vat",
		Lines: []InvoiceLineInput{
			{ServiceID: item.ID, Quantity: "0", Rate: "5000"},
			{ServiceID: item.ID, Quantity: "1", Rate: "-10"},
		},
	})
	var ve *ValidationFailedError
	require.ErrorAs(t, err, &ve)
	assert.GreaterOrEqual(t, len(ve.Errors), 2)
}

func TestInvoiceCreateRejectsEmptyLines(t *testing.T) {
	ts := setupServices(t)
	client := ts.createClient(t, "Acme Ltd")

	_, err := ts.invoices.Create(context.Background(), InvoiceInput{
		ClientID:    client.ID,
		InvoiceDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Terms:       "0",
		VatType:     "no_vat",
	})
	require.Error(t, err)
	_, ok := AsValidationError(err)
	assert.True(t, ok)
}

func TestInvoiceCreateRejectsDueDateBeforeInvoiceDate(t *testing.T) {
	ts := setupServices(t)
	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")

	early := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	_, err := ts.invoices.Create(context.Background(), InvoiceInput{
		ClientID:    client.ID,
		InvoiceDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Terms:       "30",
		DueDate:     &early,
		VatType:     "no_vat",
		Lines: []InvoiceLineInput{
			{ServiceID: item.ID, Quantity: "1", Rate: "100"},
		},
	})
	require.Error(t, err)
}

func TestInvoiceUpdateReplacesJournalPosting(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")
	invoice := ts.createInvoice(t, client.ID, item.ID, "2", "5000")

	updated, err := ts.invoices.Update(ctx, invoice.ID, InvoiceInput{
		ClientID:    client.ID,
		InvoiceDate: invoice.InvoiceDate,
		Terms:       "30",
		VatType:     "no_vat",
		Lines: []InvoiceLineInput{
			{ServiceID: item.ID, Quantity: "1", Rate: "2000"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "2000", updated.TotalAmount)
	assert.Equal(t, "0", updated.VatAmount)
	assert.Equal(t, invoice.InvoiceNo, updated.InvoiceNo)

	// The old posting is retracted; exactly one live entry remains.
	entries := ts.journalsFor(t, "invoice:"+invoice.ID.String())
	require.Len(t, entries, 1)
	assert.Equal(t, "2000", entries[0].Details[0].Debit)
}

func TestInvoiceUpdateCannotDropBelowAmountPaid(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")
	invoice := ts.createInvoice(t, client.ID, item.ID, "2", "5000")

	_, err := ts.payments.Create(ctx, PaymentInput{
		InvoiceID:     invoice.ID,
		PaymentDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Amount:        "5000",
		PaymentMethod: "mpesa",
	})
	require.NoError(t, err)

	_, err = ts.invoices.Update(ctx, invoice.ID, InvoiceInput{
		ClientID:    client.ID,
		InvoiceDate: invoice.InvoiceDate,
		Terms:       "30",
		VatType:     "no_vat",
		Lines: []InvoiceLineInput{
			{ServiceID: item.ID, Quantity: "1", Rate: "1000"},
		},
	})
	require.Error(t, err)
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "below_amount_paid", ve.Errors[0].Code)
}

func TestInvoiceDeleteBlockedByPayments(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")
	invoice := ts.createInvoice(t, client.ID, item.ID, "1", "5800")

	_, err := ts.payments.Create(ctx, PaymentInput{
		InvoiceID:     invoice.ID,
		PaymentDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Amount:        "1000",
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	err = ts.invoices.Delete(ctx, invoice.ID)
	require.Error(t, err)
	_, ok := AsValidationError(err)
	assert.True(t, ok)
}

func TestInvoiceDeleteRetractsJournal(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")
	invoice := ts.createInvoice(t, client.ID, item.ID, "1", "5000")

	require.NoError(t, ts.invoices.Delete(ctx, invoice.ID))

	_, err := ts.invoices.FindByID(ctx, invoice.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Empty(t, ts.journalsFor(t, "invoice:"+invoice.ID.String()))
}

func TestOutstandingSkipsSettledInvoices(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")

	open := ts.createInvoice(t, client.ID, item.ID, "1", "5000")
	settled := ts.createInvoice(t, client.ID, item.ID, "1", "1000")

	_, err := ts.payments.Create(ctx, PaymentInput{
		InvoiceID:     settled.ID,
		PaymentDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Amount:        "1160",
		PaymentMethod: "bank",
	})
	require.NoError(t, err)

	outstanding, err := ts.invoices.Outstanding(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, open.ID.String(), outstanding[0].InvoiceID)
}

func TestApplyPaymentRejectsNegativeBalance(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")
	invoice := ts.createInvoice(t, client.ID, item.ID, "1", "1000")

	err := ts.invoices.ApplyPayment(ctx, invoice.ID, decimal.NewFromInt(-50))
	require.Error(t, err)
	_, ok := AsValidationError(err)
	assert.True(t, ok)
}

func TestApplyPaymentRejectsExceedingTotal(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")
	invoice := ts.createInvoice(t, client.ID, item.ID, "1", "1000") // total 1160

	err := ts.invoices.ApplyPayment(ctx, invoice.ID, decimal.NewFromInt(2000))
	require.Error(t, err)
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, ledger.CodeOverAllocation, ve.Errors[0].Code)

	// The stored amount is untouched, the balance never goes negative.
	unchanged, err := ts.invoices.FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "0", unchanged.AmountPaid)
	assert.True(t, unchanged.Balance().Sign() >= 0)
}

func TestListFiltersByDerivedStatus(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")

	paid := ts.createInvoice(t, client.ID, item.ID, "1", "1000")
	ts.createInvoice(t, client.ID, item.ID, "1", "2000")

	_, err := ts.payments.Create(ctx, PaymentInput{
		InvoiceID:     paid.ID,
		PaymentDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Amount:        "1160",
		PaymentMethod: "mpesa",
	})
	require.NoError(t, err)

	paidOnly, err := ts.invoices.List(ctx, InvoiceListFilter{
		ClientID: client.ID,
		Status:   models.InvoiceStatusPaid,
	})
	require.NoError(t, err)
	require.Len(t, paidOnly, 1)
	assert.Equal(t, paid.ID, paidOnly[0].ID)
}

func TestFindOverdueIgnoresPaidAndNotified(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client := ts.createClient(t, "Acme Ltd")
	item := ts.createServiceItem(t, "Bookkeeping", "5000")
	invoice := ts.createInvoice(t, client.ID, item.ID, "1", "1000")

	// Due Aug 31; well past due by October.
	asOf := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	overdue, err := ts.invoices.FindOverdue(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, invoice.ID, overdue[0].ID)

	require.NoError(t, ts.invoices.MarkOverdueNotified(ctx, invoice.ID))

	overdue, err = ts.invoices.FindOverdue(ctx, asOf)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}
