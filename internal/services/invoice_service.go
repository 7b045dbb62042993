package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nckmackenzie/atarah-api/internal/config"
	"github.com/nckmackenzie/atarah-api/internal/db"
	"github.com/nckmackenzie/atarah-api/internal/ledger"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// InvoiceLineInput is one raw invoice line from the form. Quantity, Rate and
// Discount are decimal strings; Discount may be empty.
type InvoiceLineInput struct {
	ServiceID utils.SixID
	Quantity  string
	Rate      string
	Discount  string
	Remarks   string
}

// InvoiceInput is the payload for creating or replacing an invoice.
type InvoiceInput struct {
	ClientID    utils.SixID
	InvoiceDate time.Time
	Terms       string
	// DueDate overrides derivation from terms when the client sends one.
	DueDate *time.Time
	VatType string
	// VatRate falls back to the configured default when vat applies and the
	// form leaves it blank.
	VatRate string
	Lines   []InvoiceLineInput
}

// InvoiceListFilter narrows List results. Zero values mean no filter.
type InvoiceListFilter struct {
	ClientID utils.SixID
	Status   models.InvoiceStatus
	From     time.Time
	To       time.Time
	Search   string
}

// IInvoiceService defines the interface for invoice operations.
type IInvoiceService interface {
	Create(ctx context.Context, input InvoiceInput) (*models.Invoice, error)
	Update(ctx context.Context, invoiceID utils.SixID, input InvoiceInput) (*models.Invoice, error)
	FindByID(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error)
	List(ctx context.Context, filter InvoiceListFilter) ([]models.Invoice, error)
	Delete(ctx context.Context, invoiceID utils.SixID) error
	// Outstanding returns unpaid invoice snapshots for the allocation engine,
	// all clients when clientID is zero.
	Outstanding(ctx context.Context, clientID utils.SixID) ([]ledger.OutstandingInvoice, error)
	// ApplyPayment adjusts an invoice's amount paid by delta (negative when a
	// payment is reversed).
	ApplyPayment(ctx context.Context, invoiceID utils.SixID, delta decimal.Decimal) error
	FindOverdue(ctx context.Context, asOf time.Time) ([]models.Invoice, error)
	MarkOverdueNotified(ctx context.Context, invoiceID utils.SixID) error
}

const invoiceNoSequence = "invoice_no"

type invoiceService struct {
	db             *mongo.Database
	cfg            *config.Config
	clientService  IClientService
	catalogService ICatalogService
	accountService IAccountService
	journalService IJournalService
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(database *mongo.Database, cfg *config.Config, clientService IClientService,
	catalogService ICatalogService, accountService IAccountService, journalService IJournalService) IInvoiceService {
	return &invoiceService{
		db:             database,
		cfg:            cfg,
		clientService:  clientService,
		catalogService: catalogService,
		accountService: accountService,
		journalService: journalService,
	}
}

// computedInvoice is the validated intermediate between form input and the
// stored document.
type computedInvoice struct {
	client  *models.Client
	vatType ledger.VatType
	vatRate *decimal.Decimal
	dueDate time.Time
	details []models.InvoiceDetail
	totals  ledger.ComputedInvoiceTotals
}

// Create computes totals for the submitted lines, assigns the next invoice
// number and posts the receivable to the journal.
func (s *invoiceService) Create(ctx context.Context, input InvoiceInput) (*models.Invoice, error) {
	computed, err := s.compute(ctx, input)
	if err != nil {
		return nil, err
	}

	seq, err := db.NextSequence(ctx, s.db, invoiceNoSequence)
	if err != nil {
		return nil, err
	}
	invoiceNo := fmt.Sprintf("%s%04d", s.cfg.InvoiceNoPrefix, seq)

	invoice := &models.Invoice{
		InvoiceNo:     invoiceNo,
		ClientID:      input.ClientID,
		ClientName:    computed.client.Name,
		InvoiceDate:   input.InvoiceDate,
		Terms:         input.Terms,
		DueDate:       computed.dueDate,
		VatType:       string(computed.vatType),
		Details:       computed.details,
		SubTotal:      computed.totals.SubTotal.String(),
		TotalDiscount: computed.totals.TotalDiscount.String(),
		VatAmount:     computed.totals.VatAmount.String(),
		TotalAmount:   computed.totals.TotalAmount.String(),
		AmountPaid:    "0",
		Audit:         models.NewAudit(time.Now().UTC()),
	}
	if computed.vatRate != nil {
		invoice.VatRate = computed.vatRate.String()
	}

	doc, err := db.InsertOne(ctx, s.db.Collection(invoicesCollection), invoice)
	if err != nil {
		return nil, fmt.Errorf("error inserting invoice %s: %w", invoiceNo, err)
	}
	invoice = doc.(*models.Invoice)

	if err := s.postInvoiceJournal(ctx, invoice, computed.totals); err != nil {
		return nil, fmt.Errorf("invoice %s saved but journal posting failed: %w", invoiceNo, err)
	}
	return invoice, nil
}

// Update replaces the invoice's lines and totals with a freshly computed
// snapshot. The new total cannot drop below what has already been paid.
func (s *invoiceService) Update(ctx context.Context, invoiceID utils.SixID, input InvoiceInput) (*models.Invoice, error) {
	existing, err := s.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	computed, err := s.compute(ctx, input)
	if err != nil {
		return nil, err
	}

	paid, err := decimal.NewFromString(existing.AmountPaid)
	if err != nil {
		paid = decimal.Zero
	}
	if computed.totals.TotalAmount.Cmp(paid) < 0 {
		return nil, NewValidationError("items", "below_amount_paid",
			fmt.Sprintf("new total %s is below the amount already paid %s",
				computed.totals.TotalAmount.String(), paid.String()))
	}

	set := bson.M{
		"client_id":    input.ClientID,
		"client_name":  computed.client.Name,
		"invoice_date": input.InvoiceDate,
		"terms":        input.Terms,
		"due_date":     computed.dueDate,
		"vat_type":     string(computed.vatType),
		"details":      computed.details,
		"sub_total":    computed.totals.SubTotal.String(),
		"discount":     computed.totals.TotalDiscount.String(),
		"vat_amount":   computed.totals.VatAmount.String(),
		"total_amount": computed.totals.TotalAmount.String(),
		"updated_at":   time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if computed.vatRate != nil {
		set["vat_rate"] = computed.vatRate.String()
	} else {
		update["$unset"] = bson.M{"vat_rate": ""}
	}

	result, err := s.db.Collection(invoicesCollection).
		UpdateOne(ctx, bson.M{"_id": invoiceID, "deleted": false}, update)
	if err != nil {
		return nil, fmt.Errorf("db error updating invoice %s: %w", invoiceID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}

	invoice, err := s.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	// Replace the invoice's journal postings with the recomputed figures.
	if err := s.retractJournal(ctx, invoiceTransactionID(invoiceID)); err != nil {
		return nil, err
	}
	if err := s.postInvoiceJournal(ctx, invoice, computed.totals); err != nil {
		return nil, fmt.Errorf("invoice %s updated but journal posting failed: %w", invoice.InvoiceNo, err)
	}
	return invoice, nil
}

// FindByID returns a non-deleted invoice by ID.
func (s *invoiceService) FindByID(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.Collection(invoicesCollection).
		FindOne(ctx, bson.M{"_id": invoiceID, "deleted": false}).Decode(&invoice)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding invoice %s: %w", invoiceID.String(), err)
	}
	return &invoice, nil
}

// List returns invoices matching the filter, newest first. Status filtering
// happens after the query since status is derived, not stored.
func (s *invoiceService) List(ctx context.Context, filter InvoiceListFilter) ([]models.Invoice, error) {
	query := bson.M{"deleted": false}
	if filter.ClientID != (utils.SixID{}) {
		query["client_id"] = filter.ClientID
	}
	if dateFilter := dateRangeFilter(filter.From, filter.To); dateFilter != nil {
		query["invoice_date"] = dateFilter
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query["invoice_no"] = bson.M{"$regex": regexEscape(search), "$options": "i"}
	}

	opts := options.Find().SetSort(bson.D{{Key: "invoice_date", Value: -1}, {Key: "invoice_no", Value: -1}})
	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []models.Invoice
	if err = cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("failed to decode invoices: %w", err)
	}

	if filter.Status == "" {
		return invoices, nil
	}
	now := time.Now().UTC()
	matched := invoices[:0]
	for i := range invoices {
		if invoices[i].Status(now) == filter.Status {
			matched = append(matched, invoices[i])
		}
	}
	return matched, nil
}

// Delete soft-deletes an invoice and retracts its journal postings. Invoices
// with payments on file cannot be deleted.
func (s *invoiceService) Delete(ctx context.Context, invoiceID utils.SixID) error {
	invoice, err := s.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	paid, err := decimal.NewFromString(invoice.AmountPaid)
	if err == nil && paid.Sign() > 0 {
		return NewValidationError("id", "invoice_has_payments", "invoice has payments and cannot be deleted")
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": now}}
	result, err := s.db.Collection(invoicesCollection).
		UpdateOne(ctx, bson.M{"_id": invoiceID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting invoice %s: %w", invoiceID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return s.retractJournal(ctx, invoiceTransactionID(invoiceID))
}

// Outstanding returns allocation snapshots of every invoice with money still
// owed, restricted to one client when clientID is non-zero.
func (s *invoiceService) Outstanding(ctx context.Context, clientID utils.SixID) ([]ledger.OutstandingInvoice, error) {
	query := bson.M{"deleted": false}
	if clientID != (utils.SixID{}) {
		query["client_id"] = clientID
	}

	opts := options.Find().SetSort(bson.D{{Key: "invoice_date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query outstanding invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []models.Invoice
	if err = cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("failed to decode outstanding invoices: %w", err)
	}

	outstanding := []ledger.OutstandingInvoice{}
	for i := range invoices {
		inv := &invoices[i]
		if inv.Balance().Sign() <= 0 {
			continue
		}
		total, err := decimal.NewFromString(inv.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("invoice %s has malformed total %q", inv.InvoiceNo, inv.TotalAmount)
		}
		paid, err := decimal.NewFromString(inv.AmountPaid)
		if err != nil {
			paid = decimal.Zero
		}
		outstanding = append(outstanding, ledger.OutstandingInvoice{
			InvoiceID:   inv.ID.String(),
			InvoiceNo:   inv.InvoiceNo,
			InvoiceDate: inv.InvoiceDate,
			TotalAmount: total,
			AmountPaid:  paid,
		})
	}
	return outstanding, nil
}

// ApplyPayment moves an invoice's amount paid by delta. The stored amount is
// a decimal string so this is a read-modify-write, retried on write races.
func (s *invoiceService) ApplyPayment(ctx context.Context, invoiceID utils.SixID, delta decimal.Decimal) error {
	collection := s.db.Collection(invoicesCollection)
	operation := func() error {
		invoice, err := s.FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		paid, err := decimal.NewFromString(invoice.AmountPaid)
		if err != nil {
			paid = decimal.Zero
		}
		total, err := decimal.NewFromString(invoice.TotalAmount)
		if err != nil {
			return fmt.Errorf("invoice %s has malformed total %q", invoice.InvoiceNo, invoice.TotalAmount)
		}
		newPaid := paid.Add(delta)
		if newPaid.Sign() < 0 {
			return NewValidationError("amount", "invalid_payment", "amount paid cannot go negative")
		}
		if newPaid.Cmp(total) > 0 {
			return NewValidationError("amount", ledger.CodeOverAllocation,
				"amount paid cannot exceed the invoice total")
		}

		// Guard against concurrent payment postings with a compare-and-set on
		// the previous value.
		result, err := collection.UpdateOne(ctx,
			bson.M{"_id": invoiceID, "deleted": false, "amount_paid": invoice.AmountPaid},
			bson.M{"$set": bson.M{"amount_paid": newPaid.String(), "updated_at": time.Now().UTC()}})
		if err != nil {
			return fmt.Errorf("db error applying payment to invoice %s: %w", invoiceID.String(), err)
		}
		if result.MatchedCount == 0 {
			return fmt.Errorf("concurrent update of invoice %s, retrying", invoiceID.String())
		}
		return nil
	}
	return db.WithRetries(operation, 5, func(err error) bool {
		return strings.Contains(err.Error(), "concurrent update")
	})
}

// FindOverdue returns unpaid invoices past due as of the given instant that
// have not yet triggered a reminder.
func (s *invoiceService) FindOverdue(ctx context.Context, asOf time.Time) ([]models.Invoice, error) {
	cutoff := asOf.AddDate(0, 0, -s.cfg.MinOverduePeriodDays)
	filter := bson.M{
		"due_date":         bson.M{"$lt": cutoff},
		"overdue_notified": false,
		"deleted":          false,
	}
	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []models.Invoice
	if err = cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("failed to decode overdue invoices: %w", err)
	}

	// Fully paid invoices never count, whatever their due date.
	overdue := invoices[:0]
	for i := range invoices {
		if invoices[i].Balance().Sign() > 0 {
			overdue = append(overdue, invoices[i])
		}
	}
	return overdue, nil
}

// MarkOverdueNotified sets the reminder flag on an invoice.
func (s *invoiceService) MarkOverdueNotified(ctx context.Context, invoiceID utils.SixID) error {
	result, err := s.db.Collection(invoicesCollection).UpdateOne(ctx,
		bson.M{"_id": invoiceID},
		bson.M{"$set": bson.M{"overdue_notified": true}})
	if err != nil {
		return fmt.Errorf("db error marking invoice %s overdue notified: %w", invoiceID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// compute validates the input and derives the totals, due date and stored
// detail lines.
func (s *invoiceService) compute(ctx context.Context, input InvoiceInput) (*computedInvoice, error) {
	if len(input.Lines) == 0 {
		return nil, NewValidationError("items", "required", "an invoice needs at least one line item")
	}
	if input.InvoiceDate.IsZero() {
		return nil, NewValidationError("invoiceDate", "required", "invoice date is required")
	}

	client, err := s.clientService.FindByID(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewValidationError("clientId", "invalid_client", "client does not exist")
		}
		return nil, err
	}

	vatType, err := ledger.ParseVatType(input.VatType)
	if err != nil {
		return nil, NewValidationError("vatType", "invalid_vat_type", "vat type must be no_vat, inclusive or exclusive")
	}

	terms, err := ledger.ParseTerms(input.Terms)
	if err != nil {
		return nil, NewValidationError("terms", ledger.CodeInvalidTerms, "terms must be 0, 30 or 60 days")
	}

	dueDate := ledger.DeriveDueDate(input.InvoiceDate, terms)
	if input.DueDate != nil {
		if errs := ledger.ValidateDueDate(input.InvoiceDate, *input.DueDate); len(errs) > 0 {
			return nil, &ValidationFailedError{Errors: errs}
		}
		dueDate = *input.DueDate
	}

	var vatRate *decimal.Decimal
	if vatType != ledger.VatNone {
		rateStr := strings.TrimSpace(input.VatRate)
		if rateStr == "" {
			rateStr = s.cfg.DefaultVatRate
		}
		rate, rateErr := decimal.NewFromString(rateStr)
		if rateErr != nil {
			return nil, NewValidationError("vat", ledger.CodeVatRateRequired, "vat rate must be a valid percentage")
		}
		vatRate = &rate
	}

	items := make([]ledger.LineItem, 0, len(input.Lines))
	details := make([]models.InvoiceDetail, 0, len(input.Lines))
	var parseErrs []ledger.ValidationError
	for i, line := range input.Lines {
		item, detail, lineErrs := s.buildLine(ctx, i, line)
		if len(lineErrs) > 0 {
			parseErrs = append(parseErrs, lineErrs...)
			continue
		}
		items = append(items, item)
		details = append(details, detail)
	}
	if len(parseErrs) > 0 {
		return nil, &ValidationFailedError{Errors: parseErrs}
	}

	totals, computeErrs := ledger.ComputeInvoice(items, vatType, vatRate)
	if len(computeErrs) > 0 {
		return nil, &ValidationFailedError{Errors: computeErrs}
	}

	// Stamp each stored line with its rounded amount.
	for i := range details {
		details[i].Amount = ledger.KES.Round(items[i].Amount()).String()
	}

	return &computedInvoice{
		client:  client,
		vatType: vatType,
		vatRate: vatRate,
		dueDate: dueDate,
		details: details,
		totals:  totals,
	}, nil
}

func (s *invoiceService) buildLine(ctx context.Context, index int, line InvoiceLineInput) (ledger.LineItem, models.InvoiceDetail, []ledger.ValidationError) {
	fail := func(field, message string) (ledger.LineItem, models.InvoiceDetail, []ledger.ValidationError) {
		return ledger.LineItem{}, models.InvoiceDetail{}, []ledger.ValidationError{{
			Field:   fmt.Sprintf("items.%d.%s", index, field),
			Code:    ledger.CodeInvalidLine,
			Message: message,
		}}
	}

	service, err := s.catalogService.FindByID(ctx, line.ServiceID)
	if err != nil {
		return fail("serviceId", "service does not exist")
	}
	quantity, err := decimal.NewFromString(strings.TrimSpace(line.Quantity))
	if err != nil {
		return fail("quantity", "quantity must be a valid number")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(line.Rate))
	if err != nil {
		return fail("rate", "rate must be a valid amount")
	}
	discount, err := parseAmountOrZero(line.Discount)
	if err != nil {
		return fail("discount", "discount must be a valid amount")
	}

	id := utils.NewSixID()
	item := ledger.LineItem{
		ID:       id.String(),
		Quantity: quantity,
		Rate:     rate,
		Discount: discount,
	}
	detail := models.InvoiceDetail{
		ID:          id,
		ServiceID:   line.ServiceID,
		ServiceName: service.Name,
		Quantity:    quantity.String(),
		Rate:        rate.String(),
		Discount:    discount.String(),
		Remarks:     strings.TrimSpace(line.Remarks),
	}
	return item, detail, nil
}

// postInvoiceJournal records the receivable: debit Accounts Receivable for
// the total, credit Sales for the net amount and VAT Payable for the tax.
func (s *invoiceService) postInvoiceJournal(ctx context.Context, invoice *models.Invoice, totals ledger.ComputedInvoiceTotals) error {
	receivable, err := s.accountService.FindSystemAccount(ctx, SystemAccountReceivable)
	if err != nil {
		return err
	}
	sales, err := s.accountService.FindSystemAccount(ctx, SystemAccountSales)
	if err != nil {
		return err
	}

	netSales := totals.TotalAmount.Sub(totals.VatAmount)
	details := []models.JournalDetail{
		{
			ID:          utils.NewSixID(),
			AccountID:   receivable.ID,
			AccountName: receivable.Name,
			Debit:       totals.TotalAmount.String(),
			Credit:      "0",
			Description: invoice.InvoiceNo,
		},
		{
			ID:          utils.NewSixID(),
			AccountID:   sales.ID,
			AccountName: sales.Name,
			Debit:       "0",
			Credit:      netSales.String(),
			Description: invoice.InvoiceNo,
		},
	}
	if totals.VatAmount.Sign() > 0 {
		vat, vatErr := s.accountService.FindSystemAccount(ctx, SystemAccountVatPayable)
		if vatErr != nil {
			return vatErr
		}
		details = append(details, models.JournalDetail{
			ID:          utils.NewSixID(),
			AccountID:   vat.ID,
			AccountName: vat.Name,
			Debit:       "0",
			Credit:      totals.VatAmount.String(),
			Description: invoice.InvoiceNo,
		})
	}

	_, err = s.journalService.PostSystem(ctx, invoice.InvoiceDate, invoiceTransactionID(invoice.ID), details)
	return err
}

// retractJournal soft-deletes every journal entry posted under the given
// transaction ID.
func (s *invoiceService) retractJournal(ctx context.Context, transactionID string) error {
	now := time.Now().UTC()
	_, err := s.db.Collection(journalsCollection).UpdateMany(ctx,
		bson.M{"transaction_id": transactionID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": now}})
	if err != nil {
		return fmt.Errorf("db error retracting journal entries for %s: %w", transactionID, err)
	}
	return nil
}

// invoiceTransactionID is the journal transaction ID for an invoice's system
// postings, stable across edits so they can be retracted.
func invoiceTransactionID(invoiceID utils.SixID) string {
	return "invoice:" + invoiceID.String()
}
