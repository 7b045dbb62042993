package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nckmackenzie/atarah-api/internal/db"
	"github.com/nckmackenzie/atarah-api/internal/ledger"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// PaymentInput records money received against a single invoice.
type PaymentInput struct {
	InvoiceID        utils.SixID
	PaymentDate      time.Time
	Amount           string
	PaymentMethod    string
	PaymentReference string
}

// BulkPaymentInput records one payment spread across a client's outstanding
// invoices. When Allocations is empty the amount is distributed oldest
// invoice first; otherwise the caller-chosen amounts are validated as-is.
type BulkPaymentInput struct {
	ClientID         utils.SixID
	PaymentDate      time.Time
	Amount           string
	PaymentMethod    string
	PaymentReference string
	Allocations      []BulkAllocationInput
}

// BulkAllocationInput is one caller-chosen per-invoice amount.
type BulkAllocationInput struct {
	InvoiceID utils.SixID
	Amount    string
}

// IPaymentService records and reverses invoice payments.
type IPaymentService interface {
	Create(ctx context.Context, input PaymentInput) (*models.InvoicePayment, error)
	CreateBulk(ctx context.Context, input BulkPaymentInput) ([]models.InvoicePayment, error)
	FindByID(ctx context.Context, paymentID utils.SixID) (*models.InvoicePayment, error)
	List(ctx context.Context, clientID utils.SixID, from, to time.Time) ([]models.InvoicePayment, error)
	Delete(ctx context.Context, paymentID utils.SixID) error
}

const paymentsCollection = "payments"

type paymentService struct {
	db             *mongo.Database
	invoiceService IInvoiceService
	clientService  IClientService
	accountService IAccountService
	journalService IJournalService
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(database *mongo.Database, invoiceService IInvoiceService, clientService IClientService,
	accountService IAccountService, journalService IJournalService) IPaymentService {
	return &paymentService{
		db:             database,
		invoiceService: invoiceService,
		clientService:  clientService,
		accountService: accountService,
		journalService: journalService,
	}
}

// Create records a payment against one invoice. The amount cannot exceed the
// invoice's balance.
func (s *paymentService) Create(ctx context.Context, input PaymentInput) (*models.InvoicePayment, error) {
	amount, err := parsePaymentAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	if !models.ValidPaymentMethod(input.PaymentMethod) {
		return nil, NewValidationError("paymentMethod", "invalid_payment_method", "unknown payment method")
	}
	if input.PaymentDate.IsZero() {
		return nil, NewValidationError("paymentDate", "required", "payment date is required")
	}

	invoice, err := s.invoiceService.FindByID(ctx, input.InvoiceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewValidationError("invoiceId", ledger.CodeInvalidAllocation, "invoice does not exist")
		}
		return nil, err
	}
	balance := invoice.Balance()
	if amount.Cmp(balance) > 0 {
		return nil, NewValidationError("amount", ledger.CodeOverAllocation,
			fmt.Sprintf("amount %s exceeds balance %s of invoice %s", amount.String(), balance.String(), invoice.InvoiceNo))
	}

	payments, err := s.record(ctx, invoice.ClientID, invoice.ClientName, input.PaymentDate,
		models.PaymentMethod(input.PaymentMethod), strings.TrimSpace(input.PaymentReference), amount,
		[]ledger.PaymentAllocation{{InvoiceID: invoice.ID.String(), Amount: amount}})
	if err != nil {
		return nil, err
	}
	return &payments[0], nil
}

// CreateBulk records one payment across a client's outstanding invoices,
// either auto-allocated oldest first or following explicit amounts.
func (s *paymentService) CreateBulk(ctx context.Context, input BulkPaymentInput) ([]models.InvoicePayment, error) {
	amount, err := parsePaymentAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	if !models.ValidPaymentMethod(input.PaymentMethod) {
		return nil, NewValidationError("paymentMethod", "invalid_payment_method", "unknown payment method")
	}
	if input.PaymentDate.IsZero() {
		return nil, NewValidationError("paymentDate", "required", "payment date is required")
	}

	client, err := s.clientService.FindByID(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewValidationError("clientId", "invalid_client", "client does not exist")
		}
		return nil, err
	}

	outstanding, err := s.invoiceService.Outstanding(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}

	var allocations []ledger.PaymentAllocation
	var allocErrs []ledger.ValidationError
	if len(input.Allocations) == 0 {
		allocations, allocErrs = ledger.Allocate(outstanding, amount)
	} else {
		explicit := make([]ledger.ExplicitAllocation, 0, len(input.Allocations))
		for i, alloc := range input.Allocations {
			allocAmount, parseErr := decimal.NewFromString(strings.TrimSpace(alloc.Amount))
			if parseErr != nil {
				return nil, NewValidationError(fmt.Sprintf("invoices.%d.amount", i),
					ledger.CodeInvalidAllocation, "amount must be a valid number")
			}
			explicit = append(explicit, ledger.ExplicitAllocation{
				InvoiceID: alloc.InvoiceID.String(),
				Amount:    allocAmount,
			})
		}
		allocations, allocErrs = ledger.ValidateAllocations(outstanding, amount, explicit)
	}
	if len(allocErrs) > 0 {
		return nil, &ValidationFailedError{Errors: allocErrs}
	}
	if len(allocations) == 0 {
		return nil, NewValidationError("amount", ledger.CodeInvalidPayment,
			"client has no outstanding invoices to allocate against")
	}

	return s.record(ctx, client.ID, client.Name, input.PaymentDate,
		models.PaymentMethod(input.PaymentMethod), strings.TrimSpace(input.PaymentReference), amount, allocations)
}

// record persists one payment document per allocation, advances each
// invoice's amount paid and posts the receipt to the journal. All documents
// of a bulk payment share a payment reference.
func (s *paymentService) record(ctx context.Context, clientID utils.SixID, clientName string, date time.Time,
	method models.PaymentMethod, reference string, amount decimal.Decimal,
	allocations []ledger.PaymentAllocation) ([]models.InvoicePayment, error) {

	if reference == "" {
		reference = uuid.NewString()
	}

	payments := make([]models.InvoicePayment, 0, len(allocations))
	for _, alloc := range allocations {
		invoiceID, err := utils.ParseSixID(alloc.InvoiceID)
		if err != nil {
			return nil, fmt.Errorf("allocation carries malformed invoice ID %q: %w", alloc.InvoiceID, err)
		}
		invoice, err := s.invoiceService.FindByID(ctx, invoiceID)
		if err != nil {
			return nil, err
		}

		payment := &models.InvoicePayment{
			InvoiceID:        invoiceID,
			InvoiceNo:        invoice.InvoiceNo,
			ClientID:         clientID,
			ClientName:       clientName,
			PaymentDate:      date,
			Amount:           alloc.Amount.String(),
			PaymentMethod:    method,
			PaymentReference: reference,
			Audit:            models.NewAudit(time.Now().UTC()),
		}
		doc, err := db.InsertOne(ctx, s.db.Collection(paymentsCollection), payment)
		if err != nil {
			return nil, fmt.Errorf("error inserting payment for invoice %s: %w", invoice.InvoiceNo, err)
		}
		payment = doc.(*models.InvoicePayment)

		if err := s.invoiceService.ApplyPayment(ctx, invoiceID, alloc.Amount); err != nil {
			return nil, err
		}
		if err := s.postPaymentJournal(ctx, payment); err != nil {
			return nil, fmt.Errorf("payment for invoice %s saved but journal posting failed: %w", invoice.InvoiceNo, err)
		}
		payments = append(payments, *payment)
	}
	return payments, nil
}

// FindByID returns a non-deleted payment by ID.
func (s *paymentService) FindByID(ctx context.Context, paymentID utils.SixID) (*models.InvoicePayment, error) {
	var payment models.InvoicePayment
	err := s.db.Collection(paymentsCollection).
		FindOne(ctx, bson.M{"_id": paymentID, "deleted": false}).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding payment %s: %w", paymentID.String(), err)
	}
	return &payment, nil
}

// List returns payments newest first, optionally restricted to one client
// and a date range.
func (s *paymentService) List(ctx context.Context, clientID utils.SixID, from, to time.Time) ([]models.InvoicePayment, error) {
	filter := bson.M{"deleted": false}
	if clientID != (utils.SixID{}) {
		filter["client_id"] = clientID
	}
	if dateFilter := dateRangeFilter(from, to); dateFilter != nil {
		filter["payment_date"] = dateFilter
	}

	opts := options.Find().SetSort(bson.D{{Key: "payment_date", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.db.Collection(paymentsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer cursor.Close(ctx)

	var payments []models.InvoicePayment
	if err = cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}

// Delete reverses a payment: the document is soft-deleted, the invoice's
// amount paid is rolled back and the journal posting is retracted.
func (s *paymentService) Delete(ctx context.Context, paymentID utils.SixID) error {
	payment, err := s.FindByID(ctx, paymentID)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(payment.Amount)
	if err != nil {
		return fmt.Errorf("payment %s has malformed amount %q", paymentID.String(), payment.Amount)
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": now}}
	result, err := s.db.Collection(paymentsCollection).
		UpdateOne(ctx, bson.M{"_id": paymentID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting payment %s: %w", paymentID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	if err := s.invoiceService.ApplyPayment(ctx, payment.InvoiceID, amount.Neg()); err != nil {
		return err
	}
	_, err = s.db.Collection(journalsCollection).UpdateMany(ctx,
		bson.M{"transaction_id": paymentTransactionID(paymentID), "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": now}})
	if err != nil {
		return fmt.Errorf("db error retracting journal entries for payment %s: %w", paymentID.String(), err)
	}
	return nil
}

// postPaymentJournal records the receipt: debit the cash or bank account,
// credit Accounts Receivable.
func (s *paymentService) postPaymentJournal(ctx context.Context, payment *models.InvoicePayment) error {
	depositName := SystemAccountBank
	if payment.PaymentMethod == models.PaymentMethodCash {
		depositName = SystemAccountCash
	}
	deposit, err := s.accountService.FindSystemAccount(ctx, depositName)
	if err != nil {
		return err
	}
	receivable, err := s.accountService.FindSystemAccount(ctx, SystemAccountReceivable)
	if err != nil {
		return err
	}

	details := []models.JournalDetail{
		{
			ID:          utils.NewSixID(),
			AccountID:   deposit.ID,
			AccountName: deposit.Name,
			Debit:       payment.Amount,
			Credit:      "0",
			Description: payment.InvoiceNo,
		},
		{
			ID:          utils.NewSixID(),
			AccountID:   receivable.ID,
			AccountName: receivable.Name,
			Debit:       "0",
			Credit:      payment.Amount,
			Description: payment.InvoiceNo,
		},
	}
	_, err = s.journalService.PostSystem(ctx, payment.PaymentDate, paymentTransactionID(payment.ID), details)
	return err
}

func paymentTransactionID(paymentID utils.SixID) string {
	return "payment:" + paymentID.String()
}

func parsePaymentAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, NewValidationError("amount", ledger.CodeInvalidPayment, "amount must be a valid number")
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, NewValidationError("amount", ledger.CodeInvalidPayment, "amount must be greater than zero")
	}
	return amount, nil
}
