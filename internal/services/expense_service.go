package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nckmackenzie/atarah-api/internal/db"
	"github.com/nckmackenzie/atarah-api/internal/ledger"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/storage"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// ExpenseLineInput is one voucher line from the form.
type ExpenseLineInput struct {
	AccountID   utils.SixID
	ProjectID   *utils.SixID
	Amount      string
	Description string
}

// ExpenseInput is the payload for creating or updating an expense voucher.
type ExpenseInput struct {
	ExpenseDate      time.Time
	Payee            string
	PaymentMethod    string
	PaymentReference string
	Lines            []ExpenseLineInput
}

// IExpenseService manages expense vouchers and their receipt attachments.
type IExpenseService interface {
	Create(ctx context.Context, input ExpenseInput) (*models.Expense, error)
	Update(ctx context.Context, expenseID utils.SixID, input ExpenseInput) (*models.Expense, error)
	FindByID(ctx context.Context, expenseID utils.SixID) (*models.Expense, error)
	List(ctx context.Context, from, to time.Time, projectID *utils.SixID) ([]models.Expense, error)
	Delete(ctx context.Context, expenseID utils.SixID) error
	// RequestAttachmentUpload registers a receipt attachment and returns a
	// pre-signed PUT URL the client uploads the file to. The thumbnail is
	// generated in the background once the upload lands.
	RequestAttachmentUpload(ctx context.Context, expenseID utils.SixID, filename, contentType string) (string, *models.ExpenseAttachment, error)
	RemoveAttachment(ctx context.Context, expenseID, attachmentID utils.SixID) error
	// SetAttachmentThumbKey records the generated thumbnail's object key.
	// Called by the background image worker.
	SetAttachmentThumbKey(ctx context.Context, expenseID, attachmentID utils.SixID, thumbKey string) error
}

const (
	expensesCollection = "expenses"
	expenseNoSequence  = "expense_no"
)

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

type expenseService struct {
	db             *mongo.Database
	accountService IAccountService
	projectService IProjectService
	journalService IJournalService
	storage        storage.IS3Storage
	imageQueue     IImageQueue
}

// NewExpenseService creates a new ExpenseService. storage and imageQueue may
// be nil when attachments are not in play (background workers, tests).
func NewExpenseService(database *mongo.Database, accountService IAccountService, projectService IProjectService,
	journalService IJournalService, s3 storage.IS3Storage, imageQueue IImageQueue) IExpenseService {
	return &expenseService{
		db:             database,
		accountService: accountService,
		projectService: projectService,
		journalService: journalService,
		storage:        s3,
		imageQueue:     imageQueue,
	}
}

// Create validates the voucher lines, assigns the next expense number and
// posts the spend to the journal.
func (s *expenseService) Create(ctx context.Context, input ExpenseInput) (*models.Expense, error) {
	details, total, err := s.buildDetails(ctx, input)
	if err != nil {
		return nil, err
	}

	expenseNo, err := db.NextSequence(ctx, s.db, expenseNoSequence)
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		ExpenseNo:        expenseNo,
		ExpenseDate:      input.ExpenseDate,
		Payee:            strings.TrimSpace(input.Payee),
		PaymentMethod:    models.PaymentMethod(input.PaymentMethod),
		PaymentReference: strings.TrimSpace(input.PaymentReference),
		Details:          details,
		ExpenseTotal:     total.String(),
		Audit:            models.NewAudit(time.Now().UTC()),
	}
	doc, err := db.InsertOne(ctx, s.db.Collection(expensesCollection), expense)
	if err != nil {
		return nil, fmt.Errorf("error inserting expense %d: %w", expenseNo, err)
	}
	expense = doc.(*models.Expense)

	if err := s.postExpenseJournal(ctx, expense); err != nil {
		return nil, fmt.Errorf("expense %d saved but journal posting failed: %w", expenseNo, err)
	}
	return expense, nil
}

// Update replaces the voucher lines and reposts the journal. Attachments are
// untouched.
func (s *expenseService) Update(ctx context.Context, expenseID utils.SixID, input ExpenseInput) (*models.Expense, error) {
	if _, err := s.FindByID(ctx, expenseID); err != nil {
		return nil, err
	}
	details, total, err := s.buildDetails(ctx, input)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"expense_date":      input.ExpenseDate,
		"payee":             strings.TrimSpace(input.Payee),
		"payment_method":    models.PaymentMethod(input.PaymentMethod),
		"payment_reference": strings.TrimSpace(input.PaymentReference),
		"details":           details,
		"expense_total":     total.String(),
		"updated_at":        time.Now().UTC(),
	}
	result, err := s.db.Collection(expensesCollection).
		UpdateOne(ctx, bson.M{"_id": expenseID, "deleted": false}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("db error updating expense %s: %w", expenseID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}

	expense, err := s.FindByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if err := s.retractJournal(ctx, expenseTransactionID(expenseID)); err != nil {
		return nil, err
	}
	if err := s.postExpenseJournal(ctx, expense); err != nil {
		return nil, fmt.Errorf("expense %d updated but journal posting failed: %w", expense.ExpenseNo, err)
	}
	return expense, nil
}

// FindByID returns a non-deleted expense by ID.
func (s *expenseService) FindByID(ctx context.Context, expenseID utils.SixID) (*models.Expense, error) {
	var expense models.Expense
	err := s.db.Collection(expensesCollection).
		FindOne(ctx, bson.M{"_id": expenseID, "deleted": false}).Decode(&expense)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding expense %s: %w", expenseID.String(), err)
	}
	return &expense, nil
}

// List returns expenses newest first, optionally restricted to a date range
// and a project.
func (s *expenseService) List(ctx context.Context, from, to time.Time, projectID *utils.SixID) ([]models.Expense, error) {
	filter := bson.M{"deleted": false}
	if dateFilter := dateRangeFilter(from, to); dateFilter != nil {
		filter["expense_date"] = dateFilter
	}
	if projectID != nil {
		filter["details.project_id"] = *projectID
	}

	opts := options.Find().SetSort(bson.D{{Key: "expense_date", Value: -1}, {Key: "expense_no", Value: -1}})
	cursor, err := s.db.Collection(expensesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer cursor.Close(ctx)

	var expenses []models.Expense
	if err = cursor.All(ctx, &expenses); err != nil {
		return nil, fmt.Errorf("failed to decode expenses: %w", err)
	}
	return expenses, nil
}

// Delete soft-deletes an expense and retracts its journal postings. Stored
// attachments stay in S3; removal there is best-effort.
func (s *expenseService) Delete(ctx context.Context, expenseID utils.SixID) error {
	expense, err := s.FindByID(ctx, expenseID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": now}}
	result, err := s.db.Collection(expensesCollection).
		UpdateOne(ctx, bson.M{"_id": expenseID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting expense %s: %w", expenseID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	if s.storage != nil {
		for _, att := range expense.Attachments {
			if err := s.storage.DeleteObject(ctx, att.FileKey); err != nil {
				log.Printf("Failed to delete attachment %s for expense %d: %v", att.FileKey, expense.ExpenseNo, err)
			}
			if att.ThumbKey != "" {
				if err := s.storage.DeleteObject(ctx, att.ThumbKey); err != nil {
					log.Printf("Failed to delete thumbnail %s for expense %d: %v", att.ThumbKey, expense.ExpenseNo, err)
				}
			}
		}
	}
	return s.retractJournal(ctx, expenseTransactionID(expenseID))
}

// RequestAttachmentUpload registers an attachment slot on the expense and
// hands back a pre-signed upload URL.
func (s *expenseService) RequestAttachmentUpload(ctx context.Context, expenseID utils.SixID, filename, contentType string) (string, *models.ExpenseAttachment, error) {
	if s.storage == nil {
		return "", nil, fmt.Errorf("attachment storage is not configured")
	}
	if !allowedAttachmentTypes[contentType] {
		return "", nil, NewValidationError("contentType", "unsupported_type", "attachments must be JPEG, PNG or PDF")
	}
	if strings.TrimSpace(filename) == "" {
		return "", nil, NewValidationError("filename", "required", "filename is required")
	}

	if _, err := s.FindByID(ctx, expenseID); err != nil {
		return "", nil, err
	}

	url, objectKey, err := s.storage.GeneratePresignedPutURL(ctx, expenseID.String(), filename, contentType)
	if err != nil {
		return "", nil, fmt.Errorf("failed to presign attachment upload: %w", err)
	}

	attachment := models.ExpenseAttachment{
		ID:      utils.NewSixID(),
		FileKey: objectKey,
		FileURL: s.storage.ObjectURL(objectKey),
	}
	update := bson.M{
		"$push": bson.M{"attachments": attachment},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	if _, err := s.db.Collection(expensesCollection).
		UpdateOne(ctx, bson.M{"_id": expenseID, "deleted": false}, update); err != nil {
		return "", nil, fmt.Errorf("db error recording attachment on expense %s: %w", expenseID.String(), err)
	}

	// Thumbnails only make sense for images.
	if s.imageQueue != nil && strings.HasPrefix(contentType, "image/") {
		if err := s.imageQueue.EnqueueThumbnail(ctx, expenseID.String(), attachment.ID.String(), objectKey); err != nil {
			log.Printf("Failed to enqueue thumbnail for attachment %s: %v", objectKey, err)
		}
	}
	return url, &attachment, nil
}

// RemoveAttachment detaches a receipt and deletes its objects from storage.
func (s *expenseService) RemoveAttachment(ctx context.Context, expenseID, attachmentID utils.SixID) error {
	expense, err := s.FindByID(ctx, expenseID)
	if err != nil {
		return err
	}
	var target *models.ExpenseAttachment
	for i := range expense.Attachments {
		if expense.Attachments[i].ID == attachmentID {
			target = &expense.Attachments[i]
			break
		}
	}
	if target == nil {
		return ErrNotFound
	}

	update := bson.M{
		"$pull": bson.M{"attachments": bson.M{"id": attachmentID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	if _, err := s.db.Collection(expensesCollection).
		UpdateOne(ctx, bson.M{"_id": expenseID, "deleted": false}, update); err != nil {
		return fmt.Errorf("db error removing attachment %s: %w", attachmentID.String(), err)
	}

	if s.storage != nil {
		if err := s.storage.DeleteObject(ctx, target.FileKey); err != nil {
			log.Printf("Failed to delete attachment object %s: %v", target.FileKey, err)
		}
		if target.ThumbKey != "" {
			if err := s.storage.DeleteObject(ctx, target.ThumbKey); err != nil {
				log.Printf("Failed to delete thumbnail object %s: %v", target.ThumbKey, err)
			}
		}
	}
	return nil
}

// SetAttachmentThumbKey stores the thumbnail key generated by the image
// worker.
func (s *expenseService) SetAttachmentThumbKey(ctx context.Context, expenseID, attachmentID utils.SixID, thumbKey string) error {
	result, err := s.db.Collection(expensesCollection).UpdateOne(ctx,
		bson.M{"_id": expenseID, "deleted": false, "attachments.id": attachmentID},
		bson.M{"$set": bson.M{"attachments.$.thumb_key": thumbKey, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("db error setting thumbnail for attachment %s: %w", attachmentID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// buildDetails validates and normalizes the voucher lines, returning the
// stored details and the computed total.
func (s *expenseService) buildDetails(ctx context.Context, input ExpenseInput) ([]models.ExpenseDetail, decimal.Decimal, error) {
	if len(input.Lines) == 0 {
		return nil, decimal.Zero, NewValidationError("details", "required", "an expense needs at least one line")
	}
	if input.ExpenseDate.IsZero() {
		return nil, decimal.Zero, NewValidationError("expenseDate", "required", "expense date is required")
	}
	if strings.TrimSpace(input.Payee) == "" {
		return nil, decimal.Zero, NewValidationError("payee", "required", "payee is required")
	}
	if !models.ValidPaymentMethod(input.PaymentMethod) {
		return nil, decimal.Zero, NewValidationError("paymentMethod", "invalid_payment_method", "unknown payment method")
	}

	details := make([]models.ExpenseDetail, 0, len(input.Lines))
	total := decimal.Zero
	var errs []ledger.ValidationError
	for i, line := range input.Lines {
		amount, err := decimal.NewFromString(strings.TrimSpace(line.Amount))
		if err != nil || amount.Sign() <= 0 {
			errs = append(errs, ledger.ValidationError{
				Field:   fmt.Sprintf("details.%d.amount", i),
				Code:    "invalid_amount",
				Message: "amount must be greater than zero",
			})
			continue
		}
		account, err := s.accountService.FindByID(ctx, line.AccountID)
		if err != nil {
			errs = append(errs, ledger.ValidationError{
				Field:   fmt.Sprintf("details.%d.accountId", i),
				Code:    "invalid_account",
				Message: "account does not exist",
			})
			continue
		}
		if account.AccountType != models.AccountTypeExpense {
			errs = append(errs, ledger.ValidationError{
				Field:   fmt.Sprintf("details.%d.accountId", i),
				Code:    "invalid_account",
				Message: "expense lines must charge an expense account",
			})
			continue
		}
		if line.ProjectID != nil {
			if _, err := s.projectService.FindByID(ctx, *line.ProjectID); err != nil {
				errs = append(errs, ledger.ValidationError{
					Field:   fmt.Sprintf("details.%d.projectId", i),
					Code:    "invalid_project",
					Message: "project does not exist",
				})
				continue
			}
		}

		details = append(details, models.ExpenseDetail{
			ID:          utils.NewSixID(),
			AccountID:   line.AccountID,
			AccountName: account.Name,
			ProjectID:   line.ProjectID,
			Amount:      amount.String(),
			Description: strings.TrimSpace(line.Description),
		})
		total = total.Add(amount)
	}
	if len(errs) > 0 {
		return nil, decimal.Zero, &ValidationFailedError{Errors: errs}
	}
	return details, total, nil
}

// postExpenseJournal records the spend: debit each charged expense account,
// credit the cash or bank account for the total.
func (s *expenseService) postExpenseJournal(ctx context.Context, expense *models.Expense) error {
	depositName := SystemAccountBank
	if expense.PaymentMethod == models.PaymentMethodCash {
		depositName = SystemAccountCash
	}
	deposit, err := s.accountService.FindSystemAccount(ctx, depositName)
	if err != nil {
		return err
	}

	reference := fmt.Sprintf("EXP-%04d", expense.ExpenseNo)
	details := make([]models.JournalDetail, 0, len(expense.Details)+1)
	for _, line := range expense.Details {
		details = append(details, models.JournalDetail{
			ID:          utils.NewSixID(),
			AccountID:   line.AccountID,
			AccountName: line.AccountName,
			Debit:       line.Amount,
			Credit:      "0",
			Description: reference,
		})
	}
	details = append(details, models.JournalDetail{
		ID:          utils.NewSixID(),
		AccountID:   deposit.ID,
		AccountName: deposit.Name,
		Debit:       "0",
		Credit:      expense.ExpenseTotal,
		Description: reference,
	})

	_, err = s.journalService.PostSystem(ctx, expense.ExpenseDate, expenseTransactionID(expense.ID), details)
	return err
}

func (s *expenseService) retractJournal(ctx context.Context, transactionID string) error {
	now := time.Now().UTC()
	_, err := s.db.Collection(journalsCollection).UpdateMany(ctx,
		bson.M{"transaction_id": transactionID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": now}})
	if err != nil {
		return fmt.Errorf("db error retracting journal entries for %s: %w", transactionID, err)
	}
	return nil
}

func expenseTransactionID(expenseID utils.SixID) string {
	return "expense:" + expenseID.String()
}
