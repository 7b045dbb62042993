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

// JournalLineInput is one leg of a manual journal entry as submitted by the
// form. Debit and Credit are decimal strings; empty means zero.
type JournalLineInput struct {
	AccountID   utils.SixID
	Debit       string
	Credit      string
	Description string
}

// JournalInput is the payload for posting a manual journal entry.
type JournalInput struct {
	TransactionDate time.Time
	Lines           []JournalLineInput
}

// IJournalService posts and reads double-entry journal entries.
type IJournalService interface {
	Create(ctx context.Context, input JournalInput) (*models.JournalEntry, error)
	// PostSystem writes an already-validated entry produced by another
	// service (invoice posting, payment posting). All entries of one business
	// event share a transaction ID.
	PostSystem(ctx context.Context, date time.Time, transactionID string, details []models.JournalDetail) (*models.JournalEntry, error)
	FindByID(ctx context.Context, entryID utils.SixID) (*models.JournalEntry, error)
	List(ctx context.Context, from, to time.Time) ([]models.JournalEntry, error)
	Delete(ctx context.Context, entryID utils.SixID) error
}

const (
	journalsCollection = "journals"
	journalNoSequence  = "journal_no"
)

type journalService struct {
	db             *mongo.Database
	accountService IAccountService
}

// NewJournalService creates a new JournalService.
func NewJournalService(database *mongo.Database, accountService IAccountService) IJournalService {
	return &journalService{db: database, accountService: accountService}
}

// Create validates and posts a manual journal entry: every line must carry
// exactly one of debit or credit, and the entry must balance to the cent.
func (s *journalService) Create(ctx context.Context, input JournalInput) (*models.JournalEntry, error) {
	if len(input.Lines) < 2 {
		return nil, NewValidationError("details", "invalid_entry", "a journal entry needs at least two lines")
	}
	if input.TransactionDate.IsZero() {
		return nil, NewValidationError("transactionDate", "required", "transaction date is required")
	}

	lines := make([]ledger.JournalLine, 0, len(input.Lines))
	details := make([]models.JournalDetail, 0, len(input.Lines))
	for i, in := range input.Lines {
		debit, err := parseAmountOrZero(in.Debit)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("details.%d.debit", i), "invalid_amount", "debit must be a valid amount")
		}
		credit, err := parseAmountOrZero(in.Credit)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("details.%d.credit", i), "invalid_amount", "credit must be a valid amount")
		}

		account, err := s.accountService.FindByID(ctx, in.AccountID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, NewValidationError(fmt.Sprintf("details.%d.accountId", i), "invalid_account", "account does not exist")
			}
			return nil, err
		}

		id := utils.NewSixID()
		lines = append(lines, ledger.JournalLine{
			ID:          id.String(),
			AccountID:   in.AccountID.String(),
			Debit:       debit,
			Credit:      credit,
			Description: strings.TrimSpace(in.Description),
		})
		details = append(details, models.JournalDetail{
			ID:          id,
			AccountID:   in.AccountID,
			AccountName: account.Name,
			Debit:       debit.String(),
			Credit:      credit.String(),
			Description: strings.TrimSpace(in.Description),
		})
	}

	if errs := ledger.ValidateJournal(lines); len(errs) > 0 {
		return nil, &ValidationFailedError{Errors: errs}
	}
	return s.PostSystem(ctx, input.TransactionDate, uuid.NewString(), details)
}

// PostSystem assigns the next journal number and inserts the entry.
func (s *journalService) PostSystem(ctx context.Context, date time.Time, transactionID string, details []models.JournalDetail) (*models.JournalEntry, error) {
	journalNo, err := db.NextSequence(ctx, s.db, journalNoSequence)
	if err != nil {
		return nil, err
	}

	entry := &models.JournalEntry{
		JournalNo:       journalNo,
		TransactionDate: date,
		TransactionID:   transactionID,
		Details:         details,
		Audit:           models.NewAudit(time.Now().UTC()),
	}
	doc, err := db.InsertOne(ctx, s.db.Collection(journalsCollection), entry)
	if err != nil {
		return nil, fmt.Errorf("error inserting journal entry %d: %w", journalNo, err)
	}
	return doc.(*models.JournalEntry), nil
}

// FindByID returns a non-deleted journal entry by ID.
func (s *journalService) FindByID(ctx context.Context, entryID utils.SixID) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	err := s.db.Collection(journalsCollection).
		FindOne(ctx, bson.M{"_id": entryID, "deleted": false}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding journal entry %s: %w", entryID.String(), err)
	}
	return &entry, nil
}

// List returns journal entries within the date range, newest first. Zero
// bounds are open.
func (s *journalService) List(ctx context.Context, from, to time.Time) ([]models.JournalEntry, error) {
	filter := bson.M{"deleted": false}
	if dateFilter := dateRangeFilter(from, to); dateFilter != nil {
		filter["transaction_date"] = dateFilter
	}

	opts := options.Find().SetSort(bson.D{{Key: "transaction_date", Value: -1}, {Key: "journal_no", Value: -1}})
	cursor, err := s.db.Collection(journalsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.JournalEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode journal entries: %w", err)
	}
	return entries, nil
}

// Delete soft-deletes a manually posted journal entry.
func (s *journalService) Delete(ctx context.Context, entryID utils.SixID) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": now}}
	result, err := s.db.Collection(journalsCollection).
		UpdateOne(ctx, bson.M{"_id": entryID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting journal entry %s: %w", entryID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// parseAmountOrZero treats the empty string as zero; anything else must be a
// valid decimal.
func parseAmountOrZero(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

// dateRangeFilter builds a bson range for [from, to]; zero times leave that
// side open. Returns nil if both are zero.
func dateRangeFilter(from, to time.Time) bson.M {
	if from.IsZero() && to.IsZero() {
		return nil
	}
	rangeFilter := bson.M{}
	if !from.IsZero() {
		rangeFilter["$gte"] = from
	}
	if !to.IsZero() {
		rangeFilter["$lte"] = to
	}
	return rangeFilter
}
