package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nckmackenzie/atarah-api/internal/db"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// Names of the accounts the system posts to automatically. They are seeded
// at startup and cannot be edited or deleted.
const (
	SystemAccountReceivable = "Accounts Receivable"
	SystemAccountSales      = "Sales Income"
	SystemAccountVatPayable = "VAT Payable"
	SystemAccountCash       = "Cash on Hand"
	SystemAccountBank       = "Bank"
)

// AccountInput is the payload for creating or updating a ledger account.
type AccountInput struct {
	Name          string
	AccountType   string
	IsSubcategory bool
	ParentID      *utils.SixID
	AccountNo     string
	IsBank        bool
	Description   string
	Active        *bool
}

// IAccountService manages the chart of accounts.
type IAccountService interface {
	Create(ctx context.Context, input AccountInput) (*models.Account, error)
	Update(ctx context.Context, accountID utils.SixID, input AccountInput) (*models.Account, error)
	FindByID(ctx context.Context, accountID utils.SixID) (*models.Account, error)
	FindSystemAccount(ctx context.Context, name string) (*models.Account, error)
	List(ctx context.Context, accountType string) ([]models.Account, error)
	Delete(ctx context.Context, accountID utils.SixID) error
	EnsureSystemAccounts(ctx context.Context) error
}

const accountsCollection = "accounts"

type accountService struct {
	db *mongo.Database
}

// NewAccountService creates a new AccountService.
func NewAccountService(database *mongo.Database) IAccountService {
	return &accountService{db: database}
}

// Create adds a new account. Subcategories must reference an existing parent
// of the same account type.
func (s *accountService) Create(ctx context.Context, input AccountInput) (*models.Account, error) {
	if err := s.validateInput(ctx, input); err != nil {
		return nil, err
	}

	account := &models.Account{
		Name:          strings.TrimSpace(input.Name),
		AccountType:   models.AccountType(input.AccountType),
		IsSubcategory: input.IsSubcategory,
		ParentID:      input.ParentID,
		AccountNo:     strings.TrimSpace(input.AccountNo),
		IsBank:        input.IsBank,
		Description:   strings.TrimSpace(input.Description),
		Active:        true,
		IsEditable:    true,
		Audit:         models.NewAudit(time.Now().UTC()),
	}
	doc, err := db.InsertOne(ctx, s.db.Collection(accountsCollection), account)
	if err != nil {
		return nil, fmt.Errorf("error inserting account %s: %w", account.Name, err)
	}
	return doc.(*models.Account), nil
}

// Update modifies an account. System accounts reject any change.
func (s *accountService) Update(ctx context.Context, accountID utils.SixID, input AccountInput) (*models.Account, error) {
	existing, err := s.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !existing.IsEditable {
		return nil, NewValidationError("id", "system_account", "system accounts cannot be modified")
	}
	if err := s.validateInput(ctx, input); err != nil {
		return nil, err
	}

	set := bson.M{
		"name":           strings.TrimSpace(input.Name),
		"account_type":   models.AccountType(input.AccountType),
		"is_subcategory": input.IsSubcategory,
		"account_no":     strings.TrimSpace(input.AccountNo),
		"is_bank":        input.IsBank,
		"description":    strings.TrimSpace(input.Description),
		"updated_at":     time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if input.ParentID != nil {
		set["parent_id"] = *input.ParentID
	} else {
		update["$unset"] = bson.M{"parent_id": ""}
	}
	if input.Active != nil {
		set["active"] = *input.Active
	}

	result, err := s.db.Collection(accountsCollection).
		UpdateOne(ctx, bson.M{"_id": accountID, "deleted": false}, update)
	if err != nil {
		return nil, fmt.Errorf("db error updating account %s: %w", accountID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, accountID)
}

// FindByID returns a non-deleted account by ID.
func (s *accountService) FindByID(ctx context.Context, accountID utils.SixID) (*models.Account, error) {
	var account models.Account
	err := s.db.Collection(accountsCollection).
		FindOne(ctx, bson.M{"_id": accountID, "deleted": false}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding account %s: %w", accountID.String(), err)
	}
	return &account, nil
}

// FindSystemAccount resolves one of the seeded posting accounts by name.
func (s *accountService) FindSystemAccount(ctx context.Context, name string) (*models.Account, error) {
	var account models.Account
	err := s.db.Collection(accountsCollection).
		FindOne(ctx, bson.M{"name": name, "is_editable": false, "deleted": false}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("system account %q is not seeded: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding system account %q: %w", name, err)
	}
	return &account, nil
}

// List returns non-deleted accounts sorted by type then name, optionally
// restricted to one account type.
func (s *accountService) List(ctx context.Context, accountType string) ([]models.Account, error) {
	filter := bson.M{"deleted": false}
	if accountType != "" {
		if !models.ValidAccountType(accountType) {
			return nil, NewValidationError("accountType", "invalid_account_type", "unknown account type")
		}
		filter["account_type"] = accountType
	}

	opts := options.Find().SetSort(bson.D{{Key: "account_type", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := s.db.Collection(accountsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []models.Account
	if err = cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

// Delete soft-deletes an account. System accounts and accounts referenced by
// journal entries are protected.
func (s *accountService) Delete(ctx context.Context, accountID utils.SixID) error {
	account, err := s.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.IsEditable {
		return NewValidationError("id", "system_account", "system accounts cannot be deleted")
	}

	used, err := s.db.Collection(journalsCollection).
		CountDocuments(ctx, bson.M{"details.account_id": accountID, "deleted": false})
	if err != nil {
		return fmt.Errorf("error checking journal usage for account %s: %w", accountID.String(), err)
	}
	if used > 0 {
		return NewValidationError("id", "account_in_use", "account has journal entries and cannot be deleted")
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "active": false, "updated_at": now}}
	result, err := s.db.Collection(accountsCollection).
		UpdateOne(ctx, bson.M{"_id": accountID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting account %s: %w", accountID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureSystemAccounts seeds the posting accounts the invoice and payment
// services rely on. Safe to call on every startup.
func (s *accountService) EnsureSystemAccounts(ctx context.Context) error {
	seeds := []models.Account{
		{Name: SystemAccountReceivable, AccountType: models.AccountTypeAsset},
		{Name: SystemAccountSales, AccountType: models.AccountTypeIncome},
		{Name: SystemAccountVatPayable, AccountType: models.AccountTypeLiability},
		{Name: SystemAccountCash, AccountType: models.AccountTypeAsset},
		{Name: SystemAccountBank, AccountType: models.AccountTypeAsset, IsBank: true},
	}

	collection := s.db.Collection(accountsCollection)
	for _, seed := range seeds {
		count, err := collection.CountDocuments(ctx, bson.M{"name": seed.Name, "is_editable": false, "deleted": false})
		if err != nil {
			return fmt.Errorf("error checking system account %q: %w", seed.Name, err)
		}
		if count > 0 {
			continue
		}
		account := seed
		account.Active = true
		account.IsEditable = false
		account.Audit = models.NewAudit(time.Now().UTC())
		if _, err := db.InsertOne(ctx, collection, &account); err != nil {
			return fmt.Errorf("error seeding system account %q: %w", seed.Name, err)
		}
		log.Printf("Seeded system account %q", seed.Name)
	}
	return nil
}

func (s *accountService) validateInput(ctx context.Context, input AccountInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return NewValidationError("name", "required", "account name is required")
	}
	if !models.ValidAccountType(input.AccountType) {
		return NewValidationError("accountType", "invalid_account_type", "unknown account type")
	}
	if input.IsSubcategory {
		if input.ParentID == nil {
			return NewValidationError("parentId", "required", "a subcategory must reference a parent account")
		}
		parent, err := s.FindByID(ctx, *input.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return NewValidationError("parentId", "invalid_parent", "parent account does not exist")
			}
			return err
		}
		if parent.IsSubcategory {
			return NewValidationError("parentId", "invalid_parent", "a subcategory cannot have a subcategory parent")
		}
		if string(parent.AccountType) != input.AccountType {
			return NewValidationError("parentId", "invalid_parent", "a subcategory must share its parent's account type")
		}
	} else if input.ParentID != nil {
		return NewValidationError("parentId", "invalid_parent", "only subcategories can reference a parent account")
	}
	return nil
}
