package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nckmackenzie/atarah-api/internal/models"
)

func TestEnsureSystemAccountsIsIdempotent(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	// setupServices already seeded once; a second run must not duplicate.
	require.NoError(t, ts.accounts.EnsureSystemAccounts(ctx))

	accounts, err := ts.accounts.List(ctx, "")
	require.NoError(t, err)

	seen := map[string]int{}
	for _, account := range accounts {
		if !account.IsEditable {
			seen[account.Name]++
		}
	}
	for _, name := range []string{SystemAccountReceivable, SystemAccountSales,
		SystemAccountVatPayable, SystemAccountCash, SystemAccountBank} {
		assert.Equal(t, 1, seen[name], "system account %q", name)
	}
}

func TestAccountCreateAndSubcategoryRules(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	parent, err := ts.accounts.Create(ctx, AccountInput{
		Name:        "Office Costs",
		AccountType: string(models.AccountTypeExpense),
	})
	require.NoError(t, err)
	assert.True(t, parent.IsEditable)
	assert.True(t, parent.Active)

	sub, err := ts.accounts.Create(ctx, AccountInput{
		Name:          "Stationery",
		AccountType:   string(models.AccountTypeExpense),
		IsSubcategory: true,
		ParentID:      &parent.ID,
	})
	require.NoError(t, err)
	assert.True(t, sub.IsSubcategory)

	// A subcategory cannot parent another subcategory.
	_, err = ts.accounts.Create(ctx, AccountInput{
		Name:          "Pens",
		AccountType:   string(models.AccountTypeExpense),
		IsSubcategory: true,
		ParentID:      &sub.ID,
	})
	require.Error(t, err)

	// Parent and child must share an account type.
	_, err = ts.accounts.Create(ctx, AccountInput{
		Name:          "Misc Income",
		AccountType:   string(models.AccountTypeIncome),
		IsSubcategory: true,
		ParentID:      &parent.ID,
	})
	require.Error(t, err)

	// A subcategory needs a parent at all.
	_, err = ts.accounts.Create(ctx, AccountInput{
		Name:          "Orphan",
		AccountType:   string(models.AccountTypeExpense),
		IsSubcategory: true,
	})
	require.Error(t, err)
}

func TestAccountCreateRejectsUnknownType(t *testing.T) {
	ts := setupServices(t)

	_, err := ts.accounts.Create(context.Background(), AccountInput{
		Name:        "Mystery",
		AccountType: "imaginary",
	})
	require.Error(t, err)
	_, ok := AsValidationError(err)
	assert.True(t, ok)
}

func TestSystemAccountsAreProtected(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	cash := ts.systemAccount(t, SystemAccountCash)

	_, err := ts.accounts.Update(ctx, cash.ID, AccountInput{
		Name:        "Renamed Cash",
		AccountType: string(models.AccountTypeAsset),
	})
	require.Error(t, err)

	err = ts.accounts.Delete(ctx, cash.ID)
	require.Error(t, err)

	// Still intact.
	unchanged, err := ts.accounts.FindByID(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, SystemAccountCash, unchanged.Name)
}

func TestAccountDeleteBlockedByJournalUsage(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	account, err := ts.accounts.Create(ctx, AccountInput{
		Name:        "Travel",
		AccountType: string(models.AccountTypeExpense),
	})
	require.NoError(t, err)

	cash := ts.systemAccount(t, SystemAccountCash)
	_, err = ts.journals.Create(ctx, JournalInput{
		TransactionDate: time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC),
		Lines: []JournalLineInput{
			{AccountID: account.ID, Debit: "300"},
			{AccountID: cash.ID, Credit: "300"},
		},
	})
	require.NoError(t, err)

	err = ts.accounts.Delete(ctx, account.ID)
	require.Error(t, err)
	_, ok := AsValidationError(err)
	assert.True(t, ok)
}

func TestAccountUpdateAndSoftDelete(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	account, err := ts.accounts.Create(ctx, AccountInput{
		Name:        "Marketing",
		AccountType: string(models.AccountTypeExpense),
		Description: "ads and promos",
	})
	require.NoError(t, err)

	updated, err := ts.accounts.Update(ctx, account.ID, AccountInput{
		Name:        "Marketing & PR",
		AccountType: string(models.AccountTypeExpense),
	})
	require.NoError(t, err)
	assert.Equal(t, "Marketing & PR", updated.Name)

	require.NoError(t, ts.accounts.Delete(ctx, account.ID))
	_, err = ts.accounts.FindByID(ctx, account.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
