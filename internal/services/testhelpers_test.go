package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nckmackenzie/atarah-api/internal/config"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// testServices is the fully wired service graph backed by a clean test
// database, with the system accounts seeded.
type testServices struct {
	db       *mongo.Database
	cfg      *config.Config
	clients  IClientService
	catalog  ICatalogService
	projects IProjectService
	accounts IAccountService
	journals IJournalService
	invoices IInvoiceService
	payments IPaymentService
	expenses IExpenseService
	reports  IReportService
}

func setupServices(t *testing.T) *testServices {
	t.Helper()
	database := utils.SetupTestDB(t, "atarah_test_services",
		clientsCollection, "services", "projects", accountsCollection,
		journalsCollection, invoicesCollection, paymentsCollection,
		expensesCollection, "counters")

	cfg := &config.Config{
		DefaultVatRate:  "16",
		InvoiceNoPrefix: "INV-",
	}

	clients := NewClientService(database)
	catalog := NewCatalogService(database)
	projects := NewProjectService(database)
	accounts := NewAccountService(database)
	journals := NewJournalService(database, accounts)
	invoices := NewInvoiceService(database, cfg, clients, catalog, accounts, journals)
	payments := NewPaymentService(database, invoices, clients, accounts, journals)
	expenses := NewExpenseService(database, accounts, projects, journals, nil, nil)
	reports := NewReportService(database, cfg, nil, clients, invoices, payments, expenses)

	require.NoError(t, accounts.EnsureSystemAccounts(context.Background()))

	return &testServices{
		db:       database,
		cfg:      cfg,
		clients:  clients,
		catalog:  catalog,
		projects: projects,
		accounts: accounts,
		journals: journals,
		invoices: invoices,
		payments: payments,
		expenses: expenses,
		reports:  reports,
	}
}

func (ts *testServices) createClient(t *testing.T, name string) *models.Client {
	t.Helper()
	client, err := ts.clients.Create(context.Background(), ClientInput{Name: name})
	require.NoError(t, err)
	return client
}

func (ts *testServices) createServiceItem(t *testing.T, name, rate string) *models.ServiceItem {
	t.Helper()
	item, err := ts.catalog.Create(context.Background(), ServiceItemInput{Name: name, Rate: rate})
	require.NoError(t, err)
	return item
}

// createInvoice posts a single-line invoice: qty x rate, exclusive 16% VAT.
func (ts *testServices) createInvoice(t *testing.T, clientID utils.SixID, serviceID utils.SixID, quantity, rate string) *models.Invoice {
	t.Helper()
	invoice, err := ts.invoices.Create(context.Background(), InvoiceInput{
		ClientID:    clientID,
		InvoiceDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Terms:       "30",
		VatType:     "exclusive",
		Lines: []InvoiceLineInput{
			{ServiceID: serviceID, Quantity: quantity, Rate: rate},
		},
	})
	require.NoError(t, err)
	return invoice
}

// journalsFor fetches the live journal entries posted under a transaction ID.
func (ts *testServices) journalsFor(t *testing.T, transactionID string) []models.JournalEntry {
	t.Helper()
	entries, err := ts.journals.List(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	matched := []models.JournalEntry{}
	for _, entry := range entries {
		if entry.TransactionID == transactionID {
			matched = append(matched, entry)
		}
	}
	return matched
}
