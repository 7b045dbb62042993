package handlers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/nckmackenzie/atarah-api/internal/ledger"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) Create(ctx context.Context, input services.UserInput) (*models.User, error) {
	args := m.Called(ctx, input)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, userID utils.SixID, input services.UserInput) (*models.User, error) {
	args := m.Called(ctx, userID, input)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) List(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, userID, actingUserID utils.SixID) error {
	return m.Called(ctx, userID, actingUserID).Error(0)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID utils.SixID, currentPassword, newPassword string) error {
	return m.Called(ctx, userID, currentPassword, newPassword).Error(0)
}

func (m *MockUserService) InitiatePasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockUserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return m.Called(ctx, email, code, newPassword).Error(0)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) Create(ctx context.Context, input services.InvoiceInput) (*models.Invoice, error) {
	args := m.Called(ctx, input)
	invoice, _ := args.Get(0).(*models.Invoice)
	return invoice, args.Error(1)
}

func (m *MockInvoiceService) Update(ctx context.Context, invoiceID utils.SixID, input services.InvoiceInput) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID, input)
	invoice, _ := args.Get(0).(*models.Invoice)
	return invoice, args.Error(1)
}

func (m *MockInvoiceService) FindByID(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	invoice, _ := args.Get(0).(*models.Invoice)
	return invoice, args.Error(1)
}

func (m *MockInvoiceService) List(ctx context.Context, filter services.InvoiceListFilter) ([]models.Invoice, error) {
	args := m.Called(ctx, filter)
	invoices, _ := args.Get(0).([]models.Invoice)
	return invoices, args.Error(1)
}

func (m *MockInvoiceService) Delete(ctx context.Context, invoiceID utils.SixID) error {
	return m.Called(ctx, invoiceID).Error(0)
}

func (m *MockInvoiceService) Outstanding(ctx context.Context, clientID utils.SixID) ([]ledger.OutstandingInvoice, error) {
	args := m.Called(ctx, clientID)
	outstanding, _ := args.Get(0).([]ledger.OutstandingInvoice)
	return outstanding, args.Error(1)
}

func (m *MockInvoiceService) ApplyPayment(ctx context.Context, invoiceID utils.SixID, delta decimal.Decimal) error {
	return m.Called(ctx, invoiceID, delta).Error(0)
}

func (m *MockInvoiceService) FindOverdue(ctx context.Context, asOf time.Time) ([]models.Invoice, error) {
	args := m.Called(ctx, asOf)
	invoices, _ := args.Get(0).([]models.Invoice)
	return invoices, args.Error(1)
}

func (m *MockInvoiceService) MarkOverdueNotified(ctx context.Context, invoiceID utils.SixID) error {
	return m.Called(ctx, invoiceID).Error(0)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Create(ctx context.Context, input services.PaymentInput) (*models.InvoicePayment, error) {
	args := m.Called(ctx, input)
	payment, _ := args.Get(0).(*models.InvoicePayment)
	return payment, args.Error(1)
}

func (m *MockPaymentService) CreateBulk(ctx context.Context, input services.BulkPaymentInput) ([]models.InvoicePayment, error) {
	args := m.Called(ctx, input)
	payments, _ := args.Get(0).([]models.InvoicePayment)
	return payments, args.Error(1)
}

func (m *MockPaymentService) FindByID(ctx context.Context, paymentID utils.SixID) (*models.InvoicePayment, error) {
	args := m.Called(ctx, paymentID)
	payment, _ := args.Get(0).(*models.InvoicePayment)
	return payment, args.Error(1)
}

func (m *MockPaymentService) List(ctx context.Context, clientID utils.SixID, from, to time.Time) ([]models.InvoicePayment, error) {
	args := m.Called(ctx, clientID, from, to)
	payments, _ := args.Get(0).([]models.InvoicePayment)
	return payments, args.Error(1)
}

func (m *MockPaymentService) Delete(ctx context.Context, paymentID utils.SixID) error {
	return m.Called(ctx, paymentID).Error(0)
}
