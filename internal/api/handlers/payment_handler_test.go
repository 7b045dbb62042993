package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nckmackenzie/atarah-api/internal/ledger"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

func samplePayment(invoiceID utils.SixID, amount string) *models.InvoicePayment {
	now := time.Now().UTC()
	return &models.InvoicePayment{
		Base:          models.NewBase(),
		InvoiceID:     invoiceID,
		InvoiceNo:     "INV-0042",
		ClientID:      utils.NewSixID(),
		ClientName:    "Acme Ltd",
		PaymentDate:   now,
		Amount:        amount,
		PaymentMethod: models.PaymentMethodMpesa,
		Audit:         models.NewAudit(now),
	}
}

func TestCreatePayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPayments := new(MockPaymentService)
	handler := NewPaymentHandler(mockPayments)

	invoiceID := utils.NewSixID()
	mockPayments.On("Create", mock.Anything, mock.MatchedBy(func(input services.PaymentInput) bool {
		return input.InvoiceID == invoiceID &&
			input.Amount == "4000" &&
			input.PaymentMethod == "mpesa"
	})).Return(samplePayment(invoiceID, "4000"), nil)

	router := gin.New()
	router.POST("/v1/payments", handler.Create)

	w := performJSON(router, http.MethodPost, "/v1/payments",
		`{"invoiceId":"`+invoiceID.String()+`","paymentDate":"2026-08-15","amount":"4000","paymentMethod":"mpesa"}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "INV-0042")
	mockPayments.AssertExpectations(t)
}

func TestCreatePaymentRejectsOverpayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPayments := new(MockPaymentService)
	handler := NewPaymentHandler(mockPayments)

	invoiceID := utils.NewSixID()
	mockPayments.On("Create", mock.Anything, mock.Anything).Return(nil, &services.ValidationFailedError{
		Errors: []ledger.ValidationError{
			{Field: "amount", Code: ledger.CodeOverAllocation, Message: "payment exceeds the invoice balance"},
		},
	})

	router := gin.New()
	router.POST("/v1/payments", handler.Create)

	w := performJSON(router, http.MethodPost, "/v1/payments",
		`{"invoiceId":"`+invoiceID.String()+`","paymentDate":"2026-08-15","amount":"999999","paymentMethod":"cash"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ledger.CodeOverAllocation)
}

func TestCreateBulkPaymentWithoutAllocations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPayments := new(MockPaymentService)
	handler := NewPaymentHandler(mockPayments)

	clientID := utils.NewSixID()
	invoiceID := utils.NewSixID()
	mockPayments.On("CreateBulk", mock.Anything, mock.MatchedBy(func(input services.BulkPaymentInput) bool {
		return input.ClientID == clientID && len(input.Allocations) == 0
	})).Return([]models.InvoicePayment{*samplePayment(invoiceID, "4000")}, nil)

	router := gin.New()
	router.POST("/v1/payments/bulk", handler.CreateBulk)

	w := performJSON(router, http.MethodPost, "/v1/payments/bulk",
		`{"clientId":"`+clientID.String()+`","paymentDate":"2026-08-15","amount":"4000","paymentMethod":"bank","paymentReference":"TRF-991"}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	mockPayments.AssertExpectations(t)
}

func TestCreateBulkPaymentRejectsBadAllocationID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPaymentHandler(new(MockPaymentService))

	router := gin.New()
	router.POST("/v1/payments/bulk", handler.CreateBulk)

	w := performJSON(router, http.MethodPost, "/v1/payments/bulk",
		`{"clientId":"`+utils.NewSixID().String()+`","paymentDate":"2026-08-15","amount":"4000","paymentMethod":"bank",`+
			`"allocations":[{"invoiceId":"not-an-id","amount":"4000"}]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeletePayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPayments := new(MockPaymentService)
	handler := NewPaymentHandler(mockPayments)

	id := utils.NewSixID()
	mockPayments.On("Delete", mock.Anything, id).Return(nil)

	router := gin.New()
	router.DELETE("/v1/payments/:id", handler.Delete)

	w := performJSON(router, http.MethodDelete, "/v1/payments/"+id.String(), "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockPayments.AssertExpectations(t)
}
