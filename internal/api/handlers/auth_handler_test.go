package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nckmackenzie/atarah-api/internal/config"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		JwtSecret: "test-secret",
		JwtTTL:    time.Hour,
	}
}

func performJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoginReturnsTokenAndUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUsers := new(MockUserService)
	handler := NewAuthHandler(testConfig(), mockUsers)

	user := &models.User{
		Base:     models.NewBase(),
		Name:     "Jane",
		Email:    "jane@atarahsolutions.co.ke",
		UserType: models.UserTypeAdmin,
		Active:   true,
	}
	mockUsers.On("Authenticate", mock.Anything, "jane@atarahsolutions.co.ke", "Secret123!").
		Return(user, nil)

	router := gin.New()
	router.POST("/v1/auth/login", handler.Login)

	w := performJSON(router, http.MethodPost, "/v1/auth/login",
		`{"email":"jane@atarahsolutions.co.ke","password":"Secret123!"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token"`)
	assert.Contains(t, w.Body.String(), `"jane@atarahsolutions.co.ke"`)
	assert.NotContains(t, w.Body.String(), "password")
	mockUsers.AssertExpectations(t)
}

func TestLoginRejectsInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUsers := new(MockUserService)
	handler := NewAuthHandler(testConfig(), mockUsers)

	mockUsers.On("Authenticate", mock.Anything, "jane@atarahsolutions.co.ke", "nope").
		Return(nil, services.ErrInvalidCredentials)

	router := gin.New()
	router.POST("/v1/auth/login", handler.Login)

	w := performJSON(router, http.MethodPost, "/v1/auth/login",
		`{"email":"jane@atarahsolutions.co.ke","password":"nope"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockUsers.AssertExpectations(t)
}

func TestLoginRequiresBothFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(testConfig(), new(MockUserService))

	router := gin.New()
	router.POST("/v1/auth/login", handler.Login)

	w := performJSON(router, http.MethodPost, "/v1/auth/login", `{"email":"jane@example.com"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForgotPasswordAlwaysSucceeds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUsers := new(MockUserService)
	handler := NewAuthHandler(testConfig(), mockUsers)

	// The service treats an unknown email as a no-op; either way the
	// endpoint answers 200.
	mockUsers.On("InitiatePasswordReset", mock.Anything, "nobody@example.com").Return(nil)

	router := gin.New()
	router.POST("/v1/auth/forgot-password", handler.ForgotPassword)

	w := performJSON(router, http.MethodPost, "/v1/auth/forgot-password",
		`{"email":"nobody@example.com"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	mockUsers.AssertExpectations(t)
}
