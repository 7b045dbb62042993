package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joho/godotenv"

	"github.com/nckmackenzie/atarah-api/internal/auth"
	"github.com/nckmackenzie/atarah-api/internal/models"
)

const (
	testAppBinary  = "./atarah_test_app"
	testAppPort    = "8089"
	testAppURL     = "http://localhost:" + testAppPort
	startupTimeout = 15 * time.Second
	pingEndpoint   = testAppURL + "/v1/ping"

	adminEmail    = "admin@atarahsolutions.co.ke"
	adminPassword = "Secret123!"
)

var (
	appProcess  *exec.Cmd
	mongoClient *mongo.Client
	testDbName  string
)

// TestMain builds the binary, seeds a clean database with an admin user and
// runs the app in 'api' mode against it.
func TestMain(m *testing.M) {
	defer func() {
		log.Println("Integration Test Teardown: Cleaning up test binary...")
		os.Remove(testAppBinary)
		if appProcess != nil && appProcess.Process != nil {
			log.Println("Integration Test Teardown: Stopping application process...")
			_ = appProcess.Process.Signal(syscall.SIGTERM)
			appProcess.Wait()
		}
		if mongoClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = mongoClient.Database(testDbName).Drop(ctx)
			_ = mongoClient.Disconnect(ctx)
		}
	}()

	godotenv.Load()
	mongoURI := os.Getenv("MONGO_URI_TEST")
	if mongoURI == "" {
		log.Println("MONGO_URI_TEST not set, skipping integration tests")
		os.Exit(0)
	}
	testDbName = fmt.Sprintf("atarah_integration_%d", time.Now().UnixNano())

	log.Println("Integration Test Setup: Building application binary...")
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build application binary: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	var err error
	mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to test MongoDB: %v", err)
	}
	if err := seedAdminUser(ctx); err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	log.Println("Integration Test Setup: Starting application in 'api' mode...")
	appProcess = exec.Command(testAppBinary, "-m", "api")
	appProcess.Env = append(os.Environ(),
		"MONGO_URI="+mongoURI,
		"MONGO_DB_NAME="+testDbName,
		"API_PORT="+testAppPort,
		"JWT_SECRET=integration-test-secret",
		"RATE_LIMIT_BUCKET_SIZE=1000",
		"RATE_LIMIT_REFILL_RATE=1000",
	)
	appProcess.Stdout = os.Stdout
	appProcess.Stderr = os.Stderr
	if err := appProcess.Start(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := waitForPing(); err != nil {
		log.Fatalf("Application did not become ready: %v", err)
	}

	os.Exit(m.Run())
}

func seedAdminUser(ctx context.Context) error {
	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}
	user := models.User{
		Base:         models.NewBase(),
		Name:         "Integration Admin",
		Email:        adminEmail,
		UserType:     models.UserTypeAdmin,
		PasswordHash: hash,
		Active:       true,
		Audit:        models.NewAudit(time.Now().UTC()),
	}
	_, err = mongoClient.Database(testDbName).Collection("users").InsertOne(ctx, user)
	return err
}

func waitForPing() error {
	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(pingEndpoint)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for %s", pingEndpoint)
}

// doJSON performs an authenticated JSON request and decodes the response body
// into a generic map.
func doJSON(t *testing.T, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, testAppURL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", string(raw))
	}
	return resp.StatusCode, decoded
}

func login(t *testing.T) string {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	})
	require.Equal(t, http.StatusOK, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestPing(t *testing.T) {
	resp, err := http.Get(pingEndpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	status, _ := doJSON(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    adminEmail,
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	status, _ := doJSON(t, http.MethodGet, "/v1/clients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

// TestInvoiceLifecycle walks the primary billing flow end to end: client and
// service setup, an exclusive-VAT invoice, a partial payment and the client
// statement.
func TestInvoiceLifecycle(t *testing.T) {
	token := login(t)

	status, body := doJSON(t, http.MethodPost, "/v1/clients", token, map[string]any{
		"name":  "Lifecycle Ltd",
		"email": "billing@lifecycle.example",
	})
	require.Equal(t, http.StatusCreated, status)
	clientID, _ := body["id"].(string)
	require.NotEmpty(t, clientID)

	status, body = doJSON(t, http.MethodPost, "/v1/services", token, map[string]any{
		"name": "Tax Consultancy",
		"rate": "5000",
	})
	require.Equal(t, http.StatusCreated, status)
	serviceID, _ := body["id"].(string)
	require.NotEmpty(t, serviceID)

	// 2 x 5000 exclusive of 16% VAT: net 10000, VAT 1600, total 11600.
	status, body = doJSON(t, http.MethodPost, "/v1/invoices", token, map[string]any{
		"clientId":    clientID,
		"invoiceDate": time.Now().UTC().Format("2006-01-02"),
		"terms":       "30",
		"vatType":     "exclusive",
		"vatRate":     "16",
		"items": []map[string]any{
			{"serviceId": serviceID, "quantity": "2", "rate": "5000"},
		},
	})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	invoiceID, _ := body["id"].(string)
	require.NotEmpty(t, invoiceID)
	assert.Equal(t, "10000", body["subTotal"])
	assert.Equal(t, "1600", body["vatAmount"])
	assert.Equal(t, "11600", body["totalAmount"])
	assert.Equal(t, "pending", body["status"])

	// The full balance shows up as outstanding for this client.
	status, body = doJSON(t, http.MethodGet, "/v1/invoices/outstanding?clientId="+clientID, token, nil)
	require.Equal(t, http.StatusOK, status)
	outstanding, _ := body["data"].([]any)
	require.Len(t, outstanding, 1)

	status, _ = doJSON(t, http.MethodPost, "/v1/payments", token, map[string]any{
		"invoiceId":     invoiceID,
		"paymentDate":   time.Now().UTC().Format("2006-01-02"),
		"amount":        "4000",
		"paymentMethod": "mpesa",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body = doJSON(t, http.MethodGet, "/v1/invoices/"+invoiceID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "4000", body["amountPaid"])
	assert.Equal(t, "7600", body["balance"])
	assert.Equal(t, "partial", body["status"])

	// Invoiced 11600, paid 4000.
	status, body = doJSON(t, http.MethodGet, "/v1/reports/statement/"+clientID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "11600", body["totalDebit"])
	assert.Equal(t, "4000", body["totalCredit"])
	assert.Equal(t, "7600", body["balance"])

	// A client with invoices on file cannot be removed.
	status, _ = doJSON(t, http.MethodDelete, "/v1/clients/"+clientID, token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

// TestJournalBalanceEnforcement verifies an unbalanced manual entry is
// rejected while a balanced one posts.
func TestJournalBalanceEnforcement(t *testing.T) {
	token := login(t)

	status, body := doJSON(t, http.MethodGet, "/v1/accounts", token, nil)
	require.Equal(t, http.StatusOK, status)
	accounts, _ := body["data"].([]any)
	require.GreaterOrEqual(t, len(accounts), 2)

	idOf := func(name string) string {
		for _, raw := range accounts {
			account, _ := raw.(map[string]any)
			if account["name"] == name {
				id, _ := account["id"].(string)
				return id
			}
		}
		return ""
	}
	cashID := idOf("Cash on Hand")
	bankID := idOf("Bank")
	require.NotEmpty(t, cashID)
	require.NotEmpty(t, bankID)

	date := time.Now().UTC().Format("2006-01-02")

	status, _ = doJSON(t, http.MethodPost, "/v1/journals", token, map[string]any{
		"transactionDate": date,
		"lines": []map[string]any{
			{"accountId": cashID, "debit": "100", "credit": "0"},
			{"accountId": bankID, "debit": "0", "credit": "90"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, http.MethodPost, "/v1/journals", token, map[string]any{
		"transactionDate": date,
		"lines": []map[string]any{
			{"accountId": cashID, "debit": "100", "credit": "0", "description": "cash deposit"},
			{"accountId": bankID, "debit": "0", "credit": "100", "description": "from bank"},
		},
	})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
}

// TestAdminRoutesRequireAdminRole creates a regular user and confirms the
// admin surface is closed to them.
func TestAdminRoutesRequireAdminRole(t *testing.T) {
	token := login(t)

	userEmail := fmt.Sprintf("user%d@atarahsolutions.co.ke", time.Now().UnixNano())
	status, _ := doJSON(t, http.MethodPost, "/v1/admin/users", token, map[string]any{
		"name":     "Regular User",
		"email":    userEmail,
		"userType": "user",
		"password": "Secret123!",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := doJSON(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    userEmail,
		"password": "Secret123!",
	})
	require.Equal(t, http.StatusOK, status)
	userToken, _ := body["token"].(string)
	require.NotEmpty(t, userToken)

	status, _ = doJSON(t, http.MethodGet, "/v1/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}
