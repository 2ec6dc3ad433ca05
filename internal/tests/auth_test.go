// internal/tests/auth_test.go
package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
	"github.com/idsee/registry-backend/internal/repository/memory"
	"github.com/idsee/registry-backend/internal/router"
	"github.com/idsee/registry-backend/internal/services"
	"github.com/idsee/registry-backend/internal/utils"
)

const testPassword = "TestPass123!"

type APITestSuite struct {
	suite.Suite
	store  *memory.Store
	router *gin.Engine
	admin  string
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (suite *APITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	require.NoError(suite.T(), i18n.Initialize("../i18n/locales", "en"))
	utils.SetJWTSecret("api-test-secret")
}

func (suite *APITestSuite) SetupTest() {
	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "api-test-secret", AccessTokenTTL: 1},
		AWS:         config.AWSConfig{LocalUploadDir: suite.T().TempDir()},
		Anchor: config.AnchorConfig{
			Mode:        "demo",
			Timeout:     time.Second,
			MaxAttempts: 3,
			BatchSize:   10,
			Lease:       time.Minute,
		},
		Registry: config.RegistryConfig{
			RegistrationCost: 1,
			HealthRecordCost: 1,
			VerificationBond: 10,
			BondLockDays:     30,
			StarterCredits:   5,
			MinChipIDLength:  10,
			PurchaseEnabled:  true,
		},
		RateLimit: config.RateLimitConfig{PublicRPS: 1000, PublicBurst: 1000, AuthRPS: 1000, AuthBurst: 1000},
		I18n:      config.I18nConfig{DefaultLocale: "en"},
		Frontend:  config.FrontendConfig{BaseURL: "http://localhost:5173"},
	}

	suite.store = memory.NewStore()
	storage, err := services.NewStorageService(cfg.AWS)
	require.NoError(suite.T(), err)

	anchor := services.NewAnchorService(services.NewDemoAnchorClient(0), cfg.Anchor)
	notifier := services.NewNotificationService(suite.store)
	ledger := services.NewLedgerService(suite.store, nil)
	peers := services.NewPeerVerificationService(suite.store, ledger, storage, notifier, cfg.Registry, nil)

	svc := router.Services{
		Auth:          services.NewAuthService(suite.store, ledger, cfg, nil),
		Registry:      services.NewRegistryService(suite.store, ledger, anchor, cfg.Registry, nil),
		Confirmations: services.NewConfirmationService(suite.store, anchor, notifier, nil),
		Peers:         peers,
		Credits:       services.NewCreditService(ledger, cfg.Registry.PurchaseEnabled),
		Notifications: notifier,
		Admin:         services.NewAdminService(suite.store, ledger, peers, anchor, notifier, nil),
	}
	suite.router = router.Initialize(suite.store, cfg, svc, router.NewLimiters(cfg.RateLimit), nil)

	admin := &models.User{
		Email:              "admin@idsee.test",
		Role:               models.RoleAdmin,
		VerificationStatus: models.VerificationStatusVerified,
	}
	require.NoError(suite.T(), admin.SetPassword(testPassword))
	require.NoError(suite.T(), suite.store.RunInTx(context.Background(), func(tx repository.Tx) error {
		return tx.Users().Create(context.Background(), admin)
	}))
	suite.admin = suite.login(admin.Email)
}

func (suite *APITestSuite) do(method, path, token string, body interface{}) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		require.NoError(suite.T(), err)
		reader = bytes.NewReader(jsonData)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response envelope
	if w.Body.Len() > 0 {
		require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w.Code, response
}

// data decodes the data field of a successful response into out.
func (suite *APITestSuite) data(response envelope, out interface{}) {
	require.True(suite.T(), response.Success)
	require.NoError(suite.T(), json.Unmarshal(response.Data, out))
}

func (suite *APITestSuite) register(email string, role models.Role, professionalID string) string {
	code, response := suite.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"email":           email,
		"password":        testPassword,
		"role":            role,
		"professional_id": professionalID,
	})
	require.Equal(suite.T(), http.StatusCreated, code)

	var out struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	suite.data(response, &out)
	return out.User.ID
}

func (suite *APITestSuite) login(email string) string {
	code, response := suite.do(http.MethodPost, "/v1/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(suite.T(), http.StatusOK, code)

	var out struct {
		Token string `json:"token"`
	}
	suite.data(response, &out)
	require.NotEmpty(suite.T(), out.Token)
	return out.Token
}

// verifiedProfessional registers a professional, has the admin verify it and
// returns its id and a fresh token.
func (suite *APITestSuite) verifiedProfessional(email string, role models.Role, professionalID string) (string, string) {
	id := suite.register(email, role, professionalID)
	code, _ := suite.do(http.MethodPut, "/v1/admin/users/"+id+"/verification", suite.admin, map[string]interface{}{
		"status": models.VerificationStatusVerified,
	})
	require.Equal(suite.T(), http.StatusOK, code)
	return id, suite.login(email)
}

// verifyEmail runs the email verification flow using the token the
// development API hands back.
func (suite *APITestSuite) verifyEmail(token string) {
	code, response := suite.do(http.MethodPost, "/v1/verification/email/send", token, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var sent struct {
		DevToken string `json:"dev_token"`
	}
	suite.data(response, &sent)
	require.NotEmpty(suite.T(), sent.DevToken)

	code, _ = suite.do(http.MethodPost, "/v1/verification/email/verify", "", map[string]interface{}{
		"token": sent.DevToken,
	})
	require.Equal(suite.T(), http.StatusOK, code)
}

func (suite *APITestSuite) TestHealth() {
	code, _ := suite.do(http.MethodGet, "/health", "", nil)
	assert.Equal(suite.T(), http.StatusOK, code)
}

func (suite *APITestSuite) TestUserRegistration() {
	code, response := suite.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"email":           "vet@example.com",
		"password":        testPassword,
		"role":            "VET",
		"professional_id": "VET-1",
	})
	assert.Equal(suite.T(), http.StatusCreated, code)

	var out struct {
		User struct {
			Role               string `json:"role"`
			VerificationStatus string `json:"verification_status"`
			Credits            int    `json:"credits"`
		} `json:"user"`
		TokenType string `json:"token_type"`
	}
	suite.data(response, &out)
	assert.Equal(suite.T(), "VET", out.User.Role)
	assert.Equal(suite.T(), "PENDING", out.User.VerificationStatus)
	assert.Equal(suite.T(), 5, out.User.Credits)
	assert.Equal(suite.T(), "Bearer", out.TokenType)

	code, response = suite.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"email":    "VET@example.com",
		"password": testPassword,
	})
	assert.Equal(suite.T(), http.StatusConflict, code)
	assert.Equal(suite.T(), "DUPLICATE_EMAIL", response.Error.Code)
}

func (suite *APITestSuite) TestRegistrationValidation() {
	code, response := suite.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"email":    "not-an-email",
		"password": "short",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", response.Error.Code)

	code, _ = suite.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"email":    "admin2@example.com",
		"password": testPassword,
		"role":     "ADMIN",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
}

func (suite *APITestSuite) TestUserLogin() {
	suite.register("buyer@example.com", models.RoleBuyer, "")
	token := suite.login("buyer@example.com")

	code, response := suite.do(http.MethodGet, "/v1/auth/me", token, nil)
	assert.Equal(suite.T(), http.StatusOK, code)
	assert.True(suite.T(), response.Success)

	code, response = suite.do(http.MethodPost, "/v1/auth/login", "", map[string]interface{}{
		"email":    "buyer@example.com",
		"password": "WrongPass123!",
	})
	assert.Equal(suite.T(), http.StatusUnauthorized, code)
	assert.Equal(suite.T(), "INVALID_CREDENTIALS", response.Error.Code)

	code, _ = suite.do(http.MethodGet, "/v1/auth/me", "", nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, code)
}

func (suite *APITestSuite) TestEmailVerification() {
	suite.register("chipper@example.com", models.RoleChipper, "")
	token := suite.login("chipper@example.com")
	request := map[string]interface{}{"professional_id": "CH-1", "professional_type": "chipper"}

	code, response := suite.do(http.MethodPost, "/v1/verification/request", token, request)
	assert.Equal(suite.T(), http.StatusForbidden, code)
	assert.Equal(suite.T(), "EMAIL_NOT_VERIFIED", response.Error.Code)

	code, response = suite.do(http.MethodPost, "/v1/verification/email/verify", "", map[string]interface{}{"token": "bogus"})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
	assert.Equal(suite.T(), "INVALID_EMAIL_TOKEN", response.Error.Code)

	suite.verifyEmail(token)

	code, response = suite.do(http.MethodPost, "/v1/verification/email/send", token, nil)
	assert.Equal(suite.T(), http.StatusConflict, code)
	assert.Equal(suite.T(), "EMAIL_ALREADY_VERIFIED", response.Error.Code)

	code, _ = suite.do(http.MethodPost, "/v1/verification/request", token, request)
	assert.Equal(suite.T(), http.StatusCreated, code)

	code, response = suite.do(http.MethodGet, "/v1/auth/me", token, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	assert.Contains(suite.T(), string(response.Data), `"email_verified":true`)
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
