package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mayfly-forms/internal/auth"
	"mayfly-forms/internal/clock"
	"mayfly-forms/internal/config"
	"mayfly-forms/internal/email"
	"mayfly-forms/internal/handler"
	"mayfly-forms/internal/logger"
	"mayfly-forms/internal/metrics"
	"mayfly-forms/internal/receipts"
	"mayfly-forms/internal/service"
	"mayfly-forms/internal/storage"
	"mayfly-forms/internal/validation"
)

const (
	e2eAPIKey     = "e2e-site-key-0123456789"
	e2eAdminToken = "e2e-admin-token-0123456789"
)

var e2eStart = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

// syncBuffer permite ler os logs enquanto o servidor escreve
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// E2ETestSuite contém os componentes necessários para os testes E2E
type E2ETestSuite struct {
	server *httptest.Server
	client *http.Client
	clock  *clock.Fake
	logs   *syncBuffer
}

// setupE2ETest configura um ambiente completo para testes E2E
func setupE2ETest(t *testing.T) *E2ETestSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)

	t.Setenv("VALID_API_KEYS", e2eAPIKey)
	t.Setenv("ADMIN_TOKEN", e2eAdminToken)
	t.Setenv("EMAIL_PROVIDER", "log")
	t.Setenv("EMAIL_SEND_RATE", "0")
	t.Setenv("RECEIPT_STORE", "redis")
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())
	t.Setenv("MAX_BODY_BYTES", "4096")

	cfg, err := config.NewConfigLoader().LoadConfig()
	require.NoError(t, err)

	logs := &syncBuffer{}
	appLogger := logger.NewLoggerWithOutput("debug", "json", logs)
	fake := clock.NewFake(e2eStart)
	registry := prometheus.NewRegistry()
	appMetrics := metrics.New(registry)

	limiter := service.NewRateLimiterService(storage.NewMemoryStorage(appLogger), cfg.Windows, fake, appLogger)

	renderer, err := email.NewRenderer(fake)
	require.NoError(t, err)
	dispatcher, err := email.NewDispatcher(context.Background(), cfg.EmailSettings(), renderer, appLogger)
	require.NoError(t, err)

	storeConfig := receipts.BuildStoreConfig(cfg.ReceiptStore, cfg.ReceiptTTL, cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB)
	receiptStore, err := receipts.NewStoreFactory(fake).CreateStore(storeConfig, appLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = receiptStore.Close() })

	pipeline := service.NewAdmissionPipeline(service.Dependencies{
		Keys:        auth.NewKeyStore(cfg.APIKeys),
		Limiter:     limiter,
		Validator:   validation.NewFormValidator(cfg.ValidatorOptions()),
		Dispatcher:  dispatcher,
		Receipts:    receiptStore,
		Clock:       fake,
		Metrics:     appMetrics,
		Logger:      appLogger,
		SendTimeout: cfg.SendTimeout,
	})

	handlers := handler.NewHandlers(handler.Options{
		Pipeline:     pipeline,
		Limiter:      limiter,
		Receipts:     receiptStore,
		Gatherer:     registry,
		Logger:       appLogger,
		AdminToken:   cfg.AdminToken,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	router, err := handler.NewRouter(handlers, handler.RouterOptions{
		TrustedProxies:     cfg.TrustedProxies,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:            appMetrics,
	})
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &E2ETestSuite{
		server: server,
		client: &http.Client{Timeout: 5 * time.Second},
		clock:  fake,
		logs:   logs,
	}
}

func (s *E2ETestSuite) submit(t *testing.T, key, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/submit-form", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return s.send(t, req)
}

func (s *E2ETestSuite) admin(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", e2eAdminToken)
	req.Header.Set("Content-Type", "application/json")
	return s.send(t, req)
}

func (s *E2ETestSuite) send(t *testing.T, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

// TestE2E_ValidSubmission testa o fluxo completo com defaults aplicados
func TestE2E_ValidSubmission(t *testing.T) {
	suite := setupE2ETest(t)

	resp, body := suite.submit(t, e2eAPIKey, `{"to_email":"a@b.com","fields":{"name":"Jane"}}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Form submitted successfully", body["message"])
	emailID, _ := body["email_id"].(string)
	require.True(t, strings.HasPrefix(emailID, "log-"), "unexpected id %q", emailID)

	logs := suite.logs.String()
	assert.Contains(t, logs, `"subject":"New Form Submission"`)
	assert.Contains(t, logs, emailID)
	assert.NotContains(t, logs, e2eAPIKey)

	resp, receipt := suite.admin(t, http.MethodGet, "/admin/receipts/"+emailID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "log", receipt["provider"])
	assert.Equal(t, "***@b.com", receipt["recipient"])
	assert.Equal(t, auth.Fingerprint(e2eAPIKey), receipt["keyFingerprint"])
}

// TestE2E_InvalidKey garante que chaves inválidas não consomem rate limit nem enviam email
func TestE2E_InvalidKey(t *testing.T) {
	suite := setupE2ETest(t)

	for _, key := range []string{"", "not-the-right-key-000000"} {
		resp, body := suite.submit(t, key, `{"to_email":"a@b.com","fields":{"name":"Jane"}}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "unauthorized", body["error"])
	}

	resp, status := suite.admin(t, http.MethodGet, "/admin/status?ip=127.0.0.1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, status["tracked"])
	assert.NotContains(t, suite.logs.String(), "Email rendered")
}

// TestE2E_RateLimit testa o bloqueio da 11ª requisição e a recuperação após a janela
func TestE2E_RateLimit(t *testing.T) {
	suite := setupE2ETest(t)
	payload := `{"to_email":"a@b.com","fields":{"name":"Jane"}}`

	for i := 0; i < 10; i++ {
		resp, _ := suite.submit(t, e2eAPIKey, payload)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d should be accepted", i+1)
	}

	resp, body := suite.submit(t, e2eAPIKey, payload)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limit_exceeded", body["error"])
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Equal(t, float64(60), body["retry_after"])
	assert.Equal(t, 10, strings.Count(suite.logs.String(), "Email rendered"))

	suite.clock.Advance(time.Minute)

	resp, _ = suite.submit(t, e2eAPIKey, payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestE2E_AdminReset libera uma identidade bloqueada
func TestE2E_AdminReset(t *testing.T) {
	suite := setupE2ETest(t)
	payload := `{"to_email":"a@b.com","fields":{"name":"Jane"}}`

	for i := 0; i < 11; i++ {
		suite.submit(t, e2eAPIKey, payload)
	}

	resp, status := suite.admin(t, http.MethodGet, "/admin/status?ip=127.0.0.1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	windows := status["windows"].([]interface{})
	assert.Equal(t, float64(0), windows[0].(map[string]interface{})["remaining"])

	resp, _ = suite.admin(t, http.MethodPost, "/admin/reset", `{"ip":"127.0.0.1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = suite.submit(t, e2eAPIKey, payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestE2E_ValidationErrors testa rejeições específicas de validação
func TestE2E_ValidationErrors(t *testing.T) {
	suite := setupE2ETest(t)

	tests := []struct {
		name         string
		body         string
		expectedCode string
	}{
		{name: "Missing recipient", body: `{"fields":{"name":"Jane"}}`, expectedCode: "missing_or_invalid_recipient"},
		{name: "Empty fields", body: `{"to_email":"a@b.com","fields":{}}`, expectedCode: "empty_fields"},
		{name: "Script in message", body: `{"to_email":"a@b.com","fields":{"message":"<script>alert(1)</script>"}}`, expectedCode: "suspicious_content"},
		{name: "Malformed JSON", body: `{"to_email":`, expectedCode: "malformed_payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := suite.submit(t, e2eAPIKey, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "invalid_request", body["error"])
			assert.Equal(t, tt.expectedCode, body["code"])
		})
	}

	assert.NotContains(t, suite.logs.String(), "Email rendered")
	assert.NotContains(t, suite.logs.String(), "alert(1)")
}

// TestE2E_PayloadTooLarge testa o limite de tamanho do corpo
func TestE2E_PayloadTooLarge(t *testing.T) {
	suite := setupE2ETest(t)
	body := fmt.Sprintf(`{"to_email":"a@b.com","fields":{"message":%q}}`, strings.Repeat("x", 5000))

	resp, decoded := suite.submit(t, e2eAPIKey, body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "payload_too_large", decoded["error"])
}

// TestE2E_ReceiptNotFound testa a consulta de um recibo inexistente
func TestE2E_ReceiptNotFound(t *testing.T) {
	suite := setupE2ETest(t)

	resp, body := suite.admin(t, http.MethodGet, "/admin/receipts/unknown", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])
}
