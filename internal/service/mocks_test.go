package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"mayfly-forms/internal/domain"
)

// MockStorage é um mock do RateLimiterStorage para testes
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Admit(ctx context.Context, key string, windows []domain.RateWindow, now time.Time) (*domain.RateLimitResult, error) {
	args := m.Called(ctx, key, windows, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateLimitResult), args.Error(1)
}

func (m *MockStorage) Status(ctx context.Context, key string, windows []domain.RateWindow, now time.Time) (*domain.RateLimitStatus, error) {
	args := m.Called(ctx, key, windows, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateLimitStatus), args.Error(1)
}

func (m *MockStorage) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockLogger é um mock do Logger para testes
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, err error, fields map[string]interface{}) {
	m.Called(msg, err, fields)
}

func (m *MockLogger) WithContext(ctx context.Context) domain.Logger {
	args := m.Called(ctx)
	return args.Get(0).(domain.Logger)
}

// allowAllLogs aceita qualquer chamada de log
func allowAllLogs(m *MockLogger) {
	m.On("Debug", mock.AnythingOfType("string"), mock.Anything).Maybe()
	m.On("Info", mock.AnythingOfType("string"), mock.Anything).Maybe()
	m.On("Warn", mock.AnythingOfType("string"), mock.Anything).Maybe()
	m.On("Error", mock.AnythingOfType("string"), mock.Anything, mock.Anything).Maybe()
	m.On("WithContext", mock.Anything).Return(m).Maybe()
}

// MockRateLimiter é um mock do RateLimiterService
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Admit(ctx context.Context, identity string) (*domain.RateLimitResult, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateLimitResult), args.Error(1)
}

func (m *MockRateLimiter) Status(ctx context.Context, identity string) (*domain.RateLimitStatus, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateLimitStatus), args.Error(1)
}

func (m *MockRateLimiter) Reset(ctx context.Context, identity string) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

// MockDispatcher é um mock do EmailDispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, submission *domain.FormSubmission) (*domain.DispatchResult, error) {
	args := m.Called(ctx, submission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DispatchResult), args.Error(1)
}

func (m *MockDispatcher) Name() string {
	return "mock"
}

// MockReceiptStore é um mock do ReceiptStore
type MockReceiptStore struct {
	mock.Mock
}

func (m *MockReceiptStore) Save(ctx context.Context, receipt *domain.DeliveryReceipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *MockReceiptStore) Get(ctx context.Context, messageID string) (*domain.DeliveryReceipt, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryReceipt), args.Error(1)
}

func (m *MockReceiptStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
