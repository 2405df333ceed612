package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mayfly-forms/internal/clock"
	"mayfly-forms/internal/domain"
	"mayfly-forms/internal/logger"
	"mayfly-forms/internal/storage"
)

var serviceBaseTime = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

// Helper para criar as janelas padrão
func createTestWindows() []domain.RateWindow {
	return []domain.RateWindow{
		{Name: "minute", Size: time.Minute, Limit: 10},
		{Name: "hour", Size: time.Hour, Limit: 100},
		{Name: "day", Size: 24 * time.Hour, Limit: 1000},
	}
}

func newRealLimiter(fake *clock.Fake) *RateLimiterService {
	return NewRateLimiterService(storage.NewMemoryStorage(logger.Nop()), createTestWindows(), fake, logger.Nop())
}

// TestRateLimiterService_Admit testa a delegação ao storage
func TestRateLimiterService_Admit(t *testing.T) {
	tests := []struct {
		name        string
		identity    string
		result      *domain.RateLimitResult
		storageErr  error
		expectedKey string
		expectError bool
	}{
		{
			name:        "Should allow request within limits",
			identity:    "192.168.1.1",
			result:      &domain.RateLimitResult{Allowed: true},
			expectedKey: "rate_limit:ip:192.168.1.1",
		},
		{
			name:        "Should deny request over limit",
			identity:    "192.168.1.2",
			result:      &domain.RateLimitResult{Allowed: false, RetryAfter: 30 * time.Second},
			expectedKey: "rate_limit:ip:192.168.1.2",
		},
		{
			name:        "Should trim identity before building key",
			identity:    "  10.0.0.1 ",
			result:      &domain.RateLimitResult{Allowed: true},
			expectedKey: "rate_limit:ip:10.0.0.1",
		},
		{
			name:        "Should wrap storage error",
			identity:    "192.168.1.3",
			storageErr:  errors.New("storage down"),
			expectedKey: "rate_limit:ip:192.168.1.3",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStorage := new(MockStorage)
			mockLogger := new(MockLogger)
			allowAllLogs(mockLogger)
			fake := clock.NewFake(serviceBaseTime)
			windows := createTestWindows()

			svc := NewRateLimiterService(mockStorage, windows, fake, mockLogger)
			ctx := context.Background()

			if tt.storageErr != nil {
				mockStorage.On("Admit", ctx, tt.expectedKey, windows, serviceBaseTime).Return(nil, tt.storageErr)
			} else {
				mockStorage.On("Admit", ctx, tt.expectedKey, windows, serviceBaseTime).Return(tt.result, nil)
			}

			result, err := svc.Admit(ctx, tt.identity)

			if tt.expectError {
				assert.Error(t, err)
				assert.ErrorIs(t, err, tt.storageErr)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.result.Allowed, result.Allowed)
			}

			mockStorage.AssertExpectations(t)
		})
	}
}

func TestRateLimiterService_EmptyIdentity(t *testing.T) {
	mockStorage := new(MockStorage)
	svc := NewRateLimiterService(mockStorage, createTestWindows(), clock.NewFake(serviceBaseTime), logger.Nop())

	_, err := svc.Admit(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyIdentity)

	_, err = svc.Status(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmptyIdentity)

	assert.ErrorIs(t, svc.Reset(context.Background(), ""), domain.ErrEmptyIdentity)

	mockStorage.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRateLimiterService_BurstThenDenyThenRecover(t *testing.T) {
	fake := clock.NewFake(serviceBaseTime)
	svc := newRealLimiter(fake)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result, err := svc.Admit(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		fake.Advance(time.Second)
	}

	denied, err := svc.Admit(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Greater(t, denied.RetryAfterSeconds(), 0)

	fake.Advance(time.Minute)

	again, err := svc.Admit(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, again.Allowed)
}

func TestRateLimiterService_StatusDoesNotConsume(t *testing.T) {
	fake := clock.NewFake(serviceBaseTime)
	svc := newRealLimiter(fake)
	ctx := context.Background()

	_, err := svc.Admit(ctx, "198.51.100.1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		status, err := svc.Status(ctx, "198.51.100.1")
		require.NoError(t, err)
		assert.Equal(t, "198.51.100.1", status.Identity)
		assert.True(t, status.Tracked)
		require.Len(t, status.Windows, 3)
		assert.Equal(t, 1, status.Windows[0].Count)
		assert.Equal(t, 9, status.Windows[0].Remaining)
	}
}

func TestRateLimiterService_Reset(t *testing.T) {
	fake := clock.NewFake(serviceBaseTime)
	svc := newRealLimiter(fake)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		_, err := svc.Admit(ctx, "198.51.100.2")
		require.NoError(t, err)
	}

	require.NoError(t, svc.Reset(ctx, "198.51.100.2"))

	result, err := svc.Admit(ctx, "198.51.100.2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterService_ResetStorageError(t *testing.T) {
	mockStorage := new(MockStorage)
	mockStorage.On("Reset", mock.Anything, "rate_limit:ip:1.2.3.4").Return(errors.New("boom"))

	svc := NewRateLimiterService(mockStorage, createTestWindows(), clock.NewFake(serviceBaseTime), logger.Nop())

	err := svc.Reset(context.Background(), "1.2.3.4")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reset key")
}

func TestRateLimiterService_WindowsIsCopy(t *testing.T) {
	windows := createTestWindows()
	svc := NewRateLimiterService(new(MockStorage), windows, clock.NewFake(serviceBaseTime), logger.Nop())

	windows[0].Limit = 999
	got := svc.Windows()
	assert.Equal(t, 10, got[0].Limit)

	got[1].Limit = 1
	assert.Equal(t, 100, svc.Windows()[1].Limit)
}

func TestSummarizeWindows(t *testing.T) {
	summary := summarizeWindows([]domain.WindowCounter{
		{Name: "minute", Count: 3, Limit: 10},
		{Name: "hour", Count: 3, Limit: 100},
	})
	assert.Equal(t, "minute=3/10,hour=3/100", summary)
}
