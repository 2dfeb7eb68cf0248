package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
)

// MockEngineClient is a testify mock for the schemas.EngineClient interface.
type MockEngineClient struct {
	mock.Mock
}

func (m *MockEngineClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockEngineClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// setupTestLogger creates a zap logger backed by an observer core.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// getValidEngineConfig returns an EngineConfig suitable for unit tests.
func getValidEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		Provider:          config.ProviderGemini,
		APIKey:            "test-api-key",
		Model:             "test-model",
		APITimeout:        5 * time.Second,
		Temperature:       0.2,
		MaxTokens:         1024,
		TransportRetries:  2,
		RequestsPerSecond: 100,
		Burst:             10,
	}
}

func testGenerationRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: "You translate steps into actions.",
		UserPrompt:   "Given the user is on the login page",
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
		},
	}
}
