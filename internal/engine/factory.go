// File: internal/engine/factory.go
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
)

// NewClient constructs the concrete engine client selected by configuration.
func NewClient(cfg config.EngineConfig, logger *zap.Logger) (schemas.EngineClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	case config.ProviderOllama:
		return NewOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown engine provider: %q", cfg.Provider)
	}
}

// NewGatewayFromConfig builds the provider client and wraps it in a Gateway
// in one step. This is what the CLI wires together at startup.
func NewGatewayFromConfig(cfg config.EngineConfig, logger *zap.Logger) (*Gateway, error) {
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewGateway(client, cfg, logger), nil
}
