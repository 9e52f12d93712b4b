// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// NewClient is a factory function that creates a client based on the
// configured provider. The returned GeminiClient serves both the text and
// vision oracle interfaces.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}
