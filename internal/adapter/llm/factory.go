package llm

import (
	"log/slog"
	"time"

	"conductor/internal/domain"
	"conductor/internal/infra/config"
)

// New constructs a decorated adapter for the given provider config:
// the raw connector wrapped in a circuit breaker (when enabled) and a
// throttle enforcing minInterval between sends.
func New(cfg config.ProviderConfig, cbCfg config.CircuitBreakerConfig, minInterval time.Duration, logger *slog.Logger) (domain.Adapter, error) {
	base, err := newConnector(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cbCfg.Enabled {
		base = NewCircuitBreakerAdapter(base, cfg.Type, cbCfg, logger)
	}

	return NewThrottleAdapter(base, minInterval), nil
}

// newConnector builds the raw provider connector based on the type field.
func newConnector(cfg config.ProviderConfig, logger *slog.Logger) (domain.Adapter, error) {
	switch cfg.Type {
	case "openai", "":
		return NewOpenAIProvider(cfg, logger), nil
	case "gemini":
		return NewGeminiProvider(cfg, logger), nil
	case "ollama":
		return NewOllamaProvider(cfg, logger), nil
	case "bedrock":
		return newBedrockAdapter(cfg, logger)
	case "mock":
		return NewMockAdapter(cfg.Model), nil
	default:
		return nil, domain.NewDomainError("llm.New", domain.ErrUnsupportedProvider, cfg.Type)
	}
}
