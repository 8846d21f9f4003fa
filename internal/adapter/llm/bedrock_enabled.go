//go:build bedrock

package llm

import (
	"log/slog"

	"conductor/internal/domain"
	"conductor/internal/infra/config"
)

func newBedrockAdapter(cfg config.ProviderConfig, logger *slog.Logger) (domain.Adapter, error) {
	return NewBedrockProvider(cfg, logger)
}
