//go:build !bedrock

package llm

import (
	"fmt"
	"log/slog"

	"conductor/internal/domain"
	"conductor/internal/infra/config"
)

func newBedrockAdapter(_ config.ProviderConfig, _ *slog.Logger) (domain.Adapter, error) {
	return nil, fmt.Errorf("%w: bedrock requires build with -tags bedrock", domain.ErrUnsupportedProvider)
}
