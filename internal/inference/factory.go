package inference

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// New builds the configured provider. Any configuration that cannot
// produce a working model yields the heuristic provider.
func New(cfg Config, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderHeuristic:
		return Heuristic{}

	case ProviderSidecar:
		s := NewSidecar(cfg, logger)
		if err := s.Start(); err != nil {
			logger.Warn("sidecar unavailable, using heuristics", zap.Error(err))
			return Heuristic{}
		}
		return s

	case ProviderOpenAI:
		apiKey := ""
		if cfg.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.APIKeyEnv)
			if apiKey == "" {
				logger.Warn("api key env var is empty, using heuristics", zap.String("env", cfg.APIKeyEnv))
				return Heuristic{}
			}
		}
		o := NewOpenAI(cfg.BaseURL, cfg.Model, apiKey)
		if !o.Ready() {
			logger.Warn("openai provider needs base_url and model, using heuristics")
			return Heuristic{}
		}
		return o

	default:
		logger.Warn("unknown inference provider, using heuristics", zap.String("provider", cfg.Provider))
		return Heuristic{}
	}
}
