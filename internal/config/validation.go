package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/khanglvm/genloop/internal/embedder"
	"github.com/khanglvm/genloop/internal/inference"
)

// Validate checks value ranges and provider names.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	for _, c := range []struct {
		key   string
		value float64
	}{
		{"storage.retention_days", float64(cfg.Storage.RetentionDays)},
		{"session.ttl_minutes", float64(cfg.Session.TTLMinutes)},
		{"session.max_entries", float64(cfg.Session.MaxEntries)},
		{"promotion.interval_minutes", float64(cfg.Promotion.IntervalMinutes)},
		{"inference.timeout_ms", float64(cfg.Inference.TimeoutMS)},
		{"training.min_abs_score", cfg.Training.MinAbsScore},
		{"training.limit", float64(cfg.Training.Limit)},
	} {
		if c.value < 0 {
			return &KeyError{Key: c.key, Reason: "must not be negative"}
		}
	}

	switch strings.ToLower(cfg.Inference.Provider) {
	case "", inference.ProviderHeuristic, inference.ProviderSidecar, inference.ProviderOpenAI:
	default:
		return &KeyError{Key: "inference.provider", Reason: fmt.Sprintf("has unknown provider %q", cfg.Inference.Provider)}
	}
	if strings.EqualFold(cfg.Inference.Provider, inference.ProviderSidecar) && cfg.Inference.Command == "" {
		return &KeyError{Key: "inference.command", Reason: "is required for the sidecar provider"}
	}

	switch strings.ToLower(cfg.Embedding.Provider) {
	case "", embedder.ProviderFastEmbed, embedder.ProviderHashing:
	default:
		return &KeyError{Key: "embedding.provider", Reason: fmt.Sprintf("has unknown provider %q", cfg.Embedding.Provider)}
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "console", "json":
	default:
		return &KeyError{Key: "logging.format", Reason: fmt.Sprintf("has unknown format %q", cfg.Logging.Format)}
	}

	return nil
}
