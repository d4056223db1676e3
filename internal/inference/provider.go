/*
Package inference is the optional model capability used for quality
scoring and prompt enhancement.

Every provider is fallible: Infer never returns a Go error, it reports
failure through Result.Source so callers always have a heuristic path.
*/
package inference

import (
	"context"
	"time"
)

// Source says where a result came from.
type Source string

const (
	SourceModel     Source = "model"
	SourceError     Source = "error"
	SourceHeuristic Source = "heuristic"
)

// Provider names accepted by New.
const (
	ProviderHeuristic = "heuristic"
	ProviderSidecar   = "sidecar"
	ProviderOpenAI    = "openai"
)

// DefaultTimeout bounds a single model call made by the scorer and enhancer.
const DefaultTimeout = 5 * time.Second

// Options tune a single inference call.
type Options struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// Result is the outcome of an inference call. When Source is SourceError,
// Text carries the reason.
type Result struct {
	Source Source `json:"source"`
	Text   string `json:"text"`
}

// OK reports whether the result came from the model.
func (r Result) OK() bool {
	return r.Source == SourceModel
}

func failure(err error) Result {
	return Result{Source: SourceError, Text: err.Error()}
}

// Provider runs prompts against a model.
type Provider interface {
	Infer(ctx context.Context, prompt string, opts Options) Result
	// Ready reports whether the provider can currently reach a model.
	Ready() bool
	Name() string
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	Provider  string            `toml:"provider" json:"provider"`
	Command   string            `toml:"command" json:"command,omitempty"`
	Args      []string          `toml:"args" json:"args,omitempty"`
	Env       map[string]string `toml:"env" json:"env,omitempty"`
	BaseURL   string            `toml:"base_url" json:"baseUrl,omitempty"`
	Model     string            `toml:"model" json:"model,omitempty"`
	APIKeyEnv string            `toml:"api_key_env" json:"apiKeyEnv,omitempty"`
	TimeoutMS int               `toml:"timeout_ms" json:"timeoutMs,omitempty"`
}

// Timeout returns the configured per-call timeout or DefaultTimeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
