package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/genloop/internal/inference"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	require.NoError(t, Validate(cfg))
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 15*time.Minute, cfg.PromotionInterval())
	assert.Equal(t, 90*24*time.Hour, cfg.Retention())
	assert.Equal(t, inference.ProviderHeuristic, cfg.Inference.Provider)
	assert.Equal(t, 0.3, cfg.Training.MinAbsScore)
}

func TestSaveAndLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := NewConfig()
	cfg.Inference = inference.Config{
		Provider:  inference.ProviderSidecar,
		Command:   "genloop-model",
		Args:      []string{"--quantized"},
		Env:       map[string]string{"MODEL_DIR": "/models"},
		TimeoutMS: 2500,
	}
	cfg.Training.Compress = true
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[inference]")

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveAndLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := NewConfig()
	cfg.Logging.Level = "debug"
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"retentionDays": 90`)

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.Logging.Level)
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[session]\nttl_minutes = 5\n"), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Session.TTLMinutes)
	assert.Equal(t, 1024, cfg.Session.MaxEntries)
	assert.Equal(t, 15, cfg.Promotion.IntervalMinutes)
}

func TestLoadFrom_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFrom(filepath.Join(dir, "missing.toml"))
	var notFound *ConfigNotFoundError
	assert.ErrorAs(t, err, &notFound)

	tests := map[string]string{
		"syntax.toml":   "[session\nttl_minutes = 5",
		"unknown.toml":  "[session]\nttl_minuts = 5\n",
		"negative.toml": "[promotion]\ninterval_minutes = -1\n",
		"provider.toml": "[inference]\nprovider = \"cloud\"\n",
		"broken.json":   "{",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := LoadFrom(path)
			var invalid *InvalidConfigError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genloop", "config.toml")

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
	assert.FileExists(t, path)

	cfg.Session.MaxEntries = 7
	require.NoError(t, Save(cfg, path))
	assert.FileExists(t, path+".bak")

	again, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, 7, again.Session.MaxEntries)
}

func TestGetDefaultConfigPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/genloop.toml")
	p, err := GetDefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/genloop.toml", p)

	t.Setenv(EnvConfigPath, "")
	p, err = GetDefaultConfigPath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, filepath.Join(".genloop", "config.toml")), p)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := ExpandPath("~/.genloop/x.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".genloop", "x.db"), p)

	p, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", p)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(nil))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative retention", func(c *Config) { c.Storage.RetentionDays = -1 }},
		{"negative ttl", func(c *Config) { c.Session.TTLMinutes = -1 }},
		{"sidecar without command", func(c *Config) { c.Inference.Provider = inference.ProviderSidecar }},
		{"unknown embedder", func(c *Config) { c.Embedding.Provider = "word2vec" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"negative min score", func(c *Config) { c.Training.MinAbsScore = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := NewConfig()
	cfg.Session.MaxEntries = -3

	err := Save(cfg, filepath.Join(t.TempDir(), "config.toml"))
	var invalid *InvalidConfigError
	assert.ErrorAs(t, err, &invalid)
}

func TestLoadFrom_ErrorsNameTheKey(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "provider.toml")
	require.NoError(t, os.WriteFile(path, []byte("[inference]\nprovider = \"cloud\"\n"), 0o644))
	_, err := LoadFrom(path)
	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "inference.provider", keyErr.Key)
	assert.Contains(t, err.Error(), "accepted providers: heuristic, sidecar, openai")

	path = filepath.Join(dir, "typo.toml")
	require.NoError(t, os.WriteFile(path, []byte("[session]\nttl_minuts = 5\n"), 0o644))
	_, err = LoadFrom(path)
	var unknown *UnknownKeysError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"session.ttl_minuts"}, unknown.Keys)
	assert.Contains(t, err.Error(), "[session]")

	_, err = LoadFrom(filepath.Join(dir, "missing.toml"))
	assert.ErrorContains(t, err, EnvConfigPath)
}
