package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadFrom reads the config at path over the defaults, so sections absent
// from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to access config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := NewConfig()
	if err := decode(path, data, cfg); err != nil {
		return nil, invalidConfig(path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, invalidConfig(path, err)
	}
	return cfg, nil
}

// decode parses TOML, or JSON when path ends in .json. Unknown TOML keys
// are rejected so typos do not silently fall back to defaults.
func decode(path string, data []byte, cfg *Config) error {
	if isJSON(path) {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("JSON parse error: %w", err)
		}
		return nil
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("TOML parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return &UnknownKeysError{Keys: keys}
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// getReadPermissionFix returns a platform-specific fix command.
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default:
		return fmt.Sprintf("Run: chmod 644 %s", path)
	}
}

func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}
