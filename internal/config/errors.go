package config

import (
	"errors"
	"fmt"
	"strings"
)

// sections are the top-level tables of config.toml, in file order.
var sections = []string{"storage", "session", "promotion", "inference", "embedding", "catalog", "training", "logging"}

// keyHints suggest accepted values for keys that take a fixed set.
var keyHints = map[string]string{
	"inference.provider": "accepted providers: heuristic, sidecar, openai",
	"inference.command":  `set [inference] command to the model binary, or use provider = "heuristic"`,
	"embedding.provider": "accepted providers: fastembed, hashing",
	"logging.format":     "accepted formats: console, json",
}

// KeyError is a rejected value for one dotted config key such as
// "session.ttl_minutes".
type KeyError struct {
	Key    string
	Reason string
}

func (e *KeyError) Error() string {
	return e.Key + " " + e.Reason
}

// Hint returns the accepted values for the key, if it has a fixed set.
func (e *KeyError) Hint() string {
	return keyHints[e.Key]
}

// UnknownKeysError lists keys in the file that match no setting.
type UnknownKeysError struct {
	Keys []string
}

func (e *UnknownKeysError) Error() string {
	return "unknown keys: " + strings.Join(e.Keys, ", ")
}

// Hint names the sections genloop reads.
func (e *UnknownKeysError) Hint() string {
	return "known sections: [" + strings.Join(sections, "] [") + "]"
}

// InvalidConfigError is returned for files that do not parse or validate.
// Err is the underlying *KeyError, *UnknownKeysError or parse error.
type InvalidConfigError struct {
	Path string
	Err  error
	Hint string
}

func (e *InvalidConfigError) Error() string {
	msg := fmt.Sprintf("invalid config %s: %v", e.Path, e.Err)
	if e.Hint != "" {
		msg += "\n" + e.Hint
	}
	return msg
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

// invalidConfig wraps err for path, picking the most specific hint.
func invalidConfig(path string, err error) *InvalidConfigError {
	var keyErr *KeyError
	var unknown *UnknownKeysError
	hint := ""
	switch {
	case errors.As(err, &keyErr):
		hint = keyErr.Hint()
	case errors.As(err, &unknown):
		hint = unknown.Hint()
	default:
		hint = "fix the syntax or restore " + path + ".bak"
	}
	return &InvalidConfigError{Path: path, Err: err, Hint: hint}
}

// ConfigNotFoundError is returned when the config file does not exist.
// LoadOrCreate treats it as a signal to write the defaults.
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found: %s (run any genloop command to create it, or set %s)", e.Path, EnvConfigPath)
}

// PermissionError is returned when the config file or its directory
// cannot be read or written.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string
	Details string
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("cannot %s genloop config %s: permission denied", e.Op, e.Path)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg + "\n" + e.Fix + ", or point " + EnvConfigPath + " at a writable file"
}
