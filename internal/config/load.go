package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// DotEnvFile is read from the working directory before env overrides apply.
const DotEnvFile = ".env"

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path      string
	Config    Config
	Warnings  []Warning
	Exists    bool
	KeySource string
}

// Load resolves and parses the config file, applies environment overrides,
// and falls back to the keychain for a missing API key. Precedence for the
// key is env, then file, then keychain.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath}
	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Config = Default()
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, warnings, err := Parse(string(content), Default())
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}
	if strings.TrimSpace(loaded.Config.Transcription.APIKey) != "" {
		loaded.KeySource = KeySourceConfig
	}

	if err := LoadDotEnv(DotEnvFile); err != nil {
		loaded.Warnings = append(loaded.Warnings, Warning{Message: err.Error()})
	}
	fromEnv, err := ApplyEnv(&loaded.Config)
	if err != nil {
		return Loaded{}, err
	}
	if fromEnv {
		loaded.KeySource = KeySourceEnv
	}
	if _, err := Validate(loaded.Config); err != nil {
		return Loaded{}, fmt.Errorf("environment override: %w", err)
	}

	if loaded.KeySource == KeySourceNone {
		key, err := KeychainAPIKey()
		if err != nil {
			loaded.Warnings = append(loaded.Warnings, Warning{Message: err.Error()})
		}
		if key != "" {
			loaded.Config.Transcription.APIKey = key
			loaded.KeySource = KeySourceKeychain
		}
	}
	return loaded, nil
}
