package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every override variable.
const EnvPrefix = "OTO"

// envOverrides are the OTO_* variables. Nil means unset.
type envOverrides struct {
	APIKey       *string `envconfig:"API_KEY"`
	Model        *string `envconfig:"MODEL"`
	Language     *string `envconfig:"LANGUAGE"`
	Endpoint     *string `envconfig:"ENDPOINT"`
	Hotkey       *string `envconfig:"HOTKEY"`
	LogLevel     *string `envconfig:"LOG_LEVEL"`
	PasteDelayMS *int    `envconfig:"PASTE_DELAY_MS"`
}

type openAIEnv struct {
	APIKey *string `envconfig:"OPENAI_API_KEY"`
}

// LoadDotEnv exports variables from a .env file without overriding the
// process environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays OTO_* variables onto cfg. It reports whether the API key
// came from the environment.
func ApplyEnv(cfg *Config) (bool, error) {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return false, fmt.Errorf("process %s_* environment: %w", EnvPrefix, err)
	}
	var openai openAIEnv
	if err := envconfig.Process("", &openai); err != nil {
		return false, fmt.Errorf("process OPENAI_API_KEY: %w", err)
	}

	setString(&cfg.Transcription.Model, nonBlank(env.Model))
	setString(&cfg.Transcription.Language, env.Language)
	setString(&cfg.Transcription.Endpoint, nonBlank(env.Endpoint))
	setString(&cfg.Hotkey.Combo, nonBlank(env.Hotkey))
	setString(&cfg.Log.Level, nonBlank(env.LogLevel))
	setInt(&cfg.Paste.DelayMS, env.PasteDelayMS)

	for _, key := range []*string{env.APIKey, openai.APIKey} {
		if key = nonBlank(key); key != nil {
			cfg.Transcription.APIKey = strings.TrimSpace(*key)
			return true, nil
		}
	}
	return false, nil
}

func nonBlank(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}
