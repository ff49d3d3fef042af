package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// Keychain coordinates for the transcription API key.
const (
	KeyringService = "oto"
	KeyringUser    = "openai-api-key"
)

// Where a resolved API key came from.
const (
	KeySourceNone     = ""
	KeySourceEnv      = "env"
	KeySourceConfig   = "config"
	KeySourceKeychain = "keychain"
)

// KeychainAPIKey reads the stored API key. A missing entry returns "".
func KeychainAPIKey() (string, error) {
	value, err := keyring.Get(KeyringService, KeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get api key from keychain: %w", err)
	}
	return strings.TrimSpace(value), nil
}

// StoreAPIKey saves value in the system keychain.
func StoreAPIKey(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("api key must not be empty")
	}
	if err := keyring.Set(KeyringService, KeyringUser, value); err != nil {
		return fmt.Errorf("failed to set api key in keychain: %w", err)
	}
	return nil
}

// DeleteAPIKey removes the stored key. A missing entry is not an error.
func DeleteAPIKey() error {
	if err := keyring.Delete(KeyringService, KeyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete api key from keychain: %w", err)
	}
	return nil
}
