package bootstrap

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// SecretsService is the OS keyring service name under which channel
// adapter credentials are stored, so a config.yaml committed to a
// dotfiles repo never needs to carry a bot token in plaintext.
const SecretsService = "vargos"

// ResolveSecret returns the OS keyring entry for key if one exists,
// otherwise falls back to configValue (typically a plaintext value
// read straight out of config.yaml). This lets an operator either put
// a token directly in config or `keyring set vargos telegram.token`
// it once and leave config.yaml blank.
func ResolveSecret(key, configValue string) (string, error) {
	secret, err := keyring.Get(SecretsService, key)
	if err == nil {
		return secret, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return configValue, nil
	}
	return "", err
}

// StoreSecret writes value into the OS keyring under key, for an
// operator migrating a plaintext config token out of config.yaml.
func StoreSecret(key, value string) error {
	return keyring.Set(SecretsService, key, value)
}
