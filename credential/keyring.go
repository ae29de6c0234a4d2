package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const defaultServiceName = "storefront-realtime"

// Config selects where tokens are persisted.
type Config struct {
	ServiceName string
	// FileDir and FilePassword configure the encrypted file fallback used
	// when no OS keychain is available.
	FileDir      string
	FilePassword string
}

// Open opens the system keyring and returns a Manager backed by it.
func Open(cfg Config) (*Manager, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.FileDir == "" {
		cfg.FileDir = "~/.config/" + cfg.ServiceName + "/credentials"
	}
	if cfg.FilePassword == "" {
		cfg.FilePassword = cfg.ServiceName + "-file-key"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: cfg.ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.FilePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}
