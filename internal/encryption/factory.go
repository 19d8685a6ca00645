package encryption

import (
	"fmt"

	"sback-go/internal/config"
	"sback-go/internal/engine"
)

// Encryptor extends the engine port with key lifecycle operations used by
// the CLI: generating a key pair and unlocking the private key for restore.
type Encryptor interface {
	engine.Encryptor
	Setup(passphrase string) error
	Unlock(passphrase string) (engine.DecryptionContext, error)
}

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg.PublicKeyPath, cfg.PrivateKeyPath), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
