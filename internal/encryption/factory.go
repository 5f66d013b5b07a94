package encryption

import (
	"fmt"

	"ustar-go/internal/config"
	"ustar-go/internal/ustar"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns nil for "none": archives are then written in the clear.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (ustar.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
