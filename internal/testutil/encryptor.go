package testutil

import (
	"ustar-go/internal/encryption"
	"ustar-go/internal/ustar"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() ustar.Encryptor {
	return encryption.NewTestEncryptor()
}
