package ustar

import "io"

// Encryptor optionally wraps the archive stream.
// Encryption uses the public key only, so it needs no user input.
// Decryption requires a passphrase to unlock the private key, producing a
// DecryptionContext for the session.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `ustar keys init`.
	Setup(passphrase string) error

	// EncryptWriter returns a writer that encrypts into w. Closing it
	// flushes the final ciphertext but does not close w.
	EncryptWriter(w io.Writer) (io.WriteCloser, error)

	// Suffix is appended to archive names written through this encryptor.
	Suffix() string

	// Unlock decrypts the private key using the passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the encryptor has what it needs to encrypt.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the
// duration of an inspect session.
type DecryptionContext interface {
	// DecryptReader returns a reader producing the plaintext of r.
	DecryptReader(r io.Reader) (io.Reader, error)
}
