package engine

import "io"

// Encryptor encrypts archives before they leave the server for object
// storage. Encryption is optional; checksums always cover the plaintext.
type Encryptor interface {
	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// IsConfigured reports whether encryption material is available.
	IsConfigured() bool
}

// DecryptionContext decrypts archives fetched back from object storage.
// Obtaining one typically requires unlocking a private key.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
