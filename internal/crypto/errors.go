package crypto

import "errors"

var (
	// ErrInvalidKdfConfig is returned before any derivation work when the KDF
	// type or one of its parameters is out of range.
	ErrInvalidKdfConfig = errors.New("invalid kdf configuration")

	// ErrInvalidKey is returned for key material of the wrong length.
	ErrInvalidKey = errors.New("invalid key material")

	// ErrInvalidCipherString is returned when a cipher string cannot be parsed.
	ErrInvalidCipherString = errors.New("invalid cipher string")

	// ErrUnsupportedEncryption is returned for cipher string types other than
	// AES-CBC-256 with or without HMAC-SHA256.
	ErrUnsupportedEncryption = errors.New("unsupported encryption type")

	// ErrMacMismatch is returned when the authentication tag of a cipher
	// string does not verify. Nothing is decrypted in that case.
	ErrMacMismatch = errors.New("mac verification failed")

	// ErrDecrypt is returned when ciphertext decrypts to invalid padding.
	ErrDecrypt = errors.New("decryption failed")

	// ErrKeyDestroyed is returned when a destroyed key is used.
	ErrKeyDestroyed = errors.New("key has been destroyed")
)
