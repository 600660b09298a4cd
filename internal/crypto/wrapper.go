package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/MKhiriev/go-vault-sync/internal/logger"
)

const deviceKeyAccount = "device-wrapping-key"

// ErrWrappedBlob is returned by Unwrap for blobs that fail authentication.
var ErrWrappedBlob = errors.New("wrapped secret cannot be opened")

// keyringWrapper keeps its AES-256 wrapping key in the OS keyring under
// service. The key is created on first use.
type keyringWrapper struct {
	service string
	logger  *logger.Logger

	once sync.Once
	key  []byte
	err  error
}

// NewKeyringWrapper returns a [SecretWrapper] whose device key lives in the
// OS keyring (Secret Service, Keychain or Windows Credential Manager).
func NewKeyringWrapper(service string, log *logger.Logger) SecretWrapper {
	return &keyringWrapper{service: service, logger: log}
}

func (w *keyringWrapper) deviceKey() ([]byte, error) {
	w.once.Do(func() {
		encoded, err := keyring.Get(w.service, deviceKeyAccount)
		switch {
		case err == nil:
			key, decErr := base64.StdEncoding.DecodeString(encoded)
			if decErr != nil || len(key) != KeySize {
				w.err = fmt.Errorf("device key in keyring is corrupt")
				return
			}
			w.key = key
		case errors.Is(err, keyring.ErrNotFound):
			key := make([]byte, KeySize)
			if _, err = io.ReadFull(rand.Reader, key); err != nil {
				w.err = fmt.Errorf("generate device key: %w", err)
				return
			}
			if err = keyring.Set(w.service, deviceKeyAccount, base64.StdEncoding.EncodeToString(key)); err != nil {
				w.err = fmt.Errorf("store device key in keyring: %w", err)
				return
			}
			w.logger.Info().Str("func", "keyringWrapper.deviceKey").Str("service", w.service).Msg("created new device wrapping key")
			w.key = key
		default:
			w.err = fmt.Errorf("read device key from keyring: %w", err)
		}
	})
	return w.key, w.err
}

func (w *keyringWrapper) Wrap(plain []byte) (string, error) {
	key, err := w.deviceKey()
	if err != nil {
		return "", err
	}
	return sealGCM(key, plain)
}

func (w *keyringWrapper) Unwrap(blob string) ([]byte, error) {
	key, err := w.deviceKey()
	if err != nil {
		return nil, err
	}
	return openGCM(key, blob)
}

// staticWrapper wraps with a caller-provided key. Used for headless hosts
// without a keyring and in tests.
type staticWrapper struct {
	key []byte
}

// NewStaticWrapper copies key, which must be 32 bytes.
func NewStaticWrapper(key []byte) (SecretWrapper, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: wrapping key must be %d bytes", ErrInvalidKey, KeySize)
	}
	return &staticWrapper{key: append([]byte(nil), key...)}, nil
}

func (w *staticWrapper) Wrap(plain []byte) (string, error) { return sealGCM(w.key, plain) }

func (w *staticWrapper) Unwrap(blob string) ([]byte, error) { return openGCM(w.key, blob) }

// sealGCM returns base64(nonce || ciphertext).
func sealGCM(key, plain []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plain, nil)), nil
}

func openGCM(key []byte, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrappedBlob, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: blob too short", ErrWrappedBlob)
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrappedBlob, err)
	}
	return plain, nil
}
