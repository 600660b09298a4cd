package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/MKhiriev/go-vault-sync/models"
)

// KeySize is the length of every symmetric key in the protocol: master key,
// encryption key and MAC key.
const KeySize = 32

// Lower bounds enforced before deriving anything.
const (
	MinPBKDF2Iterations  = 5000
	MinArgon2Iterations  = 1
	MinArgon2MemoryMiB   = 16
	MinArgon2Parallelism = 1
	maxArgon2MemoryMiB   = 1024
	maxArgon2Parallelism = 16
)

// ValidateKdfConfig checks cfg against the supported KDF types and the
// parameter floors. The returned error wraps [ErrInvalidKdfConfig].
func ValidateKdfConfig(cfg models.KdfConfig) error {
	switch cfg.Type {
	case models.KdfPBKDF2SHA256:
		if cfg.Iterations < MinPBKDF2Iterations {
			return fmt.Errorf("%w: pbkdf2 iterations %d below minimum %d", ErrInvalidKdfConfig, cfg.Iterations, MinPBKDF2Iterations)
		}
	case models.KdfArgon2id:
		if cfg.Iterations < MinArgon2Iterations {
			return fmt.Errorf("%w: argon2id iterations %d below minimum %d", ErrInvalidKdfConfig, cfg.Iterations, MinArgon2Iterations)
		}
		mem := cfg.MemoryOrDefault()
		if mem < MinArgon2MemoryMiB || mem > maxArgon2MemoryMiB {
			return fmt.Errorf("%w: argon2id memory %d MiB out of range [%d, %d]", ErrInvalidKdfConfig, mem, MinArgon2MemoryMiB, maxArgon2MemoryMiB)
		}
		p := cfg.ParallelismOrDefault()
		if p < MinArgon2Parallelism || p > maxArgon2Parallelism {
			return fmt.Errorf("%w: argon2id parallelism %d out of range [%d, %d]", ErrInvalidKdfConfig, p, MinArgon2Parallelism, maxArgon2Parallelism)
		}
	default:
		return fmt.Errorf("%w: unknown kdf type %s", ErrInvalidKdfConfig, cfg.Type)
	}
	return nil
}

// DeriveMasterKey derives the 256-bit master key from the master password.
// The salt is the lowercased account email. For Argon2id the salt is first
// hashed with SHA-256 as the protocol requires.
//
// The function is deterministic: equal inputs always produce equal keys.
func DeriveMasterKey(password []byte, email string, cfg models.KdfConfig) ([]byte, error) {
	if err := ValidateKdfConfig(cfg); err != nil {
		return nil, err
	}

	salt := []byte(strings.ToLower(strings.TrimSpace(email)))

	switch cfg.Type {
	case models.KdfArgon2id:
		sum := sha256.Sum256(salt)
		return argon2.IDKey(
			password,
			sum[:],
			uint32(cfg.Iterations),
			uint32(cfg.MemoryOrDefault())*1024,
			uint8(cfg.ParallelismOrDefault()),
			KeySize,
		), nil
	default:
		return pbkdf2.Key(password, salt, cfg.Iterations, KeySize, sha256.New), nil
	}
}

// MasterPasswordHash computes the value sent as "password" in the password
// grant: one PBKDF2-SHA256 round keyed by the master key and salted with the
// raw password, Base64 encoded.
func MasterPasswordHash(masterKey, password []byte) string {
	h := pbkdf2.Key(masterKey, password, 1, KeySize, sha256.New)
	defer Wipe(h)
	return base64.StdEncoding.EncodeToString(h)
}

// ExpandSessionKey stretches the master key into an encryption key and a MAC
// key with HKDF-Expand over SHA-256 using the fixed infos "enc" and "mac".
func ExpandSessionKey(masterKey []byte) (*SymmetricCryptoKey, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(masterKey))
	}

	enc, err := expand(masterKey, "enc")
	if err != nil {
		return nil, err
	}
	mac, err := expand(masterKey, "mac")
	if err != nil {
		Wipe(enc)
		return nil, err
	}

	return NewSymmetricCryptoKey(enc, mac)
}

func expand(prk []byte, info string) ([]byte, error) {
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("hkdf expand %q: %w", info, err)
	}
	return out, nil
}

// EqualKeys compares two keys in constant time.
func EqualKeys(a, b []byte) bool {
	return len(a) == len(b) && hmac.Equal(a, b)
}
