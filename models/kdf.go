package models

import "fmt"

// KdfType identifies the key-derivation function the server expects for an
// account. Values match the numeric codes used on the wire.
type KdfType int

const (
	KdfPBKDF2SHA256 KdfType = 0
	KdfArgon2id     KdfType = 1
)

// Defaults returned by the server when an account has never changed its KDF.
const (
	DefaultPBKDF2Iterations  = 600000
	DefaultArgon2Iterations  = 3
	DefaultArgon2MemoryMiB   = 64
	DefaultArgon2Parallelism = 4
)

func (k KdfType) String() string {
	switch k {
	case KdfPBKDF2SHA256:
		return "PBKDF2-SHA256"
	case KdfArgon2id:
		return "Argon2id"
	default:
		return fmt.Sprintf("KdfType(%d)", int(k))
	}
}

// KdfConfig holds the KDF type and its parameters.
// Memory (MiB) and Parallelism are only meaningful for Argon2id.
type KdfConfig struct {
	Type        KdfType `json:"kdf"`
	Iterations  int     `json:"kdfIterations"`
	Memory      *int    `json:"kdfMemory,omitempty"`
	Parallelism *int    `json:"kdfParallelism,omitempty"`
}

// DefaultKdfConfig is used when the prelogin endpoint is unavailable.
func DefaultKdfConfig() KdfConfig {
	return KdfConfig{Type: KdfPBKDF2SHA256, Iterations: DefaultPBKDF2Iterations}
}

// MemoryOrDefault returns the Argon2id memory in MiB, falling back to the
// server default when the field is absent.
func (c KdfConfig) MemoryOrDefault() int {
	if c.Memory == nil || *c.Memory <= 0 {
		return DefaultArgon2MemoryMiB
	}
	return *c.Memory
}

// ParallelismOrDefault returns the Argon2id lane count, falling back to the
// server default when the field is absent.
func (c KdfConfig) ParallelismOrDefault() int {
	if c.Parallelism == nil || *c.Parallelism <= 0 {
		return DefaultArgon2Parallelism
	}
	return *c.Parallelism
}

// IntPtr is a small helper for optional KDF parameters.
func IntPtr(v int) *int {
	return &v
}
