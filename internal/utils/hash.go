package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sync"
)

// Hasher computes keyed HMAC-SHA256 digests. Hash instances are reused
// through a sync.Pool, so a Hasher is safe for concurrent use.
type Hasher struct {
	pool sync.Pool
}

// NewHasher returns a Hasher keyed with key.
//
// Parameters:
//
//	key - secret used for every HMAC operation of this Hasher
//
// Example usage:
//
//	h := utils.NewHasher([]byte("my-secret-key"))
func NewHasher(key []byte) *Hasher {
	k := append([]byte(nil), key...)
	return &Hasher{
		pool: sync.Pool{
			New: func() any {
				return hmac.New(sha256.New, k)
			},
		},
	}
}

// NewEphemeralHasher returns a Hasher keyed with random bytes. Its digests
// are only comparable within the current process.
func NewEphemeralHasher() *Hasher {
	key := make([]byte, sha256.Size)
	_, _ = rand.Read(key)
	return NewHasher(key)
}

// Sum computes the HMAC-SHA256 digest of data.
//
// Behavior:
//   - Retrieves a hash.Hash instance from the pool
//   - Resets it, writes the data, computes the sum
//   - Resets again and returns it to the pool
func (h *Hasher) Sum(data []byte) []byte {
	m := h.pool.Get().(hash.Hash)
	m.Reset()

	m.Write(data)
	sum := m.Sum(nil)

	m.Reset()
	h.pool.Put(m)

	return sum
}

// ShortHex returns the first n bytes of the digest of data, hex encoded.
// n is clamped to the digest size.
func (h *Hasher) ShortHex(data []byte, n int) string {
	sum := h.Sum(data)
	if n <= 0 || n > len(sum) {
		n = len(sum)
	}
	return hex.EncodeToString(sum[:n])
}
