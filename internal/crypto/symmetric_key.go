package crypto

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// SymmetricCryptoKey is an encryption key and MAC key pair held in guarded,
// non-swappable memory. Destroy wipes both buffers; a destroyed key fails
// every operation with [ErrKeyDestroyed].
type SymmetricCryptoKey struct {
	mu  sync.RWMutex
	enc *memguard.LockedBuffer
	mac *memguard.LockedBuffer
}

// NewSymmetricCryptoKey takes ownership of enc and mac: both slices are
// copied into guarded memory and wiped. mac may be empty for legacy keys
// without authentication.
func NewSymmetricCryptoKey(enc, mac []byte) (*SymmetricCryptoKey, error) {
	if len(enc) != KeySize {
		Wipe(enc)
		Wipe(mac)
		return nil, fmt.Errorf("%w: encryption key must be %d bytes", ErrInvalidKey, KeySize)
	}
	if len(mac) != 0 && len(mac) != KeySize {
		Wipe(enc)
		Wipe(mac)
		return nil, fmt.Errorf("%w: mac key must be %d bytes", ErrInvalidKey, KeySize)
	}

	k := &SymmetricCryptoKey{enc: memguard.NewBufferFromBytes(enc)}
	if len(mac) > 0 {
		k.mac = memguard.NewBufferFromBytes(mac)
	}
	return k, nil
}

// SymmetricKeyFromBytes splits a 64-byte user key (enc || mac), or accepts a
// 32-byte key without MAC.
func SymmetricKeyFromBytes(raw []byte) (*SymmetricCryptoKey, error) {
	switch len(raw) {
	case 2 * KeySize:
		enc := append([]byte(nil), raw[:KeySize]...)
		mac := append([]byte(nil), raw[KeySize:]...)
		Wipe(raw)
		return NewSymmetricCryptoKey(enc, mac)
	case KeySize:
		return NewSymmetricCryptoKey(raw, nil)
	default:
		Wipe(raw)
		return nil, fmt.Errorf("%w: unexpected key length %d", ErrInvalidKey, len(raw))
	}
}

// withKeys runs fn with read access to the raw key bytes. The slices must not
// be retained after fn returns.
func (k *SymmetricCryptoKey) withKeys(fn func(enc, mac []byte) error) error {
	if k == nil {
		return ErrKeyDestroyed
	}
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.enc == nil || !k.enc.IsAlive() {
		return ErrKeyDestroyed
	}
	var mac []byte
	if k.mac != nil && k.mac.IsAlive() {
		mac = k.mac.Bytes()
	}
	return fn(k.enc.Bytes(), mac)
}

// HasMac reports whether the key carries a MAC half.
func (k *SymmetricCryptoKey) HasMac() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.mac != nil && k.mac.IsAlive()
}

// EncKeyCopy and MacKeyCopy return copies for wrapping at rest. Callers must
// Wipe the result.
func (k *SymmetricCryptoKey) EncKeyCopy() ([]byte, error) {
	var out []byte
	err := k.withKeys(func(enc, _ []byte) error {
		out = append([]byte(nil), enc...)
		return nil
	})
	return out, err
}

func (k *SymmetricCryptoKey) MacKeyCopy() ([]byte, error) {
	var out []byte
	err := k.withKeys(func(_, mac []byte) error {
		out = append([]byte(nil), mac...)
		return nil
	})
	return out, err
}

// Alive reports whether Destroy has not been called yet.
func (k *SymmetricCryptoKey) Alive() bool {
	if k == nil {
		return false
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.enc != nil && k.enc.IsAlive()
}

// Destroy wipes and releases both halves. Safe to call more than once.
func (k *SymmetricCryptoKey) Destroy() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.enc != nil {
		k.enc.Destroy()
	}
	if k.mac != nil {
		k.mac.Destroy()
	}
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	memguard.WipeBytes(b)
}
